package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"user-accounts/internal/config"
	"user-accounts/internal/email"
	"user-accounts/internal/mq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadMailerConfig()
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.AppEnv == "dev" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
	if err != nil {
		logger.Fatal("smtp sender init", zap.Error(err))
	}

	opts := mq.DefaultRabbitMQOptions()
	opts.MaxRetries = cfg.MailMaxRetries
	client, err := mq.NewRabbitMQClient(cfg.RabbitMQURL, opts)
	if err != nil {
		logger.Fatal("rabbitmq connect", zap.Error(err))
	}
	defer client.Close()

	worker := email.NewWorker(logger, client, cfg.MailQueue, sender)
	logger.Info("mailer started", zap.String("queue", cfg.MailQueue))
	if err := worker.Run(ctx); err != nil {
		logger.Error("mailer stopped", zap.Error(err))
		return
	}
	logger.Info("mailer stopped")
}
