package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"user-accounts/internal/config"
	"user-accounts/internal/db"
	"user-accounts/internal/email"
	apihttp "user-accounts/internal/http"
	"user-accounts/internal/mq"
	"user-accounts/internal/repository"
	"user-accounts/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)

	var (
		sessionStore  service.SessionStore
		rememberStore service.SessionStore
		limiter       service.RateLimiter
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory sessions", zap.Error(err))
		} else {
			sessionStore = service.NewRedisSessionStore(redisClient)
			rememberStore = service.NewRedisRememberStore(redisClient)
			limiter = service.NewRedisRateLimiter(redisClient, cfg.VerifyRateWindow, cfg.VerifyRateMax)
		}
		cancel()
	}
	if sessionStore == nil {
		sessionStore = service.NewMemorySessionStore()
	}
	if limiter == nil {
		limiter = service.NewRateLimiter(cfg.VerifyRateWindow, cfg.VerifyRateMax)
	}

	emailSender, closeSender := newEmailSender(cfg, logger)
	defer closeSender()

	userSvc := service.NewUserService(
		logger,
		userRepo,
		service.NewCredentialStore(service.NewBcryptHasher(cfg.BcryptCost)),
		service.NewTokenService(cfg.TokenSecret, cfg.VerifyTokenMaxAge, service.PurposeVerify),
		service.NewTokenService(cfg.TokenSecret, cfg.RememberTokenMaxAge, service.PurposeRemember),
		service.NewSessionService(sessionStore, cfg.SessionTTL),
		rememberStore,
		emailSender,
		limiter,
		cfg.VerifyBaseURL,
	)
	userHandler := apihttp.NewUserHandler(logger, userSvc)
	router := apihttp.NewRouter(logger, userHandler, func(ctx context.Context) error {
		return db.Ping(ctx, pool)
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDev() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	return logger
}

// newEmailSender prefiere la cola de RabbitMQ; sin ella envia por SMTP directo.
func newEmailSender(cfg *config.Config, logger *zap.Logger) (email.Sender, func()) {
	noop := func() {}

	if cfg.RabbitMQURL != "" {
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQURL, mq.DefaultRabbitMQOptions())
		if err != nil {
			logger.Warn("rabbitmq connect failed", zap.Error(err))
		} else {
			sender, err := email.NewQueueSender(client, cfg.MailQueue)
			if err == nil {
				logger.Info("verification emails go through queue", zap.String("queue", cfg.MailQueue))
				return sender, func() { _ = client.Close() }
			}
			logger.Warn("queue sender init failed", zap.Error(err))
			_ = client.Close()
		}
	}

	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			return sender, noop
		}
	}

	logger.Warn("email sender not configured")
	return email.NewDisabledSender("email sender not configured"), noop
}
