package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuracion del servicio.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"prod"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	TokenSecret         string        `env:"TOKEN_SECRET,required,notEmpty"`
	VerifyTokenMaxAge   time.Duration `env:"VERIFY_TOKEN_MAX_AGE" envDefault:"1h"`
	RememberTokenMaxAge time.Duration `env:"REMEMBER_TOKEN_MAX_AGE" envDefault:"720h"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	BcryptCost          int           `env:"BCRYPT_COST" envDefault:"10"`
	VerifyBaseURL       string        `env:"VERIFY_BASE_URL" envDefault:"http://localhost:8080/auth/verify"`
	VerifyRateWindow    time.Duration `env:"VERIFY_RATE_WINDOW" envDefault:"10m"`
	VerifyRateMax       int           `env:"VERIFY_RATE_MAX" envDefault:"3"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	RabbitMQURL string `env:"RABBITMQ_URL"`
	MailQueue   string `env:"MAIL_QUEUE" envDefault:"account.verification"`
}

// LoadConfig carga la configuracion desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa valores que env no puede validar por si solo.
func (c *Config) Validate() error {
	if c.VerifyTokenMaxAge <= 0 {
		return errors.New("VERIFY_TOKEN_MAX_AGE must be positive")
	}
	if c.RememberTokenMaxAge <= 0 {
		return errors.New("REMEMBER_TOKEN_MAX_AGE must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	return nil
}

// MailerConfig es la configuracion del worker que entrega correos encolados.
type MailerConfig struct {
	AppEnv string `env:"APP_ENV" envDefault:"prod"`

	RabbitMQURL    string `env:"RABBITMQ_URL,required,notEmpty"`
	MailQueue      string `env:"MAIL_QUEUE" envDefault:"account.verification"`
	MailMaxRetries int    `env:"MAIL_MAX_RETRIES" envDefault:"5"`

	SMTPHost     string `env:"SMTP_HOST,required,notEmpty"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM,required,notEmpty"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
}

func LoadMailerConfig() (*MailerConfig, error) {
	var cfg MailerConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDev indica si el servicio corre en modo desarrollo.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}
