package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	DBDSN           string        `env:"DB_DSN,required,notEmpty"`
	Environment     string        `env:"ENV" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	JWTSecret   string   `env:"JWT_SECRET,required,notEmpty"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	// TELEGRAM_TOKEN пустой - уведомления только пишутся в лог
	TelegramToken string        `env:"TELEGRAM_TOKEN"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`

	// REDIS_ADDR пустой - события не пересылаются в Redis Stream
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisStream    string `env:"REDIS_STREAM" envDefault:"creator_pipeline:events"`
	RedisStreamLen int64  `env:"REDIS_STREAM_MAXLEN" envDefault:"10000"`

	EarlyAccess       bool          `env:"EARLY_ACCESS" envDefault:"false"`
	OverlapPolicy     string        `env:"OVERLAP_POLICY" envDefault:"allow"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"30m"`
	RuleCacheTTL      time.Duration `env:"RULE_CACHE_TTL" envDefault:"30s"`
	BookingRatePerMin int           `env:"BOOKING_RATE_PER_MIN" envDefault:"10"`
	RuleAuditInterval time.Duration `env:"RULE_AUDIT_INTERVAL" envDefault:"24h"`
}

// Load читает .env (если есть) и переменные окружения
func Load(envFile string) (*Config, error) {
	// игнорируем ошибку, если файла нет
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded configuration from", envFile)
	}

	return Parse()
}

// Parse разбирает конфигурацию из окружения и проверяет значения
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.OverlapPolicy {
	case "allow", "dedupe":
	default:
		return fmt.Errorf("OVERLAP_POLICY must be allow or dedupe, got %q", c.OverlapPolicy)
	}

	if c.BookingRatePerMin <= 0 {
		return errors.New("BOOKING_RATE_PER_MIN must be positive")
	}

	if c.RuleCacheTTL < 0 {
		return errors.New("RULE_CACHE_TTL must not be negative")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
