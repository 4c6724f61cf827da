package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Части подключения, если полного URL нет (Railway иногда отдает только их)
	PGHost      string `envconfig:"PGHOST"`
	PGPort      string `envconfig:"PGPORT" default:"5432"`
	PGUser      string `envconfig:"PGUSER" default:"postgres"`
	PGPassword  string `envconfig:"PGPASSWORD"`
	PGDatabase  string `envconfig:"PGDATABASE" default:"barback"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	RedisURL           string        `envconfig:"REDIS_URL"`
	RedisSentinelAddrs []string      `envconfig:"REDIS_SENTINEL_ADDRS"` // Адреса Sentinel (через запятую)
	RedisMasterName    string        `envconfig:"REDIS_MASTER_NAME" default:"mymaster"`
	RedisPassword      string        `envconfig:"REDIS_PASSWORD"`
	RecipeCacheTTL     time.Duration `envconfig:"RECIPE_CACHE_TTL" default:"10m"`

	KafkaBrokers     string `envconfig:"KAFKA_BROKERS"`
	KafkaUsername    string `envconfig:"KAFKA_USERNAME"`
	KafkaPassword    string `envconfig:"KAFKA_PASSWORD"`
	KafkaCACert      string `envconfig:"KAFKA_CA_CERT"`
	KafkaOrdersTopic string `envconfig:"KAFKA_ORDERS_TOPIC" default:"barback.orders"`
	KafkaGroupID     string `envconfig:"KAFKA_GROUP_ID" default:"barback-bar-display"`

	ServerPort          string        `envconfig:"PORT" default:"8080"`
	GRPCPort            string        `envconfig:"GRPC_PORT" default:"9090"`
	Environment         string        `envconfig:"ENV" default:"development"`
	LogLevel            string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat           string        `envconfig:"LOG_FORMAT" default:"text"` // text | json
	HealthCheckInterval time.Duration `envconfig:"HEALTH_CHECK_INTERVAL" default:"15s"`
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	// .env нужен только локально, на сервере переменные задает окружение
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "ошибка чтения конфигурации")
	}

	if cfg.DatabaseURL == "" && cfg.PGHost != "" {
		if cfg.PGPassword != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
				cfg.PGUser, cfg.PGPassword, cfg.PGHost, cfg.PGPort, cfg.PGDatabase)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=disable",
				cfg.PGUser, cfg.PGHost, cfg.PGPort, cfg.PGDatabase)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения, которые envconfig не может проверить сам
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.Errorf("LOG_FORMAT должен быть text или json, получено %q", c.LogFormat)
	}
	if c.ServerPort == "" {
		return errors.New("PORT не задан")
	}
	if c.RecipeCacheTTL < 0 {
		return errors.New("RECIPE_CACHE_TTL не может быть отрицательным")
	}
	if c.HealthCheckInterval <= 0 {
		return errors.New("HEALTH_CHECK_INTERVAL должен быть положительным")
	}
	return nil
}

// UsesRedisSentinel - подключаться к Redis через Sentinel
func (c *Config) UsesRedisSentinel() bool {
	return len(c.RedisSentinelAddrs) > 0
}

// IsProduction - боевое окружение
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
