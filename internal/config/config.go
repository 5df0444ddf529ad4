package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const devJWTSecret = "dev-only-secret-change-me-0123456789"

type Config struct {
	Port     string `validate:"required,numeric"`
	Env      string `validate:"required"`
	LogLevel string `validate:"oneof=debug info warn error"`

	StoreBackend   string `validate:"oneof=postgres memory"`
	DBSource       string `validate:"required_if=StoreBackend postgres"`
	MigrateOnStart bool

	JWTSecret string        `validate:"required,min=16"`
	JWTTTL    time.Duration `validate:"gt=0"`

	DevMode         bool
	DevSeedAccounts string

	TransferMaxAttempts int `validate:"min=1,max=10"`

	RateLimit RateLimitConfig
	Kafka     KafkaConfig
}

type RateLimitConfig struct {
	Backend                string `validate:"oneof=memory redis"`
	RedisAddr              string `validate:"required_if=Backend redis"`
	MaxKeys                int    `validate:"min=1"`
	DefaultCapacity        int    `validate:"min=1"`
	DefaultRefillPerMinute int    `validate:"min=1"`
	AuthCapacity           int    `validate:"min=1"`
	AuthRefillPerMinute    int    `validate:"min=1"`
	AuthPrefix             string `validate:"required,startswith=/"`
	Unthrottled            []string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string `validate:"required_with=Brokers"`
}

// Load reads configuration from the environment, after merging an optional
// .env file (ENV_FILE, default ".env"). Variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		Port:     getEnv("SERVER_PORT", "8080"),
		Env:      getEnv("ENVIRONMENT", "development"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		StoreBackend:   strings.ToLower(getEnv("STORE_BACKEND", "postgres")),
		DBSource:       os.Getenv("DB_SOURCE"),
		MigrateOnStart: getBoolEnv("MIGRATE_ON_START", false),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getDurationEnv("JWT_TTL", 24*time.Hour),

		DevMode:         getBoolEnv("DEV_MODE", false),
		DevSeedAccounts: os.Getenv("DEV_SEED_ACCOUNTS"),

		TransferMaxAttempts: getIntEnv("TRANSFER_MAX_ATTEMPTS", 3),

		RateLimit: RateLimitConfig{
			Backend:                strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "memory")),
			RedisAddr:              os.Getenv("REDIS_ADDR"),
			MaxKeys:                getIntEnv("RATE_LIMIT_MAX_KEYS", 10000),
			DefaultCapacity:        getIntEnv("RATE_LIMIT_DEFAULT_CAPACITY", 100),
			DefaultRefillPerMinute: getIntEnv("RATE_LIMIT_DEFAULT_REFILL_PER_MINUTE", 100),
			AuthCapacity:           getIntEnv("RATE_LIMIT_AUTH_CAPACITY", 5),
			AuthRefillPerMinute:    getIntEnv("RATE_LIMIT_AUTH_REFILL_PER_MINUTE", 5),
			AuthPrefix:             getEnv("RATE_LIMIT_AUTH_PREFIX", "/api/auth"),
			Unthrottled:            getListEnv("RATE_LIMIT_UNTHROTTLED_PATHS", []string{"/api/auth/register", "/api/auth/login"}),
		},
		Kafka: KafkaConfig{
			Brokers: getListEnv("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "transactflow.transfers"),
		},
	}

	if cfg.JWTSecret == "" && cfg.DevMode {
		cfg.JWTSecret = devJWTSecret
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
