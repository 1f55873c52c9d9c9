package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all service configuration, loaded from the environment.
type Config struct {
	Env         string `validate:"required,oneof=dev staging prod"`
	LogLevel    string
	Port        uint16 `validate:"required"`
	DatabaseUrl string `validate:"required"`

	// CronToken authenticates the external scheduler's trigger calls.
	CronToken string `validate:"required"`

	// EncryptionKey is the base64-encoded 32-byte key for decrypting stored
	// ledger credentials.
	EncryptionKey string `validate:"required,base64"`

	// NATSUrl enables billing event publishing when set.
	NATSUrl string

	// CronEnabled runs the hourly billing tick and daily repair pass
	// in-process instead of relying on an external trigger.
	CronEnabled bool

	// MaxConcurrency bounds the per-lease worker pool.
	MaxConcurrency int

	// RepairGraceHours is how long an unsynced charge must sit before the
	// repair pass retries its accounting mirror.
	RepairGraceHours int
}

// NewConfig loads configuration from .env (if present) and the environment.
func NewConfig() (*Config, error) {
	// Try to load .env from current directory, then walk up to find it (max 2 levels)
	if err := godotenv.Load(); err != nil {
		dir, _ := os.Getwd()
		for i := 0; i < 2; i++ {
			dir = filepath.Join(dir, "..")
			if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
				break
			}
		}
		// Not finding a .env is fine; production sets real env vars.
	}

	cfg := &Config{
		Env:              envOr("ENV", "dev"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		Port:             uint16(envInt("PORT", 8080)),
		DatabaseUrl:      os.Getenv("DATABASE_URL"),
		CronToken:        os.Getenv("CRON_TOKEN"),
		EncryptionKey:    os.Getenv("ENCRYPTION_KEY"),
		NATSUrl:          os.Getenv("NATS_URL"),
		CronEnabled:      envBool("CRON_ENABLED"),
		MaxConcurrency:   envInt("BILLING_MAX_CONCURRENCY", 5),
		RepairGraceHours: envInt("REPAIR_GRACE_HOURS", 6),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// IsProd reports whether the service runs with production settings.
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Default().Warn("invalid integer env var, using default", slog.String("key", key), slog.String("value", v))
		return fallback
	}
	return n
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}
