// Package config loads process configuration from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "dev-secret-change-me"

// Config holds all configuration for the sellerdesk binaries.
type Config struct {
	Env      string
	LogLevel string

	HTTP        HTTPConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	S3          S3Config
	Bulk        BulkConfig
	Selection   SelectionConfig
	Idempotency IdempotencyConfig
	Worker      WorkerConfig
}

type HTTPConfig struct {
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
	IdempotencyEnabled bool
	CORSOrigins        []string

	// RequestsPerMinute throttles API calls per user; 0 disables it
	RequestsPerMinute int
	RequestBurst      int
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration

	// AutoMigrate applies embedded migrations when the API starts
	AutoMigrate bool
}

type JWTConfig struct {
	Secret    string
	Issuer    string
	AccessTTL time.Duration
}

// S3Config describes the export bucket. Endpoint is set for MinIO/LocalStack.
// An empty Bucket disables exports.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	PresignTTL      time.Duration
}

// BulkConfig tunes the bulk executor.
type BulkConfig struct {
	RatePerMinute        int
	Burst                int
	JournalCompressAbove int // bytes
	NumberPrefix         string
}

type SelectionConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

type IdempotencyConfig struct {
	TTL time.Duration
}

type WorkerConfig struct {
	OutboxInterval   time.Duration
	OutboxBatchSize  int
	CleanupInterval  time.Duration
	JournalRetention time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Port:               getEnv("APP_PORT", "8080"),
			ReadTimeout:        getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getEnvDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:        getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:    getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
			IdempotencyEnabled: getEnvBool("IDEMPOTENCY_ENABLED", true),
			CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
			RequestsPerMinute:  getEnvInt("API_RATE_PER_MINUTE", 600),
			RequestBurst:       getEnvInt("API_RATE_BURST", 100),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns:        int32(getEnvInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		JWT: jwtFromEnv(),
		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			PresignTTL:      getEnvDuration("S3_PRESIGN_TTL", 15*time.Minute),
		},
		Bulk: BulkConfig{
			RatePerMinute:        getEnvInt("BULK_RATE_PER_MINUTE", 30),
			Burst:                getEnvInt("BULK_BURST", 5),
			JournalCompressAbove: getEnvInt("BULK_JOURNAL_COMPRESS_ABOVE", 10*1024),
			NumberPrefix:         getEnv("BULK_NUMBER_PREFIX", "BLK"),
		},
		Selection: SelectionConfig{
			IdleTTL:       getEnvDuration("SELECTION_IDLE_TTL", 2*time.Hour),
			SweepInterval: getEnvDuration("SELECTION_SWEEP_INTERVAL", 5*time.Minute),
		},
		Idempotency: IdempotencyConfig{
			TTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Worker: WorkerConfig{
			OutboxInterval:   getEnvDuration("OUTBOX_INTERVAL", 2*time.Second),
			OutboxBatchSize:  getEnvInt("OUTBOX_BATCH_SIZE", 100),
			CleanupInterval:  getEnvDuration("CLEANUP_INTERVAL", time.Hour),
			JournalRetention: getEnvDuration("BULK_JOURNAL_RETENTION", 90*24*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadJWT reads only the token settings. It is used by tools that sign
// tokens without touching the database.
func LoadJWT() (JWTConfig, error) {
	_ = godotenv.Load()

	cfg := jwtFromEnv()
	if cfg.Secret == "" {
		if getEnv("APP_ENV", "development") != "development" {
			return cfg, fmt.Errorf("JWT_SECRET is required outside development")
		}
		cfg.Secret = devJWTSecret
	}
	return cfg, nil
}

func jwtFromEnv() JWTConfig {
	return JWTConfig{
		Secret:    getEnv("JWT_SECRET", ""),
		Issuer:    getEnv("JWT_ISSUER", "sellerdesk"),
		AccessTTL: getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
	}
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET is required outside development")
		}
		c.JWT.Secret = devJWTSecret
	}
	if c.Bulk.RatePerMinute <= 0 {
		return fmt.Errorf("BULK_RATE_PER_MINUTE must be positive, got %d", c.Bulk.RatePerMinute)
	}
	if c.HTTP.RequestsPerMinute < 0 {
		return fmt.Errorf("API_RATE_PER_MINUTE must not be negative, got %d", c.HTTP.RequestsPerMinute)
	}
	if c.Bulk.Burst <= 0 {
		return fmt.Errorf("BULK_BURST must be positive, got %d", c.Bulk.Burst)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
