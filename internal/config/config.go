package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the ledger service and audit worker
type Config struct {
	Env             string
	LogLevel        string
	HTTPPort        string
	AuditHTTPPort   string
	GRPCPort        string
	ShutdownTimeout time.Duration
	Storage         StorageConfig
	Redis           RedisConfig
	RabbitMQ        RabbitMQConfig
	ClickHouse      ClickHouseConfig
}

// StorageConfig selects and configures the ledger store
type StorageConfig struct {
	Driver      string
	DatabaseURL string
	MaxConns    int32
	AutoMigrate bool
}

// RedisConfig holds Redis connection and lock configuration.
// An empty Addr disables distributed locking.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	LockExpiry     time.Duration
	LockTries      int
	LockRetryDelay time.Duration
}

// RabbitMQConfig holds RabbitMQ connection configuration.
// An empty URL disables event publishing.
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string
}

// ClickHouseConfig holds ClickHouse connection configuration
type ClickHouseConfig struct {
	Host     string
	Database string
	User     string
	Password string
}

// Load reads a .env file if present, then builds the configuration from
// environment variables with default values.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:             getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		HTTPPort:        getEnv("HTTP_PORT", "5001"),
		AuditHTTPPort:   getEnv("AUDIT_HTTP_PORT", "5002"),
		GRPCPort:        getEnv("GRPC_PORT", "50051"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		Storage: StorageConfig{
			Driver:      getEnv("STORAGE_DRIVER", DriverMemory),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			MaxConns:    int32(getEnvInt("DB_MAX_CONNS", 25)),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvInt("REDIS_DB", 0),
			LockExpiry:     getEnvDuration("LOCK_EXPIRY", 10*time.Second),
			LockTries:      getEnvInt("LOCK_TRIES", 32),
			LockRetryDelay: getEnvDuration("LOCK_RETRY_DELAY", 50*time.Millisecond),
		},
		RabbitMQ: RabbitMQConfig{
			URL:        getEnv("RABBITMQ_URL", ""),
			Exchange:   getEnv("RABBITMQ_EXCHANGE", "ledger.transactions"),
			Queue:      getEnv("RABBITMQ_QUEUE", "audit.transactions"),
			RoutingKey: getEnv("RABBITMQ_ROUTING_KEY", "transaction.#"),
		},
		ClickHouse: ClickHouseConfig{
			Host:     getEnv("CLICKHOUSE_HOST", "localhost:9000"),
			Database: getEnv("CLICKHOUSE_DB", "ledger"),
			User:     getEnv("CLICKHOUSE_USER", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
		},
	}
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for storage driver %q", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Redis.Addr != "" && c.Redis.LockTries < 1 {
		return fmt.Errorf("LOCK_TRIES must be at least 1")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv retrieves an environment variable or returns a default value if not set
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
