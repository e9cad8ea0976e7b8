// Package config loads process configuration from the environment,
// generalized from src/config/config.go to cover the storage, transport,
// and lease backends the engine depends on.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Logging     LoggingConfig
	Postgres    PostgresConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	Outbox      OutboxConfig
	Idempotency IdempotencyConfig
}

type ServerConfig struct {
	Port string
	Host string
	// StorageBackend selects the repository set cmd/api, cmd/outbox-worker,
	// and cmd/reconciler wire up: "postgres" (default, production) or
	// "memory" (single-process dev/demo, no external services required).
	StorageBackend string
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Window            time.Duration
}

type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

// PostgresConfig configures the pgx pool-backed repository set.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	LockTimeout    time.Duration
	StatementCache bool
}

// KafkaConfig configures the outbox publisher's Kafka producer.
type KafkaConfig struct {
	Brokers        []string
	Topic          string
	ClientID       string
	FlushFrequency time.Duration
}

// RedisConfig configures the outbox publisher's single-leader lease. Redis
// holds no business state -- only the lease key.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LeaseKey string
	LeaseTTL time.Duration
}

// OutboxConfig tunes the publish-side worker loop. cmd/outbox-worker reads
// BatchSize and PollInterval; MaxAttempts is loaded but not applied -- the
// dead-letter ceiling is the outbox.MaxAttempts constant.
type OutboxConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

// IdempotencyConfig holds the idempotency settings. Neither field is read:
// records expire after the idempotency.TTL constant, and
// cmd/idempotency-pruner runs one prune pass per invocation.
type IdempotencyConfig struct {
	TTL           time.Duration
	PruneInterval time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			StorageBackend: getEnv("STORAGE_BACKEND", "postgres"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 100),
			Window:            time.Minute,
		},
		CORS: CORSConfig{
			AllowOrigins:     getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			AllowMethods:     getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowHeaders:     getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "Accept", "Idempotency-Key"}),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Postgres: PostgresConfig{
			DSN:            getEnv("DATABASE_URL", "postgres://localhost:5432/coreledger?sslmode=disable"),
			MaxConns:       int32(getEnvAsInt("DATABASE_MAX_CONNS", 20)),
			LockTimeout:    getEnvAsDuration("DATABASE_LOCK_TIMEOUT", 5*time.Second),
			StatementCache: getEnvAsBool("DATABASE_STATEMENT_CACHE", true),
		},
		Kafka: KafkaConfig{
			Brokers:        getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:          getEnv("KAFKA_OUTBOX_TOPIC", "coreledger.events"),
			ClientID:       getEnv("KAFKA_CLIENT_ID", "coreledger-outbox-worker"),
			FlushFrequency: getEnvAsDuration("KAFKA_FLUSH_FREQUENCY", 100*time.Millisecond),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			LeaseKey: getEnv("REDIS_OUTBOX_LEASE_KEY", "coreledger:outbox:leader"),
			LeaseTTL: getEnvAsDuration("REDIS_OUTBOX_LEASE_TTL", 15*time.Second),
		},
		Outbox: OutboxConfig{
			BatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
			PollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
			MaxAttempts:  getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 100),
		},
		Idempotency: IdempotencyConfig{
			TTL:           getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
			PruneInterval: getEnvAsDuration("IDEMPOTENCY_PRUNE_INTERVAL", time.Hour),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsSlice(name string, defaultVal []string) []string {
	valStr := getEnv(name, "")
	if valStr == "" {
		return defaultVal
	}
	return strings.Split(valStr, ",")
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valStr := getEnv(name, "")
	if d, err := time.ParseDuration(valStr); err == nil {
		return d
	}
	return defaultVal
}
