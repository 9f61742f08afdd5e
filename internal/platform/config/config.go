package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	strutil "lineage/pkg/platform/strings"
)

// Config captures everything main needs to wire the service.
type Config struct {
	Addr     string
	Env      string
	LogLevel string

	// StoreDriver selects the persistence backend: "memory" or
	// "postgres".
	StoreDriver string
	PostgresURL string

	Redis RedisConfig
	Kafka KafkaConfig

	JWTSigningKey string
	TokenTTL      time.Duration
}

// RedisConfig configures the optional read cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// KafkaConfig configures the event stream. Empty Brokers disables the
// outbox worker and feed consumer.
type KafkaConfig struct {
	Brokers        []string
	Topic          string
	ConsumerGroup  string
	OutboxInterval time.Duration
}

// Enabled reports whether Kafka wiring should start.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// FromEnv builds the config from environment variables so main stays
// lean.
func FromEnv() Config {
	return Config{
		Addr:        getEnv("LINEAGE_ADDR", ":8080"),
		Env:         getEnv("LINEAGE_ENV", "development"),
		LogLevel:    getEnv("LINEAGE_LOG_LEVEL", "info"),
		StoreDriver: getEnv("LINEAGE_STORE", "memory"),
		PostgresURL: os.Getenv("LINEAGE_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("LINEAGE_REDIS_URL"),
			PoolSize:     getInt("LINEAGE_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("LINEAGE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("LINEAGE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("LINEAGE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("LINEAGE_REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     getDuration("LINEAGE_REDIS_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:        strutil.DedupeAndTrim(strings.Split(os.Getenv("LINEAGE_KAFKA_BROKERS"), ",")),
			Topic:          getEnv("LINEAGE_KAFKA_TOPIC", "lineage.agent.events"),
			ConsumerGroup:  getEnv("LINEAGE_KAFKA_GROUP", "lineage-feed"),
			OutboxInterval: getDuration("LINEAGE_OUTBOX_INTERVAL", time.Second),
		},
		// Default for development only - override in production.
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:      getDuration("LINEAGE_TOKEN_TTL", 15*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
