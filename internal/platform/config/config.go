package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. FromEnv keeps main lean.
type Server struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string
	JWTIssuer     string

	// PostgresURL selects the Postgres stores when set; empty runs on the
	// in-memory stores (dev and tests).
	PostgresURL string

	Redis RedisConfig
	Kafka KafkaConfig

	// TemplateRendererURL is the external template rendering gateway.
	TemplateRendererURL string

	// SweepInterval controls the surveillance sweep worker cadence.
	SweepInterval time.Duration
}

// RedisConfig carries connection tuning for the reconcile lock client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig carries the compliance audit trail broker settings.
// Empty brokers disable Kafka publishing (events stay on the in-process worker).
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:          envOr("CERTO_ADDR", ":8080"),
		AdminToken:    envOr("CERTO_ADMIN_TOKEN", ""),
		JWTSigningKey: envOr("CERTO_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envOr("CERTO_JWT_ISSUER", "certo-auth"),
		PostgresURL:   envOr("CERTO_POSTGRES_URL", ""),
		Redis: RedisConfig{
			URL:          envOr("CERTO_REDIS_URL", ""),
			PoolSize:     envInt("CERTO_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CERTO_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("CERTO_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CERTO_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CERTO_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Topic: envOr("CERTO_KAFKA_AUDIT_TOPIC", "certo.audit-trail"),
		},
		TemplateRendererURL: envOr("CERTO_TEMPLATE_RENDERER_URL", ""),
		SweepInterval:       envDuration("CERTO_SWEEP_INTERVAL", 15*time.Minute),
	}
	if brokers := os.Getenv("CERTO_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitAndTrim(brokers)
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
