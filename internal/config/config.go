// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cache backends accepted by CACHE_BACKEND.
const (
	CacheBackendRedis  = "redis"
	CacheBackendBadger = "badger"
	CacheBackendNone   = "none"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :3000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RequestTimeout is the per-request context deadline applied by the router.
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	// JWTSecret signs session tokens with HS256 when no key pair is configured.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTExpiresIn is the session token lifetime (e.g. "168h").
	JWTExpiresIn string `mapstructure:"JWT_EXPIRES_IN"`

	// APIKeyExpiryDays is the lifetime of newly issued ingestion keys.
	APIKeyExpiryDays int `mapstructure:"API_KEY_EXPIRY_DAYS"`

	// CacheBackend selects the aggregate cache: redis, badger or none.
	CacheBackend  string `mapstructure:"CACHE_BACKEND"`
	RedisURL      string `mapstructure:"REDIS_URL"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// CacheBadgerPath is the Badger directory; empty runs Badger in memory.
	CacheBadgerPath string        `mapstructure:"CACHE_BADGER_PATH"`
	CacheTTL        time.Duration `mapstructure:"CACHE_TTL"`
	// CacheOpTimeout bounds each cache call; a timed-out read is treated as a miss.
	CacheOpTimeout time.Duration `mapstructure:"CACHE_OP_TIMEOUT"`
	// CacheBreakerFailures is the consecutive failure count that opens the cache circuit breaker.
	CacheBreakerFailures uint32 `mapstructure:"CACHE_BREAKER_FAILURES"`

	RateLimitWindow        time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitMaxRequests   int           `mapstructure:"RATE_LIMIT_MAX_REQUESTS"`
	CollectRateLimitWindow time.Duration `mapstructure:"COLLECT_RATE_LIMIT_WINDOW"`
	CollectRateLimitMax    int           `mapstructure:"COLLECT_RATE_LIMIT_MAX"`

	// CORSAllowedOrigins is a comma-separated list of allowed browser origins.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTelEndpoint is the OTLP gRPC collector address. Empty keeps the no-op providers.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Telemetry (optional). When Kafka brokers are set, every collected event is also published to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	TelemetryKafkaTopic   string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "web-analytics")
	v.SetDefault("JWT_AUDIENCE", "web-analytics-api")
	v.SetDefault("JWT_EXPIRES_IN", "168h")
	v.SetDefault("API_KEY_EXPIRY_DAYS", 365)
	v.SetDefault("CACHE_BACKEND", CacheBackendRedis)
	v.SetDefault("REDIS_URL", "redis://localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("CACHE_BADGER_PATH", "")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CACHE_OP_TIMEOUT", "250ms")
	v.SetDefault("CACHE_BREAKER_FAILURES", 5)
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_MAX_REQUESTS", 100)
	v.SetDefault("COLLECT_RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("COLLECT_RATE_LIMIT_MAX", 1000)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "analytics-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "analytics-loki-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field combinations that Viper cannot express as defaults.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.APIKeyExpiryDays < 1 {
		return errors.New("config: API_KEY_EXPIRY_DAYS must be at least 1")
	}
	switch c.CacheBackend {
	case CacheBackendRedis, CacheBackendBadger, CacheBackendNone:
	default:
		return fmt.Errorf("config: CACHE_BACKEND must be one of redis, badger, none; got %q", c.CacheBackend)
	}
	if (c.JWTPrivateKey == "") != (c.JWTPublicKey == "") {
		return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}
	if c.IsProduction() && c.JWTSecret == "" && c.JWTPrivateKey == "" {
		return errors.New("config: JWT_SECRET or a JWT key pair is required when APP_ENV=production")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SessionTTL parses JWTExpiresIn as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTExpiresIn)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// APIKeyTTL is the lifetime of a newly issued API key.
func (c *Config) APIKeyTTL() time.Duration {
	return time.Duration(c.APIKeyExpiryDays) * 24 * time.Hour
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TelemetryKafkaBrokers)
}

// CORSOrigins returns the allowed CORS origins.
func (c *Config) CORSOrigins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSAllowedOrigins)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
