package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":3000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":3000")
	}
	if cfg.JWTIssuer != "web-analytics" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "web-analytics")
	}
	if cfg.JWTAudience != "web-analytics-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "web-analytics-api")
	}
	if cfg.APIKeyExpiryDays != 365 {
		t.Errorf("APIKeyExpiryDays = %d, want 365", cfg.APIKeyExpiryDays)
	}
	if cfg.CacheBackend != CacheBackendRedis {
		t.Errorf("CacheBackend = %q, want %q", cfg.CacheBackend, CacheBackendRedis)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.CacheOpTimeout != 250*time.Millisecond {
		t.Errorf("CacheOpTimeout = %v, want 250ms", cfg.CacheOpTimeout)
	}
	if cfg.CacheBreakerFailures != 5 {
		t.Errorf("CacheBreakerFailures = %d, want 5", cfg.CacheBreakerFailures)
	}
	if cfg.RateLimitWindow != 15*time.Minute || cfg.RateLimitMaxRequests != 100 {
		t.Errorf("rate limit = %v/%d, want 15m/100", cfg.RateLimitWindow, cfg.RateLimitMaxRequests)
	}
	if cfg.CollectRateLimitWindow != time.Minute || cfg.CollectRateLimitMax != 1000 {
		t.Errorf("collect rate limit = %v/%d, want 1m/1000", cfg.CollectRateLimitWindow, cfg.CollectRateLimitMax)
	}
	if cfg.TelemetryKafkaTopic != "analytics-events" {
		t.Errorf("TelemetryKafkaTopic = %q", cfg.TelemetryKafkaTopic)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("API_KEY_EXPIRY_DAYS", "30")
	os.Setenv("CACHE_BACKEND", "badger")
	os.Setenv("CACHE_TTL", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.APIKeyExpiryDays != 30 {
		t.Errorf("APIKeyExpiryDays = %d, want 30", cfg.APIKeyExpiryDays)
	}
	if cfg.APIKeyTTL() != 30*24*time.Hour {
		t.Errorf("APIKeyTTL = %v", cfg.APIKeyTTL())
	}
	if cfg.CacheBackend != CacheBackendBadger {
		t.Errorf("CacheBackend = %q", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", cfg.CacheTTL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"expiry days zero", map[string]string{"API_KEY_EXPIRY_DAYS": "0"}, "API_KEY_EXPIRY_DAYS"},
		{"unknown cache backend", map[string]string{"CACHE_BACKEND": "memcached"}, "CACHE_BACKEND"},
		{"half key pair", map[string]string{"JWT_PRIVATE_KEY": "x"}, "set together"},
		{"production without signing key", map[string]string{"APP_ENV": "production"}, "JWT_SECRET"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tc.env {
				os.Setenv(k, v)
			}
			cfg, err := Load()
			if err == nil {
				t.Fatal("Load should return error")
			}
			if cfg != nil {
				t.Error("Load should return nil config on error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestLoad_ProductionWithSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "production")
	os.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction should be true")
	}
}

func TestSessionTTL(t *testing.T) {
	testCases := []struct {
		value string
		want  time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"invalid", 168 * time.Hour},
		{"0", 168 * time.Hour},
		{"-5m", 168 * time.Hour},
	}
	for _, tc := range testCases {
		cfg := &Config{JWTExpiresIn: tc.value}
		if got := cfg.SessionTTL(); got != tc.want {
			t.Errorf("SessionTTL(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestTelemetryKafkaBrokersList(t *testing.T) {
	var nilCfg *Config
	if nilCfg.TelemetryKafkaBrokersList() != nil {
		t.Error("nil config should yield nil brokers")
	}
	cfg := &Config{TelemetryKafkaBrokers: " a:9092, ,b:9092 "}
	got := cfg.TelemetryKafkaBrokersList()
	if !reflect.DeepEqual(got, []string{"a:9092", "b:9092"}) {
		t.Errorf("brokers = %v", got)
	}
}

func TestCORSOrigins(t *testing.T) {
	cfg := &Config{CORSAllowedOrigins: "http://a.test,http://b.test"}
	got := cfg.CORSOrigins()
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("CORSOrigins = %v", got)
	}
}
