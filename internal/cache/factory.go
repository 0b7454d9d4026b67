package cache

import (
	"fmt"

	"web-analytics/backend/internal/config"
)

// NewStoreFromConfig builds the configured backend. CACHE_BACKEND=none returns a nil Store.
func NewStoreFromConfig(cfg *config.Config) (Store, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendNone:
		return nil, nil
	case config.CacheBackendBadger:
		return NewBadgerStore(cfg.CacheBadgerPath)
	case config.CacheBackendRedis:
		return NewRedisStore(cfg.RedisURL, cfg.RedisPassword)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.CacheBackend)
	}
}
