// Package cache is the advisory aggregate cache. Callers hold a *Cache capability; every operation reports an
// explicit Hit, Miss or Unavailable result and never turns a cache failure into a request error.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"web-analytics/backend/internal/logging"
	"web-analytics/backend/internal/metrics"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a key-value backend with per-entry TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes key and records it as a member of each group.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, groups ...string) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteGroup removes every key written with group, using the membership index rather than a keyspace scan.
	DeleteGroup(ctx context.Context, group string) error
	Ping(ctx context.Context) error
	Close() error
}

// Result classifies a cache read.
type Result int

const (
	Miss Result = iota
	Hit
	// Unavailable means the backend is disabled, erroring, timed out or behind an open breaker.
	Unavailable
)

func (r Result) String() string {
	switch r {
	case Hit:
		return "hit"
	case Unavailable:
		return "unavailable"
	default:
		return "miss"
	}
}

// Options tune the guard around a Store.
type Options struct {
	// TTL applies to SetJSON. Defaults to 5 minutes.
	TTL time.Duration
	// OpTimeout bounds each backend call. Defaults to 250ms.
	OpTimeout time.Duration
	// BreakerFailures consecutive failures open the breaker. Defaults to 5.
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open before probing. Defaults to 30s.
	BreakerCooldown time.Duration
}

// Cache guards a Store with a per-operation timeout and a circuit breaker.
type Cache struct {
	store     Store
	breaker   *gobreaker.CircuitBreaker[[]byte]
	ttl       time.Duration
	opTimeout time.Duration
}

// New wraps store. A nil store yields a disabled cache.
func New(store Store, opts Options) *Cache {
	if store == nil {
		return Disabled()
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 250 * time.Millisecond
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        "cache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CacheBreakerState.Set(float64(to))
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("cache: breaker state change")
		},
	}
	return &Cache{
		store:     store,
		breaker:   gobreaker.NewCircuitBreaker[[]byte](settings),
		ttl:       opts.TTL,
		opTimeout: opts.OpTimeout,
	}
}

// Disabled returns a cache whose reads are always Unavailable and whose writes are no-ops.
func Disabled() *Cache {
	return &Cache{}
}

// Enabled reports whether a backend is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.store != nil
}

// TTL is the lifetime applied by SetJSON.
func (c *Cache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

func (c *Cache) run(ctx context.Context, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
		return fn(opCtx)
	})
}

// Get reads key. Errors are folded into the Result.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, Result) {
	if !c.Enabled() {
		return nil, Unavailable
	}
	val, err := c.run(ctx, func(ctx context.Context) ([]byte, error) {
		return c.store.Get(ctx, key)
	})
	switch {
	case err == nil:
		return val, Hit
	case errors.Is(err, ErrMiss):
		return nil, Miss
	default:
		logging.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("cache: get unavailable")
		return nil, Unavailable
	}
}

// Set writes key with ttl as a member of groups. The returned error is for logging only.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, groups ...string) error {
	if !c.Enabled() {
		return nil
	}
	_, err := c.run(ctx, func(ctx context.Context) ([]byte, error) {
		return nil, c.store.Set(ctx, key, value, ttl, groups...)
	})
	return err
}

// GetJSON decodes a hit into dst. A corrupt entry counts as a Miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) Result {
	val, res := c.Get(ctx, key)
	if res != Hit {
		return res
	}
	if err := json.Unmarshal(val, dst); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache: discarding undecodable entry")
		return Miss
	}
	return Hit
}

// SetJSON encodes v and stores it with the cache TTL as a member of groups.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, groups ...string) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, c.ttl, groups...)
}

// Invalidate deletes exact keys and every member of each group. All deletions are attempted; errors are joined.
// It is bounded by ctx, or by the op timeout when ctx has no deadline. Failures are not counted by the breaker;
// an open breaker skips the call.
func (c *Cache) Invalidate(ctx context.Context, keys []string, groups []string) error {
	if !c.Enabled() {
		return nil
	}
	if c.breaker.State() == gobreaker.StateOpen {
		return gobreaker.ErrOpenState
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
	}
	var errs []error
	if len(keys) > 0 {
		if err := c.store.Delete(ctx, keys...); err != nil {
			errs = append(errs, err)
		}
	}
	for _, g := range groups {
		if err := c.store.DeleteGroup(ctx, g); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ping checks the backend directly, bypassing the breaker.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.store.Ping(opCtx)
}

// Close releases the backend.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.store.Close()
}
