package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	deleteBatch = 200
	// groupKeyPrefix namespaces the membership sets behind DeleteGroup.
	groupKeyPrefix = "cache:group:"
)

// RedisStore is a Store backed by Redis. Each group is a Redis set of member keys whose expiry is refreshed
// on every write, so it outlives all of its members.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore parses a redis:// URL. password overrides any password in the URL when non-empty.
// The client connects lazily; use Ping to check reachability.
func NewRedisStore(url, password string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse REDIS_URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.MaxRetries = 1
	opts.DialTimeout = 2 * time.Second
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func groupKey(group string) string { return groupKeyPrefix + group }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return val, err
}

// Set writes the value and its group memberships in one MULTI.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, groups ...string) error {
	if len(groups) == 0 {
		return s.client.Set(ctx, key, value, ttl).Err()
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, value, ttl)
		for _, g := range groups {
			p.SAdd(ctx, groupKey(g), key)
			if ttl > 0 {
				p.Expire(ctx, groupKey(g), ttl)
			}
		}
		return nil
	})
	return err
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// DeleteGroup pops members in batches and deletes them. Members added while it runs are either popped
// or stay indexed for the next invalidation.
func (s *RedisStore) DeleteGroup(ctx context.Context, group string) error {
	gk := groupKey(group)
	for {
		members, err := s.client.SPopN(ctx, gk, deleteBatch).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.Delete(ctx, members...); err != nil {
			return err
		}
		if len(members) < deleteBatch {
			return nil
		}
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
