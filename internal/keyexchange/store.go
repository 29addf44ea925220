package keyexchange

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
)

// Store is the shared key-value store that enclaves coordinate through.
type Store interface {
	// SetNX sets key to value with the given TTL, unless key exists.  It
	// returns true if the value was set.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Set sets key to value without expiry.
	Set(ctx context.Context, key, value string) error
	// Del deletes key.  Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error
	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
}

var _ Store = (*RedisStore)(nil)

// RedisStore implements Store on top of Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a store for the given redis:// or rediss:// URL.  It
// doesn't connect until the first command.
func NewRedisStore(url string) (_ *RedisStore, err error) {
	defer errs.Wrap(&err, "failed to create Redis store")

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes all connections to Redis.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
