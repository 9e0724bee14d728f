package store

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore stores each option as a plain string key
// "<prefix><project>:<key>".
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore connects to redisURL (redis:// or rediss://) and verifies the
// connection with a PING.
func NewRedisStore(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = 1 * time.Second

	if opts.TLSConfig == nil && strings.HasPrefix(redisURL, "rediss://") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStoreWithClient(rdb, prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(rdb redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (r *RedisStore) key(project, key string) string {
	return r.prefix + project + ":" + key
}

func (r *RedisStore) Get(ctx context.Context, project, key string) ([]byte, error) {
	if err := validateKey(project, key); err != nil {
		return nil, err
	}
	v, err := r.rdb.Get(ctx, r.key(project, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get option %s/%s: %w", project, key, err)
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, project, key string, value []byte) error {
	if err := validateKey(project, key); err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(project, key), value, 0).Err(); err != nil {
		return fmt.Errorf("set option %s/%s: %w", project, key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, project, key string) error {
	if err := validateKey(project, key); err != nil {
		return err
	}
	if err := r.rdb.Del(ctx, r.key(project, key)).Err(); err != nil {
		return fmt.Errorf("delete option %s/%s: %w", project, key, err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
