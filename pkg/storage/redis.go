package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each wallet in a Redis hash named after its location,
// with one hash field per record key.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Kind implements Store.
func (s *RedisStore) Kind() Kind { return KindRedis }

// Backend implements Store.
func (s *RedisStore) Backend(location string) Backend {
	return &redisBackend{client: s.client, location: location}
}

type redisBackend struct {
	client   *redis.Client
	location string
}

func (b *redisBackend) Location() string { return b.location }

func (b *redisBackend) Exists(ctx context.Context) bool {
	n, err := b.client.Exists(ctx, b.location).Result()
	return err == nil && n > 0
}

func (b *redisBackend) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := b.client.HGet(ctx, b.location, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("storage: failed to read %s: %w", key, err)
	}
	return data, nil
}

func (b *redisBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := b.client.HSet(ctx, b.location, key, data).Err(); err != nil {
		return fmt.Errorf("storage: failed to write %s: %w", key, err)
	}
	return nil
}

func (b *redisBackend) Delete(ctx context.Context) error {
	if err := b.client.Del(ctx, b.location).Err(); err != nil {
		return fmt.Errorf("storage: failed to delete wallet: %w", err)
	}
	return nil
}
