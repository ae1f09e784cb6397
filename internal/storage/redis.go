package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisSlotStore keeps slots as plain Redis string keys under a prefix.
// Slots never expire.
type redisSlotStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSlotStore creates a SlotStore backed by client. Keys are named
// prefix + slot name.
func NewRedisSlotStore(client *redis.Client, prefix string) SlotStore {
	return &redisSlotStore{client: client, prefix: prefix}
}

// OpenRedisSlotStore parses a redis:// URL, verifies the connection and
// returns a SlotStore that owns the client.
func OpenRedisSlotStore(ctx context.Context, url, prefix string) (SlotStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisSlotStore(client, prefix), nil
}

func (s *redisSlotStore) key(name string) string {
	return s.prefix + name
}

func (s *redisSlotStore) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("reading slot %s: %w", name, err)
	}
	return data, nil
}

func (s *redisSlotStore) Set(ctx context.Context, name string, data []byte) error {
	if err := s.client.Set(ctx, s.key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("writing slot %s: %w", name, err)
	}
	return nil
}

func (s *redisSlotStore) Clear(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("clearing slot %s: %w", name, err)
	}
	return nil
}

func (s *redisSlotStore) Close() error {
	return s.client.Close()
}
