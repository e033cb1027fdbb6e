package devicestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStorage хранит состояние устройства в Redis под префиксом device:<id>:
// (для киосков и тонких клиентов без локального диска).
type RedisStorage struct {
	client   *redis.Client
	deviceID string
}

func NewRedisStorage(client *redis.Client, deviceID string) *RedisStorage {
	return &RedisStorage{client: client, deviceID: deviceID}
}

func (r *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("devicestore: redis get failed: %w", err)
	}
	return v, nil
}

func (r *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("devicestore: redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("devicestore: redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) key(k string) string {
	return fmt.Sprintf("device:%s:%s", r.deviceID, k)
}
