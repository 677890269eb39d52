package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const balanceKeyPrefix = "balance:"

// RedisStoreConfig holds configuration for the redis-backed balance store.
type RedisStoreConfig struct {
	RedisClient *redis.Client
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates a redis-backed balance store.
func NewRedisStore(cfg *RedisStoreConfig) (Store, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.RedisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	if err := cfg.RedisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisStore{client: cfg.RedisClient}, nil
}

func (r *redisStore) SaveBalance(ctx context.Context, userId string, balance int) error {
	key := balanceKeyPrefix + userId
	if err := r.client.Set(ctx, key, balance, 0).Err(); err != nil {
		return fmt.Errorf("failed to save balance for %q: %w", userId, err)
	}
	return nil
}

func (r *redisStore) LoadBalance(ctx context.Context, userId string) (int, error) {
	key := balanceKeyPrefix + userId
	balance, err := r.client.Get(ctx, key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load balance for %q: %w", userId, err)
	}
	return balance, nil
}
