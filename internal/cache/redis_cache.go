package cache

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	redis "github.com/redis/go-redis/v9"

	"cartupsell/backend/internal/domain"
)

type RedisUpsellCache struct {
	client *redis.Client
}

func NewRedisUpsellCache(addr string, password string, db int) *RedisUpsellCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisUpsellCache{client: client}
}

func (c *RedisUpsellCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisUpsellCache) Close() error {
	return c.client.Close()
}

func (c *RedisUpsellCache) Get(ctx context.Context, key string) (*domain.UpsellResult, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var resp domain.UpsellResult
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, false, err
	}
	return &resp, true, nil
}

func (c *RedisUpsellCache) Set(ctx context.Context, key string, value *domain.UpsellResult, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

// Flush deletes every key under KeyPrefix, SCANning in batches of 200.
func (c *RedisUpsellCache) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, KeyPrefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}
