package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisFeedCache struct {
	client *redis.Client
	prefix string
}

func NewRedisFeedCache(addr string, password string, db int) *RedisFeedCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisFeedCache{client: client, prefix: "simplepos:feed:"}
}

func (c *RedisFeedCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisFeedCache) Close() error {
	return c.client.Close()
}

func (c *RedisFeedCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisFeedCache) Set(ctx context.Context, key string, body string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.redisKey(key), body, ttl).Err()
}

func (c *RedisFeedCache) redisKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return c.prefix + hex.EncodeToString(sum[:])
}
