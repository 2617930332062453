package redis

import (
	"context"
	"fmt"
	"time"

	"atelier/pkg/config"

	"github.com/go-redis/redis/v8"
)

const pingTimeout = 5 * time.Second

// RedisClient Redis client wrapper shared by the distributed locks
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates Redis client and verifies connectivity
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.Addr, err)
	}

	return &RedisClient{client: client}, nil
}

// GetClient retrieves the underlying Redis client; nil-safe
func (r *RedisClient) GetClient() *redis.Client {
	if r == nil {
		return nil
	}
	return r.client
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
