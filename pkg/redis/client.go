package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	migrationLockKey = "eventsx:migration:lock"
	migrationLockTTL = 10 * time.Minute
)

// Client wraps go-redis client with optional logger.
type Client struct {
	*redis.Client
	logger *zap.Logger
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Redis client connected", zap.String("addr", addr))
	return &Client{Client: rdb, logger: logger}, nil
}

// Acquire takes the cross-process migration lock with SetNX. The TTL keeps
// a crashed migration from pinning the lock forever.
func (c *Client) Acquire(ctx context.Context) (func(), bool, error) {
	ok, err := c.SetNX(ctx, migrationLockKey, "1", migrationLockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire migration lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		if err := c.Del(context.Background(), migrationLockKey).Err(); err != nil {
			c.logger.Warn("release migration lock", zap.Error(err))
		}
	}
	return release, true, nil
}
