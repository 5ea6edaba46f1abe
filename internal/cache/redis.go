// Package cache holds the Redis-backed session state for refresh and
// password-reset tokens.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/contacthub/auth-service/internal/config"
	"github.com/redis/go-redis/v9"
)

// Connect builds a Redis client and verifies the connection.
func Connect(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("session cache connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return rdb, nil
}
