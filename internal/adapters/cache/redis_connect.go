package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect initializes and validates a Redis client from URL or host:port
// input. Both formats are accepted so local and container config paths stay
// simple.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
