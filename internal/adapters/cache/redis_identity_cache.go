package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/viralforge/dbfleet/internal/domain"
)

const identityKeyPrefix = "dir:identity:"

// RedisIdentityCache stores short-lived directory lookup results in Redis.
// Keys are normalized usernames so lookups for "Alice" and "alice " share
// one entry.
type RedisIdentityCache struct {
	client *redis.Client
}

// NewRedisIdentityCache creates the directory lookup cache adapter.
func NewRedisIdentityCache(client *redis.Client) *RedisIdentityCache {
	return &RedisIdentityCache{client: client}
}

func (s *RedisIdentityCache) Put(ctx context.Context, username string, identity domain.DirectoryIdentity, ttl time.Duration) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, identityKeyPrefix+domain.Normalize(username), raw, ttl).Err()
}

func (s *RedisIdentityCache) Get(ctx context.Context, username string) (*domain.DirectoryIdentity, error) {
	raw, err := s.client.Get(ctx, identityKeyPrefix+domain.Normalize(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out domain.DirectoryIdentity
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RedisIdentityCache) Delete(ctx context.Context, username string) error {
	return s.client.Del(ctx, identityKeyPrefix+domain.Normalize(username)).Err()
}
