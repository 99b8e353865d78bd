package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceTTL = 10 * time.Minute

// PresenceCache mirrors online flags in Redis so other services can read
// presence without hitting the relational store.
type PresenceCache struct {
	client *redis.Client
}

// NewPresenceCache connects to redisURL and verifies the connection.
func NewPresenceCache(ctx context.Context, redisURL string) (*PresenceCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &PresenceCache{client: client}, nil
}

// NewPresenceCacheFromClient wraps an existing client.
func NewPresenceCacheFromClient(client *redis.Client) *PresenceCache {
	return &PresenceCache{client: client}
}

// Close closes the Redis connection.
func (c *PresenceCache) Close() error {
	return c.client.Close()
}

func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

// SetOnline records the user's online flag and last-seen time.
// Online entries expire so a crashed process does not leave users online forever.
func (c *PresenceCache) SetOnline(ctx context.Context, userID string, online bool) error {
	key := presenceKey(userID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, "online", strconv.FormatBool(online), "last_seen", time.Now().UnixMilli())
	if online {
		pipe.Expire(ctx, key, presenceTTL)
	} else {
		pipe.Persist(ctx, key)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// IsOnline reports the cached flag; a missing entry is offline.
func (c *PresenceCache) IsOnline(ctx context.Context, userID string) (bool, error) {
	v, err := c.client.HGet(ctx, presenceKey(userID), "online").Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(v)
}
