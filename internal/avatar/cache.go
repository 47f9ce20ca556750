// Package avatar caches profile photo URLs fetched from the member
// directory. Keys carry the principal id, so one member's photo can never be
// served to another.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

type Cache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewCache(rdb redis.UniversalClient) *Cache {
	return &Cache{rdb: rdb, ttl: defaultTTL}
}

func (c *Cache) key(principalID int64) string {
	return fmt.Sprintf("avatar:%d", principalID)
}

// Refresh stores the URL fetched on login, replacing any stale value.
func (c *Cache) Refresh(ctx context.Context, principalID int64, url string) error {
	if url == "" {
		return c.rdb.Del(ctx, c.key(principalID)).Err()
	}
	return c.rdb.Set(ctx, c.key(principalID), url, c.ttl).Err()
}

// Get returns the cached URL for one principal. The second result is false
// when nothing is cached.
func (c *Cache) Get(ctx context.Context, principalID int64) (string, bool, error) {
	url, err := c.rdb.Get(ctx, c.key(principalID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return url, true, nil
}
