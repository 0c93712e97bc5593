package idcache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Resolved player IDs are stable, but names can migrate across platforms;
// a day is long enough to save resolve calls between periodic runs.
const ttlResolved = 24 * time.Hour

// Cache is an optional Redis-backed name→playerID cache consulted before
// the resolve endpoint. A nil *Cache is valid and caches nothing.
type Cache struct{ rdb *redis.Client }

func New(url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Cache{rdb: rdb}, nil
}

func (c *Cache) key(name, platform string) string {
	return "bf6:id:" + strings.TrimSpace(platform) + ":" + strings.ToLower(strings.TrimSpace(name))
}

// Get returns the cached ID for a name+platform, or "" on a miss. Lookup
// errors surface as misses so a flaky cache never fails a run.
func (c *Cache) Get(ctx context.Context, name, platform string) string {
	if c == nil || c.rdb == nil {
		return ""
	}
	id, err := c.rdb.Get(ctx, c.key(name, platform)).Result()
	if err != nil {
		return ""
	}
	return id
}

func (c *Cache) Put(ctx context.Context, name, platform, id string) {
	if c == nil || c.rdb == nil || strings.TrimSpace(id) == "" {
		return
	}
	_ = c.rdb.Set(ctx, c.key(name, platform), id, ttlResolved).Err()
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
