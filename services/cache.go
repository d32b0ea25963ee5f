package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	cache "github.com/go-pkgz/expirable-cache"
	"github.com/redis/go-redis/v9"
)

// Default TTLs for resolution-layer caches
const (
	LinkCacheTTL   = time.Hour
	RegionCacheTTL = 24 * time.Hour
	ChartCacheTTL  = 30 * time.Minute
)

// TwoTierCache caches derived resolution results in a fast local tier and a
// durable shared tier. Writes are last-writer-wins; cached values are derived
// and idempotent, so that is acceptable.
type TwoTierCache struct {
	local cache.Cache
	rdb   *redis.Client
}

// NewTwoTierCache creates the cache. rdb may be nil, in which case only the
// local tier is used.
func NewTwoTierCache(rdb *redis.Client) (*TwoTierCache, error) {
	local, err := cache.NewCache(cache.MaxKeys(4096), cache.TTL(LinkCacheTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %v", err)
	}
	return &TwoTierCache{local: local, rdb: rdb}, nil
}

// CacheKey builds the deterministic key for an operation on one
// (product, region) pair.
func CacheKey(op string, productID int, region string) string {
	return fmt.Sprintf("dealtrack:%s:%d:%s", op, productID, strings.ToUpper(region))
}

// Get loads a cached value into out, consulting the local tier first and
// backfilling it from the shared tier on a hit.
func (c *TwoTierCache) Get(ctx context.Context, key string, out interface{}) bool {
	if v, ok := c.local.Get(key); ok {
		if raw, ok := v.(string); ok {
			if err := json.Unmarshal([]byte(raw), out); err == nil {
				return true
			}
		}
	}

	if c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Cache read failed for %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false
	}
	// backfill with the shared tier's remaining lifetime so the local copy
	// never outlives the entry it was copied from
	if ttl, err := c.rdb.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
		c.local.Set(key, raw, ttl)
	}
	return true
}

// Set stores a value in both tiers with the given TTL.
func (c *TwoTierCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("Cache encode failed for %s: %v", key, err)
		return
	}

	c.local.Set(key, string(raw), ttl)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, string(raw), ttl).Err(); err != nil {
			log.Printf("Cache write failed for %s: %v", key, err)
		}
	}
}
