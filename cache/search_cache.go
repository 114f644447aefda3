package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	searchKey        = "search:%s:%s" // List: resolved identifiers in order
	searchStatsKey   = "search:stats" // Hash: hits / misses
	defaultSearchTTL = 24 * time.Hour
)

// SearchCache remembers how external links were resolved to playable
// identifiers, so repeated requests skip the provider API.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSearchCache creates a search cache. A nil client disables caching.
func NewSearchCache(client *redis.Client, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = defaultSearchTTL
	}
	return &SearchCache{client: client, ttl: ttl}
}

// Get returns the cached identifiers for key, or nil on a miss.
func (c *SearchCache) Get(ctx context.Context, provider, key string) ([]string, error) {
	if c.client == nil {
		return nil, nil
	}

	vals, err := c.client.LRange(ctx, fmt.Sprintf(searchKey, provider, key), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get search cache: %w", err)
	}

	field := "misses"
	if len(vals) > 0 {
		field = "hits"
	}
	c.client.HIncrBy(ctx, searchStatsKey, field, 1)

	if len(vals) == 0 {
		return nil, nil
	}
	return vals, nil
}

// Set stores identifiers for key.
func (c *SearchCache) Set(ctx context.Context, provider, key string, identifiers []string) error {
	if c.client == nil || len(identifiers) == 0 {
		return nil
	}

	redisKey := fmt.Sprintf(searchKey, provider, key)
	values := make([]interface{}, len(identifiers))
	for i, id := range identifiers {
		values[i] = id
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, redisKey)
	pipe.RPush(ctx, redisKey, values...)
	pipe.Expire(ctx, redisKey, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Stats returns the hit and miss counters.
func (c *SearchCache) Stats(ctx context.Context) (hits, misses int64, err error) {
	if c.client == nil {
		return 0, 0, nil
	}

	res, err := c.client.HMGet(ctx, searchStatsKey, "hits", "misses").Result()
	if err != nil {
		return 0, 0, err
	}
	parse := func(v interface{}) int64 {
		s, _ := v.(string)
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	}
	return parse(res[0]), parse(res[1]), nil
}
