package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	presenceKey    = "guild:%s:viewer:%s" // String: heartbeat of one dashboard viewer
	presenceSetKey = "guild:%s:viewers"   // Set: viewer IDs with a live socket
	presenceSetTTL = 24 * time.Hour
	presenceTTL    = 90 * time.Second // Heartbeat expiry
)

// PresenceCache tracks which dashboard users are watching a guild's queue.
// A viewer counts as online while its heartbeat key exists.
type PresenceCache struct {
	client *redis.Client
}

// NewPresenceCache creates a presence cache. A nil client disables tracking.
func NewPresenceCache(client *redis.Client) *PresenceCache {
	return &PresenceCache{client: client}
}

// Touch refreshes a viewer's heartbeat.
func (c *PresenceCache) Touch(ctx context.Context, guildID, userID string) error {
	if c.client == nil {
		return nil
	}

	setKey := fmt.Sprintf(presenceSetKey, guildID)
	pipe := c.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(presenceKey, guildID, userID), time.Now().UnixMilli(), presenceTTL)
	pipe.SAdd(ctx, setKey, userID)
	pipe.Expire(ctx, setKey, presenceSetTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Remove drops a viewer.
func (c *PresenceCache) Remove(ctx context.Context, guildID, userID string) error {
	if c.client == nil {
		return nil
	}

	pipe := c.client.Pipeline()
	pipe.Del(ctx, fmt.Sprintf(presenceKey, guildID, userID))
	pipe.SRem(ctx, fmt.Sprintf(presenceSetKey, guildID), userID)
	_, err := pipe.Exec(ctx)
	return err
}

// Viewers returns the viewers whose heartbeat is still alive and prunes the rest.
func (c *PresenceCache) Viewers(ctx context.Context, guildID string) ([]string, error) {
	if c.client == nil {
		return nil, nil
	}

	setKey := fmt.Sprintf(presenceSetKey, guildID)
	members, err := c.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list viewers: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := c.client.Pipeline()
	checks := make([]*redis.IntCmd, len(members))
	for i, userID := range members {
		checks[i] = pipe.Exists(ctx, fmt.Sprintf(presenceKey, guildID, userID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check viewers: %w", err)
	}

	var active []string
	var expired []interface{}
	for i, userID := range members {
		if checks[i].Val() > 0 {
			active = append(active, userID)
		} else {
			expired = append(expired, userID)
		}
	}
	if len(expired) > 0 {
		c.client.SRem(ctx, setKey, expired...)
	}
	return active, nil
}
