package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wendellddr/Bot-Spotify-sub000/model"

	"github.com/go-redis/redis/v8"
)

const (
	guildSettingsKey   = "guild:%s:settings" // String: GuildSettings JSON
	defaultSettingsTTL = 10 * time.Minute
)

// SettingsCache caches guild settings in Redis.
type SettingsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSettingsCache creates a settings cache. A nil client disables caching.
func NewSettingsCache(client *redis.Client, ttl time.Duration) *SettingsCache {
	if ttl <= 0 {
		ttl = defaultSettingsTTL
	}
	return &SettingsCache{client: client, ttl: ttl}
}

// Get returns the cached settings, or nil on a miss.
func (c *SettingsCache) Get(ctx context.Context, guildID string) (*model.GuildSettings, error) {
	if c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, fmt.Sprintf(guildSettingsKey, guildID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get guild settings: %w", err)
	}

	var settings model.GuildSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal guild settings: %w", err)
	}
	return &settings, nil
}

// Set stores settings with the configured TTL.
func (c *SettingsCache) Set(ctx context.Context, settings *model.GuildSettings) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal guild settings: %w", err)
	}
	return c.client.Set(ctx, fmt.Sprintf(guildSettingsKey, settings.GuildID), data, c.ttl).Err()
}

// Invalidate drops the cached entry for guildID.
func (c *SettingsCache) Invalidate(ctx context.Context, guildID string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, fmt.Sprintf(guildSettingsKey, guildID)).Err()
}
