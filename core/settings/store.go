package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/wendellddr/Bot-Spotify-sub000/config"
	"github.com/wendellddr/Bot-Spotify-sub000/logger"
	"github.com/wendellddr/Bot-Spotify-sub000/model"
	"github.com/wendellddr/Bot-Spotify-sub000/repository"
)

// Cache is the read-through cache in front of the repository.
type Cache interface {
	Get(ctx context.Context, guildID string) (*model.GuildSettings, error)
	Set(ctx context.Context, settings *model.GuildSettings) error
	Invalidate(ctx context.Context, guildID string) error
}

// Store resolves guild settings: cache, then database, then global defaults.
type Store struct {
	repo     repository.SettingsRepository
	cache    Cache
	defaults model.GuildSettings
}

// NewStore creates a settings store. cache may be nil.
func NewStore(repo repository.SettingsRepository, cache Cache, defaults model.GuildSettings) *Store {
	return &Store{repo: repo, cache: cache, defaults: defaults}
}

// DefaultsFromConfig builds the global guild defaults from configuration,
// falling back to the built-in defaults for invalid values.
func DefaultsFromConfig(cfg *config.Config) model.GuildSettings {
	d := model.DefaultGuildSettings()
	if cfg == nil {
		return d
	}

	if cfg.DefaultVolume >= 0 && cfg.DefaultVolume <= 100 {
		d.Volume = cfg.DefaultVolume
	}
	if mode, err := model.ParseLoopMode(cfg.DefaultLoopMode); err == nil {
		d.LoopMode = mode
	} else if strings.TrimSpace(cfg.DefaultLoopMode) != "" {
		logger.Warn("invalid DEFAULT_LOOP, using off", logger.String("value", cfg.DefaultLoopMode))
	}
	d.AutoQueue = cfg.DefaultAutoQueue
	d.AutoLeave = cfg.DefaultAutoLeave
	d.AutoPause = cfg.DefaultAutoPause
	d.TwentyFourSeven = cfg.DefaultTwentyFourSeven
	return d
}

// Defaults returns the global defaults for guilds without stored settings.
func (s *Store) Defaults() model.GuildSettings {
	return s.defaults
}

// Get returns the effective settings for guildID.
func (s *Store) Get(ctx context.Context, guildID string) (model.GuildSettings, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, guildID)
		if err != nil {
			logger.Warn("settings cache read failed", logger.Guild(guildID), logger.ErrorField(err))
		} else if cached != nil {
			return *cached, nil
		}
	}

	row, err := s.repo.Get(ctx, guildID)
	if err != nil {
		return model.GuildSettings{}, fmt.Errorf("load guild settings: %w", err)
	}

	var out model.GuildSettings
	if row == nil {
		out = s.defaults
		out.GuildID = guildID
	} else {
		out = *row
		if !out.LoopMode.Valid() {
			out.LoopMode = s.defaults.LoopMode
		}
		if out.Volume < 0 || out.Volume > 100 {
			out.Volume = s.defaults.Volume
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, &out); err != nil {
			logger.Warn("settings cache write failed", logger.Guild(guildID), logger.ErrorField(err))
		}
	}
	return out, nil
}

// SetVolume persists the guild's volume.
func (s *Store) SetVolume(ctx context.Context, guildID string, volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("volume %d out of range", volume)
	}
	return s.update(ctx, guildID, "volume", volume, func(g *model.GuildSettings) { g.Volume = volume })
}

// SetLoopMode persists the guild's loop mode.
func (s *Store) SetLoopMode(ctx context.Context, guildID string, mode model.LoopMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid loop mode %q", mode)
	}
	return s.update(ctx, guildID, "loop_mode", mode, func(g *model.GuildSettings) { g.LoopMode = mode })
}

// SetAutoQueue persists the auto-queue toggle.
func (s *Store) SetAutoQueue(ctx context.Context, guildID string, enabled bool) error {
	return s.update(ctx, guildID, "auto_queue", enabled, func(g *model.GuildSettings) { g.AutoQueue = enabled })
}

// SetAutoLeave persists the auto-leave toggle.
func (s *Store) SetAutoLeave(ctx context.Context, guildID string, enabled bool) error {
	return s.update(ctx, guildID, "auto_leave", enabled, func(g *model.GuildSettings) { g.AutoLeave = enabled })
}

// SetAutoPause persists the auto-pause toggle.
func (s *Store) SetAutoPause(ctx context.Context, guildID string, enabled bool) error {
	return s.update(ctx, guildID, "auto_pause", enabled, func(g *model.GuildSettings) { g.AutoPause = enabled })
}

// SetTwentyFourSeven persists the 24/7 toggle.
func (s *Store) SetTwentyFourSeven(ctx context.Context, guildID string, enabled bool) error {
	return s.update(ctx, guildID, "twenty_four_seven", enabled, func(g *model.GuildSettings) { g.TwentyFourSeven = enabled })
}

// SetEmbedColor persists the guild's embed color. 0 restores the global color.
func (s *Store) SetEmbedColor(ctx context.Context, guildID string, color int) error {
	return s.update(ctx, guildID, "embed_color", color, func(g *model.GuildSettings) { g.EmbedColor = color })
}

// Reset deletes the guild's stored settings.
func (s *Store) Reset(ctx context.Context, guildID string) error {
	if err := s.repo.Delete(ctx, guildID); err != nil {
		return fmt.Errorf("delete guild settings: %w", err)
	}
	s.invalidate(ctx, guildID)
	return nil
}

// update upserts one column. The inserted row, if any, starts from the
// current effective settings so other columns keep their defaults.
func (s *Store) update(ctx context.Context, guildID, column string, value interface{}, apply func(*model.GuildSettings)) error {
	row, err := s.repo.Get(ctx, guildID)
	if err != nil {
		return fmt.Errorf("load guild settings: %w", err)
	}

	base := s.defaults
	if row != nil {
		base = *row
	}
	base.GuildID = guildID
	apply(&base)

	if err := s.repo.UpdateField(ctx, &base, column, value); err != nil {
		return fmt.Errorf("save guild settings: %w", err)
	}
	s.invalidate(ctx, guildID)

	logger.Info("guild setting updated",
		logger.Guild(guildID),
		logger.String("column", column),
		logger.Any("value", value))
	return nil
}

func (s *Store) invalidate(ctx context.Context, guildID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, guildID); err != nil {
		logger.Warn("settings cache invalidate failed", logger.Guild(guildID), logger.ErrorField(err))
	}
}
