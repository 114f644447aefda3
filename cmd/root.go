package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wendellddr/Bot-Spotify-sub000/cache"
	"github.com/wendellddr/Bot-Spotify-sub000/config"
	"github.com/wendellddr/Bot-Spotify-sub000/core/settings"
	"github.com/wendellddr/Bot-Spotify-sub000/db"
	"github.com/wendellddr/Bot-Spotify-sub000/logger"
	"github.com/wendellddr/Bot-Spotify-sub000/repository"
)

var rootCmd = &cobra.Command{
	Use:   "musicbot",
	Short: "Discord music bot with a web dashboard.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot()
	},
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and starts the logger.
func loadConfig() *config.Config {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
	return cfg
}

// openSettingsStore connects MySQL and Redis and builds the settings store.
// Redis is optional: without it settings are read straight from the database.
// The returned func closes both connections.
func openSettingsStore(cfg *config.Config) (*settings.Store, func(), error) {
	if err := db.ConnectGormDB(cfg); err != nil {
		return nil, nil, err
	}
	if err := db.AutoMigrate(); err != nil {
		db.CloseGormDB()
		return nil, nil, err
	}

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, running without caches", logger.ErrorField(err))
		db.CloseRedis()
		db.RedisClient = nil
	}

	store := settings.NewStore(
		repository.NewGormSettingsRepository(db.GormDB),
		cache.NewSettingsCache(db.RedisClient, cfg.SettingsCacheTTL),
		settings.DefaultsFromConfig(cfg),
	)

	closeFn := func() {
		if err := db.CloseRedis(); err != nil {
			logger.Warn("failed to close Redis", logger.ErrorField(err))
		}
		if err := db.CloseGormDB(); err != nil {
			logger.Warn("failed to close database", logger.ErrorField(err))
		}
	}
	return store, closeFn, nil
}
