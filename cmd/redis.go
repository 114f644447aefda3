package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wendellddr/Bot-Spotify-sub000/cache"
	"github.com/wendellddr/Bot-Spotify-sub000/db"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis connection",
	Long:  `Connects to Redis, runs a write/read/delete round trip and prints search cache statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		fmt.Printf("Redis: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		if err := db.ConnectRedis(cfg); err != nil {
			return err
		}
		defer db.CloseRedis()
		fmt.Println("Connected.")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := db.TestRedis(ctx); err != nil {
			return fmt.Errorf("redis round trip failed: %w", err)
		}
		fmt.Println("Write/read/delete round trip OK.")

		hits, misses, err := cache.NewSearchCache(db.RedisClient, cfg.SearchCacheTTL).Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to read search cache stats: %w", err)
		}
		fmt.Printf("Search cache: %d hits, %d misses\n", hits, misses)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
