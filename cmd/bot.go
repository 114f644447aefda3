package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wendellddr/Bot-Spotify-sub000/cache"
	"github.com/wendellddr/Bot-Spotify-sub000/config"
	"github.com/wendellddr/Bot-Spotify-sub000/core/auth"
	"github.com/wendellddr/Bot-Spotify-sub000/core/discord"
	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
	"github.com/wendellddr/Bot-Spotify-sub000/core/music"
	"github.com/wendellddr/Bot-Spotify-sub000/core/search"
	"github.com/wendellddr/Bot-Spotify-sub000/db"
	"github.com/wendellddr/Bot-Spotify-sub000/logger"
	"github.com/wendellddr/Bot-Spotify-sub000/server"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Discord bot and the dashboard (default).",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot()
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}

func runBot() error {
	cfg := loadConfig()
	defer logger.Sync()

	if cfg.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is not set")
	}
	if len(cfg.LavalinkNodes) == 0 {
		return fmt.Errorf("LAVALINK_NODES is empty")
	}

	store, closeStores, err := openSettingsStore(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	bot, err := discord.NewBot(cfg)
	if err != nil {
		return err
	}

	pool := lavalink.NewPool(nodeConfigs(cfg.LavalinkNodes), bot)
	manager := music.NewManager(music.PoolNodes(pool), store, bot, music.Options{
		Defaults:   store.Defaults(),
		IconURL:    cfg.IconURL,
		EmbedColor: cfg.EmbedColor,
	})

	pool.OnClose(func(node string, code int, reason string) {
		manager.HandleNodeClosed(node)
	})

	resolver := newResolver(cfg, pool)
	bot.Bind(manager, resolver, pool)

	if err := bot.Open(); err != nil {
		return err
	}
	defer bot.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Connect(ctx, bot.UserID())
	defer pool.Close()

	dashboard := startDashboard(cfg, manager, resolver, bot)

	logger.Info("bot is running", logger.Int("nodes", len(cfg.LavalinkNodes)))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	if dashboard != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := dashboard.Shutdown(shutdownCtx); err != nil {
			logger.Warn("dashboard forced to shut down", logger.ErrorField(err))
		}
	}
	return nil
}

func nodeConfigs(nodes []config.LavalinkNode) []lavalink.NodeConfig {
	out := make([]lavalink.NodeConfig, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, lavalink.NodeConfig{
			Name:     n.Name,
			Host:     n.Host,
			Port:     n.Port,
			Password: n.Password,
			Secure:   n.Secure,
		})
	}
	return out
}

// newResolver builds the query resolver. Spotify links are only supported
// when client credentials are configured.
func newResolver(cfg *config.Config, pool *lavalink.Pool) *search.Resolver {
	var spotify search.SpotifySource
	if cfg.SpotifyID != "" && cfg.SpotifySecret != "" {
		spotify = search.NewSpotifyClient(context.Background(), cfg.SpotifyID, cfg.SpotifySecret)
	} else {
		logger.Info("Spotify credentials not set, Spotify links are disabled")
	}
	return search.NewResolver(pool, spotify, cache.NewSearchCache(db.RedisClient, cfg.SearchCacheTTL))
}

// startDashboard starts the HTTP API when a token secret is configured.
func startDashboard(cfg *config.Config, manager *music.Manager, resolver *search.Resolver, bot *discord.Bot) *server.Server {
	if cfg.DashboardKey == "" {
		logger.Info("DASHBOARD_SECRET not set, dashboard disabled")
		return nil
	}

	presence := cache.NewPresenceCache(db.RedisClient)
	hub := server.NewHub(presence)
	manager.Subscribe(hub)

	dashboard := server.New(cfg.DashboardAddr, server.Deps{
		Engine:   manager,
		Resolver: resolver,
		Voice:    bot,
		Viewers:  presence,
		Tokens:   auth.NewTokens(cfg.DashboardKey),
		Limiter:  server.NewRateLimiter(cfg.DashboardRate, cfg.DashboardBurst),
		Hub:      hub,
	})
	dashboard.Start()
	return dashboard
}
