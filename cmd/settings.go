package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wendellddr/Bot-Spotify-sub000/core/settings"
	"github.com/wendellddr/Bot-Spotify-sub000/db"
	"github.com/wendellddr/Bot-Spotify-sub000/model"
	"github.com/wendellddr/Bot-Spotify-sub000/repository"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and change stored guild settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <guild-id>",
	Short: "Print a guild's effective settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *settings.Store) error {
			s, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(s)
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <guild-id> <key> <value>",
	Short: "Change one setting (volume, loop, autoqueue, autoleave, autopause, 247, color)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *settings.Store) error {
			if err := applySetting(ctx, store, args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Printf("%s updated for guild %s\n", args[1], args[0])
			return nil
		})
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset <guild-id>",
	Short: "Delete a guild's stored settings so the defaults apply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *settings.Store) error {
			if err := store.Reset(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Settings reset for guild %s\n", args[0])
			return nil
		})
	},
}

var (
	listLimit  int
	listOffset int
)

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List guilds with stored settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, _ *settings.Store) error {
			rows, err := repository.NewGormSettingsRepository(db.GormDB).List(ctx, listLimit, listOffset)
			if err != nil {
				return err
			}
			for _, r := range rows {
				fmt.Printf("%s\tvolume=%d loop=%s autoqueue=%t 247=%t\n",
					r.GuildID, r.Volume, r.LoopMode, r.AutoQueue, r.TwentyFourSeven)
			}
			return nil
		})
	},
}

func init() {
	settingsListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum rows to print")
	settingsListCmd.Flags().IntVar(&listOffset, "offset", 0, "rows to skip")

	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsResetCmd, settingsListCmd)
	rootCmd.AddCommand(settingsCmd)
}

func withStore(fn func(ctx context.Context, store *settings.Store) error) error {
	cfg := loadConfig()
	store, closeStores, err := openSettingsStore(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, store)
}

func applySetting(ctx context.Context, store *settings.Store, guildID, key, value string) error {
	switch strings.ToLower(key) {
	case "volume":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("volume must be a number: %w", err)
		}
		return store.SetVolume(ctx, guildID, v)
	case "loop":
		mode, err := model.ParseLoopMode(value)
		if err != nil {
			return err
		}
		return store.SetLoopMode(ctx, guildID, mode)
	case "color":
		c, err := strconv.ParseInt(strings.TrimPrefix(value, "#"), 16, 32)
		if err != nil {
			return fmt.Errorf("color must be hex: %w", err)
		}
		return store.SetEmbedColor(ctx, guildID, int(c))
	}

	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s expects true or false: %w", key, err)
	}
	switch strings.ToLower(key) {
	case "autoqueue":
		return store.SetAutoQueue(ctx, guildID, enabled)
	case "autoleave":
		return store.SetAutoLeave(ctx, guildID, enabled)
	case "autopause":
		return store.SetAutoPause(ctx, guildID, enabled)
	case "247":
		return store.SetTwentyFourSeven(ctx, guildID, enabled)
	}
	return fmt.Errorf("unknown setting %q", key)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
