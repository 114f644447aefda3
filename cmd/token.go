package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wendellddr/Bot-Spotify-sub000/core/auth"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <discord-user-id>",
	Short: "Issue a dashboard token for a Discord user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		token, err := auth.NewTokens(cfg.DashboardKey).GenerateToken(args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 7*24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
