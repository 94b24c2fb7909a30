package main

import (
	"fmt"
	"time"

	"notes-sync-client/pkg/jwt"

	"github.com/spf13/cobra"
)

var (
	tokenClientID string
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the local control API",
	Long: `Issue a bearer token for the local control API and the /ws endpoint.
The token is signed with JWT_SECRET; the UI passes it as "Authorization: Bearer".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.JWT.Expiration
		}

		token, err := jwt.GenerateToken(tokenClientID, ttl, cfg.JWT.Secret)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenClientID, "client", "desktop-ui", "Client id recorded in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to JWT_EXPIRATION)")
	rootCmd.AddCommand(tokenCmd)
}
