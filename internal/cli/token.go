package cli

import (
	"fmt"
	"time"

	"github.com/DukeRupert/compliq/internal/auth"
	"github.com/spf13/cobra"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with API bearer tokens",
	}

	var (
		userID string
		email  string
		ttl    time.Duration
	)
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Sign a bearer token for a user with JWT_SECRET",
		Long: `Mint prints a token the API accepts for the given user. Use it for
support sessions and smoke tests; production tokens come from the
identity provider.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(userID)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}

			token, err := auth.MintToken(auth.Identity{UserID: id, Email: email}, cfg.JWTSecret, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(a.out, token)
			return nil
		},
	}
	mint.Flags().StringVar(&userID, "user", "", "user id (uuid)")
	mint.Flags().StringVar(&email, "email", "", "email claim")
	mint.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = mint.MarkFlagRequired("user")
	cmd.AddCommand(mint)

	return cmd
}
