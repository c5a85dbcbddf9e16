package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"taskflow/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a bearer token for an active user",
	Long: `Mint a signed bearer token for an existing active user. The token is
signed with jwt_secret and expires after token_ttl.

Examples:
  TASKFLOW_JWT_SECRET=s3cret taskflow token 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}

		cfg, store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := store.GetUser(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !user.Active {
			return fmt.Errorf("user %d is inactive", id)
		}

		token, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL).Issue(user)
		if err != nil {
			return fmt.Errorf("issuing token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("db", "data/taskflow.db", "Path to sqlite database file")
	rootCmd.AddCommand(tokenCmd)
}
