package cmd

import (
	"fmt"

	"github.com/SscSPs/kiosc_finance_app/internal/utils"
	"github.com/spf13/cobra"
)

var (
	tokenUserID   string
	tokenUsername string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the API",
	Long: `Issue a signed JWT for calling the API. The user id becomes the token
subject and the username is recorded in audit entries.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user-id", "", "user id (token subject)")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "username recorded in audit entries")
	_ = tokenCmd.MarkFlagRequired("user-id")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	token, err := utils.GenerateJWT(tokenUserID, tokenUsername, cfg.JWTSecret, cfg.JWTExpiryDuration, cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
