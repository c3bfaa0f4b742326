package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/campus-notifier/internal/credential"
	"github.com/nhle/campus-notifier/internal/gateway"
)

var loginToken string

// loginCmd verifies a bearer token against the gateway and stores it in
// the OS keyring.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the gateway token issued by the campus sign-in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token := strings.TrimSpace(loginToken)
		if token == "" {
			err := huh.NewInput().
				Title("Gateway token").
				Description("Paste the bearer token from the campus portal.").
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Run()
			if err != nil {
				return fmt.Errorf("reading token: %w", err)
			}
			token = strings.TrimSpace(token)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		unread, err := newClient(gateway.StaticToken(token)).UnreadCount(ctx)
		if err != nil {
			if gateway.IsAuthError(err) {
				return fmt.Errorf("the gateway rejected this token: %w", err)
			}
			return fmt.Errorf("verifying token: %w", err)
		}

		tokens, err := credential.Open()
		if err != nil {
			return err
		}
		if err := tokens.Save(token); err != nil {
			return err
		}

		fmt.Printf("✓ Logged in. You have %d unread notifications.\n", unread)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored gateway token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := credential.Open()
		if err != nil {
			return err
		}
		if err := tokens.Clear(); err != nil {
			return err
		}
		fmt.Println("✓ Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "bearer token (prompted when omitted)")
}
