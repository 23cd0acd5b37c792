package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietddude/shiftfetch/internal/core/config"
	"github.com/vietddude/shiftfetch/internal/core/domain"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the stored session tokens",
}

var sessionSetCmd = &cobra.Command{
	Use:   "set [access_token] [refresh_token]",
	Short: "Store a token pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePersistentTokens(appCfg); err != nil {
			return err
		}
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		pair := domain.TokenPair{AccessToken: args[0], RefreshToken: args[1]}
		if err := app.Tokens().SetTokens(ctx, pair); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Session tokens stored")
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored tokens, masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		access, err := app.Tokens().AccessToken(ctx)
		if err != nil {
			return err
		}
		refresh, err := app.Tokens().RefreshToken(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session:       %s\n", appCfg.Tokens.SessionID)
		fmt.Fprintf(cmd.OutOrStdout(), "access token:  %s\n", mask(access))
		fmt.Fprintf(cmd.OutOrStdout(), "refresh token: %s\n", mask(refresh))
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Log out by clearing the stored tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePersistentTokens(appCfg); err != nil {
			return err
		}
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Tokens().Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Session cleared")
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionSetCmd, sessionShowCmd, sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}

// requirePersistentTokens rejects changes that would vanish with the process.
func requirePersistentTokens(cfg *config.AppConfig) error {
	if cfg.Tokens.Backend == config.TokenBackendMemory {
		return fmt.Errorf("tokens.backend is memory, so tokens do not outlive this command; " +
			"seed tokens.access_token and tokens.refresh_token or use the redis or postgres backend")
	}
	return nil
}

func mask(token string) string {
	switch {
	case token == "":
		return "(none)"
	case len(token) <= 8:
		return "********"
	default:
		return token[:4] + "..." + token[len(token)-4:]
	}
}
