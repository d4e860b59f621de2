package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thrivebase/thrivebase/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "thrivebase",
		Short: "ThriveBase - your finances in one place",
		Long: `ThriveBase CLI - Link your bank accounts and follow your balances.

Sign in, link institutions through Plaid, and browse accounts, balances
and transactions from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(commands.FlagAPIURL, "", "ThriveBase API URL (or set THRIVEBASE_API_URL)")
	rootCmd.PersistentFlags().String(commands.FlagLogLevel, "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool(commands.FlagNoKeyring, false, "Keep the session in memory only")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "thrivebase version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewOpenCmd())
	rootCmd.AddCommand(commands.NewSignInCmd())
	rootCmd.AddCommand(commands.NewSignUpCmd())
	rootCmd.AddCommand(commands.NewSignInGoogleCmd())
	rootCmd.AddCommand(commands.NewSignOutCmd())
	rootCmd.AddCommand(commands.NewProfileCmd())
	rootCmd.AddCommand(commands.NewLinkCmd())
	rootCmd.AddCommand(commands.NewInstitutionsCmd())
	rootCmd.AddCommand(commands.NewAccountsCmd())
	rootCmd.AddCommand(commands.NewSummaryCmd())
	rootCmd.AddCommand(commands.NewTransactionsCmd())
	rootCmd.AddCommand(commands.NewRefreshCmd())
	rootCmd.AddCommand(commands.NewDisconnectCmd())
	rootCmd.AddCommand(commands.NewConfigCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
