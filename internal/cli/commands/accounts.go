package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thrivebase/thrivebase/internal/cli/app"
	"github.com/thrivebase/thrivebase/internal/cli/views"
)

// NewInstitutionsCmd creates the institutions command
func NewInstitutionsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "institutions",
		Short: "List connected institutions",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := views.ParseFormat(output)
			if err != nil {
				return err
			}
			return withSession(cmd, func(a *app.App) error {
				institutions := a.Bank.ConnectedInstitutions(cmd.Context())
				warnOnError(a)
				if format != views.FormatTable {
					return views.Encode(cmd.OutOrStdout(), format, institutions)
				}
				return views.PrintInstitutions(cmd.OutOrStdout(), institutions)
			})
		},
	}

	addOutputFlag(cmd, &output)

	return cmd
}

// NewAccountsCmd creates the accounts command
func NewAccountsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"ls"},
		Short:   "List linked accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := views.ParseFormat(output)
			if err != nil {
				return err
			}
			return withSession(cmd, func(a *app.App) error {
				accounts := a.Bank.Accounts(cmd.Context())
				warnOnError(a)
				if format != views.FormatTable {
					return views.Encode(cmd.OutOrStdout(), format, accounts)
				}
				return views.PrintAccounts(cmd.OutOrStdout(), accounts)
			})
		},
	}

	addOutputFlag(cmd, &output)

	return cmd
}

// NewSummaryCmd creates the summary command
func NewSummaryCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show balances across all linked accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := views.ParseFormat(output)
			if err != nil {
				return err
			}
			return withSession(cmd, func(a *app.App) error {
				summary := a.Bank.AccountSummary(cmd.Context())
				warnOnError(a)
				if format != views.FormatTable {
					return views.Encode(cmd.OutOrStdout(), format, summary)
				}
				return views.PrintSummary(cmd.OutOrStdout(), summary)
			})
		},
	}

	addOutputFlag(cmd, &output)

	return cmd
}

// NewTransactionsCmd creates the transactions command
func NewTransactionsCmd() *cobra.Command {
	var accountID, output string
	var pick bool

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List transactions, optionally for one account",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := views.ParseFormat(output)
			if err != nil {
				return err
			}
			return withSession(cmd, func(a *app.App) error {
				ctx := cmd.Context()
				if pick {
					account, err := a.Prompt.SelectAccount(a.Bank.Accounts(ctx))
					if err != nil {
						return err
					}
					accountID = account.ID
				}

				transactions := a.Bank.Transactions(ctx, accountID)
				warnOnError(a)
				if format != views.FormatTable {
					return views.Encode(cmd.OutOrStdout(), format, transactions)
				}
				return views.PrintTransactions(cmd.OutOrStdout(), transactions)
			})
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Only show transactions of this account ID")
	cmd.Flags().BoolVar(&pick, "pick", false, "Pick the account interactively")
	cmd.MarkFlagsMutuallyExclusive("account", "pick")
	addOutputFlag(cmd, &output)

	return cmd
}

// NewRefreshCmd creates the refresh command
func NewRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <item-id>",
		Short: "Refresh balances of one connected institution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(a *app.App) error {
				update, err := a.Bank.UpdateAccountBalances(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if update.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), update.Message)
				}
				return views.PrintAccounts(cmd.OutOrStdout(), update.Accounts)
			})
		},
	}
}

// NewDisconnectCmd creates the disconnect command
func NewDisconnectCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "disconnect <item-id>",
		Short: "Disconnect a linked institution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(a *app.App) error {
				itemID := args[0]
				if !yes {
					ok, err := a.Prompt.Confirm(fmt.Sprintf("Disconnect %s and delete its accounts", itemID))
					if err != nil {
						return fmt.Errorf("%w (use --yes to skip confirmation)", err)
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
						return nil
					}
				}

				if err := a.Bank.Disconnect(cmd.Context(), itemID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Disconnected %s\n", itemID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")

	return cmd
}

// withSession runs fn with a bootstrapped app that has a session
func withSession(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := requireSession(a); err != nil {
		return err
	}
	return fn(a)
}

func addOutputFlag(cmd *cobra.Command, output *string) {
	cmd.Flags().StringVarP(output, "output", "o", views.FormatTable, "Output format: table, json, yaml")
}

func warnOnError(a *app.App) {
	if err := a.Bank.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}
