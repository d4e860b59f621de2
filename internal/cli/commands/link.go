package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLinkCmd creates the link command
func NewLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link a bank account with Plaid",
		Long: `Link a bank account with Plaid.

Plaid Link opens in your browser. The command waits until you finish or
close the widget.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(cmd)
		},
	}

	return cmd
}

func runLink(cmd *cobra.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := requireSession(a); err != nil {
		return err
	}

	if err := a.StartLinkPage(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Opening Plaid Link in your browser...")

	ls, err := a.Bank.InitLink(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Waiting for Plaid Link to finish (Ctrl+C to cancel)...")
	res, err := ls.Wait(cmd.Context())
	if err != nil {
		return fmt.Errorf("linking cancelled: %w", err)
	}

	switch {
	case res.Err != nil:
		return res.Err
	case res.Exchange != nil:
		fmt.Fprintf(out, "✓ Linked %s (%d accounts)\n", res.Exchange.InstitutionName, res.Exchange.AccountsAdded)
	case res.Exit != nil && res.Exit.Err != nil:
		return fmt.Errorf("plaid link exited: %w", res.Exit.Err)
	default:
		fmt.Fprintln(out, "Plaid Link closed without linking an account.")
	}
	return nil
}
