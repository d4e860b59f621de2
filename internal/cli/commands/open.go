package commands

import (
	"github.com/spf13/cobra"

	"github.com/thrivebase/thrivebase/internal/cli/auth"
	"github.com/thrivebase/thrivebase/internal/cli/router"
)

// NewOpenCmd creates the open command
func NewOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open [path]",
		Short: "Open a page, e.g. /dashboard or /profile",
		Long: `Open a page of the application.

Pages that require authentication redirect to sign in when no session
exists. In an interactive terminal you are asked for your credentials and
taken to the page you asked for afterwards.

Examples:
  $ thrivebase open               # Home
  $ thrivebase open /dashboard
  $ thrivebase open /privacy`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := router.HomePath
			if len(args) > 0 {
				path = args[0]
			}
			return runOpen(cmd, path)
		},
	}

	return cmd
}

func runOpen(cmd *cobra.Command, path string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := cmd.Context()
	loc, err := a.Router.Push(ctx, path)
	if err != nil {
		return err
	}

	redirect := loc.Query.Get(router.RedirectParam)
	if loc.Path != router.SignInPath || redirect == "" || !a.Prompt.Interactive() {
		return nil
	}

	email, password, err := readCredentials(a.Prompt, "", "")
	if err != nil {
		return err
	}
	return signIn(auth.WithRedirect(ctx, redirect), cmd, a, email, password)
}
