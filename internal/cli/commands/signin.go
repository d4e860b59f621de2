package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thrivebase/thrivebase/internal/cli/app"
	"github.com/thrivebase/thrivebase/internal/cli/auth"
	"github.com/thrivebase/thrivebase/internal/cli/prompt"
)

// NewSignInCmd creates the signin command
func NewSignInCmd() *cobra.Command {
	var email, password, redirect string

	cmd := &cobra.Command{
		Use:     "signin",
		Aliases: []string{"login"},
		Short:   "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignIn(cmd, email, password, redirect)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set THRIVEBASE_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set THRIVEBASE_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&redirect, "redirect", "", "Page to open after signing in (default /dashboard)")

	return cmd
}

// NewSignUpCmd creates the signup command
func NewSignUpCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:     "signup",
		Aliases: []string{"register"},
		Short:   "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignUp(cmd, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set THRIVEBASE_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set THRIVEBASE_PASSWORD, will prompt if not provided)")

	return cmd
}

// NewSignInGoogleCmd creates the signin-google command
func NewSignInGoogleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signin-google",
		Short: "Sign in with Google in your browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			res := a.Auth.SignInWithGoogle(cmd.Context())
			if !res.Success {
				return fmt.Errorf("google sign in failed: %s", res.Error)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Continue signing in with Google in your browser.")
			return nil
		},
	}
}

// NewSignOutCmd creates the signout command
func NewSignOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "signout",
		Aliases: []string{"logout"},
		Short:   "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			a.Auth.SignOut(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Signed out")
			return nil
		},
	}
}

func runSignIn(cmd *cobra.Command, email, password, redirect string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	email, password, err = readCredentials(a.Prompt, email, password)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if redirect != "" {
		ctx = auth.WithRedirect(ctx, redirect)
	}
	return signIn(ctx, cmd, a, email, password)
}

func runSignUp(cmd *cobra.Command, email, password string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	email, password, err = readCredentials(a.Prompt, email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Creating account for %s...\n", email)
	res := a.Auth.SignUp(cmd.Context(), email, password)
	if !res.Success {
		return fmt.Errorf("sign up failed: %s", res.Error)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Account created")
	return nil
}

func signIn(ctx context.Context, cmd *cobra.Command, a *app.App, email, password string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "Signing in as %s...\n", email)

	res := a.Auth.SignIn(ctx, email, password)
	if !res.Success {
		return fmt.Errorf("sign in failed: %s", res.Error)
	}
	return nil
}

// readCredentials fills in missing credentials from the environment and
// then from interactive prompts
func readCredentials(p prompt.Prompter, email, password string) (string, string, error) {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("THRIVEBASE_EMAIL")
	}
	if password == "" {
		password = os.Getenv("THRIVEBASE_PASSWORD")
	}

	if email == "" {
		if !p.Interactive() {
			return "", "", fmt.Errorf("email is required (use --email flag or THRIVEBASE_EMAIL env var)")
		}
		var err error
		if email, err = p.Input("Email"); err != nil {
			return "", "", err
		}
	}

	if password == "" {
		if !p.Interactive() {
			return "", "", fmt.Errorf("password is required in non-interactive mode (use --password flag or THRIVEBASE_PASSWORD env var)")
		}
		var err error
		if password, err = p.Password("Password"); err != nil {
			return "", "", err
		}
	}

	return email, password, nil
}
