package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thrivebase/thrivebase/internal/cli/client"
)

// NewProfileCmd creates the profile command
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(cmd, "/profile")
		},
	}

	cmd.AddCommand(newProfileUpdateCmd())
	return cmd
}

func newProfileUpdateCmd() *cobra.Command {
	var update client.ProfileUpdate
	var promptPassword bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change your email or password",
		Long: `Change your email or password.

Changing the password requires the current password.

Examples:
  $ thrivebase profile update --email new@example.com
  $ thrivebase profile update --change-password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if err := requireSession(a); err != nil {
				return err
			}

			if promptPassword {
				if update.CurrentPassword, err = a.Prompt.Password("Current password"); err != nil {
					return err
				}
				if update.NewPassword, err = a.Prompt.Password("New password"); err != nil {
					return err
				}
			}

			if update.Email == "" && update.NewPassword == "" {
				return fmt.Errorf("nothing to update (use --email or --new-password)")
			}

			res := a.Auth.UpdateProfile(cmd.Context(), update)
			if !res.Success {
				return fmt.Errorf("profile update failed: %s", res.Error)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "✓ Profile updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&update.Email, "email", "", "New email address")
	cmd.Flags().StringVar(&update.CurrentPassword, "current-password", "", "Current password")
	cmd.Flags().StringVar(&update.NewPassword, "new-password", "", "New password (at least 8 characters)")
	cmd.Flags().BoolVar(&promptPassword, "change-password", false, "Prompt for the current and new password")

	return cmd
}
