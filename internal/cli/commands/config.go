package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thrivebase/thrivebase/internal/cli/userconfig"
)

// NewConfigCmd creates the config command
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage local configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set-api-url <url>",
		Short: "Set the ThriveBase API URL",
		Long: `Set the ThriveBase API URL used by every command.

Examples:
  $ thrivebase config set-api-url https://api.thrivebase.io
  $ thrivebase config set-api-url http://localhost:8000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := userconfig.SetAPIURL(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ API URL set to %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the API URL in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiFlag, _ := cmd.Flags().GetString(FlagAPIURL)
			apiURL, err := userconfig.ResolveAPIURL(apiFlag)
			if err != nil {
				return err
			}
			path, err := userconfig.GetConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API URL:     %s\n", apiURL)
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", path)
			return nil
		},
	})

	return cmd
}
