package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/thrivebase/thrivebase/internal/cli/app"
	"github.com/thrivebase/thrivebase/internal/cli/auth"
	"github.com/thrivebase/thrivebase/internal/cli/prompt"
	"github.com/thrivebase/thrivebase/internal/cli/userconfig"
	"github.com/thrivebase/thrivebase/internal/logger"
)

// Persistent flag names shared by every command
const (
	FlagAPIURL    = "api-url"
	FlagLogLevel  = "log-level"
	FlagNoKeyring = "no-keyring"
)

// credentialStore picks where session cookies are kept. Tests replace it.
var credentialStore = func(noKeyring bool) auth.CredentialStore {
	if noKeyring {
		return auth.NewMemoryStore()
	}
	return auth.Default
}

// prompter asks the user for input. Tests replace it.
var prompter = func() prompt.Prompter {
	return prompt.Terminal{}
}

// newApp builds the client shell for a command and loads the session once.
// This is common logic used by every command that talks to the API.
func newApp(cmd *cobra.Command) (*app.App, error) {
	apiFlag, _ := cmd.Flags().GetString(FlagAPIURL)
	level, _ := cmd.Flags().GetString(FlagLogLevel)
	noKeyring, _ := cmd.Flags().GetBool(FlagNoKeyring)

	apiURL, err := userconfig.ResolveAPIURL(apiFlag)
	if err != nil {
		return nil, err
	}

	a, err := app.New(app.Options{
		APIURL:      apiURL,
		Credentials: credentialStore(noKeyring),
		Out:         cmd.OutOrStdout(),
		Prompter:    prompter(),
		Opener:      openBrowser,
		Log:         logger.NewConsole(os.Stderr, logger.ParseLevel(level)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}

	a.Bootstrap(cmd.Context())
	return a, nil
}

// closeApp stops background servers started by the command
func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		a.Log.Warn().Err(err).Msg("Failed to shut down cleanly")
	}
}

// requireSession fails early with a hint when nobody is signed in
func requireSession(a *app.App) error {
	if !a.Session.IsAuthenticated() {
		return auth.ErrNoSession
	}
	return nil
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w\nPlease visit: %s", err, url)
	}
	return nil
}
