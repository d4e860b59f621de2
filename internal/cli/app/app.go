// Package app wires the client shell together: session store, API client
// with its interceptors, gateways, and the router.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/thrivebase/thrivebase/internal/cli/auth"
	"github.com/thrivebase/thrivebase/internal/cli/banklink"
	"github.com/thrivebase/thrivebase/internal/cli/client"
	"github.com/thrivebase/thrivebase/internal/cli/identity"
	"github.com/thrivebase/thrivebase/internal/cli/linkpage"
	"github.com/thrivebase/thrivebase/internal/cli/prompt"
	"github.com/thrivebase/thrivebase/internal/cli/router"
	"github.com/thrivebase/thrivebase/internal/cli/scriptloader"
	"github.com/thrivebase/thrivebase/internal/cli/session"
	"github.com/thrivebase/thrivebase/internal/cli/views"
)

const defaultWebsiteURL = "https://thrivebase.io"

// Opener shows a URL to the user
type Opener func(url string) error

// Options configures the application
type Options struct {
	APIURL      string
	Credentials auth.CredentialStore
	Out         io.Writer
	Prompter    prompt.Prompter
	Opener      Opener
	HTTPClient  *http.Client
	WebsiteURL  string
	Log         zerolog.Logger
}

// App is a fully wired client shell
type App struct {
	Session  *session.Store
	Jar      *auth.PersistentJar
	Client   *client.Client
	Identity *identity.Provider
	Auth     *auth.Gateway
	Bank     *banklink.Gateway
	Page     *linkpage.Page
	Router   *router.Router
	Prompt   prompt.Prompter
	Out      io.Writer
	Log      zerolog.Logger

	pageStarted bool
}

// navigatorFunc defers to the router once it exists
type navigatorFunc func(ctx context.Context, target string) error

func (f navigatorFunc) Navigate(ctx context.Context, target string) error {
	return f(ctx, target)
}

// New builds the application. The interceptor chain is registered exactly
// once, here, on the client every gateway shares.
func New(opts Options) (*App, error) {
	if opts.Credentials == nil {
		opts.Credentials = auth.Default
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Prompter == nil {
		opts.Prompter = prompt.Terminal{}
	}
	if opts.Opener == nil {
		opts.Opener = func(url string) error {
			return fmt.Errorf("cannot open %s", url)
		}
	}
	if opts.WebsiteURL == "" {
		opts.WebsiteURL = defaultWebsiteURL
	}

	jar, err := auth.NewPersistentJar(opts.APIURL, opts.Credentials, opts.Log)
	if err != nil {
		return nil, err
	}

	a := &App{
		Session:  session.NewStore(),
		Jar:      jar,
		Identity: identity.New(opts.APIURL, jar, opts.Log),
		Prompt:   opts.Prompter,
		Out:      opts.Out,
		Log:      opts.Log,
	}

	nav := navigatorFunc(func(ctx context.Context, target string) error {
		return a.Router.Navigate(ctx, target)
	})

	clientOpts := []client.Option{
		client.WithCookieJar(jar),
		client.WithMiddleware(
			client.Unauthorized(nav, router.SignInPath, opts.Log),
			client.Logging(opts.Log),
		),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, client.WithHTTPClient(opts.HTTPClient))
	}
	a.Client = client.New(opts.APIURL, clientOpts...)

	a.Auth = auth.NewGateway(a.Client, a.Identity, a.Session, nav, opts.Log,
		auth.WithOpener(auth.URLOpener(opts.Opener)),
	)

	a.Page = linkpage.New(linkpage.Opener(opts.Opener), opts.Log)
	a.Bank = banklink.NewGateway(a.Client, scriptloader.New(a.Page), a.Page, opts.Log)

	pages := &views.Pages{
		Out:        opts.Out,
		Session:    a.Session,
		Bank:       a.Bank,
		WebsiteURL: opts.WebsiteURL,
	}
	a.Router = router.New(router.DefaultRoutes(pages.Views()), opts.Log, router.AuthGuard(a.Identity, opts.Log))

	return a, nil
}

// Bootstrap loads the session state once at startup
func (a *App) Bootstrap(ctx context.Context) {
	a.Auth.CheckAuthStatus(ctx)
	s := a.Session.Snapshot()
	a.Log.Debug().Bool("authenticated", s.Authenticated).Str("user", s.User.Email()).Msg("Session loaded")
}

// StartLinkPage starts the local page hosting the Plaid widget
func (a *App) StartLinkPage() error {
	if a.pageStarted {
		return nil
	}
	if err := a.Page.Start(); err != nil {
		return err
	}
	a.pageStarted = true
	return nil
}

// Close releases background resources
func (a *App) Close(ctx context.Context) error {
	if !a.pageStarted {
		return nil
	}
	return a.Page.Shutdown(ctx)
}
