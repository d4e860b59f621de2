package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/thrivebase/thrivebase/internal/cli/client"
	"github.com/thrivebase/thrivebase/internal/cli/session"
)

const (
	defaultPostLoginPath = "/dashboard"
	defaultLandingPath   = "/"

	fallbackSignInError  = "Invalid credentials"
	fallbackSignUpError  = "Email already exists"
	fallbackProfileError = "Failed to update profile"
)

// API is the subset of the ThriveBase API used for authentication
type API interface {
	SignIn(ctx context.Context, creds client.Credentials) error
	SignUp(ctx context.Context, creds client.Credentials) error
	GoogleAuthURL(ctx context.Context) (string, error)
	GetCurrentUser(ctx context.Context) (map[string]any, error)
	UpdateProfile(ctx context.Context, update client.ProfileUpdate) error
}

// SessionProvider answers whether a session exists and ends it
type SessionProvider interface {
	DoesSessionExist(ctx context.Context) (bool, error)
	SignOut(ctx context.Context) error
}

// Navigator moves the application to another route
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// URLOpener performs a full navigation away from the application
type URLOpener func(url string) error

// Result is the uniform outcome of every auth operation
type Result struct {
	Success bool
	Error   string
}

func success() Result {
	return Result{Success: true}
}

func failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

type redirectKey struct{}

// WithRedirect makes a successful sign in land on path instead of the dashboard
func WithRedirect(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, redirectKey{}, path)
}

func redirectFrom(ctx context.Context) string {
	path, _ := ctx.Value(redirectKey{}).(string)
	return path
}

// GatewayOption configures a Gateway
type GatewayOption func(*Gateway)

// WithOpener sets the function used to follow OAuth redirect URLs
func WithOpener(open URLOpener) GatewayOption {
	return func(g *Gateway) {
		g.open = open
	}
}

// WithPostLoginPath overrides the default post-login destination
func WithPostLoginPath(path string) GatewayOption {
	return func(g *Gateway) {
		g.postLoginPath = path
	}
}

// Gateway wraps the authentication endpoints and owns every mutation of the
// session store. Calls that mutate the session are serialized.
type Gateway struct {
	api      API
	identity SessionProvider
	store    *session.Store
	nav      Navigator
	open     URLOpener
	validate *validator.Validate
	log      zerolog.Logger

	postLoginPath string
	landingPath   string

	mu sync.Mutex
}

// NewGateway creates an auth gateway
func NewGateway(api API, identity SessionProvider, store *session.Store, nav Navigator, log zerolog.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		api:           api,
		identity:      identity,
		store:         store,
		nav:           nav,
		validate:      validator.New(),
		log:           log,
		postLoginPath: defaultPostLoginPath,
		landingPath:   defaultLandingPath,
		open: func(url string) error {
			return fmt.Errorf("no browser available, open %s manually", url)
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Session returns the current session state
func (g *Gateway) Session() session.Session {
	return g.store.Snapshot()
}

// CheckAuthStatus refreshes the session store. Any failure leaves the
// store unauthenticated; it never reports an error.
func (g *Gateway) CheckAuthStatus(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkAuthStatus(ctx)
}

func (g *Gateway) checkAuthStatus(ctx context.Context) {
	exists, err := g.identity.DoesSessionExist(ctx)
	if err != nil {
		g.log.Error().Err(err).Msg("Error checking auth status")
		g.store.SetAuthenticated(false)
		return
	}

	g.store.SetAuthenticated(exists)
	if exists {
		g.fetchUser(ctx)
	}
}

func (g *Gateway) fetchUser(ctx context.Context) {
	profile, err := g.api.GetCurrentUser(ctx)
	if err != nil {
		g.log.Error().Err(err).Msg("Error fetching user info")
		return
	}
	g.store.SetUser(profile)
}

// SignIn authenticates with email and password. On success the session is
// refreshed and the application navigates to the post-login destination.
func (g *Gateway) SignIn(ctx context.Context, email, password string) Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.signIn(ctx, email, password)
}

func (g *Gateway) signIn(ctx context.Context, email, password string) Result {
	creds := client.Credentials{Email: email, Password: password}
	if msg := g.validationMessage(creds); msg != "" {
		return failure(msg)
	}

	if err := g.api.SignIn(ctx, creds); err != nil {
		return g.failed(err, fallbackSignInError, "Sign in error")
	}

	g.checkAuthStatus(ctx)

	destination := redirectFrom(ctx)
	if destination == "" {
		destination = g.postLoginPath
	}
	g.navigate(ctx, destination)

	return success()
}

// SignUp registers a new account and then signs in with the same credentials
func (g *Gateway) SignUp(ctx context.Context, email, password string) Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	creds := client.Credentials{Email: email, Password: password}
	if msg := g.validationMessage(creds); msg != "" {
		return failure(msg)
	}

	if err := g.api.SignUp(ctx, creds); err != nil {
		return g.failed(err, fallbackSignUpError, "Sign up error")
	}

	return g.signIn(ctx, email, password)
}

// SignInWithGoogle fetches the provider URL and hands it to the opener
func (g *Gateway) SignInWithGoogle(ctx context.Context) Result {
	url, err := g.api.GoogleAuthURL(ctx)
	if err != nil {
		g.log.Error().Err(err).Msg("Google sign in error")
		return failure(err.Error())
	}

	if err := g.open(url); err != nil {
		g.log.Error().Err(err).Msg("Google sign in error")
		return failure(err.Error())
	}

	return success()
}

// SignOut ends the session. Remote failures are logged and never prevent
// the local state from being reset.
func (g *Gateway) SignOut(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.identity.SignOut(ctx); err != nil {
		g.log.Error().Err(err).Msg("Sign out error")
	}

	g.store.Clear()
	g.navigate(ctx, g.landingPath)
}

// UpdateProfile changes email and/or password, then refreshes the cached profile
func (g *Gateway) UpdateProfile(ctx context.Context, update client.ProfileUpdate) Result {
	if msg := g.validationMessage(update); msg != "" {
		return failure(msg)
	}

	if err := g.api.UpdateProfile(ctx, update); err != nil {
		if apiErr, ok := client.AsAPIError(err); ok {
			msg := apiErr.Detail
			if msg == "" {
				msg = apiErr.Message
			}
			if msg == "" {
				msg = fallbackProfileError
			}
			return failure(msg)
		}
		g.log.Error().Err(err).Msg("Update profile error")
		return failure(err.Error())
	}

	g.mu.Lock()
	g.fetchUser(ctx)
	g.mu.Unlock()

	return success()
}

// failed converts an API or transport error into a Result
func (g *Gateway) failed(err error, fallback, logMsg string) Result {
	if apiErr, ok := client.AsAPIError(err); ok {
		if apiErr.Message != "" {
			return failure(apiErr.Message)
		}
		return failure(fallback)
	}

	g.log.Error().Err(err).Msg(logMsg)
	return failure(err.Error())
}

func (g *Gateway) navigate(ctx context.Context, target string) {
	if g.nav == nil {
		return
	}
	if err := g.nav.Navigate(ctx, target); err != nil {
		g.log.Warn().Err(err).Str("target", target).Msg("Navigation failed")
	}
}

// validationMessage returns a user facing message for the first invalid field
func (g *Gateway) validationMessage(v any) string {
	err := g.validate.Struct(v)
	if err == nil {
		return ""
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	field := humanize(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_with":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// humanize turns CurrentPassword into "Current password"
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
