// Package router holds the client's route table and the navigation guard.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	// SignInPath is where the guard sends unauthenticated navigations
	SignInPath = "/signin"
	// HomePath is the landing page and the target of unknown paths
	HomePath = "/"
	// RedirectParam carries the original destination through sign in
	RedirectParam = "redirect"

	maxRedirects = 5
)

// ErrTooManyRedirects is returned when guards keep redirecting
var ErrTooManyRedirects = errors.New("too many redirects")

// View renders a page
type View interface {
	Render(ctx context.Context, loc Location) error
}

// ViewFunc adapts a function to View
type ViewFunc func(ctx context.Context, loc Location) error

// Render implements View
func (f ViewFunc) Render(ctx context.Context, loc Location) error {
	return f(ctx, loc)
}

// Route is an entry of the route table
type Route struct {
	Path         string
	Name         string
	View         View
	RequiresAuth bool
}

// Location is a resolved navigation target
type Location struct {
	Path     string
	Query    url.Values
	FullPath string
	Route    *Route
}

// Guard runs before a navigation completes. It returns "" to allow the
// navigation or another target to redirect to.
type Guard func(ctx context.Context, to Location) string

// SessionChecker answers whether a session exists
type SessionChecker interface {
	DoesSessionExist(ctx context.Context) (bool, error)
}

// AuthGuard lets unflagged routes through without a session check. Routes
// that require authentication need an existing session; anything else,
// including a failed check, redirects to sign in with the original path.
func AuthGuard(sessions SessionChecker, log zerolog.Logger) Guard {
	return func(ctx context.Context, to Location) string {
		if to.Route == nil || !to.Route.RequiresAuth {
			return ""
		}

		exists, err := sessions.DoesSessionExist(ctx)
		if err != nil {
			log.Error().Err(err).Str("path", to.FullPath).Msg("Auth check failed")
			return signInRedirect(to.FullPath)
		}
		if !exists {
			return signInRedirect(to.FullPath)
		}
		return ""
	}
}

// signInRedirect keeps slashes readable in the redirect value; the query
// separators of fullPath stay escaped
func signInRedirect(fullPath string) string {
	value := strings.ReplaceAll(url.QueryEscape(fullPath), "%2F", "/")
	return SignInPath + "?" + RedirectParam + "=" + value
}

// Router resolves navigation targets against a static route table
type Router struct {
	routes []Route
	guards []Guard
	log    zerolog.Logger

	mu      sync.Mutex
	current *Location
}

// New creates a router. The table is copied and never changes afterwards.
func New(routes []Route, log zerolog.Logger, guards ...Guard) *Router {
	table := make([]Route, len(routes))
	copy(table, routes)
	return &Router{
		routes: table,
		guards: guards,
		log:    log,
	}
}

// Routes returns a copy of the route table
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Current returns the last location navigated to, nil before the first navigation
func (r *Router) Current() *Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	loc := *r.current
	return &loc
}

// Navigate implements the navigator used by gateways and interceptors
func (r *Router) Navigate(ctx context.Context, target string) error {
	_, err := r.Push(ctx, target)
	return err
}

// Push resolves target, runs the guards, and renders the resulting view.
// Navigating to the current location again is a no-op.
func (r *Router) Push(ctx context.Context, target string) (Location, error) {
	for i := 0; i <= maxRedirects; i++ {
		loc, err := r.resolve(target)
		if err != nil {
			return Location{}, err
		}

		if loc.Route == nil {
			// Unknown paths fall back to home
			target = HomePath
			continue
		}

		if redirect := r.runGuards(ctx, loc); redirect != "" {
			r.log.Debug().Str("from", loc.FullPath).Str("to", redirect).Msg("Navigation redirected")
			target = redirect
			continue
		}

		if r.isCurrent(loc) {
			return loc, nil
		}

		r.mu.Lock()
		r.current = &loc
		r.mu.Unlock()

		if loc.Route.View != nil {
			if err := loc.Route.View.Render(ctx, loc); err != nil {
				return loc, fmt.Errorf("failed to render %s: %w", loc.Route.Name, err)
			}
		}
		return loc, nil
	}

	return Location{}, fmt.Errorf("navigate to %s: %w", target, ErrTooManyRedirects)
}

func (r *Router) runGuards(ctx context.Context, loc Location) string {
	for _, g := range r.guards {
		if redirect := g(ctx, loc); redirect != "" {
			return redirect
		}
	}
	return ""
}

func (r *Router) isCurrent(loc Location) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil && r.current.FullPath == loc.FullPath
}

func (r *Router) resolve(target string) (Location, error) {
	u, err := url.Parse(target)
	if err != nil {
		return Location{}, fmt.Errorf("invalid navigation target %q: %w", target, err)
	}

	path := u.Path
	if path == "" {
		path = HomePath
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}

	loc := Location{
		Path:     path,
		Query:    u.Query(),
		FullPath: path,
	}
	if u.RawQuery != "" {
		loc.FullPath = path + "?" + u.RawQuery
	}

	for i := range r.routes {
		if r.routes[i].Path == path {
			loc.Route = &r.routes[i]
			break
		}
	}
	return loc, nil
}
