// Package identity answers session questions against the ThriveBase auth API.
//
// It uses its own HTTP client that shares the session cookie jar with the API
// client but bypasses the interceptor chain, so checking for a session never
// triggers a sign in redirect on its own.
package identity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const (
	// AccessCookie carries the short-lived access token
	AccessCookie = "sAccessToken"
	// RefreshCookie carries the refresh token; scoped to the refresh path
	RefreshCookie = "sRefreshToken"

	refreshPath = "/api/v1/auth/refresh"
	signOutPath = "/api/v1/auth/signout"

	// expiryLeeway treats tokens this close to expiry as already expired
	expiryLeeway = 10 * time.Second
)

// Jar is the cookie jar shared with the API client
type Jar interface {
	http.CookieJar
	Clear() error
}

// Provider implements session existence checks and sign out
type Provider struct {
	baseURL    string
	httpClient *http.Client
	jar        Jar
	log        zerolog.Logger
	now        func() time.Time
}

// New creates a provider for the API at baseURL
func New(baseURL string, jar Jar, log zerolog.Logger) *Provider {
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second, Jar: jar},
		jar:        jar,
		log:        log,
		now:        time.Now,
	}
}

// DoesSessionExist reports whether the jar holds a usable session. A valid
// access token is enough; otherwise the refresh token is traded for a new one.
func (p *Provider) DoesSessionExist(ctx context.Context) (bool, error) {
	if p.accessTokenValid() {
		return true, nil
	}

	if p.cookie(refreshPath, RefreshCookie) == nil {
		return false, nil
	}

	resp, err := p.post(ctx, refreshPath)
	if err != nil {
		return false, fmt.Errorf("failed to refresh session: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		p.log.Debug().Msg("Session refreshed")
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return false, nil
	default:
		return false, fmt.Errorf("session refresh failed with status %d", resp.StatusCode)
	}
}

// SignOut revokes the session server side and always clears local cookies
func (p *Provider) SignOut(ctx context.Context) error {
	var remoteErr error

	resp, err := p.post(ctx, signOutPath)
	if err != nil {
		remoteErr = fmt.Errorf("failed to sign out: %w", err)
	} else {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 300 && resp.StatusCode != http.StatusUnauthorized {
			remoteErr = fmt.Errorf("sign out failed with status %d", resp.StatusCode)
		}
	}

	if err := p.jar.Clear(); err != nil {
		p.log.Warn().Err(err).Msg("Failed to clear stored session")
	}

	return remoteErr
}

func (p *Provider) accessTokenValid() bool {
	c := p.cookie("/", AccessCookie)
	if c == nil {
		return false
	}

	// The server verifies the signature; only the expiry matters here
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Value, claims); err != nil {
		p.log.Debug().Err(err).Msg("Unreadable access token")
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.After(p.now().Add(expiryLeeway))
}

func (p *Provider) cookie(path, name string) *http.Cookie {
	req, err := http.NewRequest(http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil
	}
	for _, c := range p.jar.Cookies(req.URL) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (p *Provider) post(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return p.httpClient.Do(req)
}
