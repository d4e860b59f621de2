package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// PersistentJar is a cookie jar whose cookies for the API host survive
// process restarts through a CredentialStore.
type PersistentJar struct {
	mu      sync.Mutex
	inner   *cookiejar.Jar
	base    *url.URL
	store   CredentialStore
	cookies map[string]storedCookie
	log     zerolog.Logger
	now     func() time.Time
}

// NewPersistentJar creates a jar for baseURL and restores any saved cookies
func NewPersistentJar(baseURL string, store CredentialStore, log zerolog.Logger) (*PersistentJar, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", baseURL, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: missing host", baseURL)
	}

	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	j := &PersistentJar{
		inner:   inner,
		base:    base,
		store:   store,
		cookies: make(map[string]storedCookie),
		log:     log,
		now:     time.Now,
	}

	if err := j.restore(); err != nil {
		// A corrupt entry only costs a sign in
		log.Warn().Err(err).Msg("Discarding stored session")
		_ = store.Delete(base.Host)
	}

	return j, nil
}

// Cookies implements http.CookieJar
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// SetCookies implements http.CookieJar and persists cookies set by the API host
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner.SetCookies(u, cookies)
	if u.Host != j.base.Host {
		return
	}

	now := j.now()
	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		key := c.Name + ";" + path

		expired := c.MaxAge < 0 || c.Value == "" || (!c.Expires.IsZero() && !c.Expires.After(now))
		if expired {
			delete(j.cookies, key)
			continue
		}

		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		j.cookies[key] = storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     path,
			Expires:  expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}

	if err := j.persistLocked(); err != nil {
		j.log.Warn().Err(err).Msg("Failed to persist session cookies")
	}
}

// Clear drops every cookie and the stored session
func (j *PersistentJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	inner, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to reset cookie jar: %w", err)
	}
	j.inner = inner
	j.cookies = make(map[string]storedCookie)

	return j.store.Delete(j.base.Host)
}

func (j *PersistentJar) restore() error {
	data, err := j.store.Load(j.base.Host)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return err
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return fmt.Errorf("failed to parse stored session: %w", err)
	}

	now := j.now()
	for _, sc := range stored {
		if !sc.Expires.IsZero() && !sc.Expires.After(now) {
			continue
		}
		j.cookies[sc.Name+";"+sc.Path] = sc
		j.inner.SetCookies(j.base, []*http.Cookie{{
			Name:     sc.Name,
			Value:    sc.Value,
			Path:     sc.Path,
			Expires:  sc.Expires,
			Secure:   sc.Secure,
			HttpOnly: sc.HttpOnly,
		}})
	}

	return nil
}

func (j *PersistentJar) persistLocked() error {
	if len(j.cookies) == 0 {
		return j.store.Delete(j.base.Host)
	}

	stored := make([]storedCookie, 0, len(j.cookies))
	for _, sc := range j.cookies {
		stored = append(stored, sc)
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return j.store.Save(j.base.Host, string(data))
}
