package auth

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPI = "http://api.thrivebase.test"

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func cookieValues(cookies []*http.Cookie) map[string]string {
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		out[c.Name] = c.Value
	}
	return out
}

func TestPersistentJar_PersistsAndRestores(t *testing.T) {
	store := NewMemoryStore()

	jar, err := NewPersistentJar(testAPI, store, zerolog.Nop())
	require.NoError(t, err)

	jar.SetCookies(mustURL(t, testAPI+"/api/v1/auth/signin"), []*http.Cookie{
		{Name: "sAccessToken", Value: "access", Path: "/"},
		{Name: "sRefreshToken", Value: "refresh", Path: "/api/v1/auth/refresh", MaxAge: 3600},
	})

	saved, err := store.Load("api.thrivebase.test")
	require.NoError(t, err)

	var stored []storedCookie
	require.NoError(t, json.Unmarshal([]byte(saved), &stored))
	assert.Len(t, stored, 2)

	restored, err := NewPersistentJar(testAPI, store, zerolog.Nop())
	require.NoError(t, err)

	root := cookieValues(restored.Cookies(mustURL(t, testAPI+"/api/v1/users/me")))
	assert.Equal(t, map[string]string{"sAccessToken": "access"}, root)

	refresh := cookieValues(restored.Cookies(mustURL(t, testAPI+"/api/v1/auth/refresh")))
	assert.Equal(t, "access", refresh["sAccessToken"])
	assert.Equal(t, "refresh", refresh["sRefreshToken"])
}

func TestPersistentJar_DeletedCookiesAreForgotten(t *testing.T) {
	store := NewMemoryStore()
	jar, err := NewPersistentJar(testAPI, store, zerolog.Nop())
	require.NoError(t, err)

	u := mustURL(t, testAPI+"/")
	jar.SetCookies(u, []*http.Cookie{{Name: "sAccessToken", Value: "access", Path: "/"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "sAccessToken", Value: "", Path: "/", MaxAge: -1}})

	assert.Empty(t, jar.Cookies(u))

	_, err = store.Load("api.thrivebase.test")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestPersistentJar_SkipsExpiredOnRestore(t *testing.T) {
	store := NewMemoryStore()
	stored := []storedCookie{
		{Name: "sAccessToken", Value: "old", Path: "/", Expires: time.Now().Add(-time.Hour)},
		{Name: "sRefreshToken", Value: "fresh", Path: "/", Expires: time.Now().Add(time.Hour)},
	}
	data, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NoError(t, store.Save("api.thrivebase.test", string(data)))

	jar, err := NewPersistentJar(testAPI, store, zerolog.Nop())
	require.NoError(t, err)

	got := cookieValues(jar.Cookies(mustURL(t, testAPI+"/")))
	assert.Equal(t, map[string]string{"sRefreshToken": "fresh"}, got)
}

func TestPersistentJar_CorruptEntryIsDiscarded(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save("api.thrivebase.test", "{not json"))

	jar, err := NewPersistentJar(testAPI, store, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, jar.Cookies(mustURL(t, testAPI+"/")))

	_, err = store.Load("api.thrivebase.test")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestPersistentJar_IgnoresOtherHosts(t *testing.T) {
	store := NewMemoryStore()
	jar, err := NewPersistentJar(testAPI, store, zerolog.Nop())
	require.NoError(t, err)

	jar.SetCookies(mustURL(t, "http://cdn.plaid.test/"), []*http.Cookie{{Name: "tracker", Value: "x"}})

	_, err = store.Load("api.thrivebase.test")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestPersistentJar_Clear(t *testing.T) {
	store := NewMemoryStore()
	jar, err := NewPersistentJar(testAPI, store, zerolog.Nop())
	require.NoError(t, err)

	u := mustURL(t, testAPI+"/")
	jar.SetCookies(u, []*http.Cookie{{Name: "sAccessToken", Value: "access", Path: "/"}})
	require.NotEmpty(t, jar.Cookies(u))

	require.NoError(t, jar.Clear())
	assert.Empty(t, jar.Cookies(u))

	_, err = store.Load("api.thrivebase.test")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestNewPersistentJar_RequiresHost(t *testing.T) {
	_, err := NewPersistentJar("not-a-url", NewMemoryStore(), zerolog.Nop())
	assert.Error(t, err)
}
