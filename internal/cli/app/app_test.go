package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrivebase/thrivebase/internal/cli/auth"
	"github.com/thrivebase/thrivebase/internal/cli/client"
	"github.com/thrivebase/thrivebase/internal/cli/identity"
)

// mockAPIServer serves the endpoints the client shell touches
func mockAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	accessToken := func() string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		s, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return s
	}

	authed := func(r *http.Request) bool {
		_, err := r.Cookie(identity.AccessCookie)
		return err == nil
	}

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(client.PathSignIn, func(w http.ResponseWriter, r *http.Request) {
		var creds client.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "correct-horse" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: identity.AccessCookie, Value: accessToken(), Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	})
	mux.HandleFunc(client.PathCurrentUser, func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorised"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "user-1", "email": "jane@example.com"})
	})
	mux.HandleFunc(client.PathInstitutions, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []client.Institution{{ItemID: "item-1", InstitutionName: "Chase", Status: "active"}})
	})
	mux.HandleFunc(client.PathAccountSummary, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"accounts": []any{},
			"summary":  map[string]any{"total_current_balance": 0, "total_available_balance": 0, "total_accounts": 0},
		})
	})
	mux.HandleFunc(client.PathAccounts, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorised"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, apiURL string) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	a, err := New(Options{
		APIURL:      apiURL,
		Credentials: auth.NewMemoryStore(),
		Out:         &out,
		Log:         zerolog.Nop(),
	})
	require.NoError(t, err)
	return a, &out
}

func TestApp_GuardRedirectsWithoutSession(t *testing.T) {
	srv := mockAPIServer(t)
	a, out := newTestApp(t, srv.URL)
	a.Bootstrap(context.Background())

	loc, err := a.Router.Push(context.Background(), "/dashboard")
	require.NoError(t, err)

	assert.Equal(t, "/signin", loc.Path)
	assert.Equal(t, "/dashboard", loc.Query.Get("redirect"))
	assert.Contains(t, out.String(), "thrivebase signin --redirect /dashboard")
	assert.False(t, a.Session.IsAuthenticated())
}

func TestApp_SignInLandsOnRedirect(t *testing.T) {
	srv := mockAPIServer(t)
	a, out := newTestApp(t, srv.URL)
	a.Bootstrap(context.Background())

	ctx := auth.WithRedirect(context.Background(), "/dashboard")
	res := a.Auth.SignIn(ctx, "jane@example.com", "correct-horse")
	require.True(t, res.Success, res.Error)

	assert.True(t, a.Session.IsAuthenticated())
	assert.Equal(t, "jane@example.com", a.Session.User().Email())
	assert.Equal(t, "/dashboard", a.Router.Current().Path)
	assert.Contains(t, out.String(), "Dashboard - jane@example.com")
	assert.Contains(t, out.String(), "Chase")
}

func TestApp_SessionSurvivesRestart(t *testing.T) {
	srv := mockAPIServer(t)
	store := auth.NewMemoryStore()

	first, err := New(Options{APIURL: srv.URL, Credentials: store, Out: &bytes.Buffer{}, Log: zerolog.Nop()})
	require.NoError(t, err)
	require.True(t, first.Auth.SignIn(context.Background(), "jane@example.com", "correct-horse").Success)

	second, err := New(Options{APIURL: srv.URL, Credentials: store, Out: &bytes.Buffer{}, Log: zerolog.Nop()})
	require.NoError(t, err)
	second.Bootstrap(context.Background())

	assert.True(t, second.Session.IsAuthenticated())
	assert.Equal(t, "user-1", second.Session.User().ID())
}

func TestApp_BadCredentials(t *testing.T) {
	srv := mockAPIServer(t)
	a, _ := newTestApp(t, srv.URL)

	res := a.Auth.SignIn(context.Background(), "jane@example.com", "wrong")

	assert.Equal(t, auth.Result{Error: "Invalid email or password"}, res)
	assert.False(t, a.Session.IsAuthenticated())
}

func TestApp_UnauthorizedResponseNavigatesToSignIn(t *testing.T) {
	srv := mockAPIServer(t)
	a, out := newTestApp(t, srv.URL)

	accounts := a.Bank.Accounts(context.Background())

	assert.Empty(t, accounts)
	require.NotNil(t, a.Router.Current())
	assert.Equal(t, "/signin", a.Router.Current().Path)
	assert.Contains(t, out.String(), "Sign in required")
}

func TestApp_SignOutReturnsHome(t *testing.T) {
	srv := mockAPIServer(t)
	a, _ := newTestApp(t, srv.URL)
	require.True(t, a.Auth.SignIn(context.Background(), "jane@example.com", "correct-horse").Success)

	// The mock has no sign out endpoint; local state is reset regardless
	a.Auth.SignOut(context.Background())

	assert.False(t, a.Session.IsAuthenticated())
	assert.Nil(t, a.Session.User())
	assert.Equal(t, "/", a.Router.Current().Path)

	exists, err := a.Identity.DoesSessionExist(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
}
