package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/thrivebase/thrivebase/internal/auth"
	"github.com/thrivebase/thrivebase/internal/config"
	"github.com/thrivebase/thrivebase/internal/models"
	"github.com/thrivebase/thrivebase/internal/plaid"
)

type stubPlaid struct {
	removed []string
}

func (p *stubPlaid) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	return "link-sandbox-" + userID, nil
}

func (p *stubPlaid) ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.Exchange, error) {
	return &plaid.Exchange{AccessToken: "access-" + publicToken, ItemID: "item-" + publicToken}, nil
}

func (p *stubPlaid) GetItem(ctx context.Context, accessToken string) (*plaid.Item, error) {
	return &plaid.Item{InstitutionID: "ins_1"}, nil
}

func (p *stubPlaid) InstitutionName(ctx context.Context, institutionID string) (string, error) {
	return "First Platypus Bank", nil
}

func (p *stubPlaid) GetAccounts(ctx context.Context, accessToken string) ([]plaid.Account, error) {
	current := decimal.RequireFromString("110")
	available := decimal.RequireFromString("100")
	return []plaid.Account{
		{AccountID: "acc-checking", Name: "Plaid Checking", Type: "depository", Subtype: "checking",
			Balances: plaid.Balances{Current: &current, Available: &available, ISOCurrencyCode: "USD"}},
		{AccountID: "acc-card", Name: "Plaid Credit Card", Type: "credit",
			Balances: plaid.Balances{Current: &current, ISOCurrencyCode: "USD"}},
	}, nil
}

func (p *stubPlaid) RemoveItem(ctx context.Context, accessToken string) error {
	p.removed = append(p.removed, accessToken)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Addr:        ":0",
			CORSOrigins: []string{"http://localhost:5173"},
			WebsiteURL:  "http://localhost:5173",
		},
		Auth: config.AuthConfig{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		EncryptionKey: "test-encryption-key",
	}
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) (*Server, *stubPlaid) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	p := &stubPlaid{}
	s, err := NewWithDB(db, cfg, zerolog.Nop(), "test", append([]Option{WithPlaid(p)}, opts...)...)
	require.NoError(t, err)
	return s, p
}

func doRequest(s *Server, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// signUp creates a user and returns its id with both session cookies
func signUp(t *testing.T, s *Server, email string) (string, *http.Cookie, *http.Cookie) {
	t.Helper()
	w := doRequest(s, http.MethodPost, "/api/v1/auth/signup", map[string]string{"email": email, "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	access := findCookie(w, accessCookie)
	refresh := findCookie(w, refreshCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)

	user := decodeBody(t, w)["user"].(map[string]any)
	return user["id"].(string), access, refresh
}

func TestHealthCheck(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	w := doRequest(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decodeBody(t, w)["status"])
}

func TestNewWithDB_RequiresJWTSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""

	db, err := gorm.Open(sqlite.Open("file:nojwt?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	_, err = NewWithDB(db, cfg, zerolog.Nop(), "test", WithPlaid(&stubPlaid{}))
	assert.Error(t, err)
}

func TestSignUp_SetsSessionCookies(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	w := doRequest(s, http.MethodPost, "/api/v1/auth/signup", map[string]string{"email": "Ada@Example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)

	access := findCookie(w, accessCookie)
	require.NotNil(t, access)
	assert.Equal(t, "/", access.Path)
	assert.True(t, access.HttpOnly)

	refresh := findCookie(w, refreshCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, refreshPath, refresh.Path)

	user := decodeBody(t, w)["user"].(map[string]any)
	assert.Equal(t, "ada@example.com", user["email"])
}

func TestSignUp_Validation(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	signUp(t, s, "taken@example.com")

	tests := []struct {
		name    string
		body    map[string]string
		code    int
		message string
	}{
		{"missing email", map[string]string{"password": "correct-horse"}, http.StatusBadRequest, "Email is required"},
		{"bad email", map[string]string{"email": "nope", "password": "correct-horse"}, http.StatusBadRequest, "Invalid email address"},
		{"short password", map[string]string{"email": "new@example.com", "password": "short"}, http.StatusBadRequest, "Password must be at least 8 characters"},
		{"duplicate", map[string]string{"email": "TAKEN@example.com", "password": "correct-horse"}, http.StatusConflict, "Email already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, http.MethodPost, "/api/v1/auth/signup", tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.message, decodeBody(t, w)["message"])
		})
	}
}

func TestSignIn(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	signUp(t, s, "ada@example.com")

	w := doRequest(s, http.MethodPost, "/api/v1/auth/signin", map[string]string{"email": "ada@example.com", "password": "wrong-horse"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", decodeBody(t, w)["message"])

	w = doRequest(s, http.MethodPost, "/api/v1/auth/signin", map[string]string{"email": "nobody@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(s, http.MethodPost, "/api/v1/auth/signin", map[string]string{"email": "ada@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, findCookie(w, accessCookie))
	assert.Equal(t, "OK", decodeBody(t, w)["status"])
}

func TestSessionMiddleware(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	userID, access, _ := signUp(t, s, "ada@example.com")

	w := doRequest(s, http.MethodGet, "/api/v1/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorised", decodeBody(t, w)["message"])

	w = doRequest(s, http.MethodGet, "/api/v1/users/me", nil, &http.Cookie{Name: accessCookie, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "try refresh token", decodeBody(t, w)["message"])

	w = doRequest(s, http.MethodGet, "/api/v1/users/me", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, userID, body["id"])
	assert.Equal(t, "ada@example.com", body["email"])
}

func TestSessionMiddleware_AcceptsBearerToken(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	_, access, _ := signUp(t, s, "ada@example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefresh_RotatesToken(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	_, access, refresh := signUp(t, s, "ada@example.com")

	w := doRequest(s, http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, w.Code)

	newAccess := findCookie(w, accessCookie)
	newRefresh := findCookie(w, refreshCookie)
	require.NotNil(t, newAccess)
	require.NotNil(t, newRefresh)
	assert.NotEqual(t, refresh.Value, newRefresh.Value)

	// The old refresh token and its access token are spent
	w = doRequest(s, http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = doRequest(s, http.MethodGet, "/api/v1/users/me", nil, access)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/users/me", nil, newAccess)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefresh_WithoutCookie(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	w := doRequest(s, http.MethodPost, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignOut_RevokesSession(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	_, access, refresh := signUp(t, s, "ada@example.com")

	w := doRequest(s, http.MethodPost, "/api/v1/auth/signout", nil, access, refresh)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := findCookie(w, accessCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	w = doRequest(s, http.MethodGet, "/api/v1/users/me", nil, access)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = doRequest(s, http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignOut_ExpiredAccessTokenRevokesSession(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.AccessTTL = -time.Minute
	s, _ := newTestServer(t, cfg)
	_, access, refresh := signUp(t, s, "ada@example.com")

	w := doRequest(s, http.MethodPost, "/api/v1/auth/signout", nil, access)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignOut_ForgedAccessTokenIsIgnored(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	_, access, refresh := signUp(t, s, "ada@example.com")

	claims, err := auth.ValidateToken(access.Value)
	require.NoError(t, err)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	forged := *access
	forged.Value = signed
	w := doRequest(s, http.MethodPost, "/api/v1/auth/signout", nil, &forged)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateProfile(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	signUp(t, s, "other@example.com")
	_, access, _ := signUp(t, s, "ada@example.com")

	tests := []struct {
		name   string
		body   map[string]string
		code   int
		detail string
	}{
		{"email taken", map[string]string{"email": "other@example.com"}, http.StatusConflict, "Email already exists"},
		{"bad email", map[string]string{"email": "not-an-email"}, http.StatusBadRequest, "Invalid email address"},
		{"wrong current password", map[string]string{"current_password": "nope", "new_password": "battery-staple"}, http.StatusBadRequest, "Current password is incorrect"},
		{"short new password", map[string]string{"current_password": "correct-horse", "new_password": "short"}, http.StatusBadRequest, "New password must be at least 8 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, http.MethodPut, "/api/v1/users/profile", tt.body, access)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.detail, decodeBody(t, w)["detail"])
		})
	}

	w := doRequest(s, http.MethodPut, "/api/v1/users/profile",
		map[string]string{"email": "lovelace@example.com", "current_password": "correct-horse", "new_password": "battery-staple"}, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Profile updated successfully", decodeBody(t, w)["message"])

	w = doRequest(s, http.MethodPost, "/api/v1/auth/signin", map[string]string{"email": "lovelace@example.com", "password": "battery-staple"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPlaidFlow(t *testing.T) {
	s, p := newTestServer(t, testConfig())
	_, access, _ := signUp(t, s, "ada@example.com")

	w := doRequest(s, http.MethodPost, "/api/v1/plaid/create_link_token", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(decodeBody(t, w)["link_token"].(string), "link-sandbox-"))

	w = doRequest(s, http.MethodPost, "/api/v1/plaid/exchange_public_token", map[string]string{}, access)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "public_token is required", decodeBody(t, w)["detail"])

	w = doRequest(s, http.MethodPost, "/api/v1/plaid/exchange_public_token",
		map[string]string{"public_token": "public-sandbox-1", "institution_name": "Platypus"}, access)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	exchanged := decodeBody(t, w)
	assert.Equal(t, "item-public-sandbox-1", exchanged["item_id"])
	assert.Equal(t, "First Platypus Bank", exchanged["institution_name"])
	assert.EqualValues(t, 2, exchanged["accounts_added"])

	w = doRequest(s, http.MethodGet, "/api/v1/plaid/accounts", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	var accounts []models.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accounts))
	require.Len(t, accounts, 2)

	w = doRequest(s, http.MethodGet, "/api/v1/baserow/account-summary", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decodeBody(t, w)["summary"].(map[string]any)
	assert.Equal(t, "220", summary["total_current_balance"])
	assert.Equal(t, "100", summary["total_available_balance"])
	assert.EqualValues(t, 2, summary["total_accounts"])

	w = doRequest(s, http.MethodPut, "/api/v1/plaid/accounts/update/item-public-sandbox-1", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["accounts"], 2)

	w = doRequest(s, http.MethodPut, "/api/v1/plaid/accounts/update/item-missing", nil, access)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Access token not found", decodeBody(t, w)["detail"])

	w = doRequest(s, http.MethodGet, "/api/v1/users/connected-accounts", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["accounts"], 1)

	w = doRequest(s, http.MethodDelete, "/api/v1/plaid/disconnect/item-public-sandbox-1", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Account disconnected successfully", decodeBody(t, w)["message"])
	assert.Equal(t, []string{"access-public-sandbox-1"}, p.removed)

	w = doRequest(s, http.MethodGet, "/api/v1/plaid/connected-institutions", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestExchange_AcceptsQueryToken(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	_, access, _ := signUp(t, s, "ada@example.com")

	w := doRequest(s, http.MethodPost, "/api/v1/plaid/exchange_public_token?public_token=public-sandbox-q", nil, access)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "item-public-sandbox-q", decodeBody(t, w)["item_id"])
}

func TestTransactions(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	userID, access, _ := signUp(t, s, "ada@example.com")

	batch := []map[string]any{
		{"account_id": "acc-1", "amount": "12.50", "date": "2024-03-01", "description": "Coffee", "category": "Food"},
		{"account_id": "acc-2", "amount": "-100", "date": "2024-03-02", "description": "Refund"},
	}
	w := doRequest(s, http.MethodPost, "/api/v1/baserow/store-transactions", batch, access)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Stored 2 transactions", decodeBody(t, w)["message"])

	w = doRequest(s, http.MethodPost, "/api/v1/baserow/store-transactions",
		[]map[string]any{{"account_id": "acc-1", "amount": "1", "date": "March 1"}}, access)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/baserow/user-transactions", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	var all []models.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 2)
	assert.Equal(t, "2024-03-02", all[0].Date)

	w = doRequest(s, http.MethodGet, "/api/v1/baserow/user-transactions?account_id=acc-1", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	var filtered []models.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "Coffee", filtered[0].Description)

	w = doRequest(s, http.MethodDelete, "/api/v1/baserow/user-data/someone-else", nil, access)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Unauthorized", decodeBody(t, w)["detail"])

	w = doRequest(s, http.MethodDelete, "/api/v1/baserow/user-data/"+userID, nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User data deleted successfully", decodeBody(t, w)["message"])

	w = doRequest(s, http.MethodGet, "/api/v1/baserow/user-transactions", nil, access)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestNewsletterSignup(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	w := doRequest(s, http.MethodPost, "/api/v1/users/newsletter-signup?email=fan@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody(t, w)["message"], "Thank you for signing up")

	// Signing up twice is not an error
	w = doRequest(s, http.MethodPost, "/api/v1/baserow/newsletter-signup", map[string]string{"email": "FAN@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Newsletter signup stored successfully", decodeBody(t, w)["message"])

	var count int64
	require.NoError(t, s.GetDB().Model(&models.NewsletterSignup{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	w = doRequest(s, http.MethodPost, "/api/v1/users/newsletter-signup", map[string]string{"email": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGoogleSignIn_NotConfigured(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	w := doRequest(s, http.MethodGet, "/api/v1/auth/oauth/google/url", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGoogleSignIn(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			_ = r.ParseForm()
			if r.Form.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"google-token","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			if r.Header.Get("Authorization") != "Bearer google-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"id":"g-123","email":"Ada@Example.com","verified_email":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer provider.Close()

	cfg := testConfig()
	cfg.Google = config.GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8000/api/v1/auth/oauth/google/callback",
	}
	s, _ := newTestServer(t, cfg, WithGoogleEndpoint(oauth2.Endpoint{
		AuthURL:   provider.URL + "/auth",
		TokenURL:  provider.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}, provider.URL+"/userinfo"))

	// An existing password account gets linked rather than duplicated
	userID, _, _ := signUp(t, s, "ada@example.com")

	w := doRequest(s, http.MethodGet, "/api/v1/auth/oauth/google/url", nil)
	require.Equal(t, http.StatusOK, w.Code)
	authURL, err := url.Parse(decodeBody(t, w)["url"].(string))
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "client-id", authURL.Query().Get("client_id"))

	t.Run("unknown state", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/api/v1/auth/oauth/google/callback?state=forged&code=good-code", nil)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "http://localhost:5173/signin?error=oauth_state", w.Header().Get("Location"))
	})

	w = doRequest(s, http.MethodGet, "/api/v1/auth/oauth/google/callback?state="+state+"&code=good-code", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://localhost:5173/dashboard", w.Header().Get("Location"))
	access := findCookie(w, accessCookie)
	require.NotNil(t, access)

	w = doRequest(s, http.MethodGet, "/api/v1/users/me", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, decodeBody(t, w)["id"])

	var user models.User
	require.NoError(t, models.FindByID(s.GetDB(), userID, &user))
	assert.Equal(t, "g-123", user.GoogleID)

	// States are single use
	w = doRequest(s, http.MethodGet, "/api/v1/auth/oauth/google/callback?state="+state+"&code=good-code", nil)
	assert.Equal(t, "http://localhost:5173/signin?error=oauth_state", w.Header().Get("Location"))
}
