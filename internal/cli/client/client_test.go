package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNavigator records every navigation target
type recordingNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *recordingNavigator) Navigate(_ context.Context, target string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
	return nil
}

func (n *recordingNavigator) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}

func TestUnauthorized_RedirectsOnceAndReturnsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "unauthorised"}`))
	}))
	defer srv.Close()

	nav := &recordingNavigator{}
	c := New(srv.URL, WithMiddleware(Unauthorized(nav, "/signin", zerolog.Nop())))

	req, err := http.NewRequest(http.MethodGet, c.URL("/api/v1/plaid/accounts"), nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, []string{"/signin"}, nav.Targets())
}

func TestUnauthorized_IgnoresOtherStatuses(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusForbidden, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		nav := &recordingNavigator{}
		c := New(srv.URL, WithMiddleware(Unauthorized(nav, "/signin", zerolog.Nop())))
		req, _ := http.NewRequest(http.MethodGet, c.URL("/"), nil)
		resp, err := c.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Empty(t, nav.Targets(), "status %d should not redirect", status)
		srv.Close()
	}
}

func TestUnauthorized_PropagatesTransportErrors(t *testing.T) {
	boom := errors.New("connection refused")
	failing := &http.Client{Transport: RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	})}

	nav := &recordingNavigator{}
	c := New("http://api.invalid", WithHTTPClient(failing), WithMiddleware(Unauthorized(nav, "/signin", zerolog.Nop())))

	req, _ := http.NewRequest(http.MethodGet, c.URL("/"), nil)
	_, err := c.Do(req)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, nav.Targets())
}

func TestNew_MiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(req)
			})
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := New(srv.URL, WithMiddleware(mark("outer"), mark("inner")))
	require.NoError(t, c.get(context.Background(), "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestDoJSON_SendsJSONContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ContentTypeJSON, r.Header.Get("Content-Type"))
		assert.Equal(t, PathSignIn, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var creds Credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "a@example.com", creds.Email)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	require.NoError(t, c.SignIn(context.Background(), Credentials{Email: "a@example.com", Password: "pw"}))
}

func TestAPIError_ParsesMessageAndDetail(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
		wantDetail  string
	}{
		{name: "message", body: `{"message": "Invalid credentials"}`, wantMessage: "Invalid credentials"},
		{name: "detail", body: `{"detail": "Current password is incorrect"}`, wantDetail: "Current password is incorrect"},
		{name: "error key", body: `{"error": "boom"}`, wantMessage: "boom"},
		{name: "detail array", body: `{"detail": [{"msg": "bad"}]}`, wantDetail: `[{"msg": "bad"}]`},
		{name: "not json", body: `<html>bad gateway</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := New(srv.URL).get(context.Background(), "/", nil)
			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.wantDetail, apiErr.Detail)
			assert.True(t, IsStatus(err, http.StatusBadRequest))
		})
	}
}

func TestTransactions_AccountFilter(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[{"id": "t1", "account_id": "acc 1", "amount": "12.50", "date": "2024-01-02", "description": "Coffee", "category": "Food"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL)

	txns, err := c.Transactions(context.Background(), "acc 1")
	require.NoError(t, err)
	assert.Equal(t, "account_id=acc+1", gotQuery)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("12.50")))

	_, err = c.Transactions(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", gotQuery)
}

func TestAccountSummary_DecodesNumbersAndStrings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts": [], "summary": {"total_current_balance": 100.25, "total_available_balance": "90", "total_accounts": 2}}`))
	}))
	defer srv.Close()

	summary, err := New(srv.URL).AccountSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100.25", summary.Summary.TotalCurrentBalance.String())
	assert.Equal(t, "90", summary.Summary.TotalAvailableBalance.String())
	assert.Equal(t, 2, summary.Summary.TotalAccounts)
}

func TestDisconnect_EscapesItemID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/plaid/disconnect/item%2F1", r.URL.EscapedPath())
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).Disconnect(context.Background(), "item/1"))
}
