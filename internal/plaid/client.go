// Package plaid wraps the Plaid API client for Link, items, institutions,
// and account balances.
package plaid

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	plaidapi "github.com/plaid/plaid-go/v20/plaid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Environment hosts
var hosts = map[string]plaidapi.Environment{
	"sandbox":     plaidapi.Sandbox,
	"development": plaidapi.Environment("https://development.plaid.com"),
	"production":  plaidapi.Production,
}

const (
	clientName      = "ThriveBase"
	language        = "en"
	institutionTTL  = 24 * time.Hour
	cleanupInterval = time.Hour
)

var countryCodes = []plaidapi.CountryCode{plaidapi.COUNTRYCODE_US}

// Error is an error response from Plaid
type Error struct {
	StatusCode     int
	ErrorType      string
	ErrorCode      string
	ErrorMessage   string
	DisplayMessage string
}

func (e *Error) Error() string {
	return fmt.Sprintf("plaid %s/%s (status %d): %s", e.ErrorType, e.ErrorCode, e.StatusCode, e.ErrorMessage)
}

// Balances holds an account's balances
type Balances struct {
	Current         *decimal.Decimal
	Available       *decimal.Decimal
	ISOCurrencyCode string
}

// Account is an account with its latest balances
type Account struct {
	AccountID    string
	Name         string
	OfficialName string
	Type         string
	Subtype      string
	Balances     Balances
}

// Exchange is the result of a public token exchange
type Exchange struct {
	AccessToken string
	ItemID      string
}

// Item is a Plaid item
type Item struct {
	ItemID        string
	InstitutionID string
}

// Client talks to one Plaid environment
type Client struct {
	api          *plaidapi.PlaidApiService
	institutions *cache.Cache
	log          zerolog.Logger
}

// Option configures the underlying API configuration
type Option func(*plaidapi.Configuration)

// WithBaseURL overrides the environment host
func WithBaseURL(u string) Option {
	return func(cfg *plaidapi.Configuration) { cfg.UseEnvironment(plaidapi.Environment(u)) }
}

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *plaidapi.Configuration) { cfg.HTTPClient = hc }
}

// New creates a client for env (sandbox, development or production)
func New(clientID, secret, env string, log zerolog.Logger, opts ...Option) (*Client, error) {
	host, ok := hosts[env]
	if !ok {
		return nil, fmt.Errorf("unknown Plaid environment %q", env)
	}

	cfg := plaidapi.NewConfiguration()
	cfg.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	cfg.AddDefaultHeader("PLAID-SECRET", secret)
	cfg.UseEnvironment(host)
	cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{
		api:          plaidapi.NewAPIClient(cfg).PlaidApi,
		institutions: cache.New(institutionTTL, cleanupInterval),
		log:          log,
	}, nil
}

// CreateLinkToken creates a Link token for a user
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	user := plaidapi.LinkTokenCreateRequestUser{ClientUserId: userID}
	req := plaidapi.NewLinkTokenCreateRequest(clientName, language, countryCodes, user)
	req.SetProducts([]plaidapi.Products{plaidapi.PRODUCTS_TRANSACTIONS})

	start := time.Now()
	resp, httpResp, err := c.api.LinkTokenCreate(ctx).LinkTokenCreateRequest(*req).Execute()
	if err != nil {
		return "", c.wrap("link/token/create", start, httpResp, err)
	}
	c.trace("link/token/create", start, httpResp)
	return resp.GetLinkToken(), nil
}

// ExchangePublicToken trades a Link public token for an access token
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*Exchange, error) {
	start := time.Now()
	resp, httpResp, err := c.api.ItemPublicTokenExchange(ctx).
		ItemPublicTokenExchangeRequest(*plaidapi.NewItemPublicTokenExchangeRequest(publicToken)).
		Execute()
	if err != nil {
		return nil, c.wrap("item/public_token/exchange", start, httpResp, err)
	}
	c.trace("item/public_token/exchange", start, httpResp)
	return &Exchange{AccessToken: resp.GetAccessToken(), ItemID: resp.GetItemId()}, nil
}

// GetItem returns the item behind an access token
func (c *Client) GetItem(ctx context.Context, accessToken string) (*Item, error) {
	start := time.Now()
	resp, httpResp, err := c.api.ItemGet(ctx).
		ItemGetRequest(*plaidapi.NewItemGetRequest(accessToken)).
		Execute()
	if err != nil {
		return nil, c.wrap("item/get", start, httpResp, err)
	}
	c.trace("item/get", start, httpResp)

	item := resp.GetItem()
	return &Item{ItemID: item.GetItemId(), InstitutionID: item.GetInstitutionId()}, nil
}

// InstitutionName looks up an institution's display name. Names are cached.
func (c *Client) InstitutionName(ctx context.Context, institutionID string) (string, error) {
	if name, found := c.institutions.Get(institutionID); found {
		return name.(string), nil
	}

	start := time.Now()
	resp, httpResp, err := c.api.InstitutionsGetById(ctx).
		InstitutionsGetByIdRequest(*plaidapi.NewInstitutionsGetByIdRequest(institutionID, countryCodes)).
		Execute()
	if err != nil {
		return "", c.wrap("institutions/get_by_id", start, httpResp, err)
	}
	c.trace("institutions/get_by_id", start, httpResp)

	institution := resp.GetInstitution()
	name := institution.GetName()
	c.institutions.SetDefault(institutionID, name)
	return name, nil
}

// GetAccounts returns the accounts of an item with real-time balances
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	start := time.Now()
	resp, httpResp, err := c.api.AccountsBalanceGet(ctx).
		AccountsBalanceGetRequest(*plaidapi.NewAccountsBalanceGetRequest(accessToken)).
		Execute()
	if err != nil {
		return nil, c.wrap("accounts/balance/get", start, httpResp, err)
	}
	c.trace("accounts/balance/get", start, httpResp)

	accounts := make([]Account, 0, len(resp.GetAccounts()))
	for _, a := range resp.GetAccounts() {
		balances := a.GetBalances()
		accounts = append(accounts, Account{
			AccountID:    a.GetAccountId(),
			Name:         a.GetName(),
			OfficialName: a.GetOfficialName(),
			Type:         string(a.GetType()),
			Subtype:      string(a.GetSubtype()),
			Balances: Balances{
				Current:         amount(balances.GetCurrentOk()),
				Available:       amount(balances.GetAvailableOk()),
				ISOCurrencyCode: balances.GetIsoCurrencyCode(),
			},
		})
	}
	return accounts, nil
}

// RemoveItem removes an item and invalidates its access token
func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	start := time.Now()
	_, httpResp, err := c.api.ItemRemove(ctx).
		ItemRemoveRequest(*plaidapi.NewItemRemoveRequest(accessToken)).
		Execute()
	if err != nil {
		return c.wrap("item/remove", start, httpResp, err)
	}
	c.trace("item/remove", start, httpResp)
	return nil
}

// amount converts a nullable Plaid balance; null stays nil
func amount(v *float64, ok bool) *decimal.Decimal {
	if !ok || v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}

func (c *Client) trace(op string, start time.Time, httpResp *http.Response) {
	status := 0
	if httpResp != nil {
		status = httpResp.StatusCode
	}
	c.log.Debug().Str("op", op).Int("status", status).Dur("duration", time.Since(start)).Msg("Plaid request")
}

// wrap turns an SDK error into *Error when Plaid returned an error body
func (c *Client) wrap(op string, start time.Time, httpResp *http.Response, err error) error {
	c.trace(op, start, httpResp)

	perr, convErr := plaidapi.ToPlaidError(err)
	if convErr != nil {
		return fmt.Errorf("failed to call plaid %s: %w", op, err)
	}

	status := 0
	if httpResp != nil {
		status = httpResp.StatusCode
	}
	return &Error{
		StatusCode:     status,
		ErrorType:      string(perr.ErrorType),
		ErrorCode:      perr.ErrorCode,
		ErrorMessage:   perr.ErrorMessage,
		DisplayMessage: perr.GetDisplayMessage(),
	}
}
