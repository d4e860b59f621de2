package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

// API paths
const (
	PathSignIn           = "/api/v1/auth/signin"
	PathSignUp           = "/api/v1/auth/signup"
	PathSignOut          = "/api/v1/auth/signout"
	PathRefresh          = "/api/v1/auth/refresh"
	PathGoogleURL        = "/api/v1/auth/oauth/google/url"
	PathCurrentUser      = "/api/v1/users/me"
	PathProfile          = "/api/v1/users/profile"
	PathLinkToken        = "/api/v1/plaid/create_link_token"
	PathExchangeToken    = "/api/v1/plaid/exchange_public_token"
	PathDisconnect       = "/api/v1/plaid/disconnect/"
	PathInstitutions     = "/api/v1/plaid/connected-institutions"
	PathAccounts         = "/api/v1/plaid/accounts"
	PathUpdateAccounts   = "/api/v1/plaid/accounts/update/"
	PathAccountSummary   = "/api/v1/baserow/account-summary"
	PathUserTransactions = "/api/v1/baserow/user-transactions"
)

// Credentials is the sign in / sign up request body
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdate is the body of PUT /users/profile
type ProfileUpdate struct {
	Email           string `json:"email,omitempty" validate:"omitempty,email"`
	CurrentPassword string `json:"current_password,omitempty" validate:"required_with=NewPassword"`
	NewPassword     string `json:"new_password,omitempty" validate:"omitempty,min=8"`
}

// OAuthURLResponse carries the provider redirect URL
type OAuthURLResponse struct {
	URL string `json:"url"`
}

// LinkTokenResponse carries a one-time Plaid Link token
type LinkTokenResponse struct {
	LinkToken string `json:"link_token"`
}

// LinkedAccount is an account selected in the Plaid Link widget
type LinkedAccount struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
}

// ExchangeRequest forwards the widget's success payload to the backend
type ExchangeRequest struct {
	PublicToken     string          `json:"public_token"`
	InstitutionID   string          `json:"institution_id"`
	InstitutionName string          `json:"institution_name"`
	Accounts        []LinkedAccount `json:"accounts"`
}

// ExchangeResponse is returned once the access token is stored server side
type ExchangeResponse struct {
	ItemID          string `json:"item_id"`
	InstitutionName string `json:"institution_name"`
	AccountsAdded   int    `json:"accounts_added"`
}

// Institution is a connected financial institution
type Institution struct {
	ItemID          string `json:"item_id" yaml:"item_id"`
	InstitutionName string `json:"institution_name" yaml:"institution_name"`
	InstitutionID   string `json:"institution_id" yaml:"institution_id"`
	Status          string `json:"status" yaml:"status"`
}

// Account is a linked bank account
type Account struct {
	ID               string           `json:"id" yaml:"id"`
	PlaidAccountID   string           `json:"plaid_account_id" yaml:"plaid_account_id"`
	PlaidItemID      string           `json:"plaid_item_id" yaml:"plaid_item_id"`
	Name             string           `json:"name" yaml:"name"`
	OfficialName     string           `json:"official_name" yaml:"official_name"`
	Type             string           `json:"type" yaml:"type"`
	Subtype          string           `json:"subtype" yaml:"subtype"`
	BalanceCurrent   decimal.Decimal  `json:"balance_current" yaml:"balance_current"`
	BalanceAvailable *decimal.Decimal `json:"balance_available" yaml:"balance_available"`
	ISOCurrencyCode  string           `json:"iso_currency_code" yaml:"iso_currency_code"`
	LastUpdated      string           `json:"last_updated" yaml:"last_updated"`
}

// SummaryTotals aggregates all linked accounts
type SummaryTotals struct {
	TotalCurrentBalance   decimal.Decimal `json:"total_current_balance" yaml:"total_current_balance"`
	TotalAvailableBalance decimal.Decimal `json:"total_available_balance" yaml:"total_available_balance"`
	TotalAccounts         int             `json:"total_accounts" yaml:"total_accounts"`
}

// AccountSummary is returned by the account summary endpoint
type AccountSummary struct {
	Accounts []Account     `json:"accounts" yaml:"accounts"`
	Summary  SummaryTotals `json:"summary" yaml:"summary"`
}

// BalanceUpdate is returned after a forced balance refresh
type BalanceUpdate struct {
	Status   string    `json:"status" yaml:"status"`
	Message  string    `json:"message" yaml:"message"`
	Accounts []Account `json:"accounts" yaml:"accounts"`
}

// Transaction is a stored account transaction
type Transaction struct {
	ID          string          `json:"id" yaml:"id"`
	AccountID   string          `json:"account_id" yaml:"account_id"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Date        string          `json:"date" yaml:"date"`
	Description string          `json:"description" yaml:"description"`
	Category    string          `json:"category" yaml:"category"`
}

// SignIn posts credentials; the session cookies land in the jar
func (c *Client) SignIn(ctx context.Context, creds Credentials) error {
	return c.post(ctx, PathSignIn, creds, nil)
}

// SignUp creates a new account
func (c *Client) SignUp(ctx context.Context, creds Credentials) error {
	return c.post(ctx, PathSignUp, creds, nil)
}

// GoogleAuthURL returns the Google OAuth consent URL
func (c *Client) GoogleAuthURL(ctx context.Context) (string, error) {
	var resp OAuthURLResponse
	if err := c.get(ctx, PathGoogleURL, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("empty oauth url in response")
	}
	return resp.URL, nil
}

// GetCurrentUser returns the signed in user's profile as an opaque map
func (c *Client) GetCurrentUser(ctx context.Context) (map[string]any, error) {
	var profile map[string]any
	if err := c.get(ctx, PathCurrentUser, &profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile changes email and/or password
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	return c.put(ctx, PathProfile, update, nil)
}

// CreateLinkToken requests a Plaid Link token for the current user
func (c *Client) CreateLinkToken(ctx context.Context) (string, error) {
	var resp LinkTokenResponse
	if err := c.get(ctx, PathLinkToken, &resp); err != nil {
		return "", err
	}
	if resp.LinkToken == "" {
		return "", fmt.Errorf("empty link token in response")
	}
	return resp.LinkToken, nil
}

// ExchangePublicToken trades the widget's public token for a stored access token
func (c *Client) ExchangePublicToken(ctx context.Context, req ExchangeRequest) (*ExchangeResponse, error) {
	var resp ExchangeResponse
	if err := c.post(ctx, PathExchangeToken, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Disconnect removes a linked institution
func (c *Client) Disconnect(ctx context.Context, itemID string) error {
	return c.delete(ctx, PathDisconnect+url.PathEscape(itemID), nil)
}

// ConnectedInstitutions lists linked institutions
func (c *Client) ConnectedInstitutions(ctx context.Context) ([]Institution, error) {
	var institutions []Institution
	if err := c.get(ctx, PathInstitutions, &institutions); err != nil {
		return nil, err
	}
	return institutions, nil
}

// Accounts lists linked accounts
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.get(ctx, PathAccounts, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// AccountSummary returns accounts plus aggregated balances
func (c *Client) AccountSummary(ctx context.Context) (*AccountSummary, error) {
	var summary AccountSummary
	if err := c.get(ctx, PathAccountSummary, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// UpdateAccountBalances forces a balance refresh for one institution
func (c *Client) UpdateAccountBalances(ctx context.Context, itemID string) (*BalanceUpdate, error) {
	var resp BalanceUpdate
	if err := c.put(ctx, PathUpdateAccounts+url.PathEscape(itemID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transactions lists stored transactions, optionally for one account
func (c *Client) Transactions(ctx context.Context, accountID string) ([]Transaction, error) {
	path := PathUserTransactions
	if accountID != "" {
		path += "?" + url.Values{"account_id": {accountID}}.Encode()
	}

	var transactions []Transaction
	if err := c.get(ctx, path, &transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}
