// Package banklink drives the Plaid Link flow and wraps the linked account
// endpoints of the ThriveBase API.
package banklink

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/thrivebase/thrivebase/internal/cli/client"
)

// PlaidScriptURL is the Plaid Link initialization script
const PlaidScriptURL = "https://cdn.plaid.com/link/v2/stable/link-initialize.js"

var (
	ErrInitFailed             = errors.New("Failed to initialize Plaid Link")
	errDisconnect             = errors.New("Failed to disconnect bank account")
	errInstitutions           = errors.New("Failed to fetch connected institutions")
	errAccounts               = errors.New("Failed to fetch accounts")
	errSummary                = errors.New("Failed to fetch account summary")
	errUpdateBalances         = errors.New("Failed to update account balances")
	errTransactions           = errors.New("Failed to fetch transactions")
	errExchangeFailed         = errors.New("Failed to link bank account")
	errWidgetClosedUnexpected = errors.New("Plaid Link closed without a result")
)

// API is the subset of the ThriveBase API used for bank linking
type API interface {
	CreateLinkToken(ctx context.Context) (string, error)
	ExchangePublicToken(ctx context.Context, req client.ExchangeRequest) (*client.ExchangeResponse, error)
	Disconnect(ctx context.Context, itemID string) error
	ConnectedInstitutions(ctx context.Context) ([]client.Institution, error)
	Accounts(ctx context.Context) ([]client.Account, error)
	AccountSummary(ctx context.Context) (*client.AccountSummary, error)
	UpdateAccountBalances(ctx context.Context, itemID string) (*client.BalanceUpdate, error)
	Transactions(ctx context.Context, accountID string) ([]client.Transaction, error)
}

// ScriptLoader makes sure an external script is present
type ScriptLoader interface {
	Load(ctx context.Context, src string) error
}

// Gateway runs bank linking sessions. Loading is true while any link
// session is being initialized; Err holds the most recent failure.
type Gateway struct {
	api    API
	loader ScriptLoader
	widget Widget
	log    zerolog.Logger

	mu       sync.Mutex
	inflight int
	err      error
}

// NewGateway creates a bank link gateway
func NewGateway(api API, loader ScriptLoader, widget Widget, log zerolog.Logger) *Gateway {
	return &Gateway{
		api:    api,
		loader: loader,
		widget: widget,
		log:    log,
	}
}

// Loading reports whether InitLink is in progress
func (g *Gateway) Loading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight > 0
}

// Err returns the last recorded failure, nil if none
func (g *Gateway) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

func (g *Gateway) doneLoading() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inflight--
}

func (g *Gateway) setErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// InitLink loads the Plaid script, requests a link token and opens the
// widget. It returns as soon as the widget is open; the returned session
// exchanges the public token in the background once the user finishes.
func (g *Gateway) InitLink(ctx context.Context) (*LinkSession, error) {
	g.mu.Lock()
	g.inflight++
	g.err = nil
	g.mu.Unlock()
	defer g.doneLoading()

	handle, err := g.open(ctx)
	if err != nil {
		g.log.Error().Err(err).Msg("Plaid initialization error")
		g.setErr(ErrInitFailed)
		return nil, errors.Join(ErrInitFailed, err)
	}

	ls := newLinkSession(handle)
	go g.consume(context.WithoutCancel(ctx), ls)

	return ls, nil
}

func (g *Gateway) open(ctx context.Context) (Handle, error) {
	if err := g.loader.Load(ctx, PlaidScriptURL); err != nil {
		return nil, err
	}

	linkToken, err := g.api.CreateLinkToken(ctx)
	if err != nil {
		return nil, err
	}

	return g.widget.Open(ctx, linkToken)
}

func (g *Gateway) consume(ctx context.Context, ls *LinkSession) {
	defer close(ls.finished)

	events := ls.handle.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			g.log.Debug().Str("event", ev.Name).Interface("metadata", ev.Metadata).Msg("Plaid Link event")

		case outcome, ok := <-ls.handle.Done():
			if !ok {
				ls.result = Result{Err: errWidgetClosedUnexpected}
				g.setErr(errWidgetClosedUnexpected)
				return
			}
			ls.result = g.handleOutcome(ctx, outcome)
			return
		}
	}
}

func (g *Gateway) handleOutcome(ctx context.Context, outcome Outcome) Result {
	switch {
	case outcome.Success != nil:
		return g.exchange(ctx, outcome.Success)

	case outcome.Exit != nil:
		exit := outcome.Exit
		if exit.Err != nil {
			g.setErr(exit.Err)
			g.log.Error().
				Str("status", exit.Status).
				Str("link_session_id", exit.LinkSessionID).
				Str("error_code", exit.Err.ErrorCode).
				Err(exit.Err).
				Msg("Plaid exit error")
		}
		return Result{Exit: exit}
	}

	return Result{}
}

func (g *Gateway) exchange(ctx context.Context, s *Success) Result {
	accounts := s.Institution.Accounts
	if accounts == nil {
		accounts = []client.LinkedAccount{}
	}

	resp, err := g.api.ExchangePublicToken(ctx, client.ExchangeRequest{
		PublicToken:     s.PublicToken,
		InstitutionID:   s.Institution.InstitutionID,
		InstitutionName: s.Institution.InstitutionName,
		Accounts:        accounts,
	})
	if err != nil {
		g.log.Error().Err(err).Str("institution_id", s.Institution.InstitutionID).Msg("Public token exchange failed")
		g.setErr(errExchangeFailed)
		return Result{Err: errors.Join(errExchangeFailed, err)}
	}

	g.log.Info().
		Str("item_id", resp.ItemID).
		Str("institution", resp.InstitutionName).
		Int("accounts_added", resp.AccountsAdded).
		Msg("Bank account linked")
	return Result{Exchange: resp}
}

// Disconnect removes a linked institution
func (g *Gateway) Disconnect(ctx context.Context, itemID string) error {
	if err := g.api.Disconnect(ctx, itemID); err != nil {
		return g.fail(errDisconnect, err)
	}
	return nil
}

// ConnectedInstitutions lists linked institutions, empty on failure
func (g *Gateway) ConnectedInstitutions(ctx context.Context) []client.Institution {
	institutions, err := g.api.ConnectedInstitutions(ctx)
	if err != nil {
		g.fail(errInstitutions, err)
		return []client.Institution{}
	}
	return institutions
}

// Accounts lists linked accounts, empty on failure
func (g *Gateway) Accounts(ctx context.Context) []client.Account {
	accounts, err := g.api.Accounts(ctx)
	if err != nil {
		g.fail(errAccounts, err)
		return []client.Account{}
	}
	return accounts
}

// AccountSummary returns aggregated balances, zeroed on failure
func (g *Gateway) AccountSummary(ctx context.Context) client.AccountSummary {
	summary, err := g.api.AccountSummary(ctx)
	if err != nil {
		g.fail(errSummary, err)
		return emptySummary()
	}
	if summary.Accounts == nil {
		summary.Accounts = []client.Account{}
	}
	return *summary
}

// UpdateAccountBalances forces a balance refresh for one institution
func (g *Gateway) UpdateAccountBalances(ctx context.Context, itemID string) (*client.BalanceUpdate, error) {
	update, err := g.api.UpdateAccountBalances(ctx, itemID)
	if err != nil {
		return nil, g.fail(errUpdateBalances, err)
	}
	return update, nil
}

// Transactions lists transactions, optionally for one account. Empty on failure.
func (g *Gateway) Transactions(ctx context.Context, accountID string) []client.Transaction {
	transactions, err := g.api.Transactions(ctx, accountID)
	if err != nil {
		g.fail(errTransactions, err)
		return []client.Transaction{}
	}
	return transactions
}

// fail records kind in the error slot and returns both errors joined
func (g *Gateway) fail(kind, err error) error {
	g.log.Error().Err(err).Msg(kind.Error())
	g.setErr(kind)
	return errors.Join(kind, err)
}

func emptySummary() client.AccountSummary {
	return client.AccountSummary{
		Accounts: []client.Account{},
		Summary: client.SummaryTotals{
			TotalCurrentBalance:   decimal.Zero,
			TotalAvailableBalance: decimal.Zero,
		},
	}
}
