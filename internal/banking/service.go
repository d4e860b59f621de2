// Package banking stores linked Plaid items, their accounts, and transactions.
package banking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/thrivebase/thrivebase/internal/models"
	"github.com/thrivebase/thrivebase/internal/plaid"
)

var (
	ErrItemNotFound        = errors.New("Access token not found")
	ErrInvalidPublicToken  = errors.New("public_token is required")
	ErrAccessTokenUnusable = errors.New("stored access token cannot be decrypted")
)

// Plaid is the subset of the Plaid API the service uses
type Plaid interface {
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.Exchange, error)
	GetItem(ctx context.Context, accessToken string) (*plaid.Item, error)
	InstitutionName(ctx context.Context, institutionID string) (string, error)
	GetAccounts(ctx context.Context, accessToken string) ([]plaid.Account, error)
	RemoveItem(ctx context.Context, accessToken string) error
}

// Cipher protects access tokens at rest
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Service implements linking and account operations
type Service struct {
	db     *gorm.DB
	plaid  Plaid
	cipher Cipher
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new banking service
func NewService(db *gorm.DB, p Plaid, cipher Cipher, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		plaid:  p,
		cipher: cipher,
		logger: logger.With().Str("component", "banking_service").Logger(),
		now:    time.Now,
	}
}

// ExchangeParams is the widget's success payload
type ExchangeParams struct {
	PublicToken     string
	InstitutionID   string
	InstitutionName string
}

// ExchangeResult summarizes a newly linked item
type ExchangeResult struct {
	ItemID          string `json:"item_id"`
	InstitutionName string `json:"institution_name"`
	AccountsAdded   int    `json:"accounts_added"`
}

// Institution is a connected institution as shown to the user
type Institution struct {
	ItemID          string `json:"item_id"`
	InstitutionName string `json:"institution_name"`
	InstitutionID   string `json:"institution_id"`
	Status          string `json:"status"`
}

// CreateLinkToken creates a Plaid Link token for the user
func (s *Service) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	token, err := s.plaid.CreateLinkToken(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to create link token: %w", err)
	}
	return token, nil
}

// Exchange trades a public token for an access token, stores the encrypted
// token, and records the item's accounts
func (s *Service) Exchange(ctx context.Context, userID string, params ExchangeParams) (*ExchangeResult, error) {
	if params.PublicToken == "" {
		return nil, ErrInvalidPublicToken
	}

	exchange, err := s.plaid.ExchangePublicToken(ctx, params.PublicToken)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange public token: %w", err)
	}

	institutionID, institutionName := params.InstitutionID, params.InstitutionName
	if item, err := s.plaid.GetItem(ctx, exchange.AccessToken); err != nil {
		s.logger.Warn().Err(err).Str("item_id", exchange.ItemID).Msg("Failed to get item, using widget institution")
	} else if item.InstitutionID != "" {
		institutionID = item.InstitutionID
		if name, err := s.plaid.InstitutionName(ctx, institutionID); err != nil {
			s.logger.Warn().Err(err).Str("institution_id", institutionID).Msg("Failed to get institution name")
		} else {
			institutionName = name
		}
	}

	encrypted, err := s.cipher.Encrypt(exchange.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	accounts, err := s.plaid.GetAccounts(ctx, exchange.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}

	item := models.PlaidItem{
		UserID:               userID,
		PlaidItemID:          exchange.ItemID,
		EncryptedAccessToken: encrypted,
		InstitutionID:        institutionID,
		InstitutionName:      institutionName,
		Status:               models.ItemStatusActive,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("failed to store item: %w", err)
		}
		for _, a := range accounts {
			account := s.newAccount(userID, exchange.ItemID, a)
			if err := tx.Create(&account).Error; err != nil {
				return fmt.Errorf("failed to store account: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("item_id", exchange.ItemID).
		Str("institution", institutionName).
		Int("accounts", len(accounts)).
		Msg("Linked institution")

	return &ExchangeResult{
		ItemID:          exchange.ItemID,
		InstitutionName: institutionName,
		AccountsAdded:   len(accounts),
	}, nil
}

// Accounts lists all of the user's accounts
func (s *Service) Accounts(ctx context.Context, userID string) ([]models.Account, error) {
	accounts := []models.Account{}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Institutions lists the user's active items
func (s *Service) Institutions(ctx context.Context, userID string) ([]Institution, error) {
	var items []models.PlaidItem
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.ItemStatusActive).
		Order("id").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list institutions: %w", err)
	}

	institutions := make([]Institution, len(items))
	for i, item := range items {
		institutions[i] = Institution{
			ItemID:          item.PlaidItemID,
			InstitutionName: item.InstitutionName,
			InstitutionID:   item.InstitutionID,
			Status:          item.Status,
		}
	}
	return institutions, nil
}

// UpdateBalances refreshes the balances of one of the user's items and
// returns its accounts
func (s *Service) UpdateBalances(ctx context.Context, userID, itemID string) ([]models.Account, error) {
	item, err := s.activeItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	return s.refreshItem(ctx, item)
}

// RefreshItem refreshes the balances of an item regardless of owner. Used
// by the scheduled refresh.
func (s *Service) RefreshItem(ctx context.Context, itemID string) error {
	var item models.PlaidItem
	err := s.db.WithContext(ctx).
		Where("plaid_item_id = ? AND status = ?", itemID, models.ItemStatusActive).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load item: %w", err)
	}

	_, err = s.refreshItem(ctx, &item)
	return err
}

// ActiveItemIDs lists the Plaid item IDs of every active item
func (s *Service) ActiveItemIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.PlaidItem{}).
		Where("status = ?", models.ItemStatusActive).
		Pluck("plaid_item_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list active items: %w", err)
	}
	return ids, nil
}

// Disconnect removes an item at Plaid, revokes the stored token, and
// deletes the item's accounts
func (s *Service) Disconnect(ctx context.Context, userID, itemID string) error {
	item, err := s.activeItem(ctx, userID, itemID)
	switch {
	case errors.Is(err, ErrItemNotFound):
		// Nothing to revoke; still clear any leftover accounts
	case err != nil:
		return err
	default:
		accessToken, err := s.cipher.Decrypt(item.EncryptedAccessToken)
		if err != nil {
			s.logger.Warn().Err(err).Str("item_id", itemID).Msg("Cannot decrypt access token, skipping Plaid removal")
		} else if err := s.plaid.RemoveItem(ctx, accessToken); err != nil {
			return fmt.Errorf("failed to remove item: %w", err)
		}

		if err := s.db.WithContext(ctx).Model(item).Update("status", models.ItemStatusRevoked).Error; err != nil {
			return fmt.Errorf("failed to revoke item: %w", err)
		}
	}

	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND plaid_item_id = ?", userID, itemID).
		Delete(&models.Account{}).Error; err != nil {
		return fmt.Errorf("failed to delete accounts: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("item_id", itemID).Msg("Disconnected institution")
	return nil
}

func (s *Service) activeItem(ctx context.Context, userID, itemID string) (*models.PlaidItem, error) {
	var item models.PlaidItem
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND plaid_item_id = ? AND status = ?", userID, itemID, models.ItemStatusActive).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	return &item, nil
}

func (s *Service) refreshItem(ctx context.Context, item *models.PlaidItem) ([]models.Account, error) {
	accessToken, err := s.cipher.Decrypt(item.EncryptedAccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccessTokenUnusable, err)
	}

	fresh, err := s.plaid.GetAccounts(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}

	byPlaidID := make(map[string]plaid.Account, len(fresh))
	for _, a := range fresh {
		byPlaidID[a.AccountID] = a
	}

	var accounts []models.Account
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND plaid_item_id = ?", item.UserID, item.PlaidItemID).
		Order("id").
		Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	now := s.now().UTC()
	for i := range accounts {
		a, ok := byPlaidID[accounts[i].PlaidAccountID]
		if !ok {
			continue
		}
		current, available := balances(a.Balances)
		accounts[i].BalanceCurrent = current
		accounts[i].BalanceAvailable = available
		accounts[i].LastUpdated = now

		updates := map[string]any{
			"balance_current":   current,
			"balance_available": nil,
			"last_updated":      now,
		}
		if available != nil {
			updates["balance_available"] = *available
		}
		if err := s.db.WithContext(ctx).Model(&accounts[i]).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update account: %w", err)
		}
	}

	s.logger.Debug().Str("item_id", item.PlaidItemID).Int("accounts", len(accounts)).Msg("Refreshed balances")
	return accounts, nil
}

func (s *Service) newAccount(userID, itemID string, a plaid.Account) models.Account {
	current, available := balances(a.Balances)
	return models.Account{
		UserID:           userID,
		PlaidAccountID:   a.AccountID,
		PlaidItemID:      itemID,
		Name:             a.Name,
		OfficialName:     a.OfficialName,
		Type:             a.Type,
		Subtype:          a.Subtype,
		BalanceCurrent:   current,
		BalanceAvailable: available,
		ISOCurrencyCode:  a.Balances.ISOCurrencyCode,
		LastUpdated:      s.now().UTC(),
	}
}

// balances treats a missing current balance as zero
func balances(b plaid.Balances) (decimal.Decimal, *decimal.Decimal) {
	current := decimal.Zero
	if b.Current != nil {
		current = *b.Current
	}
	return current, b.Available
}
