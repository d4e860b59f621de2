package banking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thrivebase/thrivebase/internal/models"
)

// ErrInvalidTransaction is returned when a transaction fails validation
var ErrInvalidTransaction = errors.New("invalid transaction")

// SummaryTotals aggregates all of a user's accounts
type SummaryTotals struct {
	TotalCurrentBalance   decimal.Decimal `json:"total_current_balance"`
	TotalAvailableBalance decimal.Decimal `json:"total_available_balance"`
	TotalAccounts         int             `json:"total_accounts"`
}

// AccountSummary is every account plus totals
type AccountSummary struct {
	Accounts []models.Account `json:"accounts"`
	Summary  SummaryTotals    `json:"summary"`
}

// NewTransaction is a transaction submitted for storage
type NewTransaction struct {
	AccountID   string          `json:"account_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date" binding:"required,datetime=2006-01-02"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
}

// Summary totals the user's balances. Accounts without an available
// balance add nothing to the available total.
func (s *Service) Summary(ctx context.Context, userID string) (*AccountSummary, error) {
	accounts, err := s.Accounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	totals := SummaryTotals{
		TotalCurrentBalance:   decimal.Zero,
		TotalAvailableBalance: decimal.Zero,
		TotalAccounts:         len(accounts),
	}
	for _, a := range accounts {
		totals.TotalCurrentBalance = totals.TotalCurrentBalance.Add(a.BalanceCurrent)
		if a.BalanceAvailable != nil {
			totals.TotalAvailableBalance = totals.TotalAvailableBalance.Add(*a.BalanceAvailable)
		}
	}

	return &AccountSummary{Accounts: accounts, Summary: totals}, nil
}

// Transactions lists the user's transactions, newest first, optionally for
// one account
func (s *Service) Transactions(ctx context.Context, userID, accountID string) ([]models.Transaction, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}

	transactions := []models.Transaction{}
	if err := query.Order("date DESC").Order("id DESC").Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

// StoreTransactions saves a batch of transactions for the user
func (s *Service) StoreTransactions(ctx context.Context, userID string, batch []NewTransaction) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	rows := make([]models.Transaction, len(batch))
	for i, t := range batch {
		if strings.TrimSpace(t.AccountID) == "" {
			return 0, fmt.Errorf("%w: account_id is required", ErrInvalidTransaction)
		}
		rows[i] = models.Transaction{
			UserID:      userID,
			AccountID:   t.AccountID,
			Amount:      t.Amount,
			Date:        t.Date,
			Description: t.Description,
			Category:    t.Category,
		}
	}

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("failed to store transactions: %w", err)
	}
	return len(rows), nil
}

// DeleteUserData deletes the user's stored transactions
func (s *Service) DeleteUserData(ctx context.Context, userID string) error {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Transaction{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete user data: %w", result.Error)
	}
	s.logger.Info().Str("user_id", userID).Int64("transactions", result.RowsAffected).Msg("Deleted user data")
	return nil
}

// SignupNewsletter records a newsletter subscription. Repeat signups are
// accepted without creating a second row.
func (s *Service) SignupNewsletter(ctx context.Context, email string) error {
	signup := models.NewsletterSignup{Email: strings.ToLower(strings.TrimSpace(email)), Status: "active"}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&signup).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("failed to store newsletter signup: %w", err)
	}
	return nil
}
