package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// User is an account holder. Users created through Google sign in have no
// password hash until they set one.
type User struct {
	BaseModel
	Email        string    `json:"email" gorm:"unique;not null"`
	PasswordHash string    `json:"-"`
	GoogleID     string    `json:"-" gorm:"index"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// HasPassword reports whether the user can sign in with a password
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// RefreshSession backs a refresh token cookie. Only the token hash is stored.
type RefreshSession struct {
	BaseModel
	UserID    string     `json:"user_id" gorm:"not null;index"`
	TokenHash string     `json:"-" gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null"`
	RevokedAt *time.Time `json:"revoked_at"`

	User User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// Active reports whether the session can still be refreshed
func (s *RefreshSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Plaid item statuses
const (
	ItemStatusActive  = "active"
	ItemStatusRevoked = "revoked"
	ItemStatusError   = "error"
)

// PlaidItem is a linked institution with its encrypted access token
type PlaidItem struct {
	BaseModel
	UserID               string    `json:"user_id" gorm:"not null;index"`
	PlaidItemID          string    `json:"plaid_item_id" gorm:"not null;index"`
	EncryptedAccessToken string    `json:"-" gorm:"type:text;not null"`
	InstitutionID        string    `json:"institution_id"`
	InstitutionName      string    `json:"institution_name"`
	Status               string    `json:"status" gorm:"not null;default:active"`
	LastUpdated          time.Time `json:"last_updated" gorm:"autoUpdateTime"`
}

// Account is a bank account belonging to a Plaid item
type Account struct {
	BaseModel
	UserID           string           `json:"user_id" gorm:"not null;index"`
	PlaidAccountID   string           `json:"plaid_account_id" gorm:"not null"`
	PlaidItemID      string           `json:"plaid_item_id" gorm:"not null;index"`
	Name             string           `json:"name"`
	OfficialName     string           `json:"official_name"`
	Type             string           `json:"type"`
	Subtype          string           `json:"subtype"`
	BalanceCurrent   decimal.Decimal  `json:"balance_current" gorm:"type:decimal(20,2);not null"`
	BalanceAvailable *decimal.Decimal `json:"balance_available" gorm:"type:decimal(20,2)"`
	ISOCurrencyCode  string           `json:"iso_currency_code"`
	LastUpdated      time.Time        `json:"last_updated"`
}

// Transaction is a stored account transaction
type Transaction struct {
	BaseModel
	UserID      string          `json:"user_id" gorm:"not null;index"`
	AccountID   string          `json:"account_id" gorm:"not null;index"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(20,2);not null"`
	Date        string          `json:"date" gorm:"not null"` // YYYY-MM-DD
	Description string          `json:"description"`
	Category    string          `json:"category"`
}

// NewsletterSignup is a pre-launch newsletter subscription
type NewsletterSignup struct {
	BaseModel
	Email  string `json:"email" gorm:"unique;not null"`
	Status string `json:"status" gorm:"not null;default:active"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	// Collect all models
	models := []interface{}{
		&User{}, &RefreshSession{}, &PlaidItem{}, &Account{}, &Transaction{}, &NewsletterSignup{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}
