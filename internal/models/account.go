package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultCurrency is the currency tag of accounts opened at registration
	DefaultCurrency = "USD"
	// DefaultAccountName is the name of the account opened at registration
	DefaultAccountName = "Main"
)

// Account holds the balance of a single user
type Account struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
