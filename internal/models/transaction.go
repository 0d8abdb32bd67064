package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Party is one side of a transfer with its owner resolved
type Party struct {
	AccountID int64  `json:"account_id"`
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	Currency  string `json:"currency"`
}

// Transaction represents a committed transfer between two accounts
type Transaction struct {
	ID                 int64           `json:"id"`
	Amount             decimal.Decimal `json:"amount"`
	Description        string          `json:"description,omitempty"`
	CreatedAt          time.Time       `json:"timestamp"`
	SenderAccountID    int64           `json:"sender_account_id"`
	RecipientAccountID int64           `json:"recipient_account_id"`
	CategoryID         *int64          `json:"category_id,omitempty"`
	Sender             *Party          `json:"sender,omitempty"`
	Recipient          *Party          `json:"recipient,omitempty"`
}

// Resolved reports whether both parties and their owners are loaded.
func (t *Transaction) Resolved() bool {
	return t.Sender != nil && t.Recipient != nil &&
		t.Sender.Email != "" && t.Recipient.Email != ""
}
