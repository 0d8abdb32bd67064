// Package notification delivers transfer events to users outside the
// request path.
package notification

import (
	"time"

	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TypeTransactionCreated is emitted once per committed transfer.
const TypeTransactionCreated = "TRANSACTION_CREATED"

// TransactionData is the payload of a TRANSACTION_CREATED event
type TransactionData struct {
	TransactionID      int64           `json:"transaction_id"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	SenderEmail        string          `json:"sender_email"`
	SenderAccountID    int64           `json:"sender_account_id"`
	RecipientAccountID int64           `json:"recipient_account_id"`
	Timestamp          time.Time       `json:"timestamp"`
}

// Event is an outbound notification
type Event struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	RecipientUserID int64           `json:"recipient_user_id"`
	Data            TransactionData `json:"data"`
}

// NewTransactionCreated builds the event for a resolved transaction.
func NewTransactionCreated(t *models.Transaction) Event {
	e := Event{
		ID:   uuid.NewString(),
		Type: TypeTransactionCreated,
		Data: TransactionData{
			TransactionID:      t.ID,
			Amount:             t.Amount,
			SenderAccountID:    t.SenderAccountID,
			RecipientAccountID: t.RecipientAccountID,
			Timestamp:          t.CreatedAt,
		},
	}
	if t.Sender != nil {
		e.Data.SenderEmail = t.Sender.Email
		e.Data.Currency = t.Sender.Currency
	}
	if t.Recipient != nil {
		e.RecipientUserID = t.Recipient.UserID
	}
	return e
}
