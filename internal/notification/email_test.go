package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/Dan9191/ledger-service/internal/config"
	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers map[int64]*models.User

func (s stubUsers) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return u, nil
}

func newTestEmailSender(sent *[]*email.Email, err error) *EmailSender {
	cfg := &config.Config{SenderEmail: "noreply@ledger.local"}
	s := NewEmailSender(cfg, quietLogger(), stubUsers{20: {ID: 20, Email: "bob@example.com"}})
	s.send = func(e *email.Email) error {
		*sent = append(*sent, e)
		return err
	}
	return s
}

func TestEmailSenderNotifiesRecipient(t *testing.T) {
	var sent []*email.Email
	s := newTestEmailSender(&sent, nil)

	require.NoError(t, s.Send(context.Background(), NewTransactionCreated(sampleTransaction()), 20))
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"bob@example.com"}, sent[0].To)
	assert.Equal(t, "noreply@ledger.local", sent[0].From)
	assert.Contains(t, string(sent[0].Text), "12.50 USD")
	assert.Contains(t, string(sent[0].Text), "alice@example.com")
}

func TestEmailSenderUnknownRecipient(t *testing.T) {
	var sent []*email.Email
	s := newTestEmailSender(&sent, nil)

	err := s.Send(context.Background(), Event{ID: "e"}, 99)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	assert.Empty(t, sent)
}

func TestEmailSenderStatement(t *testing.T) {
	var sent []*email.Email
	s := newTestEmailSender(&sent, errors.New("smtp down"))

	err := s.SendStatement("bob@example.com", &models.ReportSummary{
		Period:      models.Period{StartDate: "2026-02-01", EndDate: "2026-02-28"},
		TotalIncome: decimal.NewFromInt(5),
	})
	assert.Error(t, err)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Subject, "2026-02-01")
	assert.Contains(t, string(sent[0].Text), "Total income: 5.00")
}
