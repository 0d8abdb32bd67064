package notification

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/Dan9191/ledger-service/internal/config"
	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// UserLookup resolves the address of a notified user
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// EmailSender handles sending emails via SMTP
type EmailSender struct {
	cfg    *config.Config
	logger *logrus.Logger
	users  UserLookup
	send   func(e *email.Email) error
}

// NewEmailSender creates a new email sender
func NewEmailSender(cfg *config.Config, logger *logrus.Logger, users UserLookup) *EmailSender {
	s := &EmailSender{
		cfg:    cfg,
		logger: logger,
		users:  users,
	}
	s.send = s.smtpSend
	return s
}

func (s *EmailSender) smtpSend(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	return e.Send(addr, auth)
}

// Send e-mails the recipient of a transfer
func (s *EmailSender) Send(ctx context.Context, event Event, targetUserID int64) error {
	user, err := s.users.GetUserByID(ctx, targetUserID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient %d: %w", targetUserID, err)
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{user.Email}
	e.Subject = "Incoming Transfer Notification"

	// Format email body
	body := fmt.Sprintf("Dear %s,\n\n", user.Email)
	body += fmt.Sprintf(
		"Your account %d has been credited with %s %s by %s.\n"+
			"Transaction: #%d\n"+
			"Transaction time: %s\n",
		event.Data.RecipientAccountID, event.Data.Amount.StringFixed(2), event.Data.Currency,
		event.Data.SenderEmail, event.Data.TransactionID,
		event.Data.Timestamp.Format("2006-01-02 15:04:05"),
	)
	body += "\nBest regards,\nLedger Service"
	e.Text = []byte(body)

	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send transfer notification to %s: %v", user.Email, err)
		return fmt.Errorf("failed to send transfer notification: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", user.Email, e.Subject)
	return nil
}

// SendStatement e-mails a period summary
func (s *EmailSender) SendStatement(to string, summary *models.ReportSummary) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Account Statement %s - %s", summary.Period.StartDate, summary.Period.EndDate)

	body := fmt.Sprintf("Dear %s,\n\n", to)
	body += fmt.Sprintf(
		"Starting balance: %s\n"+
			"Total income: %s\n"+
			"Total expense: %s\n"+
			"Net flow: %s\n"+
			"Ending balance: %s\n",
		summary.StartingBalance.StringFixed(2), summary.TotalIncome.StringFixed(2),
		summary.TotalExpense.StringFixed(2), summary.NetFlow.StringFixed(2),
		summary.EndingBalance.StringFixed(2),
	)
	body += "\nBest regards,\nLedger Service"
	e.Text = []byte(body)

	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send statement to %s: %v", to, err)
		return fmt.Errorf("failed to send statement: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
