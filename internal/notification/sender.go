package notification

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Sender delivers one event to one user
type Sender interface {
	Send(ctx context.Context, event Event, targetUserID int64) error
}

// Senders fans an event out to every channel. All channels are attempted;
// their errors are joined. The dispatcher splits it and retries per channel.
type Senders []Sender

func (s Senders) Send(ctx context.Context, event Event, targetUserID int64) error {
	var errs []error
	for _, sender := range s {
		if err := sender.Send(ctx, event, targetUserID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSender writes events to the log. Used when no transport is configured.
type LogSender struct {
	log *logrus.Logger
}

func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, event Event, targetUserID int64) error {
	s.log.WithFields(logrus.Fields{
		"event_id":       event.ID,
		"event_type":     event.Type,
		"target_user_id": targetUserID,
		"transaction_id": event.Data.TransactionID,
		"amount":         event.Data.Amount.String(),
	}).Info("Notification")
	return nil
}
