package service

import (
	"time"

	"github.com/Dan9191/ledger-service/internal/config"
	"github.com/Dan9191/ledger-service/internal/notification"
	"github.com/Dan9191/ledger-service/internal/receipt"
	"github.com/Dan9191/ledger-service/internal/repository"
	"github.com/sirupsen/logrus"
)

// Notifier accepts events for delivery after a transfer commits. It must not block.
type Notifier interface {
	Notify(event notification.Event, targetUserID int64)
}

// Service handles business logic
type Service struct {
	store    repository.Store
	notifier Notifier
	receipts receipt.Renderer
	log      *logrus.Logger
	config   *config.Config
	now      func() time.Time
}

// NewService initializes a new service
func NewService(store repository.Store, notifier Notifier, receipts receipt.Renderer, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		receipts: receipts,
		log:      log,
		config:   cfg,
		now:      time.Now,
	}
}
