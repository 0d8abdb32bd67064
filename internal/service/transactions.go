package service

import (
	"context"
	"fmt"

	"github.com/Dan9191/ledger-service/internal/access"
	"github.com/Dan9191/ledger-service/internal/models"
)

// GetTransaction returns a transaction the principal may view. Transactions
// outside the principal's view are reported as not found.
func (s *Service) GetTransaction(ctx context.Context, p models.Principal, id int64) (*models.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(p, t) {
		s.log.Debugf("Transaction %d hidden from user %d", id, p.ID)
		return nil, models.ErrNotFound
	}
	return t, nil
}

// DeleteTransaction removes a transaction record. Balances are not touched.
func (s *Service) DeleteTransaction(ctx context.Context, p models.Principal, id int64) error {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if !access.CanDelete(p, t) {
		return models.ErrNotFound
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.log.Infof("Transaction %d deleted by user %d", id, p.ID)
	return nil
}

// ListTransactions pages through every transaction. Admin only.
func (s *Service) ListTransactions(ctx context.Context, p models.Principal, page models.Pagination) ([]models.Transaction, error) {
	if !access.Authorize(p, models.RoleAdmin) {
		return nil, models.ErrForbidden
	}
	return s.store.ListTransactions(ctx, page)
}

// Receipt renders the receipt document of a transaction the principal may view
func (s *Service) Receipt(ctx context.Context, p models.Principal, id int64) ([]byte, string, error) {
	t, err := s.GetTransaction(ctx, p, id)
	if err != nil {
		return nil, "", err
	}
	doc, err := s.receipts.Render(t)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render receipt %d: %w", id, err)
	}
	return doc, s.receipts.ContentType(), nil
}
