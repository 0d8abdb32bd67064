package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dan9191/ledger-service/internal/access"
	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/Dan9191/ledger-service/internal/notification"
	"github.com/Dan9191/ledger-service/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TransferRequest moves Amount from the sender account to the recipient account
type TransferRequest struct {
	SenderAccountID    int64
	RecipientAccountID int64
	Amount             decimal.Decimal
	Description        string
	CategoryID         *int64
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return models.ErrInvalidAmount
	}
	return nil
}

// Transfer debits the sender, credits the recipient and records the
// transaction in one unit of work. The returned transaction has both parties
// resolved. The recipient's owner is notified after commit.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*models.Transaction, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	var created *models.Transaction
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		sender, err := tx.GetAccount(ctx, req.SenderAccountID)
		if err != nil {
			return notFoundAs(err, models.ErrSenderNotFound)
		}
		recipient, err := tx.GetAccount(ctx, req.RecipientAccountID)
		if err != nil {
			return notFoundAs(err, models.ErrRecipientNotFound)
		}
		if sender.ID == recipient.ID {
			return models.ErrSelfTransfer
		}
		if req.CategoryID != nil {
			category, err := tx.GetCategory(ctx, *req.CategoryID)
			if err != nil {
				return err
			}
			if category.UserID != sender.UserID {
				return models.ErrCategoryNotFound
			}
		}

		// Balances read above are advisory; only the locked copies count.
		locked, err := lockInOrder(ctx, tx, sender.ID, recipient.ID)
		if err != nil {
			return err
		}
		if locked[sender.ID].Balance.LessThan(req.Amount) {
			return models.ErrInsufficientFunds
		}

		debited, err := tx.ApplyDelta(ctx, sender.ID, req.Amount.Neg())
		if err != nil {
			return err
		}
		credited, err := tx.ApplyDelta(ctx, recipient.ID, req.Amount)
		if err != nil {
			return err
		}

		t := &models.Transaction{
			Amount:             req.Amount,
			Description:        req.Description,
			SenderAccountID:    sender.ID,
			RecipientAccountID: recipient.ID,
			CategoryID:         req.CategoryID,
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		if t.Sender, err = resolveParty(ctx, tx, debited); err != nil {
			return err
		}
		if t.Recipient, err = resolveParty(ctx, tx, credited); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"sender_account_id":    req.SenderAccountID,
			"recipient_account_id": req.RecipientAccountID,
			"amount":               req.Amount.String(),
		}).WithError(err).Warn("Transfer rejected")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"sender_account_id":    created.SenderAccountID,
		"recipient_account_id": created.RecipientAccountID,
		"amount":               created.Amount.String(),
		"transaction_id":       created.ID,
	}).Info("Transfer committed")

	s.notifier.Notify(notification.NewTransactionCreated(created), created.Recipient.UserID)
	return created, nil
}

// TransferFrom sends from the principal's own account.
func (s *Service) TransferFrom(ctx context.Context, p models.Principal, recipientAccountID int64, amount decimal.Decimal, description string, categoryID *int64) (*models.Transaction, error) {
	if !access.Authorize(p, models.RoleUser, models.RoleAdmin) {
		return nil, models.ErrForbidden
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	account, err := s.store.GetAccountByUser(ctx, p.ID)
	if err != nil {
		return nil, notFoundAs(err, models.ErrSenderNotFound)
	}
	return s.Transfer(ctx, TransferRequest{
		SenderAccountID:    account.ID,
		RecipientAccountID: recipientAccountID,
		Amount:             amount,
		Description:        description,
		CategoryID:         categoryID,
	})
}

// lockInOrder takes the row locks of both accounts by ascending id so that
// opposite transfers between the same pair cannot deadlock.
func lockInOrder(ctx context.Context, tx repository.Tx, senderID, recipientID int64) (map[int64]*models.Account, error) {
	first, second := senderID, recipientID
	if second < first {
		first, second = second, first
	}

	locked := make(map[int64]*models.Account, 2)
	for _, id := range []int64{first, second} {
		a, err := tx.GetAccountForUpdate(ctx, id)
		if err != nil {
			if id == senderID {
				return nil, notFoundAs(err, models.ErrSenderNotFound)
			}
			return nil, notFoundAs(err, models.ErrRecipientNotFound)
		}
		locked[id] = a
	}
	return locked, nil
}

func resolveParty(ctx context.Context, tx repository.Tx, a *models.Account) (*models.Party, error) {
	owner, err := tx.GetUserByID(ctx, a.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve owner of account %d: %w", a.ID, err)
	}
	return &models.Party{
		AccountID: a.ID,
		UserID:    owner.ID,
		Email:     owner.Email,
		Currency:  a.Currency,
	}, nil
}

func notFoundAs(err, target error) error {
	if errors.Is(err, models.ErrAccountNotFound) {
		return target
	}
	return err
}
