package repository

import (
	"context"
	"time"

	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/shopspring/decimal"
)

// Reader is the lookup surface available both on the pool and inside a unit of work.
type Reader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	GetAccountByUser(ctx context.Context, userID int64) (*models.Account, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
}

// Tx is a unit of work. Locks taken by GetAccountForUpdate are held until the
// unit of work commits or rolls back.
type Tx interface {
	Reader

	// GetAccountForUpdate reads the account under an exclusive row lock.
	GetAccountForUpdate(ctx context.Context, id int64) (*models.Account, error)
	// ApplyDelta adds delta to the balance and fails with
	// models.ErrInsufficientFunds when the result would be negative.
	ApplyDelta(ctx context.Context, id int64, delta decimal.Decimal) (*models.Account, error)

	CreateUser(ctx context.Context, user *models.User) error
	CreateAccount(ctx context.Context, account *models.Account) error
	InsertTransaction(ctx context.Context, t *models.Transaction) error
}

// Store is the persistence boundary of the service.
type Store interface {
	Reader

	// WithinTx runs fn in a unit of work, committing when fn returns nil and
	// rolling back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	ListUsers(ctx context.Context) ([]models.User, error)
	SetUserActive(ctx context.Context, id int64, active bool) (*models.User, error)
	SetUserRole(ctx context.Context, id int64, role models.Role) error
	DeleteUser(ctx context.Context, id int64) error

	// GetTransaction returns the transaction with both parties resolved.
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	ListTransactions(ctx context.Context, page models.Pagination) ([]models.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error

	// SumIncoming and SumOutgoing total the amounts received / sent by the
	// account with created_at in [from, to). No rows sum to zero.
	SumIncoming(ctx context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error)
	SumOutgoing(ctx context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error)

	CreateCategory(ctx context.Context, category *models.Category) error
	ListCategories(ctx context.Context, userID int64) ([]models.Category, error)
}
