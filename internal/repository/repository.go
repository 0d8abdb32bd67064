package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q querier
}

// Repository provides database operations
type Repository struct {
	queries
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{queries: queries{q: db}, db: db}
}

type txRepository struct {
	queries
}

var (
	_ Store = (*Repository)(nil)
	_ Tx    = (*txRepository)(nil)
)

// WithinTx runs fn inside a read-committed database transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txRepository{queries: queries{q: tx}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateUser creates a new user in the database
func (q queries) CreateUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	query := `
		INSERT INTO bank.users (email, password_hash, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := q.q.QueryRowContext(ctx, query, user.Email, user.PasswordHash, string(user.Role), user.IsActive).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isPQCode(err, pqUniqueViolation) {
		return models.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const selectUser = `
		SELECT id, email, password_hash, role, is_active, created_at, updated_at
		FROM bank.users`

// GetUserByID retrieves a user by id
func (q queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(q.q.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id))
}

// GetUserByEmail retrieves a user by email
func (q queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(q.q.QueryRowContext(ctx, selectUser+` WHERE email = $1`, email))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var role string
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	user.Role = models.Role(role)
	return user, nil
}

// ListUsers returns every user ordered by id
func (q queries) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := q.q.QueryContext(ctx, selectUser+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// SetUserActive flips the soft-disable flag of a user
func (q queries) SetUserActive(ctx context.Context, id int64, active bool) (*models.User, error) {
	query := `
		UPDATE bank.users SET is_active = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING id, email, password_hash, role, is_active, created_at, updated_at`
	return scanUser(q.q.QueryRowContext(ctx, query, id, active))
}

// SetUserRole changes the role of a user
func (q queries) SetUserRole(ctx context.Context, id int64, role models.Role) error {
	res, err := q.q.ExecContext(ctx, `UPDATE bank.users SET role = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id, string(role))
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return expectAffected(res, models.ErrUserNotFound)
}

// DeleteUser removes a user together with its accounts and categories
func (q queries) DeleteUser(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM bank.users WHERE id = $1`, id)
	if isPQCode(err, pqForeignKeyViolation) {
		return models.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectAffected(res, models.ErrUserNotFound)
}

// CreateAccount creates a new account in the database
func (q queries) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO bank.accounts (user_id, name, balance, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := q.q.QueryRowContext(ctx, query, account.UserID, account.Name, account.Balance, account.Currency).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if isPQCode(err, pqForeignKeyViolation) {
		return models.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

const selectAccount = `
		SELECT id, user_id, name, balance, currency, created_at, updated_at
		FROM bank.accounts`

// GetAccount retrieves an account without locking it
func (q queries) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	return scanAccount(q.q.QueryRowContext(ctx, selectAccount+` WHERE id = $1`, id))
}

// GetAccountByUser retrieves the oldest account of a user
func (q queries) GetAccountByUser(ctx context.Context, userID int64) (*models.Account, error) {
	return scanAccount(q.q.QueryRowContext(ctx, selectAccount+` WHERE user_id = $1 ORDER BY id LIMIT 1`, userID))
}

// GetAccountForUpdate retrieves an account and locks its row until the transaction ends
func (q queries) GetAccountForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	return scanAccount(q.q.QueryRowContext(ctx, selectAccount+` WHERE id = $1 FOR UPDATE`, id))
}

func scanAccount(row rowScanner) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(&account.ID, &account.UserID, &account.Name, &account.Balance, &account.Currency,
		&account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

// ApplyDelta changes the balance of an account, refusing to go below zero
func (q queries) ApplyDelta(ctx context.Context, id int64, delta decimal.Decimal) (*models.Account, error) {
	query := `
		UPDATE bank.accounts SET balance = balance + $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND balance + $2 >= 0
		RETURNING id, user_id, name, balance, currency, created_at, updated_at`
	account, err := scanAccount(q.q.QueryRowContext(ctx, query, id, delta))
	if !errors.Is(err, models.ErrAccountNotFound) {
		return account, err
	}

	// No row: either the account is missing or the guard rejected the update.
	if _, err := q.GetAccount(ctx, id); err != nil {
		return nil, err
	}
	return nil, models.ErrInsufficientFunds
}

// InsertTransaction records a transfer
func (q queries) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO bank.transactions (amount, description, sender_account_id, recipient_account_id, category_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := q.q.QueryRowContext(ctx, query, t.Amount, nullString(t.Description),
		t.SenderAccountID, t.RecipientAccountID, nullInt64(t.CategoryID)).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

const selectTransaction = `
		SELECT t.id, t.amount, t.description, t.created_at, t.sender_account_id, t.recipient_account_id, t.category_id,
			sa.user_id, su.email, sa.currency, ra.user_id, ru.email, ra.currency
		FROM bank.transactions t
		JOIN bank.accounts sa ON sa.id = t.sender_account_id
		JOIN bank.users su ON su.id = sa.user_id
		JOIN bank.accounts ra ON ra.id = t.recipient_account_id
		JOIN bank.users ru ON ru.id = ra.user_id`

// GetTransaction retrieves a transaction with sender and recipient eagerly joined
func (q queries) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	return scanTransaction(q.q.QueryRowContext(ctx, selectTransaction+` WHERE t.id = $1`, id))
}

// ListTransactions returns a page of transactions ordered by id
func (q queries) ListTransactions(ctx context.Context, page models.Pagination) ([]models.Transaction, error) {
	rows, err := q.q.QueryContext(ctx, selectTransaction+` ORDER BY t.id OFFSET $1 LIMIT $2`, page.Skip, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t           models.Transaction
		sender      models.Party
		recipient   models.Party
		description sql.NullString
		categoryID  sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.Amount, &description, &t.CreatedAt, &t.SenderAccountID, &t.RecipientAccountID, &categoryID,
		&sender.UserID, &sender.Email, &sender.Currency, &recipient.UserID, &recipient.Email, &recipient.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	t.Description = description.String
	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
	}
	sender.AccountID = t.SenderAccountID
	recipient.AccountID = t.RecipientAccountID
	t.Sender = &sender
	t.Recipient = &recipient
	return &t, nil
}

// DeleteTransaction removes a transaction record
func (q queries) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM bank.transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectAffected(res, models.ErrNotFound)
}

// SumIncoming totals the amounts received by an account in [from, to)
func (q queries) SumIncoming(ctx context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error) {
	return q.sum(ctx, `
		SELECT SUM(amount) FROM bank.transactions
		WHERE recipient_account_id = $1 AND created_at >= $2 AND created_at < $3`, accountID, from, to)
}

// SumOutgoing totals the amounts sent by an account in [from, to)
func (q queries) SumOutgoing(ctx context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error) {
	return q.sum(ctx, `
		SELECT SUM(amount) FROM bank.transactions
		WHERE sender_account_id = $1 AND created_at >= $2 AND created_at < $3`, accountID, from, to)
}

func (q queries) sum(ctx context.Context, query string, accountID int64, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := q.q.QueryRowContext(ctx, query, accountID, from, to).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions: %w", err)
	}
	// SUM over no rows is NULL
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// CreateCategory creates a category owned by a user
func (q queries) CreateCategory(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO bank.categories (name, user_id)
		VALUES ($1, $2)
		RETURNING id`
	err := q.q.QueryRowContext(ctx, query, category.Name, category.UserID).Scan(&category.ID)
	if isPQCode(err, pqForeignKeyViolation) {
		return models.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// GetCategory retrieves a category by id
func (q queries) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	category := &models.Category{}
	err := q.q.QueryRowContext(ctx, `SELECT id, name, user_id FROM bank.categories WHERE id = $1`, id).
		Scan(&category.ID, &category.Name, &category.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return category, nil
}

// ListCategories returns the categories of a user ordered by id
func (q queries) ListCategories(ctx context.Context, userID int64) ([]models.Category, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT id, name, user_id FROM bank.categories WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.UserID); err != nil {
			return nil, fmt.Errorf("failed to list categories: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isPQCode(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
