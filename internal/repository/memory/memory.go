// Package memory is an in-process Store. Account locks block like row locks,
// so concurrent transfers behave as they do against PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/Dan9191/ledger-service/internal/repository"
	"github.com/shopspring/decimal"
)

// Store is a thread-safe in-memory store implementation.
type Store struct {
	mu           sync.RWMutex
	users        map[int64]*models.User
	emailIndex   map[string]int64
	accounts     map[int64]*models.Account
	transactions map[int64]*models.Transaction
	categories   map[int64]*models.Category
	locks        map[int64]chan struct{}

	userSeq        int64
	accountSeq     int64
	transactionSeq int64
	categorySeq    int64
	lastStamp      time.Time

	now func() time.Time
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*tx)(nil)
)

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:        make(map[int64]*models.User),
		emailIndex:   make(map[string]int64),
		accounts:     make(map[int64]*models.Account),
		transactions: make(map[int64]*models.Transaction),
		categories:   make(map[int64]*models.Category),
		locks:        make(map[int64]chan struct{}),
		now:          time.Now,
	}
}

// stamp returns a strictly increasing timestamp. Caller must hold s.mu.
func (s *Store) stamp() time.Time {
	t := s.now().UTC()
	if !t.After(s.lastStamp) {
		t = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = t
	return t
}

// lockFor returns the lock channel for an account. Caller must hold s.mu.
func (s *Store) lockFor(id int64) chan struct{} {
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	return l
}

// WithinTx runs fn in a unit of work. Writes are staged and become visible
// atomically on commit; account locks are released when fn's work ends.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	t := newTx(s)
	defer func() {
		if p := recover(); p != nil {
			t.release()
			panic(p)
		}
	}()

	if err := fn(t); err != nil {
		t.release()
		return err
	}
	if err := ctx.Err(); err != nil {
		t.release()
		return err
	}
	return t.commit()
}

// GetUserByID retrieves a user by id
func (s *Store) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userLocked(id)
}

func (s *Store) userLocked(id int64) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[email]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return s.userLocked(id)
}

// ListUsers returns every user ordered by id
func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// SetUserActive flips the soft-disable flag of a user
func (s *Store) SetUserActive(_ context.Context, id int64, active bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	u.IsActive = active
	u.UpdatedAt = s.now().UTC()
	cp := *u
	return &cp, nil
}

// SetUserRole changes the role of a user
func (s *Store) SetUserRole(_ context.Context, id int64, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	u.Role = role
	u.UpdatedAt = s.now().UTC()
	return nil
}

// DeleteUser removes a user with its accounts and categories. Users whose
// accounts appear in transactions or are locked by a unit of work are kept.
func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrUserNotFound
	}

	owned := make(map[int64]struct{})
	for _, a := range s.accounts {
		if a.UserID == id {
			owned[a.ID] = struct{}{}
		}
	}

	// Accounts locked by an open unit of work are in use, as with row locks.
	held := make([]chan struct{}, 0, len(owned))
	defer func() {
		for _, l := range held {
			<-l
		}
	}()
	for accountID := range owned {
		l := s.lockFor(accountID)
		select {
		case l <- struct{}{}:
			held = append(held, l)
		default:
			return models.ErrConflict
		}
	}

	for _, t := range s.transactions {
		_, sent := owned[t.SenderAccountID]
		_, received := owned[t.RecipientAccountID]
		if sent || received {
			return models.ErrConflict
		}
	}

	for accountID := range owned {
		delete(s.accounts, accountID)
	}
	for cid, c := range s.categories {
		if c.UserID == id {
			delete(s.categories, cid)
		}
	}
	delete(s.emailIndex, u.Email)
	delete(s.users, id)
	return nil
}

// GetAccount retrieves an account
func (s *Store) GetAccount(_ context.Context, id int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountLocked(id)
}

func (s *Store) accountLocked(id int64) (*models.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

// GetAccountByUser retrieves the oldest account of a user
func (s *Store) GetAccountByUser(_ context.Context, userID int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Account
	for _, a := range s.accounts {
		if a.UserID == userID && (found == nil || a.ID < found.ID) {
			found = a
		}
	}
	if found == nil {
		return nil, models.ErrAccountNotFound
	}
	cp := *found
	return &cp, nil
}

// GetTransaction retrieves a transaction with both parties resolved
func (s *Store) GetTransaction(_ context.Context, id int64) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s.resolveLocked(t), nil
}

func (s *Store) resolveLocked(t *models.Transaction) *models.Transaction {
	cp := *t
	cp.Sender = s.partyLocked(t.SenderAccountID)
	cp.Recipient = s.partyLocked(t.RecipientAccountID)
	return &cp
}

func (s *Store) partyLocked(accountID int64) *models.Party {
	p := &models.Party{AccountID: accountID}
	if a, ok := s.accounts[accountID]; ok {
		p.UserID = a.UserID
		p.Currency = a.Currency
		if u, ok := s.users[a.UserID]; ok {
			p.Email = u.Email
		}
	}
	return p
}

// ListTransactions returns a page of transactions ordered by id
func (s *Store) ListTransactions(_ context.Context, page models.Pagination) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.transactions))
	for id := range s.transactions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []models.Transaction{}
	for i := page.Skip; i < len(ids) && len(out) < page.Limit; i++ {
		out = append(out, *s.resolveLocked(s.transactions[ids[i]]))
	}
	return out, nil
}

// DeleteTransaction removes a transaction record
func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

// SumIncoming totals the amounts received by an account in [from, to)
func (s *Store) SumIncoming(_ context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error) {
	return s.sum(from, to, func(t *models.Transaction) bool { return t.RecipientAccountID == accountID }), nil
}

// SumOutgoing totals the amounts sent by an account in [from, to)
func (s *Store) SumOutgoing(_ context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error) {
	return s.sum(from, to, func(t *models.Transaction) bool { return t.SenderAccountID == accountID }), nil
}

func (s *Store) sum(from, to time.Time, match func(*models.Transaction) bool) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, t := range s.transactions {
		if match(t) && !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// CreateCategory creates a category owned by a user
func (s *Store) CreateCategory(_ context.Context, category *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[category.UserID]; !ok {
		return models.ErrUserNotFound
	}
	s.categorySeq++
	category.ID = s.categorySeq
	cp := *category
	s.categories[cp.ID] = &cp
	return nil
}

// GetCategory retrieves a category by id
func (s *Store) GetCategory(_ context.Context, id int64) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, models.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

// ListCategories returns the categories of a user ordered by id
func (s *Store) ListCategories(_ context.Context, userID int64) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Category{}
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
