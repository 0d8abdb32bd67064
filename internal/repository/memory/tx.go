package memory

import (
	"context"

	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/shopspring/decimal"
)

type tx struct {
	s *Store

	held     map[int64]chan struct{}
	accounts map[int64]*models.Account
	created  map[int64]bool
	users    map[int64]*models.User

	transactions []*models.Transaction
	done         bool
}

func newTx(s *Store) *tx {
	return &tx{
		s:        s,
		held:     make(map[int64]chan struct{}),
		accounts: make(map[int64]*models.Account),
		created:  make(map[int64]bool),
		users:    make(map[int64]*models.User),
	}
}

// acquire blocks until the account lock is free or ctx is done.
func (t *tx) acquire(ctx context.Context, id int64) error {
	if _, ok := t.held[id]; ok {
		return nil
	}
	t.s.mu.Lock()
	l := t.s.lockFor(id)
	t.s.mu.Unlock()

	select {
	case l <- struct{}{}:
		t.held[id] = l
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *tx) release() {
	if t.done {
		return
	}
	t.done = true
	for id, l := range t.held {
		<-l
		delete(t.held, id)
	}
}

func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	for _, u := range t.users {
		if owner, taken := s.emailIndex[u.Email]; taken && owner != u.ID {
			s.mu.Unlock()
			t.release()
			return models.ErrEmailTaken
		}
	}
	for id := range t.accounts {
		if _, ok := s.accounts[id]; !ok && !t.created[id] {
			s.mu.Unlock()
			t.release()
			return models.ErrAccountNotFound
		}
	}
	for _, u := range t.users {
		s.users[u.ID] = u
		s.emailIndex[u.Email] = u.ID
	}
	for id, a := range t.accounts {
		if t.created[id] {
			s.accounts[id] = a
			continue
		}
		current := s.accounts[id]
		current.Balance = a.Balance
		current.UpdatedAt = a.UpdatedAt
	}
	for _, tr := range t.transactions {
		s.transactions[tr.ID] = tr
	}
	s.mu.Unlock()
	t.release()
	return nil
}

func (t *tx) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := t.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return t.s.GetUserByID(ctx, id)
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range t.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return t.s.GetUserByEmail(ctx, email)
}

func (t *tx) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	if a, ok := t.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return t.s.GetAccount(ctx, id)
}

func (t *tx) GetAccountByUser(ctx context.Context, userID int64) (*models.Account, error) {
	var found *models.Account
	for id, a := range t.accounts {
		if t.created[id] && a.UserID == userID && (found == nil || a.ID < found.ID) {
			found = a
		}
	}
	committed, err := t.s.GetAccountByUser(ctx, userID)
	if err == nil && (found == nil || committed.ID < found.ID) {
		return t.GetAccount(ctx, committed.ID)
	}
	if found == nil {
		return nil, models.ErrAccountNotFound
	}
	cp := *found
	return &cp, nil
}

func (t *tx) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return t.s.GetCategory(ctx, id)
}

func (t *tx) GetAccountForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	if a, ok := t.accounts[id]; ok && (t.created[id] || t.held[id] != nil) {
		cp := *a
		return &cp, nil
	}
	if _, err := t.s.GetAccount(ctx, id); err != nil {
		return nil, err
	}
	if err := t.acquire(ctx, id); err != nil {
		return nil, err
	}

	// Re-read under the lock; anything seen before is stale.
	a, err := t.s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	t.accounts[id] = a
	cp := *a
	return &cp, nil
}

func (t *tx) ApplyDelta(ctx context.Context, id int64, delta decimal.Decimal) (*models.Account, error) {
	if _, err := t.GetAccountForUpdate(ctx, id); err != nil {
		return nil, err
	}
	a := t.accounts[id]
	balance := a.Balance.Add(delta)
	if balance.IsNegative() {
		return nil, models.ErrInsufficientFunds
	}
	a.Balance = balance

	t.s.mu.Lock()
	a.UpdatedAt = t.s.now().UTC()
	t.s.mu.Unlock()

	cp := *a
	return &cp, nil
}

func (t *tx) CreateUser(ctx context.Context, user *models.User) error {
	if _, err := t.GetUserByEmail(ctx, user.Email); err == nil {
		return models.ErrEmailTaken
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	t.s.mu.Lock()
	t.s.userSeq++
	user.ID = t.s.userSeq
	now := t.s.now().UTC()
	t.s.mu.Unlock()

	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	t.users[cp.ID] = &cp
	return nil
}

func (t *tx) CreateAccount(ctx context.Context, account *models.Account) error {
	if _, err := t.GetUserByID(ctx, account.UserID); err != nil {
		return err
	}

	t.s.mu.Lock()
	t.s.accountSeq++
	account.ID = t.s.accountSeq
	now := t.s.now().UTC()
	t.s.mu.Unlock()

	account.CreatedAt, account.UpdatedAt = now, now
	cp := *account
	t.accounts[cp.ID] = &cp
	t.created[cp.ID] = true
	return nil
}

func (t *tx) InsertTransaction(ctx context.Context, tr *models.Transaction) error {
	for _, id := range []int64{tr.SenderAccountID, tr.RecipientAccountID} {
		if _, err := t.GetAccount(ctx, id); err != nil {
			return err
		}
	}

	t.s.mu.Lock()
	t.s.transactionSeq++
	tr.ID = t.s.transactionSeq
	tr.CreatedAt = t.s.stamp()
	t.s.mu.Unlock()

	cp := *tr
	cp.Sender, cp.Recipient = nil, nil
	t.transactions = append(t.transactions, &cp)
	return nil
}
