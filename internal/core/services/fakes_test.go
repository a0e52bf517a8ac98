package services_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerforge/corebank/internal/apperrors"
	"github.com/ledgerforge/corebank/internal/core/domain"
	"github.com/ledgerforge/corebank/internal/core/ports"
)

func decimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// fakeStore is an in-memory stand-in for the pgsql adapters, good enough to
// exercise the engine's business logic without a database. LockAccounts
// takes a real per-account mutex so concurrent commits touching overlapping
// account sets serialize the same way SELECT ... FOR UPDATE would.
type fakeStore struct {
	mu           sync.Mutex
	accountLocks map[string]*sync.Mutex
	accounts     map[string]domain.Account
	balances     map[string]domain.Balance
	transactions map[string]domain.Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accountLocks: make(map[string]*sync.Mutex),
		accounts:     make(map[string]domain.Account),
		balances:     make(map[string]domain.Balance),
		transactions: make(map[string]domain.Transaction),
	}
}

func (s *fakeStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.accountLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.accountLocks[id] = l
	}
	return l
}

func (s *fakeStore) seedAccount(a domain.Account, available string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	amount, _ := decimalFromString(available)
	s.balances[a.ID] = domain.Balance{AccountID: a.ID, Currency: a.Currency, Available: amount, UpdatedAt: time.Now(), Version: 1}
}

// fakeCommitContext tracks which account locks it acquired so Commit/Abort
// can release exactly those, mirroring a transaction's row-lock lifetime.
type fakeCommitContext struct {
	context.Context
	store    *fakeStore
	held     []string
	terminal bool
}

func (c *fakeCommitContext) Commit(ctx context.Context) error {
	c.release()
	return nil
}

func (c *fakeCommitContext) Abort(ctx context.Context) error {
	c.release()
	return nil
}

func (c *fakeCommitContext) release() {
	if c.terminal {
		return
	}
	c.terminal = true
	for _, id := range c.held {
		c.store.lockFor(id).Unlock()
	}
}

type fakeUnitOfWork struct {
	store *fakeStore
}

func newFakeUnitOfWork(store *fakeStore) *fakeUnitOfWork { return &fakeUnitOfWork{store: store} }

func (u *fakeUnitOfWork) Begin(ctx context.Context) (ports.CommitContext, error) {
	return &fakeCommitContext{Context: ctx, store: u.store}, nil
}

func asFakeCC(cc ports.CommitContext) *fakeCommitContext { return cc.(*fakeCommitContext) }

// --- AccountStore ---

func (s *fakeStore) CreateAccount(ctx ports.CommitContext, account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.AccountNumber == account.AccountNumber {
			return apperrors.NewConflictError("account number %s already exists", account.AccountNumber)
		}
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *fakeStore) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, apperrors.NewNotFoundError("account %s not found", id)
	}
	return a, nil
}

func (s *fakeStore) GetAccountByNumber(ctx context.Context, accountNumber string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.AccountNumber == accountNumber {
			return a, nil
		}
	}
	return domain.Account{}, apperrors.NewNotFoundError("account number %s not found", accountNumber)
}

func (s *fakeStore) UpdateAccount(ctx ports.CommitContext, account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.accounts[account.ID]
	if !ok {
		return apperrors.NewNotFoundError("account %s not found", account.ID)
	}
	if existing.Version != account.Version {
		return apperrors.NewConflictError("account %s was modified concurrently", account.ID)
	}
	account.Version++
	s.accounts[account.ID] = account
	return nil
}

func (s *fakeStore) ListAccountsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Account
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) LockAccounts(ctx ports.CommitContext, ids []string) (map[string]domain.Account, error) {
	cc := asFakeCC(ctx)
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	for _, id := range sorted {
		s.lockFor(id).Lock()
		cc.held = append(cc.held, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Account, len(ids))
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

// --- BalanceStore ---

func (s *fakeStore) InitBalance(ctx ports.CommitContext, balance domain.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance.Version = 1
	balance.UpdatedAt = time.Now()
	s.balances[balance.AccountID] = balance
	return nil
}

func (s *fakeStore) ReadBalance(ctx ports.CommitContext, accountID string) (domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[accountID]
	if !ok {
		return domain.Balance{}, apperrors.NewNotFoundError("balance for account %s not found", accountID)
	}
	return b, nil
}

func (s *fakeStore) WriteBalance(ctx ports.CommitContext, balance domain.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.balances[balance.AccountID]
	if !ok {
		return apperrors.NewNotFoundError("balance for account %s not found", balance.AccountID)
	}
	if existing.Version != balance.Version {
		return apperrors.NewConflictError("balance for account %s was modified concurrently", balance.AccountID)
	}
	balance.Version++
	balance.UpdatedAt = time.Now()
	s.balances[balance.AccountID] = balance
	return nil
}

// --- JournalStore ---

func (s *fakeStore) AppendTransaction(ctx ports.CommitContext, txn domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	s.transactions[txn.ID] = txn
	return nil
}

func (s *fakeStore) MarkStatus(ctx ports.CommitContext, transactionID string, next domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[transactionID]
	if !ok {
		return apperrors.NewNotFoundError("transaction %s not found", transactionID)
	}
	if !txn.Status.CanTransition(next) {
		return apperrors.NewIllegalStateTransitionError(string(txn.Status), string(next))
	}
	txn.Status = next
	txn.UpdatedAt = time.Now()
	s.transactions[transactionID] = txn
	return nil
}

func (s *fakeStore) LinkReversal(ctx ports.CommitContext, originalID, reversalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[originalID]
	if !ok {
		return apperrors.NewNotFoundError("transaction %s not found", originalID)
	}
	if txn.ReversedByID != "" {
		return apperrors.NewAlreadyReversedError(originalID)
	}
	txn.ReversedByID = reversalID
	s.transactions[originalID] = txn
	return nil
}

func (s *fakeStore) FindByTransactionID(ctx context.Context, transactionID string) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[transactionID]
	if !ok {
		return domain.Transaction{}, apperrors.NewNotFoundError("transaction %s not found", transactionID)
	}
	return txn, nil
}

func (s *fakeStore) ListByUser(ctx context.Context, ownerID string, limit, offset int) ([]domain.Transaction, error) {
	return nil, nil
}

func (s *fakeStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, error) {
	return nil, nil
}

func (s *fakeStore) AggregateByUser(ctx context.Context, ownerID string, since time.Time) (domain.UserStats, error) {
	return domain.UserStats{}, nil
}

func (s *fakeStore) AggregateByAccount(ctx context.Context, accountID string, since time.Time) (domain.AccountStats, error) {
	return domain.AccountStats{}, nil
}

func (s *fakeStore) SelectPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for id, txn := range s.transactions {
		if len(out) >= limit {
			break
		}
		if txn.Status == domain.StatusPending && txn.CreatedAt.Before(cutoff) {
			txn.Status = domain.StatusProcessing
			s.transactions[id] = txn
			out = append(out, txn)
		}
	}
	return out, nil
}
