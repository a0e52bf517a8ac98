// Package ports declares the interfaces the ledger engine depends on,
// implemented by internal/adapters/... .
package ports

import (
	"context"
	"time"

	"github.com/ledgerforge/corebank/internal/core/domain"
)

// CommitContext scopes a single serializable unit of work across the
// Balance Store and Journal Store. Each context ends with Commit or Abort;
// callers may also call Abort after a failed Commit, which must then be
// harmless. Neither store observes partial effects of an aborted one.
type CommitContext interface {
	context.Context
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// UnitOfWork opens a new serializable CommitContext.
type UnitOfWork interface {
	Begin(ctx context.Context) (CommitContext, error)
}

// AccountStore persists Account rows.
type AccountStore interface {
	CreateAccount(ctx CommitContext, account domain.Account) error
	GetAccount(ctx context.Context, id string) (domain.Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (domain.Account, error)
	UpdateAccount(ctx CommitContext, account domain.Account) error
	ListAccountsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Account, error)
	// LockAccounts reads and row-locks the given accounts for update within
	// ctx. Ids with no account are simply absent from the returned map; the
	// caller checks for them.
	LockAccounts(ctx CommitContext, ids []string) (map[string]domain.Account, error)
}

// BalanceStore reads and writes the single Balance row per Account.
type BalanceStore interface {
	InitBalance(ctx CommitContext, balance domain.Balance) error
	// ReadBalance locks the balance row for update within ctx.
	ReadBalance(ctx CommitContext, accountID string) (domain.Balance, error)
	WriteBalance(ctx CommitContext, balance domain.Balance) error
}

// JournalStore persists Transactions and their status transitions.
type JournalStore interface {
	AppendTransaction(ctx CommitContext, txn domain.Transaction) error
	MarkStatus(ctx CommitContext, transactionID string, next domain.Status) error
	// LinkReversal records that reversalID reverses originalID, enforcing
	// T6 (a transaction may be reversed at most once) at the store layer.
	LinkReversal(ctx CommitContext, originalID, reversalID string) error
	FindByTransactionID(ctx context.Context, transactionID string) (domain.Transaction, error)
	ListByUser(ctx context.Context, ownerID string, limit, offset int) ([]domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, error)
	AggregateByUser(ctx context.Context, ownerID string, since time.Time) (domain.UserStats, error)
	AggregateByAccount(ctx context.Context, accountID string, since time.Time) (domain.AccountStats, error)
	// SelectPendingOlderThan claims and returns PENDING transactions whose
	// CreatedAt is older than cutoff, atomically flipping each to
	// PROCESSING so concurrent sweepers don't double-claim.
	SelectPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error)
}
