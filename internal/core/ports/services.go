package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerforge/corebank/internal/core/domain"
)

// Caller is the trusted identity/role claim the perimeter attaches to a
// context before calling the engine: authorization is confined to this
// boundary, the engine never fetches identity itself.
type Caller struct {
	UserID string
	Role   string // "admin" or "user"
}

func (c Caller) IsAdmin() bool { return c.Role == "admin" }

// LedgerEngine is the five ledger primitives (Deposit, Withdrawal, Transfer,
// Fee, Reverse) plus the sweep and statistics.
type LedgerEngine interface {
	Deposit(ctx context.Context, caller Caller, accountID string, amount decimal.Decimal, metadata map[string]string) (domain.Transaction, error)
	Withdrawal(ctx context.Context, caller Caller, accountID string, amount decimal.Decimal, metadata map[string]string) (domain.Transaction, error)
	Transfer(ctx context.Context, caller Caller, fromAccountID, toAccountID string, amount decimal.Decimal, metadata map[string]string) (domain.Transaction, error)
	Fee(ctx context.Context, caller Caller, accountID string, amount decimal.Decimal, metadata map[string]string) (domain.Transaction, error)
	Reverse(ctx context.Context, caller Caller, transactionID string, reason string) (domain.Transaction, error)

	SweepPending(ctx context.Context, olderThan time.Duration) (SweepResult, error)

	UserStats(ctx context.Context, ownerID string, since time.Time) (domain.UserStats, error)
	AccountStats(ctx context.Context, accountID string, since time.Time) (domain.AccountStats, error)
}

// SweepResult is sweepPending's return value.
type SweepResult struct {
	Processed int
	Failed    int
	FailedIDs []string
}

// AccountService is the account lifecycle surface the ledger engine assumes
// exists: it operates on already-provisioned accounts but never creates them
// itself.
type AccountService interface {
	CreateAccount(ctx context.Context, ownerID string, kind domain.AccountKind, currency domain.Currency, metadata map[string]string) (domain.Account, error)
	GetAccount(ctx context.Context, accountID string) (domain.Account, error)
	// GetAccountByNumber resolves the human-facing account number (the
	// ACCT-XXXX-XXXX-XXXX form callers are actually handed) to the account,
	// letting the HTTP perimeter accept account numbers and translate them
	// to the opaque id the engine operates on.
	GetAccountByNumber(ctx context.Context, accountNumber string) (domain.Account, error)
	DeactivateAccount(ctx context.Context, accountID string) error
	ListAccountsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Account, error)
}

// SystemAccountRouter lazily resolves and creates the per-currency system
// accounts (DEPOSITS/WITHDRAWALS/FEES) the engine posts counter-entries
// against.
type SystemAccountRouter interface {
	SystemAccountFor(ctx context.Context, purpose SystemAccountPurpose, currency domain.Currency) (domain.Account, error)
}

type SystemAccountPurpose string

const (
	SystemDeposits    SystemAccountPurpose = "DEPOSITS"
	SystemWithdrawals SystemAccountPurpose = "WITHDRAWALS"
	SystemFees        SystemAccountPurpose = "FEES"
)
