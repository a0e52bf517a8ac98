// Package services implements the ledger engine: the five ledger
// primitives (four postings plus reversal), the pending-transaction sweep
// and the statistics reads, with writes sharing the commit-frame plumbing
// in commit.go.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerforge/corebank/internal/apperrors"
	"github.com/ledgerforge/corebank/internal/core/domain"
	"github.com/ledgerforge/corebank/internal/core/identifiers"
	"github.com/ledgerforge/corebank/internal/core/ports"
	"github.com/ledgerforge/corebank/internal/platform/logging"
)

// engine is the single dispatcher behind all five ledger primitives.
// Deposit, Withdrawal and Fee are thin entries over post(), which picks the
// system counter-party and builds the Entry set; Transfer and Reverse build
// their own Entry sets. All five run the shared commit frame. Polymorphism
// is over the Kind value, not over a type hierarchy.
type engine struct {
	accounts ports.AccountStore
	balances ports.BalanceStore
	journal  ports.JournalStore
	uow      ports.UnitOfWork
	router   ports.SystemAccountRouter

	amountPolicy      domain.AmountPolicy
	nonNegativePolicy bool
	retry             retryPolicy
}

// Config bundles the tunable knobs NewLedgerEngine needs.
type Config struct {
	AmountPolicy             domain.AmountPolicy
	BalanceNonNegativePolicy bool
	ConcurrencyMaxRetries    int
	ConcurrencyBaseBackoff   time.Duration
}

func NewLedgerEngine(accounts ports.AccountStore, balances ports.BalanceStore, journal ports.JournalStore, uow ports.UnitOfWork, router ports.SystemAccountRouter, cfg Config) ports.LedgerEngine {
	return &engine{
		accounts:          accounts,
		balances:          balances,
		journal:           journal,
		uow:               uow,
		router:            router,
		amountPolicy:      cfg.AmountPolicy,
		nonNegativePolicy: cfg.BalanceNonNegativePolicy,
		retry: retryPolicy{
			maxRetries:  cfg.ConcurrencyMaxRetries,
			baseBackoff: cfg.ConcurrencyBaseBackoff,
		},
	}
}

// leg is one side of a posting: an account id paired with a signed delta.
// Positive increases balance (CREDIT), negative decreases it (DEBIT).
type leg struct {
	accountID string
	delta     decimal.Decimal
	side      domain.Side
	checkFunds bool
}

func newLeg(accountID string, amount decimal.Decimal, credit bool, checkFunds bool) leg {
	delta := amount
	side := domain.Credit
	if !credit {
		delta = amount.Neg()
		side = domain.Debit
	}
	return leg{accountID: accountID, delta: delta, side: side, checkFunds: checkFunds}
}

func (e *engine) Deposit(ctx context.Context, caller ports.Caller, accountID string, amount decimal.Decimal, metadata map[string]string) (domain.Transaction, error) {
	return e.post(ctx, domain.KindDeposit, accountID, amount, metadata, func(target domain.Account) (ports.SystemAccountPurpose, bool, bool) {
		return ports.SystemDeposits, true, false // counterparty=DEPOSITS, target credited, target funds not checked
	})
}

func (e *engine) Withdrawal(ctx context.Context, caller ports.Caller, accountID string, amount decimal.Decimal, metadata map[string]string) (domain.Transaction, error) {
	return e.post(ctx, domain.KindWithdrawal, accountID, amount, metadata, func(target domain.Account) (ports.SystemAccountPurpose, bool, bool) {
		return ports.SystemWithdrawals, false, true // target debited, funds checked
	})
}

func (e *engine) Fee(ctx context.Context, caller ports.Caller, accountID string, amount decimal.Decimal, metadata map[string]string) (domain.Transaction, error) {
	return e.post(ctx, domain.KindFee, accountID, amount, metadata, func(target domain.Account) (ports.SystemAccountPurpose, bool, bool) {
		return ports.SystemFees, false, true
	})
}

// post is the shared implementation for the three primitives that move
// money between one customer account and a system account.
func (e *engine) post(ctx context.Context, kind domain.Kind, accountID string, amount decimal.Decimal, metadata map[string]string, route func(domain.Account) (ports.SystemAccountPurpose, bool, bool)) (domain.Transaction, error) {
	logger := logging.FromContext(ctx)
	if err := e.amountPolicy.Validate(amount); err != nil {
		return domain.Transaction{}, err
	}

	peek, err := e.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return domain.Transaction{}, err
	}
	purpose, targetCredited, checkFunds := route(peek)
	sysAcct, err := e.router.SystemAccountFor(ctx, purpose, peek.Currency)
	if err != nil {
		return domain.Transaction{}, err
	}

	var txn domain.Transaction
	err = e.retry.withCommit(ctx, e.uow, func(cc ports.CommitContext) error {
		accts, err := e.accounts.LockAccounts(cc, []string{accountID, sysAcct.ID})
		if err != nil {
			return err
		}
		target, ok := accts[accountID]
		if !ok {
			return apperrors.NewNotFoundError("account %s not found", accountID)
		}
		if !target.Active {
			return apperrors.NewInactiveAccountError(accountID)
		}
		if target.Currency != peek.Currency {
			return apperrors.NewCurrencyMismatchError(string(peek.Currency), string(target.Currency))
		}

		targetLeg := newLeg(accountID, amount, targetCredited, checkFunds && e.nonNegativePolicy)
		sysLeg := newLeg(sysAcct.ID, amount, !targetCredited, false)

		built := domain.Transaction{
			ID:             identifiers.MintTransactionID(kind.IDPrefix()),
			Kind:           kind,
			DeclaredAmount: amount,
			Currency:       target.Currency,
			Entries: []domain.Entry{
				{AccountID: targetLeg.accountID, Side: targetLeg.side, Amount: amount},
				{AccountID: sysLeg.accountID, Side: sysLeg.side, Amount: amount},
			},
			Status:   domain.StatusProcessing,
			Metadata: metadata,
		}
		if !built.IsBalanced() {
			return apperrors.NewBadRequestError("transaction %s is not balanced", built.ID)
		}

		if err := e.applyLegs(cc, target.Currency, []leg{targetLeg, sysLeg}); err != nil {
			return err
		}
		if err := e.journal.AppendTransaction(cc, built); err != nil {
			return err
		}
		if err := e.journal.MarkStatus(cc, built.ID, domain.StatusCompleted); err != nil {
			return err
		}
		built.Status = domain.StatusCompleted
		txn = built
		return nil
	})
	if err != nil {
		logger.Error("posting failed", slog.String("kind", string(kind)), slog.String("account_id", accountID), slog.String("error", err.Error()))
		return domain.Transaction{}, err
	}

	logger.Info("posting completed", slog.String("kind", string(kind)), slog.String("transaction_id", txn.ID), slog.String("account_id", accountID), slog.String("amount", amount.String()))
	return txn, nil
}

func (e *engine) Transfer(ctx context.Context, caller ports.Caller, fromAccountID, toAccountID string, amount decimal.Decimal, metadata map[string]string) (domain.Transaction, error) {
	logger := logging.FromContext(ctx)
	if err := e.amountPolicy.Validate(amount); err != nil {
		return domain.Transaction{}, err
	}
	if fromAccountID == toAccountID {
		return domain.Transaction{}, apperrors.NewBadRequestError("source and destination accounts must differ")
	}

	var txn domain.Transaction
	err := e.retry.withCommit(ctx, e.uow, func(cc ports.CommitContext) error {
		accts, err := e.accounts.LockAccounts(cc, []string{fromAccountID, toAccountID})
		if err != nil {
			return err
		}
		from, ok := accts[fromAccountID]
		if !ok {
			return apperrors.NewNotFoundError("account %s not found", fromAccountID)
		}
		to, ok := accts[toAccountID]
		if !ok {
			return apperrors.NewNotFoundError("account %s not found", toAccountID)
		}
		if !from.Active {
			return apperrors.NewInactiveAccountError(fromAccountID)
		}
		if !to.Active {
			return apperrors.NewInactiveAccountError(toAccountID)
		}
		if from.Currency != to.Currency {
			return apperrors.NewCurrencyMismatchError(string(from.Currency), string(to.Currency))
		}

		fromLeg := newLeg(fromAccountID, amount, false, e.nonNegativePolicy)
		toLeg := newLeg(toAccountID, amount, true, false)

		built := domain.Transaction{
			ID:             identifiers.MintTransactionID(domain.KindTransfer.IDPrefix()),
			Kind:           domain.KindTransfer,
			DeclaredAmount: amount,
			Currency:       from.Currency,
			Entries: []domain.Entry{
				{AccountID: fromAccountID, Side: domain.Debit, Amount: amount},
				{AccountID: toAccountID, Side: domain.Credit, Amount: amount},
			},
			Status:   domain.StatusProcessing,
			Metadata: metadata,
		}
		if !built.IsBalanced() {
			return apperrors.NewBadRequestError("transaction %s is not balanced", built.ID)
		}

		if err := e.applyLegs(cc, from.Currency, []leg{fromLeg, toLeg}); err != nil {
			return err
		}
		if err := e.journal.AppendTransaction(cc, built); err != nil {
			return err
		}
		if err := e.journal.MarkStatus(cc, built.ID, domain.StatusCompleted); err != nil {
			return err
		}
		built.Status = domain.StatusCompleted
		txn = built
		return nil
	})
	if err != nil {
		logger.Error("transfer failed", slog.String("from", fromAccountID), slog.String("to", toAccountID), slog.String("error", err.Error()))
		return domain.Transaction{}, err
	}

	logger.Info("transfer completed", slog.String("transaction_id", txn.ID), slog.String("from", fromAccountID), slog.String("to", toAccountID), slog.String("amount", amount.String()))
	return txn, nil
}

func (e *engine) Reverse(ctx context.Context, caller ports.Caller, transactionID string, reason string) (domain.Transaction, error) {
	logger := logging.FromContext(ctx)
	if !caller.IsAdmin() {
		return domain.Transaction{}, apperrors.NewUnauthorizedError("reversal requires admin role")
	}
	if reason == "" {
		return domain.Transaction{}, apperrors.NewBadRequestError("reason is required")
	}

	original, err := e.journal.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if original.Status != domain.StatusCompleted {
		return domain.Transaction{}, apperrors.NewIllegalStateTransitionError(string(original.Status), string(domain.StatusCompleted))
	}
	if original.ReversedByID != "" {
		return domain.Transaction{}, apperrors.NewAlreadyReversedError(transactionID)
	}
	if original.Kind == domain.KindReversal {
		return domain.Transaction{}, apperrors.NewBadRequestError("cannot reverse a reversal")
	}

	accountIDs := original.AccountIDs()

	var txn domain.Transaction
	err = e.retry.withCommit(ctx, e.uow, func(cc ports.CommitContext) error {
		accts, err := e.accounts.LockAccounts(cc, accountIDs)
		if err != nil {
			return err
		}

		reversedEntries := make([]domain.Entry, 0, len(original.Entries))
		legs := make([]leg, 0, len(original.Entries))
		for _, entry := range original.Entries {
			if _, ok := accts[entry.AccountID]; !ok {
				return apperrors.NewNotFoundError("account %s not found", entry.AccountID)
			}
			oppositeSide := domain.Debit
			credit := false
			if entry.Side == domain.Debit {
				oppositeSide = domain.Credit
				credit = true
			}
			reversedEntries = append(reversedEntries, domain.Entry{AccountID: entry.AccountID, Side: oppositeSide, Amount: entry.Amount})
			checkFunds := !credit && accts[entry.AccountID].Kind != domain.KindSystem && e.nonNegativePolicy
			legs = append(legs, newLeg(entry.AccountID, entry.Amount, credit, checkFunds))
		}

		built := domain.Transaction{
			ID:             identifiers.MintTransactionID(domain.KindReversal.IDPrefix()),
			Kind:           domain.KindReversal,
			DeclaredAmount: original.DeclaredAmount,
			Currency:       original.Currency,
			Entries:        reversedEntries,
			Status:         domain.StatusProcessing,
			ReversalOfID:   original.ID,
			Metadata: map[string]string{
				"originalTransactionId": original.ID,
				"reversalReason":        reason,
			},
		}
		if !built.IsBalanced() {
			return apperrors.NewBadRequestError("reversal %s is not balanced", built.ID)
		}

		if err := e.applyLegs(cc, original.Currency, legs); err != nil {
			return err
		}
		if err := e.journal.AppendTransaction(cc, built); err != nil {
			return err
		}
		if err := e.journal.MarkStatus(cc, built.ID, domain.StatusCompleted); err != nil {
			return err
		}
		if err := e.journal.LinkReversal(cc, original.ID, built.ID); err != nil {
			return err
		}
		built.Status = domain.StatusCompleted
		txn = built
		return nil
	})
	if err != nil {
		logger.Error("reversal failed", slog.String("original_transaction_id", transactionID), slog.String("error", err.Error()))
		return domain.Transaction{}, err
	}

	logger.Info("reversal completed", slog.String("transaction_id", txn.ID), slog.String("original_transaction_id", transactionID))
	return txn, nil
}

// applyLegs reads, checks and writes the balance of every leg's account
// within cc. All legs are applied or none are: a sufficiency failure on any
// leg aborts the whole commit before any WriteBalance happens.
func (e *engine) applyLegs(cc ports.CommitContext, currency domain.Currency, legs []leg) error {
	type pending struct {
		balance domain.Balance
		leg     leg
	}
	loaded := make([]pending, 0, len(legs))

	for _, l := range legs {
		bal, err := e.balances.ReadBalance(cc, l.accountID)
		if err != nil {
			return err
		}
		if bal.Currency != currency {
			return apperrors.NewCurrencyMismatchError(string(currency), string(bal.Currency))
		}
		next := bal.Available.Add(l.delta)
		if l.checkFunds && next.Sign() < 0 {
			return apperrors.NewInsufficientFundsError(l.accountID, bal.Available, l.delta.Abs())
		}
		bal.Available = next
		loaded = append(loaded, pending{balance: bal, leg: l})
	}

	for _, p := range loaded {
		if err := e.balances.WriteBalance(cc, p.balance); err != nil {
			return err
		}
	}
	return nil
}
