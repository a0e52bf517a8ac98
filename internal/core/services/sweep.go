package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/ledgerforge/corebank/internal/apperrors"
	"github.com/ledgerforge/corebank/internal/core/domain"
	"github.com/ledgerforge/corebank/internal/core/ports"
	"github.com/ledgerforge/corebank/internal/platform/logging"
)

// SweepPending processes deliberately-deferred batch transactions left in
// PENDING. This is not a crash-recovery path: the direct primitives above
// are atomic and never leave a transaction PENDING themselves.
func (e *engine) SweepPending(ctx context.Context, olderThan time.Duration) (ports.SweepResult, error) {
	logger := logging.FromContext(ctx)
	cutoff := time.Now().Add(-olderThan)

	pending, err := e.journal.SelectPendingOlderThan(ctx, cutoff, 500)
	if err != nil {
		return ports.SweepResult{}, err
	}

	result := ports.SweepResult{}
	for _, txn := range pending {
		if err := e.settlePending(ctx, txn); err != nil {
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, txn.ID)
			logger.Error("sweep: transaction failed", slog.String("transaction_id", txn.ID), slog.String("error", err.Error()))
			continue
		}
		result.Processed++
	}

	logger.Info("sweep completed", slog.Int("processed", result.Processed), slog.Int("failed", result.Failed))
	return result, nil
}

// settlePending commits one claimed PENDING transaction as its own unit of
// work, so one bad transaction in a sweep batch can't block the rest. On a
// terminal (non-retryable) failure it marks the transaction FAILED in a
// follow-up commit, since the failing attempt's own commit rolled back.
func (e *engine) settlePending(ctx context.Context, txn domain.Transaction) error {
	accountIDs := txn.AccountIDs()

	err := e.retry.withCommit(ctx, e.uow, func(cc ports.CommitContext) error {
		accts, err := e.accounts.LockAccounts(cc, accountIDs)
		if err != nil {
			return err
		}

		legs := make([]leg, 0, len(txn.Entries))
		for _, entry := range txn.Entries {
			acct, ok := accts[entry.AccountID]
			if !ok {
				return apperrors.NewNotFoundError("account %s not found", entry.AccountID)
			}
			if !acct.Active {
				return apperrors.NewInactiveAccountError(entry.AccountID)
			}
			credit := entry.Side == domain.Credit
			checkFunds := !credit && acct.Kind != domain.KindSystem && e.nonNegativePolicy
			legs = append(legs, newLeg(entry.AccountID, entry.Amount, credit, checkFunds))
		}

		if err := e.applyLegs(cc, txn.Currency, legs); err != nil {
			return err
		}
		return e.journal.MarkStatus(cc, txn.ID, domain.StatusCompleted)
	})
	if err != nil {
		if markErr := e.markFailed(ctx, txn.ID); markErr != nil {
			logging.FromContext(ctx).Error("sweep: failed to record FAILED status", slog.String("transaction_id", txn.ID), slog.String("error", markErr.Error()))
		}
		return err
	}
	return nil
}

func (e *engine) markFailed(ctx context.Context, transactionID string) error {
	cc, err := e.uow.Begin(ctx)
	if err != nil {
		return err
	}
	if err := e.journal.MarkStatus(cc, transactionID, domain.StatusFailed); err != nil {
		_ = cc.Abort(ctx)
		return err
	}
	return cc.Commit(ctx)
}
