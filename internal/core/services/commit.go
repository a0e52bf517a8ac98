package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/ledgerforge/corebank/internal/apperrors"
	"github.com/ledgerforge/corebank/internal/core/ports"
)

// retryPolicy bounds the commit-frame retry loop: on a serialization
// conflict the whole unit of work aborts and is retried with bounded
// exponential backoff, surfacing ConcurrencyExhausted once attempts are used
// up.
type retryPolicy struct {
	maxRetries int
	baseBackoff time.Duration
}

// withCommit runs fn inside a fresh serializable CommitContext opened from
// uow, committing on success and retrying the whole attempt on a conflict.
// fn must not call Commit/Abort itself; withCommit owns the transaction
// boundary.
func (p retryPolicy) withCommit(ctx context.Context, uow ports.UnitOfWork, fn func(cc ports.CommitContext) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return apperrors.NewCancelledError(err)
		}

		cc, err := uow.Begin(ctx)
		if err != nil {
			return apperrors.NewStoreUnavailableError(err)
		}

		if err := fn(cc); err != nil {
			_ = cc.Abort(ctx)
			if !isRetryable(err) {
				return err
			}
			lastErr = err
			p.sleepBackoff(ctx, attempt)
			continue
		}

		if err := cc.Commit(ctx); err != nil {
			_ = cc.Abort(ctx)
			if !isRetryable(err) {
				return err
			}
			lastErr = err
			p.sleepBackoff(ctx, attempt)
			continue
		}

		return nil
	}
	if lastErr == nil {
		lastErr = apperrors.ErrConflict
	}
	return apperrors.New(apperrors.CodeConcurrencyExhausted, lastErr, "exhausted %d retries under contention", p.maxRetries+1)
}

func isRetryable(err error) bool {
	return errors.Is(err, apperrors.ErrConflict)
}

// sleepBackoff waits baseBackoff * 2^attempt, jittered, or returns early if
// ctx is done.
func (p retryPolicy) sleepBackoff(ctx context.Context, attempt int) {
	backoff := p.baseBackoff << attempt
	jitter := time.Duration(rand.Int63n(int64(backoff) + 1))
	select {
	case <-time.After(backoff/2 + jitter/2):
	case <-ctx.Done():
	}
}
