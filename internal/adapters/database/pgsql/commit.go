// Package pgsql implements the ledger core's store interfaces against
// Postgres via pgx, using SERIALIZABLE transactions as the commit context
// and FOR UPDATE row locks for linearizability across accounts shared by
// concurrent commits.
package pgsql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerforge/corebank/internal/apperrors"
	"github.com/ledgerforge/corebank/internal/core/ports"
)

const pgSerializationFailure = "40001"
const pgUniqueViolation = "23505"

type commitContext struct {
	context.Context
	tx pgx.Tx
}

func (c *commitContext) Commit(ctx context.Context) error {
	if err := c.tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

func (c *commitContext) Abort(ctx context.Context) error {
	err := c.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return mapPgError(err)
	}
	return nil
}

// UnitOfWork opens SERIALIZABLE transactions against a pgxpool.Pool.
type UnitOfWork struct {
	Pool *pgxpool.Pool
}

func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{Pool: pool}
}

func (u *UnitOfWork) Begin(ctx context.Context) (ports.CommitContext, error) {
	tx, err := u.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, mapPgError(err)
	}
	return &commitContext{Context: ctx, tx: tx}, nil
}

// txOf extracts the underlying pgx.Tx from a CommitContext minted by this
// package's UnitOfWork. Store adapters call this to run statements within
// the caller's transaction.
func txOf(cc ports.CommitContext) (pgx.Tx, error) {
	c, ok := cc.(*commitContext)
	if !ok {
		return nil, apperrors.NewBadRequestError("commit context was not opened by pgsql.UnitOfWork")
	}
	return c.tx, nil
}

// mapPgError classifies a pgx/driver error into the ledger's error
// taxonomy. A missing row becomes NotFound; serialization failures and
// unique-key races become retryable Conflict errors; everything else becomes
// StoreUnavailable.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFoundError("resource not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgUniqueViolation:
			return apperrors.NewConflictError("%s", pgErr.Message)
		}
	}
	return apperrors.NewStoreUnavailableError(err)
}
