package pgsql

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// pgxBatch is a thin wrapper over pgx.Batch for queuing the per-entry
// inserts that make up one transaction's entry set.
type pgxBatch struct {
	batch pgx.Batch
	n     int
}

func (b *pgxBatch) Queue(sql string, args ...any) {
	b.batch.Queue(sql, args...)
	b.n++
}

func (b *pgxBatch) send(ctx context.Context, tx pgx.Tx) error {
	if b.n == 0 {
		return nil
	}
	results := tx.SendBatch(ctx, &b.batch)
	defer results.Close()
	for i := 0; i < b.n; i++ {
		if _, err := results.Exec(); err != nil {
			return mapPgError(err)
		}
	}
	return nil
}
