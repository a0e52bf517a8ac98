package services

import (
	"context"
	"time"

	"github.com/ledgerforge/corebank/internal/core/domain"
)

// UserStats returns the grouped flow statistics across every account owned
// by ownerID since the given time: a per-currency summary, a per-(kind,
// currency) breakdown, and a per-(year, month, kind) trend.
func (e *engine) UserStats(ctx context.Context, ownerID string, since time.Time) (domain.UserStats, error) {
	return e.journal.AggregateByUser(ctx, ownerID, since)
}

// AccountStats returns the grouped flow statistics for a single account
// since the given time: net flow per currency, a per-(direction, kind,
// currency) breakdown, and a per-day trend.
func (e *engine) AccountStats(ctx context.Context, accountID string, since time.Time) (domain.AccountStats, error) {
	return e.journal.AggregateByAccount(ctx, accountID, since)
}
