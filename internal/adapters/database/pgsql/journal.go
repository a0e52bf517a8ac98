package pgsql

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerforge/corebank/internal/apperrors"
	"github.com/ledgerforge/corebank/internal/core/domain"
	"github.com/ledgerforge/corebank/internal/core/ports"
)

// JournalRepository implements ports.JournalStore against the
// transactions/entries tables.
type JournalRepository struct {
	pool *pgxpool.Pool
}

func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

func (r *JournalRepository) AppendTransaction(ctx ports.CommitContext, txn domain.Transaction) error {
	tx, err := txOf(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (id, kind, declared_amount, currency, status, reversal_of_id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`,
		txn.ID, txn.Kind, txn.DeclaredAmount, txn.Currency, txn.Status, txn.ReversalOfID, txn.Metadata, now, now)
	if err != nil {
		return mapPgError(err)
	}

	batch := &pgxBatch{}
	for i, e := range txn.Entries {
		batch.Queue(`INSERT INTO entries (transaction_id, seq, account_id, side, amount) VALUES ($1, $2, $3, $4, $5)`,
			txn.ID, i, e.AccountID, e.Side, e.Amount)
	}
	return batch.send(ctx, tx)
}

func (r *JournalRepository) MarkStatus(ctx ports.CommitContext, transactionID string, next domain.Status) error {
	tx, err := txOf(ctx)
	if err != nil {
		return err
	}
	var current domain.Status
	if err := tx.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1 FOR UPDATE`, transactionID).Scan(&current); err != nil {
		return mapPgError(err)
	}
	if !current.CanTransition(next) {
		return apperrors.NewIllegalStateTransitionError(string(current), string(next))
	}
	_, err = tx.Exec(ctx, `UPDATE transactions SET status = $2, updated_at = $3 WHERE id = $1`, transactionID, next, time.Now())
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (r *JournalRepository) LinkReversal(ctx ports.CommitContext, originalID, reversalID string) error {
	tx, err := txOf(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE transactions SET reversed_by_id = $2, updated_at = $3
		WHERE id = $1 AND reversed_by_id IS NULL`, originalID, reversalID, time.Now())
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewAlreadyReversedError(originalID)
	}
	return nil
}

func (r *JournalRepository) FindByTransactionID(ctx context.Context, transactionID string) (domain.Transaction, error) {
	var t domain.Transaction
	var reversalOf, reversedBy *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, kind, declared_amount, currency, status, reversal_of_id, reversed_by_id, metadata, created_at, updated_at
		FROM transactions WHERE id = $1`, transactionID).
		Scan(&t.ID, &t.Kind, &t.DeclaredAmount, &t.Currency, &t.Status, &reversalOf, &reversedBy, &t.Metadata, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Transaction{}, mapPgError(err)
	}
	if reversalOf != nil {
		t.ReversalOfID = *reversalOf
	}
	if reversedBy != nil {
		t.ReversedByID = *reversedBy
	}

	entries, err := r.loadEntries(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Entries = entries
	return t, nil
}

func (r *JournalRepository) loadEntries(ctx context.Context, transactionID string) ([]domain.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT account_id, side, amount FROM entries WHERE transaction_id = $1 ORDER BY seq`, transactionID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var e domain.Entry
		var amount decimal.Decimal
		if err := rows.Scan(&e.AccountID, &e.Side, &amount); err != nil {
			return nil, mapPgError(err)
		}
		e.Amount = amount
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *JournalRepository) ListByUser(ctx context.Context, ownerID string, limit, offset int) ([]domain.Transaction, error) {
	return r.listByEntryJoin(ctx, `
		SELECT t.id FROM transactions t
		JOIN entries e ON e.transaction_id = t.id
		JOIN accounts a ON a.id = e.account_id
		WHERE a.owner_id = $1
		GROUP BY t.id ORDER BY MIN(t.created_at) DESC LIMIT $2 OFFSET $3`, ownerID, limit, offset)
}

func (r *JournalRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, error) {
	return r.listByEntryJoin(ctx, `
		SELECT t.id FROM transactions t
		JOIN entries e ON e.transaction_id = t.id
		WHERE e.account_id = $1
		ORDER BY t.created_at DESC LIMIT $2 OFFSET $3`, accountID, limit, offset)
}

func (r *JournalRepository) listByEntryJoin(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, mapPgError(err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}

	txns := make([]domain.Transaction, 0, len(ids))
	for _, id := range ids {
		t, err := r.FindByTransactionID(ctx, id)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// userEntriesCTE scopes entries to the COMPLETED transactions, since the
// given time, touching any account owned by ownerID. Repeated verbatim in
// each of the three userStats queries rather than materialized once, since
// a CTE doesn't survive across separate round trips.
const userEntriesCTE = `
	WITH user_entries AS (
		SELECT e.amount, e.side, t.id AS txn_id, t.kind, t.currency, t.created_at
		FROM entries e
		JOIN transactions t ON t.id = e.transaction_id
		JOIN accounts a ON a.id = e.account_id
		WHERE a.owner_id = $1 AND t.status = 'COMPLETED' AND t.created_at >= $2
	)
`

func (r *JournalRepository) AggregateByUser(ctx context.Context, ownerID string, since time.Time) (domain.UserStats, error) {
	var stats domain.UserStats

	summaryRows, err := r.pool.Query(ctx, userEntriesCTE+`
		SELECT currency, COUNT(DISTINCT txn_id), COALESCE(SUM(amount), 0)
		FROM user_entries GROUP BY currency`, ownerID, since)
	if err != nil {
		return domain.UserStats{}, mapPgError(err)
	}
	for summaryRows.Next() {
		var ct domain.CurrencyTotal
		if err := summaryRows.Scan(&ct.Currency, &ct.Count, &ct.Total); err != nil {
			summaryRows.Close()
			return domain.UserStats{}, mapPgError(err)
		}
		stats.Summary = append(stats.Summary, ct)
	}
	summaryRows.Close()
	if err := summaryRows.Err(); err != nil {
		return domain.UserStats{}, mapPgError(err)
	}

	byTypeRows, err := r.pool.Query(ctx, userEntriesCTE+`
		SELECT kind, currency, COUNT(DISTINCT txn_id), COALESCE(SUM(amount), 0)
		FROM user_entries GROUP BY kind, currency`, ownerID, since)
	if err != nil {
		return domain.UserStats{}, mapPgError(err)
	}
	for byTypeRows.Next() {
		var tb domain.TypeBreakdown
		if err := byTypeRows.Scan(&tb.Kind, &tb.Currency, &tb.Count, &tb.Total); err != nil {
			byTypeRows.Close()
			return domain.UserStats{}, mapPgError(err)
		}
		stats.ByType = append(stats.ByType, tb)
	}
	byTypeRows.Close()
	if err := byTypeRows.Err(); err != nil {
		return domain.UserStats{}, mapPgError(err)
	}

	trendRows, err := r.pool.Query(ctx, userEntriesCTE+`
		SELECT EXTRACT(YEAR FROM created_at)::int, EXTRACT(MONTH FROM created_at)::int, kind,
			COUNT(DISTINCT txn_id), COALESCE(SUM(amount), 0)
		FROM user_entries GROUP BY 1, 2, 3 ORDER BY 1, 2`, ownerID, since)
	if err != nil {
		return domain.UserStats{}, mapPgError(err)
	}
	defer trendRows.Close()
	for trendRows.Next() {
		var mt domain.MonthlyTrendPoint
		if err := trendRows.Scan(&mt.Year, &mt.Month, &mt.Kind, &mt.Count, &mt.Total); err != nil {
			return domain.UserStats{}, mapPgError(err)
		}
		stats.MonthlyTrend = append(stats.MonthlyTrend, mt)
	}
	return stats, trendRows.Err()
}

// accountEntriesCTE scopes entries to the COMPLETED transactions, since the
// given time, touching accountID specifically (one row per entry on that
// account, so direction reflects that account's own side of each posting).
const accountEntriesCTE = `
	WITH account_entries AS (
		SELECT e.amount, e.side, t.id AS txn_id, t.kind, t.currency, t.created_at
		FROM entries e
		JOIN transactions t ON t.id = e.transaction_id
		WHERE e.account_id = $1 AND t.status = 'COMPLETED' AND t.created_at >= $2
	)
`

func (r *JournalRepository) AggregateByAccount(ctx context.Context, accountID string, since time.Time) (domain.AccountStats, error) {
	var stats domain.AccountStats

	netFlowRows, err := r.pool.Query(ctx, accountEntriesCTE+`
		SELECT currency, COALESCE(SUM(CASE WHEN side = 'CREDIT' THEN amount ELSE -amount END), 0)
		FROM account_entries GROUP BY currency`, accountID, since)
	if err != nil {
		return domain.AccountStats{}, mapPgError(err)
	}
	for netFlowRows.Next() {
		var nf domain.NetFlow
		if err := netFlowRows.Scan(&nf.Currency, &nf.Net); err != nil {
			netFlowRows.Close()
			return domain.AccountStats{}, mapPgError(err)
		}
		stats.NetFlow = append(stats.NetFlow, nf)
	}
	netFlowRows.Close()
	if err := netFlowRows.Err(); err != nil {
		return domain.AccountStats{}, mapPgError(err)
	}

	byDirRows, err := r.pool.Query(ctx, accountEntriesCTE+`
		SELECT (CASE WHEN side = 'CREDIT' THEN 'INCOMING' ELSE 'OUTGOING' END), kind, currency,
			COUNT(*), COALESCE(SUM(amount), 0)
		FROM account_entries GROUP BY 1, 2, 3`, accountID, since)
	if err != nil {
		return domain.AccountStats{}, mapPgError(err)
	}
	for byDirRows.Next() {
		var db domain.DirectionTypeBreakdown
		if err := byDirRows.Scan(&db.Direction, &db.Kind, &db.Currency, &db.Count, &db.Total); err != nil {
			byDirRows.Close()
			return domain.AccountStats{}, mapPgError(err)
		}
		stats.ByDirectionAndType = append(stats.ByDirectionAndType, db)
	}
	byDirRows.Close()
	if err := byDirRows.Err(); err != nil {
		return domain.AccountStats{}, mapPgError(err)
	}

	dailyRows, err := r.pool.Query(ctx, accountEntriesCTE+`
		SELECT date_trunc('day', created_at), (CASE WHEN side = 'CREDIT' THEN 'INCOMING' ELSE 'OUTGOING' END), kind,
			COUNT(*), COALESCE(SUM(amount), 0)
		FROM account_entries GROUP BY 1, 2, 3 ORDER BY 1`, accountID, since)
	if err != nil {
		return domain.AccountStats{}, mapPgError(err)
	}
	defer dailyRows.Close()
	for dailyRows.Next() {
		var dt domain.DailyTrendPoint
		if err := dailyRows.Scan(&dt.Day, &dt.Direction, &dt.Kind, &dt.Count, &dt.Total); err != nil {
			return domain.AccountStats{}, mapPgError(err)
		}
		stats.DailyTrend = append(stats.DailyTrend, dt)
	}
	return stats, dailyRows.Err()
}

// SelectPendingOlderThan claims PENDING transactions older than cutoff by
// atomically flipping them to PROCESSING, so two concurrent sweepers never
// both pick up the same row.
func (r *JournalRepository) SelectPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE transactions SET status = 'PROCESSING', updated_at = now()
		WHERE id IN (
			SELECT id FROM transactions
			WHERE status = 'PENDING' AND created_at < $1
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id`, cutoff, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, mapPgError(err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}

	txns := make([]domain.Transaction, 0, len(ids))
	for _, id := range ids {
		t, err := r.FindByTransactionID(ctx, id)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, nil
}
