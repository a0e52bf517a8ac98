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

// AccountRepository implements ports.AccountStore and ports.BalanceStore
// against the accounts/balances tables.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) CreateAccount(ctx ports.CommitContext, account domain.Account) error {
	tx, err := txOf(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (id, account_number, owner_id, kind, currency, active, metadata, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		account.ID, account.AccountNumber, account.OwnerID, account.Kind, account.Currency,
		account.Active, account.Metadata, account.CreatedAt, account.UpdatedAt, account.Version)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (r *AccountRepository) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, account_number, owner_id, kind, currency, active, metadata, created_at, updated_at, version
		FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *AccountRepository) GetAccountByNumber(ctx context.Context, accountNumber string) (domain.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, account_number, owner_id, kind, currency, active, metadata, created_at, updated_at, version
		FROM accounts WHERE account_number = $1`, accountNumber)
	return scanAccount(row)
}

func (r *AccountRepository) UpdateAccount(ctx ports.CommitContext, account domain.Account) error {
	tx, err := txOf(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE accounts SET active = $2, metadata = $3, updated_at = $4, version = version + 1
		WHERE id = $1 AND version = $5`,
		account.ID, account.Active, account.Metadata, account.UpdatedAt, account.Version)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError("account %s was modified concurrently", account.ID)
	}
	return nil
}

func (r *AccountRepository) ListAccountsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_number, owner_id, kind, currency, active, metadata, created_at, updated_at, version
		FROM accounts WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

// LockAccounts reads and FOR UPDATE locks every requested account, ordering
// by id first so concurrent commits touching overlapping account sets
// always acquire locks in the same order and can't deadlock against each
// other.
func (r *AccountRepository) LockAccounts(ctx ports.CommitContext, ids []string) (map[string]domain.Account, error) {
	tx, err := txOf(ctx)
	if err != nil {
		return nil, err
	}
	sorted := append([]string(nil), ids...)
	sortStrings(sorted)

	rows, err := tx.Query(ctx, `
		SELECT id, account_number, owner_id, kind, currency, active, metadata, created_at, updated_at, version
		FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, sorted)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make(map[string]domain.Account, len(ids))
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[acct.ID] = acct
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.AccountNumber, &a.OwnerID, &a.Kind, &a.Currency, &a.Active, &a.Metadata, &a.CreatedAt, &a.UpdatedAt, &a.Version)
	if err != nil {
		return domain.Account{}, mapPgError(err)
	}
	return a, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// --- Balance Store ---

func (r *AccountRepository) InitBalance(ctx ports.CommitContext, balance domain.Balance) error {
	tx, err := txOf(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO balances (account_id, currency, available, updated_at, version)
		VALUES ($1, $2, $3, $4, 1)`,
		balance.AccountID, balance.Currency, balance.Available, time.Now())
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (r *AccountRepository) ReadBalance(ctx ports.CommitContext, accountID string) (domain.Balance, error) {
	tx, err := txOf(ctx)
	if err != nil {
		return domain.Balance{}, err
	}
	var b domain.Balance
	var available decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT account_id, currency, available, updated_at, version
		FROM balances WHERE account_id = $1 FOR UPDATE`, accountID).
		Scan(&b.AccountID, &b.Currency, &available, &b.UpdatedAt, &b.Version)
	if err != nil {
		return domain.Balance{}, mapPgError(err)
	}
	b.Available = available
	return b, nil
}

func (r *AccountRepository) WriteBalance(ctx ports.CommitContext, balance domain.Balance) error {
	tx, err := txOf(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE balances SET available = $2, updated_at = $3, version = version + 1
		WHERE account_id = $1 AND version = $4`,
		balance.AccountID, balance.Available, time.Now(), balance.Version)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError("balance for account %s was modified concurrently", balance.AccountID)
	}
	return nil
}
