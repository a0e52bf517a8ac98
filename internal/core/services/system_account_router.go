package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerforge/corebank/internal/apperrors"
	"github.com/ledgerforge/corebank/internal/core/domain"
	"github.com/ledgerforge/corebank/internal/core/ports"
	"github.com/ledgerforge/corebank/internal/platform/logging"
)

// systemAccountRouter lazily creates and caches the per-currency system
// accounts the engine posts counter-entries against. Creation happens at
// most once per (purpose, currency) pair even under concurrent callers.
type systemAccountRouter struct {
	accounts ports.AccountStore
	balances ports.BalanceStore
	uow      ports.UnitOfWork

	mu    sync.Mutex
	cache map[string]domain.Account
}

// NewSystemAccountRouter builds the system-account resolver the ledger
// engine posts counter-entries against.
func NewSystemAccountRouter(accounts ports.AccountStore, balances ports.BalanceStore, uow ports.UnitOfWork) ports.SystemAccountRouter {
	return &systemAccountRouter{
		accounts: accounts,
		balances: balances,
		uow:      uow,
		cache:    make(map[string]domain.Account),
	}
}

func cacheKey(purpose ports.SystemAccountPurpose, currency domain.Currency) string {
	return fmt.Sprintf("%s:%s", purpose, currency)
}

func (r *systemAccountRouter) SystemAccountFor(ctx context.Context, purpose ports.SystemAccountPurpose, currency domain.Currency) (domain.Account, error) {
	key := cacheKey(purpose, currency)

	r.mu.Lock()
	if acct, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return acct, nil
	}
	r.mu.Unlock()

	// Exclusion-guarded create-once: hold the lock across the whole
	// lookup-or-create so two concurrent first-callers for the same key
	// can't both attempt to create the account; the loser's CreateAccount
	// would otherwise race the winner's.
	r.mu.Lock()
	defer r.mu.Unlock()
	if acct, ok := r.cache[key]; ok {
		return acct, nil
	}

	ownerID := fmt.Sprintf("system:%s", purpose)
	acct, err := r.accounts.GetAccountByNumber(ctx, syntheticAccountNumber(purpose, currency))
	if err == nil {
		r.cache[key] = acct
		return acct, nil
	}
	if !apperrorsIsNotFound(err) {
		return domain.Account{}, err
	}

	acct = domain.Account{
		ID:            uuid.NewString(),
		AccountNumber: syntheticAccountNumber(purpose, currency),
		OwnerID:       ownerID,
		Kind:          domain.KindSystem,
		Currency:      currency,
		Active:        true,
		Metadata:      map[string]string{"purpose": string(purpose)},
	}

	cc, err := r.uow.Begin(ctx)
	if err != nil {
		return domain.Account{}, apperrors.NewStoreUnavailableError(err)
	}
	if err := r.accounts.CreateAccount(cc, acct); err != nil {
		_ = cc.Abort(ctx)
		// Someone else won the create race; fetch what they created.
		if apperrorsIsConflict(err) {
			existing, findErr := r.accounts.GetAccountByNumber(ctx, acct.AccountNumber)
			if findErr == nil {
				r.cache[key] = existing
				return existing, nil
			}
		}
		return domain.Account{}, err
	}
	if err := r.balances.InitBalance(cc, domain.Balance{
		AccountID: acct.ID,
		Currency:  currency,
		Available: decimal.Zero,
	}); err != nil {
		_ = cc.Abort(ctx)
		return domain.Account{}, err
	}
	if err := cc.Commit(ctx); err != nil {
		_ = cc.Abort(ctx)
		return domain.Account{}, err
	}

	logging.FromContext(ctx).Info("system account created",
		slog.String("purpose", string(purpose)), slog.String("currency", string(currency)), slog.String("account_id", acct.ID))

	r.cache[key] = acct
	return acct, nil
}

// syntheticAccountNumber is deterministic so repeated lookups by purpose and
// currency find the same row without needing a separate index.
func syntheticAccountNumber(purpose ports.SystemAccountPurpose, currency domain.Currency) string {
	return fmt.Sprintf("SYS-%s-%s", purpose, currency)
}

func apperrorsIsNotFound(err error) bool {
	code, ok := apperrors.CodeOf(err)
	return ok && code == apperrors.CodeNotFound
}

func apperrorsIsConflict(err error) bool {
	code, ok := apperrors.CodeOf(err)
	return ok && code == apperrors.CodeConflict
}
