package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerforge/corebank/internal/apperrors"
	"github.com/ledgerforge/corebank/internal/core/domain"
	"github.com/ledgerforge/corebank/internal/core/identifiers"
	"github.com/ledgerforge/corebank/internal/core/ports"
	"github.com/ledgerforge/corebank/internal/platform/logging"
)

type accountService struct {
	accounts ports.AccountStore
	balances ports.BalanceStore
	uow      ports.UnitOfWork
}

// NewAccountService builds the account-lifecycle surface: creation,
// lookup, deactivation and per-owner listing.
func NewAccountService(accounts ports.AccountStore, balances ports.BalanceStore, uow ports.UnitOfWork) ports.AccountService {
	return &accountService{accounts: accounts, balances: balances, uow: uow}
}

func (s *accountService) CreateAccount(ctx context.Context, ownerID string, kind domain.AccountKind, currency domain.Currency, metadata map[string]string) (domain.Account, error) {
	logger := logging.FromContext(ctx)
	if !kind.Valid() {
		return domain.Account{}, apperrors.NewBadRequestError("invalid account kind %q", kind)
	}
	if !currency.Valid() {
		return domain.Account{}, apperrors.NewBadRequestError("invalid currency %q", currency)
	}
	if ownerID == "" {
		return domain.Account{}, apperrors.NewBadRequestError("ownerID is required")
	}

	now := time.Now()
	acct := domain.Account{
		ID:            uuid.NewString(),
		AccountNumber: identifiers.MintAccountNumber(),
		OwnerID:       ownerID,
		Kind:          kind,
		Currency:      currency,
		Active:        true,
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}

	cc, err := s.uow.Begin(ctx)
	if err != nil {
		return domain.Account{}, apperrors.NewStoreUnavailableError(err)
	}
	if err := s.accounts.CreateAccount(cc, acct); err != nil {
		_ = cc.Abort(ctx)
		return domain.Account{}, err
	}
	if err := s.balances.InitBalance(cc, domain.Balance{
		AccountID: acct.ID,
		Currency:  currency,
		Available: decimal.Zero,
		UpdatedAt: now,
		Version:   1,
	}); err != nil {
		_ = cc.Abort(ctx)
		return domain.Account{}, err
	}
	if err := cc.Commit(ctx); err != nil {
		_ = cc.Abort(ctx)
		return domain.Account{}, err
	}

	logger.Info("account created", slog.String("account_id", acct.ID), slog.String("owner_id", ownerID), slog.String("kind", string(kind)))
	return acct, nil
}

func (s *accountService) GetAccount(ctx context.Context, accountID string) (domain.Account, error) {
	return s.accounts.GetAccount(ctx, accountID)
}

func (s *accountService) GetAccountByNumber(ctx context.Context, accountNumber string) (domain.Account, error) {
	return s.accounts.GetAccountByNumber(ctx, accountNumber)
}

func (s *accountService) DeactivateAccount(ctx context.Context, accountID string) error {
	logger := logging.FromContext(ctx)
	cc, err := s.uow.Begin(ctx)
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}

	accts, err := s.accounts.LockAccounts(cc, []string{accountID})
	if err != nil {
		_ = cc.Abort(ctx)
		return err
	}
	acct, ok := accts[accountID]
	if !ok {
		_ = cc.Abort(ctx)
		return apperrors.NewNotFoundError("account %s not found", accountID)
	}
	if !acct.Active {
		// Idempotent: already inactive is not an error.
		_ = cc.Abort(ctx)
		return nil
	}

	acct.Active = false
	acct.UpdatedAt = time.Now()
	if err := s.accounts.UpdateAccount(cc, acct); err != nil {
		_ = cc.Abort(ctx)
		return err
	}
	if err := cc.Commit(ctx); err != nil {
		_ = cc.Abort(ctx)
		return err
	}

	logger.Info("account deactivated", slog.String("account_id", accountID))
	return nil
}

func (s *accountService) ListAccountsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Account, error) {
	return s.accounts.ListAccountsByOwner(ctx, ownerID, limit, offset)
}
