package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerforge/corebank/internal/apperrors"
	"github.com/ledgerforge/corebank/internal/core/domain"
	"github.com/ledgerforge/corebank/internal/core/ports"
	"github.com/ledgerforge/corebank/internal/core/services"
)

// TestConcurrentWithdrawalsNeverOverdraw fires N concurrent withdrawal
// attempts against a single shared account whose balance only covers a
// fraction of them, and asserts that exactly enough succeed to exhaust the
// balance and not one more: no lost updates, no overdraft.
func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	store := newFakeStore()
	fakeUOW := newFakeUnitOfWork(store)
	router := services.NewSystemAccountRouter(store, store, fakeUOW)
	engine := services.NewLedgerEngine(store, store, store, fakeUOW, router, services.Config{
		AmountPolicy:             domain.AmountPolicy{MaxUnits: decimal.RequireFromString("1000000"), Scale: 2},
		BalanceNonNegativePolicy: true,
		ConcurrencyMaxRetries:    5,
		ConcurrencyBaseBackoff:   time.Millisecond,
	})

	acct := domain.Account{ID: "shared-1", AccountNumber: "ACCT-1111-0000-0000", OwnerID: "owner-1", Kind: domain.KindSavings, Currency: domain.USD, Active: true}
	store.seedAccount(acct, "100.00")

	const attempts = 30
	const withdrawAmount = "10.00"
	var succeeded int64
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := engine.Withdrawal(context.Background(), ports.Caller{UserID: "owner-1"}, acct.ID, decimal.RequireFromString(withdrawAmount), nil)
			if err == nil {
				atomic.AddInt64(&succeeded, 1)
				return
			}
			if code, ok := apperrors.CodeOf(err); !ok || code != apperrors.CodeInsufficientFunds {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(10), succeeded, "exactly 10 withdrawals of 10.00 should drain a 100.00 balance")

	bal, err := store.ReadBalance(&fakeCommitContext{Context: context.Background(), store: store}, acct.ID)
	require.NoError(t, err)
	require.True(t, bal.Available.IsZero(), "balance must be exactly zero, got %s", bal.Available.String())
}
