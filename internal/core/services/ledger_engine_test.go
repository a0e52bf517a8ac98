package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/ledgerforge/corebank/internal/apperrors"
	"github.com/ledgerforge/corebank/internal/core/domain"
	"github.com/ledgerforge/corebank/internal/core/ports"
	"github.com/ledgerforge/corebank/internal/core/services"
)

type LedgerEngineTestSuite struct {
	suite.Suite
	store  *fakeStore
	uow    *fakeUnitOfWork
	router ports.SystemAccountRouter
	engine ports.LedgerEngine
}

func (s *LedgerEngineTestSuite) SetupTest() {
	s.store = newFakeStore()
	s.uow = newFakeUnitOfWork(s.store)
	s.router = services.NewSystemAccountRouter(s.store, s.store, s.uow)
	s.engine = services.NewLedgerEngine(s.store, s.store, s.store, s.uow, s.router, services.Config{
		AmountPolicy: domain.AmountPolicy{
			MaxUnits: decimal.RequireFromString("1000000"),
			Scale:    2,
		},
		BalanceNonNegativePolicy: true,
		ConcurrencyMaxRetries:    2,
		ConcurrencyBaseBackoff:   time.Millisecond,
	})
}

var seedCounter int

func (s *LedgerEngineTestSuite) seedAccount(kind domain.AccountKind, currency domain.Currency, available string) domain.Account {
	seedCounter++
	acct := domain.Account{
		ID:            "acct-" + string(currency) + "-" + string(kind) + "-" + decimal.NewFromInt(int64(seedCounter)).String(),
		AccountNumber: "ACCT-0000-0000-0000",
		OwnerID:       "owner-1",
		Kind:          kind,
		Currency:      currency,
		Active:        true,
	}
	s.store.seedAccount(acct, available)
	return acct
}

func (s *LedgerEngineTestSuite) TestDepositCreditsAccount() {
	acct := s.seedAccount(domain.KindSavings, domain.USD, "0")

	txn, err := s.engine.Deposit(context.Background(), ports.Caller{UserID: "owner-1"}, acct.ID, decimal.RequireFromString("100.00"), nil)
	s.Require().NoError(err)
	s.Equal(domain.StatusCompleted, txn.Status)
	s.True(txn.IsBalanced())

	bal, err := s.store.ReadBalance(&fakeCommitContext{Context: context.Background(), store: s.store}, acct.ID)
	s.Require().NoError(err)
	s.True(bal.Available.Equal(decimal.RequireFromString("100.00")))
}

func (s *LedgerEngineTestSuite) TestWithdrawalRejectsInsufficientFunds() {
	acct := s.seedAccount(domain.KindSavings, domain.USD, "10.00")

	_, err := s.engine.Withdrawal(context.Background(), ports.Caller{UserID: "owner-1"}, acct.ID, decimal.RequireFromString("50.00"), nil)
	s.Require().Error(err)
	code, ok := apperrors.CodeOf(err)
	s.Require().True(ok)
	s.Equal(apperrors.CodeInsufficientFunds, code)
}

func (s *LedgerEngineTestSuite) TestWithdrawalSucceedsWithinBalance() {
	acct := s.seedAccount(domain.KindSavings, domain.USD, "50.00")

	txn, err := s.engine.Withdrawal(context.Background(), ports.Caller{UserID: "owner-1"}, acct.ID, decimal.RequireFromString("20.00"), nil)
	s.Require().NoError(err)
	s.Equal(domain.StatusCompleted, txn.Status)

	bal, err := s.store.ReadBalance(&fakeCommitContext{Context: context.Background(), store: s.store}, acct.ID)
	s.Require().NoError(err)
	s.True(bal.Available.Equal(decimal.RequireFromString("30.00")))
}

func (s *LedgerEngineTestSuite) TestTransferMovesFundsBetweenAccounts() {
	from := s.seedAccount(domain.KindSavings, domain.USD, "100.00")
	to := s.seedAccount(domain.KindSavings, domain.USD, "0.00")

	txn, err := s.engine.Transfer(context.Background(), ports.Caller{UserID: "owner-1"}, from.ID, to.ID, decimal.RequireFromString("40.00"), nil)
	s.Require().NoError(err)
	s.True(txn.IsBalanced())

	fromBal, _ := s.store.ReadBalance(&fakeCommitContext{Context: context.Background(), store: s.store}, from.ID)
	toBal, _ := s.store.ReadBalance(&fakeCommitContext{Context: context.Background(), store: s.store}, to.ID)
	s.True(fromBal.Available.Equal(decimal.RequireFromString("60.00")))
	s.True(toBal.Available.Equal(decimal.RequireFromString("40.00")))
}

func (s *LedgerEngineTestSuite) TestTransferRejectsCurrencyMismatch() {
	from := s.seedAccount(domain.KindSavings, domain.USD, "100.00")
	to := s.seedAccount(domain.KindSavings, domain.EUR, "0.00")

	_, err := s.engine.Transfer(context.Background(), ports.Caller{UserID: "owner-1"}, from.ID, to.ID, decimal.RequireFromString("10.00"), nil)
	s.Require().Error(err)
	code, ok := apperrors.CodeOf(err)
	s.Require().True(ok)
	s.Equal(apperrors.CodeCurrencyMismatch, code)
}

func (s *LedgerEngineTestSuite) TestTransferRejectsSameAccount() {
	acct := s.seedAccount(domain.KindSavings, domain.USD, "100.00")

	_, err := s.engine.Transfer(context.Background(), ports.Caller{UserID: "owner-1"}, acct.ID, acct.ID, decimal.RequireFromString("10.00"), nil)
	s.Require().Error(err)
	code, ok := apperrors.CodeOf(err)
	s.Require().True(ok)
	s.Equal(apperrors.CodeBadRequest, code)
}

func (s *LedgerEngineTestSuite) TestDepositRejectsInactiveAccount() {
	acct := s.seedAccount(domain.KindSavings, domain.USD, "0.00")
	acct.Active = false
	s.store.accounts[acct.ID] = acct

	_, err := s.engine.Deposit(context.Background(), ports.Caller{UserID: "owner-1"}, acct.ID, decimal.RequireFromString("10.00"), nil)
	s.Require().Error(err)
	code, ok := apperrors.CodeOf(err)
	s.Require().True(ok)
	s.Equal(apperrors.CodeInactiveAccount, code)
}

func (s *LedgerEngineTestSuite) TestDepositRejectsNonPositiveAmount() {
	acct := s.seedAccount(domain.KindSavings, domain.USD, "0.00")

	_, err := s.engine.Deposit(context.Background(), ports.Caller{UserID: "owner-1"}, acct.ID, decimal.Zero, nil)
	s.Require().Error(err)
	code, ok := apperrors.CodeOf(err)
	s.Require().True(ok)
	s.Equal(apperrors.CodeBadRequest, code)
}

func (s *LedgerEngineTestSuite) TestReverseRestoresOriginalBalances() {
	from := s.seedAccount(domain.KindSavings, domain.USD, "100.00")
	to := s.seedAccount(domain.KindSavings, domain.USD, "0.00")

	txn, err := s.engine.Transfer(context.Background(), ports.Caller{UserID: "owner-1"}, from.ID, to.ID, decimal.RequireFromString("30.00"), nil)
	s.Require().NoError(err)

	reversal, err := s.engine.Reverse(context.Background(), ports.Caller{UserID: "admin-1", Role: "admin"}, txn.ID, "customer disputed charge")
	s.Require().NoError(err)
	s.Equal(domain.KindReversal, reversal.Kind)
	s.Equal(txn.ID, reversal.ReversalOfID)

	fromBal, _ := s.store.ReadBalance(&fakeCommitContext{Context: context.Background(), store: s.store}, from.ID)
	toBal, _ := s.store.ReadBalance(&fakeCommitContext{Context: context.Background(), store: s.store}, to.ID)
	s.True(fromBal.Available.Equal(decimal.RequireFromString("100.00")))
	s.True(toBal.Available.Equal(decimal.RequireFromString("0.00")))
}

func (s *LedgerEngineTestSuite) TestReverseRequiresAdmin() {
	from := s.seedAccount(domain.KindSavings, domain.USD, "100.00")
	to := s.seedAccount(domain.KindSavings, domain.USD, "0.00")
	txn, err := s.engine.Transfer(context.Background(), ports.Caller{UserID: "owner-1"}, from.ID, to.ID, decimal.RequireFromString("30.00"), nil)
	s.Require().NoError(err)

	_, err = s.engine.Reverse(context.Background(), ports.Caller{UserID: "owner-1", Role: "user"}, txn.ID, "customer disputed charge")
	s.Require().Error(err)
	code, ok := apperrors.CodeOf(err)
	s.Require().True(ok)
	s.Equal(apperrors.CodeUnauthorized, code)
}

func (s *LedgerEngineTestSuite) TestReverseRejectsDoubleReversal() {
	from := s.seedAccount(domain.KindSavings, domain.USD, "100.00")
	to := s.seedAccount(domain.KindSavings, domain.USD, "0.00")
	txn, err := s.engine.Transfer(context.Background(), ports.Caller{UserID: "owner-1"}, from.ID, to.ID, decimal.RequireFromString("30.00"), nil)
	s.Require().NoError(err)

	admin := ports.Caller{UserID: "admin-1", Role: "admin"}
	_, err = s.engine.Reverse(context.Background(), admin, txn.ID, "customer disputed charge")
	s.Require().NoError(err)

	_, err = s.engine.Reverse(context.Background(), admin, txn.ID, "customer disputed charge")
	s.Require().Error(err)
	code, ok := apperrors.CodeOf(err)
	s.Require().True(ok)
	s.Equal(apperrors.CodeAlreadyReversed, code)
}

func (s *LedgerEngineTestSuite) TestReverseRequiresReason() {
	from := s.seedAccount(domain.KindSavings, domain.USD, "100.00")
	to := s.seedAccount(domain.KindSavings, domain.USD, "0.00")
	txn, err := s.engine.Transfer(context.Background(), ports.Caller{UserID: "owner-1"}, from.ID, to.ID, decimal.RequireFromString("30.00"), nil)
	s.Require().NoError(err)

	admin := ports.Caller{UserID: "admin-1", Role: "admin"}
	_, err = s.engine.Reverse(context.Background(), admin, txn.ID, "")
	s.Require().Error(err)
	code, ok := apperrors.CodeOf(err)
	s.Require().True(ok)
	s.Equal(apperrors.CodeBadRequest, code)
}

func (s *LedgerEngineTestSuite) TestReverseStoresReasonAndOriginalIDInMetadata() {
	from := s.seedAccount(domain.KindSavings, domain.USD, "100.00")
	to := s.seedAccount(domain.KindSavings, domain.USD, "0.00")
	txn, err := s.engine.Transfer(context.Background(), ports.Caller{UserID: "owner-1"}, from.ID, to.ID, decimal.RequireFromString("30.00"), nil)
	s.Require().NoError(err)

	admin := ports.Caller{UserID: "admin-1", Role: "admin"}
	reversal, err := s.engine.Reverse(context.Background(), admin, txn.ID, "customer disputed charge")
	s.Require().NoError(err)
	s.Equal(txn.ID, reversal.Metadata["originalTransactionId"])
	s.Equal("customer disputed charge", reversal.Metadata["reversalReason"])
}

func (s *LedgerEngineTestSuite) TestReverseFailsWhenDestinationHasBeenDrained() {
	from := s.seedAccount(domain.KindSavings, domain.USD, "100.00")
	to := s.seedAccount(domain.KindSavings, domain.USD, "0.00")
	txn, err := s.engine.Transfer(context.Background(), ports.Caller{UserID: "owner-1"}, from.ID, to.ID, decimal.RequireFromString("30.00"), nil)
	s.Require().NoError(err)

	_, err = s.engine.Withdrawal(context.Background(), ports.Caller{UserID: "owner-1"}, to.ID, decimal.RequireFromString("30.00"), nil)
	s.Require().NoError(err)

	admin := ports.Caller{UserID: "admin-1", Role: "admin"}
	_, err = s.engine.Reverse(context.Background(), admin, txn.ID, "customer disputed charge")
	s.Require().Error(err)
	code, ok := apperrors.CodeOf(err)
	s.Require().True(ok)
	s.Equal(apperrors.CodeInsufficientFunds, code)
}

func TestLedgerEngineSuite(t *testing.T) {
	suite.Run(t, new(LedgerEngineTestSuite))
}
