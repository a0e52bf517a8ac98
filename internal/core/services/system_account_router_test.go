package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ledgerforge/corebank/internal/core/domain"
	"github.com/ledgerforge/corebank/internal/core/ports"
	"github.com/ledgerforge/corebank/internal/core/services"
)

type SystemAccountRouterTestSuite struct {
	suite.Suite
	store  *fakeStore
	router ports.SystemAccountRouter
}

func (s *SystemAccountRouterTestSuite) SetupTest() {
	s.store = newFakeStore()
	s.router = services.NewSystemAccountRouter(s.store, s.store, newFakeUnitOfWork(s.store))
}

func (s *SystemAccountRouterTestSuite) TestCreatesOnFirstLookup() {
	acct, err := s.router.SystemAccountFor(context.Background(), ports.SystemDeposits, domain.USD)
	s.Require().NoError(err)
	s.Equal(domain.KindSystem, acct.Kind)
	s.Equal(domain.USD, acct.Currency)
}

func (s *SystemAccountRouterTestSuite) TestReturnsSameAccountOnSubsequentLookups() {
	first, err := s.router.SystemAccountFor(context.Background(), ports.SystemFees, domain.EUR)
	s.Require().NoError(err)

	second, err := s.router.SystemAccountFor(context.Background(), ports.SystemFees, domain.EUR)
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
}

func (s *SystemAccountRouterTestSuite) TestDistinctPerPurposeAndCurrency() {
	usd, err := s.router.SystemAccountFor(context.Background(), ports.SystemWithdrawals, domain.USD)
	s.Require().NoError(err)
	eur, err := s.router.SystemAccountFor(context.Background(), ports.SystemWithdrawals, domain.EUR)
	s.Require().NoError(err)
	s.NotEqual(usd.ID, eur.ID)
}

func (s *SystemAccountRouterTestSuite) TestConcurrentFirstLookupsConvergeOnOneAccount() {
	const n = 20
	results := make([]domain.Account, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			acct, err := s.router.SystemAccountFor(context.Background(), ports.SystemDeposits, domain.GBP)
			s.Require().NoError(err)
			results[i] = acct
		}(i)
	}
	wg.Wait()

	for _, acct := range results {
		s.Equal(results[0].ID, acct.ID)
	}
}

func TestSystemAccountRouterSuite(t *testing.T) {
	suite.Run(t, new(SystemAccountRouterTestSuite))
}
