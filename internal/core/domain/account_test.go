package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerforge/corebank/internal/core/domain"
)

func TestAccountKindValid(t *testing.T) {
	assert.True(t, domain.KindSavings.Valid())
	assert.True(t, domain.KindInvestment.Valid())
	assert.True(t, domain.KindCredit.Valid())
	assert.True(t, domain.KindSystem.Valid())
	assert.False(t, domain.AccountKind("CHECKING").Valid())
	assert.False(t, domain.AccountKind("").Valid())
}

func TestCurrencyValid(t *testing.T) {
	for _, c := range []domain.Currency{domain.USD, domain.EUR, domain.GBP, domain.JPY, domain.CAD, domain.CHF, domain.AUD, domain.CNY, domain.INR, domain.NGN} {
		assert.True(t, c.Valid(), "%s should be valid", c)
	}
	assert.False(t, domain.Currency("XYZ").Valid())
}

func TestAccountNumberPattern(t *testing.T) {
	assert.True(t, domain.AccountNumberPattern.MatchString("ACCT-1A2B-3C4D-5E6F"))
	assert.False(t, domain.AccountNumberPattern.MatchString("ACCT-1a2b-3c4d-5e6f"))
	assert.False(t, domain.AccountNumberPattern.MatchString("ACCT-1A2B-3C4D"))
	assert.False(t, domain.AccountNumberPattern.MatchString("ACC-1A2B-3C4D-5E6F"))
}
