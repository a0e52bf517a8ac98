package identifiers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerforge/corebank/internal/core/domain"
	"github.com/ledgerforge/corebank/internal/core/identifiers"
)

func TestMintAccountNumberMatchesPattern(t *testing.T) {
	for i := 0; i < 50; i++ {
		got := identifiers.MintAccountNumber()
		assert.Regexp(t, domain.AccountNumberPattern, got)
	}
}

func TestMintAccountNumberIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		got := identifiers.MintAccountNumber()
		assert.False(t, seen[got], "minted duplicate account number %s", got)
		seen[got] = true
	}
}

func TestMintTransactionIDMatchesPattern(t *testing.T) {
	for kind, prefix := range map[domain.Kind]string{
		domain.KindDeposit:    "DEP",
		domain.KindWithdrawal: "WDR",
		domain.KindTransfer:   "TRF",
		domain.KindFee:        "FEE",
		domain.KindReversal:   "REV",
	} {
		got := identifiers.MintTransactionID(kind.IDPrefix())
		assert.Equal(t, prefix, kind.IDPrefix())
		assert.Regexp(t, domain.TransactionIDPattern, got)
	}
}

func TestMintTransactionIDIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		got := identifiers.MintTransactionID("DEP")
		assert.False(t, seen[got], "minted duplicate transaction id %s", got)
		seen[got] = true
	}
}
