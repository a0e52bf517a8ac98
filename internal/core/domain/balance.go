package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the single mutable money ledger row for an Account, stored
// apart from Account so balance writes don't contend with account metadata
// updates.
type Balance struct {
	AccountID string
	Currency  Currency
	Available decimal.Decimal
	UpdatedAt time.Time
	Version   int64
}

// AllowsNegative reports whether kind is permitted to carry a negative
// balance under the default policy (B2): CREDIT and SYSTEM accounts can,
// everything else can't.
func (k AccountKind) AllowsNegative() bool {
	return k == KindCredit || k == KindSystem
}
