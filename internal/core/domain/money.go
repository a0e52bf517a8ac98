package domain

import (
	"github.com/shopspring/decimal"

	"github.com/ledgerforge/corebank/internal/apperrors"
)

// AmountPolicy bounds what counts as a well-formed monetary amount,
// configured from the amount.maxUnits / amount.scale knobs.
type AmountPolicy struct {
	MaxUnits decimal.Decimal
	Scale    int32
}

// Validate enforces T4: amount must be strictly positive, within MaxUnits,
// and representable at Scale decimal places.
func (p AmountPolicy) Validate(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return apperrors.NewBadRequestError("amount must be positive, got %s", amount.String())
	}
	if amount.Exponent() < -p.Scale {
		return apperrors.NewBadRequestError("amount %s exceeds scale of %d decimal places", amount.String(), p.Scale)
	}
	if amount.GreaterThan(p.MaxUnits) {
		return apperrors.NewBadRequestError("amount %s exceeds maximum of %s", amount.String(), p.MaxUnits.String())
	}
	return nil
}
