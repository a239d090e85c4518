package domain

import (
	"github.com/shopspring/decimal"
)

// RoundingMode selects how period amounts are rounded to the currency scale.
type RoundingMode string

const (
	RoundingHalfUp   RoundingMode = "HALF_UP"
	RoundingHalfEven RoundingMode = "HALF_EVEN"
	RoundingUp       RoundingMode = "UP"
	RoundingDown     RoundingMode = "DOWN"
)

func (m RoundingMode) Valid() bool {
	switch m {
	case RoundingHalfUp, RoundingHalfEven, RoundingUp, RoundingDown:
		return true
	}
	return false
}

// MonetaryPolicy is the currency rounding configuration injected into every
// calculation. It replaces any ambient or global rounding state.
type MonetaryPolicy struct {
	CurrencyCode  string
	DecimalPlaces int32
	InMultiplesOf decimal.Decimal // zero means no multiples constraint
	Mode          RoundingMode
}

func NewMonetaryPolicy(code string, decimalPlaces int32, inMultiplesOf decimal.Decimal, mode RoundingMode) MonetaryPolicy {
	return MonetaryPolicy{
		CurrencyCode:  code,
		DecimalPlaces: decimalPlaces,
		InMultiplesOf: inMultiplesOf,
		Mode:          mode,
	}
}

// Round applies the currency's decimal-places and multiples-of rules.
func (p MonetaryPolicy) Round(amount decimal.Decimal) decimal.Decimal {
	rounded := p.roundToScale(amount)
	if p.InMultiplesOf.IsPositive() {
		units := rounded.Div(p.InMultiplesOf).Round(0)
		rounded = units.Mul(p.InMultiplesOf)
	}
	return rounded
}

func (p MonetaryPolicy) roundToScale(amount decimal.Decimal) decimal.Decimal {
	switch p.Mode {
	case RoundingHalfEven:
		return amount.RoundBank(p.DecimalPlaces)
	case RoundingUp:
		return amount.RoundUp(p.DecimalPlaces)
	case RoundingDown:
		return amount.RoundDown(p.DecimalPlaces)
	default:
		return amount.Round(p.DecimalPlaces)
	}
}

// IsZero reports whether the policy is unset. Generation refuses to run
// without a currency policy rather than guessing a scale.
func (p MonetaryPolicy) IsZero() bool {
	return p.CurrencyCode == "" && p.Mode == ""
}
