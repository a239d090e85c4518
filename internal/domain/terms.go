package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InterestMethod selects the amortization strategy.
type InterestMethod string

const (
	// InterestDecliningBalance charges each period interest on the remaining
	// outstanding balance.
	InterestDecliningBalance InterestMethod = "DECLINING_BALANCE"
	// InterestFlat pre-apportions total interest evenly over the term.
	InterestFlat InterestMethod = "FLAT"
)

func (m InterestMethod) Valid() bool {
	return m == InterestDecliningBalance || m == InterestFlat
}

// Frequency is the repayment period length.
type Frequency string

const (
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// PeriodsPerYear is used to derive the periodic rate from the nominal annual
// rate.
func (f Frequency) PeriodsPerYear() int {
	if f == FrequencyWeekly {
		return 52
	}
	return 12
}

// Advance returns the date n periods after start.
func (f Frequency) Advance(start time.Time, n int) time.Time {
	if f == FrequencyWeekly {
		return start.AddDate(0, 0, 7*n)
	}
	return start.AddDate(0, n, 0)
}

// ChargeTiming places a charge either entirely on the first installment or
// spread across every installment.
type ChargeTiming string

const (
	ChargeAtDisbursement ChargeTiming = "DISBURSEMENT"
	ChargePerInstallment ChargeTiming = "INSTALLMENT"
)

// Charge is a fee or penalty attached to the loan at generation time.
type Charge struct {
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	IsPenalty bool            `json:"is_penalty"`
	Timing    ChargeTiming    `json:"timing"`
}
