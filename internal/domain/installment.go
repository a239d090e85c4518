package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Component identifies one of the four monetary components tracked per
// installment.
type Component string

const (
	ComponentPrincipal Component = "PRINCIPAL"
	ComponentInterest  Component = "INTEREST"
	ComponentFee       Component = "FEE"
	ComponentPenalty   Component = "PENALTY"
)

// Components lists all components in the legacy allocation priority order.
var Components = []Component{ComponentPrincipal, ComponentInterest, ComponentFee, ComponentPenalty}

// ComponentAmounts tracks the lifecycle of a single installment component.
// Paid never exceeds Due minus Waived minus WrittenOff; overpayments are
// recorded on the loan's overpayment ledger, not here.
type ComponentAmounts struct {
	Due        decimal.Decimal `json:"due" db:"due"`
	Paid       decimal.Decimal `json:"paid" db:"paid"`
	Waived     decimal.Decimal `json:"waived" db:"waived"`
	WrittenOff decimal.Decimal `json:"written_off" db:"written_off"`
}

// Outstanding is the amount still owed on this component.
func (c ComponentAmounts) Outstanding() decimal.Decimal {
	out := c.Due.Sub(c.Paid).Sub(c.Waived).Sub(c.WrittenOff)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

func (c ComponentAmounts) IsSettled() bool {
	return c.Outstanding().IsZero()
}

// Installment is one scheduled repayment period. Installments are owned by
// the Loan aggregate in an ordered collection indexed by Number; transactions
// refer to them by number, never by pointer.
type Installment struct {
	Number    int       `json:"number" db:"number"`
	FromDate  time.Time `json:"from_date" db:"from_date"`
	DueDate   time.Time `json:"due_date" db:"due_date"`
	Principal ComponentAmounts
	Interest  ComponentAmounts
	Fee       ComponentAmounts
	Penalty   ComponentAmounts
	// ObligationsMet flips when every component is settled; the date records
	// when that happened so a later chargeback can be recognised as a
	// reopening rather than a never-paid installment.
	ObligationsMet   bool       `json:"obligations_met" db:"obligations_met"`
	ObligationsMetOn *time.Time `json:"obligations_met_on,omitempty" db:"obligations_met_on"`
	// IsNew marks periods regenerated by a reschedule; RescheduledFrom links
	// a regenerated period back to the original period number for audit.
	IsNew           bool `json:"is_new" db:"is_new"`
	RescheduledFrom int  `json:"rescheduled_from,omitempty" db:"rescheduled_from"`
}

// Amounts returns the tracked amounts for the named component.
func (i *Installment) Amounts(c Component) *ComponentAmounts {
	switch c {
	case ComponentPrincipal:
		return &i.Principal
	case ComponentInterest:
		return &i.Interest
	case ComponentFee:
		return &i.Fee
	case ComponentPenalty:
		return &i.Penalty
	}
	return nil
}

// TotalDue is the full amount scheduled for the period.
func (i *Installment) TotalDue() decimal.Decimal {
	return i.Principal.Due.Add(i.Interest.Due).Add(i.Fee.Due).Add(i.Penalty.Due)
}

// TotalOutstanding is the amount still owed across all components.
func (i *Installment) TotalOutstanding() decimal.Decimal {
	return i.Principal.Outstanding().
		Add(i.Interest.Outstanding()).
		Add(i.Fee.Outstanding()).
		Add(i.Penalty.Outstanding())
}

// IsFullySettled reports whether no component has an outstanding balance.
func (i *Installment) IsFullySettled() bool {
	return i.TotalOutstanding().IsZero()
}

// IsOverdue reports whether the installment has an outstanding obligation past
// its due date as of the given business date.
func (i *Installment) IsOverdue(businessDate time.Time) bool {
	return i.DueDate.Before(businessDate) && !i.IsFullySettled()
}

// RefreshObligationsMet recomputes the obligations-met flag after paid/waived
// amounts change. Settling sets the date; reopening clears the flag but keeps
// the historical date so chargeback detection still sees the earlier payoff.
func (i *Installment) RefreshObligationsMet(businessDate time.Time) {
	if i.IsFullySettled() {
		if !i.ObligationsMet {
			i.ObligationsMet = true
			d := businessDate
			i.ObligationsMetOn = &d
		}
		return
	}
	i.ObligationsMet = false
}

// InstallmentDelta is the output of payment allocation: the amount to apply to
// one component of one installment. The resolver never mutates installments;
// the caller applies deltas.
type InstallmentDelta struct {
	InstallmentNumber int             `json:"installment_number"`
	Component         Component       `json:"component"`
	Amount            decimal.Decimal `json:"amount"`
}
