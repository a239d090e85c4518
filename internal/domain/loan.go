package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	LoanStatusActive     = "active"
	LoanStatusClosed     = "closed"
	LoanStatusOverpaid   = "overpaid"
	LoanStatusWrittenOff = "written_off"
)

// ProductDetail is the slice of loan-product configuration the calculation
// engine needs. It is an immutable value supplied by the caller per call.
type ProductDetail struct {
	GraceOnArrearsAgeing        int // days after due date before delinquency accrues
	InstallmentLevelDelinquency bool
	Monetary                    MonetaryPolicy
	AllocationStrategy          AllocationStrategy
}

// Loan is the aggregate the engine computes over: an ordered arena of
// installments indexed by number, the transaction list, and mappings tying
// transactions to installment numbers.
type Loan struct {
	ID           string          `json:"id" db:"id"`
	Status       string          `json:"status" db:"status"`
	Currency     string          `json:"currency" db:"currency"`
	Principal    decimal.Decimal `json:"principal" db:"principal"`
	Overpayment  decimal.Decimal `json:"overpayment" db:"overpayment"`
	DisbursedOn  time.Time       `json:"disbursed_on" db:"disbursed_on"`
	Installments []Installment   `json:"installments"`
	Transactions []LoanTransaction
	Mappings     []TransactionMapping
}

// InstallmentByNumber returns the installment with the given sequence number,
// or nil when absent.
func (l *Loan) InstallmentByNumber(number int) *Installment {
	for idx := range l.Installments {
		if l.Installments[idx].Number == number {
			return &l.Installments[idx]
		}
	}
	return nil
}

// InstallmentsByDueDate returns the installments ordered by due date, ties
// broken by sequence number.
func (l *Loan) InstallmentsByDueDate() []*Installment {
	ordered := make([]*Installment, 0, len(l.Installments))
	for idx := range l.Installments {
		ordered = append(ordered, &l.Installments[idx])
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].DueDate.Equal(ordered[j].DueDate) {
			return ordered[i].Number < ordered[j].Number
		}
		return ordered[i].DueDate.Before(ordered[j].DueDate)
	})
	return ordered
}

// MappingsForInstallment returns the transaction mappings referencing the
// given installment number.
func (l *Loan) MappingsForInstallment(number int) []TransactionMapping {
	var out []TransactionMapping
	for _, m := range l.Mappings {
		if m.InstallmentNumber == number {
			out = append(out, m)
		}
	}
	return out
}

// TransactionByID resolves a mapping back to its transaction.
func (l *Loan) TransactionByID(id uuid.UUID) *LoanTransaction {
	for idx := range l.Transactions {
		if l.Transactions[idx].ID == id {
			return &l.Transactions[idx]
		}
	}
	return nil
}

// Chargebacks returns the non-reversed chargeback transactions on the loan.
func (l *Loan) Chargebacks() []*LoanTransaction {
	var out []*LoanTransaction
	for idx := range l.Transactions {
		if l.Transactions[idx].IsChargeback() {
			out = append(out, &l.Transactions[idx])
		}
	}
	return out
}

// ApplyDeltas applies allocation output to the aggregate, refreshing the
// obligations-met flags of every touched installment.
func (l *Loan) ApplyDeltas(deltas []InstallmentDelta, businessDate time.Time) {
	touched := map[int]bool{}
	for _, d := range deltas {
		inst := l.InstallmentByNumber(d.InstallmentNumber)
		if inst == nil {
			continue
		}
		amounts := inst.Amounts(d.Component)
		amounts.Paid = amounts.Paid.Add(d.Amount)
		touched[d.InstallmentNumber] = true
	}
	for number := range touched {
		l.InstallmentByNumber(number).RefreshObligationsMet(businessDate)
	}
}

// ScheduleTotals are the aggregate amounts of a schedule, recomputed from the
// periods so they always reconcile with the installment list.
type ScheduleTotals struct {
	PrincipalDisbursed decimal.Decimal `json:"principal_disbursed"`
	InterestCharged    decimal.Decimal `json:"interest_charged"`
	FeeCharged         decimal.Decimal `json:"fee_charged"`
	PenaltyCharged     decimal.Decimal `json:"penalty_charged"`
	Repaid             decimal.Decimal `json:"repaid"`
	Outstanding        decimal.Decimal `json:"outstanding"`
}

// LoanScheduleModel is the output of schedule generation: the ordered periods
// plus totals derived from them.
type LoanScheduleModel struct {
	Currency     string         `json:"currency"`
	Installments []Installment  `json:"installments"`
	Totals       ScheduleTotals `json:"totals"`
}

// ComputeTotals derives the aggregate amounts from the installment list.
func ComputeTotals(installments []Installment) ScheduleTotals {
	var t ScheduleTotals
	t.PrincipalDisbursed = decimal.Zero
	t.InterestCharged = decimal.Zero
	t.FeeCharged = decimal.Zero
	t.PenaltyCharged = decimal.Zero
	t.Repaid = decimal.Zero
	t.Outstanding = decimal.Zero
	for idx := range installments {
		inst := &installments[idx]
		t.PrincipalDisbursed = t.PrincipalDisbursed.Add(inst.Principal.Due)
		t.InterestCharged = t.InterestCharged.Add(inst.Interest.Due)
		t.FeeCharged = t.FeeCharged.Add(inst.Fee.Due)
		t.PenaltyCharged = t.PenaltyCharged.Add(inst.Penalty.Due)
		t.Repaid = t.Repaid.Add(inst.Principal.Paid).Add(inst.Interest.Paid).Add(inst.Fee.Paid).Add(inst.Penalty.Paid)
		t.Outstanding = t.Outstanding.Add(inst.TotalOutstanding())
	}
	return t
}

// Reschedule request lifecycle.
const (
	RescheduleStatusSubmitted = "submitted"
	RescheduleStatusApproved  = "approved"
	RescheduleStatusRejected  = "rejected"
)

// RescheduleRequest captures the revised terms for rebuilding the tail of a
// schedule. Once approved it is immutable.
type RescheduleRequest struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	LoanID               string          `json:"loan_id" db:"loan_id"`
	Status               string          `json:"status" db:"status"`
	EffectiveInstallment int             `json:"effective_installment" db:"effective_installment"`
	EffectiveDate        time.Time       `json:"effective_date" db:"effective_date"`
	RevisedTermPeriods   int             `json:"revised_term_periods" db:"revised_term_periods"`
	RevisedAnnualRate    decimal.Decimal `json:"revised_annual_rate" db:"revised_annual_rate"`
	MoratoriumPeriods    int             `json:"moratorium_periods" db:"moratorium_periods"`
	SubmittedOn          time.Time       `json:"submitted_on" db:"submitted_on"`
	ResolvedOn           *time.Time      `json:"resolved_on,omitempty" db:"resolved_on"`
}

func (r *RescheduleRequest) IsPending() bool {
	return r.Status == RescheduleStatusSubmitted
}

// ScheduleHistory is the immutable snapshot of the installment set taken
// before a reschedule is applied, keyed by the request that caused it.
type ScheduleHistory struct {
	RequestID    uuid.UUID     `json:"request_id" db:"request_id"`
	LoanID       string        `json:"loan_id" db:"loan_id"`
	Installments []Installment `json:"installments"`
	TakenAt      time.Time     `json:"taken_at" db:"taken_at"`
}

// LoanRescheduleModel is the output of the reschedule engine.
type LoanRescheduleModel struct {
	NewPeriods         []Installment   `json:"new_periods"`
	OldPeriodsSnapshot ScheduleHistory `json:"old_periods_snapshot"`
	Totals             ScheduleTotals  `json:"totals"`
}
