package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RangeCurrent is the classification of a loan with no delinquent days. It is
// never recorded in tag history; only real ranges are.
const RangeCurrent = "CURRENT"

// DelinquencyRange is one band of overdue day counts. MaxDays nil means the
// range is open-ended.
type DelinquencyRange struct {
	Classification string `json:"classification" db:"classification"`
	MinDays        int    `json:"min_days" db:"min_days"`
	MaxDays        *int   `json:"max_days,omitempty" db:"max_days"`
}

// Contains reports whether the given overdue age falls inside the range.
func (r DelinquencyRange) Contains(days int) bool {
	if days < r.MinDays {
		return false
	}
	return r.MaxDays == nil || days <= *r.MaxDays
}

// DelinquencyBucket is a named, ordered set of non-overlapping ranges.
type DelinquencyBucket struct {
	Name   string             `json:"name" db:"name"`
	Ranges []DelinquencyRange `json:"ranges"`
}

// Validate checks the structural invariants: ranges sorted by min day,
// contiguous, non-overlapping, with at most one open-ended range (which must
// be last). Problems are appended to the violation list under the documented
// code; the bucket is usable only when none are found.
func (b DelinquencyBucket) Validate(addViolation func(code, format string, args ...interface{})) {
	const code = "DELINQUENCY_RANGES_INVALID"
	sorted := make([]DelinquencyRange, len(b.Ranges))
	copy(sorted, b.Ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinDays < sorted[j].MinDays })

	for i, r := range sorted {
		if r.MaxDays != nil && *r.MaxDays < r.MinDays {
			addViolation(code, "bucket %s range %s has max %d below min %d", b.Name, r.Classification, *r.MaxDays, r.MinDays)
		}
		if r.MaxDays == nil && i != len(sorted)-1 {
			addViolation(code, "bucket %s has an open-ended range %s that is not last", b.Name, r.Classification)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.MaxDays == nil {
			continue // already reported above
		}
		if r.MinDays != *prev.MaxDays+1 {
			addViolation(code, "bucket %s ranges %s and %s are not contiguous", b.Name, prev.Classification, r.Classification)
		}
	}
}

// RangeFor resolves the range containing the given delinquent age. A zero or
// negative age always resolves to CURRENT (nil range).
func (b DelinquencyBucket) RangeFor(delinquentDays int) *DelinquencyRange {
	if delinquentDays <= 0 {
		return nil
	}
	for idx := range b.Ranges {
		if b.Ranges[idx].Contains(delinquentDays) {
			return &b.Ranges[idx]
		}
	}
	return nil
}

// PausePeriod suspends overdue-day accrual from Start (inclusive) to End
// (exclusive): a pause over one calendar day has End = Start + 1 day.
type PausePeriod struct {
	Start time.Time `json:"start" db:"start"`
	End   time.Time `json:"end" db:"end"`
}

// OverlapDays counts the days of the pause that fall inside [from, to).
func (p PausePeriod) OverlapDays(from, to time.Time) int {
	start := p.Start
	if start.Before(from) {
		start = from
	}
	end := p.End
	if end.After(to) {
		end = to
	}
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}

// LoanDelinquencyTagHistory is the append-only audit trail of range
// membership. LiftedOnDate nil marks the currently active entry; a loan (or
// installment) has at most one active entry at a time.
type LoanDelinquencyTagHistory struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	LoanID            string     `json:"loan_id" db:"loan_id"`
	InstallmentNumber int        `json:"installment_number" db:"installment_number"` // zero for loan-level
	Classification    string     `json:"classification" db:"classification"`
	AddedOnDate       time.Time  `json:"added_on_date" db:"added_on_date"`
	LiftedOnDate      *time.Time `json:"lifted_on_date,omitempty" db:"lifted_on_date"`
}

func (t *LoanDelinquencyTagHistory) IsActive() bool {
	return t.LiftedOnDate == nil
}

// DelinquencyRangeChanged is the single notification emitted when a loan or
// installment moves between ranges. InstallmentNumber is zero for loan-level
// transitions; CURRENT is represented by an empty range name.
type DelinquencyRangeChanged struct {
	LoanID            string    `json:"loan_id"`
	InstallmentNumber int       `json:"installment_number,omitempty"`
	PreviousRange     string    `json:"previous_range"`
	NewRange          string    `json:"new_range"`
	AsOfDate          time.Time `json:"as_of_date"`
}

// CollectionData is the derived delinquency snapshot for a loan or a single
// installment. It is computed on demand and cached, never stored as source of
// truth.
type CollectionData struct {
	LoanID            string          `json:"loan_id"`
	InstallmentNumber int             `json:"installment_number,omitempty"`
	DelinquentDays    int             `json:"delinquent_days"`
	DelinquentDate    *time.Time      `json:"delinquent_date,omitempty"`
	Classification    string          `json:"classification"`
	PastDuePrincipal  decimal.Decimal `json:"past_due_principal"`
	PastDueInterest   decimal.Decimal `json:"past_due_interest"`
	PastDueFee        decimal.Decimal `json:"past_due_fee"`
	PastDuePenalty    decimal.Decimal `json:"past_due_penalty"`
}

// TotalPastDue is the sum of the component breakdowns.
func (c CollectionData) TotalPastDue() decimal.Decimal {
	return c.PastDuePrincipal.Add(c.PastDueInterest).Add(c.PastDueFee).Add(c.PastDuePenalty)
}

// LoanDelinquencySnapshot combines the loan-level view with the per
// installment views when installment-level delinquency is enabled.
type LoanDelinquencySnapshot struct {
	Loan         CollectionData   `json:"loan"`
	Installments []CollectionData `json:"installments,omitempty"`
	BusinessDate time.Time        `json:"business_date"`
}
