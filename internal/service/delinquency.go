package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wicaksono/loan-servicing/internal/domain"
)

// ClassifyInput is the full state the classifier reads: the aggregate, the
// immutable configuration, the currently active tags, and the business date.
// Nothing is read from ambient state.
type ClassifyInput struct {
	Loan         *domain.Loan
	Product      domain.ProductDetail
	Bucket       domain.DelinquencyBucket
	Pauses       []domain.PausePeriod
	BusinessDate time.Time
	// ActiveLoanTag is the currently open loan-level tag history entry, nil
	// when the loan is currently classified CURRENT.
	ActiveLoanTag *domain.LoanDelinquencyTagHistory
	// ActiveInstallmentTags maps installment number to its open entry.
	ActiveInstallmentTags map[int]*domain.LoanDelinquencyTagHistory
}

// ClassifyOutput carries the derived snapshot plus the tag-history changes
// and notifications the caller must persist and publish. Re-running with
// identical inputs yields empty change sets.
type ClassifyOutput struct {
	Snapshot   domain.LoanDelinquencySnapshot
	ClosedTags []domain.LoanDelinquencyTagHistory
	OpenedTags []domain.LoanDelinquencyTagHistory
	Events     []domain.DelinquencyRangeChanged
}

// DelinquencyClassifier computes aging state for loans and installments. It
// never mutates installments; it only derives collection data and tag-history
// transitions.
type DelinquencyClassifier struct{}

func NewDelinquencyClassifier() *DelinquencyClassifier {
	return &DelinquencyClassifier{}
}

// Classify runs the loan-level computation and, when the product enables it,
// the per-installment computation as well.
func (c *DelinquencyClassifier) Classify(input ClassifyInput) *ClassifyOutput {
	out := &ClassifyOutput{}
	out.Snapshot.BusinessDate = input.BusinessDate

	loanData := c.classifyLoan(input)
	out.Snapshot.Loan = loanData
	c.transition(input, loanData.Classification, 0, input.ActiveLoanTag, out)

	if input.Product.InstallmentLevelDelinquency {
		for _, inst := range input.Loan.InstallmentsByDueDate() {
			instData := c.classifyInstallment(input, inst)
			out.Snapshot.Installments = append(out.Snapshot.Installments, instData)
			var active *domain.LoanDelinquencyTagHistory
			if input.ActiveInstallmentTags != nil {
				active = input.ActiveInstallmentTags[inst.Number]
			}
			c.transition(input, instData.Classification, inst.Number, active, out)
		}
	}
	return out
}

func (c *DelinquencyClassifier) classifyLoan(input ClassifyInput) domain.CollectionData {
	data := domain.CollectionData{
		LoanID:           input.Loan.ID,
		Classification:   domain.RangeCurrent,
		PastDuePrincipal: decimal.Zero,
		PastDueInterest:  decimal.Zero,
		PastDueFee:       decimal.Zero,
		PastDuePenalty:   decimal.Zero,
	}

	overdueSince := c.overdueSinceForLoan(input.Loan, input.BusinessDate)
	if overdueSince == nil {
		return data
	}
	data.DelinquentDate = overdueSince
	data.DelinquentDays = c.delinquentDays(*overdueSince, input)

	for _, inst := range input.Loan.InstallmentsByDueDate() {
		if !inst.IsOverdue(input.BusinessDate) {
			continue
		}
		data.PastDuePrincipal = data.PastDuePrincipal.Add(inst.Principal.Outstanding())
		data.PastDueInterest = data.PastDueInterest.Add(inst.Interest.Outstanding())
		data.PastDueFee = data.PastDueFee.Add(inst.Fee.Outstanding())
		data.PastDuePenalty = data.PastDuePenalty.Add(inst.Penalty.Outstanding())
	}

	if resolved := input.Bucket.RangeFor(data.DelinquentDays); resolved != nil {
		data.Classification = resolved.Classification
	}
	return data
}

func (c *DelinquencyClassifier) classifyInstallment(input ClassifyInput, inst *domain.Installment) domain.CollectionData {
	data := domain.CollectionData{
		LoanID:            input.Loan.ID,
		InstallmentNumber: inst.Number,
		Classification:    domain.RangeCurrent,
		PastDuePrincipal:  decimal.Zero,
		PastDueInterest:   decimal.Zero,
		PastDueFee:        decimal.Zero,
		PastDuePenalty:    decimal.Zero,
	}

	overdueSince := c.overdueSinceForInstallment(input.Loan, inst, input.BusinessDate)
	if overdueSince == nil {
		return data
	}
	data.DelinquentDate = overdueSince
	data.DelinquentDays = c.delinquentDays(*overdueSince, input)
	data.PastDuePrincipal = inst.Principal.Outstanding()
	data.PastDueInterest = inst.Interest.Outstanding()
	data.PastDueFee = inst.Fee.Outstanding()
	data.PastDuePenalty = inst.Penalty.Outstanding()

	if resolved := input.Bucket.RangeFor(data.DelinquentDays); resolved != nil {
		data.Classification = resolved.Classification
	}
	return data
}

// overdueSinceForLoan finds the due date of the earliest installment with an
// outstanding obligation. When that installment had been fully repaid before
// a chargeback reopened it, the chargeback's transaction date is used
// instead; the loan-level path considers the latest chargeback anywhere on
// the loan dated after the installment fell due.
func (c *DelinquencyClassifier) overdueSinceForLoan(loan *domain.Loan, businessDate time.Time) *time.Time {
	var anchor *domain.Installment
	for _, inst := range loan.InstallmentsByDueDate() {
		if inst.IsOverdue(businessDate) {
			anchor = inst
			break
		}
	}
	if anchor == nil {
		return nil
	}

	since := anchor.DueDate
	if anchor.ObligationsMetOn != nil {
		for _, chargeback := range loan.Chargebacks() {
			if chargeback.Date.After(anchor.DueDate) && chargeback.Date.After(since) {
				since = chargeback.Date
			}
		}
	}
	return &since
}

// overdueSinceForInstallment is the installment-level variant: the chargeback
// override considers only chargebacks mapped to this installment's number.
// The two paths intentionally stay separate.
func (c *DelinquencyClassifier) overdueSinceForInstallment(loan *domain.Loan, inst *domain.Installment, businessDate time.Time) *time.Time {
	if !inst.IsOverdue(businessDate) {
		return nil
	}

	since := inst.DueDate
	if inst.ObligationsMetOn != nil {
		for _, mapping := range loan.MappingsForInstallment(inst.Number) {
			tx := loan.TransactionByID(mapping.TransactionID)
			if tx == nil || !tx.IsChargeback() {
				continue
			}
			if tx.Date.After(inst.DueDate) && tx.Date.After(since) {
				since = tx.Date
			}
		}
	}
	return &since
}

// delinquentDays = max(0, businessDate - overdueSince - grace - pausedDays).
func (c *DelinquencyClassifier) delinquentDays(overdueSince time.Time, input ClassifyInput) int {
	overdueDays := daysBetween(overdueSince, input.BusinessDate)
	paused := 0
	for _, pause := range input.Pauses {
		paused += pause.OverlapDays(overdueSince, input.BusinessDate)
	}
	days := overdueDays - input.Product.GraceOnArrearsAgeing - paused
	if days < 0 {
		return 0
	}
	return days
}

// transition compares the resolved classification with the active tag entry
// and, only when they differ, closes the active entry, opens a new one (never
// for CURRENT), and emits exactly one notification.
func (c *DelinquencyClassifier) transition(input ClassifyInput, resolved string, installmentNumber int, active *domain.LoanDelinquencyTagHistory, out *ClassifyOutput) {
	current := domain.RangeCurrent
	if active != nil && active.IsActive() {
		current = active.Classification
	}
	if resolved == current {
		return
	}

	if active != nil && active.IsActive() {
		closed := *active
		lifted := input.BusinessDate
		closed.LiftedOnDate = &lifted
		out.ClosedTags = append(out.ClosedTags, closed)
	}
	if resolved != domain.RangeCurrent {
		out.OpenedTags = append(out.OpenedTags, domain.LoanDelinquencyTagHistory{
			ID:                uuid.New(),
			LoanID:            input.Loan.ID,
			InstallmentNumber: installmentNumber,
			Classification:    resolved,
			AddedOnDate:       input.BusinessDate,
		})
	}

	previous := ""
	if current != domain.RangeCurrent {
		previous = current
	}
	newRange := ""
	if resolved != domain.RangeCurrent {
		newRange = resolved
	}
	out.Events = append(out.Events, domain.DelinquencyRangeChanged{
		LoanID:            input.Loan.ID,
		InstallmentNumber: installmentNumber,
		PreviousRange:     previous,
		NewRange:          newRange,
		AsOfDate:          input.BusinessDate,
	})
}

func daysBetween(from, to time.Time) int {
	return int(truncateDay(to).Sub(truncateDay(from)).Hours() / 24)
}
