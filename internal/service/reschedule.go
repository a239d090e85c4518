package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wicaksono/loan-servicing/internal/domain"
	customError "github.com/wicaksono/loan-servicing/pkg/errors"
)

// RescheduleEngine rebuilds the tail of an existing schedule from an
// effective point, preserving the head and snapshotting the prior state.
type RescheduleEngine struct {
	generator *ScheduleGenerator
}

func NewRescheduleEngine(generator *ScheduleGenerator) *RescheduleEngine {
	return &RescheduleEngine{generator: generator}
}

// ApproveRequest moves a submitted request to approved. Approved and rejected
// requests are immutable; approving anything but a pending request fails.
func ApproveRequest(req *domain.RescheduleRequest, on time.Time) error {
	if !req.IsPending() {
		return customError.NewBusinessError(customError.ErrCodeRescheduleState,
			fmt.Sprintf("reschedule request %s is %s", req.ID, req.Status), customError.ErrRequestNotPending)
	}
	req.Status = domain.RescheduleStatusApproved
	req.ResolvedOn = &on
	return nil
}

// RejectRequest moves a submitted request to rejected.
func RejectRequest(req *domain.RescheduleRequest, on time.Time) error {
	if !req.IsPending() {
		return customError.NewBusinessError(customError.ErrCodeRescheduleState,
			fmt.Sprintf("reschedule request %s is %s", req.ID, req.Status), customError.ErrRequestNotPending)
	}
	req.Status = domain.RescheduleStatusRejected
	req.ResolvedOn = &on
	return nil
}

// RescheduleInput carries everything the engine needs; the loan's monetary
// and frequency settings come from its product configuration.
type RescheduleInput struct {
	Existing  []domain.Installment
	Request   domain.RescheduleRequest
	Method    domain.InterestMethod
	Frequency domain.Frequency
	Monetary  domain.MonetaryPolicy
	Holidays  HolidayPolicy
	Now       time.Time
}

// Reschedule copies the periods strictly before the effective installment
// unchanged and regenerates the rest under the revised terms. The full prior
// installment set is snapshotted first, keyed by the request id. Total
// principal disbursed is invariant across the operation.
func (e *RescheduleEngine) Reschedule(input RescheduleInput) (*domain.LoanRescheduleModel, error) {
	req := input.Request
	if req.Status != domain.RescheduleStatusApproved {
		return nil, customError.NewBusinessError(customError.ErrCodeRescheduleState,
			fmt.Sprintf("reschedule request %s is %s, only approved requests apply", req.ID, req.Status), nil)
	}
	if len(input.Existing) == 0 {
		return nil, customError.WrapEmptyInstallments(req.LoanID)
	}
	if req.EffectiveInstallment < 1 || req.EffectiveInstallment > len(input.Existing) {
		return nil, customError.NewBusinessError(customError.ErrCodeRescheduleState,
			fmt.Sprintf("effective installment %d is outside the schedule", req.EffectiveInstallment), nil)
	}

	snapshot := domain.ScheduleHistory{
		RequestID:    req.ID,
		LoanID:       req.LoanID,
		Installments: copyInstallments(input.Existing),
		TakenAt:      input.Now,
	}

	head := make([]domain.Installment, 0, req.EffectiveInstallment-1)
	tailPrincipal := decimal.Zero
	for _, inst := range input.Existing {
		if inst.Number < req.EffectiveInstallment {
			kept := inst
			kept.IsNew = false
			head = append(head, kept)
			continue
		}
		tailPrincipal = tailPrincipal.Add(inst.Principal.Due)
	}

	anchor := req.EffectiveDate
	if len(head) > 0 && head[len(head)-1].DueDate.After(anchor) {
		anchor = head[len(head)-1].DueDate
	}

	generated, err := e.generator.Generate(GenerateInput{
		LoanID:            req.LoanID,
		Principal:         tailPrincipal,
		AnnualNominalRate: req.RevisedAnnualRate,
		TermPeriods:       req.RevisedTermPeriods,
		MoratoriumPeriods: req.MoratoriumPeriods,
		Frequency:         input.Frequency,
		DisbursementDate:  anchor,
		Monetary:          input.Monetary,
		Holidays:          input.Holidays,
		Method:            input.Method,
	})
	if err != nil {
		return nil, err
	}

	newPeriods := make([]domain.Installment, 0, len(head)+len(generated.Installments))
	newPeriods = append(newPeriods, head...)
	for idx, inst := range generated.Installments {
		inst.Number = len(head) + idx + 1
		inst.IsNew = true
		// Link regenerated periods to the originals they replace; extra
		// periods from a term extension have no original.
		original := req.EffectiveInstallment + idx
		if original <= len(input.Existing) {
			inst.RescheduledFrom = original
		}
		newPeriods = append(newPeriods, inst)
	}

	totals := domain.ComputeTotals(newPeriods)
	priorTotals := domain.ComputeTotals(input.Existing)
	if !totals.PrincipalDisbursed.Equal(priorTotals.PrincipalDisbursed) {
		return nil, customError.WrapTotalsMismatch("principal",
			priorTotals.PrincipalDisbursed.String(), totals.PrincipalDisbursed.String())
	}

	return &domain.LoanRescheduleModel{
		NewPeriods:         newPeriods,
		OldPeriodsSnapshot: snapshot,
		Totals:             totals,
	}, nil
}

func copyInstallments(installments []domain.Installment) []domain.Installment {
	out := make([]domain.Installment, len(installments))
	copy(out, installments)
	return out
}
