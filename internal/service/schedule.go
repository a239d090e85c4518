package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wicaksono/loan-servicing/internal/domain"
	customError "github.com/wicaksono/loan-servicing/pkg/errors"
)

// HolidayPolicy shifts scheduled due dates off non-working days. The policy
// is injected per call; the generator never consults a calendar of its own.
type HolidayPolicy interface {
	AdjustDueDate(date time.Time) time.Time
}

// NoShiftPolicy keeps due dates as calculated.
type NoShiftPolicy struct{}

func (NoShiftPolicy) AdjustDueDate(date time.Time) time.Time { return date }

// WeekendShiftPolicy moves Saturday and Sunday due dates forward to Monday.
type WeekendShiftPolicy struct{}

func (WeekendShiftPolicy) AdjustDueDate(date time.Time) time.Time {
	switch date.Weekday() {
	case time.Saturday:
		return date.AddDate(0, 0, 2)
	case time.Sunday:
		return date.AddDate(0, 0, 1)
	default:
		return date
	}
}

// GenerateInput carries the loan terms for schedule generation. Rounding and
// holiday behaviour are explicit inputs, never ambient state.
type GenerateInput struct {
	LoanID            string
	Principal         decimal.Decimal
	AnnualNominalRate decimal.Decimal // 0.10 means 10% per year
	TermPeriods       int
	// MoratoriumPeriods leading periods are interest-only: principal
	// repayment starts after them but interest accrues throughout.
	MoratoriumPeriods int
	Frequency         domain.Frequency
	DisbursementDate  time.Time
	Charges           []domain.Charge
	Monetary          domain.MonetaryPolicy
	Holidays          HolidayPolicy
	Method            domain.InterestMethod
}

// ScheduleGenerator produces amortization schedules. The two interest
// strategies share period/date/charge handling and differ only in how the
// principal/interest split of each period is computed.
type ScheduleGenerator struct{}

func NewScheduleGenerator() *ScheduleGenerator {
	return &ScheduleGenerator{}
}

// Generate builds the ordered installment list and its totals. Period sums
// reconcile exactly with the totals: the last period absorbs any rounding
// residue. Fails rather than returning a partially consistent schedule.
func (g *ScheduleGenerator) Generate(input GenerateInput) (*domain.LoanScheduleModel, error) {
	if input.TermPeriods <= 0 {
		return nil, customError.WrapScheduleGeneration("term periods must be positive", customError.ErrInvalidTerm)
	}
	if !input.Method.Valid() {
		return nil, customError.WrapScheduleGeneration("interest method "+string(input.Method)+" is not supported", customError.ErrUnsupportedMethod)
	}
	if input.Monetary.IsZero() {
		return nil, customError.WrapScheduleGeneration("no currency rounding policy supplied", customError.ErrMissingCurrencyPolicy)
	}
	if !input.Principal.IsPositive() {
		return nil, customError.WrapScheduleGeneration("principal must be positive", nil)
	}
	if input.MoratoriumPeriods < 0 || input.MoratoriumPeriods >= input.TermPeriods {
		return nil, customError.WrapScheduleGeneration("moratorium must be shorter than the term", customError.ErrInvalidTerm)
	}
	if input.Holidays == nil {
		input.Holidays = NoShiftPolicy{}
	}

	var splits []periodSplit
	if input.Method == domain.InterestDecliningBalance {
		splits = decliningBalanceSplits(input)
	} else {
		splits = flatSplits(input)
	}

	installments := make([]domain.Installment, 0, input.TermPeriods)
	from := input.DisbursementDate
	for idx, split := range splits {
		due := input.Holidays.AdjustDueDate(input.Frequency.Advance(input.DisbursementDate, idx+1))
		inst := domain.Installment{
			Number:    idx + 1,
			FromDate:  from,
			DueDate:   due,
			Principal: domain.ComponentAmounts{Due: split.principal},
			Interest:  domain.ComponentAmounts{Due: split.interest},
			Fee:       domain.ComponentAmounts{Due: decimal.Zero},
			Penalty:   domain.ComponentAmounts{Due: decimal.Zero},
		}
		installments = append(installments, inst)
		from = due
	}

	applyCharges(installments, input.Charges, input.Monetary)

	model := &domain.LoanScheduleModel{
		Currency:     input.Monetary.CurrencyCode,
		Installments: installments,
		Totals:       domain.ComputeTotals(installments),
	}

	// The residue absorption above makes this hold by construction; a
	// mismatch means a bug, and a broken schedule must not escape.
	if !model.Totals.PrincipalDisbursed.Equal(input.Principal) {
		return nil, customError.WrapTotalsMismatch("principal", input.Principal.String(), model.Totals.PrincipalDisbursed.String())
	}
	return model, nil
}

type periodSplit struct {
	principal decimal.Decimal
	interest  decimal.Decimal
}

var one = decimal.NewFromInt(1)

// annuityPayment computes P * r * (1+r)^n / ((1+r)^n - 1).
func annuityPayment(principal decimal.Decimal, rate decimal.Decimal, periods int) decimal.Decimal {
	if rate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(periods)))
	}
	base := one.Add(rate).Pow(decimal.NewFromInt(int64(periods)))
	return principal.Mul(rate).Mul(base).Div(base.Sub(one))
}

// decliningBalanceSplits charges each period's interest on the remaining
// balance; the equal installment amount comes from the annuity formula. The
// final period repays the exact remaining balance so principal reconciles.
func decliningBalanceSplits(input GenerateInput) []periodSplit {
	n := input.TermPeriods
	g := input.MoratoriumPeriods
	rate := input.AnnualNominalRate.Div(decimal.NewFromInt(int64(input.Frequency.PeriodsPerYear())))
	payment := input.Monetary.Round(annuityPayment(input.Principal, rate, n-g))

	splits := make([]periodSplit, 0, n)
	balance := input.Principal
	for period := 1; period <= n; period++ {
		interest := input.Monetary.Round(balance.Mul(rate))
		if period <= g {
			splits = append(splits, periodSplit{principal: decimal.Zero, interest: interest})
			continue
		}
		if period == n {
			splits = append(splits, periodSplit{principal: balance, interest: interest})
			break
		}
		principal := payment.Sub(interest)
		if principal.GreaterThan(balance) {
			principal = balance
		}
		balance = balance.Sub(principal)
		splits = append(splits, periodSplit{principal: principal, interest: interest})
	}
	return splits
}

// flatSplits pre-apportions interest evenly over the term, independent of the
// remaining balance. Last period absorbs the rounding residue of both
// components.
func flatSplits(input GenerateInput) []periodSplit {
	n := input.TermPeriods
	g := input.MoratoriumPeriods
	periods := decimal.NewFromInt(int64(n))
	years := periods.Div(decimal.NewFromInt(int64(input.Frequency.PeriodsPerYear())))
	totalInterest := input.Monetary.Round(input.Principal.Mul(input.AnnualNominalRate).Mul(years))

	repaymentPeriods := decimal.NewFromInt(int64(n - g))
	periodPrincipal := input.Monetary.Round(input.Principal.Div(repaymentPeriods))
	periodInterest := input.Monetary.Round(totalInterest.Div(periods))

	splits := make([]periodSplit, 0, n)
	principalPaid := decimal.Zero
	interestPaid := decimal.Zero
	for period := 1; period < n; period++ {
		p := decimal.Zero
		if period > g {
			p = periodPrincipal
			principalPaid = principalPaid.Add(p)
		}
		splits = append(splits, periodSplit{principal: p, interest: periodInterest})
		interestPaid = interestPaid.Add(periodInterest)
	}
	splits = append(splits, periodSplit{
		principal: input.Principal.Sub(principalPaid),
		interest:  totalInterest.Sub(interestPaid),
	})
	return splits
}

// applyCharges places charges on the schedule: disbursement charges land on
// the first installment, per-installment charges are spread evenly with the
// last installment absorbing the rounding residue.
func applyCharges(installments []domain.Installment, charges []domain.Charge, monetary domain.MonetaryPolicy) {
	n := len(installments)
	if n == 0 {
		return
	}
	for _, charge := range charges {
		switch charge.Timing {
		case domain.ChargePerInstallment:
			per := monetary.Round(charge.Amount.Div(decimal.NewFromInt(int64(n))))
			last := charge.Amount.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))
			for idx := range installments {
				amt := per
				if idx == n-1 {
					amt = last
				}
				addCharge(&installments[idx], amt, charge.IsPenalty)
			}
		default:
			addCharge(&installments[0], charge.Amount, charge.IsPenalty)
		}
	}
}

func addCharge(inst *domain.Installment, amount decimal.Decimal, penalty bool) {
	if penalty {
		inst.Penalty.Due = inst.Penalty.Due.Add(amount)
		return
	}
	inst.Fee.Due = inst.Fee.Due.Add(amount)
}
