package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wicaksono/loan-servicing/internal/domain"
	customError "github.com/wicaksono/loan-servicing/pkg/errors"
)

func threePeriodSchedule(t *testing.T) []domain.Installment {
	t.Helper()
	generator := NewScheduleGenerator()
	model, err := generator.Generate(GenerateInput{
		LoanID:            "LOAN-R1",
		Principal:         decimal.NewFromInt(3000),
		AnnualNominalRate: decimal.NewFromFloat(0.12),
		TermPeriods:       3,
		Frequency:         domain.FrequencyMonthly,
		DisbursementDate:  date(2025, time.January, 1),
		Monetary:          testPolicy(),
		Method:            domain.InterestDecliningBalance,
	})
	require.NoError(t, err)
	return model.Installments
}

func approvedRequest(t *testing.T, effective int, term int) domain.RescheduleRequest {
	t.Helper()
	req := domain.RescheduleRequest{
		ID:                   uuid.New(),
		LoanID:               "LOAN-R1",
		Status:               domain.RescheduleStatusSubmitted,
		EffectiveInstallment: effective,
		EffectiveDate:        date(2025, time.February, 1),
		RevisedTermPeriods:   term,
		RevisedAnnualRate:    decimal.NewFromFloat(0.08),
		SubmittedOn:          date(2025, time.January, 20),
	}
	require.NoError(t, ApproveRequest(&req, date(2025, time.January, 25)))
	return req
}

func TestRequestStateMachine(t *testing.T) {
	req := domain.RescheduleRequest{ID: uuid.New(), Status: domain.RescheduleStatusSubmitted}

	require.NoError(t, ApproveRequest(&req, date(2025, time.January, 25)))
	assert.Equal(t, domain.RescheduleStatusApproved, req.Status)
	require.NotNil(t, req.ResolvedOn)

	// Approved requests are immutable.
	err := ApproveRequest(&req, date(2025, time.January, 26))
	require.Error(t, err)
	err = RejectRequest(&req, date(2025, time.January, 26))
	require.Error(t, err)
	var bizErr *customError.BusinessError
	require.ErrorAs(t, err, &bizErr)
	assert.Equal(t, customError.ErrCodeRescheduleState, bizErr.Code)

	rejected := domain.RescheduleRequest{ID: uuid.New(), Status: domain.RescheduleStatusSubmitted}
	require.NoError(t, RejectRequest(&rejected, date(2025, time.January, 25)))
	assert.Equal(t, domain.RescheduleStatusRejected, rejected.Status)
}

func TestRescheduleFromSecondPeriod(t *testing.T) {
	engine := NewRescheduleEngine(NewScheduleGenerator())
	existing := threePeriodSchedule(t)
	priorTotals := domain.ComputeTotals(existing)

	model, err := engine.Reschedule(RescheduleInput{
		Existing:  existing,
		Request:   approvedRequest(t, 2, 2),
		Method:    domain.InterestDecliningBalance,
		Frequency: domain.FrequencyMonthly,
		Monetary:  testPolicy(),
		Now:       date(2025, time.January, 25),
	})

	require.NoError(t, err)
	require.Len(t, model.NewPeriods, 3)

	// Period 1 is preserved unchanged.
	assert.False(t, model.NewPeriods[0].IsNew)
	assert.Equal(t, existing[0].DueDate, model.NewPeriods[0].DueDate)
	assert.True(t, model.NewPeriods[0].Principal.Due.Equal(existing[0].Principal.Due))

	// Periods 2 and 3 are regenerated and linked to their originals.
	assert.True(t, model.NewPeriods[1].IsNew)
	assert.True(t, model.NewPeriods[2].IsNew)
	assert.Equal(t, 2, model.NewPeriods[1].RescheduledFrom)
	assert.Equal(t, 3, model.NewPeriods[2].RescheduledFrom)
	assert.Equal(t, 2, model.NewPeriods[1].Number)
	assert.Equal(t, 3, model.NewPeriods[2].Number)

	// Total principal disbursed is invariant across reschedule.
	assert.True(t, model.Totals.PrincipalDisbursed.Equal(priorTotals.PrincipalDisbursed))

	// The prior installment set is snapshotted, keyed by the request.
	assert.Len(t, model.OldPeriodsSnapshot.Installments, 3)
	assert.Equal(t, "LOAN-R1", model.OldPeriodsSnapshot.LoanID)
}

func TestRescheduleTermExtension(t *testing.T) {
	engine := NewRescheduleEngine(NewScheduleGenerator())
	existing := threePeriodSchedule(t)

	model, err := engine.Reschedule(RescheduleInput{
		Existing:  existing,
		Request:   approvedRequest(t, 2, 4),
		Method:    domain.InterestDecliningBalance,
		Frequency: domain.FrequencyMonthly,
		Monetary:  testPolicy(),
		Now:       date(2025, time.January, 25),
	})

	require.NoError(t, err)
	require.Len(t, model.NewPeriods, 5)

	// Extension periods beyond the original schedule carry no back-link.
	assert.Equal(t, 2, model.NewPeriods[1].RescheduledFrom)
	assert.Equal(t, 3, model.NewPeriods[2].RescheduledFrom)
	assert.Equal(t, 0, model.NewPeriods[3].RescheduledFrom)
	assert.Equal(t, 0, model.NewPeriods[4].RescheduledFrom)

	priorTotals := domain.ComputeTotals(existing)
	assert.True(t, model.Totals.PrincipalDisbursed.Equal(priorTotals.PrincipalDisbursed))
}

func TestRescheduleRejectsBadInput(t *testing.T) {
	engine := NewRescheduleEngine(NewScheduleGenerator())
	existing := threePeriodSchedule(t)

	tests := []struct {
		name    string
		input   RescheduleInput
		errCode string
	}{
		{
			name: "Failure - pending request",
			input: RescheduleInput{
				Existing: existing,
				Request: domain.RescheduleRequest{
					ID:                   uuid.New(),
					Status:               domain.RescheduleStatusSubmitted,
					EffectiveInstallment: 2,
					RevisedTermPeriods:   2,
				},
				Method:    domain.InterestDecliningBalance,
				Frequency: domain.FrequencyMonthly,
				Monetary:  testPolicy(),
			},
			errCode: customError.ErrCodeRescheduleState,
		},
		{
			name: "Failure - empty schedule",
			input: RescheduleInput{
				Existing:  nil,
				Request:   approvedRequest(t, 1, 2),
				Method:    domain.InterestDecliningBalance,
				Frequency: domain.FrequencyMonthly,
				Monetary:  testPolicy(),
			},
			errCode: customError.ErrCodeEmptyInstallments,
		},
		{
			name: "Failure - effective point outside schedule",
			input: RescheduleInput{
				Existing:  existing,
				Request:   approvedRequest(t, 9, 2),
				Method:    domain.InterestDecliningBalance,
				Frequency: domain.FrequencyMonthly,
				Monetary:  testPolicy(),
			},
			errCode: customError.ErrCodeRescheduleState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := engine.Reschedule(tt.input)

			assert.Nil(t, model)
			require.Error(t, err)
			var bizErr *customError.BusinessError
			require.ErrorAs(t, err, &bizErr)
			assert.Equal(t, tt.errCode, bizErr.Code)
		})
	}
}
