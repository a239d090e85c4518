package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func twoPeriodLoan() *Loan {
	return &Loan{
		ID:     "LOAN-1",
		Status: LoanStatusActive,
		Installments: []Installment{
			{
				Number:    1,
				DueDate:   day(2025, time.February, 1),
				Principal: ComponentAmounts{Due: decimal.NewFromInt(50)},
				Interest:  ComponentAmounts{Due: decimal.NewFromInt(5)},
			},
			{
				Number:    2,
				DueDate:   day(2025, time.March, 1),
				Principal: ComponentAmounts{Due: decimal.NewFromInt(50)},
				Interest:  ComponentAmounts{Due: decimal.NewFromInt(5)},
			},
		},
	}
}

func TestApplyDeltasSettlesInstallment(t *testing.T) {
	loan := twoPeriodLoan()
	businessDate := day(2025, time.February, 2)

	loan.ApplyDeltas([]InstallmentDelta{
		{InstallmentNumber: 1, Component: ComponentPrincipal, Amount: decimal.NewFromInt(50)},
		{InstallmentNumber: 1, Component: ComponentInterest, Amount: decimal.NewFromInt(5)},
	}, businessDate)

	first := loan.InstallmentByNumber(1)
	assert.True(t, first.IsFullySettled())
	assert.True(t, first.ObligationsMet)
	require.NotNil(t, first.ObligationsMetOn)
	assert.Equal(t, businessDate, *first.ObligationsMetOn)

	// The second installment is untouched.
	second := loan.InstallmentByNumber(2)
	assert.False(t, second.ObligationsMet)
	assert.True(t, second.Principal.Paid.IsZero())
}

func TestApplyDeltasReopenKeepsSettlementDate(t *testing.T) {
	loan := twoPeriodLoan()
	settledOn := day(2025, time.February, 2)
	loan.ApplyDeltas([]InstallmentDelta{
		{InstallmentNumber: 1, Component: ComponentPrincipal, Amount: decimal.NewFromInt(50)},
		{InstallmentNumber: 1, Component: ComponentInterest, Amount: decimal.NewFromInt(5)},
	}, settledOn)

	// A chargeback reclaims part of the principal later.
	loan.ApplyDeltas([]InstallmentDelta{
		{InstallmentNumber: 1, Component: ComponentPrincipal, Amount: decimal.NewFromInt(-30)},
	}, day(2025, time.February, 20))

	first := loan.InstallmentByNumber(1)
	assert.False(t, first.ObligationsMet)
	assert.True(t, first.Principal.Outstanding().Equal(decimal.NewFromInt(30)))
	// The original payoff date survives the reopening.
	require.NotNil(t, first.ObligationsMetOn)
	assert.Equal(t, settledOn, *first.ObligationsMetOn)
}

func TestInstallmentsByDueDateOrdersStably(t *testing.T) {
	loan := &Loan{
		Installments: []Installment{
			{Number: 3, DueDate: day(2025, time.March, 1)},
			{Number: 1, DueDate: day(2025, time.January, 1)},
			{Number: 2, DueDate: day(2025, time.March, 1)},
		},
	}

	ordered := loan.InstallmentsByDueDate()
	require.Len(t, ordered, 3)
	assert.Equal(t, 1, ordered[0].Number)
	// Equal due dates fall back to sequence number.
	assert.Equal(t, 2, ordered[1].Number)
	assert.Equal(t, 3, ordered[2].Number)
}

func TestComputeTotalsReconciles(t *testing.T) {
	loan := twoPeriodLoan()
	loan.Installments[0].Principal.Paid = decimal.NewFromInt(50)
	loan.Installments[0].Interest.Paid = decimal.NewFromInt(5)

	totals := ComputeTotals(loan.Installments)

	assert.True(t, totals.PrincipalDisbursed.Equal(decimal.NewFromInt(100)))
	assert.True(t, totals.InterestCharged.Equal(decimal.NewFromInt(10)))
	assert.True(t, totals.Repaid.Equal(decimal.NewFromInt(55)))
	assert.True(t, totals.Outstanding.Equal(decimal.NewFromInt(55)))
}

func TestChargebackLookups(t *testing.T) {
	chargebackID := uuid.New()
	reversedID := uuid.New()
	loan := twoPeriodLoan()
	loan.Transactions = []LoanTransaction{
		{ID: uuid.New(), Kind: TransactionRepayment, Amount: decimal.NewFromInt(55)},
		{ID: chargebackID, Kind: TransactionChargeback, Amount: decimal.NewFromInt(30)},
		{ID: reversedID, Kind: TransactionChargeback, Amount: decimal.NewFromInt(10), Reversed: true},
	}
	loan.Mappings = []TransactionMapping{
		{TransactionID: chargebackID, InstallmentNumber: 1, Component: ComponentPrincipal, Amount: decimal.NewFromInt(30)},
	}

	// Reversed chargebacks are excluded.
	chargebacks := loan.Chargebacks()
	require.Len(t, chargebacks, 1)
	assert.Equal(t, chargebackID, chargebacks[0].ID)

	require.NotNil(t, loan.TransactionByID(chargebackID))
	assert.Nil(t, loan.TransactionByID(uuid.New()))

	mappings := loan.MappingsForInstallment(1)
	require.Len(t, mappings, 1)
	assert.Empty(t, loan.MappingsForInstallment(2))
}

func TestRescheduleRequestIsPending(t *testing.T) {
	req := RescheduleRequest{Status: RescheduleStatusSubmitted}
	assert.True(t, req.IsPending())
	req.Status = RescheduleStatusApproved
	assert.False(t, req.IsPending())
}
