package service

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wicaksono/loan-servicing/internal/domain"
	customError "github.com/wicaksono/loan-servicing/pkg/errors"
)

func fullPaymentOrder() []domain.AllocationOrderEntry {
	entries := make([]domain.AllocationOrderEntry, 0, len(domain.AllocationTypes))
	for idx, allocType := range domain.AllocationTypes {
		entries = append(entries, domain.AllocationOrderEntry{
			PaymentAllocationRule: string(allocType),
			Order:                 idx + 1,
		})
	}
	return entries
}

func fullCreditOrder() []domain.CreditAllocationOrderEntry {
	entries := make([]domain.CreditAllocationOrderEntry, 0, len(domain.CreditAllocationTypes))
	for idx, allocType := range domain.CreditAllocationTypes {
		entries = append(entries, domain.CreditAllocationOrderEntry{
			CreditAllocationRule: string(allocType),
			Order:                idx + 1,
		})
	}
	return entries
}

func TestValidateAdvancedRuleFromWireJSON(t *testing.T) {
	orderJSON := ""
	for idx, allocType := range domain.AllocationTypes {
		if idx > 0 {
			orderJSON += ","
		}
		orderJSON += fmt.Sprintf(`{"paymentAllocationRule":%q,"order":%d}`, allocType, idx+1)
	}
	payload := fmt.Sprintf(`{
		"transactionProcessingStrategyCode": %q,
		"paymentAllocation": [{
			"transactionType": "DEFAULT",
			"futureInstallmentAllocationRule": "NEXT_INSTALLMENT",
			"paymentAllocationOrder": [%s]
		}]
	}`, domain.StrategyAdvanced, orderJSON)

	var config domain.AllocationConfiguration
	require.NoError(t, json.Unmarshal([]byte(payload), &config))

	rules, err := NewAllocationValidator().ValidateAndResolve(config)
	require.NoError(t, err)
	require.NotNil(t, rules)
	require.Len(t, rules.Payment, 1)

	rule := rules.Payment[domain.PaymentTxDefault]
	assert.Equal(t, domain.AllocationTypes, rule.AllocationTypes)
	assert.Equal(t, domain.FutureNextInstallment, rule.FutureRule)

	// The same definition under a different strategy yields no rules but
	// still reports the violation.
	config.TransactionProcessingStrategy = string(domain.StrategyLegacy)
	rules, err = NewAllocationValidator().ValidateAndResolve(config)
	assert.Nil(t, rules)
	require.Error(t, err)
	var violations *customError.Violations
	require.ErrorAs(t, err, &violations)
	require.Len(t, violations.Items, 1)
	assert.Equal(t, customError.ErrCodeWrongStrategy, violations.Items[0].Code)
}

func TestValidateOrderPermutation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func([]domain.AllocationOrderEntry) []domain.AllocationOrderEntry
		wantCode string
	}{
		{
			name: "Success - any permutation passes",
			mutate: func(entries []domain.AllocationOrderEntry) []domain.AllocationOrderEntry {
				// Reverse the order values.
				n := len(entries)
				for idx := range entries {
					entries[idx].Order = n - idx
				}
				return entries
			},
		},
		{
			name: "Failure - duplicate order value",
			mutate: func(entries []domain.AllocationOrderEntry) []domain.AllocationOrderEntry {
				entries[3].Order = 2
				return entries
			},
			wantCode: customError.ErrCodeOrderNotPermutation,
		},
		{
			name: "Failure - order out of range",
			mutate: func(entries []domain.AllocationOrderEntry) []domain.AllocationOrderEntry {
				entries[0].Order = 13
				return entries
			},
			wantCode: customError.ErrCodeOrderNotPermutation,
		},
		{
			name: "Failure - missing allocation type",
			mutate: func(entries []domain.AllocationOrderEntry) []domain.AllocationOrderEntry {
				return entries[:11]
			},
			wantCode: customError.ErrCodeOrderNotPermutation,
		},
		{
			name: "Failure - duplicated allocation type",
			mutate: func(entries []domain.AllocationOrderEntry) []domain.AllocationOrderEntry {
				entries[1].PaymentAllocationRule = entries[0].PaymentAllocationRule
				return entries
			},
			wantCode: customError.ErrCodeDuplicateAllocation,
		},
		{
			name: "Failure - unknown allocation type",
			mutate: func(entries []domain.AllocationOrderEntry) []domain.AllocationOrderEntry {
				entries[5].PaymentAllocationRule = "DUE_VAT"
				return entries
			},
			wantCode: customError.ErrCodeUnknownAllocationType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := domain.AllocationConfiguration{
				TransactionProcessingStrategy: string(domain.StrategyAdvanced),
				PaymentAllocation: []domain.PaymentAllocationDefinition{{
					TransactionType:                 "DEFAULT",
					FutureInstallmentAllocationRule: "NEXT_INSTALLMENT",
					PaymentAllocationOrder:          tt.mutate(fullPaymentOrder()),
				}},
			}

			rules, err := NewAllocationValidator().ValidateAndResolve(config)

			if tt.wantCode == "" {
				require.NoError(t, err)
				require.NotNil(t, rules)
				return
			}
			require.Error(t, err)
			assert.Nil(t, rules)
			var violations *customError.Violations
			require.ErrorAs(t, err, &violations)
			found := false
			for _, item := range violations.Items {
				if item.Code == tt.wantCode {
					found = true
				}
			}
			assert.True(t, found, "expected violation code %s in %v", tt.wantCode, violations.Items)
		})
	}
}

func TestValidateDuplicateChargebackRules(t *testing.T) {
	config := domain.AllocationConfiguration{
		TransactionProcessingStrategy: string(domain.StrategyAdvanced),
		CreditAllocation: []domain.CreditAllocationDefinition{
			{TransactionType: "CHARGEBACK", CreditAllocationOrder: fullCreditOrder()},
			{TransactionType: "CHARGEBACK", CreditAllocationOrder: fullCreditOrder()},
		},
	}

	rules, err := NewAllocationValidator().ValidateAndResolve(config)

	assert.Nil(t, rules)
	require.Error(t, err)
	var violations *customError.Violations
	require.ErrorAs(t, err, &violations)
	require.Len(t, violations.Items, 1)
	assert.Equal(t, customError.ErrCodeDuplicateTransaction, violations.Items[0].Code)
}

func TestValidateAccumulatesAllViolations(t *testing.T) {
	badOrder := fullPaymentOrder()
	badOrder[0].Order = 99
	badOrder[4].PaymentAllocationRule = "DUE_VAT"

	config := domain.AllocationConfiguration{
		TransactionProcessingStrategy: string(domain.StrategyAdvanced),
		PaymentAllocation: []domain.PaymentAllocationDefinition{{
			TransactionType:                 "REPAYMENT",
			FutureInstallmentAllocationRule: "SOMEDAY",
			PaymentAllocationOrder:          badOrder,
		}},
	}

	rules, err := NewAllocationValidator().ValidateAndResolve(config)

	assert.Nil(t, rules)
	require.Error(t, err)
	var violations *customError.Violations
	require.ErrorAs(t, err, &violations)
	// Every problem is reported in one pass.
	assert.GreaterOrEqual(t, len(violations.Items), 3)
}

func advancedResolver(t *testing.T, futureRule string) *PaymentAllocationResolver {
	t.Helper()
	config := domain.AllocationConfiguration{
		TransactionProcessingStrategy: string(domain.StrategyAdvanced),
		PaymentAllocation: []domain.PaymentAllocationDefinition{{
			TransactionType:                 "DEFAULT",
			FutureInstallmentAllocationRule: futureRule,
			PaymentAllocationOrder:          fullPaymentOrder(),
		}},
		CreditAllocation: []domain.CreditAllocationDefinition{
			{TransactionType: "CHARGEBACK", CreditAllocationOrder: fullCreditOrder()},
		},
	}
	rules, err := NewAllocationValidator().ValidateAndResolve(config)
	require.NoError(t, err)
	return NewPaymentAllocationResolver(domain.StrategyAdvanced, rules)
}

func dueInstallment(number int, due time.Time, principal, interest, fee, penalty int64) domain.Installment {
	return domain.Installment{
		Number:    number,
		DueDate:   due,
		Principal: domain.ComponentAmounts{Due: decimal.NewFromInt(principal)},
		Interest:  domain.ComponentAmounts{Due: decimal.NewFromInt(interest)},
		Fee:       domain.ComponentAmounts{Due: decimal.NewFromInt(fee)},
		Penalty:   domain.ComponentAmounts{Due: decimal.NewFromInt(penalty)},
	}
}

func pointers(installments []domain.Installment) []*domain.Installment {
	out := make([]*domain.Installment, 0, len(installments))
	for idx := range installments {
		out = append(out, &installments[idx])
	}
	return out
}

func TestAllocatePastDueOrder(t *testing.T) {
	resolver := advancedResolver(t, "NEXT_INSTALLMENT")
	businessDate := date(2025, time.June, 10)

	installments := []domain.Installment{
		dueInstallment(1, date(2025, time.June, 1), 100, 10, 5, 20),
		dueInstallment(2, date(2025, time.July, 1), 100, 10, 0, 0),
	}

	result, err := resolver.Allocate(pointers(installments), decimal.NewFromInt(30), domain.PaymentTxRepayment, businessDate)
	require.NoError(t, err)

	// Default order starts with PAST_DUE_PENALTY, then PAST_DUE_FEE, then
	// PAST_DUE_PRINCIPAL takes what is left.
	require.Len(t, result.Deltas, 3)
	assert.Equal(t, domain.ComponentPenalty, result.Deltas[0].Component)
	assert.True(t, result.Deltas[0].Amount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, domain.ComponentFee, result.Deltas[1].Component)
	assert.True(t, result.Deltas[1].Amount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, domain.ComponentPrincipal, result.Deltas[2].Component)
	assert.True(t, result.Deltas[2].Amount.Equal(decimal.NewFromInt(5)))
	assert.True(t, result.Overpayment.IsZero())

	// The input installments are untouched.
	assert.True(t, installments[0].Penalty.Paid.IsZero())
}

func TestAllocateContinuesToNextInstallment(t *testing.T) {
	resolver := advancedResolver(t, "NEXT_INSTALLMENT")
	businessDate := date(2025, time.June, 10)

	installments := []domain.Installment{
		dueInstallment(1, date(2025, time.June, 1), 50, 0, 0, 0),
		dueInstallment(2, date(2025, time.July, 1), 100, 10, 0, 0),
		dueInstallment(3, date(2025, time.August, 1), 100, 10, 0, 0),
	}

	result, err := resolver.Allocate(pointers(installments), decimal.NewFromInt(120), domain.PaymentTxRepayment, businessDate)
	require.NoError(t, err)

	byInstallment := map[int]decimal.Decimal{}
	for _, delta := range result.Deltas {
		byInstallment[delta.InstallmentNumber] = byInstallment[delta.InstallmentNumber].Add(delta.Amount)
	}
	assert.True(t, byInstallment[1].Equal(decimal.NewFromInt(50)))
	assert.True(t, byInstallment[2].Equal(decimal.NewFromInt(70)))
	assert.True(t, result.Overpayment.IsZero())
}

func TestAllocateLastInstallmentRule(t *testing.T) {
	resolver := advancedResolver(t, "LAST_INSTALLMENT")
	businessDate := date(2025, time.June, 10)

	installments := []domain.Installment{
		dueInstallment(1, date(2025, time.June, 1), 50, 0, 0, 0),
		dueInstallment(2, date(2025, time.July, 1), 100, 0, 0, 0),
		dueInstallment(3, date(2025, time.August, 1), 100, 0, 0, 0),
	}

	result, err := resolver.Allocate(pointers(installments), decimal.NewFromInt(80), domain.PaymentTxRepayment, businessDate)
	require.NoError(t, err)

	byInstallment := map[int]decimal.Decimal{}
	for _, delta := range result.Deltas {
		byInstallment[delta.InstallmentNumber] = byInstallment[delta.InstallmentNumber].Add(delta.Amount)
	}
	// Residual after settling period 1 jumps to the last period, skipping 2.
	assert.True(t, byInstallment[1].Equal(decimal.NewFromInt(50)))
	assert.True(t, byInstallment[2].IsZero())
	assert.True(t, byInstallment[3].Equal(decimal.NewFromInt(30)))
}

func TestAllocateStopRuleProducesOverpayment(t *testing.T) {
	resolver := advancedResolver(t, "NONE")
	businessDate := date(2025, time.June, 10)

	installments := []domain.Installment{
		dueInstallment(1, date(2025, time.June, 1), 50, 0, 0, 0),
		dueInstallment(2, date(2025, time.July, 1), 100, 0, 0, 0),
	}

	result, err := resolver.Allocate(pointers(installments), decimal.NewFromInt(80), domain.PaymentTxRepayment, businessDate)
	require.NoError(t, err)

	// Settle period 1, stop, residual becomes overpayment credit.
	assert.True(t, result.Overpayment.Equal(decimal.NewFromInt(30)))
}

func TestAllocateLegacyStrategy(t *testing.T) {
	resolver := NewPaymentAllocationResolver(domain.StrategyLegacy, nil)
	businessDate := date(2025, time.June, 10)

	installments := []domain.Installment{
		dueInstallment(1, date(2025, time.June, 1), 100, 10, 5, 20),
	}

	result, err := resolver.Allocate(pointers(installments), decimal.NewFromInt(105), domain.PaymentTxRepayment, businessDate)
	require.NoError(t, err)

	// Legacy priority: principal before interest before fee before penalty.
	require.GreaterOrEqual(t, len(result.Deltas), 2)
	assert.Equal(t, domain.ComponentPrincipal, result.Deltas[0].Component)
	assert.True(t, result.Deltas[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, domain.ComponentInterest, result.Deltas[1].Component)
	assert.True(t, result.Deltas[1].Amount.Equal(decimal.NewFromInt(5)))
}

func TestAllocateUnresolvableTransactionType(t *testing.T) {
	config := domain.AllocationConfiguration{
		TransactionProcessingStrategy: string(domain.StrategyAdvanced),
		PaymentAllocation: []domain.PaymentAllocationDefinition{{
			TransactionType:                 "DOWN_PAYMENT",
			FutureInstallmentAllocationRule: "NEXT_INSTALLMENT",
			PaymentAllocationOrder:          fullPaymentOrder(),
		}},
	}
	rules, err := NewAllocationValidator().ValidateAndResolve(config)
	require.NoError(t, err)
	resolver := NewPaymentAllocationResolver(domain.StrategyAdvanced, rules)

	installments := []domain.Installment{
		dueInstallment(1, date(2025, time.June, 1), 100, 0, 0, 0),
	}

	result, err := resolver.Allocate(pointers(installments), decimal.NewFromInt(10), domain.PaymentTxRepayment, date(2025, time.June, 10))

	assert.Nil(t, result)
	require.Error(t, err)
	var bizErr *customError.BusinessError
	require.ErrorAs(t, err, &bizErr)
	assert.Equal(t, customError.ErrCodeUnresolvableTarget, bizErr.Code)
}

func TestAllocateCreditNonPositiveAmount(t *testing.T) {
	resolver := advancedResolver(t, "NEXT_INSTALLMENT")

	paid := dueInstallment(1, date(2025, time.May, 1), 100, 10, 0, 0)
	paid.Principal.Paid = decimal.NewFromInt(100)
	installments := []domain.Installment{paid}

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-25)} {
		result, err := resolver.AllocateCredit(pointers(installments), amount, domain.CreditTxChargeback)
		require.NoError(t, err)
		assert.Empty(t, result.Deltas)
		assert.True(t, result.Overpayment.IsZero())
	}
}

func TestAllocateCreditChargeback(t *testing.T) {
	resolver := advancedResolver(t, "NEXT_INSTALLMENT")

	paid := dueInstallment(1, date(2025, time.May, 1), 100, 10, 0, 0)
	paid.Principal.Paid = decimal.NewFromInt(100)
	paid.Interest.Paid = decimal.NewFromInt(10)
	installments := []domain.Installment{paid}

	result, err := resolver.AllocateCredit(pointers(installments), decimal.NewFromInt(60), domain.CreditTxChargeback)
	require.NoError(t, err)

	// Credit order for CHARGEBACK starts with penalty, then fee, then
	// principal; only principal has paid amounts here.
	require.Len(t, result.Deltas, 1)
	assert.Equal(t, domain.ComponentPrincipal, result.Deltas[0].Component)
	assert.True(t, result.Deltas[0].Amount.Equal(decimal.NewFromInt(-60)))
	assert.True(t, result.Overpayment.IsZero())
}
