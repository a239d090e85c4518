package service

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/wicaksono/loan-servicing/internal/domain"
	customError "github.com/wicaksono/loan-servicing/pkg/errors"
)

// ResolvedRules is a validated allocation catalog: at most one rule per
// transaction type per side. Nil when the product runs the legacy strategy.
type ResolvedRules struct {
	Payment map[domain.PaymentAllocationTransactionType]domain.PaymentAllocationRule
	Credit  map[domain.CreditAllocationTransactionType]domain.CreditAllocationRule
}

// AllocationValidator turns the wire-form allocation configuration into
// resolved rule catalogs. Validation accumulates every violation in the
// request instead of failing on the first.
type AllocationValidator struct {
	validate *validator.Validate
}

func NewAllocationValidator() *AllocationValidator {
	return &AllocationValidator{validate: validator.New()}
}

// ValidateAndResolve validates the configuration and builds the catalogs.
// Supplying rules under any strategy other than the advanced one is itself a
// violation, and the returned rules are nil in that case.
func (v *AllocationValidator) ValidateAndResolve(config domain.AllocationConfiguration) (*ResolvedRules, error) {
	violations := &customError.Violations{}

	if err := v.validate.Struct(config); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			violations.Add(customError.ErrCodeUnknownAllocationType, "field %s failed %s validation", fieldErr.Field(), fieldErr.Tag())
		}
	}

	hasRules := len(config.PaymentAllocation) > 0 || len(config.CreditAllocation) > 0
	if domain.AllocationStrategy(config.TransactionProcessingStrategy) != domain.StrategyAdvanced {
		if hasRules {
			violations.Add(customError.ErrCodeWrongStrategy,
				"allocation rules require strategy %s, got %q", domain.StrategyAdvanced, config.TransactionProcessingStrategy)
		}
		return nil, violations.AsError()
	}

	rules := &ResolvedRules{
		Payment: make(map[domain.PaymentAllocationTransactionType]domain.PaymentAllocationRule),
		Credit:  make(map[domain.CreditAllocationTransactionType]domain.CreditAllocationRule),
	}

	for _, def := range config.PaymentAllocation {
		txType := domain.PaymentAllocationTransactionType(def.TransactionType)
		if !txType.Valid() {
			violations.Add(customError.ErrCodeUnknownAllocationType, "unknown payment transaction type %q", def.TransactionType)
			continue
		}
		if _, exists := rules.Payment[txType]; exists {
			violations.Add(customError.ErrCodeDuplicateTransaction, "transaction type %s appears in more than one payment rule", txType)
			continue
		}
		futureRule := domain.FutureInstallmentAllocationRule(def.FutureInstallmentAllocationRule)
		if !futureRule.Valid() {
			violations.Add(customError.ErrCodeUnknownAllocationType, "unknown future installment allocation rule %q", def.FutureInstallmentAllocationRule)
		}
		types := resolvePaymentOrder(txType, def.PaymentAllocationOrder, violations)
		if types == nil {
			continue
		}
		rules.Payment[txType] = domain.PaymentAllocationRule{
			TransactionType: txType,
			AllocationTypes: types,
			FutureRule:      futureRule,
		}
	}

	for _, def := range config.CreditAllocation {
		txType := domain.CreditAllocationTransactionType(def.TransactionType)
		if !txType.Valid() {
			violations.Add(customError.ErrCodeUnknownAllocationType, "unknown credit transaction type %q", def.TransactionType)
			continue
		}
		if _, exists := rules.Credit[txType]; exists {
			violations.Add(customError.ErrCodeDuplicateTransaction, "transaction type %s appears in more than one credit rule", txType)
			continue
		}
		types := resolveCreditOrder(txType, def.CreditAllocationOrder, violations)
		if types == nil {
			continue
		}
		rules.Credit[txType] = domain.CreditAllocationRule{
			TransactionType: txType,
			AllocationTypes: types,
		}
	}

	if violations.HasErrors() {
		return nil, violations
	}
	return rules, nil
}

// resolvePaymentOrder checks that the order entries are exactly a permutation
// of 1..N over distinct allocation types and returns the types sorted by
// their order value.
func resolvePaymentOrder(txType domain.PaymentAllocationTransactionType, entries []domain.AllocationOrderEntry, violations *customError.Violations) []domain.AllocationType {
	n := len(domain.AllocationTypes)
	if len(entries) != n {
		violations.Add(customError.ErrCodeOrderNotPermutation,
			"rule %s must list all %d allocation types exactly once, found %d", txType, n, len(entries))
		return nil
	}

	ok := true
	seenTypes := make(map[domain.AllocationType]bool, n)
	seenOrders := make(map[int]bool, n)
	sorted := make([]domain.AllocationOrderEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	for _, entry := range sorted {
		allocType := domain.AllocationType(entry.PaymentAllocationRule)
		if !allocType.Valid() {
			violations.Add(customError.ErrCodeUnknownAllocationType, "rule %s references unknown allocation type %q", txType, entry.PaymentAllocationRule)
			ok = false
			continue
		}
		if seenTypes[allocType] {
			violations.Add(customError.ErrCodeDuplicateAllocation, "rule %s lists allocation type %s more than once", txType, allocType)
			ok = false
		}
		seenTypes[allocType] = true
		if entry.Order < 1 || entry.Order > n {
			violations.Add(customError.ErrCodeOrderNotPermutation, "rule %s order %d is outside 1..%d", txType, entry.Order, n)
			ok = false
			continue
		}
		if seenOrders[entry.Order] {
			violations.Add(customError.ErrCodeOrderNotPermutation, "rule %s order %d is duplicated", txType, entry.Order)
			ok = false
		}
		seenOrders[entry.Order] = true
	}
	if !ok {
		return nil
	}

	types := make([]domain.AllocationType, 0, n)
	for _, entry := range sorted {
		types = append(types, domain.AllocationType(entry.PaymentAllocationRule))
	}
	return types
}

func resolveCreditOrder(txType domain.CreditAllocationTransactionType, entries []domain.CreditAllocationOrderEntry, violations *customError.Violations) []domain.CreditAllocationType {
	n := len(domain.CreditAllocationTypes)
	if len(entries) != n {
		violations.Add(customError.ErrCodeOrderNotPermutation,
			"credit rule %s must list all %d allocation types exactly once, found %d", txType, n, len(entries))
		return nil
	}

	ok := true
	seenTypes := make(map[domain.CreditAllocationType]bool, n)
	seenOrders := make(map[int]bool, n)
	sorted := make([]domain.CreditAllocationOrderEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	for _, entry := range sorted {
		allocType := domain.CreditAllocationType(entry.CreditAllocationRule)
		if !allocType.Valid() {
			violations.Add(customError.ErrCodeUnknownAllocationType, "credit rule %s references unknown allocation type %q", txType, entry.CreditAllocationRule)
			ok = false
			continue
		}
		if seenTypes[allocType] {
			violations.Add(customError.ErrCodeDuplicateAllocation, "credit rule %s lists allocation type %s more than once", txType, allocType)
			ok = false
		}
		seenTypes[allocType] = true
		if entry.Order < 1 || entry.Order > n {
			violations.Add(customError.ErrCodeOrderNotPermutation, "credit rule %s order %d is outside 1..%d", txType, entry.Order, n)
			ok = false
			continue
		}
		if seenOrders[entry.Order] {
			violations.Add(customError.ErrCodeOrderNotPermutation, "credit rule %s order %d is duplicated", txType, entry.Order)
			ok = false
		}
		seenOrders[entry.Order] = true
	}
	if !ok {
		return nil
	}

	types := make([]domain.CreditAllocationType, 0, n)
	for _, entry := range sorted {
		types = append(types, domain.CreditAllocationType(entry.CreditAllocationRule))
	}
	return types
}

// AllocationResult is the resolver's output: component deltas per installment
// plus any residual that became an overpayment credit. Inputs are never
// mutated; the caller applies the deltas.
type AllocationResult struct {
	Deltas      []domain.InstallmentDelta
	Overpayment decimal.Decimal
}

// PaymentAllocationResolver distributes incoming amounts across installment
// components under the product's allocation strategy.
type PaymentAllocationResolver struct {
	strategy domain.AllocationStrategy
	rules    *ResolvedRules
}

func NewPaymentAllocationResolver(strategy domain.AllocationStrategy, rules *ResolvedRules) *PaymentAllocationResolver {
	return &PaymentAllocationResolver{strategy: strategy, rules: rules}
}

// legacyOrder is the fixed pre-advanced priority: principal, interest, fee,
// penalty, applied to the earliest unsettled installment regardless of band.
var legacyOrder = []domain.Component{
	domain.ComponentPrincipal, domain.ComponentInterest, domain.ComponentFee, domain.ComponentPenalty,
}

// Allocate distributes amount across the installments in due-date order per
// the rule configured for the transaction type.
func (r *PaymentAllocationResolver) Allocate(
	installments []*domain.Installment,
	amount decimal.Decimal,
	txType domain.PaymentAllocationTransactionType,
	businessDate time.Time,
) (*AllocationResult, error) {
	if len(installments) == 0 {
		return nil, customError.WrapEmptyInstallments("")
	}
	if !amount.IsPositive() {
		return &AllocationResult{Overpayment: decimal.Zero}, nil
	}

	rule, err := r.ruleFor(txType)
	if err != nil {
		return nil, err
	}

	ordered := make([]*workingInstallment, 0, len(installments))
	for _, inst := range installments {
		ordered = append(ordered, newWorkingInstallment(inst))
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].inst.DueDate.Equal(ordered[j].inst.DueDate) {
			return ordered[i].inst.Number < ordered[j].inst.Number
		}
		return ordered[i].inst.DueDate.Before(ordered[j].inst.DueDate)
	})

	result := &AllocationResult{}
	remaining := amount
	idx := firstUnsettled(ordered)
	lastOnly := false

	for remaining.IsPositive() && idx >= 0 && idx < len(ordered) {
		work := ordered[idx]
		for _, allocType := range rule.AllocationTypes {
			if remaining.IsZero() {
				break
			}
			if !bandMatches(allocType, work.inst.DueDate, businessDate) {
				continue
			}
			paid := work.take(allocType.Component(), remaining)
			if paid.IsZero() {
				continue
			}
			remaining = remaining.Sub(paid)
			result.Deltas = append(result.Deltas, domain.InstallmentDelta{
				InstallmentNumber: work.inst.Number,
				Component:         allocType.Component(),
				Amount:            paid,
			})
		}

		if !remaining.IsPositive() {
			break
		}
		if !work.settled() {
			// Nothing left in this installment that the rule can reach;
			// move on rather than stall.
			idx = nextUnsettled(ordered, idx)
			continue
		}

		if lastOnly {
			break
		}
		switch rule.FutureRule {
		case domain.FutureLastInstallment:
			last := len(ordered) - 1
			if idx >= last {
				idx = -1
			} else {
				idx = last
				lastOnly = true
			}
		case domain.FutureNone:
			idx = -1
		default: // NEXT_INSTALLMENT
			idx = nextUnsettled(ordered, idx)
		}
	}

	result.Overpayment = remaining
	return result, nil
}

// AllocateCredit reverses previously-paid amounts for a credit transaction
// (for example a chargeback), producing negative deltas starting from the
// most recently due installment.
func (r *PaymentAllocationResolver) AllocateCredit(
	installments []*domain.Installment,
	amount decimal.Decimal,
	txType domain.CreditAllocationTransactionType,
) (*AllocationResult, error) {
	if len(installments) == 0 {
		return nil, customError.WrapEmptyInstallments("")
	}
	if !amount.IsPositive() {
		return &AllocationResult{Overpayment: decimal.Zero}, nil
	}

	order := creditComponentOrder(r.rules, txType)

	ordered := make([]*domain.Installment, len(installments))
	copy(ordered, installments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].DueDate.After(ordered[j].DueDate) })

	result := &AllocationResult{}
	remaining := amount
	for _, inst := range ordered {
		if !remaining.IsPositive() {
			break
		}
		for _, component := range order {
			if !remaining.IsPositive() {
				break
			}
			paid := inst.Amounts(component).Paid
			if !paid.IsPositive() {
				continue
			}
			reclaim := decimal.Min(remaining, paid)
			remaining = remaining.Sub(reclaim)
			result.Deltas = append(result.Deltas, domain.InstallmentDelta{
				InstallmentNumber: inst.Number,
				Component:         component,
				Amount:            reclaim.Neg(),
			})
		}
	}
	result.Overpayment = remaining
	return result, nil
}

func (r *PaymentAllocationResolver) ruleFor(txType domain.PaymentAllocationTransactionType) (domain.PaymentAllocationRule, error) {
	if r.strategy != domain.StrategyAdvanced || r.rules == nil {
		return legacyRule(), nil
	}
	if rule, ok := r.rules.Payment[txType]; ok {
		return rule, nil
	}
	if rule, ok := r.rules.Payment[domain.PaymentTxDefault]; ok {
		return rule, nil
	}
	return domain.PaymentAllocationRule{}, customError.WrapUnresolvableTarget(string(txType))
}

// legacyRule expresses the fixed priority as an allocation-type sequence so
// resolution has a single code path: per component, past due first, then due,
// then in advance.
func legacyRule() domain.PaymentAllocationRule {
	types := make([]domain.AllocationType, 0, len(domain.AllocationTypes))
	bands := []domain.AgeingBand{domain.BandPastDue, domain.BandDue, domain.BandInAdvance}
	for _, component := range legacyOrder {
		for _, band := range bands {
			for _, allocType := range domain.AllocationTypes {
				if allocType.Component() == component && allocType.Band() == band {
					types = append(types, allocType)
				}
			}
		}
	}
	return domain.PaymentAllocationRule{
		TransactionType: domain.PaymentTxDefault,
		AllocationTypes: types,
		FutureRule:      domain.FutureNextInstallment,
	}
}

func creditComponentOrder(rules *ResolvedRules, txType domain.CreditAllocationTransactionType) []domain.Component {
	if rules != nil {
		if rule, ok := rules.Credit[txType]; ok {
			order := make([]domain.Component, 0, len(rule.AllocationTypes))
			for _, allocType := range rule.AllocationTypes {
				order = append(order, allocType.Component())
			}
			return order
		}
	}
	return legacyOrder
}

func bandMatches(allocType domain.AllocationType, dueDate, businessDate time.Time) bool {
	due := truncateDay(dueDate)
	business := truncateDay(businessDate)
	switch allocType.Band() {
	case domain.BandPastDue:
		return due.Before(business)
	case domain.BandDue:
		return due.Equal(business)
	default:
		return due.After(business)
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// workingInstallment overlays pending deltas on an installment so resolution
// sees its own allocations without mutating the input.
type workingInstallment struct {
	inst    *domain.Installment
	pending map[domain.Component]decimal.Decimal
}

func newWorkingInstallment(inst *domain.Installment) *workingInstallment {
	return &workingInstallment{inst: inst, pending: make(map[domain.Component]decimal.Decimal)}
}

func (w *workingInstallment) outstanding(component domain.Component) decimal.Decimal {
	return w.inst.Amounts(component).Outstanding().Sub(w.pending[component])
}

func (w *workingInstallment) take(component domain.Component, max decimal.Decimal) decimal.Decimal {
	available := w.outstanding(component)
	if !available.IsPositive() {
		return decimal.Zero
	}
	paid := decimal.Min(max, available)
	w.pending[component] = w.pending[component].Add(paid)
	return paid
}

func (w *workingInstallment) settled() bool {
	for _, component := range domain.Components {
		if w.outstanding(component).IsPositive() {
			return false
		}
	}
	return true
}

func firstUnsettled(ordered []*workingInstallment) int {
	for idx, work := range ordered {
		if !work.settled() {
			return idx
		}
	}
	// Everything settled already: start at the last installment so residual
	// handling still runs the future-installment rule.
	return len(ordered) - 1
}

func nextUnsettled(ordered []*workingInstallment, from int) int {
	for idx := from + 1; idx < len(ordered); idx++ {
		if !ordered[idx].settled() {
			return idx
		}
	}
	return -1
}
