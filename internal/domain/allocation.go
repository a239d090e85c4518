package domain

// AllocationStrategy selects how incoming amounts are distributed.
type AllocationStrategy string

const (
	// StrategyLegacy applies the fixed priority principal, interest, fee,
	// penalty to the earliest unsettled installment.
	StrategyLegacy AllocationStrategy = "du-ip-principal-interest-fee-penalty"
	// StrategyAdvanced distributes per the configured rule catalogs.
	StrategyAdvanced AllocationStrategy = "advanced-payment-allocation-strategy"
)

// AllocationType names one bucket an incoming payment can satisfy: an ageing
// band (past due, due today, in advance) crossed with a component.
type AllocationType string

const (
	AllocPastDuePenalty     AllocationType = "PAST_DUE_PENALTY"
	AllocPastDueFee         AllocationType = "PAST_DUE_FEE"
	AllocPastDuePrincipal   AllocationType = "PAST_DUE_PRINCIPAL"
	AllocPastDueInterest    AllocationType = "PAST_DUE_INTEREST"
	AllocDuePenalty         AllocationType = "DUE_PENALTY"
	AllocDueFee             AllocationType = "DUE_FEE"
	AllocDuePrincipal       AllocationType = "DUE_PRINCIPAL"
	AllocDueInterest        AllocationType = "DUE_INTEREST"
	AllocInAdvancePenalty   AllocationType = "IN_ADVANCE_PENALTY"
	AllocInAdvanceFee       AllocationType = "IN_ADVANCE_FEE"
	AllocInAdvancePrincipal AllocationType = "IN_ADVANCE_PRINCIPAL"
	AllocInAdvanceInterest  AllocationType = "IN_ADVANCE_INTEREST"
)

// AllocationTypes is the closed payment allocation set; rule order lists must
// be a permutation of 1..len(AllocationTypes).
var AllocationTypes = []AllocationType{
	AllocPastDuePenalty, AllocPastDueFee, AllocPastDuePrincipal, AllocPastDueInterest,
	AllocDuePenalty, AllocDueFee, AllocDuePrincipal, AllocDueInterest,
	AllocInAdvancePenalty, AllocInAdvanceFee, AllocInAdvancePrincipal, AllocInAdvanceInterest,
}

func (a AllocationType) Valid() bool {
	for _, known := range AllocationTypes {
		if a == known {
			return true
		}
	}
	return false
}

// AgeingBand is the due-date band of an AllocationType relative to the
// business date.
type AgeingBand int

const (
	BandPastDue AgeingBand = iota
	BandDue
	BandInAdvance
)

// Band returns the ageing band the allocation type targets.
func (a AllocationType) Band() AgeingBand {
	switch a {
	case AllocPastDuePenalty, AllocPastDueFee, AllocPastDuePrincipal, AllocPastDueInterest:
		return BandPastDue
	case AllocDuePenalty, AllocDueFee, AllocDuePrincipal, AllocDueInterest:
		return BandDue
	default:
		return BandInAdvance
	}
}

// Component returns the installment component the allocation type targets.
func (a AllocationType) Component() Component {
	switch a {
	case AllocPastDuePenalty, AllocDuePenalty, AllocInAdvancePenalty:
		return ComponentPenalty
	case AllocPastDueFee, AllocDueFee, AllocInAdvanceFee:
		return ComponentFee
	case AllocPastDuePrincipal, AllocDuePrincipal, AllocInAdvancePrincipal:
		return ComponentPrincipal
	default:
		return ComponentInterest
	}
}

// CreditAllocationType is the smaller closed set used when allocating credit
// transactions (chargebacks and the like) back onto components.
type CreditAllocationType string

const (
	CreditAllocPenalty   CreditAllocationType = "PENALTY"
	CreditAllocFee       CreditAllocationType = "FEE"
	CreditAllocPrincipal CreditAllocationType = "PRINCIPAL"
	CreditAllocInterest  CreditAllocationType = "INTEREST"
)

var CreditAllocationTypes = []CreditAllocationType{
	CreditAllocPenalty, CreditAllocFee, CreditAllocPrincipal, CreditAllocInterest,
}

func (c CreditAllocationType) Valid() bool {
	for _, known := range CreditAllocationTypes {
		if c == known {
			return true
		}
	}
	return false
}

func (c CreditAllocationType) Component() Component {
	switch c {
	case CreditAllocPenalty:
		return ComponentPenalty
	case CreditAllocFee:
		return ComponentFee
	case CreditAllocPrincipal:
		return ComponentPrincipal
	default:
		return ComponentInterest
	}
}

// PaymentAllocationTransactionType keys payment rules.
type PaymentAllocationTransactionType string

const (
	PaymentTxDefault        PaymentAllocationTransactionType = "DEFAULT"
	PaymentTxRepayment      PaymentAllocationTransactionType = "REPAYMENT"
	PaymentTxDownPayment    PaymentAllocationTransactionType = "DOWN_PAYMENT"
	PaymentTxGoodwillCredit PaymentAllocationTransactionType = "GOODWILL_CREDIT"
	PaymentTxPayoutRefund   PaymentAllocationTransactionType = "PAYOUT_REFUND"
	PaymentTxMerchantRefund PaymentAllocationTransactionType = "MERCHANT_ISSUED_REFUND"
)

func (t PaymentAllocationTransactionType) Valid() bool {
	switch t {
	case PaymentTxDefault, PaymentTxRepayment, PaymentTxDownPayment,
		PaymentTxGoodwillCredit, PaymentTxPayoutRefund, PaymentTxMerchantRefund:
		return true
	}
	return false
}

// CreditAllocationTransactionType keys credit rules.
type CreditAllocationTransactionType string

const (
	CreditTxChargeback     CreditAllocationTransactionType = "CHARGEBACK"
	CreditTxGoodwillCredit CreditAllocationTransactionType = "GOODWILL_CREDIT"
	CreditTxPayoutRefund   CreditAllocationTransactionType = "PAYOUT_REFUND"
	CreditTxInterestWaiver CreditAllocationTransactionType = "INTEREST_PAYMENT_WAIVER"
)

func (t CreditAllocationTransactionType) Valid() bool {
	switch t {
	case CreditTxChargeback, CreditTxGoodwillCredit, CreditTxPayoutRefund, CreditTxInterestWaiver:
		return true
	}
	return false
}

// FutureInstallmentAllocationRule decides where a residual goes once an
// installment is fully satisfied: the next installment, the last installment,
// or nowhere (the residual becomes an overpayment credit).
type FutureInstallmentAllocationRule string

const (
	FutureNextInstallment FutureInstallmentAllocationRule = "NEXT_INSTALLMENT"
	FutureLastInstallment FutureInstallmentAllocationRule = "LAST_INSTALLMENT"
	FutureNone            FutureInstallmentAllocationRule = "NONE"
)

func (r FutureInstallmentAllocationRule) Valid() bool {
	switch r {
	case FutureNextInstallment, FutureLastInstallment, FutureNone:
		return true
	}
	return false
}

// PaymentAllocationRule is one validated catalog entry: the ordered allocation
// types applied to transactions of the keyed type.
type PaymentAllocationRule struct {
	TransactionType PaymentAllocationTransactionType `json:"transaction_type"`
	AllocationTypes []AllocationType                 `json:"allocation_types"`
	FutureRule      FutureInstallmentAllocationRule  `json:"future_rule"`
}

// CreditAllocationRule is the credit-side analogue.
type CreditAllocationRule struct {
	TransactionType CreditAllocationTransactionType `json:"transaction_type"`
	AllocationTypes []CreditAllocationType          `json:"allocation_types"`
}

// Wire DTOs. The JSON shape is preserved for compatibility with existing rule
// definitions.

type AllocationOrderEntry struct {
	PaymentAllocationRule string `json:"paymentAllocationRule" validate:"required"`
	Order                 int    `json:"order" validate:"required"`
}

type PaymentAllocationDefinition struct {
	TransactionType                 string                 `json:"transactionType" validate:"required"`
	FutureInstallmentAllocationRule string                 `json:"futureInstallmentAllocationRule" validate:"required"`
	PaymentAllocationOrder          []AllocationOrderEntry `json:"paymentAllocationOrder" validate:"required,dive"`
}

type CreditAllocationOrderEntry struct {
	CreditAllocationRule string `json:"creditAllocationRule" validate:"required"`
	Order                int    `json:"order" validate:"required"`
}

type CreditAllocationDefinition struct {
	TransactionType       string                       `json:"transactionType" validate:"required"`
	CreditAllocationOrder []CreditAllocationOrderEntry `json:"creditAllocationOrder" validate:"required,dive"`
}

// AllocationConfiguration is the wire form of a product's allocation setup.
type AllocationConfiguration struct {
	TransactionProcessingStrategy string                        `json:"transactionProcessingStrategyCode"`
	PaymentAllocation             []PaymentAllocationDefinition `json:"paymentAllocation,omitempty"`
	CreditAllocation              []CreditAllocationDefinition  `json:"creditAllocation,omitempty"`
}
