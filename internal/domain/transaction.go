package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind classifies loan transactions as the classifier and the
// allocation resolver see them.
type TransactionKind string

const (
	TransactionRepayment      TransactionKind = "REPAYMENT"
	TransactionDownPayment    TransactionKind = "DOWN_PAYMENT"
	TransactionGoodwillCredit TransactionKind = "GOODWILL_CREDIT"
	TransactionPayoutRefund   TransactionKind = "PAYOUT_REFUND"
	TransactionMerchantRefund TransactionKind = "MERCHANT_ISSUED_REFUND"
	TransactionChargeback     TransactionKind = "CHARGEBACK"
	TransactionWaiver         TransactionKind = "WAIVER"
)

// LoanTransaction is an amount applied against a loan on a date. Reversed
// transactions stay in the list for audit but are ignored by calculations.
type LoanTransaction struct {
	ID       uuid.UUID       `json:"id" db:"id"`
	LoanID   string          `json:"loan_id" db:"loan_id"`
	Kind     TransactionKind `json:"kind" db:"kind"`
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Date     time.Time       `json:"date" db:"date"`
	Reversed bool            `json:"reversed" db:"reversed"`
}

func (t *LoanTransaction) IsChargeback() bool {
	return t.Kind == TransactionChargeback && !t.Reversed
}

// TransactionMapping links a transaction to the installment component it
// settled (or, for a chargeback, reopened). Installments are referenced by
// number only, which keeps the aggregate free of pointer cycles.
type TransactionMapping struct {
	TransactionID     uuid.UUID       `json:"transaction_id" db:"transaction_id"`
	InstallmentNumber int             `json:"installment_number" db:"installment_number"`
	Component         Component       `json:"component" db:"component"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
}
