package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrLoanNotFound          = errors.New("loan not found")
	ErrEmptyInstallmentList  = errors.New("installment list is empty")
	ErrInvalidTerm           = errors.New("loan term must be positive")
	ErrUnsupportedMethod     = errors.New("unsupported interest method")
	ErrMissingCurrencyPolicy = errors.New("currency rounding policy is required")
	ErrUnresolvableTarget    = errors.New("no allocation rule resolves the transaction type")
	ErrTotalsMismatch        = errors.New("schedule totals do not reconcile")
	ErrRequestNotPending     = errors.New("reschedule request is not pending")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeLoanNotFound          = "LOAN_NOT_FOUND"
	ErrCodeScheduleGeneration    = "SCHEDULE_GENERATION_FAILED"
	ErrCodeTotalsMismatch        = "SCHEDULE_TOTALS_MISMATCH"
	ErrCodeEmptyInstallments     = "EMPTY_INSTALLMENT_LIST"
	ErrCodeUnresolvableTarget    = "UNRESOLVABLE_ALLOCATION_TARGET"
	ErrCodeRescheduleState       = "RESCHEDULE_INVALID_STATE"
	ErrCodeDatabaseError         = "DATABASE_ERROR"
	ErrCodeCacheError            = "CACHE_ERROR"
	ErrCodeEventPublish          = "EVENT_PUBLISH_FAILED"
	ErrCodeBatchFailed           = "BATCH_COMPLETED_WITH_ERRORS"
	ErrCodeWrongStrategy         = "ALLOCATION_RULE_WRONG_STRATEGY"
	ErrCodeOrderNotPermutation   = "ALLOCATION_ORDER_NOT_PERMUTATION"
	ErrCodeDuplicateAllocation   = "ALLOCATION_TYPE_DUPLICATED"
	ErrCodeDuplicateTransaction  = "ALLOCATION_TRANSACTION_TYPE_DUPLICATED"
	ErrCodeUnknownAllocationType = "ALLOCATION_TYPE_UNKNOWN"
	ErrCodeBucketRangesInvalid   = "DELINQUENCY_RANGES_INVALID"
)

// Violation is a single validation failure, reported with its documented code.
type Violation struct {
	Code    string
	Message string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

// Violations accumulates validation failures so a caller sees every problem in
// a request at once instead of fixing them one round-trip at a time.
type Violations struct {
	Items []Violation
}

func (v *Violations) Add(code, format string, args ...interface{}) {
	v.Items = append(v.Items, Violation{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (v *Violations) HasErrors() bool {
	return len(v.Items) > 0
}

// AsError returns nil when the list is empty, otherwise the list itself.
func (v *Violations) AsError() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}

func (v *Violations) Error() string {
	msgs := make([]string, 0, len(v.Items))
	for _, item := range v.Items {
		msgs = append(msgs, item.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// BatchError summarizes per-item failures after a batch run completes. It is
// raised after every item has been attempted, never mid-batch.
type BatchError struct {
	Job      string
	Failures map[string]string // item id -> error message
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for id, msg := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", id, msg))
	}
	return fmt.Sprintf("%s: %s: %d item(s) failed: %s", ErrCodeBatchFailed, e.Job, len(e.Failures), strings.Join(parts, "; "))
}

// Wrap common errors with business context

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapScheduleGeneration(message string, err error) *BusinessError {
	return NewBusinessError(ErrCodeScheduleGeneration, message, err)
}

func WrapTotalsMismatch(component, expected, actual string) *BusinessError {
	return NewBusinessError(
		ErrCodeTotalsMismatch,
		fmt.Sprintf("%s periods sum to %s, total is %s", component, actual, expected),
		ErrTotalsMismatch,
	)
}

func WrapEmptyInstallments(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeEmptyInstallments,
		fmt.Sprintf("Loan %s has no installments", loanID),
		ErrEmptyInstallmentList,
	)
}

func WrapUnresolvableTarget(transactionType string) *BusinessError {
	return NewBusinessError(
		ErrCodeUnresolvableTarget,
		fmt.Sprintf("No allocation rule matches transaction type %s and no default is configured", transactionType),
		ErrUnresolvableTarget,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
