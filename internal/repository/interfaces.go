package repository

import (
	"context"
	"time"

	"github.com/wicaksono/loan-servicing/internal/domain"
)

// LoanRepository is the persistence port for loan aggregates. The calculation
// engine depends on this interface only and never queries a database itself.
type LoanRepository interface {
	// GetByLoanID loads the full aggregate: installments, transactions and
	// transaction mappings.
	GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error)

	// ListActiveLoanIDs returns the ids the nightly sweep iterates.
	ListActiveLoanIDs(ctx context.Context) ([]string, error)

	// GetProductDetail returns the immutable product configuration slice the
	// engine needs for a loan.
	GetProductDetail(ctx context.Context, loanID string) (*domain.ProductDetail, error)

	// GetDelinquencyBucket returns the bucket configured for the loan's product.
	GetDelinquencyBucket(ctx context.Context, loanID string) (*domain.DelinquencyBucket, error)

	// GetPausePeriods returns the effective delinquency pause periods.
	GetPausePeriods(ctx context.Context, loanID string) ([]domain.PausePeriod, error)

	// SaveInstallments replaces the stored installment set of a loan.
	SaveInstallments(ctx context.Context, loanID string, installments []domain.Installment) error

	// SaveScheduleHistory stores an immutable pre-reschedule snapshot.
	SaveScheduleHistory(ctx context.Context, history *domain.ScheduleHistory) error
}

// TagHistoryRepository is the persistence port for the delinquency audit
// trail.
type TagHistoryRepository interface {
	// GetActiveLoanTag returns the open loan-level entry, nil when none.
	GetActiveLoanTag(ctx context.Context, loanID string) (*domain.LoanDelinquencyTagHistory, error)

	// GetActiveInstallmentTags returns the open installment-level entries
	// keyed by installment number.
	GetActiveInstallmentTags(ctx context.Context, loanID string) (map[int]*domain.LoanDelinquencyTagHistory, error)

	// CloseTag sets the lifted-on date of an entry.
	CloseTag(ctx context.Context, tagID string, liftedOn time.Time) error

	// OpenTag appends a new active entry.
	OpenTag(ctx context.Context, tag *domain.LoanDelinquencyTagHistory) error
}

// CollectionCache stores derived delinquency snapshots for fast reads.
type CollectionCache interface {
	SetSnapshot(ctx context.Context, snapshot *domain.LoanDelinquencySnapshot) error
	GetSnapshot(ctx context.Context, loanID string) (*domain.LoanDelinquencySnapshot, error)
}
