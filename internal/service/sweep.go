package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wicaksono/loan-servicing/internal/domain"
	"github.com/wicaksono/loan-servicing/internal/event"
	"github.com/wicaksono/loan-servicing/internal/repository"
	customError "github.com/wicaksono/loan-servicing/pkg/errors"
)

// DelinquencySweeper drives the classifier over all active loans. One loan's
// failure is logged with context and never aborts the batch; a terminal error
// summarizing every failed item is returned once the batch completes.
type DelinquencySweeper struct {
	loans      repository.LoanRepository
	tags       repository.TagHistoryRepository
	cache      repository.CollectionCache
	publisher  event.Publisher
	classifier *DelinquencyClassifier
	log        *logrus.Logger
}

func NewDelinquencySweeper(
	loans repository.LoanRepository,
	tags repository.TagHistoryRepository,
	cache repository.CollectionCache,
	publisher event.Publisher,
	log *logrus.Logger,
) *DelinquencySweeper {
	return &DelinquencySweeper{
		loans:      loans,
		tags:       tags,
		cache:      cache,
		publisher:  publisher,
		classifier: NewDelinquencyClassifier(),
		log:        log,
	}
}

// SweepSummary reports what a sweep did.
type SweepSummary struct {
	BusinessDate time.Time
	LoansSwept   int
	Transitions  int
	Failed       int
}

// Sweep classifies every active loan as of the given business date.
func (s *DelinquencySweeper) Sweep(ctx context.Context, businessDate time.Time) (*SweepSummary, error) {
	ids, err := s.loans.ListActiveLoanIDs(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	summary := &SweepSummary{BusinessDate: businessDate}
	failures := make(map[string]string)

	for _, loanID := range ids {
		transitions, err := s.sweepLoan(ctx, loanID, businessDate)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"loan_id":       loanID,
				"business_date": businessDate.Format("2006-01-02"),
			}).WithError(err).Error("delinquency sweep failed for loan")
			failures[loanID] = err.Error()
			summary.Failed++
			continue
		}
		summary.LoansSwept++
		summary.Transitions += transitions
	}

	if len(failures) > 0 {
		return summary, &customError.BatchError{Job: "delinquency-sweep", Failures: failures}
	}
	return summary, nil
}

func (s *DelinquencySweeper) sweepLoan(ctx context.Context, loanID string, businessDate time.Time) (int, error) {
	loan, err := s.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}
	if len(loan.Installments) == 0 {
		return 0, customError.WrapEmptyInstallments(loanID)
	}
	product, err := s.loans.GetProductDetail(ctx, loanID)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}
	bucket, err := s.loans.GetDelinquencyBucket(ctx, loanID)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}
	pauses, err := s.loans.GetPausePeriods(ctx, loanID)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}
	activeLoanTag, err := s.tags.GetActiveLoanTag(ctx, loanID)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}
	activeInstallmentTags, err := s.tags.GetActiveInstallmentTags(ctx, loanID)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	out := s.classifier.Classify(ClassifyInput{
		Loan:                  loan,
		Product:               *product,
		Bucket:                *bucket,
		Pauses:                pauses,
		BusinessDate:          businessDate,
		ActiveLoanTag:         activeLoanTag,
		ActiveInstallmentTags: activeInstallmentTags,
	})

	for _, closed := range out.ClosedTags {
		if err := s.tags.CloseTag(ctx, closed.ID.String(), *closed.LiftedOnDate); err != nil {
			return 0, customError.WrapDatabaseError(err)
		}
	}
	for idx := range out.OpenedTags {
		if err := s.tags.OpenTag(ctx, &out.OpenedTags[idx]); err != nil {
			return 0, customError.WrapDatabaseError(err)
		}
	}
	for _, changed := range out.Events {
		if err := s.publisher.PublishRangeChanged(ctx, changed); err != nil {
			return 0, err
		}
	}
	if err := s.cache.SetSnapshot(ctx, &out.Snapshot); err != nil {
		return 0, err
	}

	return len(out.Events), nil
}

// RescheduleAndApply runs the reschedule engine against a stored loan and
// persists the outcome. The prior-schedule snapshot is written before the
// regenerated periods replace the stored schedule.
func RescheduleAndApply(
	ctx context.Context,
	loans repository.LoanRepository,
	engine *RescheduleEngine,
	loanID string,
	input RescheduleInput,
) (*domain.LoanRescheduleModel, error) {
	loan, err := loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	input.Existing = loan.Installments

	model, err := engine.Reschedule(input)
	if err != nil {
		return nil, err
	}

	if err := loans.SaveScheduleHistory(ctx, &model.OldPeriodsSnapshot); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if err := loans.SaveInstallments(ctx, loanID, model.NewPeriods); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return model, nil
}

// AllocateAndApply resolves an incoming transaction against a loan and
// persists the resulting installment state. It is the write path the sweep's
// read path depends on.
func AllocateAndApply(
	ctx context.Context,
	loans repository.LoanRepository,
	resolver *PaymentAllocationResolver,
	loanID string,
	tx domain.LoanTransaction,
	txType domain.PaymentAllocationTransactionType,
	businessDate time.Time,
) (*AllocationResult, error) {
	loan, err := loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	result, err := resolver.Allocate(loan.InstallmentsByDueDate(), tx.Amount, txType, businessDate)
	if err != nil {
		return nil, err
	}

	loan.ApplyDeltas(result.Deltas, businessDate)
	loan.Overpayment = loan.Overpayment.Add(result.Overpayment)
	if err := loans.SaveInstallments(ctx, loanID, loan.Installments); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return result, nil
}
