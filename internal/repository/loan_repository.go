package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/wicaksono/loan-servicing/internal/domain"
)

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

// installmentRow flattens the per-component amounts into columns.
type installmentRow struct {
	Number            int             `db:"number"`
	FromDate          time.Time       `db:"from_date"`
	DueDate           time.Time       `db:"due_date"`
	PrincipalDue      decimal.Decimal `db:"principal_due"`
	PrincipalPaid     decimal.Decimal `db:"principal_paid"`
	PrincipalWaived   decimal.Decimal `db:"principal_waived"`
	PrincipalWriteOff decimal.Decimal `db:"principal_written_off"`
	InterestDue       decimal.Decimal `db:"interest_due"`
	InterestPaid      decimal.Decimal `db:"interest_paid"`
	InterestWaived    decimal.Decimal `db:"interest_waived"`
	InterestWriteOff  decimal.Decimal `db:"interest_written_off"`
	FeeDue            decimal.Decimal `db:"fee_due"`
	FeePaid           decimal.Decimal `db:"fee_paid"`
	FeeWaived         decimal.Decimal `db:"fee_waived"`
	FeeWriteOff       decimal.Decimal `db:"fee_written_off"`
	PenaltyDue        decimal.Decimal `db:"penalty_due"`
	PenaltyPaid       decimal.Decimal `db:"penalty_paid"`
	PenaltyWaived     decimal.Decimal `db:"penalty_waived"`
	PenaltyWriteOff   decimal.Decimal `db:"penalty_written_off"`
	ObligationsMet    bool            `db:"obligations_met"`
	ObligationsMetOn  *time.Time      `db:"obligations_met_on"`
	IsNew             bool            `db:"is_new"`
	RescheduledFrom   int             `db:"rescheduled_from"`
}

func (r installmentRow) toDomain() domain.Installment {
	return domain.Installment{
		Number:   r.Number,
		FromDate: r.FromDate,
		DueDate:  r.DueDate,
		Principal: domain.ComponentAmounts{
			Due: r.PrincipalDue, Paid: r.PrincipalPaid, Waived: r.PrincipalWaived, WrittenOff: r.PrincipalWriteOff,
		},
		Interest: domain.ComponentAmounts{
			Due: r.InterestDue, Paid: r.InterestPaid, Waived: r.InterestWaived, WrittenOff: r.InterestWriteOff,
		},
		Fee: domain.ComponentAmounts{
			Due: r.FeeDue, Paid: r.FeePaid, Waived: r.FeeWaived, WrittenOff: r.FeeWriteOff,
		},
		Penalty: domain.ComponentAmounts{
			Due: r.PenaltyDue, Paid: r.PenaltyPaid, Waived: r.PenaltyWaived, WrittenOff: r.PenaltyWriteOff,
		},
		ObligationsMet:   r.ObligationsMet,
		ObligationsMetOn: r.ObligationsMetOn,
		IsNew:            r.IsNew,
		RescheduledFrom:  r.RescheduledFrom,
	}
}

func (r *loanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := `
		SELECT id, status, currency, principal, overpayment, disbursed_on
		FROM loans
		WHERE id = $1
	`

	var loan domain.Loan
	err := r.db.GetContext(ctx, &loan, query, loanID)
	if err != nil {
		return nil, err
	}

	var rows []installmentRow
	query = `
		SELECT number, from_date, due_date,
		       principal_due, principal_paid, principal_waived, principal_written_off,
		       interest_due, interest_paid, interest_waived, interest_written_off,
		       fee_due, fee_paid, fee_waived, fee_written_off,
		       penalty_due, penalty_paid, penalty_waived, penalty_written_off,
		       obligations_met, obligations_met_on, is_new, rescheduled_from
		FROM loan_installments
		WHERE loan_id = $1
		ORDER BY number
	`
	if err = r.db.SelectContext(ctx, &rows, query, loanID); err != nil {
		return nil, err
	}
	loan.Installments = make([]domain.Installment, 0, len(rows))
	for _, row := range rows {
		loan.Installments = append(loan.Installments, row.toDomain())
	}

	query = `
		SELECT id, loan_id, kind, amount, date, reversed
		FROM loan_transactions
		WHERE loan_id = $1
		ORDER BY date, id
	`
	if err = r.db.SelectContext(ctx, &loan.Transactions, query, loanID); err != nil {
		return nil, err
	}

	query = `
		SELECT transaction_id, installment_number, component, amount
		FROM loan_transaction_mappings
		WHERE loan_id = $1
		ORDER BY installment_number
	`
	if err = r.db.SelectContext(ctx, &loan.Mappings, query, loanID); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) ListActiveLoanIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT id
		FROM loans
		WHERE status = $1
		ORDER BY id
	`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, domain.LoanStatusActive); err != nil {
		return nil, err
	}
	return ids, nil
}

type productRow struct {
	GraceOnArrearsAgeing int             `db:"grace_on_arrears_ageing"`
	InstallmentLevel     bool            `db:"installment_level_delinquency"`
	CurrencyCode         string          `db:"currency_code"`
	DecimalPlaces        int32           `db:"decimal_places"`
	InMultiplesOf        decimal.Decimal `db:"in_multiples_of"`
	RoundingMode         string          `db:"rounding_mode"`
	AllocationStrategy   string          `db:"allocation_strategy"`
}

func (r *loanRepository) GetProductDetail(ctx context.Context, loanID string) (*domain.ProductDetail, error) {
	query := `
		SELECT p.grace_on_arrears_ageing, p.installment_level_delinquency,
		       p.currency_code, p.decimal_places, p.in_multiples_of,
		       p.rounding_mode, p.allocation_strategy
		FROM loan_products p
		JOIN loans l ON l.product_id = p.id
		WHERE l.id = $1
	`

	var row productRow
	if err := r.db.GetContext(ctx, &row, query, loanID); err != nil {
		return nil, err
	}
	return &domain.ProductDetail{
		GraceOnArrearsAgeing:        row.GraceOnArrearsAgeing,
		InstallmentLevelDelinquency: row.InstallmentLevel,
		Monetary: domain.NewMonetaryPolicy(row.CurrencyCode, row.DecimalPlaces,
			row.InMultiplesOf, domain.RoundingMode(row.RoundingMode)),
		AllocationStrategy: domain.AllocationStrategy(row.AllocationStrategy),
	}, nil
}

func (r *loanRepository) GetDelinquencyBucket(ctx context.Context, loanID string) (*domain.DelinquencyBucket, error) {
	query := `
		SELECT b.name, r.classification, r.min_days, r.max_days
		FROM delinquency_buckets b
		JOIN delinquency_ranges r ON r.bucket_id = b.id
		JOIN loan_products p ON p.delinquency_bucket_id = b.id
		JOIN loans l ON l.product_id = p.id
		WHERE l.id = $1
		ORDER BY r.min_days
	`

	var rows []struct {
		Name           string `db:"name"`
		Classification string `db:"classification"`
		MinDays        int    `db:"min_days"`
		MaxDays        *int   `db:"max_days"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, loanID); err != nil {
		return nil, err
	}

	bucket := &domain.DelinquencyBucket{}
	for _, row := range rows {
		bucket.Name = row.Name
		bucket.Ranges = append(bucket.Ranges, domain.DelinquencyRange{
			Classification: row.Classification,
			MinDays:        row.MinDays,
			MaxDays:        row.MaxDays,
		})
	}
	return bucket, nil
}

func (r *loanRepository) GetPausePeriods(ctx context.Context, loanID string) ([]domain.PausePeriod, error) {
	query := `
		SELECT start, "end"
		FROM delinquency_pause_periods
		WHERE loan_id = $1 AND active = true
		ORDER BY start
	`

	var pauses []domain.PausePeriod
	if err := r.db.SelectContext(ctx, &pauses, query, loanID); err != nil {
		return nil, err
	}
	return pauses, nil
}

func (r *loanRepository) SaveInstallments(ctx context.Context, loanID string, installments []domain.Installment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM loan_installments WHERE loan_id = $1`, loanID); err != nil {
		return err
	}

	query := `
		INSERT INTO loan_installments (
			loan_id, number, from_date, due_date,
			principal_due, principal_paid, principal_waived, principal_written_off,
			interest_due, interest_paid, interest_waived, interest_written_off,
			fee_due, fee_paid, fee_waived, fee_written_off,
			penalty_due, penalty_paid, penalty_waived, penalty_written_off,
			obligations_met, obligations_met_on, is_new, rescheduled_from
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		          $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`
	for _, inst := range installments {
		_, err = tx.ExecContext(ctx, query,
			loanID, inst.Number, inst.FromDate, inst.DueDate,
			inst.Principal.Due, inst.Principal.Paid, inst.Principal.Waived, inst.Principal.WrittenOff,
			inst.Interest.Due, inst.Interest.Paid, inst.Interest.Waived, inst.Interest.WrittenOff,
			inst.Fee.Due, inst.Fee.Paid, inst.Fee.Waived, inst.Fee.WrittenOff,
			inst.Penalty.Due, inst.Penalty.Paid, inst.Penalty.Waived, inst.Penalty.WrittenOff,
			inst.ObligationsMet, inst.ObligationsMetOn, inst.IsNew, inst.RescheduledFrom,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *loanRepository) SaveScheduleHistory(ctx context.Context, history *domain.ScheduleHistory) error {
	payload, err := json.Marshal(history.Installments)
	if err != nil {
		return err
	}

	// History snapshots are append-only and never overwritten.
	query := `
		INSERT INTO loan_schedule_history (request_id, loan_id, installments, taken_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = r.db.ExecContext(ctx, query, history.RequestID, history.LoanID, payload, history.TakenAt)
	return err
}
