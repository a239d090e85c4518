package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wicaksono/loan-servicing/internal/domain"
)

type tagHistoryRepository struct {
	db *sqlx.DB
}

func NewTagHistoryRepository(db *sqlx.DB) TagHistoryRepository {
	return &tagHistoryRepository{db: db}
}

func (r *tagHistoryRepository) GetActiveLoanTag(ctx context.Context, loanID string) (*domain.LoanDelinquencyTagHistory, error) {
	query := `
		SELECT id, loan_id, installment_number, classification, added_on_date, lifted_on_date
		FROM loan_delinquency_tag_history
		WHERE loan_id = $1 AND installment_number = 0 AND lifted_on_date IS NULL
	`

	var tag domain.LoanDelinquencyTagHistory
	err := r.db.GetContext(ctx, &tag, query, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagHistoryRepository) GetActiveInstallmentTags(ctx context.Context, loanID string) (map[int]*domain.LoanDelinquencyTagHistory, error) {
	query := `
		SELECT id, loan_id, installment_number, classification, added_on_date, lifted_on_date
		FROM loan_delinquency_tag_history
		WHERE loan_id = $1 AND installment_number > 0 AND lifted_on_date IS NULL
	`

	var tags []domain.LoanDelinquencyTagHistory
	if err := r.db.SelectContext(ctx, &tags, query, loanID); err != nil {
		return nil, err
	}

	active := make(map[int]*domain.LoanDelinquencyTagHistory, len(tags))
	for idx := range tags {
		active[tags[idx].InstallmentNumber] = &tags[idx]
	}
	return active, nil
}

func (r *tagHistoryRepository) CloseTag(ctx context.Context, tagID string, liftedOn time.Time) error {
	query := `
		UPDATE loan_delinquency_tag_history
		SET lifted_on_date = $2
		WHERE id = $1 AND lifted_on_date IS NULL
	`

	_, err := r.db.ExecContext(ctx, query, tagID, liftedOn)
	return err
}

func (r *tagHistoryRepository) OpenTag(ctx context.Context, tag *domain.LoanDelinquencyTagHistory) error {
	query := `
		INSERT INTO loan_delinquency_tag_history (id, loan_id, installment_number, classification, added_on_date, lifted_on_date)
		VALUES ($1, $2, $3, $4, $5, NULL)
	`

	_, err := r.db.ExecContext(ctx, query,
		tag.ID, tag.LoanID, tag.InstallmentNumber, tag.Classification, tag.AddedOnDate)
	return err
}
