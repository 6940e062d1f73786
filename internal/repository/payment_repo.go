package repository

import (
	"context"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
)

type CreatePaymentInput struct {
	SessionID int64
	StudentID int64
	TutorID   int64
	Amount    float64
	Status    string
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(
	ctx context.Context,
	input CreatePaymentInput,
) (*models.Payment, error) {
	query := `
		INSERT INTO payments (session_id, student_id, tutor_id, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, session_id, student_id, tutor_id, amount, status, created_at, updated_at
	`

	var payment models.Payment
	err := r.db.QueryRow(
		ctx,
		query,
		input.SessionID,
		input.StudentID,
		input.TutorID,
		input.Amount,
		input.Status,
	).Scan(
		&payment.ID,
		&payment.SessionID,
		&payment.StudentID,
		&payment.TutorID,
		&payment.Amount,
		&payment.Status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) GetBySessionID(ctx context.Context, sessionID int64) (*models.Payment, error) {
	query := `
		SELECT id, session_id, student_id, tutor_id, amount, status, created_at, updated_at
		FROM payments
		WHERE session_id = $1
	`
	var payment models.Payment
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&payment.ID,
		&payment.SessionID,
		&payment.StudentID,
		&payment.TutorID,
		&payment.Amount,
		&payment.Status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) GetBySessionIDForUpdate(ctx context.Context, sessionID int64) (*models.Payment, error) {
	query := `
		SELECT id, session_id, student_id, tutor_id, amount, status, created_at, updated_at
		FROM payments
		WHERE session_id = $1
		FOR UPDATE
	`
	var payment models.Payment
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&payment.ID,
		&payment.SessionID,
		&payment.StudentID,
		&payment.TutorID,
		&payment.Amount,
		&payment.Status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	paymentID int64,
	currentStatus string,
	nextStatus string,
) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING id, session_id, student_id, tutor_id, amount, status, created_at, updated_at
	`
	var payment models.Payment
	err := r.db.QueryRow(ctx, query, paymentID, currentStatus, nextStatus).Scan(
		&payment.ID,
		&payment.SessionID,
		&payment.StudentID,
		&payment.TutorID,
		&payment.Amount,
		&payment.Status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) ListBySessionIDs(
	ctx context.Context,
	sessionIDs []int64,
) (map[int64]models.Payment, error) {
	payments := make(map[int64]models.Payment)
	if len(sessionIDs) == 0 {
		return payments, nil
	}

	query := `
		SELECT id, session_id, student_id, tutor_id, amount, status, created_at, updated_at
		FROM payments
		WHERE session_id = ANY($1)
	`

	rows, err := r.db.Query(ctx, query, sessionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var payment models.Payment
		if err := rows.Scan(
			&payment.ID,
			&payment.SessionID,
			&payment.StudentID,
			&payment.TutorID,
			&payment.Amount,
			&payment.Status,
			&payment.CreatedAt,
			&payment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		payments[payment.SessionID] = payment
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}
