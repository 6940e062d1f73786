package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
)

const sessionColumns = `id, tutor_id, student_id, subject, title, description,
	start_time, end_time, mode, location, price, status, rating, review,
	completion_notes, cancellation_reason, reschedule_reason, created_at, updated_at`

type CreateSessionInput struct {
	TutorID     int64
	StudentID   int64
	Subject     string
	Title       string
	Description *string
	StartTime   time.Time
	EndTime     time.Time
	Mode        models.SessionMode
	Location    *string
	Price       float64
}

type SessionListFilter struct {
	ActorID   int64
	Role      string
	Status    string
	Timeframe string
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.TutorID,
		&session.StudentID,
		&session.Subject,
		&session.Title,
		&session.Description,
		&session.StartTime,
		&session.EndTime,
		&session.Mode,
		&session.Location,
		&session.Price,
		&session.Status,
		&session.Rating,
		&session.Review,
		&session.CompletionNotes,
		&session.CancellationReason,
		&session.RescheduleReason,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		INSERT INTO sessions (tutor_id, student_id, subject, title, description,
			start_time, end_time, mode, location, price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'scheduled')
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.TutorID,
		input.StudentID,
		input.Subject,
		input.Title,
		input.Description,
		input.StartTime,
		input.EndTime,
		input.Mode,
		input.Location,
		input.Price,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) GetByIDForUpdate(
	ctx context.Context,
	sessionID int64,
) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1 FOR UPDATE`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) List(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.Session, error) {
	actorColumn := "student_id"
	if filter.Role == models.RoleTutor {
		actorColumn = "tutor_id"
	}

	args := []any{filter.ActorID}
	whereParts := []string{fmt.Sprintf("%s = $1", actorColumn)}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(whereParts, "end_time > NOW()")
	case "past":
		whereParts = append(whereParts, "end_time <= NOW()")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE %s
		ORDER BY start_time ASC, id ASC
	`, sessionColumns, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// FindConflict returns the first non-cancelled session of the tutor whose
// half-open [start_time, end_time) interval overlaps the given one.
// excludeSessionID skips one session (used by reschedule); pass 0 to skip
// none. Back-to-back sessions do not overlap.
func (r *SessionRepository) FindConflict(
	ctx context.Context,
	tutorID int64,
	start time.Time,
	end time.Time,
	excludeSessionID int64,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE tutor_id = $1
		  AND id <> $4
		  AND status <> 'cancelled'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time ASC, id ASC
		LIMIT 1
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, tutorID, start, end, excludeSessionID))
}

func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus models.SessionStatus,
	nextStatus models.SessionStatus,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

func (r *SessionRepository) RequestCompletion(
	ctx context.Context,
	sessionID int64,
	notes *string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = 'pending_completion', completion_notes = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, notes))
}

func (r *SessionRepository) Cancel(
	ctx context.Context,
	sessionID int64,
	currentStatus models.SessionStatus,
	reason string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = 'cancelled', cancellation_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, reason))
}

// Reschedule moves a still-scheduled session to a new interval in one
// conditional write. The caller must have run the conflict check in the
// same transaction.
func (r *SessionRepository) Reschedule(
	ctx context.Context,
	sessionID int64,
	newStart time.Time,
	newEnd time.Time,
	reason *string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET start_time = $2, end_time = $3, reschedule_reason = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, newStart, newEnd, reason))
}

// SetRatingIfUnrated stores the one-time review. The predicate keeps the
// write idempotent-rejecting: a second call matches no row.
func (r *SessionRepository) SetRatingIfUnrated(
	ctx context.Context,
	sessionID int64,
	rating int,
	review *string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET rating = $2, review = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'completed' AND rating IS NULL
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, rating, review))
}
