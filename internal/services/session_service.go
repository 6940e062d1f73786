package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
	"github.com/Abhilash-226/studysphere-sub001/internal/repository"
)

// Clock supplies the current time for every scheduling decision so tests can
// pin it.
type Clock func() time.Time

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

const (
	actionRequestCompletion = "request-completion"
	actionApproveCompletion = "approve-completion"
	actionCancel            = "cancel"
	actionReschedule        = "reschedule"
	actionReview            = "review"
)

type transitionRule struct {
	action string
	from   models.SessionStatus
	role   string
	// guard is an extra time-based condition; false rejects the transition.
	guard func(now time.Time, session *models.Session) bool
}

func afterEnd(now time.Time, session *models.Session) bool {
	return !now.Before(session.EndTime)
}

func beforeStart(now time.Time, session *models.Session) bool {
	return now.Before(session.StartTime)
}

// transitionTable is the one statement of who may move a session from where.
// Both the service methods and the API layer's permission mapping consume it
// through checkTransition.
var transitionTable = []transitionRule{
	{action: actionRequestCompletion, from: models.StatusScheduled, role: models.RoleTutor, guard: afterEnd},
	{action: actionApproveCompletion, from: models.StatusPendingCompletion, role: models.RoleStudent},
	{action: actionCancel, from: models.StatusScheduled, role: models.RoleStudent, guard: beforeStart},
	{action: actionCancel, from: models.StatusScheduled, role: models.RoleTutor},
	{action: actionCancel, from: models.StatusPendingCompletion, role: models.RoleTutor},
	{action: actionReschedule, from: models.StatusScheduled, role: models.RoleStudent},
	{action: actionReschedule, from: models.StatusScheduled, role: models.RoleTutor},
	{action: actionReview, from: models.StatusCompleted, role: models.RoleStudent},
}

type SessionService struct {
	db          *pgxpool.Pool
	sessionRepo *repository.SessionRepository
	paymentRepo *repository.PaymentRepository
	userRepo    userReader
	gateway     PaymentGateway
	notifier    Notifier

	payBeforeBook bool
	now           Clock
}

func NewSessionService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	paymentRepo *repository.PaymentRepository,
	userRepo userReader,
	gateway PaymentGateway,
	notifier Notifier,
	payBeforeBook bool,
) *SessionService {
	return &SessionService{
		db:            db,
		sessionRepo:   sessionRepo,
		paymentRepo:   paymentRepo,
		userRepo:      userRepo,
		gateway:       gateway,
		notifier:      notifier,
		payBeforeBook: payBeforeBook,
		now:           time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (s *SessionService) SetClock(clock Clock) {
	s.now = clock
}

// checkTransition resolves an action against the transition table.
// Non-participants and wrong-role participants get ErrForbidden; a legal
// actor in the wrong state or outside a guard window gets a TransitionError.
func (s *SessionService) checkTransition(action string, session *models.Session, actorID int64) error {
	role := session.RoleOf(actorID)
	if role == "" {
		return ErrForbidden
	}

	roleMatched := false
	for _, rule := range transitionTable {
		if rule.action != action || rule.role != role {
			continue
		}
		roleMatched = true
		if rule.from != session.Status {
			continue
		}
		if rule.guard != nil && !rule.guard(s.now().UTC(), session) {
			return &TransitionError{From: session.Status, Attempted: action, Actor: role}
		}
		return nil
	}

	if !roleMatched {
		return ErrForbidden
	}
	return &TransitionError{From: session.Status, Attempted: action, Actor: role}
}

type BookSessionInput struct {
	TutorID     int64
	Subject     string
	Title       string
	Description *string
	StartTime   time.Time
	EndTime     time.Time
	Mode        models.SessionMode
	Location    *string
}

func (s *SessionService) validateInterval(start, end time.Time) error {
	if !end.After(start) {
		return ErrValidation
	}
	if !start.After(s.now().UTC()) {
		return ErrValidation
	}
	return nil
}

// BookSession creates a scheduled session for a student. The advisory lock
// on the tutor id serializes the conflict check against concurrent bookings
// for the same tutor; a failed booking leaves no rows behind.
func (s *SessionService) BookSession(
	ctx context.Context,
	studentID int64,
	input BookSessionInput,
) (*models.SessionDetail, error) {
	if input.TutorID <= 0 || input.TutorID == studentID {
		return nil, ErrValidation
	}
	if strings.TrimSpace(input.Subject) == "" || strings.TrimSpace(input.Title) == "" {
		return nil, ErrValidation
	}
	if err := s.validateInterval(input.StartTime, input.EndTime); err != nil {
		return nil, err
	}
	switch input.Mode {
	case models.ModeOnline:
	case models.ModeOffline:
		if input.Location == nil || strings.TrimSpace(*input.Location) == "" {
			return nil, ErrValidation
		}
	default:
		return nil, ErrValidation
	}

	tutor, err := s.userRepo.GetByID(ctx, input.TutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTutorNotFound
		}
		return nil, err
	}
	if tutor.Role != models.RoleTutor {
		return nil, ErrValidation
	}
	if tutor.HourlyRate == nil || *tutor.HourlyRate <= 0 {
		return nil, ErrValidation
	}

	start := input.StartTime.UTC()
	end := input.EndTime.UTC()
	price := *tutor.HourlyRate * end.Sub(start).Hours()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", input.TutorID); err != nil {
		return nil, err
	}

	if _, err := txSessionRepo.FindConflict(ctx, input.TutorID, start, end, 0); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	session, err := txSessionRepo.Create(ctx, repository.CreateSessionInput{
		TutorID:     input.TutorID,
		StudentID:   studentID,
		Subject:     strings.TrimSpace(input.Subject),
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		StartTime:   start,
		EndTime:     end,
		Mode:        input.Mode,
		Location:    input.Location,
		Price:       price,
	})
	if err != nil {
		return nil, err
	}

	paymentStatus := models.PaymentPending
	if s.payBeforeBook {
		charged, err := s.gateway.Charge(ctx, session.ID, price)
		if err != nil {
			return nil, err
		}
		if charged != models.PaymentPaid {
			return nil, ErrPaymentFailed
		}
		paymentStatus = models.PaymentPaid
	}

	payment, err := txPaymentRepo.Create(ctx, repository.CreatePaymentInput{
		SessionID: session.ID,
		StudentID: studentID,
		TutorID:   input.TutorID,
		Amount:    price,
		Status:    paymentStatus,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, input.TutorID, EventSessionBooked, session)

	return &models.SessionDetail{Session: *session, Payment: payment}, nil
}

// RequestCompletion moves a finished session into the completion handshake.
func (s *SessionService) RequestCompletion(
	ctx context.Context,
	actorID int64,
	sessionID int64,
	notes *string,
) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(actionRequestCompletion, session, actorID); err != nil {
		return nil, err
	}

	updated, err := s.sessionRepo.RequestCompletion(ctx, sessionID, notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &TransitionError{From: session.Status, Attempted: actionRequestCompletion, Actor: models.RoleTutor}
		}
		return nil, err
	}

	s.notifier.Notify(ctx, updated.StudentID, EventCompletionRequested, updated)
	return updated, nil
}

func (s *SessionService) ApproveCompletion(
	ctx context.Context,
	actorID int64,
	sessionID int64,
) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(actionApproveCompletion, session, actorID); err != nil {
		return nil, err
	}

	updated, err := s.sessionRepo.UpdateStatusIfCurrent(ctx, sessionID, models.StatusPendingCompletion, models.StatusCompleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &TransitionError{From: session.Status, Attempted: actionApproveCompletion, Actor: models.RoleStudent}
		}
		return nil, err
	}

	s.notifier.Notify(ctx, updated.TutorID, EventCompletionApproved, updated)
	return updated, nil
}

func (s *SessionService) Cancel(
	ctx context.Context,
	actorID int64,
	sessionID int64,
	reason string,
) (*models.Session, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrValidation
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(actionCancel, session, actorID); err != nil {
		return nil, err
	}

	updated, err := s.sessionRepo.Cancel(ctx, sessionID, session.Status, reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &TransitionError{From: session.Status, Attempted: actionCancel, Actor: session.RoleOf(actorID)}
		}
		return nil, err
	}

	s.notifier.Notify(ctx, updated.OtherParticipant(actorID), EventSessionCancelled, updated)
	return updated, nil
}

// Reschedule gives a still-scheduled session a new interval. It re-runs the
// booking validation and conflict check, ignoring the session's own prior
// interval, under the same per-tutor advisory lock as BookSession.
func (s *SessionService) Reschedule(
	ctx context.Context,
	actorID int64,
	sessionID int64,
	newStart time.Time,
	newEnd time.Time,
	reason *string,
) (*models.Session, error) {
	if err := s.validateInterval(newStart, newEnd); err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(actionReschedule, session, actorID); err != nil {
		return nil, err
	}

	start := newStart.UTC()
	end := newEnd.UTC()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", session.TutorID); err != nil {
		return nil, err
	}

	if _, err := txSessionRepo.FindConflict(ctx, session.TutorID, start, end, sessionID); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	updated, err := txSessionRepo.Reschedule(ctx, sessionID, start, end, reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &TransitionError{From: session.Status, Attempted: actionReschedule, Actor: session.RoleOf(actorID)}
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, updated.OtherParticipant(actorID), EventSessionRescheduled, updated)
	return updated, nil
}

// Review stores the student's one-time rating of a completed session.
func (s *SessionService) Review(
	ctx context.Context,
	actorID int64,
	sessionID int64,
	rating int,
	review *string,
) (*models.Session, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrValidation
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(actionReview, session, actorID); err != nil {
		return nil, err
	}
	if session.Rating != nil {
		return nil, ErrAlreadyReviewed
	}

	updated, err := s.sessionRepo.SetRatingIfUnrated(ctx, sessionID, rating, review)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a race: either a concurrent review landed first or the
			// status changed under us.
			current, readErr := s.sessionRepo.GetByID(ctx, sessionID)
			if readErr == nil && current.Rating != nil {
				return nil, ErrAlreadyReviewed
			}
			return nil, &TransitionError{From: session.Status, Attempted: actionReview, Actor: models.RoleStudent}
		}
		return nil, err
	}

	s.notifier.Notify(ctx, updated.TutorID, EventSessionReviewed, updated)
	return updated, nil
}

// Pay charges the session's payment. Payment never gates the session
// lifecycle; it is tracked on the payment row alone.
func (s *SessionService) Pay(
	ctx context.Context,
	actorID int64,
	sessionID int64,
) (*models.SessionDetail, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)

	session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.StudentID != actorID {
		return nil, ErrForbidden
	}
	if session.Status == models.StatusCancelled {
		return nil, &TransitionError{From: session.Status, Attempted: "pay", Actor: models.RoleStudent}
	}

	payment, err := txPaymentRepo.GetBySessionIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentPaid {
		return s.GetSession(ctx, actorID, sessionID)
	}

	charged, err := s.gateway.Charge(ctx, sessionID, payment.Amount)
	if err != nil {
		return nil, err
	}

	if _, err := txPaymentRepo.UpdateStatusIfCurrent(ctx, payment.ID, payment.Status, charged); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.GetSession(ctx, actorID, sessionID)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if charged != models.PaymentPaid {
		return nil, ErrPaymentFailed
	}

	return s.GetSession(ctx, actorID, sessionID)
}

func (s *SessionService) ListSessions(
	ctx context.Context,
	actorID int64,
	role string,
	filter repository.SessionListFilter,
) ([]models.SessionDetail, error) {
	sessions, err := s.sessionRepo.List(ctx, repository.SessionListFilter{
		ActorID:   actorID,
		Role:      role,
		Status:    filter.Status,
		Timeframe: filter.Timeframe,
	})
	if err != nil {
		return nil, err
	}

	sessionIDs := make([]int64, 0, len(sessions))
	for _, session := range sessions {
		sessionIDs = append(sessionIDs, session.ID)
	}

	paymentsBySession, err := s.paymentRepo.ListBySessionIDs(ctx, sessionIDs)
	if err != nil {
		return nil, err
	}

	details := make([]models.SessionDetail, 0, len(sessions))
	for _, session := range sessions {
		detail := models.SessionDetail{Session: session}
		if payment, ok := paymentsBySession[session.ID]; ok {
			paymentCopy := payment
			detail.Payment = &paymentCopy
		}
		details = append(details, detail)
	}

	return details, nil
}

func (s *SessionService) GetSession(
	ctx context.Context,
	actorID int64,
	sessionID int64,
) (*models.SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.RoleOf(actorID) == "" {
		return nil, ErrForbidden
	}

	detail := &models.SessionDetail{Session: *session}
	payment, err := s.paymentRepo.GetBySessionID(ctx, sessionID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err == nil {
		detail.Payment = payment
	}
	return detail, nil
}
