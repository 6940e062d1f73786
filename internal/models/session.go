package models

import "time"

// SessionStatus is the single source of truth for the session lifecycle.
// Transitions are enforced by the session service's transition table;
// nothing else may write Status.
type SessionStatus string

const (
	StatusScheduled         SessionStatus = "scheduled"
	StatusPendingCompletion SessionStatus = "pending_completion"
	StatusCompleted         SessionStatus = "completed"
	StatusCancelled         SessionStatus = "cancelled"
	StatusRescheduled       SessionStatus = "rescheduled"
)

func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s SessionStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusPendingCompletion, StatusCompleted, StatusCancelled, StatusRescheduled:
		return true
	}
	return false
}

type SessionMode string

const (
	ModeOnline  SessionMode = "online"
	ModeOffline SessionMode = "offline"
)

type Session struct {
	ID                 int64         `json:"id"`
	TutorID            int64         `json:"tutor_id"`
	StudentID          int64         `json:"student_id"`
	Subject            string        `json:"subject"`
	Title              string        `json:"title"`
	Description        *string       `json:"description,omitempty"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            time.Time     `json:"end_time"`
	Mode               SessionMode   `json:"mode"`
	Location           *string       `json:"location,omitempty"`
	Price              float64       `json:"price"`
	Status             SessionStatus `json:"status"`
	Rating             *int          `json:"rating,omitempty"`
	Review             *string       `json:"review,omitempty"`
	CompletionNotes    *string       `json:"completion_notes,omitempty"`
	CancellationReason *string       `json:"cancellation_reason,omitempty"`
	RescheduleReason   *string       `json:"reschedule_reason,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// RoleOf reports the caller's role relative to the session, or "" when the
// caller is not a participant.
func (s *Session) RoleOf(userID int64) string {
	switch userID {
	case s.TutorID:
		return RoleTutor
	case s.StudentID:
		return RoleStudent
	}
	return ""
}

func (s *Session) OtherParticipant(userID int64) int64 {
	if userID == s.TutorID {
		return s.StudentID
	}
	return s.TutorID
}

const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

type Payment struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	StudentID int64     `json:"student_id"`
	TutorID   int64     `json:"tutor_id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SessionDetail struct {
	Session
	Payment *Payment `json:"payment,omitempty"`
}
