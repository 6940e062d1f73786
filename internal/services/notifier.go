package services

import (
	"context"
	"log"
)

const (
	EventSessionBooked       = "session-booked"
	EventSessionCancelled    = "session-cancelled"
	EventSessionRescheduled  = "session-rescheduled"
	EventCompletionRequested = "completion-requested"
	EventCompletionApproved  = "completion-approved"
	EventSessionReviewed     = "session-reviewed"
)

// Notifier is the fire-and-forget notification collaborator. Implementations
// must never block the calling transition; delivery failures are theirs to
// swallow.
type Notifier interface {
	Notify(ctx context.Context, userID int64, eventType string, payload any)
}

type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, userID int64, eventType string, payload any) {
	log.Printf("notify user=%d event=%s payload=%+v", userID, eventType, payload)
}
