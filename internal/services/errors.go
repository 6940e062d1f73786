package services

import (
	"errors"
	"fmt"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
)

var (
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("scheduling conflict")
	ErrValidation        = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyReviewed   = errors.New("session already reviewed")
	ErrTutorNotFound     = errors.New("tutor not found")
	ErrPaymentFailed     = errors.New("payment failed")
)

// TransitionError reports an illegal session transition with enough context
// for the caller to explain it. It matches ErrInvalidTransition under
// errors.Is.
type TransitionError struct {
	From      models.SessionStatus
	Attempted string
	Actor     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s session as %s", e.Attempted, e.From, e.Actor)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
