package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
	"github.com/Abhilash-226/studysphere-sub001/internal/presence"
)

var ErrClassroomNotStarted = errors.New("classroom not started")

type sessionReader interface {
	GetByID(ctx context.Context, sessionID int64) (*models.Session, error)
}

type roomPublisher interface {
	Publish(room string, payload []byte, exceptConnID string)
}

// SessionRoom names the presence room for a session's classroom.
func SessionRoom(sessionID int64) string {
	return "session:" + strconv.FormatInt(sessionID, 10)
}

// ClassroomService derives classroom permissions from session state. The
// "started" flag is ephemeral per-process state, deliberately separate from
// the persisted session status: ending a class does not complete a session.
type ClassroomService struct {
	sessions   sessionReader
	hub        roomPublisher
	earlyStart time.Duration
	now        Clock

	mu      sync.Mutex
	started map[int64]bool
}

func NewClassroomService(
	sessions sessionReader,
	hub roomPublisher,
	earlyStart time.Duration,
) *ClassroomService {
	return &ClassroomService{
		sessions:   sessions,
		hub:        hub,
		earlyStart: earlyStart,
		now:        time.Now,
		started:    make(map[int64]bool),
	}
}

// SetClock overrides the time source. Tests only.
func (s *ClassroomService) SetClock(clock Clock) {
	s.now = clock
}

type ClassroomStatus struct {
	SessionID int64                `json:"session_id"`
	Status    models.SessionStatus `json:"status"`
	Started   bool                 `json:"started"`
	CanStart  bool                 `json:"can_start"`
	CanJoin   bool                 `json:"can_join"`
}

func (s *ClassroomService) isStarted(sessionID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started[sessionID]
}

func (s *ClassroomService) canStart(session *models.Session, actorID int64) bool {
	if session.RoleOf(actorID) != models.RoleTutor {
		return false
	}
	if session.Status != models.StatusScheduled {
		return false
	}
	return !s.now().UTC().Before(session.StartTime.Add(-s.earlyStart))
}

func (s *ClassroomService) canJoin(session *models.Session, actorID int64) bool {
	role := session.RoleOf(actorID)
	if role == "" {
		return false
	}
	if session.Status != models.StatusScheduled {
		return false
	}
	return s.isStarted(session.ID) || role == models.RoleTutor
}

func (s *ClassroomService) Status(
	ctx context.Context,
	actorID int64,
	sessionID int64,
) (*ClassroomStatus, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.RoleOf(actorID) == "" {
		return nil, ErrForbidden
	}

	return &ClassroomStatus{
		SessionID: sessionID,
		Status:    session.Status,
		Started:   s.isStarted(sessionID),
		CanStart:  s.canStart(session, actorID),
		CanJoin:   s.canJoin(session, actorID),
	}, nil
}

// Start opens the classroom and announces it to the session room. Session
// status stays scheduled; completion is a separate handshake.
func (s *ClassroomService) Start(
	ctx context.Context,
	actorID int64,
	sessionID int64,
) (*ClassroomStatus, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.canStart(session, actorID) {
		return nil, ErrForbidden
	}

	s.mu.Lock()
	s.started[sessionID] = true
	s.mu.Unlock()

	event := presence.NewEvent(
		presence.EventClassStarted,
		SessionRoom(sessionID),
		strconv.FormatInt(actorID, 10),
		nil,
	)
	s.hub.Publish(SessionRoom(sessionID), event.Encode(), "")

	return s.Status(ctx, actorID, sessionID)
}

// Join authorizes entering the classroom room. The socket layer does the
// actual subscription; this is the permission gate.
func (s *ClassroomService) Join(
	ctx context.Context,
	actorID int64,
	sessionID int64,
) (*ClassroomStatus, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.canJoin(session, actorID) {
		return nil, ErrForbidden
	}

	return s.Status(ctx, actorID, sessionID)
}

// End closes the room and clears the ephemeral flag. It never touches
// session status.
func (s *ClassroomService) End(
	ctx context.Context,
	actorID int64,
	sessionID int64,
) (*ClassroomStatus, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.RoleOf(actorID) != models.RoleTutor {
		return nil, ErrForbidden
	}

	s.mu.Lock()
	started := s.started[sessionID]
	delete(s.started, sessionID)
	s.mu.Unlock()

	if !started {
		return nil, ErrClassroomNotStarted
	}

	event := presence.NewEvent(
		presence.EventClassEnded,
		SessionRoom(sessionID),
		strconv.FormatInt(actorID, 10),
		nil,
	)
	s.hub.Publish(SessionRoom(sessionID), event.Encode(), "")

	return s.Status(ctx, actorID, sessionID)
}
