package app

import (
	"sync"

	"github.com/dkeye/clanchat/internal/core"
	"github.com/dkeye/clanchat/internal/domain"
)

type SessionState int

const (
	StateConnecting SessionState = iota
	// StateAuthenticated is a verified connection that has not joined any room yet.
	StateAuthenticated
	StateIdle
	StateInRoom
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateIdle:
		return "idle"
	case StateInRoom:
		return "in_room"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is the server side of one live connection.
// Events of a session run one at a time under mu; cleanup takes the same lock,
// so it always follows any handler already in flight.
type Session struct {
	ID   core.ConnID
	User *domain.User

	conn core.SignalConnection
	mu   sync.Mutex

	stateMu sync.RWMutex
	state   SessionState
	room    domain.RoomID
}

func NewSession(id core.ConnID, user *domain.User, conn core.SignalConnection) *Session {
	return &Session{ID: id, User: user, conn: conn, state: StateConnecting}
}

func (s *Session) State() SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Room returns the current room or "" when the session is in none.
func (s *Session) Room() domain.RoomID {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.room
}

func (s *Session) Signal() core.SignalConnection { return s.conn }

// Authenticate moves a connecting session to StateAuthenticated.
func (s *Session) Authenticate() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state != StateConnecting {
		return false
	}
	s.state = StateAuthenticated
	return true
}

// setRoom is called by the router while it holds the room lock.
func (s *Session) setRoom(id domain.RoomID) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.room = id
	if id == "" {
		s.state = StateIdle
	} else {
		s.state = StateInRoom
	}
}

// Exclusive runs an event handler for this session. Handlers of one session never overlap.
func (s *Session) Exclusive(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed {
		return domain.ErrSessionClosed
	}
	return fn()
}

// Close runs cleanup exactly once and closes the transport.
// It reports whether this call did the cleanup.
func (s *Session) Close(cleanup func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed {
		return false
	}
	if cleanup != nil {
		cleanup()
	}
	s.stateMu.Lock()
	s.state = StateClosed
	s.room = ""
	s.stateMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
	return true
}

// Kick closes the transport only; the adapter's read loop then disconnects the session.
func (s *Session) Kick() {
	if s.conn != nil {
		s.conn.Close()
	}
}
