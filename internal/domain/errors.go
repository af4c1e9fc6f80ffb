package domain

import "errors"

var (
	// ErrAuth covers malformed, expired and badly signed credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrUnauthorized is returned when a user may not join a room.
	ErrUnauthorized = errors.New("not a member of this server")
	// ErrNotInRoom is returned when a message is sent outside the current room.
	ErrNotInRoom = errors.New("not in room")
	// ErrPersist wraps storage failures on message write.
	ErrPersist       = errors.New("persist message")
	ErrRateLimited   = errors.New("rate limited")
	ErrSessionClosed = errors.New("session closed")
)
