package core

import (
	"context"

	"github.com/dkeye/clanchat/internal/domain"
)

// IdentityVerifier turns a bearer credential into a verified user.
// Failures wrap domain.ErrAuth.
type IdentityVerifier interface {
	Verify(token string) (*domain.User, error)
}

// MembershipOracle is the external server/channel/message store.
type MembershipOracle interface {
	IsMember(ctx context.Context, serverName string, userID domain.UserID) (bool, error)
	PersistMessage(ctx context.Context, msg domain.Message) error
}

// RoomInfo is a read-only view of an active room.
type RoomInfo struct {
	ID          domain.RoomID `json:"room"`
	MemberCount int           `json:"client_count"`
}
