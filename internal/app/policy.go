package app

import "github.com/dkeye/clanchat/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a receiver whose send buffer is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, member *Session) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomID, *Session) BackpressureAction {
	return KickMember
}

// TolerantPolicy drops the frame for the slow receiver and keeps it connected.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(domain.RoomID, *Session) BackpressureAction {
	return DropFrame
}
