package orch

import (
	"context"

	"github.com/dkeye/clanchat/internal/app"
	"github.com/dkeye/clanchat/internal/core"
	"github.com/dkeye/clanchat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join moves the session into roomID, leaving its previous room first.
// A refused join leaves the session where it was.
func (o *Orchestrator) Join(ctx context.Context, sid core.ConnID, roomID domain.RoomID) error {
	s, ok := o.Session(sid)
	if !ok {
		return domain.ErrSessionClosed
	}
	return s.Exclusive(func() error {
		return o.Router.Join(ctx, s, roomID)
	})
}

// Send broadcasts body to the session's current room.
func (o *Orchestrator) Send(sid core.ConnID, roomID domain.RoomID, body string) error {
	s, ok := o.Session(sid)
	if !ok {
		return domain.ErrSessionClosed
	}
	return s.Exclusive(func() error {
		if !o.Limiter.Allow(s.User.ID) {
			return domain.ErrRateLimited
		}
		res, err := o.Router.Send(s, roomID, body)
		if err != nil {
			return err
		}
		o.onBackPressure(s.Room(), res)
		return nil
	})
}

// Leave takes the session out of its room without closing it.
func (o *Orchestrator) Leave(sid core.ConnID) error {
	s, ok := o.Session(sid)
	if !ok {
		return domain.ErrSessionClosed
	}
	return s.Exclusive(func() error {
		o.Router.Leave(s)
		return nil
	})
}

func (o *Orchestrator) onBackPressure(roomID domain.RoomID, res app.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(roomID, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("sid", string(slow.ID)).Str("room", string(roomID)).Msg("kicking slow receiver")
			slow.Kick()
		case app.DropFrame, app.NoAction:
		}
	}
}
