package app

import (
	"sync"

	"github.com/dkeye/clanchat/internal/core"
	"github.com/dkeye/clanchat/internal/domain"
	"github.com/rs/zerolog/log"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []*Session
}

// room is the subscriber set of one channel. Join, leave and send on the same
// room run under mu. A dead room was unlinked from the router and takes no members.
type room struct {
	id      domain.RoomID
	mu      sync.Mutex
	members map[core.ConnID]*Session
	dead    bool
}

func newRoom(id domain.RoomID) *room {
	return &room{id: id, members: make(map[core.ConnID]*Session)}
}

func (r *room) memberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// broadcast must be called with mu held.
func (r *room) broadcast(data core.Frame) PublishResult {
	res := PublishResult{}
	for sid, s := range r.members {
		if err := s.Signal().TrySend(data); err != nil {
			log.Debug().Err(err).Str("module", "app.room").Str("room", string(r.id)).Str("sid", string(sid)).Msg("receiver dropped frame")
			res.Dropped = append(res.Dropped, s)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.room").Str("room", string(r.id)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
