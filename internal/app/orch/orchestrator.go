package orch

import (
	"sync"

	"github.com/dkeye/clanchat/internal/app"
	"github.com/dkeye/clanchat/internal/core"
	"github.com/dkeye/clanchat/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Orchestrator is the relay server. It owns every session from connect to disconnect
// and dispatches their events to the router and presence registry.
type Orchestrator struct {
	Presence *app.Presence
	Router   *app.Router
	Policy   app.Policy
	Limiter  *app.RateLimiter

	mu       sync.RWMutex
	sessions map[core.ConnID]*app.Session
}

func New(presence *app.Presence, router *app.Router, policy app.Policy, limiter *app.RateLimiter) *Orchestrator {
	return &Orchestrator{
		Presence: presence,
		Router:   router,
		Policy:   policy,
		Limiter:  limiter,
		sessions: make(map[core.ConnID]*app.Session),
	}
}

// Connect registers a connection whose credential already passed verification.
func (o *Orchestrator) Connect(conn core.SignalConnection, user *domain.User) *app.Session {
	s := app.NewSession(core.ConnID(uuid.NewString()), user, conn)
	s.Authenticate()

	o.mu.Lock()
	o.sessions[s.ID] = s
	o.mu.Unlock()
	o.Presence.MarkOnline(user.ID)

	log.Info().Str("module", "orch").Str("sid", string(s.ID)).Str("user", string(user.ID)).Msg("session opened")
	return s
}

func (o *Orchestrator) Session(sid core.ConnID) (*app.Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[sid]
	return s, ok
}

func (o *Orchestrator) SessionCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sessions)
}

func (o *Orchestrator) IsOnline(uid domain.UserID) bool {
	return o.Presence.IsOnline(uid)
}

// Disconnect cleans a session up exactly once. It waits for a handler of the
// same session that is still running.
func (o *Orchestrator) Disconnect(sid core.ConnID) {
	s, ok := o.Session(sid)
	if !ok {
		return
	}
	closed := s.Close(func() {
		o.Router.Leave(s)
		o.Presence.MarkOffline(s.User.ID)
	})
	if !closed {
		return
	}

	o.mu.Lock()
	delete(o.sessions, sid)
	o.mu.Unlock()
	if !o.Presence.IsOnline(s.User.ID) {
		o.Limiter.Forget(s.User.ID)
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("user", string(s.User.ID)).Msg("session closed")
}

// Shutdown disconnects every session.
func (o *Orchestrator) Shutdown() {
	o.mu.RLock()
	ids := make([]core.ConnID, 0, len(o.sessions))
	for sid := range o.sessions {
		ids = append(ids, sid)
	}
	o.mu.RUnlock()

	for _, sid := range ids {
		o.Disconnect(sid)
	}
	log.Info().Str("module", "orch").Int("sessions", len(ids)).Msg("all sessions closed")
}
