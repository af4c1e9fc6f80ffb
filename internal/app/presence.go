package app

import (
	"sync"

	"github.com/dkeye/clanchat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Presence counts open verified connections per user.
// A user is online while the count is above zero.
type Presence struct {
	mu     sync.RWMutex
	counts map[domain.UserID]int
}

func NewPresence() *Presence {
	return &Presence{counts: make(map[domain.UserID]int)}
}

func (p *Presence) MarkOnline(uid domain.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[uid]++
	log.Debug().Str("module", "app.presence").Str("user", string(uid)).Int("sessions", p.counts[uid]).Msg("online")
}

// MarkOffline never drives the counter below zero; the entry is removed at zero.
func (p *Presence) MarkOffline(uid domain.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.counts[uid]
	if !ok {
		log.Warn().Str("module", "app.presence").Str("user", string(uid)).Msg("offline for unknown user")
		return
	}
	if n <= 1 {
		delete(p.counts, uid)
		log.Debug().Str("module", "app.presence").Str("user", string(uid)).Msg("offline")
		return
	}
	p.counts[uid] = n - 1
}

func (p *Presence) IsOnline(uid domain.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.counts[uid]
	return ok
}

// Sessions returns the number of open connections of a user.
func (p *Presence) Sessions(uid domain.UserID) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counts[uid]
}

func (p *Presence) Online() []domain.UserID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.UserID, 0, len(p.counts))
	for uid := range p.counts {
		out = append(out, uid)
	}
	return out
}

func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.counts)
}
