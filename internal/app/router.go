package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/clanchat/internal/core"
	"github.com/dkeye/clanchat/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

type RouterConfig struct {
	// OracleTimeout bounds a membership check.
	OracleTimeout time.Duration
	// PersistTimeout bounds one message write.
	PersistTimeout time.Duration
	// PersistInflight caps pending message writes. Messages beyond it are
	// delivered but not stored.
	PersistInflight int64
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		OracleTimeout:   3 * time.Second,
		PersistTimeout:  5 * time.Second,
		PersistInflight: 64,
	}
}

// Router maps rooms to their subscribers and fans messages out.
//
// Durability is best effort: Send hands the message to a background writer and
// broadcasts without waiting for it. A failed write leaves a message that was
// delivered live but is missing from history.
type Router struct {
	oracle core.MembershipOracle
	cfg    RouterConfig
	encode func(domain.Message) (core.Frame, error)
	now    func() time.Time

	mu    sync.RWMutex
	rooms map[domain.RoomID]*room

	persistMu sync.RWMutex
	closing   bool
	inflight  sync.WaitGroup
	sem       *semaphore.Weighted
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewRouter(oracle core.MembershipOracle, cfg RouterConfig) *Router {
	def := DefaultRouterConfig()
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = def.OracleTimeout
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = def.PersistTimeout
	}
	if cfg.PersistInflight <= 0 {
		cfg.PersistInflight = def.PersistInflight
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		oracle: oracle,
		cfg:    cfg,
		encode: EncodeChat,
		now:    time.Now,
		rooms:  make(map[domain.RoomID]*room),
		sem:    semaphore.NewWeighted(cfg.PersistInflight),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (r *Router) getOrCreate(id domain.RoomID) *room {
	r.mu.RLock()
	rm, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return rm
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok = r.rooms[id]; ok {
		return rm
	}
	rm = newRoom(id)
	r.rooms[id] = rm
	return rm
}

func (r *Router) lookup(id domain.RoomID) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[id]
}

// Join moves s into the room. Membership is asked from the oracle every time.
// On refusal the session keeps its current room.
func (r *Router) Join(ctx context.Context, s *Session, id domain.RoomID) error {
	octx, cancel := context.WithTimeout(ctx, r.cfg.OracleTimeout)
	defer cancel()
	ok, err := r.oracle.IsMember(octx, id.Server(), s.User.ID)
	if err != nil {
		return fmt.Errorf("check membership for %s: %w", id, err)
	}
	if !ok {
		log.Info().Str("module", "app.router").Str("sid", string(s.ID)).Str("room", string(id)).Msg("join refused")
		return domain.ErrUnauthorized
	}
	if s.Room() == id {
		return nil
	}

	r.Leave(s)
	r.add(s, id)
	log.Info().Str("module", "app.router").Str("sid", string(s.ID)).Str("user", string(s.User.ID)).Str("room", string(id)).Msg("joined")
	return nil
}

func (r *Router) add(s *Session, id domain.RoomID) {
	for {
		rm := r.getOrCreate(id)
		rm.mu.Lock()
		if rm.dead {
			rm.mu.Unlock()
			continue
		}
		rm.members[s.ID] = s
		s.setRoom(id)
		rm.mu.Unlock()
		return
	}
}

// Leave removes s from its room. No-op when s is in none.
func (r *Router) Leave(s *Session) {
	id := s.Room()
	if id == "" {
		return
	}
	rm := r.lookup(id)
	if rm == nil {
		s.setRoom("")
		return
	}

	rm.mu.Lock()
	delete(rm.members, s.ID)
	s.setRoom("")
	empty := len(rm.members) == 0
	if empty {
		rm.dead = true
	}
	rm.mu.Unlock()

	if empty {
		r.mu.Lock()
		if r.rooms[id] == rm {
			delete(r.rooms, id)
		}
		r.mu.Unlock()
	}
	log.Debug().Str("module", "app.router").Str("sid", string(s.ID)).Str("room", string(id)).Msg("left")
}

// Send publishes body to the current room of s, sender included.
// A non-empty target must name that room.
func (r *Router) Send(s *Session, target domain.RoomID, body string) (PublishResult, error) {
	cur := s.Room()
	if cur == "" || (target != "" && target != cur) {
		return PublishResult{}, domain.ErrNotInRoom
	}
	rm := r.lookup(cur)
	if rm == nil {
		return PublishResult{}, domain.ErrNotInRoom
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, ok := rm.members[s.ID]; !ok || rm.dead {
		return PublishResult{}, domain.ErrNotInRoom
	}

	msg := domain.Message{
		Room:      cur,
		AuthorID:  s.User.ID,
		Author:    s.User.Username,
		Body:      body,
		CreatedAt: r.now(),
	}
	frame, err := r.encode(msg)
	if err != nil {
		return PublishResult{}, fmt.Errorf("encode message: %w", err)
	}

	r.persist(msg)
	return rm.broadcast(frame), nil
}

// persist writes msg in the background. The caller never waits for it.
func (r *Router) persist(msg domain.Message) {
	r.persistMu.RLock()
	defer r.persistMu.RUnlock()
	if r.closing {
		log.Warn().Str("module", "app.router").Str("room", string(msg.Room)).Msg("router closing, message not persisted")
		return
	}
	if !r.sem.TryAcquire(1) {
		log.Error().Err(domain.ErrPersist).Str("module", "app.router").Str("room", string(msg.Room)).Str("user", string(msg.AuthorID)).Msg("persist queue full, message not persisted")
		return
	}
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer r.sem.Release(1)

		ctx, cancel := context.WithTimeout(r.ctx, r.cfg.PersistTimeout)
		defer cancel()
		if err := r.oracle.PersistMessage(ctx, msg); err != nil {
			if !errors.Is(err, domain.ErrPersist) {
				err = fmt.Errorf("%w: %w", domain.ErrPersist, err)
			}
			log.Error().Err(err).Str("module", "app.router").Str("room", string(msg.Room)).Str("user", string(msg.AuthorID)).Msg("message delivered but not persisted")
		}
	}()
}

// Rooms is a snapshot of active rooms, sorted by id.
func (r *Router) Rooms() []core.RoomInfo {
	r.mu.RLock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	out := make([]core.RoomInfo, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, core.RoomInfo{ID: rm.id, MemberCount: rm.memberCount()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Members returns the connections currently subscribed to id.
func (r *Router) Members(id domain.RoomID) []core.ConnID {
	rm := r.lookup(id)
	if rm == nil {
		return nil
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	out := make([]core.ConnID, 0, len(rm.members))
	for sid := range rm.members {
		out = append(out, sid)
	}
	return out
}

// Close stops accepting writes and waits for pending ones until ctx is done.
func (r *Router) Close(ctx context.Context) error {
	r.persistMu.Lock()
	r.closing = true
	r.persistMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()

	defer r.cancel()
	select {
	case <-done:
		log.Info().Str("module", "app.router").Msg("pending writes drained")
		return nil
	case <-ctx.Done():
		log.Warn().Str("module", "app.router").Msg("pending writes abandoned")
		return ctx.Err()
	}
}
