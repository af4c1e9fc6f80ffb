// Package apptest holds in-memory stand-ins for the transport and the
// membership oracle, shared by the relay tests.
package apptest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/clanchat/internal/core"
	"github.com/dkeye/clanchat/internal/domain"
)

var (
	ErrFull   = errors.New("send buffer full")
	ErrClosed = errors.New("connection closed")
)

// Event is the decoded form of any frame sent to a Conn.
type Event struct {
	Type    string `json:"type"`
	User    string `json:"user"`
	Message string `json:"message"`
	Room    string `json:"room"`
	Error   string `json:"error"`
}

// Conn records frames instead of writing them to a socket.
type Conn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	full   bool
}

func NewConn() *Conn { return &Conn{} }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.full {
		return ErrFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SetFull makes every following TrySend fail with backpressure.
func (c *Conn) SetFull(full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full = full
}

func (c *Conn) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, 0, len(c.frames))
	for _, f := range c.frames {
		var e Event
		if err := json.Unmarshal(f, &e); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// Oracle is a membership table plus a message sink.
type Oracle struct {
	mu         sync.Mutex
	members    map[string]map[domain.UserID]bool
	messages   []domain.Message
	memberErr  error
	persistErr error
	block      chan struct{}
}

func NewOracle() *Oracle {
	return &Oracle{members: make(map[string]map[domain.UserID]bool)}
}

func (o *Oracle) Allow(server string, users ...domain.UserID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.members[server] == nil {
		o.members[server] = make(map[domain.UserID]bool)
	}
	for _, u := range users {
		o.members[server][u] = true
	}
}

func (o *Oracle) Revoke(server string, user domain.UserID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.members[server], user)
}

func (o *Oracle) SetMemberErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.memberErr = err
}

func (o *Oracle) SetPersistErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.persistErr = err
}

// Block holds every PersistMessage until the returned func is called
// or the call's context ends.
func (o *Oracle) Block() (release func()) {
	ch := make(chan struct{})
	o.mu.Lock()
	o.block = ch
	o.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (o *Oracle) IsMember(ctx context.Context, server string, user domain.UserID) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.memberErr != nil {
		return false, o.memberErr
	}
	return o.members[server][user], nil
}

func (o *Oracle) PersistMessage(ctx context.Context, msg domain.Message) error {
	o.mu.Lock()
	block := o.block
	o.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.persistErr != nil {
		return o.persistErr
	}
	o.messages = append(o.messages, msg)
	return nil
}

func (o *Oracle) Persisted() []domain.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.Message(nil), o.messages...)
}

// WaitPersisted polls until n messages were stored or the timeout passes.
func (o *Oracle) WaitPersisted(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(o.Persisted()) >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return len(o.Persisted()) >= n
}
