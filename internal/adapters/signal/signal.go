// Package signal is the WebSocket side of the relay: it authenticates the
// upgrade, pumps frames and turns inbound envelopes into orchestrator calls.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/clanchat/internal/app/orch"
	"github.com/dkeye/clanchat/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// TokenKey is the gin context key holding the bearer credential.
const TokenKey = "bearer_token"

type Config struct {
	ReadLimit  int64
	PingPeriod time.Duration
	WriteWait  time.Duration
	SendBuffer int
	// AllowedOrigins lists browser origins besides this host that may connect.
	// "*" allows any.
	AllowedOrigins []string
}

func DefaultConfig() Config {
	return Config{
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
		WriteWait:  5 * time.Second,
		SendBuffer: 64,
	}
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Verifier core.IdentityVerifier

	cfg      Config
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, verifier core.IdentityVerifier, cfg Config) *SignalWSController {
	def := DefaultConfig()
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = def.PingPeriod
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	return &SignalWSController{
		Orch:     o,
		Verifier: verifier,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: newOriginPolicy(cfg.AllowedOrigins).check,
		},
	}
}

// pongWait must be longer than the ping period.
func (ctl *SignalWSController) pongWait() time.Duration {
	return ctl.cfg.PingPeriod * 10 / 9
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// HandleSignal verifies the credential before upgrading. A refused credential
// gets a 401 and leaves no state behind.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	user, err := ctl.Verifier.Verify(c.GetString(TokenKey))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("remote", c.ClientIP()).Msg("connection refused")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth_failed"})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.cfg.ReadLimit)

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.cfg.SendBuffer),
	}
	sess := ctl.Orch.Connect(conn, user)
	log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Str("user", user.Username).Msg("new WS connection")

	connCtx, cancel := context.WithCancel(ctx)
	go ctl.writePump(connCtx, conn)
	go ctl.readPump(connCtx, cancel, sess.ID, conn)
}
