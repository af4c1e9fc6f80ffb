package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/clanchat/internal/app"
	"github.com/dkeye/clanchat/internal/core"
	"github.com/dkeye/clanchat/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	EventJoinRoom = "join_room"
	EventLeave    = "leave_room"
	EventChat     = app.EventChatMessage
	EventPing     = "ping"
	EventWhoAmI   = "whoami"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(ctl.cfg.WriteWait))
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

// readPump handles events of one connection in receipt order and runs the
// disconnect cleanup when the connection ends.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.Disconnect(sid)
		c.Close()
		cancel()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(ctx, sid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.ConnID, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.sendError(c, "", codeBadPayload)
		return
	}

	switch env.Type {
	case EventJoinRoom:
		ctl.handleJoin(ctx, sid, c, data)
	case EventLeave:
		ctl.handleLeave(sid, c)
	case EventChat:
		ctl.handleChat(sid, c, data)
	case EventPing:
		ctl.handlePing(c)
	case EventWhoAmI:
		ctl.handleWhoAmI(sid, c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, env.Type, codeUnknownEvent)
	}
}

const (
	codeUnauthorized  = "unauthorized"
	codeNotInRoom     = "not_in_room"
	codeRateLimited   = "rate_limited"
	codeBadPayload    = "bad_payload"
	codeUnknownEvent  = "unknown_event"
	codeSessionClosed = "session_closed"
	codeInternal      = "internal"
)

// ErrorEvent goes to the originating connection only.
type ErrorEvent struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Error string `json:"error"`
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return codeUnauthorized
	case errors.Is(err, domain.ErrNotInRoom):
		return codeNotInRoom
	case errors.Is(err, domain.ErrRateLimited):
		return codeRateLimited
	case errors.Is(err, domain.ErrSessionClosed):
		return codeSessionClosed
	}
	return codeInternal
}

func (ctl *SignalWSController) sendError(c core.SignalConnection, event, code string) {
	ctl.sendJSON(c, ErrorEvent{Type: "error", Event: event, Error: code})
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
