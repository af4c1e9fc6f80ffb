package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/clanchat/internal/core"
	"github.com/dkeye/clanchat/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(
	ctx context.Context,
	sid core.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, EventJoinRoom, codeBadPayload)
		return
	}

	room := domain.RoomID(p.Room)
	if err := ctl.Orch.Join(ctx, sid, room); err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).Msg("join failed")
		ctl.sendError(conn, EventJoinRoom, errorCode(err))
		return
	}

	ctl.sendJSON(conn, struct {
		Type string        `json:"type"`
		Room domain.RoomID `json:"room"`
	}{
		Type: "joined",
		Room: room,
	})
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(sid core.ConnID, conn *WsSignalConn) {
	if err := ctl.Orch.Leave(sid); err != nil {
		ctl.sendError(conn, EventLeave, errorCode(err))
		return
	}
	ctl.sendJSON(conn, map[string]any{"type": "left"})
}

func (ctl *SignalWSController) handleChat(
	sid core.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Room    string `json:"room"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Message == "" {
		log.Warn().Err(err).Str("module", "signal").Msg("bad chat payload")
		ctl.sendError(conn, EventChat, codeBadPayload)
		return
	}

	if err := ctl.Orch.Send(sid, domain.RoomID(p.Room), p.Message); err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).Msg("send failed")
		ctl.sendError(conn, EventChat, errorCode(err))
	}
}
