package signal

import (
	"github.com/dkeye/clanchat/internal/core"
	"github.com/dkeye/clanchat/internal/domain"
)

func (ctl *SignalWSController) handleWhoAmI(sid core.ConnID, conn *WsSignalConn) {
	sess, ok := ctl.Orch.Session(sid)
	if !ok {
		ctl.sendError(conn, EventWhoAmI, codeSessionClosed)
		return
	}
	ctl.sendJSON(conn, struct {
		Type     string        `json:"type"`
		ID       domain.UserID `json:"id"`
		Username string        `json:"username"`
		Room     domain.RoomID `json:"room,omitempty"`
	}{
		Type:     "whoami",
		ID:       sess.User.ID,
		Username: sess.User.Username,
		Room:     sess.Room(),
	})
}
