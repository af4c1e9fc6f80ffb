package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/clanchat/internal/adapters/auth"
	"github.com/dkeye/clanchat/internal/app"
	"github.com/dkeye/clanchat/internal/app/apptest"
	"github.com/dkeye/clanchat/internal/app/orch"
	"github.com/dkeye/clanchat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireEvent struct {
	Type     string `json:"type"`
	Event    string `json:"event"`
	Error    string `json:"error"`
	User     string `json:"user"`
	Message  string `json:"message"`
	Room     string `json:"room"`
	ID       string `json:"id"`
	Username string `json:"username"`
}

type testEnv struct {
	srv      *httptest.Server
	orch     *orch.Orchestrator
	oracle   *apptest.Oracle
	verifier *auth.JWTVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	oracle := apptest.NewOracle()
	router := app.NewRouter(oracle, app.RouterConfig{})
	o := orch.New(app.NewPresence(), router, app.SimplePolicy{}, nil)
	verifier := auth.NewJWTVerifier(auth.Config{Secret: "test-secret", TTL: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	ctrl := NewSignalWSController(o, verifier, Config{PingPeriod: 5 * time.Second})
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set(TokenKey, c.Query("token"))
		ctrl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		o.Shutdown()
		cancel()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
		defer closeCancel()
		_ = router.Close(closeCtx)
	})
	return &testEnv{srv: srv, orch: o, oracle: oracle, verifier: verifier}
}

func (e *testEnv) wsURL(token string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + url.QueryEscape(token)
}

func (e *testEnv) dial(t *testing.T, id domain.UserID, name string) *websocket.Conn {
	t.Helper()
	token, err := e.verifier.Issue(id, name)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func read(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e wireEvent
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func join(t *testing.T, conn *websocket.Conn, room string) {
	t.Helper()
	send(t, conn, map[string]string{"type": EventJoinRoom, "room": room})
	e := read(t, conn)
	require.Equal(t, "joined", e.Type, "join %s: %+v", room, e)
	require.Equal(t, room, e.Room)
}

// expectQuiet proves nothing is queued for conn: a ping must come back as the next frame.
func expectQuiet(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	send(t, conn, map[string]string{"type": EventPing})
	assert.Equal(t, "pong", read(t, conn).Type)
}

func TestSignal_RefusesBadCredential(t *testing.T) {
	env := newTestEnv(t)

	forger := auth.NewJWTVerifier(auth.Config{Secret: "wrong"})
	forged, err := forger.Issue("ua", "A")
	require.NoError(t, err)

	for _, token := range []string{"", "garbage", forged} {
		conn, resp, err := websocket.DefaultDialer.Dial(env.wsURL(token), nil)
		if conn != nil {
			_ = conn.Close()
		}
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	assert.Zero(t, env.orch.SessionCount())
	assert.Zero(t, env.orch.Presence.Count())
}

func TestSignal_RoomScenario(t *testing.T) {
	env := newTestEnv(t)
	env.oracle.Allow("guild1", "ua", "ub")

	a := env.dial(t, "ua", "A")
	b := env.dial(t, "ub", "B")
	join(t, a, "guild1/general")
	join(t, b, "guild1/general")

	send(t, a, map[string]string{"type": EventChat, "room": "guild1/general", "message": "hello"})
	want := wireEvent{Type: EventChat, User: "A", Message: "hello", Room: "guild1/general"}
	assert.Equal(t, want, read(t, a))
	assert.Equal(t, want, read(t, b))

	join(t, b, "guild1/random")
	send(t, a, map[string]string{"type": EventChat, "room": "guild1/general", "message": "again"})
	assert.Equal(t, "again", read(t, a).Message)
	expectQuiet(t, b)

	require.True(t, env.oracle.WaitPersisted(2, time.Second))
}

func TestSignal_ErrorEvents(t *testing.T) {
	env := newTestEnv(t)
	env.oracle.Allow("guild1", "ua")
	a := env.dial(t, "ua", "A")

	send(t, a, map[string]string{"type": EventChat, "room": "guild1/general", "message": "too early"})
	assert.Equal(t, wireEvent{Type: "error", Event: EventChat, Error: codeNotInRoom}, read(t, a))

	send(t, a, map[string]string{"type": EventJoinRoom, "room": "guild2/general"})
	assert.Equal(t, wireEvent{Type: "error", Event: EventJoinRoom, Error: codeUnauthorized}, read(t, a))

	send(t, a, map[string]string{"type": EventJoinRoom})
	assert.Equal(t, codeBadPayload, read(t, a).Error)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, codeBadPayload, read(t, a).Error)

	send(t, a, map[string]string{"type": "dance"})
	assert.Equal(t, wireEvent{Type: "error", Event: "dance", Error: codeUnknownEvent}, read(t, a))

	join(t, a, "guild1/general")
	send(t, a, map[string]string{"type": EventChat, "room": "guild1/random", "message": "wrong room"})
	assert.Equal(t, codeNotInRoom, read(t, a).Error)
}

func TestSignal_WhoAmIAndLeave(t *testing.T) {
	env := newTestEnv(t)
	env.oracle.Allow("guild1", "ua")
	a := env.dial(t, "ua", "A")

	join(t, a, "guild1/general")
	send(t, a, map[string]string{"type": EventWhoAmI})
	who := read(t, a)
	assert.Equal(t, "whoami", who.Type)
	assert.Equal(t, "ua", who.ID)
	assert.Equal(t, "A", who.Username)
	assert.Equal(t, "guild1/general", who.Room)

	send(t, a, map[string]string{"type": EventLeave})
	assert.Equal(t, "left", read(t, a).Type)
	assert.Empty(t, env.orch.Router.Rooms())
}

func TestSignal_PresenceAcrossDevices(t *testing.T) {
	env := newTestEnv(t)
	env.oracle.Allow("guild1", "ua")

	phone := env.dial(t, "ua", "A")
	laptop := env.dial(t, "ua", "A")
	expectQuiet(t, phone)
	expectQuiet(t, laptop)
	assert.True(t, env.orch.IsOnline("ua"))

	require.NoError(t, phone.Close())
	assert.Eventually(t, func() bool { return env.orch.SessionCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, env.orch.IsOnline("ua"))

	require.NoError(t, laptop.Close())
	assert.Eventually(t, func() bool { return !env.orch.IsOnline("ua") }, 2*time.Second, 10*time.Millisecond)
}

func TestSignal_DisconnectLeavesRoom(t *testing.T) {
	env := newTestEnv(t)
	env.oracle.Allow("guild1", "ua", "ub")
	a := env.dial(t, "ua", "A")
	b := env.dial(t, "ub", "B")
	join(t, a, "guild1/general")
	join(t, b, "guild1/general")

	require.NoError(t, b.Close())
	assert.Eventually(t, func() bool {
		return len(env.orch.Router.Members("guild1/general")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	send(t, a, map[string]string{"type": EventChat, "message": "alone"})
	assert.Equal(t, "alone", read(t, a).Message)
}
