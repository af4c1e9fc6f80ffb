package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/clanchat/internal/adapters/auth"
	"github.com/dkeye/clanchat/internal/adapters/store"
	"github.com/dkeye/clanchat/internal/app"
	"github.com/dkeye/clanchat/internal/app/orch"
	"github.com/dkeye/clanchat/internal/config"
	"github.com/dkeye/clanchat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv      *httptest.Server
	verifier *auth.JWTVerifier
	db       *store.Store
	orch     *orch.Orchestrator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, db.CreateAccount(ctx, "u-alice", "alice"))
	require.NoError(t, db.CreateAccount(ctx, "u-bob", "bob"))
	require.NoError(t, db.CreateAccount(ctx, "u-eve", "eve"))
	require.NoError(t, db.CreateServer(ctx, "guild1", "u-alice"))
	require.NoError(t, db.AddMember(ctx, "guild1", "u-bob"))
	require.NoError(t, db.AddChannel(ctx, "guild1", "random"))

	cfg := &config.Config{
		Mode:           "test",
		Secret:         "cookie-secret",
		ReadLimit:      4096,
		PingPeriod:     5 * time.Second,
		SendBuffer:     16,
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	verifier := auth.NewJWTVerifier(auth.Config{Secret: "jwt-secret", TTL: time.Hour})
	rooms := app.NewRouter(db, app.RouterConfig{})
	o := orch.New(app.NewPresence(), rooms, app.SimplePolicy{}, nil)

	srvCtx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(SetupRouter(srvCtx, cfg, Deps{Orch: o, Verifier: verifier, Directory: db}))
	t.Cleanup(func() {
		srv.Close()
		o.Shutdown()
		cancel()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
		defer closeCancel()
		_ = rooms.Close(closeCtx)
		_ = db.Close()
	})
	return &testServer{srv: srv, verifier: verifier, db: db, orch: o}
}

func (s *testServer) token(t *testing.T, id domain.UserID, name string) string {
	t.Helper()
	token, err := s.verifier.Issue(id, name)
	require.NoError(t, err)
	return token
}

func (s *testServer) get(t *testing.T, client *http.Client, path, token string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRouter_Healthz(t *testing.T) {
	s := newTestServer(t)
	var body map[string]any
	assert.Equal(t, http.StatusOK, s.get(t, http.DefaultClient, "/healthz", "", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.get(t, http.DefaultClient, "/api/servers/guild1/members", "", nil))
	assert.Equal(t, http.StatusUnauthorized, s.get(t, http.DefaultClient, "/api/rooms", "bogus", nil))
}

func TestRouter_MembersWithPresence(t *testing.T) {
	s := newTestServer(t)
	alice := s.token(t, "u-alice", "alice")

	conn := s.dial(t, alice)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	var body struct {
		Members  []MemberView `json:"members"`
		Channels []string     `json:"channels"`
	}
	require.Equal(t, http.StatusOK, s.get(t, http.DefaultClient, "/api/servers/guild1/members", alice, &body))
	assert.Equal(t, []MemberView{
		{ID: "u-alice", Username: "alice", Online: true},
		{ID: "u-bob", Username: "bob", Online: false},
	}, body.Members)
	assert.Equal(t, []string{"general", "random"}, body.Channels)

	eve := s.token(t, "u-eve", "eve")
	assert.Equal(t, http.StatusNotFound, s.get(t, http.DefaultClient, "/api/servers/guild1/members", eve, nil))
	assert.Equal(t, http.StatusNotFound, s.get(t, http.DefaultClient, "/api/servers/nope/members", alice, nil))
}

func TestRouter_HistoryAfterLiveMessage(t *testing.T) {
	s := newTestServer(t)
	bob := s.token(t, "u-bob", "bob")

	conn := s.dial(t, bob)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "join_room", "room": "guild1/general"}))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "chat_message", "room": "guild1/general", "message": "hi all"}))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	var rooms struct {
		Rooms []map[string]any `json:"rooms"`
	}
	require.Equal(t, http.StatusOK, s.get(t, http.DefaultClient, "/api/rooms", bob, &rooms))
	require.Len(t, rooms.Rooms, 1)
	assert.Equal(t, "guild1/general", rooms.Rooms[0]["room"])

	var body struct {
		Messages []domain.Message `json:"messages"`
	}
	assert.Eventually(t, func() bool {
		body.Messages = nil
		return s.get(t, http.DefaultClient, "/api/servers/guild1/channels/general/messages", bob, &body) == http.StatusOK &&
			len(body.Messages) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "hi all", body.Messages[0].Body)
	assert.Equal(t, "bob", body.Messages[0].Author)

	assert.Equal(t, http.StatusBadRequest, s.get(t, http.DefaultClient, "/api/servers/guild1/channels/general/messages?limit=x", bob, nil))
}

func TestRouter_SessionRemembersToken(t *testing.T) {
	s := newTestServer(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	alice := s.token(t, "u-alice", "alice")
	assert.Equal(t, http.StatusOK, s.get(t, client, "/api/rooms?token="+alice, "", nil))
	assert.Equal(t, http.StatusOK, s.get(t, client, "/api/rooms", "", nil), "cookie session carries the token")
	assert.Equal(t, http.StatusUnauthorized, s.get(t, http.DefaultClient, "/api/rooms", "", nil))
}

func TestRouter_SocketRefusesForeignOrigin(t *testing.T) {
	s := newTestServer(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	alice := s.token(t, "u-alice", "alice")
	require.Equal(t, http.StatusOK, s.get(t, client, "/api/rooms?token="+alice, "", nil))

	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/ws"
	dialer := websocket.Dialer{Jar: jar, HandshakeTimeout: 2 * time.Second}

	conn, resp, err := dialer.Dial(u, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	assert.Nil(t, conn)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, s.orch.SessionCount())

	conn, _, err = dialer.Dial(u, http.Header{"Origin": {"http://localhost:3000"}})
	require.NoError(t, err, "a listed origin may reuse the cookie session")
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "whoami"}))
	var who map[string]any
	require.NoError(t, conn.ReadJSON(&who))
	assert.Equal(t, "alice", who["username"])
}
