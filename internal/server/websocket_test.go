package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codeclash/codeclash-server/internal/config"
	"github.com/codeclash/codeclash-server/internal/game"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/rules"
	"github.com/codeclash/codeclash-server/internal/game/state"
	"github.com/codeclash/codeclash-server/internal/room"
)

func wsConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Path:              "/ws",
		MessagesPerSecond: 1000,
		Burst:             1000,
		MaxMessageBytes:   64 * 1024,
	}
}

func startHub(t *testing.T, cfg config.WebSocketConfig) (*room.Manager, string) {
	t.Helper()
	m := newRoomManager(t)
	hub := NewHub(m, cfg, zap.NewNop())
	srv := httptest.NewServer(NewWebSocketServer(cfg, hub).Handler)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return m, "ws" + strings.TrimPrefix(srv.URL, "http") + cfg.Path
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dialHub(t *testing.T, url string) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &wsClient{t: t, conn: conn}
	welcome := c.next()
	require.Equal(t, MsgWelcome, welcome.Type)
	var data struct {
		ConnectionID string `json:"connectionId"`
	}
	require.NoError(t, json.Unmarshal(welcome.Data, &data))
	require.NotEmpty(t, data.ConnectionID)
	c.id = data.ConnectionID
	return c
}

func (c *wsClient) send(msgType, id string, data any) {
	c.t.Helper()
	env := Envelope{Type: msgType, ID: id}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(c.t, err)
		env.Data = raw
	}
	require.NoError(c.t, c.conn.WriteJSON(env))
}

func (c *wsClient) next() Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env Envelope
	require.NoError(c.t, c.conn.ReadJSON(&env))
	return env
}

// until reads frames until one satisfies match.
func (c *wsClient) until(match func(Envelope) bool) Envelope {
	c.t.Helper()
	for {
		env := c.next()
		if match(env) {
			return env
		}
	}
}

// response waits for the answer to request id.
func (c *wsClient) response(id string) Envelope {
	c.t.Helper()
	return c.until(func(env Envelope) bool { return env.ID == id })
}

func (c *wsClient) request(msgType, id string, data any) Envelope {
	c.t.Helper()
	c.send(msgType, id, data)
	env := c.response(id)
	require.Equal(c.t, msgType, env.Type, "error: %+v", env.Error)
	return env
}

func decodeUpdate(t *testing.T, env Envelope) Update {
	t.Helper()
	var u Update
	require.NoError(t, json.Unmarshal(env.Data, &u))
	return u
}

func hasEvent(events []rules.Event, typ rules.EventType) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func (c *wsClient) updateWith(typ rules.EventType) Update {
	c.t.Helper()
	env := c.until(func(env Envelope) bool {
		return env.Type == MsgUpdate && hasEvent(decodeUpdate(c.t, env).Events, typ)
	})
	return decodeUpdate(c.t, env)
}

func TestWebSocketGameAgainstAI(t *testing.T) {
	_, url := startHub(t, wsConfig())
	c := dialHub(t, url)

	env := c.request(MsgCreateRoom, "1", map[string]any{
		"nickname": "host",
		"settings": map[string]any{"maxPlayers": 2, "aiPlayers": 1},
	})
	var created seatResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, c.id, created.Seat.ConnectionID)
	assert.Equal(t, created.Seat.RoomCode, env.RoomCode)
	assert.Len(t, created.View.Players, 2)

	c.send(MsgStartGame, "2", nil)
	started := c.updateWith(rules.EventGameStarted)
	assert.Equal(t, state.StatusInProgress, started.View.Status)
	assert.NotEmpty(t, started.View.Players[0].Hand)
	assert.Empty(t, started.View.Players[1].Hand)
	assert.Equal(t, MsgStartGame, c.response("2").Type)

	c.request(MsgAction, "3", game.PassTurn(created.Seat.PlayerID))
	c.until(func(env Envelope) bool {
		if env.Type != MsgUpdate {
			return false
		}
		u := decodeUpdate(t, env)
		return u.View.Turn == 2 && u.View.CurrentPlayerID == created.Seat.PlayerID
	})

	env = c.request(MsgHistory, "4", map[string]any{"limit": 5})
	var history []game.HistoryEntry
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.GreaterOrEqual(t, len(history), 2)
}

func requireWSError(t *testing.T, env Envelope, code gameerr.Code) {
	t.Helper()
	require.Equal(t, MsgError, env.Type)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(code), env.Error.Code)
	assert.Equal(t, code.Category().String(), env.Error.Category)
	assert.NotEmpty(t, env.Error.Message)
}

func TestWebSocketErrorEnvelopes(t *testing.T) {
	_, url := startHub(t, wsConfig())
	c := dialHub(t, url)

	c.send(MsgAction, "1", game.PassTurn("me"))
	requireWSError(t, c.response("1"), gameerr.CodeRoomNotFound)

	c.send("dance", "2", nil)
	requireWSError(t, c.response("2"), gameerr.CodeInvalidAction)

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	requireWSError(t, c.next(), gameerr.CodeInvalidAction)

	c.send(MsgJoinRoom, "3", map[string]any{"roomCode": "ZZZZZZ", "nickname": "x"})
	requireWSError(t, c.response("3"), gameerr.CodeRoomNotFound)
}

func TestWebSocketRateLimit(t *testing.T) {
	cfg := wsConfig()
	cfg.MessagesPerSecond = 0.001
	cfg.Burst = 2
	_, url := startHub(t, cfg)
	c := dialHub(t, url)

	for i := 0; i < 3; i++ {
		c.send(MsgState, "", nil)
	}
	limited := 0
	for i := 0; i < 3; i++ {
		env := c.next()
		require.Equal(t, MsgError, env.Type)
		if env.Error.Code == codeRateLimited {
			limited++
		}
	}
	assert.Equal(t, 1, limited)
}

func TestWebSocketDisconnectAndReconnect(t *testing.T) {
	_, url := startHub(t, wsConfig())
	host := dialHub(t, url)
	guest := dialHub(t, url)

	env := host.request(MsgCreateRoom, "1", map[string]any{"nickname": "host", "settings": map[string]any{"maxPlayers": 2}})
	var created seatResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	code := created.Seat.RoomCode

	env = guest.request(MsgJoinRoom, "1", map[string]any{"roomCode": code, "nickname": "guest"})
	var joined seatResponse
	require.NoError(t, json.Unmarshal(env.Data, &joined))
	joinedUpdate := host.updateWith(rules.EventPlayerJoined)
	assert.Len(t, joinedUpdate.View.Players, 2)

	host.request(MsgStartGame, "2", nil)
	require.NoError(t, guest.conn.Close())

	dropped := host.updateWith(rules.EventPlayerDisconnected)
	assert.False(t, dropped.View.Players[1].Connected)
	assert.Equal(t, state.StatusInProgress, dropped.View.Status)

	back := dialHub(t, url)
	env = back.request(MsgReconnect, "1", map[string]any{"roomCode": code, "connectionId": guest.id})
	var view state.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.NotEmpty(t, view.Players[1].Hand)
	assert.True(t, view.Players[1].Connected)

	restored := host.updateWith(rules.EventPlayerReconnected)
	assert.True(t, restored.View.Players[1].Connected)

	env = back.request(MsgState, "2", nil)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, joined.Seat.PlayerID, view.Players[1].ID)
}

func TestWebSocketRoomClosedPush(t *testing.T) {
	m, url := startHub(t, wsConfig())
	host := dialHub(t, url)

	env := host.request(MsgCreateRoom, "1", map[string]any{"nickname": "host"})
	var created seatResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))

	require.NoError(t, m.CloseRoom(created.Seat.RoomCode))
	closed := host.until(func(env Envelope) bool { return env.Type == MsgRoomClosed })
	assert.Equal(t, created.Seat.RoomCode, closed.RoomCode)

	host.send(MsgState, "2", nil)
	requireWSError(t, host.response("2"), gameerr.CodeRoomNotFound)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	cfg := wsConfig()
	cfg.AllowedOrigins = []string{"https://play.example"}
	_, url := startHub(t, cfg)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://play.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestHealthz(t *testing.T) {
	m := newRoomManager(t)
	srv := httptest.NewServer(NewWebSocketServer(wsConfig(), NewHub(m, wsConfig(), nil)).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
