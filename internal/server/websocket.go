package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/codeclash/codeclash-server/internal/config"
	"github.com/codeclash/codeclash-server/internal/game"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/rules"
	"github.com/codeclash/codeclash-server/internal/game/state"
	"github.com/codeclash/codeclash-server/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// Message types a client may send. A successful request is answered with a
// message of the same type; a failed one with an "error" message. Both echo
// the request id.
const (
	MsgCreateRoom = "create_room"
	MsgJoinRoom   = "join_room"
	MsgLeaveRoom  = "leave_room"
	MsgStartGame  = "start_game"
	MsgAction     = "action"
	MsgTargets    = "targets"
	MsgState      = "state"
	MsgHistory    = "history"
	MsgReconnect  = "reconnect"
)

// Message types only the server sends.
const (
	MsgWelcome    = "welcome"
	MsgError      = "error"
	MsgUpdate     = "update"
	MsgRoomClosed = "room_closed"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Type     string          `json:"type"`
	ID       string          `json:"id,omitempty"`
	RoomCode string          `json:"roomCode,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    *ErrorPayload   `json:"error,omitempty"`
}

// Update is the data of an "update" push: the receiver's view and the events
// that produced it.
type Update struct {
	View   *state.View   `json:"view"`
	Events []rules.Event `json:"events"`
}

type createRoomData struct {
	Nickname string         `json:"nickname"`
	Settings state.Settings `json:"settings"`
}

type joinRoomData struct {
	RoomCode string `json:"roomCode"`
	Nickname string `json:"nickname"`
}

type targetsData struct {
	CardID string `json:"cardId"`
}

type historyData struct {
	Limit int `json:"limit"`
}

type reconnectData struct {
	RoomCode     string `json:"roomCode"`
	ConnectionID string `json:"connectionId"`
}

// Hub tracks websocket clients by connection id and fans room notifications
// out to them.
type Hub struct {
	rooms    *room.Manager
	cfg      config.WebSocketConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a hub and subscribes it to the manager's notifications.
func NewHub(rooms *room.Manager, cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		rooms:   rooms,
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*Client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	rooms.SetNotificationHandler(h.deliver)
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := h.newClient(conn)
	h.register(c)
	c.reply(MsgWelcome, "", map[string]string{"connectionId": c.id})

	go c.writePump()
	c.readPump()
}

func (h *Hub) newClient(conn *websocket.Conn) *Client {
	burst := h.cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(h.cfg.MessagesPerSecond)
	if h.cfg.MessagesPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Client{
		id:      uuid.NewString(),
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(limit, burst),
		logger:  h.logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.String("connection_id", c.id))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()

	if code := c.room(); code != "" {
		if err := h.rooms.HandleDisconnection(code, c.id); err != nil && gameerr.CodeOf(err) == "" {
			h.logger.Warn("disconnect handling failed",
				zap.String("room_code", code),
				zap.String("connection_id", c.id),
				zap.Error(err),
			)
		}
	}
	h.logger.Debug("websocket client disconnected", zap.String("connection_id", c.id))
}

func (h *Hub) client(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.close()
	}
}

// deliver pushes a room notification to the connections it names.
func (h *Hub) deliver(n room.Notification) {
	for connID, view := range n.Views {
		c, ok := h.client(connID)
		if !ok {
			continue
		}
		c.push(MsgUpdate, n.RoomCode, Update{View: view, Events: n.Events})
	}
	if !n.Closed {
		return
	}

	h.mu.RLock()
	var members []*Client
	for _, c := range h.clients {
		if c.room() == n.RoomCode {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range members {
		c.leave(n.RoomCode)
		c.push(MsgRoomClosed, n.RoomCode, nil)
	}
}

// NewWebSocketServer serves the hub on cfg.Path with a /healthz probe.
func NewWebSocketServer(cfg config.WebSocketConfig, hub *Hub) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Client is one websocket connection.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter
	logger  *zap.Logger

	closeOnce sync.Once
	mu        sync.Mutex
	roomCode  string
}

func (c *Client) room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

func (c *Client) join(code string) {
	c.mu.Lock()
	c.roomCode = code
	c.mu.Unlock()
}

// leave clears the room only if it still is code.
func (c *Client) leave(code string) {
	c.mu.Lock()
	if c.roomCode == code {
		c.roomCode = ""
	}
	c.mu.Unlock()
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	if c.hub.cfg.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(c.hub.cfg.MaxMessageBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.String("connection_id", c.id), zap.Error(err))
			}
			return
		}
		if !c.limiter.Allow() {
			c.enqueue(Envelope{Type: MsgError, Error: &ErrorPayload{
				Code:     codeRateLimited,
				Category: gameerr.CategoryCapacity.String(),
				Message:  "too many messages",
			}})
			continue
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.fail("", gameerr.New(gameerr.CodeInvalidAction, "malformed message: %v", err))
			continue
		}
		c.handle(env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// enqueue hands a frame to the write pump. A client whose buffer is full is
// too slow to keep up and gets disconnected.
func (c *Client) enqueue(env Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("encode websocket message", zap.String("type", env.Type), zap.Error(err))
		return
	}
	select {
	case <-c.done:
	case c.send <- b:
	default:
		c.logger.Warn("websocket send buffer full, disconnecting", zap.String("connection_id", c.id))
		c.close()
	}
}

func (c *Client) push(msgType, roomCode string, data any) {
	env := Envelope{Type: msgType, RoomCode: roomCode}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			c.logger.Error("encode websocket payload", zap.String("type", msgType), zap.Error(err))
			return
		}
		env.Data = raw
	}
	c.enqueue(env)
}

func (c *Client) reply(msgType, id string, data any) {
	env := Envelope{Type: msgType, ID: id, RoomCode: c.room()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			c.fail(id, err)
			return
		}
		env.Data = raw
	}
	c.enqueue(env)
}

func (c *Client) fail(id string, err error) {
	payload := errorPayload(err)
	c.enqueue(Envelope{Type: MsgError, ID: id, RoomCode: c.room(), Error: &payload})
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return gameerr.New(gameerr.CodeInvalidAction, "malformed data: %v", err)
	}
	return nil
}

var errNotInRoom = gameerr.New(gameerr.CodeRoomNotFound, "connection is not in a room")

func (c *Client) seated() (string, error) {
	code := c.room()
	if code == "" {
		return "", errNotInRoom
	}
	return code, nil
}

// handle routes one request to the room manager.
func (c *Client) handle(env Envelope) {
	data, err := c.dispatch(env)
	if err != nil {
		c.logger.Debug("websocket request rejected",
			zap.String("connection_id", c.id),
			zap.String("type", env.Type),
			zap.Error(err),
		)
		c.fail(env.ID, err)
		return
	}
	c.reply(env.Type, env.ID, data)
}

func (c *Client) dispatch(env Envelope) (any, error) {
	rooms := c.hub.rooms
	switch env.Type {
	case MsgCreateRoom:
		if c.room() != "" {
			return nil, gameerr.New(gameerr.CodeInvalidAction, "already seated in room %s", c.room())
		}
		var d createRoomData
		if err := decodeData(env.Data, &d); err != nil {
			return nil, err
		}
		seat, err := rooms.CreateRoom(d.Settings, c.id, d.Nickname)
		if err != nil {
			return nil, err
		}
		c.join(seat.RoomCode)
		view, err := rooms.View(seat.RoomCode, c.id)
		if err != nil {
			return nil, err
		}
		return seatResponse{Seat: seat, View: view}, nil

	case MsgJoinRoom:
		if c.room() != "" {
			return nil, gameerr.New(gameerr.CodeInvalidAction, "already seated in room %s", c.room())
		}
		var d joinRoomData
		if err := decodeData(env.Data, &d); err != nil {
			return nil, err
		}
		seat, view, err := rooms.JoinRoom(d.RoomCode, c.id, d.Nickname)
		if err != nil {
			return nil, err
		}
		c.join(seat.RoomCode)
		return seatResponse{Seat: seat, View: view}, nil

	case MsgLeaveRoom:
		code, err := c.seated()
		if err != nil {
			return nil, err
		}
		if err := rooms.LeaveRoom(code, c.id); err != nil {
			return nil, err
		}
		c.leave(code)
		return map[string]string{"roomCode": code}, nil

	case MsgStartGame:
		code, err := c.seated()
		if err != nil {
			return nil, err
		}
		return nil, rooms.StartGame(code, c.id)

	case MsgAction:
		code, err := c.seated()
		if err != nil {
			return nil, err
		}
		var action game.PlayerAction
		if err := decodeData(env.Data, &action); err != nil {
			return nil, err
		}
		return rooms.ProcessAction(code, c.id, action)

	case MsgTargets:
		code, err := c.seated()
		if err != nil {
			return nil, err
		}
		var d targetsData
		if err := decodeData(env.Data, &d); err != nil {
			return nil, err
		}
		req, opts, err := rooms.ComputeTargets(code, c.id, d.CardID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"requirement": req, "options": opts}, nil

	case MsgState:
		code, err := c.seated()
		if err != nil {
			return nil, err
		}
		return rooms.View(code, c.id)

	case MsgHistory:
		code, err := c.seated()
		if err != nil {
			return nil, err
		}
		var d historyData
		if err := decodeData(env.Data, &d); err != nil {
			return nil, err
		}
		return rooms.History(code, d.Limit)

	case MsgReconnect:
		if c.room() != "" {
			return nil, gameerr.New(gameerr.CodeInvalidAction, "already seated in room %s", c.room())
		}
		var d reconnectData
		if err := decodeData(env.Data, &d); err != nil {
			return nil, err
		}
		if d.ConnectionID == "" {
			return nil, gameerr.New(gameerr.CodeInvalidAction, "connectionId of the previous connection is required")
		}
		view, err := rooms.Reconnect(d.RoomCode, d.ConnectionID, c.id)
		if err != nil {
			return nil, err
		}
		c.join(d.RoomCode)
		if old, ok := c.hub.client(d.ConnectionID); ok {
			old.leave(d.RoomCode)
		}
		return view, nil

	default:
		return nil, gameerr.New(gameerr.CodeInvalidAction, "unknown message type %q", env.Type)
	}
}
