// Package mcp lets an MCP agent take a seat at a CodeClash table against AI
// opponents over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/rules"
	"github.com/codeclash/codeclash-server/internal/game/state"
	"github.com/codeclash/codeclash-server/internal/room"
)

// ConnectionID is the connection id the agent is seated under.
const ConnectionID = "mcp-agent"

// DefaultTurnTimeout bounds how long a tool waits for the AI players.
const DefaultTurnTimeout = 30 * time.Second

// ToolResponse is the JSON body every tool returns.
type ToolResponse struct {
	RoomCode string        `json:"room_code,omitempty"`
	PlayerID string        `json:"player_id,omitempty"`
	Events   []rules.Event `json:"events"`
	State    *state.View   `json:"state,omitempty"`
	YourTurn bool          `json:"your_turn"`
	GameOver bool          `json:"game_over"`
	Winner   string        `json:"winner,omitempty"`
	Result   any           `json:"result,omitempty"`
}

// Seat is the agent's single seat. One process holds one seat at a time.
type Seat struct {
	rooms       *room.Manager
	logger      *zap.Logger
	turnTimeout time.Duration

	mu       sync.Mutex
	roomCode string
	playerID string
	events   []rules.Event
	changed  chan struct{}
}

// NewSeat creates a seat and subscribes it to the manager's notifications.
func NewSeat(rooms *room.Manager, logger *zap.Logger) *Seat {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Seat{
		rooms:       rooms,
		logger:      logger,
		turnTimeout: DefaultTurnTimeout,
		changed:     make(chan struct{}, 1),
	}
	rooms.SetNotificationHandler(s.observe)
	return s
}

// SetTurnTimeout overrides DefaultTurnTimeout.
func (s *Seat) SetTurnTimeout(d time.Duration) {
	s.turnTimeout = d
}

func (s *Seat) observe(n room.Notification) {
	s.mu.Lock()
	if n.RoomCode != s.roomCode {
		s.mu.Unlock()
		return
	}
	s.events = append(s.events, n.Events...)
	if n.Closed {
		s.roomCode, s.playerID = "", ""
	}
	s.mu.Unlock()

	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Seat) seat() (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomCode == "" {
		return "", "", gameerr.New(gameerr.CodeRoomNotFound, "no game is running, use create_room first")
	}
	return s.roomCode, s.playerID, nil
}

func (s *Seat) drainEvents() []rules.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events
	s.events = nil
	if events == nil {
		events = []rules.Event{}
	}
	return events
}

// create seats the agent as host of a fresh room. A finished game is left
// behind; a running one must be played out first.
func (s *Seat) create(nickname string, settings state.Settings) (*ToolResponse, error) {
	if code, _, err := s.seat(); err == nil {
		view, viewErr := s.rooms.View(code, ConnectionID)
		if viewErr == nil && view.Status != state.StatusFinished {
			return nil, gameerr.New(gameerr.CodeInvalidAction, "room %s is still in play", code)
		}
		_ = s.rooms.LeaveRoom(code, ConnectionID)
	}

	seat, err := s.rooms.CreateRoom(settings, ConnectionID, nickname)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.roomCode, s.playerID, s.events = seat.RoomCode, seat.PlayerID, nil
	s.mu.Unlock()

	s.logger.Info("agent seated", zap.String("room_code", seat.RoomCode), zap.String("player_id", seat.PlayerID))
	return s.snapshot(nil)
}

// snapshot reports the current view and the events gathered since the last
// response.
func (s *Seat) snapshot(result any) (*ToolResponse, error) {
	code, playerID, err := s.seat()
	if err != nil {
		return nil, err
	}
	view, err := s.rooms.View(code, ConnectionID)
	if err != nil {
		return nil, err
	}
	return &ToolResponse{
		RoomCode: code,
		PlayerID: playerID,
		Events:   s.drainEvents(),
		State:    view,
		YourTurn: view.Status == state.StatusInProgress && view.CurrentPlayerID == playerID,
		GameOver: view.Status == state.StatusFinished,
		Winner:   view.Winner,
		Result:   result,
	}, nil
}

// awaitTurn blocks until it is the agent's turn again or the game is over.
func (s *Seat) awaitTurn(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	for {
		code, playerID, err := s.seat()
		if err != nil {
			return err
		}
		view, err := s.rooms.View(code, ConnectionID)
		if err != nil {
			return err
		}
		if view.Status != state.StatusInProgress || view.CurrentPlayerID == playerID {
			return nil
		}
		select {
		case <-s.changed:
		case <-ctx.Done():
			return fmt.Errorf("waiting for the other players: %w", ctx.Err())
		}
	}
}

func respondJSON(resp *ToolResponse) string {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal error: %v"}`, err)
	}
	return string(data)
}
