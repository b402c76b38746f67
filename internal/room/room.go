// Package room owns live game sessions: the registry of rooms, seating and
// connection tracking, and the single serialized path through which every
// action reaches a room's game state.
package room

import (
	"sync"
	"time"

	"github.com/codeclash/codeclash-server/internal/ai"
	"github.com/codeclash/codeclash-server/internal/game"
	"github.com/codeclash/codeclash-server/internal/game/rules"
	"github.com/codeclash/codeclash-server/internal/game/state"
)

// Room is one isolated game session. Every field below mu is guarded by it.
type Room struct {
	Code      string
	CreatedAt time.Time

	mu            sync.Mutex
	state         *state.GameState
	engine        *game.Engine
	decider       *ai.Decider
	scheduler     *ai.Scheduler
	hostID        string
	connections   map[string]string // connection id -> player id
	personalities map[string]ai.Personality
	grace         map[string]*time.Timer
	pending       []rules.Event
	startedAt     time.Time
	matchID       string
	replay        *game.Replay
	recorded      bool
	closed        bool
	outbox        []outcome
	flushing      bool
}

// Summary is a point-in-time description of a room for listings.
type Summary struct {
	Code      string       `json:"code"`
	Status    state.Status `json:"status"`
	HostID    string       `json:"hostId"`
	Players   int          `json:"players"`
	Humans    int          `json:"humans"`
	Connected int          `json:"connected"`
	Turn      int          `json:"turn"`
	CreatedAt time.Time    `json:"createdAt"`
}

func (r *Room) subscribe() {
	r.engine.Events().Subscribe(func(evt rules.Event) {
		r.pending = append(r.pending, evt)
	})
}

func (r *Room) publishLocked(evt rules.Event) {
	r.engine.Events().Publish(evt)
}

func (r *Room) playerByConnectionLocked(connectionID string) (*state.Player, bool) {
	id, ok := r.connections[connectionID]
	if !ok {
		return nil, false
	}
	return r.state.PlayerByID(id)
}

func (r *Room) summaryLocked() Summary {
	return Summary{
		Code:      r.Code,
		Status:    r.state.Status,
		HostID:    r.hostID,
		Players:   len(r.state.Players),
		Humans:    r.state.HumanCount(),
		Connected: r.state.ConnectedHumans(),
		Turn:      r.state.Turn,
		CreatedAt: r.CreatedAt,
	}
}

// viewsLocked builds one view per connected human keyed by connection id.
func (r *Room) viewsLocked() map[string]*state.View {
	views := make(map[string]*state.View)
	for conn, id := range r.connections {
		p, ok := r.state.PlayerByID(id)
		if !ok || !p.Connected {
			continue
		}
		views[conn] = r.state.ViewFor(id)
	}
	return views
}

// transferHostLocked hands the host role to the first remaining human, or
// the first remaining player when only AI seats are left.
func (r *Room) transferHostLocked() (string, bool) {
	var next *state.Player
	for _, p := range r.state.Players {
		if !p.IsAI {
			next = p
			break
		}
	}
	if next == nil && len(r.state.Players) > 0 {
		next = r.state.Players[0]
	}
	if next == nil {
		r.hostID = ""
		return "", false
	}
	for _, p := range r.state.Players {
		p.IsHost = p.ID == next.ID
	}
	r.hostID = next.ID
	return next.ID, true
}

func (r *Room) stopGraceLocked(playerID string) {
	if t, ok := r.grace[playerID]; ok {
		t.Stop()
		delete(r.grace, playerID)
	}
}

// closeLocked stops every timer the room owns. The caller unregisters it.
func (r *Room) closeLocked() {
	if r.closed {
		return
	}
	r.closed = true
	r.scheduler.Close()
	for id := range r.grace {
		r.stopGraceLocked(id)
	}
}
