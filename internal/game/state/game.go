// Package state holds the mutable aggregate a room owns: players, piles,
// modules and the turn pointer.
package state

import (
	"math/rand/v2"

	"github.com/codeclash/codeclash-server/internal/game/cards"
)

// DefaultHandSize is the number of cards a player holds after drawing.
const DefaultHandSize = 3

// Status is the lifecycle stage of a game.
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
	StatusPaused     Status = "PAUSED"
)

// Difficulty scales the AI thinking delay.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyNormal Difficulty = "NORMAL"
	DifficultyHard   Difficulty = "HARD"
)

// ParseDifficulty maps a config value onto a Difficulty, defaulting to NORMAL.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(s) {
	case DifficultyEasy, DifficultyHard:
		return Difficulty(s)
	default:
		return DifficultyNormal
	}
}

// Settings are fixed at room creation.
type Settings struct {
	MaxPlayers int        `json:"maxPlayers"`
	AIPlayers  int        `json:"aiPlayers"`
	Difficulty Difficulty `json:"difficulty"`
}

// GameState is a room's single mutable aggregate.
type GameState struct {
	Players            []*Player    `json:"players"`
	CurrentPlayerIndex int          `json:"currentPlayerIndex"`
	Turn               int          `json:"turn"`
	DrawPile           []cards.Card `json:"drawPile"`
	DiscardPile        []cards.Card `json:"discardPile"`
	Status             Status       `json:"status"`
	Winner             string       `json:"winner,omitempty"`
	Settings           Settings     `json:"settings"`
}

// New creates an empty WAITING game.
func New(settings Settings) *GameState {
	return &GameState{
		Players:     []*Player{},
		DrawPile:    []cards.Card{},
		DiscardPile: []cards.Card{},
		Status:      StatusWaiting,
		Settings:    settings,
	}
}

// PlayerByID returns the player with the given id.
func (g *GameState) PlayerByID(id string) (*Player, bool) {
	for _, p := range g.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// PlayerByConnection returns the player bound to a connection identity.
func (g *GameState) PlayerByConnection(connectionID string) (*Player, bool) {
	for _, p := range g.Players {
		if p.ConnectionID == connectionID {
			return p, true
		}
	}
	return nil, false
}

// PlayerIndex returns the seat index of the player, or -1.
func (g *GameState) PlayerIndex(id string) int {
	for i, p := range g.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// CurrentPlayer returns the player whose turn it is.
func (g *GameState) CurrentPlayer() *Player {
	if len(g.Players) == 0 || g.CurrentPlayerIndex < 0 || g.CurrentPlayerIndex >= len(g.Players) {
		return nil
	}
	return g.Players[g.CurrentPlayerIndex]
}

// IsCurrentPlayer reports whether it is the given player's turn.
func (g *GameState) IsCurrentPlayer(id string) bool {
	cur := g.CurrentPlayer()
	return cur != nil && cur.ID == id
}

// FindModule locates a module anywhere on the table.
func (g *GameState) FindModule(moduleID string) (*Player, *Module, bool) {
	for _, p := range g.Players {
		if m, ok := p.Module(moduleID); ok {
			return p, m, true
		}
	}
	return nil, nil, false
}

// Discard pushes cards onto the discard pile in order.
func (g *GameState) Discard(cs ...cards.Card) {
	g.DiscardPile = append(g.DiscardPile, cs...)
}

// Draw pops the top of the draw pile, reshuffling the discard pile into it
// when it runs out. When both piles are empty it yields nothing.
func (g *GameState) Draw(rng *rand.Rand) (cards.Card, bool) {
	if len(g.DrawPile) == 0 {
		if len(g.DiscardPile) == 0 {
			return cards.Card{}, false
		}
		g.DrawPile = cards.Shuffle(g.DiscardPile, rng)
		g.DiscardPile = []cards.Card{}
	}
	top := g.DrawPile[len(g.DrawPile)-1]
	g.DrawPile = g.DrawPile[:len(g.DrawPile)-1]
	return top, true
}

// RefillHand draws until the player holds size cards or nothing is left to
// draw. It returns the number of cards drawn.
func (g *GameState) RefillHand(p *Player, size int, rng *rand.Rand) int {
	drawn := 0
	for len(p.Hand) < size {
		c, ok := g.Draw(rng)
		if !ok {
			break
		}
		p.Hand = append(p.Hand, c)
		drawn++
	}
	return drawn
}

// RemovePlayer unseats a player, sending their hand and modules to the
// discard pile and keeping the turn pointer on the same logical player. When
// the pointer wraps to the first seat of a started game the turn counter
// advances, as it does on a normal wrap.
func (g *GameState) RemovePlayer(id string) (*Player, bool) {
	idx := g.PlayerIndex(id)
	if idx < 0 {
		return nil, false
	}
	p := g.Players[idx]
	g.Discard(p.Hand...)
	for _, m := range p.Modules {
		g.Discard(m.Cards()...)
	}
	p.Hand = []cards.Card{}
	p.Modules = []*Module{}

	g.Players = append(g.Players[:idx:idx], g.Players[idx+1:]...)
	switch {
	case len(g.Players) == 0:
		g.CurrentPlayerIndex = 0
	case idx < g.CurrentPlayerIndex:
		g.CurrentPlayerIndex--
	case g.CurrentPlayerIndex >= len(g.Players):
		g.CurrentPlayerIndex = 0
		if g.Turn > 0 {
			g.Turn++
		}
	}
	return p, true
}

// HumanCount returns the number of non-AI players.
func (g *GameState) HumanCount() int {
	n := 0
	for _, p := range g.Players {
		if !p.IsAI {
			n++
		}
	}
	return n
}

// ConnectedHumans returns the number of non-AI players currently connected.
func (g *GameState) ConnectedHumans() int {
	n := 0
	for _, p := range g.Players {
		if !p.IsAI && p.Connected {
			n++
		}
	}
	return n
}

// IsActive reports whether actions may be applied.
func (g *GameState) IsActive() bool {
	return g.Status == StatusInProgress
}

// CardCount returns every card held anywhere in the game.
func (g *GameState) CardCount() int {
	n := len(g.DrawPile) + len(g.DiscardPile)
	for _, p := range g.Players {
		n += len(p.Hand)
		for _, m := range p.Modules {
			n += 1 + len(m.Bugs) + len(m.Patches)
		}
	}
	return n
}

// Clone returns a deep copy that shares nothing mutable with g.
func (g *GameState) Clone() *GameState {
	cp := *g
	cp.Players = make([]*Player, len(g.Players))
	for i, p := range g.Players {
		cp.Players[i] = p.Clone()
	}
	cp.DrawPile = append([]cards.Card{}, g.DrawPile...)
	cp.DiscardPile = append([]cards.Card{}, g.DiscardPile...)
	return &cp
}

// Restore overwrites g with the contents of a snapshot taken by Clone.
func (g *GameState) Restore(snapshot *GameState) {
	*g = *snapshot.Clone()
}
