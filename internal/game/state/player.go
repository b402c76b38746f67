package state

import "github.com/codeclash/codeclash-server/internal/game/cards"

// Player is one seat at the table.
type Player struct {
	ID           string       `json:"id"`
	ConnectionID string       `json:"-"`
	Nickname     string       `json:"nickname"`
	IsAI         bool         `json:"isAI"`
	IsHost       bool         `json:"isHost"`
	Connected    bool         `json:"connected"`
	Hand         []cards.Card `json:"hand"`
	Modules      []*Module    `json:"modules"`
	SkippedTurns int          `json:"skippedTurns"`
}

// NewPlayer creates a connected player with an empty hand and no modules.
func NewPlayer(id, connectionID, nickname string, isAI bool) *Player {
	return &Player{
		ID:           id,
		ConnectionID: connectionID,
		Nickname:     nickname,
		IsAI:         isAI,
		Connected:    true,
		Hand:         []cards.Card{},
		Modules:      []*Module{},
	}
}

// HandCard returns the card with the given id from the hand.
func (p *Player) HandCard(cardID string) (cards.Card, bool) {
	for _, c := range p.Hand {
		if c.ID == cardID {
			return c, true
		}
	}
	return cards.Card{}, false
}

// RemoveFromHand takes the card with the given id out of the hand.
func (p *Player) RemoveFromHand(cardID string) (cards.Card, bool) {
	for i, c := range p.Hand {
		if c.ID == cardID {
			p.Hand = append(p.Hand[:i:i], p.Hand[i+1:]...)
			return c, true
		}
	}
	return cards.Card{}, false
}

// Module returns the module with the given id.
func (p *Player) Module(moduleID string) (*Module, bool) {
	for _, m := range p.Modules {
		if m.ID() == moduleID {
			return m, true
		}
	}
	return nil, false
}

// RemoveModule takes the module with the given id out of play for this player.
func (p *Player) RemoveModule(moduleID string) (*Module, bool) {
	for i, m := range p.Modules {
		if m.ID() == moduleID {
			p.Modules = append(p.Modules[:i:i], p.Modules[i+1:]...)
			return m, true
		}
	}
	return nil, false
}

// HasModuleColor reports whether the player owns a non-multicolor module of
// the color. Multicolor is never blocked. exceptID lets a swap ignore the
// module it is about to give away.
func (p *Player) HasModuleColor(color cards.Color, exceptID string) bool {
	if color == cards.ColorMulticolor {
		return false
	}
	for _, m := range p.Modules {
		if m.ID() == exceptID {
			continue
		}
		if m.Color() == color {
			return true
		}
	}
	return false
}

// CanHold reports whether adding a module of the color keeps the player's
// one-per-color invariant.
func (p *Player) CanHold(color cards.Color, exceptID string) bool {
	return !p.HasModuleColor(color, exceptID)
}

// Progress counts stabilized modules, the AI's measure of how close a player is to winning.
func (p *Player) Progress() int {
	n := 0
	for _, m := range p.Modules {
		if m.IsStabilized() {
			n++
		}
	}
	return n
}

// BugCount returns the number of bugs on the player's modules.
func (p *Player) BugCount() int {
	n := 0
	for _, m := range p.Modules {
		n += len(m.Bugs)
	}
	return n
}

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	cp := *p
	cp.Hand = append([]cards.Card{}, p.Hand...)
	cp.Modules = make([]*Module, len(p.Modules))
	for i, m := range p.Modules {
		cp.Modules[i] = m.Clone()
	}
	return &cp
}
