package state

import "github.com/codeclash/codeclash-server/internal/game/cards"

// PlayerView is a player as seen by someone else at the table.
type PlayerView struct {
	ID           string       `json:"id"`
	Nickname     string       `json:"nickname"`
	IsAI         bool         `json:"isAI"`
	IsHost       bool         `json:"isHost"`
	Connected    bool         `json:"connected"`
	Hand         []cards.Card `json:"hand,omitempty"`
	HandCount    int          `json:"handCount"`
	Modules      []*Module    `json:"modules"`
	SkippedTurns int          `json:"skippedTurns"`
}

// View is the game state as broadcast to one viewer. Hands other than the
// viewer's and the draw pile are reduced to counts.
type View struct {
	Players            []PlayerView `json:"players"`
	CurrentPlayerIndex int          `json:"currentPlayerIndex"`
	CurrentPlayerID    string       `json:"currentPlayerId,omitempty"`
	Turn               int          `json:"turn"`
	DrawPileCount      int          `json:"drawPileCount"`
	DiscardPile        []cards.Card `json:"discardPile"`
	Status             Status       `json:"status"`
	Winner             string       `json:"winner,omitempty"`
	Settings           Settings     `json:"settings"`
	Checksum           string       `json:"checksum"`
}

// ViewFor builds the view for viewerID. An empty viewer id sees no hands.
func (g *GameState) ViewFor(viewerID string) *View {
	v := &View{
		Players:            make([]PlayerView, 0, len(g.Players)),
		CurrentPlayerIndex: g.CurrentPlayerIndex,
		Turn:               g.Turn,
		DrawPileCount:      len(g.DrawPile),
		DiscardPile:        append([]cards.Card{}, g.DiscardPile...),
		Status:             g.Status,
		Winner:             g.Winner,
		Settings:           g.Settings,
		Checksum:           g.Checksum(),
	}
	if cur := g.CurrentPlayer(); cur != nil && g.Status != StatusWaiting {
		v.CurrentPlayerID = cur.ID
	}
	for _, p := range g.Players {
		pv := PlayerView{
			ID:           p.ID,
			Nickname:     p.Nickname,
			IsAI:         p.IsAI,
			IsHost:       p.IsHost,
			Connected:    p.Connected,
			HandCount:    len(p.Hand),
			Modules:      make([]*Module, len(p.Modules)),
			SkippedTurns: p.SkippedTurns,
		}
		for i, m := range p.Modules {
			pv.Modules[i] = m.Clone()
		}
		if p.ID == viewerID {
			pv.Hand = append([]cards.Card{}, p.Hand...)
		}
		v.Players = append(v.Players, pv)
	}
	return v
}
