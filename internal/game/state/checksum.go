package state

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/codeclash/codeclash-server/internal/game/cards"
)

// Checksum computes a deterministic SHA-256 of the game state. Connection
// identities are excluded so a reconnect does not change the checksum.
func (g *GameState) Checksum() string {
	sum := sha256.Sum256([]byte(g.canonical()))
	return hex.EncodeToString(sum[:])
}

// canonical builds a string representation independent of pointer identity.
// Slice order is part of the game (seats, piles, hands) so it is kept as is.
func (g *GameState) canonical() string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("GAME:%s|%d|%d|%s|%d|%d|%s\n",
		g.Status,
		g.CurrentPlayerIndex,
		g.Turn,
		g.Winner,
		g.Settings.MaxPlayers,
		g.Settings.AIPlayers,
		g.Settings.Difficulty,
	))

	for _, p := range g.Players {
		buf.WriteString(fmt.Sprintf("PLAYER:%s|%s|%t|%t|%t|%d\n",
			p.ID,
			p.Nickname,
			p.IsAI,
			p.IsHost,
			p.Connected,
			p.SkippedTurns,
		))
		writeCards(&buf, "HAND", p.Hand)
		for _, m := range p.Modules {
			buf.WriteString(fmt.Sprintf("MODULE:%s|%s|%s\n", m.ID(), m.Color(), m.State))
			writeCards(&buf, "BUGS", m.Bugs)
			writeCards(&buf, "PATCHES", m.Patches)
		}
	}

	writeCards(&buf, "DRAW", g.DrawPile)
	writeCards(&buf, "DISCARD", g.DiscardPile)
	return buf.String()
}

func writeCards(buf *bytes.Buffer, label string, cs []cards.Card) {
	buf.WriteString(label)
	buf.WriteByte(':')
	for i, c := range cs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(c.ID)
	}
	buf.WriteByte('\n')
}
