// Package gametest provides a harness for building game states by hand in tests.
package gametest

import (
	"fmt"
	"testing"

	"github.com/codeclash/codeclash-server/internal/game/cards"
	"github.com/codeclash/codeclash-server/internal/game/state"
)

// Table provides utilities for setting up in-progress games
type Table struct {
	t      testing.TB
	st     *state.GameState
	nextID int
}

// NewTable creates an IN_PROGRESS game seating one human per player id.
// The first player is host and has the turn.
func NewTable(t testing.TB, playerIDs ...string) *Table {
	t.Helper()
	st := state.New(state.Settings{MaxPlayers: 4, Difficulty: state.DifficultyNormal})
	for i, id := range playerIDs {
		p := state.NewPlayer(id, "conn-"+id, id, false)
		p.IsHost = i == 0
		st.Players = append(st.Players, p)
	}
	st.Status = state.StatusInProgress
	st.Turn = 1
	return &Table{t: t, st: st}
}

// State returns the game state for direct manipulation
func (tb *Table) State() *state.GameState {
	return tb.st
}

// Player returns the player with the given id or fails the test.
func (tb *Table) Player(id string) *state.Player {
	tb.t.Helper()
	p, ok := tb.st.PlayerByID(id)
	if !ok {
		tb.t.Fatalf("no player %q at the table", id)
	}
	return p
}

func (tb *Table) id(prefix string) string {
	tb.nextID++
	return fmt.Sprintf("%s-%d", prefix, tb.nextID)
}

// ModuleCard creates a MODULE card of the color.
func (tb *Table) ModuleCard(color cards.Color) cards.Card {
	return cards.Card{ID: tb.id("module"), Type: cards.TypeModule, Color: color}
}

// BugCard creates a BUG card of the color.
func (tb *Table) BugCard(color cards.Color) cards.Card {
	return cards.Card{ID: tb.id("bug"), Type: cards.TypeBug, Color: color}
}

// PatchCard creates a PATCH card of the color.
func (tb *Table) PatchCard(color cards.Color) cards.Card {
	return cards.Card{ID: tb.id("patch"), Type: cards.TypePatch, Color: color}
}

// OperationCard creates an OPERATION card with the effect.
func (tb *Table) OperationCard(effect cards.Effect) cards.Card {
	return cards.Card{ID: tb.id("op"), Type: cards.TypeOperation, Effect: effect}
}

// Give puts the card in the player's hand and returns its id.
func (tb *Table) Give(playerID string, c cards.Card) string {
	tb.t.Helper()
	p := tb.Player(playerID)
	p.Hand = append(p.Hand, c)
	return c.ID
}

// PlaceModule puts a module of the color in play for the player with the
// given number of bugs and patches of the same color. Returns the module id.
func (tb *Table) PlaceModule(playerID string, color cards.Color, bugs, patches int) string {
	tb.t.Helper()
	p := tb.Player(playerID)
	m := state.NewModule(tb.ModuleCard(color))
	for i := 0; i < bugs; i++ {
		m.Bugs = append(m.Bugs, tb.BugCard(color))
	}
	for i := 0; i < patches; i++ {
		m.Patches = append(m.Patches, tb.PatchCard(color))
	}
	m.Recompute()
	p.Modules = append(p.Modules, m)
	return m.ID()
}

// StockDrawPile pushes n filler cards onto the draw pile.
func (tb *Table) StockDrawPile(n int) {
	for i := 0; i < n; i++ {
		tb.st.DrawPile = append(tb.st.DrawPile, tb.PatchCard(cards.ColorMulticolor))
	}
}

// Module returns the module with the given id or fails the test.
func (tb *Table) Module(moduleID string) *state.Module {
	tb.t.Helper()
	_, m, ok := tb.st.FindModule(moduleID)
	if !ok {
		tb.t.Fatalf("no module %q on the table", moduleID)
	}
	return m
}
