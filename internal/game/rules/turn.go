// Package rules holds the turn and win state machine and the domain event bus.
package rules

import (
	"math/rand/v2"
	"strconv"

	"go.uber.org/zap"

	"github.com/codeclash/codeclash-server/internal/game/cards"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/state"
)

// DefaultMinPlayers is the smallest table a game can start with.
const DefaultMinPlayers = 2

// TurnMachine advances the turn pointer, deals and refills hands, and decides
// when a game is won. It mutates the state it is handed and publishes events
// on its bus.
type TurnMachine struct {
	handSize   int
	minPlayers int
	catalog    *cards.Catalog
	rng        *rand.Rand
	bus        *EventBus
	logger     *zap.Logger
}

// TurnOptions configures a TurnMachine. Zero values fall back to defaults.
type TurnOptions struct {
	HandSize   int
	MinPlayers int
	Catalog    *cards.Catalog
}

// NewTurnMachine creates a turn machine. bus may be nil.
func NewTurnMachine(opts TurnOptions, rng *rand.Rand, bus *EventBus, logger *zap.Logger) *TurnMachine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HandSize <= 0 {
		opts.HandSize = state.DefaultHandSize
	}
	if opts.MinPlayers <= 0 {
		opts.MinPlayers = DefaultMinPlayers
	}
	if opts.Catalog == nil {
		opts.Catalog = cards.DefaultCatalog()
	}
	return &TurnMachine{
		handSize:   opts.HandSize,
		minPlayers: opts.MinPlayers,
		catalog:    opts.Catalog,
		rng:        rng,
		bus:        bus,
		logger:     logger,
	}
}

// HandSize returns the standard hand size.
func (tm *TurnMachine) HandSize() int {
	return tm.handSize
}

// Rand returns the random source shared by the game.
func (tm *TurnMachine) Rand() *rand.Rand {
	return tm.rng
}

func (tm *TurnMachine) publish(evt Event) {
	if tm.bus != nil {
		tm.bus.Publish(evt)
	}
}

// StartGame builds and shuffles a deck, deals every player a starting hand
// and hands the first turn to seat 0. Only the host may start, only from
// WAITING, and only with enough players seated.
func (tm *TurnMachine) StartGame(st *state.GameState, requesterID string) error {
	p, ok := st.PlayerByID(requesterID)
	if !ok {
		return gameerr.New(gameerr.CodePlayerNotFound, "player %s is not seated", requesterID)
	}
	if !p.IsHost {
		return gameerr.New(gameerr.CodeNotHost, "only the host can start the game")
	}
	if st.Status != state.StatusWaiting {
		return gameerr.New(gameerr.CodeGameNotActive, "game already %s", st.Status)
	}
	if len(st.Players) < tm.minPlayers {
		return gameerr.New(gameerr.CodeNotEnoughPlayers,
			"need at least %d players, have %d", tm.minPlayers, len(st.Players))
	}

	st.DrawPile = cards.Shuffle(tm.catalog.BuildDeck(), tm.rng)
	st.DiscardPile = []cards.Card{}
	for _, pl := range st.Players {
		pl.Hand = []cards.Card{}
		pl.Modules = []*state.Module{}
		st.RefillHand(pl, tm.handSize, tm.rng)
	}
	st.Status = state.StatusInProgress
	st.Turn = 1
	st.CurrentPlayerIndex = 0
	st.Winner = ""

	tm.logger.Info("game started",
		zap.Int("players", len(st.Players)),
		zap.Int("deck_size", len(st.DrawPile)),
	)
	tm.publish(NewEvent(EventGameStarted, requesterID))
	return nil
}

// AdvanceTurn ends the current player's turn: consumes one of their skipped
// turns if any, moves to the next seat, bumps the turn counter on wrap and
// tops up the new current player's hand.
func (tm *TurnMachine) AdvanceTurn(st *state.GameState) {
	if len(st.Players) == 0 {
		return
	}
	if finishing := st.CurrentPlayer(); finishing != nil && finishing.SkippedTurns > 0 {
		finishing.SkippedTurns--
		tm.publish(NewEventWithAmount(EventTurnSkipped, finishing.ID, finishing.SkippedTurns))
	}

	st.CurrentPlayerIndex = (st.CurrentPlayerIndex + 1) % len(st.Players)
	if st.CurrentPlayerIndex == 0 {
		st.Turn++
	}

	next := st.CurrentPlayer()
	drawn := st.RefillHand(next, tm.handSize, tm.rng)
	tm.logger.Debug("turn advanced",
		zap.String("player_id", next.ID),
		zap.Int("turn", st.Turn),
		zap.Int("drawn", drawn),
	)
	evt := NewEventWithAmount(EventTurnAdvanced, next.ID, st.Turn)
	evt.Metadata["drawn"] = strconv.Itoa(drawn)
	tm.publish(evt)
}

// RefillHand tops up one player's hand without ending the turn.
func (tm *TurnMachine) RefillHand(st *state.GameState, p *state.Player) int {
	drawn := st.RefillHand(p, tm.handSize, tm.rng)
	if drawn > 0 {
		tm.publish(NewEventWithAmount(EventCardsDrawn, p.ID, drawn))
	}
	return drawn
}

// HasWon reports whether the player holds a STABILIZED module of every
// module color. One stabilized multicolor module covers one missing color.
func HasWon(p *state.Player) bool {
	covered := make(map[cards.Color]bool, len(cards.ModuleColors))
	wildcards := 0
	for _, m := range p.Modules {
		if !m.IsStabilized() {
			continue
		}
		if m.Color() == cards.ColorMulticolor {
			wildcards++
			continue
		}
		covered[m.Color()] = true
	}
	missing := 0
	for _, c := range cards.ModuleColors {
		if !covered[c] {
			missing++
		}
	}
	return missing == 0 || (missing == 1 && wildcards > 0)
}

// CheckWinCondition finishes the game if playerID has won.
func (tm *TurnMachine) CheckWinCondition(st *state.GameState, playerID string) bool {
	p, ok := st.PlayerByID(playerID)
	if !ok || !HasWon(p) {
		return false
	}
	tm.Finish(st, p.ID)
	tm.publish(NewEvent(EventGameWon, p.ID))
	return true
}

// Finish ends the game with the given winner, which may be empty.
func (tm *TurnMachine) Finish(st *state.GameState, winnerID string) {
	st.Status = state.StatusFinished
	st.Winner = winnerID
	tm.logger.Info("game finished", zap.String("winner", winnerID), zap.Int("turn", st.Turn))
	tm.publish(NewEvent(EventGameFinished, winnerID))
}
