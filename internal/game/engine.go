// Package game is the rule engine entry point: it validates and applies
// player actions against a room's game state.
package game

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/codeclash/codeclash-server/internal/game/cards"
	"github.com/codeclash/codeclash-server/internal/game/effects"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/rules"
	"github.com/codeclash/codeclash-server/internal/game/state"
	"github.com/codeclash/codeclash-server/internal/game/targeting"
)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	HandSize    int
	MinPlayers  int
	HistorySize int
	Catalog     *cards.Catalog
}

// Result reports what an applied action did.
type Result struct {
	Action    PlayerAction     `json:"action"`
	Outcome   *effects.Outcome `json:"outcome,omitempty"`
	Discarded int              `json:"discarded,omitempty"`
	Drawn     int              `json:"drawn,omitempty"`
	TurnEnded bool             `json:"turnEnded"`
	Winner    string           `json:"winner,omitempty"`
}

// Engine applies actions to one room's game state. It holds no reference to
// the state itself; the room passes it in under its own lock.
type Engine struct {
	handSize int
	turns    *rules.TurnMachine
	resolver *effects.Resolver
	bus      *rules.EventBus
	history  *History
	replay   *Replay
	logger   *zap.Logger
}

// NewEngine creates an engine drawing randomness from rng.
func NewEngine(opts Options, rng *rand.Rand, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HandSize <= 0 {
		opts.HandSize = state.DefaultHandSize
	}
	bus := rules.NewEventBus()
	return &Engine{
		handSize: opts.HandSize,
		turns: rules.NewTurnMachine(rules.TurnOptions{
			HandSize:   opts.HandSize,
			MinPlayers: opts.MinPlayers,
			Catalog:    opts.Catalog,
		}, rng, bus, logger),
		resolver: effects.NewResolver(opts.HandSize, rng, logger),
		bus:      bus,
		history:  NewHistory(opts.HistorySize),
		logger:   logger,
	}
}

// Events returns the bus the engine publishes domain events on.
func (e *Engine) Events() *rules.EventBus {
	return e.bus
}

// History returns the applied-action history.
func (e *Engine) History() *History {
	return e.history
}

// RecordReplay makes the engine append a frame to replay for the deal and
// every applied action. Nil stops recording.
func (e *Engine) RecordReplay(replay *Replay) {
	e.replay = replay
}

// HandSize returns the standard hand size.
func (e *Engine) HandSize() int {
	return e.handSize
}

// Turns exposes the turn machine for lifecycle operations outside Apply.
func (e *Engine) Turns() *rules.TurnMachine {
	return e.turns
}

// StartGame deals and starts the game on behalf of the host.
func (e *Engine) StartGame(st *state.GameState, requesterID string) (err error) {
	snapshot := st.Clone()
	defer func() {
		if err != nil {
			st.Restore(snapshot)
		}
	}()
	if err := e.turns.StartGame(st, requesterID); err != nil {
		return err
	}
	if e.replay != nil {
		e.replay.Record(HistoryEntry{Turn: st.Turn, Checksum: st.Checksum(), Timestamp: time.Now()}, st)
	}
	return nil
}

// Apply validates and applies one action. A rejected action leaves st
// exactly as it was.
func (e *Engine) Apply(st *state.GameState, action PlayerAction) (res *Result, err error) {
	snapshot := st.Clone()
	defer func() {
		if err != nil {
			st.Restore(snapshot)
			e.logger.Debug("action rejected",
				zap.String("player_id", action.PlayerID),
				zap.String("action_type", string(action.Type)),
				zap.Error(err),
			)
		}
	}()

	if err := action.check(); err != nil {
		return nil, err
	}
	actor, err := rules.CheckTurn(st, action.PlayerID)
	if err != nil {
		return nil, err
	}
	if rules.MustPass(actor) && action.Type != ActionPassTurn {
		return nil, gameerr.New(gameerr.CodeInvalidAction,
			"%s must pass: %d skipped turn(s) remaining", actor.Nickname, actor.SkippedTurns)
	}

	res = &Result{Action: action}
	entry := HistoryEntry{Type: action.Type, PlayerID: actor.ID, Turn: st.Turn, Timestamp: action.Timestamp}

	switch d := action.Data.(type) {
	case PlayCardData:
		out, err := e.resolver.Play(st, actor.ID, d.CardID, d.Targets)
		if err != nil {
			return nil, err
		}
		res.Outcome = out
		entry.CardID, entry.Card, entry.Targets = out.Card.ID, out.Card.String(), targeting.FormatTargets(out.Targets)
		e.bus.Publish(rules.NewCardEvent(rules.EventCardPlayed, actor.ID, out.Card.ID, targetIDs(out.Targets)...))
		e.endTurn(st, actor.ID, res)

	case DiscardCardsData:
		n, err := e.discard(st, actor, d.CardIDs)
		if err != nil {
			return nil, err
		}
		res.Discarded = n
		e.endTurn(st, actor.ID, res)

	case DrawCardsData:
		if len(actor.Hand) >= e.handSize {
			return nil, gameerr.New(gameerr.CodeInvalidAction, "hand is already full")
		}
		res.Drawn = e.turns.RefillHand(st, actor)

	case PassTurnData:
		e.bus.Publish(rules.NewEvent(rules.EventTurnPassed, actor.ID))
		e.endTurn(st, actor.ID, res)

	default:
		return nil, gameerr.New(gameerr.CodeInvalidAction, "unsupported action %T", d)
	}

	entry.Checksum = st.Checksum()
	entry = e.history.Record(entry)
	if e.replay != nil {
		e.replay.Record(entry, st)
	}
	return res, nil
}

// endTurn checks for a winner, acting player first, then passes the turn on
// if the game continues.
func (e *Engine) endTurn(st *state.GameState, actorID string, res *Result) {
	res.TurnEnded = true
	if e.turns.CheckWinCondition(st, actorID) {
		res.Winner = actorID
		return
	}
	for _, p := range st.Players {
		if p.ID != actorID && e.turns.CheckWinCondition(st, p.ID) {
			res.Winner = p.ID
			return
		}
	}
	e.turns.AdvanceTurn(st)
}

func (e *Engine) discard(st *state.GameState, actor *state.Player, cardIDs []string) (int, error) {
	if len(cardIDs) == 0 || len(cardIDs) > e.handSize {
		return 0, gameerr.New(gameerr.CodeInvalidAction,
			"discard between 1 and %d cards, got %d", e.handSize, len(cardIDs))
	}
	seen := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		if seen[id] {
			return 0, gameerr.New(gameerr.CodeInvalidAction, "card %s listed twice", id)
		}
		seen[id] = true
		if _, ok := actor.HandCard(id); !ok {
			return 0, gameerr.New(gameerr.CodeCardNotInHand, "card %s is not in hand", id)
		}
	}
	for _, id := range cardIDs {
		c, _ := actor.RemoveFromHand(id)
		st.Discard(c)
	}
	evt := rules.NewEventWithAmount(rules.EventCardsDiscarded, actor.ID, len(cardIDs))
	evt.Targets = cardIDs
	e.bus.Publish(evt)
	return len(cardIDs), nil
}

// ComputeTargets serves the first phase of target selection for a card in
// the player's hand. It does not require the player to hold the turn.
func (e *Engine) ComputeTargets(st *state.GameState, playerID, cardID string) (targeting.Requirement, []targeting.Option, error) {
	p, ok := st.PlayerByID(playerID)
	if !ok {
		return targeting.Requirement{}, nil, gameerr.New(gameerr.CodePlayerNotFound, "player %s is not seated", playerID)
	}
	c, ok := p.HandCard(cardID)
	if !ok {
		return targeting.Requirement{}, nil, gameerr.New(gameerr.CodeCardNotInHand, "card %s is not in hand", cardID)
	}
	return targeting.Requirements(c), targeting.ComputeValidTargets(c, st, playerID), nil
}

// Penalize adds skipped turns to a player.
func (e *Engine) Penalize(st *state.GameState, playerID string, turns int) error {
	p, ok := st.PlayerByID(playerID)
	if !ok {
		return gameerr.New(gameerr.CodePlayerNotFound, "player %s is not seated", playerID)
	}
	if turns <= 0 {
		return gameerr.New(gameerr.CodeInvalidAction, "penalty must be positive, got %d", turns)
	}
	p.SkippedTurns += turns
	e.logger.Info("player penalized", zap.String("player_id", playerID), zap.Int("skipped_turns", p.SkippedTurns))
	return nil
}

func targetIDs(sel []targeting.Selection) []string {
	out := make([]string, 0, len(sel))
	for _, s := range sel {
		if s.ModuleID != "" {
			out = append(out, s.ModuleID)
		} else {
			out = append(out, s.PlayerID)
		}
	}
	return out
}
