package game

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/codeclash/codeclash-server/internal/game/cards"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/gametest"
	"github.com/codeclash/codeclash-server/internal/game/rules"
	"github.com/codeclash/codeclash-server/internal/game/state"
	"github.com/codeclash/codeclash-server/internal/game/targeting"
)

func newEngine(t *testing.T) *Engine {
	return NewEngine(Options{}, rand.New(rand.NewPCG(11, 12)), zaptest.NewLogger(t))
}

func TestHostPlaysModule(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	tb.StockDrawPile(10)
	e := newEngine(t)
	id := tb.Give("host", tb.ModuleCard(cards.ColorBackend))

	res, err := e.Apply(tb.State(), PlayCard("host", id))
	require.NoError(t, err)
	assert.True(t, res.TurnEnded)

	host := tb.Player("host")
	require.Len(t, host.Modules, 1)
	assert.Equal(t, cards.ColorBackend, host.Modules[0].Color())
	assert.Equal(t, state.ModuleFree, host.Modules[0].State)
	assert.Equal(t, "guest", tb.State().CurrentPlayer().ID)
	assert.Len(t, tb.Player("guest").Hand, state.DefaultHandSize)
}

func TestSecondModuleOfSameColorLeavesStateUnchanged(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	e := newEngine(t)
	tb.PlaceModule("host", cards.ColorBackend, 0, 0)
	id := tb.Give("host", tb.ModuleCard(cards.ColorBackend))
	before := tb.State().Checksum()

	_, err := e.Apply(tb.State(), PlayCard("host", id))
	assert.True(t, errors.Is(err, gameerr.ErrDuplicateModuleColor))
	assert.Equal(t, before, tb.State().Checksum())
	assert.Zero(t, e.History().Len())
}

func TestBugOnMissingModule(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	e := newEngine(t)
	tb.PlaceModule("guest", cards.ColorBackend, 0, 0)
	id := tb.Give("host", tb.BugCard(cards.ColorBackend))

	_, err := e.Apply(tb.State(), PlayCard("host", id, targeting.Selection{Kind: targeting.KindEnemyModule, PlayerID: "guest", ModuleID: "gone"}))
	assert.True(t, errors.Is(err, gameerr.ErrTargetNotFound))
}

func TestNotYourTurn(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	e := newEngine(t)
	id := tb.Give("guest", tb.ModuleCard(cards.ColorBackend))

	_, err := e.Apply(tb.State(), PlayCard("guest", id))
	assert.True(t, errors.Is(err, gameerr.ErrNotYourTurn))
}

func TestSkippedTurnsOnlyAllowPass(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	tb.StockDrawPile(10)
	e := newEngine(t)
	tb.Player("host").SkippedTurns = 1
	id := tb.Give("host", tb.ModuleCard(cards.ColorBackend))
	before := tb.State().Checksum()

	_, err := e.Apply(tb.State(), PlayCard("host", id))
	require.Error(t, err)
	assert.Equal(t, before, tb.State().Checksum())

	_, err = e.Apply(tb.State(), DiscardCards("host", id))
	require.Error(t, err)

	res, err := e.Apply(tb.State(), PassTurn("host"))
	require.NoError(t, err)
	assert.True(t, res.TurnEnded)
	assert.Zero(t, tb.Player("host").SkippedTurns)
	assert.Equal(t, "guest", tb.State().CurrentPlayer().ID)
}

func TestDiscardCards(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	e := newEngine(t)
	a := tb.Give("host", tb.BugCard(cards.ColorInfra))
	b := tb.Give("host", tb.PatchCard(cards.ColorInfra))

	_, err := e.Apply(tb.State(), DiscardCards("host"))
	assert.True(t, errors.Is(err, gameerr.ErrInvalidAction))

	_, err = e.Apply(tb.State(), DiscardCards("host", a, a))
	assert.True(t, errors.Is(err, gameerr.ErrInvalidAction))

	_, err = e.Apply(tb.State(), DiscardCards("host", a, "ghost"))
	assert.True(t, errors.Is(err, gameerr.ErrCardNotInHand))
	assert.Len(t, tb.Player("host").Hand, 2)

	res, err := e.Apply(tb.State(), DiscardCards("host", a, b))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Discarded)
	assert.Len(t, tb.State().DiscardPile, 2)
	assert.Equal(t, "guest", tb.State().CurrentPlayer().ID)
}

func TestDrawCardsKeepsTurn(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	tb.StockDrawPile(5)
	e := newEngine(t)

	res, err := e.Apply(tb.State(), DrawCards("host"))
	require.NoError(t, err)
	assert.Equal(t, state.DefaultHandSize, res.Drawn)
	assert.False(t, res.TurnEnded)
	assert.Equal(t, "host", tb.State().CurrentPlayer().ID)

	_, err = e.Apply(tb.State(), DrawCards("host"))
	assert.True(t, errors.Is(err, gameerr.ErrInvalidAction), "full hand")
}

func TestWinningPlayFinishesGame(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	e := newEngine(t)
	tb.PlaceModule("host", cards.ColorFrontend, 0, 2)
	tb.PlaceModule("host", cards.ColorBackend, 0, 2)
	tb.PlaceModule("host", cards.ColorDatabase, 0, 2)
	infra := tb.PlaceModule("host", cards.ColorInfra, 0, 1)
	id := tb.Give("host", tb.PatchCard(cards.ColorInfra))

	won := false
	e.Events().SubscribeTyped(rules.EventGameWon, func(rules.Event) { won = true })

	res, err := e.Apply(tb.State(), PlayCard("host", id, targeting.Selection{PlayerID: "host", ModuleID: infra}))
	require.NoError(t, err)
	assert.Equal(t, "host", res.Winner)
	assert.Equal(t, state.StatusFinished, tb.State().Status)
	assert.True(t, won)
	assert.Equal(t, "host", tb.State().CurrentPlayer().ID, "no advance after a win")

	_, err = e.Apply(tb.State(), PassTurn("host"))
	assert.True(t, errors.Is(err, gameerr.ErrGameNotActive))
}

func TestProjectSwapIntoAWinningProject(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	e := newEngine(t)
	for _, c := range cards.ModuleColors {
		tb.PlaceModule("host", c, 0, 2)
	}
	// leave host one patch short
	tb.Player("host").Modules[0].Patches = tb.Player("host").Modules[0].Patches[:1]
	tb.Player("host").Modules[0].Recompute()
	for _, c := range cards.ModuleColors {
		tb.PlaceModule("guest", c, 0, 2)
	}
	id := tb.Give("host", tb.OperationCard(cards.EffectProjectSwap))

	res, err := e.Apply(tb.State(), PlayCard("host", id, targeting.Selection{Kind: targeting.KindEnemyPlayer, PlayerID: "guest"}))
	require.NoError(t, err)
	assert.Equal(t, "host", res.Winner)
}

func TestStartGameRollsBackOnError(t *testing.T) {
	st := state.New(state.Settings{MaxPlayers: 4})
	p := state.NewPlayer("host", "c", "host", false)
	p.IsHost = true
	st.Players = append(st.Players, p)
	e := newEngine(t)
	before := st.Checksum()

	err := e.StartGame(st, "host")
	assert.True(t, errors.Is(err, gameerr.ErrNotEnoughPlayers))
	assert.Equal(t, before, st.Checksum())
}

func TestComputeTargets(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	e := newEngine(t)
	tb.PlaceModule("host", cards.ColorBackend, 0, 0)
	id := tb.Give("guest", tb.BugCard(cards.ColorBackend))

	req, opts, err := e.ComputeTargets(tb.State(), "guest", id)
	require.NoError(t, err)
	assert.Equal(t, 1, req.MinTargets)
	require.Len(t, opts, 1)
	assert.True(t, opts[0].Valid)

	_, _, err = e.ComputeTargets(tb.State(), "guest", "nope")
	assert.True(t, errors.Is(err, gameerr.ErrCardNotInHand))
}

func TestHistoryRecordsAppliedActions(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	tb.StockDrawPile(20)
	e := newEngine(t)
	id := tb.Give("host", tb.ModuleCard(cards.ColorInfra))

	_, err := e.Apply(tb.State(), PlayCard("host", id))
	require.NoError(t, err)
	_, err = e.Apply(tb.State(), PassTurn("guest"))
	require.NoError(t, err)

	entries := e.History().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, ActionPlayCard, entries[0].Type)
	assert.Equal(t, "MODULE(INFRA)", entries[0].Card)
	assert.Equal(t, ActionPassTurn, entries[1].Type)
	assert.Equal(t, tb.State().Checksum(), entries[1].Checksum)
}

func TestPenalize(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	e := newEngine(t)
	require.NoError(t, e.Penalize(tb.State(), "guest", 2))
	assert.Equal(t, 2, tb.Player("guest").SkippedTurns)
	assert.Error(t, e.Penalize(tb.State(), "guest", 0))
	assert.True(t, errors.Is(e.Penalize(tb.State(), "zed", 1), gameerr.ErrPlayerNotFound))
}

func TestActionJSON(t *testing.T) {
	raw := `{"type":"PLAY_CARD","playerId":"p1","data":{"cardId":"c1","targets":[{"type":"ENEMY_MODULE","playerId":"p2","moduleId":"m1"}]},"timestamp":"2024-01-02T03:04:05Z"}`
	var a PlayerAction
	require.NoError(t, json.Unmarshal([]byte(raw), &a))
	assert.Equal(t, ActionPlayCard, a.Type)
	d, ok := a.Data.(PlayCardData)
	require.True(t, ok)
	assert.Equal(t, "c1", d.CardID)
	require.Len(t, d.Targets, 1)
	assert.Equal(t, "m1", d.Targets[0].ModuleID)

	var pass PlayerAction
	require.NoError(t, json.Unmarshal([]byte(`{"type":"PASS_TURN","playerId":"p1"}`), &pass))
	assert.IsType(t, PassTurnData{}, pass.Data)

	var bad PlayerAction
	assert.Error(t, json.Unmarshal([]byte(`{"type":"CHEAT","playerId":"p1"}`), &bad))
}

func TestMismatchedPayloadRejected(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	e := newEngine(t)
	_, err := e.Apply(tb.State(), PlayerAction{Type: ActionPlayCard, PlayerID: "host", Data: PassTurnData{}})
	assert.True(t, errors.Is(err, gameerr.ErrInvalidAction))
}

func TestHistoryLimit(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Record(HistoryEntry{Type: ActionPassTurn})
	}
	entries := h.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, 3, entries[0].Seq)
	assert.Equal(t, 5, entries[2].Seq)
	assert.Len(t, h.Last(2), 2)
}
