package game

import (
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeclash/codeclash-server/internal/game/cards"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/gametest"
)

func TestEngineRecordsReplayFrames(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	tb.StockDrawPile(10)
	e := newEngine(t)
	replay := NewReplay(uuid.NewString(), "ABCDEF")
	e.RecordReplay(replay)

	id := tb.Give("host", tb.ModuleCard(cards.ColorBackend))
	_, err := e.Apply(tb.State(), PlayCard("host", id))
	require.NoError(t, err)
	_, err = e.Apply(tb.State(), PassTurn("guest"))
	require.NoError(t, err)

	require.Equal(t, 2, replay.Len())
	first, ok := replay.FrameAt(0)
	require.True(t, ok)
	assert.Equal(t, ActionPlayCard, first.Entry.Type)
	assert.Equal(t, 1, first.Entry.Seq)
	host, ok := first.State.PlayerByID("host")
	require.True(t, ok)
	assert.Len(t, host.Modules, 1)

	last, ok := replay.FrameAt(1)
	require.True(t, ok)
	assert.Equal(t, tb.State().Checksum(), last.Entry.Checksum)
	assert.NotSame(t, tb.State(), last.State)
	require.NoError(t, replay.Verify())

	_, ok = replay.FrameAt(2)
	assert.False(t, ok)
}

func TestRejectedActionAddsNoFrame(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	e := newEngine(t)
	replay := NewReplay(uuid.NewString(), "ABCDEF")
	e.RecordReplay(replay)

	_, err := e.Apply(tb.State(), PassTurn("guest"))
	require.Error(t, err)
	assert.Zero(t, replay.Len())
}

func TestReplaySaveAndLoad(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	tb.StockDrawPile(10)
	e := newEngine(t)
	matchID := uuid.NewString()
	replay := NewReplay(matchID, "QWERTY")
	e.RecordReplay(replay)
	_, err := e.Apply(tb.State(), PassTurn("host"))
	require.NoError(t, err)

	dir := t.TempDir()
	path, err := replay.SaveToFile(dir)
	require.NoError(t, err)
	assert.Equal(t, ReplayPath(dir, matchID), path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	loaded, err := LoadReplay(dir, matchID)
	require.NoError(t, err)
	assert.Equal(t, "QWERTY", loaded.RoomCode)
	require.Equal(t, 1, loaded.Len())
	require.NoError(t, loaded.Verify())
	frame, _ := loaded.FrameAt(0)
	assert.Equal(t, tb.State().Checksum(), frame.State.Checksum())
}

func TestLoadMissingReplay(t *testing.T) {
	_, err := LoadReplay(t.TempDir(), uuid.NewString())
	assert.True(t, errors.Is(err, gameerr.ErrMatchNotFound))
}

func TestReplayRejectsNonUUIDMatchIDs(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"nope", "../escape", "../../etc/passwd", ""} {
		_, err := LoadReplay(dir, id)
		assert.Equal(t, gameerr.CodeInvalidAction, gameerr.CodeOf(err), id)
	}

	_, err := NewReplay("../escape", "ABCDEF").SaveToFile(dir)
	assert.Equal(t, gameerr.CodeInvalidAction, gameerr.CodeOf(err))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVerifyDetectsTampering(t *testing.T) {
	tb := gametest.NewTable(t, "host", "guest")
	tb.StockDrawPile(10)
	e := newEngine(t)
	replay := NewReplay(uuid.NewString(), "ZXCVBN")
	e.RecordReplay(replay)
	_, err := e.Apply(tb.State(), PassTurn("host"))
	require.NoError(t, err)

	replay.Frames[0].State.Turn = 99
	assert.Error(t, replay.Verify())
}
