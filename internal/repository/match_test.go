package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/codeclash/codeclash-server/internal/config"
)

func sampleMatch(finished time.Time) Match {
	return Match{
		ID:         uuid.NewString(),
		RoomCode:   "ABC123",
		WinnerID:   "p1",
		Winner:     "host",
		Turns:      7,
		Difficulty: "NORMAL",
		Players: []MatchPlayer{
			{PlayerID: "p1", Nickname: "host", Seat: 0, Stabilized: 4},
			{PlayerID: "p2", Nickname: "Ada", IsAI: true, Seat: 1, Stabilized: 2},
		},
		StartedAt:  finished.Add(-10 * time.Minute),
		FinishedAt: finished,
	}
}

func TestMemoryMatchStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryMatchStore()
	now := time.Now()

	old := sampleMatch(now.Add(-time.Hour))
	recent := sampleMatch(now)
	require.NoError(t, s.SaveMatch(ctx, old))
	require.NoError(t, s.SaveMatch(ctx, recent))

	got, err := s.RecentMatches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, recent.ID, got[0].ID)
	assert.Equal(t, old.ID, got[1].ID)

	got, err = s.RecentMatches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, recent.ID, got[0].ID)
}

func TestMemoryMatchStoreCopiesPlayers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryMatchStore()
	m := sampleMatch(time.Now())
	require.NoError(t, s.SaveMatch(ctx, m))
	m.Players[0].Nickname = "changed"

	got, err := s.RecentMatches(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "host", got[0].Players[0].Nickname)
}

func TestSaveMatchRejectsIncompleteRecord(t *testing.T) {
	err := NewMemoryMatchStore().SaveMatch(context.Background(), Match{RoomCode: "X"})
	assert.True(t, errors.Is(err, ErrInvalidMatch))
}

// Runs against a real database only when CODECLASH_TEST_DATABASE_URL is set.
func TestPostgresMatchStore(t *testing.T) {
	url := os.Getenv("CODECLASH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CODECLASH_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := NewDB(ctx, config.DatabaseConfig{URL: url, MaxConns: 2, ConnectTimeout: 5 * time.Second}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(ctx))

	s := NewPostgresMatchStore(db)
	m := sampleMatch(time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, s.SaveMatch(ctx, m))

	got, err := s.RecentMatches(ctx, 10)
	require.NoError(t, err)
	var found *Match
	for i := range got {
		if got[i].ID == m.ID {
			found = &got[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, m.Winner, found.Winner)
	assert.Len(t, found.Players, 2)
	assert.True(t, found.Players[1].IsAI)
}

func TestNewDBRejectsBadURL(t *testing.T) {
	_, err := NewDB(context.Background(), config.DatabaseConfig{URL: "://nope"}, nil)
	assert.Error(t, err)
}
