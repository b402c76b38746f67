// Package repository stores finished matches.
package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrInvalidMatch is returned for a match record missing required fields.
var ErrInvalidMatch = errors.New("invalid match record")

// MatchPlayer is one seat in a finished match.
type MatchPlayer struct {
	PlayerID   string `json:"playerId"`
	Nickname   string `json:"nickname"`
	IsAI       bool   `json:"isAI"`
	Seat       int    `json:"seat"`
	Stabilized int    `json:"stabilized"`
}

// Match is the record kept for a finished game.
type Match struct {
	ID         string        `json:"id"`
	RoomCode   string        `json:"roomCode"`
	WinnerID   string        `json:"winnerId,omitempty"`
	Winner     string        `json:"winner,omitempty"`
	Turns      int           `json:"turns"`
	Difficulty string        `json:"difficulty"`
	Players    []MatchPlayer `json:"players"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

func (m Match) validate() error {
	if m.ID == "" || m.RoomCode == "" || len(m.Players) == 0 {
		return ErrInvalidMatch
	}
	return nil
}

// MatchStore persists finished matches.
type MatchStore interface {
	SaveMatch(ctx context.Context, m Match) error
	RecentMatches(ctx context.Context, limit int) ([]Match, error)
}

// MemoryMatchStore keeps matches in process memory.
type MemoryMatchStore struct {
	mu      sync.RWMutex
	matches []Match
}

// NewMemoryMatchStore creates an empty store.
func NewMemoryMatchStore() *MemoryMatchStore {
	return &MemoryMatchStore{}
}

// SaveMatch appends m.
func (s *MemoryMatchStore) SaveMatch(_ context.Context, m Match) error {
	if err := m.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := m
	cp.Players = append([]MatchPlayer{}, m.Players...)
	s.matches = append(s.matches, cp)
	return nil
}

// RecentMatches returns up to limit matches, newest first.
func (s *MemoryMatchStore) RecentMatches(_ context.Context, limit int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Match, len(s.matches))
	copy(out, s.matches)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinishedAt.After(out[j].FinishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
