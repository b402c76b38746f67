// Package ai drives computer-controlled seats: personality profiles, the
// weighted decision procedure and the thinking-delay scheduler.
package ai

import (
	"math/rand/v2"
	"sync"

	"github.com/codeclash/codeclash-server/internal/game/state"
)

// Personality biases how an AI seat weighs its options. Traits run 0-100.
type Personality struct {
	Name          string           `json:"name" yaml:"name"`
	Aggressive    int              `json:"aggressive" yaml:"aggressive"`
	Defensive     int              `json:"defensive" yaml:"defensive"`
	Opportunistic int              `json:"opportunistic" yaml:"opportunistic"`
	Methodical    int              `json:"methodical" yaml:"methodical"`
	Difficulty    state.Difficulty `json:"difficulty" yaml:"difficulty"`
}

// Roster is the fixed set of named profiles AI seats are drawn from.
var Roster = []Personality{
	{Name: "Ada", Aggressive: 35, Defensive: 70, Opportunistic: 40, Methodical: 90, Difficulty: state.DifficultyHard},
	{Name: "Linus", Aggressive: 85, Defensive: 30, Opportunistic: 55, Methodical: 60, Difficulty: state.DifficultyHard},
	{Name: "Grace", Aggressive: 40, Defensive: 85, Opportunistic: 30, Methodical: 75, Difficulty: state.DifficultyNormal},
	{Name: "Ken", Aggressive: 60, Defensive: 50, Opportunistic: 70, Methodical: 50, Difficulty: state.DifficultyNormal},
	{Name: "Barbara", Aggressive: 25, Defensive: 60, Opportunistic: 85, Methodical: 40, Difficulty: state.DifficultyNormal},
	{Name: "Dennis", Aggressive: 75, Defensive: 40, Opportunistic: 35, Methodical: 30, Difficulty: state.DifficultyEasy},
	{Name: "Margaret", Aggressive: 50, Defensive: 75, Opportunistic: 50, Methodical: 85, Difficulty: state.DifficultyHard},
	{Name: "Guido", Aggressive: 45, Defensive: 45, Opportunistic: 60, Methodical: 20, Difficulty: state.DifficultyEasy},
}

// Picker hands out personalities without replacement, starting over once
// every profile has been used.
type Picker struct {
	mu        sync.Mutex
	roster    []Personality
	remaining []Personality
	rng       *rand.Rand
}

// NewPicker creates a picker over roster. An empty roster uses Roster.
func NewPicker(roster []Personality, rng *rand.Rand) *Picker {
	if len(roster) == 0 {
		roster = Roster
	}
	return &Picker{roster: roster, rng: rng}
}

// Next returns a personality not handed out since the last reset.
func (p *Picker) Next() Personality {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.remaining) == 0 {
		p.remaining = append([]Personality{}, p.roster...)
	}
	i := p.rng.IntN(len(p.remaining))
	picked := p.remaining[i]
	p.remaining = append(p.remaining[:i], p.remaining[i+1:]...)
	return picked
}

// Size returns the number of profiles in the roster.
func (p *Picker) Size() int {
	return len(p.roster)
}
