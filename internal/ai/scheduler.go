package ai

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codeclash/codeclash-server/internal/game/state"
)

// Default thinking delays.
const (
	DefaultBaseDelay = 1500 * time.Millisecond
	DefaultMaxDelay  = 4 * time.Second
)

// ThinkingDelay scales base by difficulty: EASY thinks half as long, HARD
// twice as long but never past max.
func ThinkingDelay(base, maxDelay time.Duration, d state.Difficulty) time.Duration {
	switch d {
	case state.DifficultyEasy:
		return base / 2
	case state.DifficultyHard:
		delay := base * 2
		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
		}
		return delay
	default:
		return base
	}
}

type pendingTimer struct {
	timer *time.Timer
	gen   uint64
}

// Scheduler holds at most one pending timer per player. Scheduling a player
// again replaces the earlier timer. A timer replaced or cancelled before it
// claims its slot never runs its callback. Once a callback has started,
// Cancel and CancelAll cannot stop it, so callbacks must recheck that their
// work is still wanted.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]pendingTimer
	gen     uint64
	stopped bool
	logger  *zap.Logger
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{timers: make(map[string]pendingTimer), logger: logger}
}

// Schedule runs fn for playerID after delay, replacing any pending timer for
// the same player. It is a no-op once the scheduler is closed.
func (s *Scheduler) Schedule(playerID string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if prev, ok := s.timers[playerID]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timers[playerID] = pendingTimer{
		gen: gen,
		timer: time.AfterFunc(delay, func() {
			if !s.claim(playerID, gen) {
				return
			}
			fn()
		}),
	}
	s.logger.Debug("ai turn scheduled", zap.String("player_id", playerID), zap.Duration("delay", delay))
}

// claim removes the timer entry if it is still the current one for playerID.
func (s *Scheduler) claim(playerID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.timers[playerID]
	if !ok || cur.gen != gen {
		return false
	}
	delete(s.timers, playerID)
	return true
}

// Cancel stops the pending timer for playerID. It reports whether one existed.
func (s *Scheduler) Cancel(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.timers[playerID]
	if !ok {
		return false
	}
	cur.timer.Stop()
	delete(s.timers, playerID)
	return true
}

// CancelAll stops every pending timer.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.timers)
	for id, cur := range s.timers {
		cur.timer.Stop()
		delete(s.timers, id)
	}
	return n
}

// Close cancels everything and refuses further scheduling.
func (s *Scheduler) Close() {
	s.CancelAll()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// Pending reports whether playerID has a timer waiting.
func (s *Scheduler) Pending(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[playerID]
	return ok
}

// Len returns the number of pending timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
