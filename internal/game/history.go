package game

import (
	"sync"
	"time"
)

// DefaultHistorySize is how many applied actions a room remembers.
const DefaultHistorySize = 200

// HistoryEntry is one applied action as recorded for later inspection.
type HistoryEntry struct {
	Seq       int        `json:"seq"`
	Type      ActionType `json:"type"`
	PlayerID  string     `json:"playerId"`
	CardID    string     `json:"cardId,omitempty"`
	Card      string     `json:"card,omitempty"`
	Targets   string     `json:"targets,omitempty"`
	Turn      int        `json:"turn"`
	Checksum  string     `json:"checksum"`
	Timestamp time.Time  `json:"timestamp"`
}

// History keeps the most recent applied actions in order.
type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
	limit   int
	nextSeq int
}

// NewHistory creates a history holding at most limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{
		entries: make([]HistoryEntry, 0, limit),
		limit:   limit,
		nextSeq: 1,
	}
}

// Record appends an entry, dropping the oldest once the limit is reached.
func (h *History) Record(entry HistoryEntry) HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry.Seq = h.nextSeq
	h.nextSeq++
	if len(h.entries) == h.limit {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, entry)
	return entry
}

// Entries returns a copy of the recorded entries, oldest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Last returns the most recent n entries, oldest first.
func (h *History) Last(n int) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]HistoryEntry, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}

// Len returns the number of entries held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
