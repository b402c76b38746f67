package room

import (
	"math/rand/v2"
	"sort"
	"sync"
)

// CodeLength is the number of characters in a room code.
const CodeLength = 6

// codeAlphabet omits characters that are easy to confuse when read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Registry is the process-wide set of live rooms keyed by code.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	rng   *rand.Rand
}

// NewRegistry creates an empty registry drawing codes from rng.
func NewRegistry(rng *rand.Rand) *Registry {
	return &Registry{rooms: make(map[string]*Room), rng: rng}
}

// Create allocates a fresh unique code, builds the room with it and
// registers the result.
func (r *Registry) Create(build func(code string) *Room) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := r.newCodeLocked()
	room := build(code)
	r.rooms[code] = room
	return room
}

func (r *Registry) newCodeLocked() string {
	buf := make([]byte, CodeLength)
	for {
		for i := range buf {
			buf[i] = codeAlphabet[r.rng.IntN(len(codeAlphabet))]
		}
		code := string(buf)
		if _, taken := r.rooms[code]; !taken {
			return code
		}
	}
}

// Get returns the room with the code.
func (r *Registry) Get(code string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	return room, ok
}

// Delete unregisters the room with the code.
func (r *Registry) Delete(code string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	if ok {
		delete(r.rooms, code)
	}
	return room, ok
}

// List returns every live room ordered by code.
func (r *Registry) List() []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
