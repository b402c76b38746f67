package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/state"
)

const replayExt = ".replay"

// Frame is the state right after one applied action. Frame 0 is the deal and
// carries an entry with no action type.
type Frame struct {
	Entry HistoryEntry     `json:"entry"`
	State *state.GameState `json:"state"`
}

// Replay records every frame of one match so it can be stepped through after
// the fact.
type Replay struct {
	MatchID  string    `json:"matchId"`
	RoomCode string    `json:"roomCode"`
	Started  time.Time `json:"started"`
	Frames   []Frame   `json:"frames"`

	mu sync.RWMutex
}

// NewReplay creates an empty replay for a match.
func NewReplay(matchID, roomCode string) *Replay {
	return &Replay{
		MatchID:  matchID,
		RoomCode: roomCode,
		Started:  time.Now(),
		Frames:   make([]Frame, 0),
	}
}

// Record appends a frame holding a copy of st.
func (r *Replay) Record(entry HistoryEntry, st *state.GameState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Frames = append(r.Frames, Frame{Entry: entry, State: st.Clone()})
}

// Len returns the number of recorded frames.
func (r *Replay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Frames)
}

// FrameAt returns the frame at index i.
func (r *Replay) FrameAt(i int) (Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.Frames) {
		return Frame{}, false
	}
	return r.Frames[i], true
}

// Verify checks that every frame's state still hashes to the checksum its
// entry recorded.
func (r *Replay) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, f := range r.Frames {
		if f.Entry.Checksum == "" {
			continue
		}
		if got := f.State.Checksum(); got != f.Entry.Checksum {
			return fmt.Errorf("frame %d: checksum %s, recorded %s", i, got, f.Entry.Checksum)
		}
	}
	return nil
}

// ReplayPath is where a match's replay lives under dir.
func ReplayPath(dir, matchID string) string {
	return filepath.Join(dir, matchID+replayExt)
}

// checkMatchID rejects ids that are not uuids so a caller-supplied id can
// never name a file outside the replay directory.
func checkMatchID(matchID string) error {
	if _, err := uuid.Parse(matchID); err != nil {
		return gameerr.New(gameerr.CodeInvalidAction, "invalid match id %q", matchID)
	}
	return nil
}

// SaveToFile writes the replay gob-encoded and gzipped under dir and returns
// the file path.
func (r *Replay) SaveToFile(dir string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := checkMatchID(r.MatchID); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create replay directory: %w", err)
	}
	path := ReplayPath(dir, r.MatchID)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create replay file: %w", err)
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	if err := gob.NewEncoder(zw).Encode(replayFile{
		MatchID:  r.MatchID,
		RoomCode: r.RoomCode,
		Started:  r.Started,
		Frames:   r.Frames,
	}); err != nil {
		zw.Close()
		return "", fmt.Errorf("failed to encode replay: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to flush replay: %w", err)
	}
	return path, nil
}

// LoadReplay reads a replay written by SaveToFile.
func LoadReplay(dir, matchID string) (*Replay, error) {
	if err := checkMatchID(matchID); err != nil {
		return nil, err
	}
	file, err := os.Open(ReplayPath(dir, matchID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, gameerr.New(gameerr.CodeMatchNotFound, "no replay for match %s", matchID)
		}
		return nil, fmt.Errorf("failed to open replay: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay: %w", err)
	}
	defer zr.Close()

	var rf replayFile
	if err := gob.NewDecoder(zr).Decode(&rf); err != nil {
		return nil, fmt.Errorf("failed to decode replay: %w", err)
	}
	return &Replay{
		MatchID:  rf.MatchID,
		RoomCode: rf.RoomCode,
		Started:  rf.Started,
		Frames:   rf.Frames,
	}, nil
}

// replayFile is the on-disk form; Replay itself carries a mutex.
type replayFile struct {
	MatchID  string
	RoomCode string
	Started  time.Time
	Frames   []Frame
}
