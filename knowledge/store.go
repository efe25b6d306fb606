// Package knowledge keeps what the engine has learned about positions,
// keyed by sequence key, one store per grid size.
package knowledge

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/juniper-u/juniper/game"
)

const (
	DefaultAutosaveEdits    = 10
	DefaultAutosaveInterval = 60 * time.Second

	// Stores at or below this size are not propagated before autosave.
	propagateOnSaveMinEntries = 10
)

var ErrNoStore = errors.New("no store loaded for grid size")

// Options control when a store writes itself out.
type Options struct {
	AutosaveEdits    int
	AutosaveInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.AutosaveEdits <= 0 {
		o.AutosaveEdits = DefaultAutosaveEdits
	}
	if o.AutosaveInterval <= 0 {
		o.AutosaveInterval = DefaultAutosaveInterval
	}
	return o
}

// Store maps sequence keys to entries for one grid size. Every mutation
// (upsert, propagate, snapshot to disk) happens under the write lock, so
// they are serialized. A store with an empty path lives in memory only.
type Store struct {
	mu       sync.RWMutex
	gridSize int
	entries  map[string]*Entry

	path           string
	opts           Options
	editsSinceSave int
	lastSave       time.Time
	lastDigest     uint64
	hasDigest      bool

	now func() time.Time
}

// NewMemoryStore returns an empty store that never touches disk.
func NewMemoryStore(gridSize int) *Store {
	return newStore(gridSize, "", Options{})
}

func newStore(gridSize int, path string, opts Options) *Store {
	return &Store{
		gridSize: gridSize,
		entries:  make(map[string]*Entry),
		path:     path,
		opts:     opts.withDefaults(),
		lastSave: time.Now(),
		now:      time.Now,
	}
}

func (s *Store) GridSize() int { return s.gridSize }
func (s *Store) Path() string  { return s.path }

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns a copy of the entry at key.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Upsert records an observation or a proof for key. It returns false when
// the call changed nothing, which happens only for terminal entries.
// Observations on a non-terminal entry set its outcome to the majority of
// wins and losses; a tie takes the outcome of the latest call.
func (s *Store) Upsert(key string, outcome Outcome, confidence float64, depth int, terminal bool) bool {
	return s.UpsertNoted(key, outcome, confidence, depth, terminal, "")
}

// UpsertNoted is Upsert with a note attached to a newly created entry.
func (s *Store) UpsertNoted(key string, outcome Outcome, confidence float64, depth int,
	terminal bool, note string) bool {

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.upsertLocked(key, outcome, confidence, depth, terminal, note)
	if changed {
		s.editsSinceSave++
		s.maybeAutosaveLocked()
	}
	return changed
}

func (s *Store) upsertLocked(key string, outcome Outcome, confidence float64, depth int,
	terminal bool, note string) bool {

	now := Timestamp{s.now()}
	e, ok := s.entries[key]
	if !ok {
		e = &Entry{
			Outcome:       outcome,
			Depth:         depth,
			VerifiedCount: 1,
			IsTerminal:    terminal,
			Created:       now,
			LastUpdated:   now,
			Note:          note,
		}
		if outcome == Win {
			e.Wins = 1
		} else {
			e.Losses = 1
		}
		if terminal {
			e.Confidence = 1.0
			upserts.WithLabelValues("new-terminal").Inc()
		} else {
			e.Confidence = min(max(confidence, 0), MaxNewConfidence)
			upserts.WithLabelValues("new").Inc()
		}
		s.entries[key] = e
		log.Debug().Str("key", key).Stringer("outcome", outcome).
			Float64("confidence", e.Confidence).Bool("terminal", terminal).
			Int("grid", s.gridSize).Msg("new-sequence")
		return true
	}

	if e.IsTerminal {
		upserts.WithLabelValues("ignored").Inc()
		return false
	}

	if terminal {
		e.Outcome = outcome
		e.Confidence = 1.0
		e.IsTerminal = true
		e.Depth = max(e.Depth, depth)
		e.LastUpdated = now
		if note != "" {
			e.Note = note
		}
		upserts.WithLabelValues("proof").Inc()
		return true
	}

	if outcome == Win {
		e.Wins++
	} else {
		e.Losses++
	}
	e.VerifiedCount++
	e.Depth = max(e.Depth, depth)
	e.Confidence = Confidence(e.Wins, e.Losses, e.VerifiedCount, e.Depth)
	switch {
	case e.Wins > e.Losses:
		e.Outcome = Win
	case e.Losses > e.Wins:
		e.Outcome = Lose
	default:
		e.Outcome = outcome
	}
	e.LastUpdated = now
	upserts.WithLabelValues("observation").Inc()
	return true
}

// Saturated reports whether the entry at key is known well enough to stop
// spending search time on it.
func (s *Store) Saturated(key string) bool {
	e, ok := s.Get(key)
	return ok && e.Saturated()
}

// Coverage is the share of entries that are saturated.
func (s *Store) Coverage() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coverageLocked()
}

func (s *Store) coverageLocked() float64 {
	if len(s.entries) == 0 {
		return 0
	}
	sat := 0
	for _, e := range s.entries {
		if e.Saturated() {
			sat++
		}
	}
	return float64(sat) / float64(len(s.entries))
}

// Snapshot returns a copy of every entry.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.entries))
	for k, e := range s.entries {
		out[k] = *e
	}
	return out
}

// Keys returns all keys ordered by depth, then lexically.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := slices.Collect(maps.Keys(s.entries))
	s.mu.RUnlock()
	slices.SortFunc(keys, byDepthThenKey)
	return keys
}

func byDepthThenKey(a, b string) int {
	if c := cmp.Compare(game.KeyDepth(a), game.KeyDepth(b)); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}

func (s *Store) maybeAutosaveLocked() {
	if s.path == "" {
		return
	}
	if s.editsSinceSave < s.opts.AutosaveEdits && s.now().Sub(s.lastSave) < s.opts.AutosaveInterval {
		return
	}
	log.Debug().Int("edits", s.editsSinceSave).Int("grid", s.gridSize).Msg("autosave")
	if len(s.entries) > propagateOnSaveMinEntries {
		s.propagateLocked()
	}
	if err := s.flushLocked(); err != nil {
		log.Err(err).Str("path", s.path).Msg("autosave-failed")
	}
}
