package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"
)

// FileVersion is the only knowledge file version the loader accepts.
const FileVersion = "2.0"

// NotePrecalculated marks entries merged by the first-move pre-calculator.
const NotePrecalculated = "Pre-calculated first move"

// FileStats is the summary block written with each knowledge file.
type FileStats struct {
	TotalSequences    int     `json:"total_sequences"`
	TerminalSequences int     `json:"terminal_sequences"`
	PreCalculated     int     `json:"pre_calculated,omitempty"`
	Coverage          float64 `json:"coverage"`
}

type fileRecord struct {
	GridSize    int             `json:"grid_size"`
	Version     string          `json:"version"`
	LastUpdated Timestamp       `json:"last_updated"`
	Sequences   json.RawMessage `json:"sequences"`
	Stats       FileStats       `json:"stats"`
}

type loadRecord struct {
	GridSize  int               `json:"grid_size"`
	Version   string            `json:"version"`
	Sequences map[string]*Entry `json:"sequences"`
}

// FileName is the knowledge file name for a grid size.
func FileName(gridSize int) string {
	return fmt.Sprintf("knowledge_%d.json", gridSize)
}

// Open loads the store persisted at path. A missing file gives an empty
// store. An unreadable, corrupt or mismatched file is logged, moved aside,
// and also gives an empty store. The error is non-nil only when the
// directory for path cannot be created.
func Open(path string, gridSize int, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s := newStore(gridSize, path, opts)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", path).Int("grid", gridSize).Msg("no-knowledge-file-starting-empty")
		return s, nil
	}
	if err != nil {
		log.Err(err).Str("path", path).Msg("knowledge-file-unreadable-starting-empty")
		return s, nil
	}
	entries, err := decode(data, gridSize)
	if err != nil {
		aside := fmt.Sprintf("%s.bad-%d", path, time.Now().Unix())
		if rerr := os.Rename(path, aside); rerr != nil {
			log.Err(rerr).Str("path", path).Msg("could-not-move-bad-knowledge-file")
		}
		log.Warn().Err(err).Str("path", path).Str("moved-to", aside).
			Msg("knowledge-file-rejected-starting-empty")
		return s, nil
	}
	s.entries = entries
	if seqs, err := json.Marshal(entries); err == nil {
		s.lastDigest, s.hasDigest = xxhash.Sum64(seqs), true
	}
	log.Info().Str("path", path).Int("grid", gridSize).Int("sequences", len(entries)).
		Msg("store-loaded")
	return s, nil
}

var (
	errVersion  = errors.New("unsupported knowledge file version")
	errGridSize = errors.New("knowledge file is for another grid size")
)

func decode(data []byte, gridSize int) (map[string]*Entry, error) {
	var rec loadRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.Version != FileVersion {
		return nil, fmt.Errorf("%w: %q", errVersion, rec.Version)
	}
	if rec.GridSize != gridSize {
		return nil, fmt.Errorf("%w: %d", errGridSize, rec.GridSize)
	}
	entries := make(map[string]*Entry, len(rec.Sequences))
	for k, e := range rec.Sequences {
		if e == nil {
			continue
		}
		if e.IsTerminal {
			e.Confidence = 1.0
		} else {
			e.Confidence = min(max(e.Confidence, 0), MaxNewConfidence)
		}
		entries[k] = e
	}
	return entries, nil
}

// Flush writes the store out now. It is a no-op for in-memory stores and
// when nothing changed since the last write.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if s.path == "" {
		return nil
	}
	seqs, err := json.Marshal(s.entries)
	if err != nil {
		return err
	}
	digest := xxhash.Sum64(seqs)
	if s.hasDigest && digest == s.lastDigest {
		s.editsSinceSave = 0
		s.lastSave = s.now()
		flushes.WithLabelValues("unchanged").Inc()
		return nil
	}
	rec := fileRecord{
		GridSize:    s.gridSize,
		Version:     FileVersion,
		LastUpdated: Timestamp{s.now()},
		Sequences:   seqs,
		Stats:       s.fileStatsLocked(),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		flushes.WithLabelValues("error").Inc()
		return err
	}
	s.lastDigest, s.hasDigest = digest, true
	s.editsSinceSave = 0
	s.lastSave = s.now()
	flushes.WithLabelValues("written").Inc()
	log.Debug().Str("path", s.path).Int("sequences", len(s.entries)).Msg("store-flushed")
	return nil
}

func (s *Store) fileStatsLocked() FileStats {
	st := FileStats{
		TotalSequences: len(s.entries),
		Coverage:       s.coverageLocked(),
	}
	for _, e := range s.entries {
		if e.IsTerminal {
			st.TerminalSequences++
		}
		if e.Note == NotePrecalculated {
			st.PreCalculated++
		}
	}
	return st
}

// writeFileAtomic replaces path with data via a temp file in the same
// directory, so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
