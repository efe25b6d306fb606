package knowledge

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
)

func tempStorePath(t *testing.T, n int) string {
	return filepath.Join(t.TempDir(), "data", FileName(n))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func TestRoundTrip(t *testing.T) {
	is := is.New(t)
	path := tempStorePath(t, 20)
	s, err := Open(path, 20, Options{})
	is.NoErr(err)
	is.Equal(s.Len(), 0)
	is.True(!exists(path))

	s.Upsert("4", Win, 0.7, 8, false)
	s.Upsert("4", Win, 0.7, 10, false)
	s.UpsertNoted("14", Lose, 1, 99, true, NotePrecalculated)
	is.NoErr(s.Flush())
	is.True(exists(path))

	data, err := os.ReadFile(path)
	is.NoErr(err)
	var raw map[string]any
	is.NoErr(json.Unmarshal(data, &raw))
	is.Equal(raw["version"], FileVersion)
	is.Equal(raw["grid_size"], 20.0)
	st := raw["stats"].(map[string]any)
	is.Equal(st["total_sequences"], 2.0)
	is.Equal(st["terminal_sequences"], 1.0)
	is.Equal(st["pre_calculated"], 1.0)

	s2, err := Open(path, 20, Options{})
	is.NoErr(err)
	is.Equal(s2.Len(), 2)
	e, ok := s2.Get("4")
	is.True(ok)
	is.Equal(e.Outcome, Win)
	is.Equal(e.Wins, 2)
	is.Equal(e.VerifiedCount, 2)
	is.Equal(e.Depth, 10)
	is.Equal(e.Confidence, 0.95)
	e, _ = s2.Get("14")
	is.True(e.IsTerminal)
	is.Equal(e.Note, NotePrecalculated)
}

func TestCorruptFileMovedAside(t *testing.T) {
	bad := map[string]string{
		"garbage":       "not json at all",
		"version":       `{"grid_size":20,"version":"1.0","sequences":{}}`,
		"grid mismatch": `{"grid_size":30,"version":"2.0","sequences":{}}`,
	}
	for name, content := range bad {
		t.Run(name, func(t *testing.T) {
			is := is.New(t)
			path := tempStorePath(t, 20)
			is.NoErr(os.MkdirAll(filepath.Dir(path), 0o755))
			is.NoErr(os.WriteFile(path, []byte(content), 0o644))

			s, err := Open(path, 20, Options{})
			is.NoErr(err)
			is.Equal(s.Len(), 0)
			is.True(!exists(path))
			aside, err := filepath.Glob(path + ".bad-*")
			is.NoErr(err)
			is.Equal(len(aside), 1)
		})
	}
}

func TestLoadClampsConfidence(t *testing.T) {
	is := is.New(t)
	path := tempStorePath(t, 20)
	is.NoErr(os.MkdirAll(filepath.Dir(path), 0o755))
	content := `{
  "grid_size": 20,
  "version": "2.0",
  "sequences": {
    "4": {"outcome": "win", "confidence": 1.0375, "depth": 80, "wins": 1, "losses": 0,
          "verified_count": 1, "is_terminal": false},
    "6": {"outcome": "lose", "confidence": 0.3, "depth": 99, "wins": 0, "losses": 1,
          "verified_count": 1, "is_terminal": true},
    "8": {"outcome": "win", "confidence": 0.99, "depth": 12, "wins": 1, "losses": 0,
          "verified_count": 1, "is_terminal": false},
    "10": {"outcome": "lose", "confidence": -0.2, "depth": 3, "wins": 0, "losses": 1,
          "verified_count": 1, "is_terminal": false}
  }
}`
	is.NoErr(os.WriteFile(path, []byte(content), 0o644))
	s, err := Open(path, 20, Options{})
	is.NoErr(err)
	is.Equal(s.Len(), 4)

	e, _ := s.Get("4")
	is.Equal(e.Confidence, MaxNewConfidence)
	is.True(!e.IsTerminal)
	e, _ = s.Get("6")
	is.Equal(e.Confidence, 1.0)
	is.True(e.IsTerminal)
	e, _ = s.Get("8")
	is.Equal(e.Confidence, MaxNewConfidence)
	e, _ = s.Get("10")
	is.Equal(e.Confidence, 0.0)
}

func TestLoadsZonelessTimestamps(t *testing.T) {
	is := is.New(t)
	path := tempStorePath(t, 20)
	is.NoErr(os.MkdirAll(filepath.Dir(path), 0o755))
	content := `{
  "grid_size": 20,
  "version": "2.0",
  "last_updated": "2024-03-01T10:00:00.123456",
  "sequences": {
    "4": {"outcome": "win", "confidence": 0.9, "depth": 10, "wins": 3, "losses": 0,
          "verified_count": 3, "is_terminal": false,
          "created": "2024-03-01T10:00:00.5", "last_updated": "2024-03-01T10:00:01"}
  },
  "stats": {"total_sequences": 1, "terminal_sequences": 0, "coverage": 0}
}`
	is.NoErr(os.WriteFile(path, []byte(content), 0o644))
	s, err := Open(path, 20, Options{})
	is.NoErr(err)
	e, ok := s.Get("4")
	is.True(ok)
	is.Equal(e.Created.Month(), time.March)
	is.Equal(e.Wins, 3)
}

func TestAutosaveByEdits(t *testing.T) {
	is := is.New(t)
	path := tempStorePath(t, 20)
	s, err := Open(path, 20, Options{AutosaveEdits: 3, AutosaveInterval: time.Hour})
	is.NoErr(err)
	s.Upsert("2", Win, 0.5, 1, false)
	s.Upsert("4", Win, 0.5, 1, false)
	is.True(!exists(path))
	s.Upsert("6", Win, 0.5, 1, false)
	is.True(exists(path))
}

func TestAutosaveByInterval(t *testing.T) {
	is := is.New(t)
	path := tempStorePath(t, 20)
	s, err := Open(path, 20, Options{AutosaveEdits: 100, AutosaveInterval: time.Minute})
	is.NoErr(err)
	s.Upsert("2", Win, 0.5, 1, false)
	is.True(!exists(path))

	later := time.Now().Add(2 * time.Minute)
	s.now = func() time.Time { return later }
	s.Upsert("4", Win, 0.5, 1, false)
	is.True(exists(path))
}

func TestFlushSkipsUnchanged(t *testing.T) {
	is := is.New(t)
	path := tempStorePath(t, 20)
	s, err := Open(path, 20, Options{})
	is.NoErr(err)
	s.Upsert("2", Win, 0.5, 1, false)
	is.NoErr(s.Flush())
	is.NoErr(os.Remove(path))

	is.NoErr(s.Flush())
	is.True(!exists(path))

	s.Upsert("2", Win, 0.5, 1, false)
	is.NoErr(s.Flush())
	is.True(exists(path))
}

func TestMemoryStoreNeverWrites(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore(20)
	for i := 0; i < 50; i++ {
		s.Upsert("2", Win, 0.5, 1, false)
	}
	is.NoErr(s.Flush())
	is.Equal(s.Path(), "")
}
