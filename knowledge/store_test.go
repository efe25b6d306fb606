package knowledge

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/juniper-u/juniper/stats"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func TestConfidence(t *testing.T) {
	cases := []struct {
		name                          string
		wins, losses, verified, depth int
		want                          float64
	}{
		{"unanimous deep", 5, 0, 5, 15, 0.98},
		{"unanimous losses deep", 0, 7, 7, 20, 0.98},
		{"unanimous medium", 3, 0, 3, 10, 0.95},
		{"unanimous shallow", 3, 0, 3, 9, 0.90},
		{"split", 2, 2, 4, 20, 0.04},
		{"mostly wins", 3, 1, 4, 5, 0.54},
		{"bonus capped", 30, 10, 40, 5, 0.70},
		{"rate capped", 9, 1, 30, 5, 0.90},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.InDelta(t, c.want, Confidence(c.wins, c.losses, c.verified, c.depth), 1e-9)
		})
	}
}

func TestOutcomeJSON(t *testing.T) {
	is := is.New(t)
	b, err := json.Marshal(Entry{Outcome: Win})
	is.NoErr(err)
	var m map[string]any
	is.NoErr(json.Unmarshal(b, &m))
	is.Equal(m["outcome"], "win")

	var e Entry
	is.NoErr(json.Unmarshal([]byte(`{"outcome":"lose","created":"2025-01-12T10:11:12.123456"}`), &e))
	is.Equal(e.Outcome, Lose)
	is.Equal(e.Created.Year(), 2025)

	is.True(json.Unmarshal([]byte(`{"outcome":"draw"}`), &e) != nil)
}

func TestUpsertNew(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore(20)

	is.True(s.Upsert("4", Win, 0.7, 8, false))
	e, ok := s.Get("4")
	is.True(ok)
	is.Equal(e.Outcome, Win)
	is.Equal(e.Confidence, 0.7)
	is.Equal(e.Wins, 1)
	is.Equal(e.Losses, 0)
	is.Equal(e.VerifiedCount, 1)
	is.True(!e.IsTerminal)

	s.Upsert("6", Lose, 1.0, 3, false)
	e, _ = s.Get("6")
	is.Equal(e.Confidence, MaxNewConfidence)

	s.Upsert("8", Lose, 0.2, 3, true)
	e, _ = s.Get("8")
	is.Equal(e.Confidence, 1.0)
	is.True(e.IsTerminal)
}

func TestTerminalImmutable(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore(20)
	s.Upsert("4-2", Lose, 1.0, 12, true)
	before, _ := s.Get("4-2")

	is.True(!s.Upsert("4-2", Win, 0.5, 3, false))
	is.True(!s.Upsert("4-2", Win, 1.0, 3, true))
	after, _ := s.Get("4-2")
	is.Equal(before, after)
}

func TestProofOverridesStatistics(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore(20)
	s.Upsert("10", Win, 0.8, 6, false)
	s.Upsert("10", Win, 0.8, 6, false)
	is.True(s.Upsert("10", Lose, 0.3, 99, true))
	e, _ := s.Get("10")
	is.Equal(e.Outcome, Lose)
	is.Equal(e.Confidence, 1.0)
	is.True(e.IsTerminal)
	is.Equal(e.Depth, 99)
}

func TestObservations(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore(20)
	s.Upsert("12", Win, 0.85, 8, false)
	s.Upsert("12", Win, 0.85, 12, false)
	e, _ := s.Get("12")
	is.Equal(e.Wins, 2)
	is.Equal(e.VerifiedCount, 2)
	is.Equal(e.Depth, 12)
	is.Equal(e.Confidence, 0.95)

	// A shallower observation keeps the tracked depth.
	s.Upsert("12", Lose, 0.85, 4, false)
	e, _ = s.Get("12")
	is.Equal(e.Depth, 12)
	is.Equal(e.Losses, 1)
	is.Equal(e.Outcome, Win)
	is.True(e.Confidence < 0.95)

	s.Upsert("12", Lose, 0.85, 4, false)
	s.Upsert("12", Lose, 0.85, 4, false)
	e, _ = s.Get("12")
	is.Equal(e.Outcome, Lose) // majority
}

func TestSaturated(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore(20)
	is.True(!s.Saturated("2"))
	for range 30 {
		s.Upsert("2", Win, 0.9, 10, false)
	}
	is.True(s.Saturated("2"))
	is.Equal(s.Coverage(), 1.0)
	s.Upsert("4", Win, 0.9, 10, false)
	is.Equal(s.Coverage(), 0.5)
}

func TestTargets(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore(20)
	s.Upsert("", Win, 0.5, 1, false)
	s.Upsert("4", Win, 0.5, 1, false)
	s.Upsert("2", Win, 0.5, 1, false)
	s.Upsert("6", Win, 0.5, 1, true)
	s.Upsert("4-2", Lose, 0.5, 1, false)
	s.Upsert("4-2-1-3-9-18-6-12-4-8", Lose, 0.5, 1, false)
	for range 30 {
		s.Upsert("8", Win, 0.9, 10, false)
	}

	is.Equal(s.ShortestUnsaturated(5), []string{"2", "4", "4-2"})
	is.Equal(s.ShortestUnsaturated(2), []string{"2", "4"})
	is.Equal(len(s.ShortestUnsaturated(0)), 0)

	k, ok := s.AnyUncertain(6)
	is.True(ok)
	is.Equal(k, "")

	s2 := NewMemoryStore(20)
	s2.Upsert("4-2", Lose, 0.5, 1, false)
	s2.Upsert("4", Win, 1, 1, true)
	k, ok = s2.AnyUncertain(1)
	is.True(!ok)
	k, ok = s2.AnyUncertain(2)
	is.True(ok)
	is.Equal(k, "4-2")
}

func TestSnapshotIsCopy(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore(20)
	s.Upsert("4", Win, 0.5, 1, false)
	snap := s.Snapshot()
	e := snap["4"]
	e.Confidence = 0.01
	snap["4"] = e
	got, _ := s.Get("4")
	is.Equal(got.Confidence, 0.5)
	is.Equal(s.Keys(), []string{"4"})
}

func TestSummary(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore(20)
	s.Upsert("4", Win, 0.5, 1, false)
	s.Upsert("4-2", Lose, 1, 1, true)
	sum := s.Summary()
	is.Equal(sum.Total, 2)
	is.Equal(sum.Terminal, 1)
	is.Equal(sum.ByDepth[1], 1)
	is.Equal(sum.ByDepth[2], 1)
	is.Equal(sum.Confidences, []float64{0.5})
	is.True(stats.FuzzyEqual(sum.ConfidenceMean, 0.75))
	is.True(len(sum.String()) > 0)
}
