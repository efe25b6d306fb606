package knowledge

import (
	"testing"

	"github.com/matryer/is"
)

// On a 6 grid the neighbours of 4 are 1 and 2.

func TestPropagateAllChildrenLose(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore(6)
	s.Upsert("4", Lose, 0.4, 2, false)
	s.Upsert("4-1", Lose, 1, 5, true)
	s.Upsert("4-2", Lose, 1, 5, true)

	is.Equal(s.Propagate(), 1)
	e, _ := s.Get("4")
	is.True(e.IsTerminal)
	is.Equal(e.Outcome, Win)
	is.Equal(e.Confidence, 1.0)
}

func TestPropagateAnyChildWins(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore(6)
	s.Upsert("4", Win, 0.9, 2, false)
	s.Upsert("4-1", Lose, 1, 5, true)
	s.Upsert("4-2", Win, 1, 5, true)

	is.Equal(s.Propagate(), 1)
	e, _ := s.Get("4")
	is.Equal(e.Outcome, Lose)
	is.True(e.IsTerminal)
}

func TestPropagateIncomplete(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore(6)
	s.Upsert("4", Win, 0.9, 2, false)
	s.Upsert("4-2", Win, 1, 5, true)
	// 4-1 is missing.
	is.Equal(s.Propagate(), 0)

	s.Upsert("4-1", Lose, 0.9, 5, false)
	is.Equal(s.Propagate(), 0)
	e, _ := s.Get("4")
	is.True(!e.IsTerminal)
	is.Equal(e.Confidence, 0.9)
}

func TestPropagateChain(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore(6)
	// 4-2-6-3-1-5 leaves the next player with nothing to play.
	s.Upsert("4-2-6-3", Lose, 0.5, 4, false)
	s.Upsert("4-2-6-3-1", Win, 0.5, 5, false)
	s.Upsert("4-2-6-3-1-5", Lose, 0.5, 6, false)
	s.Upsert("4-3", Win, 0.5, 2, false) // not a legal sequence

	is.Equal(s.Propagate(), 3)
	want := map[string]Outcome{
		"4-2-6-3-1-5": Win,
		"4-2-6-3-1":   Lose,
		"4-2-6-3":     Win,
	}
	for k, o := range want {
		e, _ := s.Get(k)
		is.True(e.IsTerminal)
		is.Equal(e.Outcome, o)
	}
	e, _ := s.Get("4-3")
	is.True(!e.IsTerminal)

	// A second run finds nothing new.
	is.Equal(s.Propagate(), 0)
}
