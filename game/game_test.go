package game

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"
)

func TestScenarioSix(t *testing.T) {
	is := is.New(t)
	s, err := Initial(6)
	is.NoErr(err)
	is.Equal(s.AvailableMoves(), []int{2, 4, 6})
	is.Equal(s.Key(), "")

	s, err = s.Play(2)
	is.NoErr(err)
	is.Equal(s.AvailableMoves(), []int{1, 4, 6})
	is.Equal(s.Key(), "2")

	s, err = s.Play(4)
	is.NoErr(err)
	is.Equal(s.AvailableMoves(), []int{1})

	s, err = s.Play(1)
	is.NoErr(err)
	is.Equal(s.AvailableMoves(), []int{3, 5, 6})
	is.Equal(s.Key(), "2-4-1")
	is.Equal(s.SideToMove(), Second)
}

func TestInitialRejectsBadGrid(t *testing.T) {
	is := is.New(t)
	for _, n := range []int{-3, 0, 1, MaxGridSize + 1, 1 << 62} {
		_, err := Initial(n)
		is.True(errors.Is(err, ErrInvalidGridSize))
	}
	_, err := AdjacencyFor(1 << 62)
	is.True(errors.Is(err, ErrInvalidGridSize))
	s, err := Initial(MaxGridSize)
	is.NoErr(err)
	is.Equal(s.NumAvailable(), MaxGridSize/2)
}

func TestPlayInvalid(t *testing.T) {
	is := is.New(t)
	s, err := Initial(10)
	is.NoErr(err)

	_, err = s.Play(3)
	is.True(errors.Is(err, ErrInvalidMove)) // first move must be even
	_, err = s.Play(12)
	is.True(errors.Is(err, ErrInvalidMove))

	s2, err := s.Play(4)
	is.NoErr(err)
	_, err = s2.Play(4)
	is.True(errors.Is(err, ErrInvalidMove)) // already played
	_, err = s2.Play(6)
	is.True(errors.Is(err, ErrInvalidMove)) // neither divisor nor multiple

	// The original state is untouched.
	is.Equal(s.NumMoves(), 0)
	is.Equal(s2.Moves(), []int{4})
}

// bruteAvailable applies the rules directly.
func bruteAvailable(n int, moves []int) []int {
	out := []int{}
	used := map[int]bool{}
	for _, m := range moves {
		used[m] = true
	}
	for x := 1; x <= n; x++ {
		if used[x] {
			continue
		}
		if len(moves) == 0 {
			if x%2 == 0 {
				out = append(out, x)
			}
			continue
		}
		last := moves[len(moves)-1]
		if x%last == 0 || last%x == 0 {
			out = append(out, x)
		}
	}
	return out
}

func TestAvailableMovesExhaustive(t *testing.T) {
	is := is.New(t)
	for n := 2; n <= 9; n++ {
		var walk func(s *State)
		walk = func(s *State) {
			is.Equal(s.AvailableMoves(), bruteAvailable(n, s.Moves()))
			is.Equal(s.NumAvailable(), len(s.AvailableMoves()))
			is.Equal(s.IsFinished(), len(s.AvailableMoves()) == 0)
			for _, m := range s.AvailableMoves() {
				c, err := s.Play(m)
				is.NoErr(err)
				walk(c)
			}
		}
		s, err := Initial(n)
		is.NoErr(err)
		walk(s)
	}
}

func TestKeys(t *testing.T) {
	cases := []struct {
		moves []int
		key   string
	}{
		{nil, ""},
		{[]int{4}, "4"},
		{[]int{4, 2, 1, 7}, "4-2-1-7"},
	}
	for _, c := range cases {
		assert.Equal(t, c.key, Key(c.moves))
		got, err := ParseKey(c.key)
		assert.NoError(t, err)
		assert.Equal(t, len(c.moves), len(got))
		assert.Equal(t, len(c.moves), KeyDepth(c.key))
	}
	assert.Equal(t, "4", ChildKey("", 4))
	assert.Equal(t, "4-2", ChildKey("4", 2))
	assert.Equal(t, "4", ParentKey("4-2"))
	assert.Equal(t, "", ParentKey("4"))

	_, err := ParseKey("4--2")
	assert.ErrorIs(t, err, ErrInvalidMove)
	_, err = ParseKey("4-x")
	assert.ErrorIs(t, err, ErrInvalidMove)
}

func TestFromKey(t *testing.T) {
	is := is.New(t)
	s, err := FromKey(20, "12-6-3")
	is.NoErr(err)
	is.Equal(s.LastMove(), 3)
	is.Equal(s.SideToMove(), Second)

	_, err = FromKey(20, "12-5")
	is.True(errors.Is(err, ErrInvalidMove))
}

func TestAdjacency(t *testing.T) {
	is := is.New(t)
	a, err := AdjacencyFor(12)
	is.NoErr(err)
	is.Equal(a.Divisors(12), []int{1, 2, 3, 4, 6})
	is.Equal(a.Multiples(3), []int{6, 9, 12})
	is.Equal(a.Neighbors(4), []int{1, 2, 8, 12})
	is.Equal(a.Connections(1), 11)
	is.True(a.IsPrime(11))
	is.True(!a.IsPrime(9))
	is.True(!a.IsPrime(1))

	played := NewBitset(12)
	played.Set(8)
	played.Set(4)
	is.Equal(a.DynamicConnections(4, played), 3)

	b, err := AdjacencyFor(12)
	is.NoErr(err)
	is.True(a == b) // cached
}

func TestExport(t *testing.T) {
	is := is.New(t)
	s, err := FromMoves(6, []int{2, 4, 1, 5})
	is.NoErr(err)
	is.True(s.IsFinished())

	var sb strings.Builder
	err = Export(&sb, s, GameInfo{
		Date:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		FirstPlayer:  "engine",
		SecondPlayer: "alice",
		TimeBudget:   3 * time.Second,
	})
	is.NoErr(err)
	out := sb.String()
	is.True(strings.Contains(out, "[Result \"0-1\"]"))
	is.True(strings.Contains(out, "1. 2 4\n2. 1 5\n0-1\n"))
	is.True(strings.Contains(out, "[Date \"2026.03.01\"]"))
}

func TestDisplayText(t *testing.T) {
	is := is.New(t)
	st, _ := FromMoves(12, []int{4, 2})
	out := st.ToDisplayText()
	is.True(strings.Contains(out, "[2]"))
	is.True(strings.Contains(out, "6*"))
	is.True(strings.Contains(out, "first to move"))
	is.True(strings.Contains(out, "Moves: 4 2"))
	is.True(!strings.Contains(out, "4*"))

	done, _ := FromMoves(6, []int{4, 2, 6, 3, 1, 5})
	is.True(strings.Contains(done.ToDisplayText(), "Game is over, second player wins."))
}

func TestMustPlayPanics(t *testing.T) {
	is := is.New(t)
	st, _ := Initial(10)
	defer func() {
		is.True(recover() != nil)
	}()
	st.MustPlay(3)
}
