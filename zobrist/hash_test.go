package zobrist

import (
	"testing"

	"github.com/matryer/is"

	"github.com/juniper-u/juniper/game"
)

func TestHashAfterMakingPlay(t *testing.T) {
	is := is.New(t)
	z := &Zobrist{}
	z.Initialize(20)

	s, err := game.FromMoves(20, []int{12, 6})
	is.NoErr(err)
	h := z.Hash(s)

	s1, err := s.Play(3)
	is.NoErr(err)
	h1 := z.AddMove(h, 6, 3)
	is.Equal(h1, z.Hash(s1))

	// and unplay
	is.Equal(z.AddMove(h1, 6, 3), h)
}

func TestTranspositionsShareHash(t *testing.T) {
	is := is.New(t)
	z := &Zobrist{}
	z.Initialize(20)

	a, err := game.FromMoves(20, []int{4, 2, 8, 1, 5})
	is.NoErr(err)
	b, err := game.FromMoves(20, []int{8, 2, 4, 1, 5})
	is.NoErr(err)
	is.True(a.Key() != b.Key())
	is.Equal(z.Hash(a), z.Hash(b))

	c, err := game.FromMoves(20, []int{4, 2, 8, 1, 7})
	is.NoErr(err)
	is.True(z.Hash(a) != z.Hash(c))
}

func TestEmptyPosition(t *testing.T) {
	is := is.New(t)
	z := &Zobrist{}
	z.Initialize(10)
	s, err := game.Initial(10)
	is.NoErr(err)
	h := z.Hash(s)
	s1, err := s.Play(4)
	is.NoErr(err)
	is.Equal(z.AddMove(h, 0, 4), z.Hash(s1))
}
