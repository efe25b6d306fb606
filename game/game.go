// Package game holds the rules of Juniper Green: players alternately pick
// distinct numbers in [1,N]; the first pick must be even and every later
// pick must divide or be a multiple of the previous one. A player with no
// legal pick loses.
package game

import (
	"errors"
	"fmt"
	"slices"
)

// MinGridSize is the smallest grid with a legal first move.
const MinGridSize = 2

// MaxGridSize bounds the grid so per-grid tables stay small.
const MaxGridSize = 1000

var (
	ErrInvalidMove     = errors.New("invalid move")
	ErrInvalidGridSize = errors.New("invalid grid size")
	ErrNoMoves         = errors.New("no legal moves")
)

// Side identifies a player by move order.
type Side int

const (
	First Side = iota
	Second
)

func (s Side) Other() Side {
	return 1 - s
}

func (s Side) String() string {
	if s == First {
		return "first"
	}
	return "second"
}

// State is an immutable game position. Play returns a new State and never
// modifies the receiver, so states can be shared across goroutines.
type State struct {
	n      int
	moves  []int
	played Bitset
	adj    *Adjacency
}

// Initial returns the empty position on a grid of size n.
func Initial(n int) (*State, error) {
	if n < MinGridSize || n > MaxGridSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGridSize, n)
	}
	adj, err := AdjacencyFor(n)
	if err != nil {
		return nil, err
	}
	return &State{n: n, played: NewBitset(n), adj: adj}, nil
}

// FromMoves replays moves from the empty position on a grid of size n.
// Every move is validated.
func FromMoves(n int, moves []int) (*State, error) {
	s, err := Initial(n)
	if err != nil {
		return nil, err
	}
	for _, m := range moves {
		s, err = s.Play(m)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FromKey replays a sequence key.
func FromKey(n int, key string) (*State, error) {
	moves, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	return FromMoves(n, moves)
}

func (s *State) GridSize() int        { return s.n }
func (s *State) NumMoves() int        { return len(s.moves) }
func (s *State) Adjacency() *Adjacency { return s.adj }

// Moves returns a copy of the move sequence.
func (s *State) Moves() []int {
	return slices.Clone(s.moves)
}

// LastMove returns the last number played, or 0 on an empty position.
func (s *State) LastMove() int {
	if len(s.moves) == 0 {
		return 0
	}
	return s.moves[len(s.moves)-1]
}

func (s *State) Played(x int) bool {
	return s.played.Has(x)
}

// PlayedSet returns a copy of the set of played numbers.
func (s *State) PlayedSet() Bitset {
	return s.played.Clone()
}

func (s *State) SideToMove() Side {
	return Side(len(s.moves) % 2)
}

// LastMover is the side that played the last move. Undefined on an empty
// position.
func (s *State) LastMover() Side {
	return s.SideToMove().Other()
}

// AvailableMoves returns the legal moves, ascending.
func (s *State) AvailableMoves() []int {
	if len(s.moves) == 0 {
		evens := make([]int, 0, s.n/2)
		for x := 2; x <= s.n; x += 2 {
			evens = append(evens, x)
		}
		return evens
	}
	return s.adj.Available(s.LastMove(), s.played)
}

// NumAvailable counts legal moves without allocating.
func (s *State) NumAvailable() int {
	if len(s.moves) == 0 {
		return s.n / 2
	}
	return s.adj.CountAvailable(s.LastMove(), s.played)
}

func (s *State) IsLegal(move int) bool {
	if move < 1 || move > s.n || s.played.Has(move) {
		return false
	}
	if len(s.moves) == 0 {
		return move%2 == 0
	}
	last := s.LastMove()
	return move%last == 0 || last%move == 0
}

func (s *State) IsFinished() bool {
	return s.NumAvailable() == 0
}

// Play returns the position after move.
func (s *State) Play(move int) (*State, error) {
	if !s.IsLegal(move) {
		return nil, fmt.Errorf("%w: %d after %q", ErrInvalidMove, move, s.Key())
	}
	moves := make([]int, len(s.moves)+1)
	copy(moves, s.moves)
	moves[len(s.moves)] = move
	played := s.played.Clone()
	played.Set(move)
	return &State{n: s.n, moves: moves, played: played, adj: s.adj}, nil
}

// MustPlay is Play for moves already known to be legal. It panics otherwise.
func (s *State) MustPlay(move int) *State {
	next, err := s.Play(move)
	if err != nil {
		panic(err)
	}
	return next
}

// Key returns the sequence key of this position.
func (s *State) Key() string {
	return Key(s.moves)
}

func (s *State) String() string {
	return fmt.Sprintf("N=%d [%s] %v to move", s.n, s.Key(), s.SideToMove())
}
