// Package heuristic picks moves on grids too large to solve outright. It
// looks two plies ahead and writes whatever it proves along the way into
// the knowledge store.
package heuristic

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"lukechampine.com/frand"

	"github.com/juniper-u/juniper/game"
	"github.com/juniper-u/juniper/knowledge"
)

const (
	// Score of a move that leaves the opponent without a reply.
	WinScore = 1000

	maxCandidates     = 10
	trapReplies       = 5
	scoredReplies     = 8
	topChoices        = 3
	minFirstMoveConns = 8
	minPrefilterConns = 3

	// Large grids skip the small even first moves.
	largeGrid = 40

	trapConfidence = 0.95
	lookaheadDepth = 2
)

var ErrWrongGrid = errors.New("state and selector grid sizes differ")

// Selector chooses moves from the shape of the divisor graph. The store
// may be nil, in which case nothing is recorded.
type Selector struct {
	store *knowledge.Store
	adj   *game.Adjacency
}

func NewSelector(store *knowledge.Store, adj *game.Adjacency) *Selector {
	return &Selector{store: store, adj: adj}
}

type scored struct {
	move  int
	score int
}

func byScoreDesc(a, b scored) int {
	return cmp.Compare(b.score, a.score)
}

// ranked scores moves by how many neighbors stay open after each, best
// first, keeping those with at least minConns.
func (sel *Selector) ranked(st *game.State, moves []int, minConns int) []scored {
	played := st.PlayedSet()
	out := lo.FilterMap(moves, func(m int, _ int) (scored, bool) {
		c := sel.adj.DynamicConnections(m, played)
		return scored{move: m, score: c}, c >= minConns
	})
	slices.SortStableFunc(out, byScoreDesc)
	return out
}

func (sel *Selector) check(st *game.State) error {
	if st.GridSize() != sel.adj.GridSize() {
		return fmt.Errorf("%w: %d != %d", ErrWrongGrid, st.GridSize(), sel.adj.GridSize())
	}
	if st.IsFinished() {
		return game.ErrNoMoves
	}
	return nil
}

// FirstMove picks an opening move: an even number with many open
// neighbors, chosen at random from the best third.
func (sel *Selector) FirstMove(st *game.State) (int, error) {
	if err := sel.check(st); err != nil {
		return 0, err
	}
	if st.NumMoves() > 0 {
		return 0, fmt.Errorf("%w: game already started", game.ErrInvalidMove)
	}
	n := st.GridSize()
	cands := st.AvailableMoves()
	if n >= largeGrid {
		cands = lo.Filter(cands, func(m int, _ int) bool { return m >= 10 })
	}
	if best := sel.ranked(st, cands, minFirstMoveConns); len(best) > 0 {
		top := min(len(best), max(topChoices, len(best)/3))
		choice := best[frand.Intn(top)]
		log.Debug().Int("move", choice.move).Int("connections", choice.score).Msg("heuristic-first-move")
		return choice.move, nil
	}
	if n >= largeGrid {
		safe := lo.Filter(cands, func(m int, _ int) bool { return m >= n/4 })
		if len(safe) > 0 {
			return safe[frand.Intn(len(safe))], nil
		}
	}
	return cands[frand.Intn(len(cands))], nil
}

// Move picks a move for the side to play.
func (sel *Selector) Move(st *game.State) (int, error) {
	if err := sel.check(st); err != nil {
		return 0, err
	}
	if st.NumMoves() == 0 {
		return sel.FirstMove(st)
	}
	n := st.GridSize()
	avail := st.AvailableMoves()

	// A prime above N/2 has no neighbor but 1, so after an opponent's 1 it
	// wins on the spot.
	if st.LastMove() == 1 {
		primes := lo.Filter(avail, func(m int, _ int) bool {
			return 2*m > n && sel.adj.IsPrime(m)
		})
		if len(primes) > 0 {
			return lo.Max(primes), nil
		}
	}

	if len(avail) > 1 {
		avail = lo.Without(avail, 1)
	}
	if len(avail) == 1 {
		return avail[0], nil
	}

	if len(avail) > maxCandidates {
		best := sel.ranked(st, avail, minPrefilterConns)
		if len(best) == 0 {
			best = sel.ranked(st, avail, 0)
		}
		best = best[:min(len(best), maxCandidates)]
		avail = lo.Map(best, func(s scored, _ int) int { return s.move })
	}

	if safe := lo.Filter(avail, func(m int, _ int) bool { return sel.safe(st, m) }); len(safe) > 0 {
		avail = safe
	}

	evaluated := lo.Map(avail, func(m int, _ int) scored {
		return scored{move: m, score: sel.score(st, m)}
	})
	slices.SortStableFunc(evaluated, byScoreDesc)
	choice := evaluated[frand.Intn(min(topChoices, len(evaluated)))]
	log.Debug().Int("move", choice.move).Int("worst-case", evaluated[0].score).
		Int("candidates", len(evaluated)).Msg("heuristic-2ply")
	return choice.move, nil
}

// safe reports whether none of the first few replies to m leaves the mover
// with nothing, or with only 1.
func (sel *Selector) safe(st *game.State, m int) bool {
	child := st.MustPlay(m)
	replies := child.AvailableMoves()
	for _, r := range replies[:min(len(replies), trapReplies)] {
		after := child.MustPlay(r)
		opts := after.AvailableMoves()
		if len(opts) == 0 || (len(opts) == 1 && opts[0] == 1) {
			sel.record(child.Key(), knowledge.Lose, trapConfidence, false)
			if len(opts) == 0 {
				sel.record(after.Key(), knowledge.Win, 1, true)
			}
			return false
		}
	}
	return true
}

// score is the fewest options the mover can be left with after m and one
// reply, or WinScore when there is no reply.
func (sel *Selector) score(st *game.State, m int) int {
	child := st.MustPlay(m)
	replies := child.AvailableMoves()
	if len(replies) == 0 {
		sel.record(child.Key(), knowledge.Win, 1, true)
		return WinScore
	}
	worst := WinScore
	for _, r := range replies[:min(len(replies), scoredReplies)] {
		after := child.MustPlay(r)
		opts := after.NumAvailable()
		if opts == 0 {
			sel.record(after.Key(), knowledge.Win, 1, true)
		}
		worst = min(worst, opts)
	}
	return worst
}

func (sel *Selector) record(key string, outcome knowledge.Outcome, confidence float64, terminal bool) {
	if sel.store == nil {
		return
	}
	sel.store.Upsert(key, outcome, confidence, lookaheadDepth, terminal)
}
