// Package solver proves Juniper Green positions with a two-valued
// alpha-beta search.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/juniper-u/juniper/game"
	"github.com/juniper-u/juniper/zobrist"
)

// The search is negamax over {false < true}:
/*
function solve(node, depth, maxDepth, α, β) is
    if node has no moves then return false
    if node has ≤ 5 moves then maxDepth := ∞
    if depth ≥ maxDepth then return false (unproven)
    value := false
    foreach child in orderMoves(node) do
        value := value ∨ ¬solve(child, depth+1, maxDepth, ¬β, ¬α)
        α := α ∨ value
        if α ≥ β then break
    return value
*/
// It runs on an explicit stack of frames instead of Go recursion.

// Unbounded is a depth cap that is never reached.
const Unbounded = math.MaxInt32

// EndgameExtension is the legal-move count at or below which a node's
// subtree is searched without a depth cap.
const EndgameExtension = 5

const defaultTTMemoryFraction = 0.05

var (
	ErrNoCandidates = errors.New("no candidate moves")
	ErrWrongGrid    = errors.New("state grid size does not match solver")
)

// Result of searching a position.
type Result struct {
	// Win is true when the side to move can force a win.
	Win bool
	// Exact is false when a depth-truncated leaf influenced Win. Inexact
	// results are bounds, not proofs.
	Exact bool
}

// MoveResult is the outcome of one root candidate for the side playing it.
type MoveResult struct {
	Move int
	// Win is true when playing Move forces a win for the side playing it.
	Win   bool
	Exact bool
	// OpponentReplies is the number of legal replies after Move.
	OpponentReplies int
	// Searched is false when the search stopped before this move was
	// evaluated.
	Searched bool
}

type Solver struct {
	gridSize int
	zobrist  *zobrist.Zobrist
	ttable   *TranspositionTable
	ttOnce   sync.Once

	transpositionTableOptim bool
	moveOrderingOptim       bool
	threads                 int
	ttMemoryFraction        float64

	nodes atomic.Uint64
}

// NewSolver returns a solver for positions on a grid of size gridSize. A
// Solver is safe for concurrent use; its transposition table is shared by
// all searches.
func NewSolver(gridSize int) *Solver {
	s := &Solver{
		gridSize:                gridSize,
		zobrist:                 &zobrist.Zobrist{},
		ttable:                  NewTranspositionTable(),
		transpositionTableOptim: true,
		moveOrderingOptim:       true,
		threads:                 max(1, runtime.NumCPU()),
		ttMemoryFraction:        defaultTTMemoryFraction,
	}
	s.zobrist.Initialize(gridSize)
	return s
}

func (s *Solver) SetTranspositionTableOptim(tt bool) {
	s.transpositionTableOptim = tt
}

func (s *Solver) SetMoveOrderingOptim(o bool) {
	s.moveOrderingOptim = o
}

// SetThreads sets the number of root workers. Zero or less means one per
// CPU.
func (s *Solver) SetThreads(threads int) {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	s.threads = max(1, threads)
}

func (s *Solver) SetTTMemoryFraction(f float64) {
	if f > 0 {
		s.ttMemoryFraction = f
	}
}

func (s *Solver) GridSize() int { return s.gridSize }

func (s *Solver) Nodes() uint64 { return s.nodes.Load() }

func (s *Solver) TranspositionTable() *TranspositionTable {
	s.initTT()
	return s.ttable
}

func (s *Solver) initTT() {
	s.ttOnce.Do(func() {
		s.ttable.Reset(s.ttMemoryFraction)
	})
}

// Solve searches state to at most maxDepth plies with a full window.
func (s *Solver) Solve(ctx context.Context, state *game.State, maxDepth int) (Result, error) {
	return s.AlphaBeta(ctx, state, 0, maxDepth, false, true)
}

// AlphaBeta reports whether the side to move at state can force a win,
// with state at ply depth of a search capped at maxDepth. The window is
// (alpha, beta) on false < true; results are exact only for the full
// window (false, true). A cancelled ctx aborts the search with ctx.Err().
func (s *Solver) AlphaBeta(ctx context.Context, state *game.State, depth, maxDepth int,
	alpha, beta bool) (Result, error) {

	if state.GridSize() != s.gridSize {
		return Result{}, fmt.Errorf("%w: %d != %d", ErrWrongGrid, state.GridSize(), s.gridSize)
	}
	if s.transpositionTableOptim {
		s.initTT()
	}
	sr := &searcher{
		s:      s,
		ctx:    ctx,
		adj:    state.Adjacency(),
		played: state.PlayedSet(),
		last:   state.LastMove(),
	}
	return sr.run(depth, maxDepth, alpha, beta, s.zobrist.Hash(state))
}

type frame struct {
	moves []int
	next  int

	depth       int
	maxDepth    int
	alpha, beta bool
	full        bool

	value bool
	exact bool

	hash uint64
	// The move that led here, and the last move before it.
	move     int
	prevLast int
}

// absorb folds in the result of one child, seen from the child's mover.
func (f *frame) absorb(r Result) {
	if !r.Win {
		f.value = true
		f.exact = f.full && r.Exact
		f.alpha = true
		return
	}
	f.exact = f.exact && r.Exact
}

func (f *frame) cutoff() bool {
	return ge(f.alpha, f.beta)
}

func ge(a, b bool) bool {
	return a || !b
}

type searcher struct {
	s      *Solver
	ctx    context.Context
	adj    *game.Adjacency
	played game.Bitset
	last   int
	stack  []frame
}

func (sr *searcher) available() []int {
	if sr.last == 0 {
		evens := make([]int, 0, sr.s.gridSize/2)
		for x := 2; x <= sr.s.gridSize; x += 2 {
			if !sr.played.Has(x) {
				evens = append(evens, x)
			}
		}
		return evens
	}
	return sr.adj.Available(sr.last, sr.played)
}

func (sr *searcher) numAvailable() int {
	if sr.last == 0 {
		return len(sr.available())
	}
	return sr.adj.CountAvailable(sr.last, sr.played)
}

// orderedMoves puts the moves that leave the opponent the fewest replies
// first. A move that leaves none wins outright.
func (sr *searcher) orderedMoves() []int {
	moves := sr.available()
	if !sr.s.moveOrderingOptim || len(moves) < 2 {
		return moves
	}
	replies := make(map[int]int, len(moves))
	for _, m := range moves {
		sr.played.Set(m)
		replies[m] = sr.adj.CountAvailable(m, sr.played)
		sr.played.Clear(m)
	}
	slices.SortStableFunc(moves, func(a, b int) int {
		return replies[a] - replies[b]
	})
	return moves
}

func (sr *searcher) play(m int) {
	sr.played.Set(m)
	sr.last = m
}

func (sr *searcher) unplay(m, prevLast int) {
	sr.played.Clear(m)
	sr.last = prevLast
}

// enter evaluates the node at the current position if it resolves without
// expanding children; otherwise it pushes a frame for it.
func (sr *searcher) enter(depth, maxDepth int, alpha, beta bool, hash uint64) (Result, bool) {
	sr.s.nodes.Add(1)
	n := sr.numAvailable()
	if n == 0 {
		return Result{Win: false, Exact: true}, true
	}
	if sr.s.transpositionTableOptim {
		if win, ok := sr.s.ttable.lookup(hash); ok {
			return Result{Win: win, Exact: true}, true
		}
	}
	if n <= EndgameExtension {
		maxDepth = Unbounded
	}
	if depth >= maxDepth {
		return Result{Win: false, Exact: false}, true
	}
	if ge(alpha, beta) {
		return Result{Win: alpha}, true
	}
	full := !alpha && beta
	sr.stack = append(sr.stack, frame{
		moves:    sr.orderedMoves(),
		depth:    depth,
		maxDepth: maxDepth,
		alpha:    alpha,
		beta:     beta,
		full:     full,
		exact:    full,
		hash:     hash,
	})
	return Result{}, false
}

func (sr *searcher) run(depth, maxDepth int, alpha, beta bool, hash uint64) (Result, error) {
	if res, done := sr.enter(depth, maxDepth, alpha, beta, hash); done {
		return res, nil
	}
	done := sr.ctx.Done()
	for {
		select {
		case <-done:
			return Result{}, sr.ctx.Err()
		default:
		}
		top := len(sr.stack) - 1
		f := &sr.stack[top]
		if f.next < len(f.moves) && !f.cutoff() {
			m := f.moves[f.next]
			f.next++
			prevLast := sr.last
			childHash := sr.s.zobrist.AddMove(f.hash, prevLast, m)
			cDepth, cMax, cAlpha, cBeta := f.depth+1, f.maxDepth, !f.beta, !f.alpha
			sr.play(m)
			res, resolved := sr.enter(cDepth, cMax, cAlpha, cBeta, childHash)
			if !resolved {
				child := &sr.stack[len(sr.stack)-1]
				child.move = m
				child.prevLast = prevLast
				continue
			}
			sr.unplay(m, prevLast)
			sr.stack[top].absorb(res)
			continue
		}

		res := Result{Win: f.value, Exact: f.exact}
		if res.Exact && sr.s.transpositionTableOptim {
			sr.s.ttable.store(f.hash, res.Win)
		}
		move, prevLast := f.move, f.prevLast
		sr.stack = sr.stack[:top]
		if top == 0 {
			return res, nil
		}
		sr.unplay(move, prevLast)
		sr.stack[top-1].absorb(res)
	}
}

// SolveMoves evaluates each candidate root move of state in parallel. Each
// worker owns a deque of candidates and steals from the others when its
// own runs dry. On cancellation the moves finished so far are returned
// along with ctx's error.
func (s *Solver) SolveMoves(ctx context.Context, state *game.State, candidates []int,
	maxDepth int) ([]MoveResult, error) {

	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	children := make([]*game.State, len(candidates))
	results := make([]MoveResult, len(candidates))
	for i, m := range candidates {
		c, err := state.Play(m)
		if err != nil {
			return nil, err
		}
		children[i] = c
		results[i] = MoveResult{Move: m, OpponentReplies: c.NumAvailable()}
	}

	threads := min(s.threads, len(candidates))
	deques := make([]*WorkDeque, threads)
	for t := range threads {
		var idx []int
		for i := t; i < len(candidates); i += threads {
			idx = append(idx, i)
		}
		deques[t] = NewWorkDeque(idx)
	}

	startNodes := s.nodes.Load()
	startTime := time.Now()
	tickerCtx, cancelTicker := context.WithCancel(ctx)
	defer cancelTicker()
	go s.logProgress(tickerCtx, startNodes, startTime)

	g, gctx := errgroup.WithContext(ctx)
	for t := range threads {
		g.Go(func() error {
			for {
				idx, ok := deques[t].Pop()
				if !ok {
					idx, ok = steal(deques, t)
				}
				if !ok {
					return nil
				}
				r, err := s.AlphaBeta(gctx, children[idx], 1, maxDepth, false, true)
				if err != nil {
					return err
				}
				results[idx].Win = !r.Win
				results[idx].Exact = r.Exact
				results[idx].Searched = true
			}
		})
	}
	err := g.Wait()

	log.Debug().
		Str("key", state.Key()).
		Int("candidates", len(candidates)).
		Int("max-depth", maxDepth).
		Uint64("nodes", s.nodes.Load()-startNodes).
		Dur("elapsed", time.Since(startTime)).
		Err(err).
		Msg("solve-moves")
	return results, err
}

func steal(deques []*WorkDeque, self int) (int, bool) {
	for i := 1; i < len(deques); i++ {
		if idx, ok := deques[(self+i)%len(deques)].Steal(); ok {
			return idx, true
		}
	}
	return -1, false
}

func (s *Solver) logProgress(ctx context.Context, startNodes uint64, startTime time.Time) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nodes := s.nodes.Load() - startNodes
			secs := time.Since(startTime).Seconds()
			log.Debug().Uint64("nodes", nodes).
				Float64("nps", float64(nodes)/secs).
				Msg("solver-progress")
		}
	}
}
