// Package precalc proves first moves exhaustively and merges the proofs
// into a knowledge store.
package precalc

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/juniper-u/juniper/game"
	"github.com/juniper-u/juniper/knowledge"
	"github.com/juniper-u/juniper/solver"
)

// ProofDepth is the depth recorded for merged proofs.
const ProofDepth = 99

type Options struct {
	// PerMoveTimeout bounds the search of each first move. Zero means no
	// bound beyond ctx.
	PerMoveTimeout   time.Duration
	// Threads is how many first moves are solved at once. Zero means
	// GOMAXPROCS.
	Threads          int
	TTMemoryFraction float64
}

// Result for one first move. Outcome is meaningful only when Proven.
type Result struct {
	Move    int
	Outcome knowledge.Outcome
	Proven  bool
	Elapsed time.Duration
}

// FirstMoves solves every legal first move on a grid of gridSize. Moves
// whose search times out come back unproven. The error is non-nil only for
// a bad grid size or a cancelled ctx.
func FirstMoves(ctx context.Context, gridSize int, opts Options) ([]Result, error) {
	root, err := game.Initial(gridSize)
	if err != nil {
		return nil, err
	}
	s := solver.NewSolver(gridSize)
	s.SetThreads(1)
	s.SetTTMemoryFraction(opts.TTMemoryFraction)

	moves := root.AvailableMoves()
	results := make([]Result, len(moves))
	g, gctx := errgroup.WithContext(ctx)
	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(threads)
	for i, m := range moves {
		g.Go(func() error {
			mctx, cancel := gctx, context.CancelFunc(func() {})
			if opts.PerMoveTimeout > 0 {
				mctx, cancel = context.WithTimeout(gctx, opts.PerMoveTimeout)
			}
			defer cancel()
			start := time.Now()
			r, err := s.Solve(mctx, root.MustPlay(m), solver.Unbounded)
			results[i] = Result{Move: m, Elapsed: time.Since(start)}
			switch {
			case err == nil:
				results[i].Proven = r.Exact
				results[i].Outcome = knowledge.Lose
				if !r.Win {
					results[i].Outcome = knowledge.Win
				}
			case errors.Is(err, context.DeadlineExceeded) && gctx.Err() == nil:
				log.Warn().Int("move", m).Int("grid", gridSize).Msg("first-move-undecided")
				return nil
			default:
				return err
			}
			log.Info().Int("move", m).Int("grid", gridSize).Stringer("outcome", results[i].Outcome).
				Dur("elapsed", results[i].Elapsed).Msg("first-move-proven")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Merge writes the proven results into store as terminal entries and
// returns how many it wrote. Existing proofs are left alone.
func Merge(store *knowledge.Store, results []Result) int {
	merged := 0
	for _, r := range results {
		if !r.Proven {
			continue
		}
		if store.UpsertNoted(game.Key([]int{r.Move}), r.Outcome, 1.0, ProofDepth, true,
			knowledge.NotePrecalculated) {
			merged++
		}
	}
	log.Info().Int("grid", store.GridSize()).Int("merged", merged).Msg("first-moves-merged")
	return merged
}
