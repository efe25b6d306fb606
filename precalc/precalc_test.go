package precalc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/juniper-u/juniper/game"
	"github.com/juniper-u/juniper/knowledge"
	"github.com/juniper-u/juniper/solver"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

var testOpts = Options{Threads: 2, TTMemoryFraction: 1e-6}

func TestFirstMovesTwenty(t *testing.T) {
	is := is.New(t)
	results, err := FirstMoves(context.Background(), 20, testOpts)
	is.NoErr(err)
	is.Equal(len(results), 10)
	for _, r := range results {
		is.True(r.Proven)
		if r.Move == 14 {
			is.Equal(r.Outcome, knowledge.Lose)
		} else {
			is.Equal(r.Outcome, knowledge.Win)
		}
	}

	store := knowledge.NewMemoryStore(20)
	store.Upsert("2", knowledge.Lose, 1, 99, true) // a wrong proof stays put
	store.Upsert("4", knowledge.Lose, 0.6, 5, false)
	is.Equal(Merge(store, results), 9)

	e, _ := store.Get("14")
	is.True(e.IsTerminal)
	is.Equal(e.Note, knowledge.NotePrecalculated)
	is.Equal(e.Depth, ProofDepth)
	e, _ = store.Get("4")
	is.True(e.IsTerminal)
	is.Equal(e.Outcome, knowledge.Win)
	e, _ = store.Get("2")
	is.Equal(e.Outcome, knowledge.Lose)
}

func TestFirstMovesAllLose(t *testing.T) {
	is := is.New(t)
	results, err := FirstMoves(context.Background(), 10, testOpts)
	is.NoErr(err)
	for _, r := range results {
		is.True(r.Proven)
		is.Equal(r.Outcome, knowledge.Lose)
	}
}

func TestFirstMovesTimeout(t *testing.T) {
	is := is.New(t)
	opts := testOpts
	opts.PerMoveTimeout = time.Millisecond
	results, err := FirstMoves(context.Background(), 90, opts)
	is.NoErr(err)
	is.Equal(len(results), 45)

	// Some first moves have tiny subtrees and finish inside the timeout;
	// 2 opens the whole grid and cannot.
	root, err := game.Initial(90)
	is.NoErr(err)
	check := solver.NewSolver(90)
	check.SetTTMemoryFraction(1e-6)
	proven := 0
	for _, r := range results {
		if r.Move == 2 {
			is.True(!r.Proven)
		}
		if !r.Proven {
			continue
		}
		proven++
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		res, err := check.Solve(ctx, root.MustPlay(r.Move), solver.Unbounded)
		cancel()
		is.NoErr(err)
		is.True(res.Exact)
		is.Equal(r.Outcome == knowledge.Win, !res.Win)
	}
	is.True(proven < len(results))
	is.Equal(Merge(knowledge.NewMemoryStore(90), results), proven)
}

func TestFirstMovesBadGrid(t *testing.T) {
	is := is.New(t)
	_, err := FirstMoves(context.Background(), 1, testOpts)
	is.True(err != nil)
}
