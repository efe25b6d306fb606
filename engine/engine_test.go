package engine

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/juniper-u/juniper/config"
	"github.com/juniper-u/juniper/game"
	"github.com/juniper-u/juniper/knowledge"
	"github.com/juniper-u/juniper/solver"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigDataPath, "")
	cfg.Set(config.ConfigTTMemoryFraction, 1e-6)
	cfg.Set(config.ConfigSolverThreads, 2)
	cfg.Set(config.ConfigLearningLimit, 2*time.Second)
	return cfg
}

func testEngine() *Engine {
	return NewEngine(testConfig())
}

// proven reports whether playing m at st forces a win.
func proven(t *testing.T, st *game.State, m int) bool {
	t.Helper()
	s := solver.NewSolver(st.GridSize())
	s.SetTTMemoryFraction(1e-6)
	r, err := s.Solve(context.Background(), st.MustPlay(m), solver.Unbounded)
	if err != nil {
		t.Fatal(err)
	}
	return !r.Win
}

func TestSearchDepth(t *testing.T) {
	is := is.New(t)
	is.Equal(SearchDepth(20, 2*time.Second), solver.Unbounded)
	is.Equal(SearchDepth(20, time.Second), 10)
	is.Equal(SearchDepth(30, 3*time.Second), solver.Unbounded)
	is.Equal(SearchDepth(25, 2*time.Second), 8)
	is.Equal(SearchDepth(40, 6*time.Second), 8)
	is.Equal(SearchDepth(40, 3*time.Second), 6)
	is.Equal(SearchDepth(50, 2*time.Second), 4)
	is.Equal(SearchDepth(60, time.Second), 3)
}

func TestDecideFinished(t *testing.T) {
	is := is.New(t)
	e := testEngine()
	st, err := game.FromMoves(6, []int{4, 2, 6, 3, 1, 5})
	is.NoErr(err)
	_, err = e.Decide(context.Background(), st, 100*time.Millisecond)
	is.True(errors.Is(err, game.ErrNoMoves))
}

func TestDecideFindsWin(t *testing.T) {
	is := is.New(t)
	e := testEngine()
	// The first player wins on an 8 grid.
	st, _ := game.Initial(8)
	d, err := e.DecideDetailed(context.Background(), st, 500*time.Millisecond)
	is.NoErr(err)
	is.Equal(d.Phase, PhaseSolver)
	is.True(st.IsLegal(d.Move))
	is.True(proven(t, st, d.Move))

	store, _ := e.LoadStore(8)
	entry, ok := store.Get(game.Key([]int{d.Move}))
	is.True(ok)
	is.True(entry.IsTerminal)
	is.Equal(entry.Outcome, knowledge.Win)

	// Asked again, the store answers.
	d, err = e.DecideDetailed(context.Background(), st, 10*time.Millisecond)
	is.NoErr(err)
	is.Equal(d.Phase, PhaseLookup)
}

func TestDecideLosingPositionStillMoves(t *testing.T) {
	is := is.New(t)
	e := testEngine()
	// Every first move loses on a 10 grid.
	st, _ := game.Initial(10)
	d, err := e.DecideDetailed(context.Background(), st, 300*time.Millisecond)
	is.NoErr(err)
	is.True(st.IsLegal(d.Move))
	is.True(d.Phase == PhaseHeuristic || d.Phase == PhaseFallback)
}

func TestLookup(t *testing.T) {
	is := is.New(t)
	e := testEngine()
	store, err := e.LoadStore(20)
	is.NoErr(err)
	store.Upsert("14", knowledge.Win, 0.9, 10, false)
	store.Upsert("16", knowledge.Win, 0.8, 10, false)
	store.Upsert("18", knowledge.Lose, 0.97, 10, false)

	st, _ := game.Initial(20)
	m, ok := e.lookup(store, st)
	is.True(ok)
	is.Equal(m, 14)

	store.Upsert("16", knowledge.Win, 1, 10, true)
	m, _ = e.lookup(store, st)
	is.Equal(m, 16)

	empty := knowledge.NewMemoryStore(20)
	_, ok = e.lookup(empty, st)
	is.True(!ok)
}

func TestDecideHeuristicOnLargeGrid(t *testing.T) {
	is := is.New(t)
	e := testEngine()
	st, _ := game.FromMoves(50, []int{12, 24})
	d, err := e.DecideDetailed(context.Background(), st, 50*time.Millisecond)
	is.NoErr(err)
	is.Equal(d.Phase, PhaseHeuristic)
	is.True(st.IsLegal(d.Move))
}

func TestDecideCancelledContext(t *testing.T) {
	is := is.New(t)
	e := testEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, _ := game.FromMoves(30, []int{12})
	m, err := e.Decide(ctx, st, time.Second)
	is.NoErr(err)
	is.True(st.IsLegal(m))
}

func TestEnrich(t *testing.T) {
	is := is.New(t)
	e := testEngine()
	store, _ := e.LoadStore(20)
	st, _ := game.FromMoves(20, []int{4})
	n := e.enrich(context.Background(), store, st, time.Now().Add(3*time.Second))
	is.True(n > 0)
	// From 4 the first open child is 1.
	_, ok := store.Get("4-1")
	is.True(ok)

	// Past the deadline nothing is analyzed.
	is.Equal(e.enrich(context.Background(), store, st, time.Now().Add(-time.Second)), 0)
}

func TestRecordResult(t *testing.T) {
	is := is.New(t)
	e := testEngine()
	done, _ := game.FromMoves(6, []int{4, 2, 6, 3, 1, 5})
	err := e.RecordResult(done, knowledge.Lose)
	is.True(errors.Is(err, ErrInconsistentResult))

	is.NoErr(e.RecordResult(done, knowledge.Win))
	store, _ := e.LoadStore(6)
	entry, ok := store.Get(done.Key())
	is.True(ok)
	is.True(entry.IsTerminal)
	is.Equal(entry.Depth, MaxDepth)
	is.Equal(entry.Confidence, 1.0)

	resigned, _ := game.FromMoves(6, []int{2, 4})
	is.NoErr(e.RecordResult(resigned, knowledge.Win))
	entry, ok = store.Get("2-4")
	is.True(ok)
	is.True(!entry.IsTerminal)

	empty, _ := game.Initial(6)
	is.NoErr(e.RecordResult(empty, knowledge.Win))
	is.NoErr(e.Close())
}
