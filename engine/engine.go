// Package engine chooses moves. A decision first looks the position up in
// the knowledge store, then searches or falls back on heuristics, and then
// spends what is left of its budget deepening the store.
package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/juniper-u/juniper/config"
	"github.com/juniper-u/juniper/game"
	"github.com/juniper-u/juniper/heuristic"
	"github.com/juniper-u/juniper/knowledge"
	"github.com/juniper-u/juniper/solver"
)

// MaxDepth marks entries that come from a complete game or full proof.
const MaxDepth = 99

const (
	// Share of the budget the root search may use.
	solverShare = 0.6

	enrichTargets     = 5
	uncertainMaxDepth = 6
	childrenPerTarget = 3
	observedBase      = 0.85
)

var enrichDepths = []int{10, 12, 15}

var (
	ErrInconsistentResult = errors.New("result contradicts the final position")
	ErrSearchInProgress   = errors.New("a search is already running for this session")
)

// Phase names the step of a decision that chose the move.
type Phase string

const (
	PhaseLookup    Phase = "lookup"
	PhaseSolver    Phase = "solver"
	PhaseHeuristic Phase = "heuristic"
	PhaseFallback  Phase = "fallback"
)

// Decision is the outcome of Engine.DecideDetailed.
type Decision struct {
	Move  int
	Phase Phase
	// Analyzed counts positions analyzed during enrichment.
	Analyzed int
	Elapsed  time.Duration
}

// Engine owns the knowledge stores and the searchers for every grid size
// it has seen. It is safe for concurrent use.
type Engine struct {
	registry *knowledge.Registry

	exactThreshold   int
	lookupConfidence float64
	safetyMargin     time.Duration
	learningLimit    time.Duration
	threads          int
	ttFraction       float64

	mu        sync.Mutex
	solvers   map[int]*solver.Solver
	selectors map[int]*heuristic.Selector
}

// NewEngine builds an engine from cfg. An empty data path keeps every store
// in memory.
func NewEngine(cfg *config.Config) *Engine {
	opts := knowledge.Options{
		AutosaveEdits:    cfg.GetInt(config.ConfigAutosaveEdits),
		AutosaveInterval: cfg.GetDuration(config.ConfigAutosaveInterval),
	}
	return &Engine{
		registry:         knowledge.NewRegistry(cfg.GetString(config.ConfigDataPath), opts),
		exactThreshold:   cfg.GetInt(config.ConfigExactSearchThreshold),
		lookupConfidence: cfg.GetFloat64(config.ConfigLookupConfidence),
		safetyMargin:     cfg.GetDuration(config.ConfigSafetyMargin),
		learningLimit:    cfg.GetDuration(config.ConfigLearningLimit),
		threads:          cfg.GetInt(config.ConfigSolverThreads),
		ttFraction:       cfg.GetFloat64(config.ConfigTTMemoryFraction),
		solvers:          make(map[int]*solver.Solver),
		selectors:        make(map[int]*heuristic.Selector),
	}
}

func (e *Engine) LoadStore(gridSize int) (*knowledge.Store, error) {
	return e.registry.Load(gridSize)
}

// SaveStore propagates proofs through the store for gridSize and writes it.
func (e *Engine) SaveStore(gridSize int) error {
	return e.registry.Save(gridSize)
}

// Close saves every loaded store.
func (e *Engine) Close() error {
	return e.registry.Close()
}

func (e *Engine) solverFor(gridSize int) *solver.Solver {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.solvers[gridSize]
	if !ok {
		s = solver.NewSolver(gridSize)
		s.SetThreads(e.threads)
		s.SetTTMemoryFraction(e.ttFraction)
		e.solvers[gridSize] = s
	}
	return s
}

func (e *Engine) selectorFor(store *knowledge.Store, adj *game.Adjacency) *heuristic.Selector {
	e.mu.Lock()
	defer e.mu.Unlock()
	sel, ok := e.selectors[adj.GridSize()]
	if !ok {
		sel = heuristic.NewSelector(store, adj)
		e.selectors[adj.GridSize()] = sel
	}
	return sel
}

// SearchDepth is the root search depth for a grid size and the time the
// search may take. Small grids are solved outright when time allows.
func SearchDepth(gridSize int, budget time.Duration) int {
	switch {
	case gridSize <= 20:
		if budget >= 2*time.Second {
			return solver.Unbounded
		}
		return 10
	case gridSize <= 30:
		if budget >= 3*time.Second {
			return solver.Unbounded
		}
		return 8
	case budget >= 5*time.Second:
		return 8
	case budget >= 3*time.Second:
		return 6
	case budget >= 1500*time.Millisecond:
		return 4
	}
	return 3
}

// Decide returns the engine's move for st within budget.
func (e *Engine) Decide(ctx context.Context, st *game.State, budget time.Duration) (int, error) {
	d, err := e.DecideDetailed(ctx, st, budget)
	if err != nil {
		return 0, err
	}
	return d.Move, nil
}

// DecideDetailed is Decide reporting how the move was found. Running out
// of time is never an error: some legal move is always returned for a
// position that has one.
func (e *Engine) DecideDetailed(ctx context.Context, st *game.State, budget time.Duration) (Decision, error) {
	start := time.Now()
	if st.IsFinished() {
		return Decision{}, game.ErrNoMoves
	}
	store, err := e.LoadStore(st.GridSize())
	if err != nil {
		return Decision{}, err
	}
	deadline := start.Add(budget)
	dctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var d Decision
	if m, ok := e.lookup(store, st); ok {
		d = Decision{Move: m, Phase: PhaseLookup}
		lookupHits.Inc()
	} else {
		d = e.compute(dctx, store, st, budget)
	}
	d.Analyzed = e.enrich(dctx, store, st, deadline.Add(-e.safetyMargin))
	d.Elapsed = time.Since(start)

	decisions.WithLabelValues(string(d.Phase)).Inc()
	decisionSeconds.Observe(d.Elapsed.Seconds())
	log.Info().
		Str("key", st.Key()).
		Int("grid", st.GridSize()).
		Int("move", d.Move).
		Str("phase", string(d.Phase)).
		Int("analyzed", d.Analyzed).
		Dur("elapsed", d.Elapsed).
		Msg("decision")
	return d, nil
}

// lookup finds the child the store is most confident is a win for the side
// choosing now.
func (e *Engine) lookup(store *knowledge.Store, st *game.State) (int, bool) {
	key := st.Key()
	best, bestConf := 0, -1.0
	for _, m := range st.AvailableMoves() {
		entry, ok := store.Get(game.ChildKey(key, m))
		if !ok || entry.Outcome != knowledge.Win || entry.Confidence < e.lookupConfidence {
			continue
		}
		if entry.Confidence > bestConf {
			best, bestConf = m, entry.Confidence
		}
	}
	return best, bestConf >= 0
}

func (e *Engine) compute(ctx context.Context, store *knowledge.Store, st *game.State,
	budget time.Duration) Decision {

	n := st.GridSize()
	sel := e.selectorFor(store, st.Adjacency())
	if n > e.exactThreshold {
		if m, err := sel.Move(st); err == nil {
			return Decision{Move: m, Phase: PhaseHeuristic}
		}
		return Decision{Move: st.AvailableMoves()[0], Phase: PhaseFallback}
	}

	searchBudget := time.Duration(float64(budget) * solverShare)
	depth := SearchDepth(n, searchBudget)
	sctx, cancel := context.WithTimeout(ctx, searchBudget)
	defer cancel()

	avail := st.AvailableMoves()
	cands := avail
	if len(avail) > 1 {
		cands = slices.DeleteFunc(slices.Clone(avail), func(m int) bool { return m == 1 })
	}
	results := e.solveRoot(sctx, store, st, cands, depth)
	if len(cands) < len(avail) && !hasWin(results) && sctx.Err() == nil {
		results = append(results, e.solveRoot(sctx, store, st, []int{1}, depth)...)
	}

	var wins []solver.MoveResult
	lost := make(map[int]bool)
	for _, r := range results {
		switch {
		case !r.Searched:
		case r.Win:
			wins = append(wins, r)
		case r.Exact:
			lost[r.Move] = true
		}
	}
	if len(wins) > 0 {
		slices.SortStableFunc(wins, func(a, b solver.MoveResult) int {
			if a.Exact != b.Exact {
				if a.Exact {
					return -1
				}
				return 1
			}
			return cmp.Compare(a.OpponentReplies, b.OpponentReplies)
		})
		return Decision{Move: wins[0].Move, Phase: PhaseSolver}
	}

	if m, err := sel.Move(st); err == nil {
		if !lost[m] {
			return Decision{Move: m, Phase: PhaseHeuristic}
		}
		for _, alt := range avail {
			if !lost[alt] {
				return Decision{Move: alt, Phase: PhaseHeuristic}
			}
		}
		return Decision{Move: m, Phase: PhaseHeuristic}
	}
	return Decision{Move: avail[0], Phase: PhaseFallback}
}

func hasWin(results []solver.MoveResult) bool {
	return slices.ContainsFunc(results, func(r solver.MoveResult) bool {
		return r.Searched && r.Win
	})
}

// solveRoot searches the given root moves and stores what it learns.
// Results for moves the search did not reach are returned unsearched.
func (e *Engine) solveRoot(ctx context.Context, store *knowledge.Store, st *game.State,
	cands []int, depth int) []solver.MoveResult {

	s := e.solverFor(st.GridSize())
	before := s.Nodes()
	results, err := s.SolveMoves(ctx, st, cands, depth)
	solverNodes.Add(float64(s.Nodes() - before))
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		log.Err(err).Str("key", st.Key()).Msg("root-search-failed")
		return nil
	}
	key := st.Key()
	for _, r := range results {
		if r.Searched {
			e.recordSearch(store, game.ChildKey(key, r.Move), r.Win, r.Exact, depth)
		}
	}
	return results
}

// recordSearch stores the outcome of a search of key, from the side that
// played the last move of key.
func (e *Engine) recordSearch(store *knowledge.Store, key string, moverWins, exact bool, depth int) {
	outcome := knowledge.Lose
	if moverWins {
		outcome = knowledge.Win
	}
	if exact {
		store.Upsert(key, outcome, 1.0, min(depth, MaxDepth), true)
		return
	}
	store.Upsert(key, outcome, observedBase+float64(depth)/100, depth, false)
}

// enrich deepens the store around st until the deadline. It returns the
// number of positions analyzed.
func (e *Engine) enrich(ctx context.Context, store *knowledge.Store, st *game.State, until time.Time) int {
	ectx, cancel := context.WithDeadline(ctx, until)
	defer cancel()
	s := e.solverFor(st.GridSize())
	key := st.Key()
	analyzed := 0
	for ectx.Err() == nil {
		targets := e.targets(store, key)
		if len(targets) == 0 {
			break
		}
		progress := 0
		for _, t := range targets {
			if ectx.Err() != nil {
				break
			}
			progress += e.expand(ectx, s, store, t)
		}
		analyzed += progress
		if progress == 0 {
			break
		}
	}
	if analyzed > 0 {
		analyzedNodes.WithLabelValues("enrichment").Add(float64(analyzed))
		log.Debug().Str("key", key).Int("analyzed", analyzed).Msg("enrichment")
	}
	return analyzed
}

func (e *Engine) targets(store *knowledge.Store, key string) []string {
	if !store.Saturated(key) && len(openChildren(store, key)) > 0 {
		return []string{key}
	}
	if short := store.ShortestUnsaturated(enrichTargets); len(short) > 0 {
		return short
	}
	if k, ok := store.AnyUncertain(uncertainMaxDepth); ok {
		return []string{k}
	}
	return nil
}

// openChildren lists up to childrenPerTarget legal children of key without
// a proof in the store.
func openChildren(store *knowledge.Store, key string) []int {
	st, err := game.FromKey(store.GridSize(), key)
	if err != nil {
		return nil
	}
	var out []int
	for _, m := range st.AvailableMoves() {
		if entry, ok := store.Get(game.ChildKey(key, m)); ok && entry.IsTerminal {
			continue
		}
		out = append(out, m)
		if len(out) == childrenPerTarget {
			break
		}
	}
	return out
}

// expand searches the open children of key at increasing depths. Each
// search is one analyzed position.
func (e *Engine) expand(ctx context.Context, s *solver.Solver, store *knowledge.Store, key string) int {
	st, err := game.FromKey(store.GridSize(), key)
	if err != nil {
		return 0
	}
	children := openChildren(store, key)
	analyzed := 0
	for _, depth := range enrichDepths {
		for _, m := range children {
			childKey := game.ChildKey(key, m)
			if entry, ok := store.Get(childKey); ok && entry.IsTerminal {
				continue
			}
			before := s.Nodes()
			r, err := s.Solve(ctx, st.MustPlay(m), depth)
			solverNodes.Add(float64(s.Nodes() - before))
			if err != nil {
				return analyzed
			}
			e.recordSearch(store, childKey, !r.Win, r.Exact, depth)
			analyzed++
		}
	}
	return analyzed
}

// RecordResult stores the result of a game that ended at st, as the
// outcome for the side that played the last move. A finished position is
// always a win for that side; anything else contradicts the rules. An
// unfinished position (a resignation) is stored as an observation.
func (e *Engine) RecordResult(st *game.State, outcome knowledge.Outcome) error {
	if st.NumMoves() == 0 {
		return nil
	}
	store, err := e.LoadStore(st.GridSize())
	if err != nil {
		return err
	}
	key := st.Key()
	if st.IsFinished() {
		if outcome != knowledge.Win {
			return fmt.Errorf("%w: %q is finished, so its last mover won", ErrInconsistentResult, key)
		}
		store.Upsert(key, knowledge.Win, 1.0, MaxDepth, true)
	} else {
		store.Upsert(key, outcome, 1.0, MaxDepth, false)
	}
	log.Info().Str("key", key).Stringer("outcome", outcome).Bool("finished", st.IsFinished()).
		Msg("game-recorded")
	return e.SaveStore(st.GridSize())
}
