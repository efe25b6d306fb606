package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/juniper-u/juniper/game"
	"github.com/juniper-u/juniper/knowledge"
)

const (
	learnDepth       = 10
	learnConfidence  = 0.90
	learnMaxSkips    = 20
	learnBranching   = 10
	learnShallowKeys = 3
	learnBaseMoves   = 2
)

// Learner explores positions near the current game while the other side
// is thinking. At most one run is active at a time.
type Learner struct {
	engine *Engine
	limit  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (e *Engine) NewLearner() *Learner {
	return &Learner{engine: e, limit: e.learningLimit}
}

// Start launches a run from st. It returns false if a run is already
// active.
func (l *Learner) Start(st *game.State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		select {
		case <-l.done:
		default:
			return false
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.limit)
	done := make(chan struct{})
	l.cancel, l.done = cancel, done
	go func() {
		defer close(done)
		defer cancel()
		l.run(ctx, st)
	}()
	return true
}

// Stop cancels the active run, if any, and waits for it to finish.
func (l *Learner) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a run is active.
func (l *Learner) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// run returns the number of positions it stored.
func (l *Learner) run(ctx context.Context, st *game.State) int {
	n := st.GridSize()
	store, err := l.engine.LoadStore(n)
	if err != nil {
		log.Err(err).Int("grid", n).Msg("learner-no-store")
		return 0
	}
	base := st
	if st.NumMoves() > learnShallowKeys {
		base, err = game.FromMoves(n, st.Moves()[:learnBaseMoves])
		if err != nil {
			return 0
		}
	}
	avail := base.AvailableMoves()
	if len(avail) == 0 {
		return 0
	}
	avail = avail[:min(len(avail), learnBranching)]
	s := l.engine.solverFor(n)
	key := base.Key()
	start := time.Now()
	learned, skips := 0, 0

	for ctx.Err() == nil {
		m := avail[frand.Intn(len(avail))]
		childKey := game.ChildKey(key, m)
		if entry, ok := store.Get(childKey); ok && entry.Confidence >= knowledge.CertainConfidence {
			skips++
			if skips >= learnMaxSkips {
				break
			}
			continue
		}
		before := s.Nodes()
		r, err := s.Solve(ctx, base.MustPlay(m), learnDepth)
		solverNodes.Add(float64(s.Nodes() - before))
		if err != nil {
			break
		}
		outcome := knowledge.Lose
		if !r.Win {
			outcome = knowledge.Win
		}
		if r.Exact {
			store.Upsert(childKey, outcome, 1.0, learnDepth, true)
		} else {
			store.Upsert(childKey, outcome, learnConfidence, learnDepth, false)
		}
		learned++
	}

	analyzedNodes.WithLabelValues("learner").Add(float64(learned))
	log.Info().Str("key", key).Int("learned", learned).Int("skips", skips).
		Dur("elapsed", time.Since(start)).Msg("background-learning")
	if learned > 0 {
		if err := l.engine.SaveStore(n); err != nil {
			log.Err(err).Int("grid", n).Msg("learner-save-failed")
		}
	}
	return learned
}
