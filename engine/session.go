package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/juniper-u/juniper/game"
	"github.com/juniper-u/juniper/knowledge"
)

var (
	ErrGameOver    = errors.New("game is over")
	ErrNotYourTurn = errors.New("not this side's turn")
)

// Score tallies finished games in a session.
type Score struct {
	Engine int
	Human  int
}

func (s Score) String() string {
	return fmt.Sprintf("engine %d - human %d", s.Engine, s.Human)
}

// Session is a series of games between a human and the engine on one grid
// size. The engine opens every other game.
type Session struct {
	engine  *Engine
	learner *Learner
	uuid    uuid.UUID
	budget  time.Duration

	// searching guards EngineMove; a session runs one search at a time.
	searching atomic.Bool

	mu         sync.Mutex
	state      *game.State
	engineSide game.Side
	started    time.Time
	resigned   bool
	loser      game.Side
	score      Score
}

// NewSession starts a session with a fresh game in which the engine plays
// engineSide.
func (e *Engine) NewSession(gridSize int, budget time.Duration, engineSide game.Side) (*Session, error) {
	st, err := game.Initial(gridSize)
	if err != nil {
		return nil, err
	}
	if _, err := e.LoadStore(gridSize); err != nil {
		return nil, err
	}
	s := &Session{
		engine:     e,
		learner:    e.NewLearner(),
		uuid:       uuid.New(),
		budget:     budget,
		state:      st,
		engineSide: engineSide,
		started:    time.Now(),
	}
	log.Info().Str("session", s.uuid.String()).Int("grid", gridSize).
		Stringer("engine-side", engineSide).Msg("session-started")
	return s, nil
}

func (s *Session) ID() uuid.UUID { return s.uuid }

func (s *Session) Engine() *Engine { return s.engine }

func (s *Session) Budget() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

func (s *Session) SetBudget(b time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget = b
}

func (s *Session) State() *game.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) EngineSide() game.Side {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engineSide
}

func (s *Session) Score() Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// EngineToMove reports whether the engine is on turn in a live game.
func (s *Session) EngineToMove() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.overLocked() && s.state.SideToMove() == s.engineSide
}

func (s *Session) Over() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overLocked()
}

func (s *Session) overLocked() bool {
	return s.resigned || s.state.IsFinished()
}

// Winner returns the winning side of a finished game.
func (s *Session) Winner() (game.Side, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.resigned:
		return s.loser.Other(), true
	case s.state.IsFinished():
		return s.state.LastMover(), true
	}
	return game.First, false
}

// NewGame starts the next game on gridSize, with the sides swapped. The
// current game is abandoned if it is not over.
func (s *Session) NewGame(gridSize int) error {
	st, err := game.Initial(gridSize)
	if err != nil {
		return err
	}
	if _, err := s.engine.LoadStore(gridSize); err != nil {
		return err
	}
	s.learner.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.engineSide = s.engineSide.Other()
	s.started = time.Now()
	s.resigned = false
	return nil
}

// Play applies the human's move. Any background learning stops first.
func (s *Session) Play(move int) error {
	s.learner.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overLocked() {
		return ErrGameOver
	}
	if s.state.SideToMove() == s.engineSide {
		return ErrNotYourTurn
	}
	next, err := s.state.Play(move)
	if err != nil {
		return err
	}
	s.state = next
	s.afterMoveLocked()
	return nil
}

// EngineMove lets the engine decide and play its move.
func (s *Session) EngineMove(ctx context.Context) (int, error) {
	if !s.searching.CompareAndSwap(false, true) {
		return 0, ErrSearchInProgress
	}
	defer s.searching.Store(false)

	s.mu.Lock()
	if s.overLocked() {
		s.mu.Unlock()
		return 0, ErrGameOver
	}
	if s.state.SideToMove() != s.engineSide {
		s.mu.Unlock()
		return 0, ErrNotYourTurn
	}
	st, budget := s.state, s.budget
	s.mu.Unlock()

	move, err := s.engine.Decide(ctx, st, budget)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != st {
		return 0, fmt.Errorf("%w: position changed during search", ErrNotYourTurn)
	}
	next, err := st.Play(move)
	if err != nil {
		return 0, err
	}
	s.state = next
	if !s.afterMoveLocked() {
		s.learner.Start(next)
	}
	return move, nil
}

// afterMoveLocked settles a finished game and reports whether it ended.
func (s *Session) afterMoveLocked() bool {
	if !s.state.IsFinished() {
		return false
	}
	s.tallyLocked(s.state.LastMover())
	if err := s.engine.RecordResult(s.state, knowledge.Win); err != nil {
		log.Err(err).Str("key", s.state.Key()).Msg("record-result-failed")
	}
	return true
}

func (s *Session) tallyLocked(winner game.Side) {
	if winner == s.engineSide {
		s.score.Engine++
	} else {
		s.score.Human++
	}
	log.Info().Str("session", s.uuid.String()).Str("key", s.state.Key()).
		Stringer("winner", winner).Stringer("score", s.score).Msg("game-over")
}

// Resign ends the game as a loss for the human.
func (s *Session) Resign() error {
	s.learner.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overLocked() {
		return ErrGameOver
	}
	s.resigned = true
	s.loser = s.engineSide.Other()
	s.tallyLocked(s.engineSide)
	if s.state.NumMoves() == 0 {
		return nil
	}
	outcome := knowledge.Lose
	if s.state.LastMover() == s.engineSide {
		outcome = knowledge.Win
	}
	return s.engine.RecordResult(s.state, outcome)
}

// Close stops background learning.
func (s *Session) Close() {
	s.learner.Stop()
}

// Export writes the current game with both players named.
func (s *Session) Export(w io.Writer, human string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := game.GameInfo{
		Date:         s.started,
		FirstPlayer:  human,
		SecondPlayer: "juniper",
		TimeBudget:   s.budget,
		Resigned:     s.resigned,
		Loser:        s.loser,
	}
	if s.engineSide == game.First {
		info.FirstPlayer, info.SecondPlayer = info.SecondPlayer, info.FirstPlayer
	}
	return game.Export(w, s.state, info)
}
