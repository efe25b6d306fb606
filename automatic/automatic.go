// Package automatic plays computer-vs-computer games. Every finished game
// is recorded as a proof in the knowledge store, and every move can be
// logged for later analysis.
package automatic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/juniper-u/juniper/engine"
	"github.com/juniper-u/juniper/game"
	"github.com/juniper-u/juniper/knowledge"
)

const LogHeader = "gameID,turn,player,move,phase,replies\n"

var (
	ErrAlreadyPlaying = errors.New("games are already being played, please wait till complete")

	gamesPlayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "juniper_selfplay_games_total",
		Help: "Computer-vs-computer games finished, by winning player.",
	}, []string{"winner"})
	isPlaying atomic.Bool
)

// Options configure a batch of games.
type Options struct {
	GridSize int
	NumGames int
	Threads  int
	// Players are the names of the first and second player.
	Players [2]string
	// Budget is the engine player's time per move.
	Budget time.Duration
}

// Results tallies a finished batch.
type Results struct {
	Games int
	// Wins by seat; Wins[0] counts first-player wins.
	Wins [2]int
}

func (r Results) String() string {
	return fmt.Sprintf("%d games: first player won %d, second player won %d",
		r.Games, r.Wins[0], r.Wins[1])
}

// GameRunner plays one game at a time between two players.
type GameRunner struct {
	engine   *engine.Engine
	gridSize int
	players  [2]Player
	logchan  chan<- string
}

func NewGameRunner(e *engine.Engine, opts Options, logchan chan<- string) (*GameRunner, error) {
	r := &GameRunner{engine: e, gridSize: opts.GridSize, logchan: logchan}
	for i, name := range opts.Players {
		p, err := NewPlayer(name, e, opts.Budget)
		if err != nil {
			return nil, err
		}
		r.players[i] = p
	}
	return r, nil
}

// PlayGame plays a game to the end and returns the winning seat.
func (r *GameRunner) PlayGame(ctx context.Context, gameID int) (game.Side, error) {
	st, err := game.Initial(r.gridSize)
	if err != nil {
		return game.First, err
	}
	for !st.IsFinished() {
		if err := ctx.Err(); err != nil {
			return game.First, err
		}
		side := st.SideToMove()
		p := r.players[side]
		m, phase, err := p.Move(ctx, st)
		if err != nil {
			return game.First, err
		}
		st, err = st.Play(m)
		if err != nil {
			return game.First, fmt.Errorf("%s player: %w", p.Name(), err)
		}
		if r.logchan != nil {
			r.logchan <- fmt.Sprintf("%d,%d,%s,%d,%s,%d\n",
				gameID, st.NumMoves(), p.Name(), m, phase, st.NumAvailable())
		}
	}
	if err := r.engine.RecordResult(st, knowledge.Win); err != nil {
		return game.First, err
	}
	winner := st.LastMover()
	gamesPlayed.WithLabelValues(r.players[winner].Name()).Inc()
	log.Debug().Int("game", gameID).Str("key", st.Key()).Stringer("winner", winner).Msg("game-over")
	return winner, nil
}

type job struct {
	id int
}

// PlayGames plays opts.NumGames games on opts.Threads workers, writing a
// CSV line per move to logfile if it is not nil. It returns when the games
// are done or ctx is cancelled.
func PlayGames(ctx context.Context, e *engine.Engine, opts Options, logfile io.Writer) (Results, error) {
	if !isPlaying.CompareAndSwap(false, true) {
		return Results{}, ErrAlreadyPlaying
	}
	defer isPlaying.Store(false)
	threads := max(1, opts.Threads)
	log.Debug().Msgf("Starting %v games, %v threads", opts.NumGames, threads)

	jobs := make(chan job, 100)
	var logChan chan string
	logDone := make(chan struct{})
	if logfile != nil {
		logChan = make(chan string, 100)
		go func() {
			defer close(logDone)
			io.WriteString(logfile, LogHeader)
			for msg := range logChan {
				io.WriteString(logfile, msg)
			}
		}()
	} else {
		close(logDone)
	}

	runners := make([]*GameRunner, threads)
	for i := range runners {
		r, err := NewGameRunner(e, opts, logChan)
		if err != nil {
			if logChan != nil {
				close(logChan)
			}
			return Results{}, err
		}
		runners[i] = r
	}

	var (
		mu       sync.Mutex
		results  Results
		firstErr error
		wg       sync.WaitGroup
	)
	wg.Add(threads)
	for _, r := range runners {
		go func() {
			defer wg.Done()
			for j := range jobs {
				winner, err := r.PlayGame(ctx, j.id)
				mu.Lock()
				if err != nil {
					if firstErr == nil && !errors.Is(err, context.Canceled) {
						firstErr = err
					}
				} else {
					results.Games++
					results.Wins[winner]++
				}
				mu.Unlock()
			}
		}()
	}

gameLoop:
	for i := 1; i <= opts.NumGames; i++ {
		select {
		case jobs <- job{id: i}:
		case <-ctx.Done():
			log.Info().Msg("Got stop signal, exiting soon...")
			break gameLoop
		}
	}
	close(jobs)
	wg.Wait()
	if logChan != nil {
		close(logChan)
	}
	<-logDone

	if err := e.SaveStore(opts.GridSize); err != nil {
		log.Err(err).Int("grid", opts.GridSize).Msg("save-after-games-failed")
	}
	log.Info().Stringer("results", results).Msg("All games finished.")
	return results, firstErr
}
