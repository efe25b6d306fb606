package automatic

import (
	"context"
	"fmt"
	"time"

	"lukechampine.com/frand"

	"github.com/juniper-u/juniper/engine"
	"github.com/juniper-u/juniper/game"
	"github.com/juniper-u/juniper/heuristic"
)

const (
	EnginePlayer    = "engine"
	HeuristicPlayer = "heuristic"
	RandomPlayer    = "random"
)

// Player picks moves in computer-vs-computer games. Players are used by
// one game at a time.
type Player interface {
	Name() string
	// Move returns the move and the way it was chosen.
	Move(ctx context.Context, st *game.State) (int, string, error)
}

type enginePlayer struct {
	e      *engine.Engine
	budget time.Duration
}

func (p *enginePlayer) Name() string { return EnginePlayer }

func (p *enginePlayer) Move(ctx context.Context, st *game.State) (int, string, error) {
	d, err := p.e.DecideDetailed(ctx, st, p.budget)
	if err != nil {
		return 0, "", err
	}
	return d.Move, string(d.Phase), nil
}

// heuristicPlayer plays the selector's choice without consulting or
// updating stored knowledge.
type heuristicPlayer struct{}

func (p *heuristicPlayer) Name() string { return HeuristicPlayer }

func (p *heuristicPlayer) Move(ctx context.Context, st *game.State) (int, string, error) {
	sel := heuristic.NewSelector(nil, st.Adjacency())
	var m int
	var err error
	if st.NumMoves() == 0 {
		m, err = sel.FirstMove(st)
	} else {
		m, err = sel.Move(st)
	}
	return m, HeuristicPlayer, err
}

type randomPlayer struct{}

func (p *randomPlayer) Name() string { return RandomPlayer }

func (p *randomPlayer) Move(ctx context.Context, st *game.State) (int, string, error) {
	avail := st.AvailableMoves()
	if len(avail) == 0 {
		return 0, "", game.ErrNoMoves
	}
	return avail[frand.Intn(len(avail))], RandomPlayer, nil
}

// NewPlayer builds a player by name.
func NewPlayer(name string, e *engine.Engine, budget time.Duration) (Player, error) {
	switch name {
	case EnginePlayer:
		return &enginePlayer{e: e, budget: budget}, nil
	case HeuristicPlayer:
		return &heuristicPlayer{}, nil
	case RandomPlayer:
		return &randomPlayer{}, nil
	}
	return nil, fmt.Errorf("unknown player %q", name)
}
