// Package bot answers decision requests over NATS so other programs can play
// against the engine.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/juniper-u/juniper/config"
	"github.com/juniper-u/juniper/engine"
	"github.com/juniper-u/juniper/game"
)

const (
	connectAttempts = 5
	defaultBudget   = 3 * time.Second
	maxBudget       = time.Minute
)

// Request asks for the engine's move after moves on a grid of GridSize.
type Request struct {
	GridSize int   `json:"grid_size"`
	Moves    []int `json:"moves"`
	BudgetMS int   `json:"budget_ms,omitempty"`
}

// Response carries either a move or an error.
type Response struct {
	Move  int    `json:"move,omitempty"`
	Phase string `json:"phase,omitempty"`
	Error string `json:"error,omitempty"`
}

type Bot struct {
	config *config.Config
	engine *engine.Engine
}

func NewBot(cfg *config.Config, e *engine.Engine) *Bot {
	return &Bot{config: cfg, engine: e}
}

func errorResponse(message string, err error) Response {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %s", msg, err.Error())
	}
	return Response{Error: msg}
}

// Deserialize parses a request and replays its moves.
func (bot *Bot) Deserialize(data []byte) (*game.State, time.Duration, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, 0, err
	}
	st, err := game.FromMoves(req.GridSize, req.Moves)
	if err != nil {
		return nil, 0, err
	}
	budget := defaultBudget
	if d := bot.config.GetDuration(config.ConfigTimeBudget); d > 0 {
		budget = d
	}
	if req.BudgetMS > 0 {
		budget = time.Duration(min(int64(req.BudgetMS), maxBudget.Milliseconds())) * time.Millisecond
	}
	return st, budget, nil
}

func (bot *Bot) handle(ctx context.Context, data []byte) Response {
	st, budget, err := bot.Deserialize(data)
	if err != nil {
		return errorResponse("could not parse request", err)
	}
	d, err := bot.engine.DecideDetailed(ctx, st, budget)
	if errors.Is(err, game.ErrNoMoves) {
		return errorResponse("game is over", nil)
	}
	if err != nil {
		return errorResponse("could not decide", err)
	}
	log.Info().Str("key", st.Key()).Int("grid", st.GridSize()).
		Int("move", d.Move).Str("phase", string(d.Phase)).Msg("generated-move")
	return Response{Move: d.Move, Phase: string(d.Phase)}
}

// Connect dials the configured NATS server, backing off between attempts.
func Connect(ctx context.Context, url string) (*nats.Conn, error) {
	var nc *nats.Conn
	err := retry.Do(
		func() error {
			var err error
			nc, err = nats.Connect(url, nats.Name("juniper-bot"))
			return err
		},
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			log.Err(err).Uint("n", n).Str("url", url).Msg("nats-connect-failed-try-again")
			return retry.BackOffDelay(n, err, config)
		}),
	)
	return nc, err
}

// Main serves decisions on channel until ctx is done.
func Main(ctx context.Context, channel string, bot *Bot) error {
	nc, err := Connect(ctx, bot.config.GetString(config.ConfigNatsURL))
	if err != nil {
		return err
	}
	defer nc.Close()

	_, err = nc.Subscribe(channel, func(m *nats.Msg) {
		log.Info().Msgf("RECV: %d bytes", len(m.Data))
		data, err := json.Marshal(bot.handle(ctx, m.Data))
		if err != nil {
			m.Respond([]byte(err.Error()))
			return
		}
		if err := m.Respond(data); err != nil {
			log.Err(err).Msg("respond-failed")
		}
	})
	if err != nil {
		return err
	}
	if err := nc.Flush(); err != nil {
		return err
	}
	if err := nc.LastError(); err != nil {
		return err
	}
	log.Info().Msgf("Listening on [%s]", channel)

	<-ctx.Done()
	log.Info().Msg("bot-draining")
	return nc.Drain()
}
