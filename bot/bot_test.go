package bot

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/juniper-u/juniper/config"
	"github.com/juniper-u/juniper/engine"
	"github.com/juniper-u/juniper/game"
)

func testBot() *Bot {
	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigDataPath, "")
	cfg.Set(config.ConfigTTMemoryFraction, 1e-6)
	cfg.Set(config.ConfigSolverThreads, 2)
	return NewBot(cfg, engine.NewEngine(cfg))
}

func TestDeserialize(t *testing.T) {
	is := is.New(t)
	b := testBot()
	st, budget, err := b.Deserialize([]byte(`{"grid_size":20,"moves":[4,2]}`))
	is.NoErr(err)
	is.Equal(st.Key(), "4-2")
	is.Equal(budget, 3*time.Second)

	_, budget, err = b.Deserialize([]byte(`{"grid_size":20,"moves":[],"budget_ms":250}`))
	is.NoErr(err)
	is.Equal(budget, 250*time.Millisecond)

	_, budget, err = b.Deserialize([]byte(`{"grid_size":20,"budget_ms":99999999}`))
	is.NoErr(err)
	is.Equal(budget, maxBudget)

	_, budget, err = b.Deserialize([]byte(`{"grid_size":20,"budget_ms":9223372036854775}`))
	is.NoErr(err)
	is.Equal(budget, maxBudget)

	_, _, err = b.Deserialize([]byte(`{"grid_size":20,"moves":[4,3]}`))
	is.True(errors.Is(err, game.ErrInvalidMove))

	_, _, err = b.Deserialize([]byte(`{"grid_size":4611686018427387904}`))
	is.True(errors.Is(err, game.ErrInvalidGridSize))
}

func TestHandleRejectsHugeGrid(t *testing.T) {
	is := is.New(t)
	b := testBot()
	resp := b.handle(context.Background(), []byte(`{"grid_size":4611686018427387904,"moves":[]}`))
	is.True(strings.HasPrefix(resp.Error, "could not parse request"))
	is.True(strings.Contains(resp.Error, game.ErrInvalidGridSize.Error()))
	resp = b.handle(context.Background(), []byte(`{"grid_size":50000000}`))
	is.True(strings.Contains(resp.Error, game.ErrInvalidGridSize.Error()))
}

func TestHandle(t *testing.T) {
	is := is.New(t)
	b := testBot()
	resp := b.handle(context.Background(), []byte(`{"grid_size":8,"moves":[],"budget_ms":300}`))
	is.Equal(resp.Error, "")
	is.True(resp.Move >= 1 && resp.Move <= 8)
	is.Equal(resp.Phase, string(engine.PhaseSolver))

	resp = b.handle(context.Background(), []byte(`{"grid_size":6,"moves":[4,2,6,3,1,5]}`))
	is.Equal(resp.Error, "game is over")

	resp = b.handle(context.Background(), []byte(`not json`))
	is.True(strings.HasPrefix(resp.Error, "could not parse request"))
}

func TestParseResponse(t *testing.T) {
	is := is.New(t)
	st, _ := game.FromMoves(20, []int{4})
	data, _ := json.Marshal(Response{Move: 8, Phase: "lookup"})
	m, err := parseResponse(st, data)
	is.NoErr(err)
	is.Equal(m, 8)

	data, _ = json.Marshal(Response{Move: 7})
	_, err = parseResponse(st, data)
	is.True(errors.Is(err, game.ErrInvalidMove))

	data, _ = json.Marshal(Response{Error: "game is over"})
	_, err = parseResponse(st, data)
	is.Equal(err.Error(), "bot returned: game is over")
}

func TestMakeRequest(t *testing.T) {
	is := is.New(t)
	st, _ := game.FromMoves(20, []int{4, 2})
	data, err := MakeRequest(st, time.Second)
	is.NoErr(err)
	var req Request
	is.NoErr(json.Unmarshal(data, &req))
	is.Equal(req, Request{GridSize: 20, Moves: []int{4, 2}, BudgetMS: 1000})
}

func TestServeMetrics(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeMetrics(ctx, "127.0.0.1:0") }()
	cancel()
	is.NoErr(<-done)
}
