package bot

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/juniper-u/juniper/game"
)

// requestSlack is added to the decision budget when waiting for a reply.
const requestSlack = 2 * time.Second

type Client struct {
	nc      *nats.Conn
	channel string
}

func NewClient(nc *nats.Conn, channel string) *Client {
	return &Client{nc: nc, channel: channel}
}

func MakeRequest(st *game.State, budget time.Duration) ([]byte, error) {
	return json.Marshal(Request{
		GridSize: st.GridSize(),
		Moves:    st.Moves(),
		BudgetMS: int(budget.Milliseconds()),
	})
}

// RequestMove sends a position to the bot and returns its move.
func (c *Client) RequestMove(st *game.State, budget time.Duration) (int, error) {
	data, err := MakeRequest(st, budget)
	if err != nil {
		return 0, err
	}
	res, err := c.nc.Request(c.channel, data, budget+requestSlack)
	if err != nil {
		if c.nc.LastError() != nil {
			log.Error().Msgf("%v for request", c.nc.LastError())
		}
		log.Error().Msgf("%v for request", err)
		return 0, err
	}
	log.Debug().Msgf("res: %v", string(res.Data))
	return parseResponse(st, res.Data)
}

func parseResponse(st *game.State, data []byte) (int, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, err
	}
	if resp.Error != "" {
		return 0, errors.New("bot returned: " + resp.Error)
	}
	if !st.IsLegal(resp.Move) {
		return 0, game.ErrInvalidMove
	}
	return resp.Move, nil
}
