package knowledge

import (
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/juniper-u/juniper/game"
)

// MaxPropagationPasses bounds how many sweeps Propagate makes.
const MaxPropagationPasses = 10

// Propagate promotes non-terminal entries whose every legal child has a
// terminal entry: the node is a Win when every child is a Lose, and a Lose
// when some child is a Win. It sweeps until a pass changes nothing, then
// writes the store out. It returns the number of promoted entries.
func (s *Store) Propagate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	promoted := s.propagateLocked()
	if s.path != "" {
		if err := s.flushLocked(); err != nil {
			log.Err(err).Str("path", s.path).Msg("flush-after-propagate-failed")
		}
	}
	return promoted
}

func (s *Store) propagateLocked() int {
	promoted := 0
	for pass := 0; pass < MaxPropagationPasses; pass++ {
		// Deepest first, so a chain of new proofs can climb in one pass.
		var keys []string
		for k, e := range s.entries {
			if !e.IsTerminal {
				keys = append(keys, k)
			}
		}
		slices.SortFunc(keys, func(a, b string) int {
			return byDepthThenKey(b, a)
		})

		changed := 0
		for _, k := range keys {
			outcome, ok := s.closure(k)
			if !ok {
				continue
			}
			e := s.entries[k]
			e.Outcome = outcome
			e.Confidence = 1.0
			e.IsTerminal = true
			e.LastUpdated = Timestamp{s.now()}
			changed++
			log.Debug().Str("key", k).Stringer("outcome", outcome).
				Int("grid", s.gridSize).Msg("propagated")
		}
		promoted += changed
		if changed == 0 {
			break
		}
	}
	if promoted > 0 {
		s.editsSinceSave += promoted
		promotions.Add(float64(promoted))
		log.Info().Int("promoted", promoted).Int("grid", s.gridSize).Msg("propagation")
	}
	return promoted
}

// closure computes the proven outcome of key from its children, if every
// child is terminal. Keys that do not replay legally are never resolved.
func (s *Store) closure(key string) (Outcome, bool) {
	st, err := game.FromKey(s.gridSize, key)
	if err != nil {
		return Lose, false
	}
	anyWin := false
	for _, m := range st.AvailableMoves() {
		c, ok := s.entries[game.ChildKey(key, m)]
		if !ok || !c.IsTerminal {
			return Lose, false
		}
		if c.Outcome == Win {
			anyWin = true
		}
	}
	// With no legal moves left the opponent of the last mover is stuck, so
	// the last mover has won.
	if anyWin {
		return Lose, true
	}
	return Win, true
}
