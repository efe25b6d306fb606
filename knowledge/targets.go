package knowledge

import (
	"slices"

	"github.com/juniper-u/juniper/game"
)

// MaxTargetDepth is the deepest key ShortestUnsaturated considers.
const MaxTargetDepth = 9

// ShortestUnsaturated returns up to limit keys that are neither terminal nor
// saturated, shallowest first. The root is never returned.
func (s *Store) ShortestUnsaturated(limit int) []string {
	if limit <= 0 {
		return nil
	}
	s.mu.RLock()
	var keys []string
	for k, e := range s.entries {
		d := game.KeyDepth(k)
		if d < 1 || d > MaxTargetDepth || e.IsTerminal || e.Saturated() {
			continue
		}
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	slices.SortFunc(keys, byDepthThenKey)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// AnyUncertain returns the shallowest non-terminal key within maxDepth
// moves whose confidence is below CertainConfidence.
func (s *Store) AnyUncertain(maxDepth int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	best, found := "", false
	for k, e := range s.entries {
		if e.IsTerminal || e.Confidence >= CertainConfidence || game.KeyDepth(k) > maxDepth {
			continue
		}
		if !found || byDepthThenKey(k, best) < 0 {
			best, found = k, true
		}
	}
	return best, found
}
