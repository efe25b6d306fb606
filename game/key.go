package game

import (
	"fmt"
	"strconv"
	"strings"
)

// KeySep joins the moves of a sequence key. The root position's key is "".
const KeySep = "-"

// Key builds the sequence key for a move path.
func Key(moves []int) string {
	if len(moves) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, m := range moves {
		if i > 0 {
			sb.WriteString(KeySep)
		}
		sb.WriteString(strconv.Itoa(m))
	}
	return sb.String()
}

// ChildKey is the key reached by playing move from the position at key.
func ChildKey(key string, move int) string {
	if key == "" {
		return strconv.Itoa(move)
	}
	return key + KeySep + strconv.Itoa(move)
}

// ParentKey drops the last move of key. The parent of a one-move key is
// the root.
func ParentKey(key string) string {
	i := strings.LastIndex(key, KeySep)
	if i < 0 {
		return ""
	}
	return key[:i]
}

// ParseKey splits a sequence key into moves. It checks syntax only;
// legality is checked by FromMoves.
func ParseKey(key string) ([]int, error) {
	if key == "" {
		return nil, nil
	}
	parts := strings.Split(key, KeySep)
	moves := make([]int, len(parts))
	for i, p := range parts {
		m, err := strconv.Atoi(p)
		if err != nil || m < 1 {
			return nil, fmt.Errorf("bad sequence key %q: %w", key, ErrInvalidMove)
		}
		moves[i] = m
	}
	return moves, nil
}

// KeyDepth is the number of moves in key.
func KeyDepth(key string) int {
	if key == "" {
		return 0
	}
	return strings.Count(key, KeySep) + 1
}
