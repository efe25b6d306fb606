package game

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// GameInfo is the header data of an exported game.
type GameInfo struct {
	Date         time.Time
	FirstPlayer  string
	SecondPlayer string
	TimeBudget   time.Duration
	// Resigned is set when Loser gave up before the position was finished.
	Resigned bool
	Loser    Side
}

// Result returns "1-0", "0-1" or "*" for an unfinished game.
func Result(s *State, info GameInfo) string {
	var winner Side
	switch {
	case info.Resigned:
		winner = info.Loser.Other()
	case s.NumMoves() > 0 && s.IsFinished():
		winner = s.LastMover()
	default:
		return "*"
	}
	if winner == First {
		return "1-0"
	}
	return "0-1"
}

// Export writes the game in a tag-pair text form with numbered move pairs.
func Export(w io.Writer, s *State, info GameInfo) error {
	result := Result(s, info)
	comment := ""
	if info.Resigned {
		comment = " {Resigned}"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[Event \"Juniper Green\"]\n")
	fmt.Fprintf(&sb, "[Date \"%s\"]\n", info.Date.Format("2006.01.02"))
	fmt.Fprintf(&sb, "[Grid \"%d\"]\n", s.GridSize())
	fmt.Fprintf(&sb, "[TimeControl \"%s\"]\n", info.TimeBudget)
	fmt.Fprintf(&sb, "[FirstPlayer \"%s\"]\n", info.FirstPlayer)
	fmt.Fprintf(&sb, "[SecondPlayer \"%s\"]\n", info.SecondPlayer)
	fmt.Fprintf(&sb, "[Result \"%s\"]\n\n", result)

	moves := s.moves
	for i := 0; i < len(moves); i += 2 {
		if i+1 < len(moves) {
			fmt.Fprintf(&sb, "%d. %d %d\n", i/2+1, moves[i], moves[i+1])
		} else {
			fmt.Fprintf(&sb, "%d. %d %s%s\n", i/2+1, moves[i], result, comment)
		}
	}
	if len(moves)%2 == 0 && result != "*" {
		fmt.Fprintf(&sb, "%s%s\n", result, comment)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
