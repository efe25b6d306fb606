package game

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	displayColumns = 10
	maxTextSize    = 42
)

func splitSubN(s string, n int) []string {
	var subs []string
	for len(s) > n {
		cut := strings.LastIndexByte(s[:n], ' ')
		if cut <= 0 {
			cut = n
		}
		subs = append(subs, s[:cut])
		s = strings.TrimLeft(s[cut:], " ")
	}
	return append(subs, s)
}

func addText(lines []string, row int, hpad int, text string) []string {
	for _, chunk := range splitSubN(text, maxTextSize) {
		for row >= len(lines) {
			lines = append(lines, "")
		}
		lines[row] += strings.Repeat(" ", hpad) + chunk
		row++
	}
	return lines
}

// ToDisplayText draws the grid with the last move in brackets, played
// numbers as dots and legal moves starred, with the game summary beside it.
func (s *State) ToDisplayText() string {
	width := len(strconv.Itoa(s.n)) + 2
	var rows []string
	var sb strings.Builder
	for x := 1; x <= s.n; x++ {
		var cell string
		switch {
		case x == s.LastMove():
			cell = "[" + strconv.Itoa(x) + "]"
		case s.played.Has(x):
			cell = "."
		case s.IsLegal(x):
			cell = strconv.Itoa(x) + "*"
		default:
			cell = strconv.Itoa(x)
		}
		fmt.Fprintf(&sb, "%*s", width, cell)
		if x%displayColumns == 0 || x == s.n {
			rows = append(rows, sb.String())
			sb.Reset()
		}
	}
	// Pad so the side text lines up.
	rowWidth := width * min(s.n, displayColumns)
	for len(rows) < 3 {
		rows = append(rows, "")
	}
	for i := range rows {
		rows[i] += strings.Repeat(" ", rowWidth-len(rows[i]))
	}

	hpad := 3
	rows = addText(rows, 0, hpad, fmt.Sprintf("Grid %d, move %d", s.n, len(s.moves)+1))
	if s.IsFinished() && len(s.moves) > 0 {
		rows = addText(rows, 1, hpad, fmt.Sprintf("Game is over, %v player wins.", s.LastMover()))
	} else {
		rows = addText(rows, 1, hpad, fmt.Sprintf("%v to move", s.SideToMove()))
	}
	if len(s.moves) > 0 {
		rows = addText(rows, 2, hpad, "Moves: "+strings.ReplaceAll(s.Key(), KeySep, " "))
	}
	return strings.Join(rows, "\n") + "\n"
}
