// Package book reads a knowledge store as an opening book and annotates
// each recorded move the way chess books do.
package book

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/juniper-u/juniper/game"
	"github.com/juniper-u/juniper/knowledge"
)

// Annotation of a move.
type Annotation string

const (
	// Optimal: a win with few winning alternatives.
	Optimal Annotation = "!"
	// Mistake: a loss where a winning alternative existed.
	Mistake Annotation = "?"
	// Resilient: a loss with no winning alternative that still sets traps.
	Resilient Annotation = "!?"
	Plain     Annotation = ""
)

const (
	DefaultMaxDepth = 10

	maxOptimalSiblings = 3
	resilientShare     = 0.25
	statsDepths        = 5
)

// Book is a read-only view of store entries indexed by parent key.
type Book struct {
	gridSize int
	entries  map[string]knowledge.Entry
	children map[string][]int
}

func New(gridSize int, entries map[string]knowledge.Entry) *Book {
	b := &Book{
		gridSize: gridSize,
		entries:  entries,
		children: make(map[string][]int),
	}
	for k := range entries {
		moves, err := game.ParseKey(k)
		if err != nil || len(moves) == 0 {
			continue
		}
		parent := game.ParentKey(k)
		b.children[parent] = append(b.children[parent], moves[len(moves)-1])
	}
	for _, c := range b.children {
		slices.Sort(c)
	}
	return b
}

// FromStore snapshots s into a book.
func FromStore(s *knowledge.Store) *Book {
	return New(s.GridSize(), s.Snapshot())
}

func (b *Book) GridSize() int { return b.gridSize }

// Moves lists the recorded moves from parent, ascending.
func (b *Book) Moves(parent string) []int {
	return b.children[parent]
}

// Annotate classifies move played at parent from the recorded outcomes of
// it and its siblings.
func (b *Book) Annotate(parent string, move int) Annotation {
	key := game.ChildKey(parent, move)
	played, ok := b.entries[key]
	if !ok {
		return Plain
	}
	winning := 0
	for _, m := range b.children[parent] {
		if b.entries[game.ChildKey(parent, m)].Outcome == knowledge.Win {
			winning++
		}
	}
	if played.Outcome == knowledge.Win {
		if winning <= maxOptimalSiblings {
			return Optimal
		}
		return Plain
	}
	if winning > 0 {
		return Mistake
	}
	if b.Difficulty(key) >= resilientShare {
		return Resilient
	}
	return Plain
}

// Difficulty is the share of recorded replies to key that lose for the
// side playing them.
func (b *Book) Difficulty(key string) float64 {
	replies := b.children[key]
	if len(replies) == 0 {
		return 0
	}
	losing := 0
	for _, m := range replies {
		if b.entries[game.ChildKey(key, m)].Outcome == knowledge.Lose {
			losing++
		}
	}
	return float64(losing) / float64(len(replies))
}

// Line formats key as numbered move pairs with annotations, for example
// "1. 2! 4!? 2. 20 10".
func (b *Book) Line(key string) (string, error) {
	moves, err := game.ParseKey(key)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	parent := ""
	for i, m := range moves {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if i%2 == 0 {
			fmt.Fprintf(&sb, "%d. ", i/2+1)
		}
		fmt.Fprintf(&sb, "%d%s", m, b.Annotate(parent, m))
		parent = game.ChildKey(parent, m)
	}
	return sb.String(), nil
}

// Keys returns the recorded keys of at most maxDepth moves, variations
// grouped under their parents.
func (b *Book) Keys(maxDepth int) []string {
	type parsed struct {
		key   string
		moves []int
	}
	var all []parsed
	for k := range b.entries {
		moves, err := game.ParseKey(k)
		if err != nil || len(moves) == 0 || len(moves) > maxDepth {
			continue
		}
		all = append(all, parsed{k, moves})
	}
	slices.SortFunc(all, func(x, y parsed) int {
		return slices.Compare(x.moves, y.moves)
	})
	out := make([]string, len(all))
	for i, p := range all {
		out[i] = p.key
	}
	return out
}

// MainLine follows, from the root, the first optimal move at each ply (or
// the smallest recorded move when none is optimal) and lists every
// recorded alternative along the way.
func (b *Book) MainLine(maxDepth int) string {
	var parts []string
	key := ""
	for ply := 0; ply < maxDepth; ply++ {
		moves := b.children[key]
		if len(moves) == 0 {
			break
		}
		parts = append(parts, strconv.Itoa(ply+1)+".")
		next := moves[0]
		found := false
		for _, m := range moves {
			a := b.Annotate(key, m)
			parts = append(parts, strconv.Itoa(m)+string(a))
			if a == Optimal && !found {
				next, found = m, true
			}
		}
		key = game.ChildKey(key, next)
	}
	return strings.Join(parts, " ")
}

// ByDepth counts recorded keys per number of moves.
func (b *Book) ByDepth() map[int]int {
	out := make(map[int]int)
	for k := range b.entries {
		out[game.KeyDepth(k)]++
	}
	return out
}

// WriteText prints every line up to maxDepth followed by depth counts.
func (b *Book) WriteText(w io.Writer, maxDepth int) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Opening book, grid %d\n\n", b.gridSize)
	for _, k := range b.Keys(maxDepth) {
		line, err := b.Line(k)
		if err != nil {
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "\n%d positions\n", len(b.entries))
	byDepth := b.ByDepth()
	depths := slices.Sorted(maps.Keys(byDepth))
	for _, d := range depths[:min(len(depths), statsDepths)] {
		fmt.Fprintf(&sb, "  depth %d: %d\n", d, byDepth[d])
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Record is one exported line.
type Record struct {
	Key        string  `yaml:"key"`
	Line       string  `yaml:"line"`
	Outcome    string  `yaml:"outcome"`
	Confidence float64 `yaml:"confidence"`
	Proven     bool    `yaml:"proven"`
}

// Document is the YAML form of a book.
type Document struct {
	GridSize  int         `yaml:"grid_size"`
	MainLine  string      `yaml:"main_line"`
	Positions int         `yaml:"positions"`
	ByDepth   map[int]int `yaml:"positions_by_depth"`
	Lines     []Record    `yaml:"lines"`
}

func (b *Book) Export(maxDepth int) Document {
	ex := Document{
		GridSize:  b.gridSize,
		MainLine:  b.MainLine(maxDepth),
		Positions: len(b.entries),
		ByDepth:   b.ByDepth(),
	}
	for _, k := range b.Keys(maxDepth) {
		line, err := b.Line(k)
		if err != nil {
			continue
		}
		e := b.entries[k]
		ex.Lines = append(ex.Lines, Record{
			Key:        k,
			Line:       line,
			Outcome:    e.Outcome.String(),
			Confidence: e.Confidence,
			Proven:     e.IsTerminal,
		})
	}
	return ex
}

func (b *Book) WriteYAML(w io.Writer, maxDepth int) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(b.Export(maxDepth)); err != nil {
		return err
	}
	return enc.Close()
}
