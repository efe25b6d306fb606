package shell

import (
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/samber/lo"
)

// ShellCompleter completes command names, options and legal moves.
type ShellCompleter struct {
	sc *ShellController
}

func NewShellCompleter(sc *ShellController) *ShellCompleter {
	return &ShellCompleter{sc: sc}
}

// CommandMetadata holds autocomplete information for a command
type CommandMetadata struct {
	Options []string
	Args    []string
}

var commandMetadata = map[string]CommandMetadata{
	"new":      {Options: []string{"-grid", "-first", "-name"}},
	"hint":     {Options: []string{"-time"}},
	"stats":    {Options: []string{"-grid"}},
	"book":     {Options: []string{"-grid", "-depth", "-format", "-file"}},
	"export":   {Options: []string{"-file"}},
	"autoplay": {Options: []string{"-grid", "-games", "-threads", "-players", "-file"}},
	"set":      {Args: shellSettings},
	"help":     {Args: []string{"book", "set", "autoplay"}},
}

var commandNames = []string{
	"new", "play", "ai", "show", "moves", "hint", "resign", "score", "stats",
	"save", "propagate", "book", "export", "set", "autoplay", "help", "exit",
}

// Do implements the readline.AutoCompleter interface.
func (c *ShellCompleter) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])
	fields, err := shellquote.Split(text)
	if err != nil {
		fields = strings.Fields(text)
	}
	endsWithSpace := len(text) > 0 && text[len(text)-1] == ' '

	var prefix string
	var completions []string

	if len(fields) == 0 || (len(fields) == 1 && !endsWithSpace) {
		if len(fields) == 1 {
			prefix = fields[0]
		}
		completions = commandNames
	} else {
		cmdName := fields[0]
		if !endsWithSpace {
			prefix = fields[len(fields)-1]
		}
		var lastCompleteField string
		if endsWithSpace {
			lastCompleteField = fields[len(fields)-1]
		} else if len(fields) > 1 {
			lastCompleteField = fields[len(fields)-2]
		}

		switch strings.TrimPrefix(lastCompleteField, "-") {
		case "first":
			completions = []string{"engine", "human"}
		case "format":
			completions = []string{"text", "yaml"}
		}

		if completions == nil && (cmdName == "play" || cmdName == "p") {
			completions = c.legalMoves()
		}
		if completions == nil {
			if metadata, exists := commandMetadata[cmdName]; exists {
				if strings.HasPrefix(prefix, "-") || len(metadata.Args) == 0 {
					completions = metadata.Options
				} else {
					completions = metadata.Args
				}
			}
		}
	}

	var matches [][]rune
	for _, completion := range completions {
		if strings.HasPrefix(completion, prefix) {
			matches = append(matches, []rune(completion[len(prefix):]))
		}
	}
	return matches, len(prefix)
}

func (c *ShellCompleter) legalMoves() []string {
	if c.sc.session == nil {
		return nil
	}
	return lo.Map(c.sc.session.State().AvailableMoves(), func(m int, _ int) string {
		return strconv.Itoa(m)
	})
}
