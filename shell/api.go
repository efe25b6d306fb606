package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/juniper-u/juniper/automatic"
	"github.com/juniper-u/juniper/book"
	"github.com/juniper-u/juniper/config"
	"github.com/juniper-u/juniper/game"
)

type Response struct {
	message string
}

type CmdOptions map[string][]string

func (c CmdOptions) String(key string) string {
	v := c[key]
	if len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c CmdOptions) Int(key string) (int, error) {
	v := c[key]
	if len(v) == 0 {
		return 0, errors.New(key + " not found in options")
	}
	return strconv.Atoi(v[0])
}

func (c CmdOptions) IntDefault(key string, defaultI int) (int, error) {
	v := c[key]
	if len(v) == 0 {
		return defaultI, nil
	}
	return strconv.Atoi(v[0])
}

func (c CmdOptions) DurationDefault(key string, d time.Duration) (time.Duration, error) {
	v := c[key]
	if len(v) == 0 {
		return d, nil
	}
	return time.ParseDuration(v[0])
}

func (c CmdOptions) Bool(key string) bool {
	v := c[key]
	if len(v) == 0 {
		return false
	}
	return strings.ToLower(v[0]) == "true"
}

func msg(message string) *Response {
	return &Response{message: message}
}

func (sc *ShellController) help(cmd *shellcmd) (*Response, error) {
	var sb strings.Builder
	if len(cmd.args) == 0 {
		usage(&sb, "standard")
	} else {
		usageTopic(&sb, cmd.args[0])
	}
	return msg(sb.String()), nil
}

// newGame starts a session, or the next game of the current one with sides
// swapped. -grid changes the grid size and -first engine makes the engine
// open.
func (sc *ShellController) newGame(cmd *shellcmd) (*Response, error) {
	n, err := cmd.options.IntDefault("grid", sc.config.GetInt(config.ConfigGridSize))
	if err != nil {
		return nil, err
	}
	if name := cmd.options.String("name"); name != "" {
		sc.human = name
	}
	first := cmd.options.String("first")
	if first != "" && first != "engine" && first != "human" {
		return nil, errors.New("-first must be engine or human")
	}
	if sc.session == nil || first != "" {
		side := game.Second
		if first == "engine" {
			side = game.First
		}
		if sc.session != nil {
			sc.session.Close()
		}
		sc.session, err = sc.engine.NewSession(n, sc.config.GetDuration(config.ConfigTimeBudget), side)
		if err != nil {
			return nil, err
		}
	} else if err := sc.session.NewGame(n); err != nil {
		return nil, err
	}
	opener := "You go first."
	if sc.session.EngineSide() == game.First {
		opener = "Engine goes first."
	}
	return msg(sc.session.State().ToDisplayText() + opener), nil
}

func (sc *ShellController) requireSession() error {
	if sc.session == nil {
		return errNoSession
	}
	return nil
}

func (sc *ShellController) play(cmd *shellcmd) (*Response, error) {
	if err := sc.requireSession(); err != nil {
		return nil, err
	}
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: play <number>")
	}
	m, err := strconv.Atoi(cmd.args[0])
	if err != nil {
		return nil, err
	}
	if err := sc.session.Play(m); err != nil {
		return nil, err
	}
	out := sc.session.State().ToDisplayText()
	if sc.session.Over() {
		out += sc.gameOverText()
	}
	return msg(out), nil
}

// aiplay lets the engine play the human's move.
func (sc *ShellController) aiplay() (*Response, error) {
	if err := sc.requireSession(); err != nil {
		return nil, err
	}
	st := sc.session.State()
	m, err := sc.engine.Decide(sc.ctx, st, sc.session.Budget())
	if err != nil {
		return nil, err
	}
	return sc.play(&shellcmd{cmd: "play", args: []string{strconv.Itoa(m)}})
}

func (sc *ShellController) show() (*Response, error) {
	if err := sc.requireSession(); err != nil {
		return nil, err
	}
	return msg(sc.session.State().ToDisplayText()), nil
}

// moves lists legal moves with how many replies each leaves the opponent.
func (sc *ShellController) moves() (*Response, error) {
	if err := sc.requireSession(); err != nil {
		return nil, err
	}
	st := sc.session.State()
	avail := st.AvailableMoves()
	if len(avail) == 0 {
		return msg("No legal moves."), nil
	}
	var sb strings.Builder
	for _, m := range avail {
		replies := st.MustPlay(m).NumAvailable()
		note := ""
		if replies == 0 {
			note = " (wins)"
		}
		fmt.Fprintf(&sb, "%4d  %d replies%s\n", m, replies, note)
	}
	return msg(sb.String()), nil
}

// hint asks the engine what it would play, with stored knowledge about the
// candidates.
func (sc *ShellController) hint(cmd *shellcmd) (*Response, error) {
	if err := sc.requireSession(); err != nil {
		return nil, err
	}
	budget, err := cmd.options.DurationDefault("time", sc.session.Budget())
	if err != nil {
		return nil, err
	}
	st := sc.session.State()
	d, err := sc.engine.DecideDetailed(sc.ctx, st, budget)
	if err != nil {
		return nil, err
	}
	store, err := sc.engine.LoadStore(st.GridSize())
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Suggested: %d (%s, %s)\n", d.Move, d.Phase, d.Elapsed.Round(time.Millisecond))
	for _, m := range st.AvailableMoves() {
		if e, ok := store.Get(game.ChildKey(st.Key(), m)); ok {
			fmt.Fprintf(&sb, "%4d  %s\n", m, e)
		}
	}
	return msg(sb.String()), nil
}

func (sc *ShellController) resign() (*Response, error) {
	if err := sc.requireSession(); err != nil {
		return nil, err
	}
	if err := sc.session.Resign(); err != nil {
		return nil, err
	}
	return msg("You resigned. " + sc.session.Score().String()), nil
}

func (sc *ShellController) score() (*Response, error) {
	if err := sc.requireSession(); err != nil {
		return nil, err
	}
	return msg(sc.session.Score().String()), nil
}

func (sc *ShellController) gameOverText() string {
	winner, _ := sc.session.Winner()
	who := "You win!"
	if winner == sc.session.EngineSide() {
		who = "Engine wins."
	}
	return fmt.Sprintf("%s %s. Type new to play again.", who, sc.session.Score())
}

func (sc *ShellController) gridSize(cmd *shellcmd) (int, error) {
	def := sc.config.GetInt(config.ConfigGridSize)
	if sc.session != nil {
		def = sc.session.State().GridSize()
	}
	return cmd.options.IntDefault("grid", def)
}

func (sc *ShellController) stats(cmd *shellcmd) (*Response, error) {
	n, err := sc.gridSize(cmd)
	if err != nil {
		return nil, err
	}
	store, err := sc.engine.LoadStore(n)
	if err != nil {
		return nil, err
	}
	sum := store.Summary()
	var sb strings.Builder
	sb.WriteString(sum.String())
	if len(sum.Confidences) > 0 {
		sb.WriteString("\nConfidence of unproven sequences:\n")
		if err := sum.WriteConfidenceHistogram(&sb); err != nil {
			return nil, err
		}
	}
	return msg(sb.String()), nil
}

func (sc *ShellController) save() (*Response, error) {
	if err := sc.requireSession(); err != nil {
		return nil, err
	}
	n := sc.session.State().GridSize()
	if err := sc.engine.SaveStore(n); err != nil {
		return nil, err
	}
	return msg(fmt.Sprintf("Saved knowledge for grid %d.", n)), nil
}

func (sc *ShellController) propagate() (*Response, error) {
	if err := sc.requireSession(); err != nil {
		return nil, err
	}
	store, err := sc.engine.LoadStore(sc.session.State().GridSize())
	if err != nil {
		return nil, err
	}
	return msg(fmt.Sprintf("Proved %d sequences.", store.Propagate())), nil
}

// book prints or writes the opening book. -format yaml selects YAML and
// -file writes to a file instead of the console.
func (sc *ShellController) book(cmd *shellcmd) (*Response, error) {
	n, err := sc.gridSize(cmd)
	if err != nil {
		return nil, err
	}
	depth, err := cmd.options.IntDefault("depth", book.DefaultMaxDepth)
	if err != nil {
		return nil, err
	}
	store, err := sc.engine.LoadStore(n)
	if err != nil {
		return nil, err
	}
	b := book.FromStore(store)
	var sb strings.Builder
	switch f := cmd.options.String("format"); f {
	case "", "text":
		err = b.WriteText(&sb, depth)
	case "yaml":
		err = b.WriteYAML(&sb, depth)
	default:
		return nil, fmt.Errorf("unknown book format %q", f)
	}
	if err != nil {
		return nil, err
	}
	return sc.output(cmd, sb.String())
}

func (sc *ShellController) export(cmd *shellcmd) (*Response, error) {
	if err := sc.requireSession(); err != nil {
		return nil, err
	}
	var sb strings.Builder
	if err := sc.session.Export(&sb, sc.human); err != nil {
		return nil, err
	}
	return sc.output(cmd, sb.String())
}

func (sc *ShellController) output(cmd *shellcmd, text string) (*Response, error) {
	path := cmd.options.String("file")
	if path == "" {
		return msg(text), nil
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return nil, err
	}
	return msg("wrote " + path), nil
}

var shellSettings = []string{
	config.ConfigTimeBudget, config.ConfigGridSize, config.ConfigLookupConfidence,
	config.ConfigExactSearchThreshold, config.ConfigDebug,
}

// set shows settings, or changes one. Changing time-budget also applies to
// the game in progress.
func (sc *ShellController) set(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		var sb strings.Builder
		sb.WriteString("Settings:\n")
		for _, k := range shellSettings {
			fmt.Fprintf(&sb, "  %s: %v\n", k, sc.config.Get(k))
		}
		return msg(sb.String()), nil
	}
	key := cmd.args[0]
	if len(cmd.args) == 1 {
		if !slices.Contains(sc.config.AllKeys(), key) {
			return nil, config.ErrUnknownSetting
		}
		return msg(fmt.Sprintf("%v", sc.config.Get(key))), nil
	}
	if !lo.Contains(shellSettings, key) {
		return nil, fmt.Errorf("%w: %s cannot be changed here", config.ErrUnknownSetting, key)
	}
	if err := sc.config.SetFromString(key, cmd.args[1]); err != nil {
		return nil, err
	}
	switch {
	case key == config.ConfigTimeBudget && sc.session != nil:
		sc.session.SetBudget(sc.config.GetDuration(key))
	case key == config.ConfigDebug:
		level := zerolog.InfoLevel
		if sc.config.GetBool(key) {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)
	}
	return msg(fmt.Sprintf("set %s to %v", key, sc.config.Get(key))), nil
}

// autoplay runs computer-vs-computer games. -players takes two names out
// of engine, heuristic and random.
func (sc *ShellController) autoplay(cmd *shellcmd) (*Response, error) {
	n, err := sc.gridSize(cmd)
	if err != nil {
		return nil, err
	}
	games, err := cmd.options.IntDefault("games", 10)
	if err != nil {
		return nil, err
	}
	threads, err := cmd.options.IntDefault("threads", 1)
	if err != nil {
		return nil, err
	}
	opts := automatic.Options{
		GridSize: n,
		NumGames: games,
		Threads:  threads,
		Players:  [2]string{automatic.EnginePlayer, automatic.HeuristicPlayer},
		Budget:   sc.config.GetDuration(config.ConfigTimeBudget),
	}
	if p := cmd.options.String("players"); p != "" {
		names := strings.Split(p, ",")
		if len(names) != 2 {
			return nil, errors.New("-players needs two names separated by a comma")
		}
		opts.Players = [2]string{names[0], names[1]}
	}
	var logfile io.Writer
	if path := cmd.options.String("file"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		logfile = f
	}
	res, err := automatic.PlayGames(sc.ctx, sc.engine, opts, logfile)
	if err != nil {
		return nil, err
	}
	return msg(res.String()), nil
}
