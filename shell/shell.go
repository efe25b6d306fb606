// Package shell is an interactive console for playing against the engine
// and inspecting its knowledge.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"

	"github.com/juniper-u/juniper/config"
	"github.com/juniper-u/juniper/engine"
)

const historyFile = "/tmp/juniper-readline.tmp"

var (
	errNoData            = errors.New("no data in this line")
	errWrongOptionSyntax = errors.New("wrong format; all options need arguments")
	errNoSession         = errors.New("no game in progress; use new")
)

type shellcmd struct {
	cmd     string
	args    []string
	options CmdOptions
}

type ShellController struct {
	l       *readline.Instance
	config  *config.Config
	engine  *engine.Engine
	session *engine.Session
	human   string
	// ctx bounds engine searches; cancel aborts the one in flight.
	ctx    context.Context
	cancel context.CancelFunc
	closed sync.Once
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func showMessage(msg string, w io.Writer) {
	io.WriteString(w, msg)
	io.WriteString(w, "\n")
}

func (sc *ShellController) showMessage(msg string) {
	showMessage(msg, sc.l.Stderr())
}

func (sc *ShellController) showError(err error) {
	sc.showMessage("Error: " + err.Error())
}

func NewShellController(cfg *config.Config) *ShellController {
	sc := newController(cfg)
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mjuniper>\033[0m ",
		HistoryFile:     historyFile,
		AutoComplete:    NewShellCompleter(sc),
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	sc.l = l
	return sc
}

func newController(cfg *config.Config) *ShellController {
	ctx, cancel := context.WithCancel(context.Background())
	return &ShellController{
		config: cfg,
		engine: engine.NewEngine(cfg),
		human:  "human",
		ctx:    ctx,
		cancel: cancel,
	}
}

// extractFields splits a line into a command, its positional arguments and
// its -key value options. Quoting follows shell rules.
func extractFields(line string) (*shellcmd, error) {
	fields, err := shellquote.Split(line)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errNoData
	}
	cmd := fields[0]
	var args []string
	options := CmdOptions{}
	for idx := 1; idx < len(fields); idx++ {
		if strings.HasPrefix(fields[idx], "-") && !isNumber(fields[idx]) {
			if idx == len(fields)-1 {
				return nil, errWrongOptionSyntax
			}
			key := fields[idx][1:]
			options[key] = append(options[key], fields[idx+1])
			idx++
			continue
		}
		args = append(args, fields[idx])
	}
	return &shellcmd{cmd: cmd, args: args, options: options}, nil
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func (sc *ShellController) standardModeSwitch(line string, sig chan os.Signal) (*Response, error) {
	cmd, err := extractFields(line)
	if err != nil {
		return nil, err
	}
	// A bare number is a move.
	if isNumber(cmd.cmd) {
		cmd = &shellcmd{cmd: "play", args: []string{cmd.cmd}, options: cmd.options}
	}
	switch cmd.cmd {
	case "exit", "quit":
		sig <- syscall.SIGINT
		return msg("bye"), nil
	case "help", "h":
		return sc.help(cmd)
	case "new", "n":
		return sc.newGame(cmd)
	case "play", "p":
		return sc.play(cmd)
	case "ai", "a":
		return sc.aiplay()
	case "show", "s":
		return sc.show()
	case "moves", "m":
		return sc.moves()
	case "hint":
		return sc.hint(cmd)
	case "resign":
		return sc.resign()
	case "score":
		return sc.score()
	case "stats":
		return sc.stats(cmd)
	case "save":
		return sc.save()
	case "propagate":
		return sc.propagate()
	case "book":
		return sc.book(cmd)
	case "export":
		return sc.export(cmd)
	case "set":
		return sc.set(cmd)
	case "autoplay":
		return sc.autoplay(cmd)
	default:
		text := fmt.Sprintf("command %v not found", strconv.Quote(cmd.cmd))
		log.Info().Msg(text)
		return nil, errors.New(text)
	}
}

// engineTurn plays engine moves while the engine is on turn.
func (sc *ShellController) engineTurn(w io.Writer) {
	for sc.session != nil && sc.session.EngineToMove() {
		showMessage("Engine is thinking...", w)
		m, err := sc.session.EngineMove(sc.ctx)
		if err != nil {
			showMessage("Error: "+err.Error(), w)
			return
		}
		showMessage(fmt.Sprintf("Engine plays %d", m), w)
		showMessage(sc.session.State().ToDisplayText(), w)
		if sc.session.Over() {
			showMessage(sc.gameOverText(), w)
		}
	}
}

func (sc *ShellController) Loop(sig chan os.Signal) {
	defer sc.l.Close()

	for {
		sc.engineTurn(sc.l.Stderr())

		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				sig <- syscall.SIGINT
				break
			} else {
				continue
			}
		} else if err == io.EOF {
			sig <- syscall.SIGINT
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		resp, err := sc.standardModeSwitch(line, sig)
		if err != nil {
			sc.showError(err)
		} else if resp != nil {
			sc.showMessage(resp.message)
		}
		if strings.HasPrefix(line, "exit") || strings.HasPrefix(line, "quit") {
			break
		}
	}
	log.Debug().Msgf("Exiting readline loop...")
}

// Execute runs a single command line without the interactive loop,
// printing to w.
func (sc *ShellController) Execute(sig chan os.Signal, line string, w io.Writer) {
	resp, err := sc.standardModeSwitch(line, sig)
	if err != nil {
		showMessage("Error: "+err.Error(), w)
		return
	}
	if resp != nil {
		showMessage(resp.message, w)
	}
	sc.engineTurn(w)
}

// Cleanup aborts any search, stops background learning and saves what the
// engine learned.
func (sc *ShellController) Cleanup() {
	sc.close()
}

func (sc *ShellController) close() {
	sc.closed.Do(func() {
		sc.cancel()
		if sc.session != nil {
			sc.session.Close()
		}
		if err := sc.engine.Close(); err != nil {
			log.Err(err).Msg("save-on-exit-failed")
		}
	})
}
