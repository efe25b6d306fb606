package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/juniper-u/juniper/automatic"
	"github.com/juniper-u/juniper/book"
	"github.com/juniper-u/juniper/config"
	"github.com/juniper-u/juniper/engine"
	"github.com/juniper-u/juniper/knowledge"
	"github.com/juniper-u/juniper/precalc"
)

// tool carries what the subcommands share.
type tool struct {
	cfg      *config.Config
	registry *knowledge.Registry
}

func newRootCmd() *cobra.Command {
	t := &tool{cfg: config.DefaultConfig()}

	rootCmd := &cobra.Command{
		Use:           "juniper-knowledge",
		Short:         "Inspect and extend Juniper Green knowledge files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := t.cfg.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			level := zerolog.InfoLevel
			if t.cfg.GetBool(config.ConfigDebug) {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
			t.registry = knowledge.NewRegistry(t.cfg.GetString(config.ConfigDataPath), knowledge.Options{})
			return nil
		},
	}
	rootCmd.PersistentFlags().String(config.ConfigDataPath, "./knowledge", "directory holding knowledge_<N>.json files")
	rootCmd.PersistentFlags().Bool(config.ConfigDebug, false, "debug logging on")

	statsCmd := &cobra.Command{
		Use:   "stats [grid_size]",
		Short: "Summarize a knowledge file",
		Args:  cobra.ExactArgs(1),
		RunE:  t.runStats,
	}
	statsCmd.Flags().Bool("histogram", true, "plot the confidence of unproven sequences")

	bookCmd := &cobra.Command{
		Use:   "book [grid_size]",
		Short: "Print the annotated opening book",
		Args:  cobra.ExactArgs(1),
		RunE:  t.runBook,
	}
	bookCmd.Flags().Int("depth", book.DefaultMaxDepth, "longest sequence to print")
	bookCmd.Flags().String("format", "text", "text or yaml")
	bookCmd.Flags().String("out", "", "write to this file instead of stdout")

	precalcCmd := &cobra.Command{
		Use:   "precalc [grid_size]",
		Short: "Prove every first move and merge the proofs",
		Args:  cobra.ExactArgs(1),
		RunE:  t.runPrecalc,
	}
	precalcCmd.Flags().Duration("timeout", 5*time.Minute, "search limit per first move")
	precalcCmd.Flags().Int(config.ConfigSolverThreads, 0, "moves solved at once (0 means GOMAXPROCS)")
	precalcCmd.Flags().Float64(config.ConfigTTMemoryFraction, 0.05, "fraction of system memory for each transposition table")

	propagateCmd := &cobra.Command{
		Use:   "propagate [grid_size]",
		Short: "Prove sequences from stored children and save",
		Args:  cobra.ExactArgs(1),
		RunE:  t.runPropagate,
	}

	selfplayCmd := &cobra.Command{
		Use:   "selfplay [grid_size]",
		Short: "Play computer-vs-computer games and store their results",
		Args:  cobra.ExactArgs(1),
		RunE:  t.runSelfplay,
	}
	selfplayCmd.Flags().Int("games", 100, "number of games")
	selfplayCmd.Flags().Int("threads", 1, "games played at once")
	selfplayCmd.Flags().String("first", automatic.EnginePlayer, "first player: engine, heuristic or random")
	selfplayCmd.Flags().String("second", automatic.HeuristicPlayer, "second player: engine, heuristic or random")
	selfplayCmd.Flags().Duration(config.ConfigTimeBudget, time.Second, "engine time per move")
	selfplayCmd.Flags().String("log", "", "write every move to this CSV file")

	rootCmd.AddCommand(statsCmd, bookCmd, precalcCmd, propagateCmd, selfplayCmd)
	return rootCmd
}

func (t *tool) store(arg string) (*knowledge.Store, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("bad grid size %q: %w", arg, err)
	}
	return t.registry.Load(n)
}

func (t *tool) runStats(cmd *cobra.Command, args []string) error {
	store, err := t.store(args[0])
	if err != nil {
		return err
	}
	sum := store.Summary()
	w := cmd.OutOrStdout()
	fmt.Fprint(w, sum)
	if hist, _ := cmd.Flags().GetBool("histogram"); hist && len(sum.Confidences) > 0 {
		fmt.Fprintln(w)
		return sum.WriteConfidenceHistogram(w)
	}
	return nil
}

func (t *tool) runBook(cmd *cobra.Command, args []string) error {
	store, err := t.store(args[0])
	if err != nil {
		return err
	}
	depth, _ := cmd.Flags().GetInt("depth")
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	w := cmd.OutOrStdout()
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	b := book.FromStore(store)
	switch format {
	case "text":
		return b.WriteText(w, depth)
	case "yaml":
		return b.WriteYAML(w, depth)
	}
	return fmt.Errorf("unknown format %q", format)
}

func (t *tool) runPrecalc(cmd *cobra.Command, args []string) error {
	store, err := t.store(args[0])
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	results, err := precalc.FirstMoves(ctx, store.GridSize(), precalc.Options{
		PerMoveTimeout:   timeout,
		Threads:          t.cfg.GetInt(config.ConfigSolverThreads),
		TTMemoryFraction: t.cfg.GetFloat64(config.ConfigTTMemoryFraction),
	})
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, r := range results {
		verdict := "undecided"
		if r.Proven {
			verdict = r.Outcome.String()
		}
		fmt.Fprintf(w, "%4d  %-9s %s\n", r.Move, verdict, r.Elapsed.Round(time.Millisecond))
	}
	merged := precalc.Merge(store, results)
	fmt.Fprintf(w, "merged %d proofs\n", merged)
	return t.registry.Save(store.GridSize())
}

func (t *tool) runPropagate(cmd *cobra.Command, args []string) error {
	store, err := t.store(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "proved %d sequences\n", store.Propagate())
	return t.registry.Save(store.GridSize())
}

func (t *tool) runSelfplay(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad grid size %q: %w", args[0], err)
	}
	games, _ := cmd.Flags().GetInt("games")
	threads, _ := cmd.Flags().GetInt("threads")
	first, _ := cmd.Flags().GetString("first")
	second, _ := cmd.Flags().GetString("second")
	logPath, _ := cmd.Flags().GetString("log")

	var logfile io.Writer
	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			return err
		}
		defer f.Close()
		logfile = f
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	e := engine.NewEngine(t.cfg)
	defer e.Close()
	res, err := automatic.PlayGames(ctx, e, automatic.Options{
		GridSize: n,
		NumGames: games,
		Threads:  threads,
		Players:  [2]string{first, second},
		Budget:   t.cfg.GetDuration(config.ConfigTimeBudget),
	}, logfile)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res)
	return nil
}
