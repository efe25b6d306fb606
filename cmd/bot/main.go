package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/juniper-u/juniper/bot"
	"github.com/juniper-u/juniper/config"
	"github.com/juniper-u/juniper/engine"
)

func main() {
	ex, err := os.Executable()
	if err != nil {
		panic(err)
	}
	exPath := filepath.Dir(ex)

	cfg := &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.AdjustRelativePaths(exPath)
	log.Info().Msgf("Loaded config: %v, exPath: %v", cfg.SanitizedSettings(), exPath)

	if cfg.GetBool(config.ConfigDebug) {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := engine.NewEngine(cfg)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Main(ctx, cfg.GetString(config.ConfigBotChannel), bot.NewBot(cfg, e))
	})
	if addr := cfg.GetString(config.ConfigMetricsAddr); addr != "" {
		g.Go(func() error {
			return bot.ServeMetrics(ctx, addr)
		})
	}
	err = g.Wait()
	if cerr := e.Close(); cerr != nil {
		log.Err(cerr).Msg("save-on-exit-failed")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("bot-failed")
	}
	log.Info().Msg("server gracefully shutting down")
}
