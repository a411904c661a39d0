package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/doko-game/doko/internal/event"
	"github.com/doko-game/doko/internal/game"
	"github.com/doko-game/doko/internal/randutil"
	"github.com/doko-game/doko/internal/rules"
	"github.com/doko-game/doko/internal/server"
	"github.com/doko-game/doko/internal/store"
)

// ServerCmd runs the game server
type ServerCmd struct {
	Config string `kong:"default='doko.hcl',help='Path to HCL config file'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
	Seed   *int64 `kong:"help='Deterministic RNG seed (optional)'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Server.LogLevel, c.Debug)

	var seed int64
	if c.Seed != nil {
		seed = *c.Seed
		logger.Info("using deterministic seed", "seed", seed)
	} else if cfg.Game.Seed != 0 {
		seed = cfg.Game.Seed
		logger.Info("using configured seed", "seed", seed)
	} else {
		seed = time.Now().UnixNano()
		logger.Info("using random seed", "seed", seed)
	}
	rng := randutil.New(seed)

	st, err := store.Open(cfg.Server.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	bus := event.NewBus(logger)
	engine := game.NewEngine(st, bus, rules.Normal{}, quartz.NewReal(), rng, logger, game.Config{
		AfterPlay:  cfg.Game.AfterPlayDelay(),
		AfterTrick: cfg.Game.AfterTrickDelay(),
	})

	srv := server.New(cfg, st, engine, bus, logger)

	logger.Info("starting doko server",
		"addr", cfg.Addr(),
		"database", cfg.Server.DatabasePath,
		"after_play_delay", cfg.Game.AfterPlayDelay(),
		"after_trick_delay", cfg.Game.AfterTrickDelay())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

func setupLogger(level string, debug bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
		return logger
	}
	if parsed, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
	return logger
}
