// Package main provides the Connect Four game server. It accepts websocket
// clients, matches them into rooms, and referees their games.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/config"
	"github.com/cory-johannsen/connect4/internal/gameserver"
	"github.com/cory-johannsen/connect4/internal/match"
	"github.com/cory-johannsen/connect4/internal/observability"
	"github.com/cory-johannsen/connect4/internal/server"
	"github.com/cory-johannsen/connect4/internal/transport/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting connect4 server",
		zap.String("ws_addr", cfg.Network.Addr()),
		zap.Int("rows", cfg.Game.Rows),
		zap.Int("columns", cfg.Game.Columns),
	)

	registry := match.NewRegistry(cfg.Game.Rows, cfg.Game.Columns, logger)
	handler := gameserver.NewHandler(registry, logger)

	acceptor := ws.NewAcceptor(cfg.Network, handler, logger)
	acceptor.Handle("/rooms", gameserver.RoomsHandler(registry, logger))

	lifecycle := server.NewLifecycle(logger)

	if cfg.Health.Enabled {
		health := gameserver.NewHealthServer(cfg.Health, logger)
		lifecycle.SetStatusReporter(health)
		lifecycle.Add("health", &server.FuncService{
			StartFn: health.ListenAndServe,
			StopFn:  health.Stop,
		})
	}

	if cfg.Logging.StatsInterval > 0 {
		stats := gameserver.NewStatsReporter(cfg.Logging.StatsInterval, registry, logger)
		lifecycle.Add("stats", &server.FuncService{
			StartFn: stats.Start,
			StopFn:  stats.Stop,
		})
	}

	lifecycle.Add("websocket", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	logger.Info("server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Bool("health_enabled", cfg.Health.Enabled),
		zap.String("health_addr", cfg.Health.Addr()),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
