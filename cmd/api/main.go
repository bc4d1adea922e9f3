package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/clipper/clipper-api/internal/app"
	"github.com/clipper/clipper-api/internal/pkg/config"
	"github.com/clipper/clipper-api/pkg/logger"
)

func main() {
	// Cancelled on SIGINT or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad(ctx)

	base := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "clipper-api",
		Env:     cfg.Env,
	})
	log := logger.Component("main")
	log.Info().
		Str("store_driver", cfg.StoreDriver).
		Str("cache_driver", cfg.CacheDriver).
		Msg("starting clipper api")

	application, err := app.NewApp(ctx, cfg, base)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize application")
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		log.Error().Err(err).Msg("application error")
		os.Exit(1)
	}
}
