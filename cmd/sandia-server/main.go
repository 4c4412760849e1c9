// Package main provides the analysis orchestration server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sandia-project/sandia-go/internal/analysis"
	"github.com/sandia-project/sandia-go/internal/config"
	"github.com/sandia-project/sandia-go/internal/engine"
	"github.com/sandia-project/sandia-go/internal/metrics"
	"github.com/sandia-project/sandia-go/internal/server"
	"github.com/sandia-project/sandia-go/internal/storage"
)

func main() {
	cfg := config.Load()

	logger, cleanup := config.NewLogger(cfg)
	slog.SetDefault(logger)
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("failed to close log file", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	invoker, err := engine.NewLambdaInvoker(ctx, cfg.AWSRegion)
	if err != nil {
		slog.Error("failed to create lambda client", "error", err)
		os.Exit(1)
	}
	store, err := storage.NewS3Store(ctx, cfg.AWSRegion)
	if err != nil {
		slog.Error("failed to create s3 client", "error", err)
		os.Exit(1)
	}

	adapters := []engine.Adapter{
		engine.NewRuleBased(invoker, cfg.RuleFunction, cfg.ResultsBucket),
		engine.NewStructural(invoker, cfg.StructuralFunction, cfg.ResultsBucket),
		engine.NewSemantic(invoker, cfg.SemanticFunction, cfg.ResultsBucket),
	}

	collector := metrics.NewCollector()
	poller := analysis.NewPoller(store, cfg.PollInterval, cfg.PollMaxAttempts, logger)
	orchestrator := analysis.NewOrchestrator(adapters, poller, collector, cfg.AnalyzeTimeout, logger)

	slog.Info("starting sandia-server",
		"port", cfg.ServerPort,
		"region", cfg.AWSRegion,
		"engines", len(adapters))

	srv := server.New(orchestrator, collector, cfg, logger)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
