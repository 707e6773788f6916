package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/chris/recurring-payments/pkg/bootstrap"
	"github.com/chris/recurring-payments/pkg/config"
	"github.com/chris/recurring-payments/pkg/keeper"
)

// The keeper process sweeps due payments on KEEPER_SCHEDULE and distributes them as
// EXECUTOR_ADDRESS, collecting the executor fee for each one.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := cfg.RequireKeeper(false); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}
	logger := deps.Logger

	k := keeper.New(deps.Engine, deps.Store, nil, keeper.Config{
		Executor:    cfg.ExecutorAddress,
		BatchSize:   cfg.KeeperBatchSize,
		Concurrency: cfg.KeeperConcurrency,
	}, logger)

	runner := keeper.NewRunner(k, cfg.KeeperSchedule, logger)
	if err := runner.Start(ctx); err != nil {
		log.Fatalf("failed to start keeper: %v", err)
	}
	logger.Info("Keeper started", "executor", cfg.ExecutorAddress)

	<-ctx.Done()
	logger.Info("Shutting down keeper")
	<-runner.Stop().Done()
}
