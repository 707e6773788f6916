package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/chris/recurring-payments/pkg/bootstrap"
	"github.com/chris/recurring-payments/pkg/config"
	"github.com/chris/recurring-payments/pkg/keeper"
)

var (
	k      *keeper.Keeper
	logger *slog.Logger
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := cfg.RequireKeeper(true); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	deps, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}
	logger = deps.Logger
	k = keeper.New(deps.Engine, deps.Store, deps.Scheduler, keeper.Config{
		Executor:  cfg.ExecutorAddress,
		BatchSize: cfg.KeeperBatchSize,
	}, logger)
}

// HandleRequest is triggered by an EventBridge Schedule. It enqueues every due payment so that
// payments whose messages were lost or expired are picked up again.
func HandleRequest(ctx context.Context) error {
	n, err := k.EnqueueDue(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to enqueue due payments", "error", err)
		return err
	}
	logger.InfoContext(ctx, "Keeper sweep finished", "enqueued", n)
	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
