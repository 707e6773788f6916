package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/chris/recurring-payments/pkg/bootstrap"
	"github.com/chris/recurring-payments/pkg/config"
	"github.com/chris/recurring-payments/pkg/keeper"
	"github.com/chris/recurring-payments/pkg/scheduler"
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

	// Initialize dependencies once per container.
	deps, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}
	logger = deps.Logger
	k = keeper.New(deps.Engine, deps.Store, deps.Scheduler, keeper.Config{
		Executor:    cfg.ExecutorAddress,
		BatchSize:   cfg.KeeperBatchSize,
		Concurrency: cfg.KeeperConcurrency,
	}, logger)
}

// HandleRequest distributes each queued payment and re-enqueues the ones that remain scheduled.
// Failed messages are reported individually so SQS only redelivers those.
func HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, message := range sqsEvent.Records {
		var msg scheduler.Message
		if err := json.Unmarshal([]byte(message.Body), &msg); err != nil {
			// A malformed message will never succeed; drop it rather than poison the queue.
			logger.ErrorContext(ctx, "Failed to unmarshal message", "message_id", message.MessageId, "error", err)
			continue
		}

		if err := k.Handle(ctx, msg); err != nil {
			logger.ErrorContext(ctx, "Failed to handle payment", "message_id", message.MessageId, "address", msg.PaymentAddress, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: message.MessageId})
		}
	}
	if n := len(resp.BatchItemFailures); n > 0 {
		logger.WarnContext(ctx, "Batch had failures", "failed", n, "total", len(sqsEvent.Records))
	}
	return resp, nil
}

func main() {
	lambda.Start(HandleRequest)
}

