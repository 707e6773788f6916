// Package bootstrap wires the storage backend, payment engine and queue for the service binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/chris/recurring-payments/pkg/config"
	"github.com/chris/recurring-payments/pkg/payments"
	"github.com/chris/recurring-payments/pkg/scheduler"
	"github.com/chris/recurring-payments/pkg/storage"
	dydbstore "github.com/chris/recurring-payments/pkg/storage/dynamodb"
	"github.com/chris/recurring-payments/pkg/storage/memory"
)

// Deps holds everything a binary needs after startup.
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     storage.Storage
	Engine    *payments.Engine
	Scheduler scheduler.Scheduler
}

// NewLogger returns a JSON logger at the configured level and installs it as the default.
func NewLogger(cfg *config.Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)
	return logger
}

// New builds the dependencies for cfg. The AWS SDK is only loaded when the DynamoDB backend or
// an SQS queue is configured. Scheduler is nil when no queue is configured.
func New(ctx context.Context, cfg *config.Config) (*Deps, error) {
	logger := NewLogger(cfg)

	signer, err := cfg.Signer()
	if err != nil {
		return nil, err
	}

	deps := &Deps{Config: cfg, Logger: logger}

	var aws *awsClients
	if cfg.StorageBackend == config.BackendDynamoDB || cfg.SQSQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to load SDK config: %w", err)
		}
		aws = &awsClients{dynamo: dynamodb.NewFromConfig(awsCfg), sqs: sqs.NewFromConfig(awsCfg)}
	}

	switch cfg.StorageBackend {
	case config.BackendMemory:
		deps.Store = memory.New(nil)
		logger.Warn("Using in-memory storage; state is lost on exit")
	default:
		deps.Store = dydbstore.New(aws.dynamo, dydbstore.Tables{
			Payments:      cfg.PaymentsTableName,
			Wallets:       cfg.WalletsTableName,
			TokenAccounts: cfg.TokenAccountsTableName,
			TransferLogs:  cfg.TransferLogsTableName,
		})
	}

	if cfg.SQSQueueURL != "" {
		deps.Scheduler = scheduler.NewSQSScheduler(aws.sqs, cfg.SQSQueueURL)
	}

	deps.Engine = payments.NewEngine(deps.Store, cfg.FeePolicy(), signer, logger)

	logger.Info("Dependencies initialized",
		"storage_backend", cfg.StorageBackend,
		"authority_scheme", cfg.AuthorityScheme,
		"executor_fee", cfg.ExecutorFee,
		"protocol_fee", cfg.ProtocolFee,
		"queue", cfg.SQSQueueURL != "",
	)
	return deps, nil
}

type awsClients struct {
	dynamo *dynamodb.Client
	sqs    *sqs.Client
}
