// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/chris/recurring-payments/pkg/authority"
	"github.com/chris/recurring-payments/pkg/fees"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Config holds all configuration for the service binaries.
type Config struct {
	HTTPPort               string `mapstructure:"HTTP_PORT"`
	StorageBackend         string `mapstructure:"STORAGE_BACKEND"`
	PaymentsTableName      string `mapstructure:"DYNAMODB_PAYMENTS_TABLE_NAME"`
	WalletsTableName       string `mapstructure:"DYNAMODB_WALLETS_TABLE_NAME"`
	TokenAccountsTableName string `mapstructure:"DYNAMODB_TOKEN_ACCOUNTS_TABLE_NAME"`
	TransferLogsTableName  string `mapstructure:"DYNAMODB_TRANSFER_LOGS_TABLE_NAME"`
	SQSQueueURL            string `mapstructure:"SQS_QUEUE_URL"`
	ExecutorFee            uint64 `mapstructure:"EXECUTOR_FEE"`
	ProtocolFee            uint64 `mapstructure:"PROTOCOL_FEE"`
	AuthorityScheme        string `mapstructure:"AUTHORITY_SCHEME"`
	ExecutorAddress        string `mapstructure:"EXECUTOR_ADDRESS"`
	KeeperSchedule         string `mapstructure:"KEEPER_SCHEDULE"`
	KeeperBatchSize        int32  `mapstructure:"KEEPER_BATCH_SIZE"`
	KeeperConcurrency      int    `mapstructure:"KEEPER_CONCURRENCY"`
	LogLevel               string `mapstructure:"LOG_LEVEL"`
}

var keys = []string{
	"HTTP_PORT",
	"STORAGE_BACKEND",
	"DYNAMODB_PAYMENTS_TABLE_NAME",
	"DYNAMODB_WALLETS_TABLE_NAME",
	"DYNAMODB_TOKEN_ACCOUNTS_TABLE_NAME",
	"DYNAMODB_TRANSFER_LOGS_TABLE_NAME",
	"SQS_QUEUE_URL",
	"EXECUTOR_FEE",
	"PROTOCOL_FEE",
	"AUTHORITY_SCHEME",
	"EXECUTOR_ADDRESS",
	"KEEPER_SCHEDULE",
	"KEEPER_BATCH_SIZE",
	"KEEPER_CONCURRENCY",
	"LOG_LEVEL",
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	v := viper.New()
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("STORAGE_BACKEND", BackendDynamoDB)
	v.SetDefault("EXECUTOR_FEE", fees.DefaultExecutorFee)
	v.SetDefault("PROTOCOL_FEE", fees.DefaultProtocolFee)
	v.SetDefault("AUTHORITY_SCHEME", authority.SchemePayment)
	v.SetDefault("KEEPER_SCHEDULE", "@every 30s")
	v.SetDefault("KEEPER_BATCH_SIZE", 100)
	v.SetDefault("KEEPER_CONCURRENCY", 8)
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings every binary depends on.
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageBackend {
	case BackendMemory:
	case BackendDynamoDB:
		if c.PaymentsTableName == "" || c.WalletsTableName == "" || c.TokenAccountsTableName == "" || c.TransferLogsTableName == "" {
			errs = append(errs, errors.New("one or more DynamoDB table name environment variables are not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	if _, err := authority.New(c.AuthorityScheme); err != nil {
		errs = append(errs, fmt.Errorf("AUTHORITY_SCHEME: %w", err))
	}
	if _, err := c.FeePolicy().PerInstallment(); err != nil {
		errs = append(errs, fmt.Errorf("EXECUTOR_FEE and PROTOCOL_FEE: %w", err))
	}
	return errors.Join(errs...)
}

// RequireKeeper checks the settings a keeper binary needs on top of Validate.
func (c *Config) RequireKeeper(needsQueue bool) error {
	var errs []error
	if c.ExecutorAddress == "" {
		errs = append(errs, errors.New("EXECUTOR_ADDRESS environment variable not set"))
	}
	if needsQueue && c.SQSQueueURL == "" {
		errs = append(errs, errors.New("SQS_QUEUE_URL environment variable not set"))
	}
	return errors.Join(errs...)
}

// FeePolicy returns the configured per-installment fees.
func (c *Config) FeePolicy() fees.Policy {
	return fees.Policy{ExecutorFee: c.ExecutorFee, ProtocolFee: c.ProtocolFee}
}

// Signer returns the configured signing scheme.
func (c *Config) Signer() (authority.Signer, error) {
	return authority.New(c.AuthorityScheme)
}

// Level parses LOG_LEVEL, defaulting to info.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
