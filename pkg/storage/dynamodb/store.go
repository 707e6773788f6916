package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chris/recurring-payments/pkg/storage"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store implements the Storage interface using AWS DynamoDB.
type Store struct {
	Client                 DynamoDBAPI
	Clock                  func() time.Time
	PaymentsTableName      string
	WalletsTableName       string
	TokenAccountsTableName string
	TransferLogsTableName  string
}

// Tables names the four DynamoDB tables the store reads and writes.
type Tables struct {
	Payments      string
	Wallets       string
	TokenAccounts string
	TransferLogs  string
}

// New creates a new Store.
func New(client DynamoDBAPI, tables Tables) *Store {
	return &Store{
		Client:                 client,
		Clock:                  time.Now,
		PaymentsTableName:      tables.Payments,
		WalletsTableName:       tables.Wallets,
		TokenAccountsTableName: tables.TokenAccounts,
		TransferLogsTableName:  tables.TransferLogs,
	}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

// Now returns the store clock as unix seconds.
func (s *Store) Now(ctx context.Context) (uint64, error) {
	clock := s.Clock
	if clock == nil {
		clock = time.Now
	}
	sec := clock().Unix()
	if sec < 0 {
		return 0, nil
	}
	return uint64(sec), nil
}
