package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/recurring-payments/pkg/models"
	"github.com/chris/recurring-payments/pkg/storage"
)

// GetWallet retrieves a native-unit wallet from DynamoDB by its address.
func (s *Store) GetWallet(ctx context.Context, address string) (*models.Wallet, error) {
	var wallet models.Wallet
	found, err := s.getItem(ctx, s.WalletsTableName, address, &wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet from DynamoDB: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", storage.ErrWalletNotFound, address)
	}
	return &wallet, nil
}

// GetTokenAccount retrieves a token account from DynamoDB by its address.
func (s *Store) GetTokenAccount(ctx context.Context, address string) (*models.TokenAccount, error) {
	var account models.TokenAccount
	found, err := s.getItem(ctx, s.TokenAccountsTableName, address, &account)
	if err != nil {
		return nil, fmt.Errorf("failed to get token account from DynamoDB: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", storage.ErrTokenAccountNotFound, address)
	}
	return &account, nil
}

// getItem reads the item keyed by address into out and reports whether it exists.
func (s *Store) getItem(ctx context.Context, table, address string, out any) (bool, error) {
	input := &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            addressKey(address),
		ConsistentRead: aws.Bool(true),
	}

	result, err := s.Client.GetItem(ctx, input)
	if err != nil {
		return false, err
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return true, nil
}

func addressKey(address string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"address": &types.AttributeValueMemberS{Value: address},
	}
}
