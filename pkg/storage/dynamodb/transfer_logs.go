package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/recurring-payments/pkg/models"
)

const (
	paymentLogsIndex = "payment_address-timestamp-index"
	recentLogsIndex  = "gsi1pk-timestamp-index"
)

// ListTransferLogs retrieves the attempts made against one payment, oldest first.
func (s *Store) ListTransferLogs(ctx context.Context, paymentAddress string) ([]models.TransferLog, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.TransferLogsTableName),
		IndexName:              aws.String(paymentLogsIndex),
		KeyConditionExpression: aws.String("payment_address = :address"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":address": &types.AttributeValueMemberS{Value: paymentAddress},
		},
		ScanIndexForward: aws.Bool(true),
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query for transfer logs: %w", err)
	}

	var logs []models.TransferLog
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &logs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transfer logs: %w", err)
	}

	return logs, nil
}

// ListRecentTransferLogs retrieves the most recent attempts across every payment.
func (s *Store) ListRecentTransferLogs(ctx context.Context, limit int32) ([]models.TransferLog, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.TransferLogsTableName),
		IndexName:              aws.String(recentLogsIndex),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: models.TransferLogPartition},
		},
		ScanIndexForward: aws.Bool(false), // Sort by timestamp in descending order
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query for recent transfer logs: %w", err)
	}

	var logs []models.TransferLog
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &logs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transfer logs: %w", err)
	}

	return logs, nil
}
