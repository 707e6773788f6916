package dynamodb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/recurring-payments/pkg/models"
	"github.com/chris/recurring-payments/pkg/storage"
)

const (
	debtorIndex = "debtor-created_at-index"
	dueIndex    = "status-next_transfer_at-index"
)

// GetPayment retrieves a payment from DynamoDB by its address.
func (s *Store) GetPayment(ctx context.Context, address string) (*models.Payment, error) {
	var payment models.Payment
	found, err := s.getItem(ctx, s.PaymentsTableName, address, &payment)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment from DynamoDB: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", storage.ErrPaymentNotFound, address)
	}
	return &payment, nil
}

// ListPaymentsByDebtor retrieves every payment a debtor has created, oldest first.
func (s *Store) ListPaymentsByDebtor(ctx context.Context, debtor string) ([]models.Payment, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.PaymentsTableName),
		IndexName:              aws.String(debtorIndex),
		KeyConditionExpression: aws.String("debtor = :debtor"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":debtor": &types.AttributeValueMemberS{Value: debtor},
		},
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query for payments by debtor: %w", err)
	}

	var payments []models.Payment
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &payments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payments: %w", err)
	}

	return payments, nil
}

// GetDuePayments retrieves up to limit SCHEDULED payments whose next transfer is at or before now,
// earliest first.
func (s *Store) GetDuePayments(ctx context.Context, now uint64, limit int32) ([]models.Payment, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.PaymentsTableName),
		IndexName:              aws.String(dueIndex),
		KeyConditionExpression: aws.String("#status = :status AND next_transfer_at <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(models.SCHEDULED)},
			":now":    &types.AttributeValueMemberN{Value: strconv.FormatUint(now, 10)},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query for due payments: %w", err)
	}

	var payments []models.Payment
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &payments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal due payments: %w", err)
	}

	return payments, nil
}
