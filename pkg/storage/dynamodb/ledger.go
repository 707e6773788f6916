package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/recurring-payments/pkg/ledger"
)

// maxTransactItems is the DynamoDB limit on items in one TransactWriteItems call.
const maxTransactItems = 100

const conditionalCheckFailed = "ConditionalCheckFailed"

// writeItem pairs a transaction item with the operation that produced it so a cancellation
// reason at the same index can be mapped back to a ledger error.
type writeItem struct {
	item  types.TransactWriteItem
	op    ledger.Op
	debit bool
}

// Commit applies the batch as a single DynamoDB transaction. Either every item is written or
// none is.
func (s *Store) Commit(ctx context.Context, b *ledger.Batch) error {
	if b == nil || len(b.Ops) == 0 {
		return fmt.Errorf("%w: empty batch", ledger.ErrInvalidBatch)
	}

	var items []writeItem
	for _, op := range b.Ops {
		built, err := s.buildItems(op)
		if err != nil {
			return err
		}
		items = append(items, built...)
	}
	for _, adj := range b.Adjustments() {
		items = append(items, s.adjustItem(adj))
	}
	if len(items) > maxTransactItems {
		return fmt.Errorf("%w: %d items exceed the transaction limit", ledger.ErrInvalidBatch, len(items))
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: make([]types.TransactWriteItem, len(items)),
	}
	for i, it := range items {
		input.TransactItems[i] = it.item
	}

	_, err := s.Client.TransactWriteItems(ctx, input)
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return s.classify(ctx, items, tce)
		}
		return fmt.Errorf("failed to execute ledger transaction: %w", err)
	}
	return nil
}

func (s *Store) buildItems(op ledger.Op) ([]writeItem, error) {
	switch op := op.(type) {
	case ledger.Transfer:
		if op.From == op.To {
			return nil, fmt.Errorf("%w: transfer source and destination are the same account", ledger.ErrInvalidBatch)
		}
		if err := ledger.CheckSigner(op); err != nil {
			return nil, err
		}
		return []writeItem{
			{op: op, item: types.TransactWriteItem{Update: &types.Update{
				TableName:           aws.String(s.TokenAccountsTableName),
				Key:                 addressKey(op.From),
				UpdateExpression:    aws.String("SET #balance = #balance - :amount, #delegated = #delegated - :amount"),
				ConditionExpression: aws.String("#delegate = :delegate AND #delegated >= :amount AND #balance >= :amount AND #currency = :currency"),
				ExpressionAttributeNames: map[string]string{
					"#balance":   "balance",
					"#delegated": "delegated_amount",
					"#delegate":  "delegate",
					"#currency":  "currency",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":amount":   number(op.Amount),
					":delegate": &types.AttributeValueMemberS{Value: op.Authority},
					":currency": &types.AttributeValueMemberS{Value: op.Currency},
				},
			}}},
			{op: op, item: types.TransactWriteItem{Update: &types.Update{
				TableName:           aws.String(s.TokenAccountsTableName),
				Key:                 addressKey(op.To),
				UpdateExpression:    aws.String("SET #balance = #balance + :amount"),
				ConditionExpression: aws.String("attribute_exists(address) AND #currency = :currency"),
				ExpressionAttributeNames: map[string]string{
					"#balance":  "balance",
					"#currency": "currency",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":amount":   number(op.Amount),
					":currency": &types.AttributeValueMemberS{Value: op.Currency},
				},
			}}},
		}, nil

	case ledger.Approve:
		update := &types.Update{
			TableName:           aws.String(s.TokenAccountsTableName),
			Key:                 addressKey(op.Account),
			UpdateExpression:    aws.String("SET #delegate = :delegate, #delegated = :limit"),
			ConditionExpression: aws.String("#owner = :owner"),
			ExpressionAttributeNames: map[string]string{
				"#delegate":  "delegate",
				"#delegated": "delegated_amount",
				"#owner":     "owner",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":delegate": &types.AttributeValueMemberS{Value: op.Delegate},
				":limit":    number(op.Limit),
				":owner":    &types.AttributeValueMemberS{Value: op.Owner},
			},
		}
		if e := op.Expect; e != nil {
			// delegate is omitted from the item when unset
			delegateCond := "attribute_not_exists(#delegate)"
			if e.Delegate != "" {
				delegateCond = "#delegate = :expect_delegate"
				update.ExpressionAttributeValues[":expect_delegate"] = &types.AttributeValueMemberS{Value: e.Delegate}
			}
			update.ConditionExpression = aws.String("#owner = :owner AND #delegated = :expect_amount AND " + delegateCond)
			update.ExpressionAttributeValues[":expect_amount"] = number(e.Amount)
		}
		return []writeItem{{op: op, item: types.TransactWriteItem{Update: update}}}, nil

	case ledger.Revoke:
		return []writeItem{{op: op, item: types.TransactWriteItem{Update: &types.Update{
			TableName:           aws.String(s.TokenAccountsTableName),
			Key:                 addressKey(op.Account),
			UpdateExpression:    aws.String("SET #delegated = :zero REMOVE #delegate"),
			ConditionExpression: aws.String("#owner = :owner"),
			ExpressionAttributeNames: map[string]string{
				"#delegate":  "delegate",
				"#delegated": "delegated_amount",
				"#owner":     "owner",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":zero":  number(0),
				":owner": &types.AttributeValueMemberS{Value: op.Owner},
			},
		}}}}, nil

	case ledger.AdjustBalance:
		// folded into one item per wallet by Adjustments
		return nil, nil

	case ledger.PutPayment:
		p := op.Payment
		if p == nil || p.Version != op.ExpectVersion+1 {
			return nil, fmt.Errorf("%w: payment version must advance by one", ledger.ErrInvalidBatch)
		}
		av, err := attributevalue.MarshalMap(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payment: %w", err)
		}
		put := &types.Put{
			TableName:           aws.String(s.PaymentsTableName),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(address)"),
		}
		if op.ExpectVersion != 0 {
			put.ConditionExpression = aws.String("version = :version")
			put.ExpressionAttributeValues = map[string]types.AttributeValue{
				":version": &types.AttributeValueMemberN{Value: strconv.FormatInt(op.ExpectVersion, 10)},
			}
		}
		return []writeItem{{op: op, item: types.TransactWriteItem{Put: put}}}, nil

	case ledger.PutTransferLog:
		if op.Log == nil || op.Log.ID == "" {
			return nil, fmt.Errorf("%w: transfer log needs an id", ledger.ErrInvalidBatch)
		}
		return s.putNew(op, s.TransferLogsTableName, op.Log, "id")

	case ledger.CreateWallet:
		return s.putNew(op, s.WalletsTableName, op.Wallet, "address")

	case ledger.CreateTokenAccount:
		return s.putNew(op, s.TokenAccountsTableName, op.Account, "address")
	}
	return nil, fmt.Errorf("%w: unsupported operation %T", ledger.ErrInvalidBatch, op)
}

func (s *Store) putNew(op ledger.Op, table string, v any, key string) ([]writeItem, error) {
	av, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return []writeItem{{op: op, item: types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(table),
		Item:                av,
		ConditionExpression: aws.String(fmt.Sprintf("attribute_not_exists(%s)", key)),
	}}}}, nil
}

// adjustItem credits with ADD, which creates a missing wallet, and debits only when the
// balance covers the amount.
func (s *Store) adjustItem(adj ledger.AdjustBalance) writeItem {
	if adj.Delta > 0 {
		return writeItem{op: adj, item: types.TransactWriteItem{Update: &types.Update{
			TableName:        aws.String(s.WalletsTableName),
			Key:              addressKey(adj.Account),
			UpdateExpression: aws.String("ADD #balance :amount"),
			ExpressionAttributeNames: map[string]string{
				"#balance": "balance",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":amount": number(uint64(adj.Delta)),
			},
		}}}
	}
	return writeItem{op: adj, debit: true, item: types.TransactWriteItem{Update: &types.Update{
		TableName:           aws.String(s.WalletsTableName),
		Key:                 addressKey(adj.Account),
		UpdateExpression:    aws.String("SET #balance = #balance - :amount"),
		ConditionExpression: aws.String("#balance >= :amount"),
		ExpressionAttributeNames: map[string]string{
			"#balance": "balance",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":amount": number(uint64(-adj.Delta)),
		},
	}}}
}

// classify maps the first failed item of a cancelled transaction to a ledger error.
func (s *Store) classify(ctx context.Context, items []writeItem, tce *types.TransactionCanceledException) error {
	for i, reason := range tce.CancellationReasons {
		code := aws.ToString(reason.Code)
		if code == "" || code == "None" || i >= len(items) {
			continue
		}
		if code != conditionalCheckFailed {
			return fmt.Errorf("%w: %s", ledger.ErrConflict, code)
		}

		switch op := items[i].op.(type) {
		case ledger.Transfer:
			return s.transferFailure(ctx, op)
		case ledger.Approve:
			return s.approveFailure(ctx, op)
		case ledger.Revoke:
			return fmt.Errorf("%w: %s does not own %s", ledger.ErrUnauthorized, op.Owner, op.Account)
		case ledger.AdjustBalance:
			if items[i].debit {
				return fmt.Errorf("%w: wallet %s cannot cover %d", ledger.ErrInsufficientFunds, op.Account, -op.Delta)
			}
		}
		return fmt.Errorf("%w: condition failed on %T", ledger.ErrConflict, items[i].op)
	}
	return fmt.Errorf("%w: transaction cancelled: %v", ledger.ErrConflict, tce)
}

// transferFailure re-reads both sides of a transfer to report why its conditions failed.
func (s *Store) transferFailure(ctx context.Context, t ledger.Transfer) error {
	from, err := s.GetTokenAccount(ctx, t.From)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrUnauthorized, err)
	}
	to, err := s.GetTokenAccount(ctx, t.To)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrUnauthorized, err)
	}
	if err := ledger.CheckTransfer(from, to, t); err != nil {
		return err
	}
	return fmt.Errorf("%w: token accounts changed during transfer", ledger.ErrConflict)
}

// approveFailure tells a failed owner check apart from a delegation that changed since it was read.
func (s *Store) approveFailure(ctx context.Context, op ledger.Approve) error {
	if op.Expect == nil {
		return fmt.Errorf("%w: %s does not own %s", ledger.ErrUnauthorized, op.Owner, op.Account)
	}
	a, err := s.GetTokenAccount(ctx, op.Account)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrUnauthorized, err)
	}
	if a.Owner != op.Owner {
		return fmt.Errorf("%w: %s does not own %s", ledger.ErrUnauthorized, op.Owner, op.Account)
	}
	return fmt.Errorf("%w: delegation on %s changed", ledger.ErrConflict, op.Account)
}

func number(v uint64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatUint(v, 10)}
}
