package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/QiangXu1564/order-reserve-aid/internal/aws"
	"github.com/QiangXu1564/order-reserve-aid/internal/changefeed"
)

// Store encapsulates operations on the orders DynamoDB table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	feed      changefeed.Emitter
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// WithFeed makes the store emit a change event after every write.
func (s *Store) WithFeed(e changefeed.Emitter) *Store {
	s.feed = e
	return s
}

// Create inserts o. The id must be unset in the table.
func (s *Store) Create(ctx context.Context, o Order) (*Order, error) {
	now := s.nowFunc().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put order: %w", err)
	}

	s.feed.Emit(ctx, changefeed.TableOrders, changefeed.Insert, o, nil)
	return &o, nil
}

// Get fetches an order by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       key(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// List scans the table, newest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]Order, error) {
	input := &dyn.ScanInput{TableName: &s.tableName}
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, st := range statuses {
			values[i] = string(st)
		}
		expr, attrs := statusFilter(values)
		input.FilterExpression = &expr
		input.ExpressionAttributeNames = map[string]string{"#s": "status"}
		input.ExpressionAttributeValues = attrs
	}

	var out []Order
	for {
		page, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateStatus sets the status of an existing order and returns the updated row.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	now := s.nowFunc().UTC()
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      key(id),
		UpdateExpression:         awsString("SET #s = :new, updated_at = :ua"),
		ConditionExpression:      awsString("attribute_exists(id)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new": &types.AttributeValueMemberS{Value: string(status)},
			":ua":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update item: %w", err)
	}

	var o Order
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	s.feed.Emit(ctx, changefeed.TableOrders, changefeed.Update, o, nil)
	return &o, nil
}

// Delete removes the order. Deleting a missing order is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	out, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:    &s.tableName,
		Key:          key(id),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if len(out.Attributes) > 0 {
		var old Order
		if err := attributevalue.UnmarshalMap(out.Attributes, &old); err == nil {
			s.feed.Emit(ctx, changefeed.TableOrders, changefeed.Delete, nil, old)
		}
	}
	return nil
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

// statusFilter builds "(#s IN (:s0, :s1, ...))".
func statusFilter(values []string) (string, map[string]types.AttributeValue) {
	attrs := make(map[string]types.AttributeValue, len(values))
	expr := "(#s IN ("
	for i, v := range values {
		ph := fmt.Sprintf(":s%d", i)
		if i > 0 {
			expr += ", "
		}
		expr += ph
		attrs[ph] = &types.AttributeValueMemberS{Value: v}
	}
	return expr + "))", attrs
}

func awsString(s string) *string { return &s }
