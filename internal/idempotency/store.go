package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/QiangXu1564/order-reserve-aid/internal/aws"
)

const (
	keyAttr      = "idempotency_key"
	condPresent  = "attribute_exists(" + keyAttr + ")"
	condClaim    = "attribute_not_exists(" + keyAttr + ") OR expires_at <= :now"
	conditionErr = "ConditionalCheckFailedException"
)

// ErrUnknownKey is returned when completing or failing a key that was never claimed.
var ErrUnknownKey = errors.New("idempotency key not found")

// Store keeps idempotency records in DynamoDB. Expired items linger until
// DynamoDB's TTL sweeper removes them, so every read checks ExpiresAt.
type Store struct {
	client  aws.DynamoDBAPI
	table   string
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewStore(client aws.DynamoDBAPI, table string, ttl time.Duration) *Store {
	return &Store{client: client, table: table, ttl: ttl, nowFunc: time.Now}
}

// Claim writes an IN_PROGRESS record for key. It reports false when a live
// record already holds the key. An expired record is replaced in the same
// conditional write, so only one of several racing retries wins it.
func (s *Store) Claim(ctx context.Context, key string) (bool, error) {
	now := s.nowFunc().UTC()
	item, err := attributevalue.MarshalMap(Record{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return false, fmt.Errorf("marshal idempotency record: %w", err)
	}

	cond := condClaim
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.table,
		Item:                item,
		ConditionExpression: &cond,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	switch {
	case err == nil:
		return true, nil
	case isConditionFailure(err):
		return false, nil
	default:
		return false, fmt.Errorf("put idempotency record: %w", err)
	}
}

// Get returns the live record for key, or nil when it is unknown or expired.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	rec, err := s.load(ctx, key)
	if err != nil || rec == nil || rec.Expired(s.nowFunc()) {
		return nil, err
	}
	return rec, nil
}

// Complete stores the response that later retries replay.
func (s *Store) Complete(ctx context.Context, key, orderID, responseBody string, responseStatus int) error {
	return s.transition(ctx, key, StatusDone,
		"order_id = :oid, response_body = :rb, response_status = :rs",
		map[string]types.AttributeValue{
			":oid": &types.AttributeValueMemberS{Value: orderID},
			":rb":  &types.AttributeValueMemberS{Value: responseBody},
			":rs":  &types.AttributeValueMemberN{Value: strconv.Itoa(responseStatus)},
		})
}

func (s *Store) Fail(ctx context.Context, key, note string) error {
	return s.transition(ctx, key, StatusFailed, "note = :n",
		map[string]types.AttributeValue{
			":n": &types.AttributeValueMemberS{Value: note},
		})
}

// transition sets status and updated_at alongside the extra assignments.
func (s *Store) transition(ctx context.Context, key, status, assign string, values map[string]types.AttributeValue) error {
	values[":st"] = &types.AttributeValueMemberS{Value: status}
	values[":ua"] = &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)}
	expr := "SET #s = :st, updated_at = :ua, " + assign
	cond := condPresent

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.table,
		Key:                       keyOf(key),
		UpdateExpression:          &expr,
		ConditionExpression:       &cond,
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	switch {
	case err == nil:
		return nil
	case isConditionFailure(err):
		return ErrUnknownKey
	default:
		return fmt.Errorf("set idempotency key %s to %s: %w", key, status, err)
	}
}

func (s *Store) load(ctx context.Context, key string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{TableName: &s.table, Key: keyOf(key)})
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	rec := new(Record)
	if err := attributevalue.UnmarshalMap(out.Item, rec); err != nil {
		return nil, fmt.Errorf("unmarshal idempotency record: %w", err)
	}
	return rec, nil
}

func keyOf(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{keyAttr: &types.AttributeValueMemberS{Value: key}}
}

func isConditionFailure(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == conditionErr
}
