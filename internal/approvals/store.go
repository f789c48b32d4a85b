package approvals

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/QiangXu1564/order-reserve-aid/internal/aws"
	"github.com/QiangXu1564/order-reserve-aid/internal/changefeed"
)

// Store encapsulates operations on the approvals DynamoDB table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	feed      changefeed.Emitter
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName, nowFunc: time.Now}
}

// WithFeed makes the store emit a change event after every write.
func (s *Store) WithFeed(e changefeed.Emitter) *Store {
	s.feed = e
	return s
}

func (s *Store) Create(ctx context.Context, a Approval) (*Approval, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.nowFunc().UTC()
	}
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return nil, fmt.Errorf("marshal approval: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put approval: %w", err)
	}
	s.feed.Emit(ctx, changefeed.TableApprovals, changefeed.Insert, a, nil)
	return &a, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Approval, error) {
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
	var a Approval
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal approval: %w", err)
	}
	return &a, nil
}

func (s *Store) List(ctx context.Context, statuses ...Status) ([]Approval, error) {
	input := &dyn.ScanInput{TableName: &s.tableName}
	if len(statuses) > 0 {
		phs := make([]string, len(statuses))
		values := make(map[string]types.AttributeValue, len(statuses))
		for i, st := range statuses {
			phs[i] = fmt.Sprintf(":s%d", i)
			values[phs[i]] = &types.AttributeValueMemberS{Value: string(st)}
		}
		input.FilterExpression = awsString("(#s IN (" + strings.Join(phs, ", ") + "))")
		input.ExpressionAttributeNames = map[string]string{"#s": "status"}
		input.ExpressionAttributeValues = values
	}

	var out []Approval
	for {
		page, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan approvals: %w", err)
		}
		var batch []Approval
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal approvals: %w", err)
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

func (s *Store) Respond(ctx context.Context, id string, status Status, notes *string, at time.Time) (*Approval, error) {
	notesAV, err := attributevalue.Marshal(notes)
	if err != nil {
		return nil, fmt.Errorf("marshal notes: %w", err)
	}
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      key(id),
		UpdateExpression:         awsString("SET #s = :st, worker_notes = :wn, responded_at = :ra"),
		ConditionExpression:      awsString("attribute_exists(id)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":st": &types.AttributeValueMemberS{Value: string(status)},
			":wn": notesAV,
			":ra": &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)},
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
	var a Approval
	if err := attributevalue.UnmarshalMap(out.Attributes, &a); err != nil {
		return nil, fmt.Errorf("unmarshal approval: %w", err)
	}
	s.feed.Emit(ctx, changefeed.TableApprovals, changefeed.Update, a, nil)
	return &a, nil
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }
