package reservations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/QiangXu1564/order-reserve-aid/internal/aws"
	"github.com/QiangXu1564/order-reserve-aid/internal/changefeed"
)

// Store encapsulates operations on the reservations DynamoDB table.
// reservation_time is stored as epoch seconds so range filters compare numerically.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	feed      changefeed.Emitter
}

// NewStore creates a new reservations Store.
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

func (s *Store) Create(ctx context.Context, r Reservation) (*Reservation, error) {
	now := s.nowFunc().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return nil, fmt.Errorf("marshal reservation: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put reservation: %w", err)
	}
	s.feed.Emit(ctx, changefeed.TableReservations, changefeed.Insert, r, nil)
	return &r, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Reservation, error) {
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
	var r Reservation
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal reservation: %w", err)
	}
	r.ReservationTime = r.ReservationTime.UTC()
	return &r, nil
}

func (s *Store) List(ctx context.Context, statuses ...Status) ([]Reservation, error) {
	f := filter{}
	f.statuses(statuses)
	return s.scan(ctx, f)
}

func (s *Store) ListBetween(ctx context.Context, from, to time.Time, statuses ...Status) ([]Reservation, error) {
	f := filter{}
	f.between("reservation_time", from, to)
	f.statuses(statuses)
	return s.scan(ctx, f)
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) (*Reservation, error) {
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
	var r Reservation
	if err := attributevalue.UnmarshalMap(out.Attributes, &r); err != nil {
		return nil, fmt.Errorf("unmarshal reservation: %w", err)
	}
	r.ReservationTime = r.ReservationTime.UTC()
	s.feed.Emit(ctx, changefeed.TableReservations, changefeed.Update, r, nil)
	return &r, nil
}

func (s *Store) scan(ctx context.Context, f filter) ([]Reservation, error) {
	input := &dyn.ScanInput{TableName: &s.tableName}
	if expr := f.expression(); expr != "" {
		input.FilterExpression = &expr
		input.ExpressionAttributeNames = f.names
		input.ExpressionAttributeValues = f.values
	}

	var out []Reservation
	for {
		page, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan reservations: %w", err)
		}
		var batch []Reservation
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal reservations: %w", err)
		}
		for i := range batch {
			// unixtime decodes into the local zone
			batch[i].ReservationTime = batch[i].ReservationTime.UTC()
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReservationTime.Before(out[j].ReservationTime) })
	return out, nil
}

// filter accumulates parenthesized clauses joined by AND.
type filter struct {
	clauses []string
	names   map[string]string
	values  map[string]types.AttributeValue
}

func (f *filter) init() {
	if f.names == nil {
		f.names = map[string]string{}
		f.values = map[string]types.AttributeValue{}
	}
}

func (f *filter) between(attr string, from, to time.Time) {
	f.init()
	f.names["#rt"] = attr
	f.values[":from"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(from.Unix(), 10)}
	f.values[":to"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(to.Unix(), 10)}
	f.clauses = append(f.clauses, "(#rt BETWEEN :from AND :to)")
}

func (f *filter) statuses(statuses []Status) {
	if len(statuses) == 0 {
		return
	}
	f.init()
	f.names["#s"] = "status"
	phs := make([]string, len(statuses))
	for i, st := range statuses {
		ph := fmt.Sprintf(":s%d", i)
		phs[i] = ph
		f.values[ph] = &types.AttributeValueMemberS{Value: string(st)}
	}
	f.clauses = append(f.clauses, "(#s IN ("+strings.Join(phs, ", ")+"))")
}

func (f *filter) expression() string {
	return strings.Join(f.clauses, " AND ")
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }
