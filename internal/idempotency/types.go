package idempotency

import (
	"context"
	"time"
)

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record is one Idempotency-Key seen by an order creation route.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	OrderID        string    `dynamodbav:"order_id,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`
	ResponseStatus int       `dynamodbav:"response_status,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}

// Expired reports whether the record is past its TTL. DynamoDB removes
// expired items lazily, so readers must check this themselves.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.Unix() >= r.ExpiresAt
}

// Recorder is implemented by the DynamoDB and Postgres idempotency stores.
type Recorder interface {
	// Claim returns false when a live record already holds key.
	Claim(ctx context.Context, key string) (bool, error)
	// Get returns (nil, nil) for unknown or expired keys.
	Get(ctx context.Context, key string) (*Record, error)
	// Complete and Fail return ErrUnknownKey for keys never claimed.
	Complete(ctx context.Context, key, orderID, responseBody string, responseStatus int) error
	Fail(ctx context.Context, key, note string) error
}
