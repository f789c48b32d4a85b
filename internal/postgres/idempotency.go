package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/QiangXu1564/order-reserve-aid/internal/idempotency"
)

// IdempotencyStore implements idempotency.Recorder on the idempotency table.
type IdempotencyStore struct {
	db        *sql.DB
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

var _ idempotency.Recorder = (*IdempotencyStore)(nil)

func NewIdempotencyStore(db *sql.DB, ttlWindow time.Duration) *IdempotencyStore {
	return &IdempotencyStore{db: db, ttlWindow: ttlWindow, nowFunc: time.Now}
}

// Claim inserts key as IN_PROGRESS. An expired record is overwritten in place.
func (s *IdempotencyStore) Claim(ctx context.Context, key string) (bool, error) {
	now := s.nowFunc().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency (idempotency_key, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $3, $4)
		ON CONFLICT (idempotency_key) DO UPDATE
		SET status = EXCLUDED.status, order_id = '', response_body = '', response_status = 0, note = '',
			created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at
		WHERE idempotency.expires_at <= $5
	`, key, idempotency.StatusInProgress, now, now.Add(s.ttlWindow).Unix(), now.Unix())
	if err != nil {
		return false, fmt.Errorf("insert idempotency record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	var rec idempotency.Record
	err := s.db.QueryRowContext(ctx, `
		SELECT idempotency_key, status, order_id, response_body, response_status, note,
			created_at, updated_at, expires_at
		FROM idempotency
		WHERE idempotency_key = $1 AND expires_at > $2
	`, key, s.nowFunc().Unix()).Scan(&rec.IdempotencyKey, &rec.Status, &rec.OrderID, &rec.ResponseBody,
		&rec.ResponseStatus, &rec.Note, &rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return &rec, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key, orderID, responseBody string, responseStatus int) error {
	return s.mark(ctx, `
		UPDATE idempotency SET status = $2, order_id = $3, response_body = $4, response_status = $5, updated_at = $6
		WHERE idempotency_key = $1
	`, key, idempotency.StatusDone, orderID, responseBody, responseStatus, s.nowFunc().UTC())
}

func (s *IdempotencyStore) Fail(ctx context.Context, key, note string) error {
	return s.mark(ctx, `
		UPDATE idempotency SET status = $2, note = $3, updated_at = $4
		WHERE idempotency_key = $1
	`, key, idempotency.StatusFailed, note, s.nowFunc().UTC())
}

func (s *IdempotencyStore) mark(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update idempotency record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return idempotency.ErrUnknownKey
	}
	return nil
}
