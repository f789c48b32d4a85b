package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/QiangXu1564/order-reserve-aid/internal/orders"
)

const orderColumns = `id, customer_name, customer_phone, products, status, created_at, updated_at`

// OrderStore implements orders.Repository. Change events come from the
// row_changes trigger, not from the store.
type OrderStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

var _ orders.Repository = (*OrderStore)(nil)

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db, nowFunc: time.Now}
}

func (s *OrderStore) Create(ctx context.Context, o orders.Order) (*orders.Order, error) {
	now := s.nowFunc().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, o.CustomerName, o.CustomerPhone, pq.Array(o.Products), string(o.Status), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return &o, nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*orders.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *OrderStore) List(ctx context.Context, statuses ...orders.Status) ([]orders.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		args = append(args, pq.Array(statusStrings(statuses)))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status orders.Status) (*orders.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+orderColumns, id, string(status), s.nowFunc().UTC())
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return o, nil
}

func (s *OrderStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(sc scanner) (*orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	if err := sc.Scan(&o.ID, &o.CustomerName, &o.CustomerPhone, pq.Array(&o.Products), &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = orders.Status(status)
	return &o, nil
}

func statusStrings[S ~string](statuses []S) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
