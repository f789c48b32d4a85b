package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/QiangXu1564/order-reserve-aid/internal/reservations"
)

const reservationColumns = `id, customer_name, customer_phone, number_of_people, reservation_time, status, created_at, updated_at`

type ReservationStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

var _ reservations.Repository = (*ReservationStore)(nil)

func NewReservationStore(db *sql.DB) *ReservationStore {
	return &ReservationStore{db: db, nowFunc: time.Now}
}

func (s *ReservationStore) Create(ctx context.Context, r reservations.Reservation) (*reservations.Reservation, error) {
	now := s.nowFunc().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.CustomerName, r.CustomerPhone, r.NumberOfPeople, r.ReservationTime.UTC(), string(r.Status), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	return &r, nil
}

func (s *ReservationStore) Get(ctx context.Context, id string) (*reservations.Reservation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}

func (s *ReservationStore) List(ctx context.Context, statuses ...reservations.Status) ([]reservations.Reservation, error) {
	return s.query(ctx, nil, statuses)
}

func (s *ReservationStore) ListBetween(ctx context.Context, from, to time.Time, statuses ...reservations.Status) ([]reservations.Reservation, error) {
	return s.query(ctx, []any{from.UTC(), to.UTC()}, statuses)
}

// query lists reservations soonest first. bounds is empty or [from, to].
func (s *ReservationStore) query(ctx context.Context, bounds []any, statuses []reservations.Status) ([]reservations.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE TRUE`
	args := append([]any(nil), bounds...)
	if len(bounds) == 2 {
		query += ` AND reservation_time BETWEEN $1 AND $2`
	}
	if len(statuses) > 0 {
		args = append(args, pq.Array(statusStrings(statuses)))
		query += ` AND status = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	query += ` ORDER BY reservation_time ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []reservations.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *ReservationStore) UpdateStatus(ctx context.Context, id string, status reservations.Status) (*reservations.Reservation, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE reservations SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+reservationColumns, id, string(status), s.nowFunc().UTC())
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reservations.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update reservation: %w", err)
	}
	return r, nil
}

func scanReservation(sc scanner) (*reservations.Reservation, error) {
	var (
		r      reservations.Reservation
		status string
	)
	if err := sc.Scan(&r.ID, &r.CustomerName, &r.CustomerPhone, &r.NumberOfPeople, &r.ReservationTime, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = reservations.Status(status)
	return &r, nil
}
