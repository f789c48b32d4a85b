package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/QiangXu1564/order-reserve-aid/internal/approvals"
)

// Date and time columns are rendered back to the text the customer sent.
const approvalColumns = `id, customer_name, customer_phone,
	to_char(reservation_date, 'YYYY-MM-DD'), to_char(reservation_time, 'HH24:MI:SS'),
	number_of_people, conversation_id, status, worker_notes, responded_at, created_at`

type ApprovalStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

var _ approvals.Repository = (*ApprovalStore)(nil)

func NewApprovalStore(db *sql.DB) *ApprovalStore {
	return &ApprovalStore{db: db, nowFunc: time.Now}
}

func (s *ApprovalStore) Create(ctx context.Context, a approvals.Approval) (*approvals.Approval, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.nowFunc().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reservation_approvals (id, customer_name, customer_phone, reservation_date,
			reservation_time, number_of_people, conversation_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.CustomerName, a.CustomerPhone, a.ReservationDate, a.ReservationTime,
		a.NumberOfPeople, nullString(a.ConversationID), string(a.Status), a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert approval: %w", err)
	}
	return &a, nil
}

func (s *ApprovalStore) Get(ctx context.Context, id string) (*approvals.Approval, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM reservation_approvals WHERE id = $1`, id)
	a, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get approval: %w", err)
	}
	return a, nil
}

func (s *ApprovalStore) List(ctx context.Context, statuses ...approvals.Status) ([]approvals.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM reservation_approvals`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		args = append(args, pq.Array(statusStrings(statuses)))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var out []approvals.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *ApprovalStore) Respond(ctx context.Context, id string, status approvals.Status, notes *string, at time.Time) (*approvals.Approval, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE reservation_approvals SET status = $2, worker_notes = $3, responded_at = $4
		WHERE id = $1
		RETURNING `+approvalColumns, id, string(status), nullString(notes), at.UTC())
	a, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, approvals.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("respond approval: %w", err)
	}
	return a, nil
}

func scanApproval(sc scanner) (*approvals.Approval, error) {
	var (
		a           approvals.Approval
		status      string
		convID      sql.NullString
		notes       sql.NullString
		respondedAt sql.NullTime
	)
	err := sc.Scan(&a.ID, &a.CustomerName, &a.CustomerPhone, &a.ReservationDate, &a.ReservationTime,
		&a.NumberOfPeople, &convID, &status, &notes, &respondedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = approvals.Status(status)
	if convID.Valid {
		a.ConversationID = &convID.String
	}
	if notes.Valid {
		a.WorkerNotes = &notes.String
	}
	if respondedAt.Valid {
		t := respondedAt.Time
		a.RespondedAt = &t
	}
	return &a, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
