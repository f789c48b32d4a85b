// Package approvals stores reservation requests that wait for a staff decision.
package approvals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ErrNotFound is returned by Respond for an unknown approval.
var ErrNotFound = errors.New("approval not found")

// Approval is a row of the reservation_approvals table. Date and time are
// kept as the customer sent them and only resolved to an instant on approval.
type Approval struct {
	ID              string     `json:"id" dynamodbav:"id"`
	CustomerName    string     `json:"customer_name" dynamodbav:"customer_name"`
	CustomerPhone   string     `json:"customer_phone" dynamodbav:"customer_phone"`
	ReservationDate string     `json:"reservation_date" dynamodbav:"reservation_date"`
	ReservationTime string     `json:"reservation_time" dynamodbav:"reservation_time"`
	NumberOfPeople  int        `json:"number_of_people" dynamodbav:"number_of_people"`
	ConversationID  *string    `json:"conversation_id" dynamodbav:"conversation_id"`
	Status          Status     `json:"status" dynamodbav:"status"`
	WorkerNotes     *string    `json:"worker_notes" dynamodbav:"worker_notes"`
	RespondedAt     *time.Time `json:"responded_at" dynamodbav:"responded_at"`
	CreatedAt       time.Time  `json:"created_at" dynamodbav:"created_at"`
}

// New returns a pending approval with a fresh id.
func New(name, phone, date, clock string, people int, conversationID *string, now time.Time) Approval {
	return Approval{
		ID:              uuid.NewString(),
		CustomerName:    name,
		CustomerPhone:   phone,
		ReservationDate: date,
		ReservationTime: clock,
		NumberOfPeople:  people,
		ConversationID:  conversationID,
		Status:          StatusPending,
		CreatedAt:       now.UTC(),
	}
}

// ScheduledAt resolves the requested date and time in loc.
func (a Approval) ScheduledAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04:05", a.ReservationDate+" "+a.ReservationTime, loc)
}

type Repository interface {
	Create(ctx context.Context, a Approval) (*Approval, error)
	// Get returns (nil, nil) when the approval does not exist.
	Get(ctx context.Context, id string) (*Approval, error)
	// List returns approvals newest first.
	List(ctx context.Context, statuses ...Status) ([]Approval, error)
	// Respond records the staff decision.
	Respond(ctx context.Context, id string, status Status, notes *string, at time.Time) (*Approval, error)
}
