package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Statuses lists every accepted status.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusRejected, StatusCompleted}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ErrNotFound is returned by writes addressing a missing reservation.
var ErrNotFound = errors.New("reservation not found")

// Reservation is a row of the reservations table.
type Reservation struct {
	ID              string    `json:"id" dynamodbav:"id"`
	CustomerName    string    `json:"customer_name" dynamodbav:"customer_name"`
	CustomerPhone   string    `json:"customer_phone" dynamodbav:"customer_phone"`
	NumberOfPeople  int       `json:"number_of_people" dynamodbav:"number_of_people"`
	ReservationTime time.Time `json:"reservation_time" dynamodbav:"reservation_time,unixtime"`
	Status          Status    `json:"status" dynamodbav:"status"`
	CreatedAt       time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// New returns a reservation with a fresh id in the given status.
func New(customerName, customerPhone string, people int, at time.Time, status Status, now time.Time) Reservation {
	return Reservation{
		ID:              uuid.NewString(),
		CustomerName:    customerName,
		CustomerPhone:   customerPhone,
		NumberOfPeople:  people,
		ReservationTime: at.UTC().Truncate(time.Second),
		Status:          status,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
}

// Repository is implemented by every reservations backend.
type Repository interface {
	Create(ctx context.Context, r Reservation) (*Reservation, error)
	// Get returns (nil, nil) when the reservation does not exist.
	Get(ctx context.Context, id string) (*Reservation, error)
	// List returns reservations soonest first, restricted to statuses when given.
	List(ctx context.Context, statuses ...Status) ([]Reservation, error)
	// ListBetween returns reservations whose time lies in [from, to].
	ListBetween(ctx context.Context, from, to time.Time, statuses ...Status) ([]Reservation, error)
	// UpdateStatus returns ErrNotFound when the reservation does not exist.
	UpdateStatus(ctx context.Context, id string, status Status) (*Reservation, error)
}
