package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an order. Transitions are driven by staff;
// any status may follow any other.
type Status string

// Order statuses
const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every accepted status.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ErrNotFound is returned by writes addressing a missing order.
var ErrNotFound = errors.New("order not found")

// Order represents a row of the orders table.
type Order struct {
	ID            string    `json:"id" dynamodbav:"id"` // PK
	CustomerName  string    `json:"customer_name" dynamodbav:"customer_name"`
	CustomerPhone string    `json:"customer_phone" dynamodbav:"customer_phone"`
	Products      []string  `json:"products" dynamodbav:"products"`
	Status        Status    `json:"status" dynamodbav:"status"`
	CreatedAt     time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// New returns a pending order with a fresh id.
func New(customerName, customerPhone string, products []string, now time.Time) Order {
	return Order{
		ID:            uuid.NewString(),
		CustomerName:  customerName,
		CustomerPhone: customerPhone,
		Products:      products,
		Status:        StatusPending,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
}

// Repository is implemented by every orders backend.
type Repository interface {
	Create(ctx context.Context, o Order) (*Order, error)
	// Get returns (nil, nil) when the order does not exist.
	Get(ctx context.Context, id string) (*Order, error)
	// List returns orders newest first, restricted to statuses when given.
	List(ctx context.Context, statuses ...Status) ([]Order, error)
	// UpdateStatus returns ErrNotFound when the order does not exist.
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)
	Delete(ctx context.Context, id string) error
}
