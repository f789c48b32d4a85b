// Package changefeed carries row-level change events from the stores to
// dashboard subscribers and the change queue.
package changefeed

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the kind of row change.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case Insert, Update, Delete:
		return true
	}
	return false
}

// Table names shared by every backend.
const (
	TableOrders       = "orders"
	TableReservations = "reservations"
	TableApprovals    = "reservation_approvals"
)

// Event mirrors the postgres_changes payload the dashboard already understands.
type Event struct {
	Schema          string          `json:"schema"`
	Table           string          `json:"table"`
	Type            EventType       `json:"eventType"`
	New             json.RawMessage `json:"new,omitempty"`
	Old             json.RawMessage `json:"old,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// NewEvent builds an event for table, marshaling newRow and oldRow when non-nil.
func NewEvent(table string, typ EventType, newRow, oldRow any, at time.Time) (Event, error) {
	ev := Event{
		Schema:          "public",
		Table:           table,
		Type:            typ,
		CommitTimestamp: at.UTC(),
	}
	if newRow != nil {
		b, err := json.Marshal(newRow)
		if err != nil {
			return Event{}, fmt.Errorf("marshal new row: %w", err)
		}
		ev.New = b
	}
	if oldRow != nil {
		b, err := json.Marshal(oldRow)
		if err != nil {
			return Event{}, fmt.Errorf("marshal old row: %w", err)
		}
		ev.Old = b
	}
	return ev, nil
}

// Decode parses a JSON-encoded event and checks the required fields.
func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("decode change event: %w", err)
	}
	if ev.Table == "" {
		return Event{}, fmt.Errorf("decode change event: missing table")
	}
	if !ev.Type.Valid() {
		return Event{}, fmt.Errorf("decode change event: unknown event type %q", ev.Type)
	}
	ev.New, ev.Old = nonNull(ev.New), nonNull(ev.Old)
	return ev, nil
}

func nonNull(m json.RawMessage) json.RawMessage {
	if string(m) == "null" {
		return nil
	}
	return m
}
