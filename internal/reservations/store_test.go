package reservations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/QiangXu1564/order-reserve-aid/internal/aws/dynamotest"
	"github.com/QiangXu1564/order-reserve-aid/internal/changefeed"
)

func newTestStore(fake *dynamotest.Fake) *Store {
	s := NewStore(fake, "reservations")
	s.nowFunc = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestCreateAndGet(t *testing.T) {
	fake := dynamotest.New()
	s := newTestStore(fake)
	ctx := context.Background()

	at := time.Date(2026, 5, 2, 20, 30, 0, 0, time.UTC)
	r := New("Luis", "600111222", 4, at, StatusPending, time.Time{})
	if _, err := s.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected reservation, got nil")
	}
	if !got.ReservationTime.Equal(at) || got.NumberOfPeople != 4 {
		t.Fatalf("unexpected reservation: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("created_at not set")
	}

	missing, err := s.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for missing reservation, got %v, %v", missing, err)
	}
}

func seed(t *testing.T, s *Store, people int, at time.Time, st Status) Reservation {
	t.Helper()
	r := New("c", "1", people, at, st, time.Time{})
	if _, err := s.Create(context.Background(), r); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return r
}

func TestList_SoonestFirst(t *testing.T) {
	fake := dynamotest.New()
	fake.PageSize = 2
	s := newTestStore(fake)
	base := time.Date(2026, 5, 2, 13, 0, 0, 0, time.UTC)

	late := seed(t, s, 2, base.Add(3*time.Hour), StatusPending)
	early := seed(t, s, 2, base, StatusConfirmed)
	seed(t, s, 2, base.Add(time.Hour), StatusRejected)

	all, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != early.ID || all[2].ID != late.ID {
		t.Fatalf("unexpected order: %+v", all)
	}

	open, err := s.List(context.Background(), StatusPending, StatusConfirmed)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected 2 open reservations, got %d", len(open))
	}
}

func TestListBetween(t *testing.T) {
	fake := dynamotest.New()
	s := newTestStore(fake)
	at := time.Date(2026, 5, 2, 20, 0, 0, 0, time.UTC)

	in1 := seed(t, s, 3, at.Add(-30*time.Minute), StatusPending)
	in2 := seed(t, s, 5, at.Add(30*time.Minute), StatusConfirmed)
	seed(t, s, 7, at.Add(31*time.Minute), StatusConfirmed)
	seed(t, s, 9, at, StatusRejected)

	got, err := s.ListBetween(context.Background(), at.Add(-30*time.Minute), at.Add(30*time.Minute), StatusPending, StatusConfirmed)
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(got) != 2 || got[0].ID != in1.ID || got[1].ID != in2.ID {
		t.Fatalf("unexpected slot rows: %+v", got)
	}
}

func TestUpdateStatus(t *testing.T) {
	fake := dynamotest.New()
	var events []changefeed.Event
	s := newTestStore(fake).WithFeed(changefeed.NewEmitter(changefeed.NotifierFunc(func(_ context.Context, ev changefeed.Event) error {
		events = append(events, ev)
		return nil
	}), nil))
	r := seed(t, s, 2, time.Date(2026, 5, 2, 20, 0, 0, 0, time.UTC), StatusPending)

	got, err := s.UpdateStatus(context.Background(), r.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != StatusCompleted || got.NumberOfPeople != 2 {
		t.Fatalf("unexpected reservation after update: %+v", got)
	}

	if _, err := s.UpdateStatus(context.Background(), "missing", StatusCompleted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if len(events) != 2 || events[0].Type != changefeed.Insert || events[1].Type != changefeed.Update {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[1].Table != changefeed.TableReservations {
		t.Fatalf("unexpected table %q", events[1].Table)
	}
}
