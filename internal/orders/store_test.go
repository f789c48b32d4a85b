package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/QiangXu1564/order-reserve-aid/internal/aws/dynamotest"
	"github.com/QiangXu1564/order-reserve-aid/internal/changefeed"
)

func newTestStore(fake *dynamotest.Fake, start time.Time) *Store {
	s := NewStore(fake, "orders")
	now := start
	s.nowFunc = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return s
}

func TestCreateAndGet(t *testing.T) {
	fake := dynamotest.New()
	s := newTestStore(fake, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	o := New("Ana", "+34 600 000 000", []string{"paella", "sangria"}, time.Time{})
	created, err := s.Create(ctx, o)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", created)
	}

	got, err := s.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected order, got nil")
	}
	if got.CustomerName != "Ana" || got.Status != StatusPending || len(got.Products) != 2 {
		t.Fatalf("unexpected order: %+v", got)
	}

	missing, err := s.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing order")
	}
}

func TestCreate_DuplicateID(t *testing.T) {
	fake := dynamotest.New()
	s := newTestStore(fake, time.Now())
	o := New("Ana", "123", []string{"x"}, time.Now())

	if _, err := s.Create(context.Background(), o); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.Create(context.Background(), o); err == nil {
		t.Fatalf("expected conditional failure on duplicate id")
	}
}

func TestList_FilterAndOrder(t *testing.T) {
	fake := dynamotest.New()
	fake.PageSize = 1 // force pagination
	s := newTestStore(fake, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var ids []string
	for i, st := range []Status{StatusPending, StatusDelivered, StatusPreparing} {
		o := New("c", "1", []string{"p"}, time.Date(2026, 3, 1, 12, i, 0, 0, time.UTC))
		o.Status = st
		if _, err := s.Create(ctx, o); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, o.ID)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(all))
	}
	if all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Fatalf("expected newest first, got %s,%s,%s", all[0].ID, all[1].ID, all[2].ID)
	}
	if fake.ScanCalls < 3 {
		t.Fatalf("expected paginated scan, got %d calls", fake.ScanCalls)
	}

	active, err := s.List(ctx, StatusPending, StatusPreparing, StatusReady)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active orders, got %d", len(active))
	}
	for _, o := range active {
		if o.Status == StatusDelivered {
			t.Fatalf("delivered order leaked through filter")
		}
	}
}

func TestUpdateStatus(t *testing.T) {
	fake := dynamotest.New()
	s := newTestStore(fake, time.Now())
	ctx := context.Background()
	o := New("c", "1", []string{"p"}, time.Now())
	if _, err := s.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	// any transition is allowed
	updated, err := s.UpdateStatus(ctx, o.ID, StatusReady)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != StatusReady {
		t.Fatalf("expected ready, got %s", updated.Status)
	}
	if updated.CustomerName != "c" {
		t.Fatalf("expected full row back, got %+v", updated)
	}
	back, err := s.UpdateStatus(ctx, o.ID, StatusPending)
	if err != nil || back.Status != StatusPending {
		t.Fatalf("expected ready -> pending to be allowed, got %v %v", back, err)
	}

	_, err = s.UpdateStatus(ctx, "missing", StatusReady)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if fake.Item("orders", "missing") != nil {
		t.Fatalf("update must not create rows")
	}
}

func TestDelete(t *testing.T) {
	fake := dynamotest.New()
	s := newTestStore(fake, time.Now())
	ctx := context.Background()
	o := New("c", "1", []string{"p"}, time.Now())
	if _, err := s.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(ctx, o.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := s.Get(ctx, o.ID); got != nil {
		t.Fatalf("expected order to be gone")
	}
	if err := s.Delete(ctx, o.ID); err != nil {
		t.Fatalf("deleting twice should succeed, got %v", err)
	}
}

func TestStore_EmitsChangeEvents(t *testing.T) {
	fake := dynamotest.New()
	var events []changefeed.Event
	s := newTestStore(fake, time.Now()).WithFeed(changefeed.NewEmitter(
		changefeed.NotifierFunc(func(ctx context.Context, ev changefeed.Event) error {
			events = append(events, ev)
			return nil
		}), nil))
	ctx := context.Background()

	o := New("c", "1", []string{"p"}, time.Now())
	if _, err := s.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.UpdateStatus(ctx, o.ID, StatusPreparing); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Delete(ctx, o.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []changefeed.EventType{changefeed.Insert, changefeed.Update, changefeed.Delete}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, ev := range events {
		if ev.Type != want[i] || ev.Table != changefeed.TableOrders {
			t.Fatalf("event %d: got %s on %s", i, ev.Type, ev.Table)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusConfirmed.Valid() {
		t.Fatal("confirmed should be valid")
	}
	if Status("shipped").Valid() {
		t.Fatal("shipped should be invalid")
	}
}
