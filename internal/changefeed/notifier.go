package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/aws"
)

// Notifier receives change events after a write has been committed.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// QueueNotifier publishes events to the change queue.
type QueueNotifier struct {
	publisher *aws.Publisher
}

// NewQueueNotifier returns a notifier that sends every event through publisher.
func NewQueueNotifier(publisher *aws.Publisher) *QueueNotifier {
	return &QueueNotifier{publisher: publisher}
}

func (q *QueueNotifier) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	return q.publisher.Publish(ctx, aws.Message{
		Body:    string(body),
		GroupID: ev.Table,
		Attributes: map[string]string{
			"table":      ev.Table,
			"event_type": string(ev.Type),
		},
	})
}

// Emitter is embedded by stores that produce their own change events.
// A zero Emitter is a no-op.
type Emitter struct {
	notifier Notifier
	logger   *zap.Logger
	nowFunc  func() time.Time
}

// NewEmitter returns an Emitter that forwards to n. Delivery failures are
// logged, never returned: the row is already written.
func NewEmitter(n Notifier, logger *zap.Logger) Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Emitter{notifier: n, logger: logger, nowFunc: time.Now}
}

// Emit builds and delivers an event for table.
func (e Emitter) Emit(ctx context.Context, table string, typ EventType, newRow, oldRow any) {
	if e.notifier == nil {
		return
	}
	now := time.Now
	if e.nowFunc != nil {
		now = e.nowFunc
	}
	ev, err := NewEvent(table, typ, newRow, oldRow, now())
	if err != nil {
		e.logger.Warn("build change event", zap.String("table", table), zap.Error(err))
		return
	}
	if err := e.notifier.Notify(ctx, ev); err != nil {
		e.logger.Warn("deliver change event",
			zap.String("table", table),
			zap.String("event_type", string(typ)),
			zap.Error(err))
	}
}
