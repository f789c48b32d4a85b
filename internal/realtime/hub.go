// Package realtime fans change events out to websocket subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/changefeed"
	"github.com/QiangXu1564/order-reserve-aid/internal/metrics"
)

// Subscription receives encoded events for one table. C is closed on Unsubscribe.
type Subscription struct {
	C      chan []byte
	table  string
	events map[changefeed.EventType]bool
}

func (s *Subscription) wants(ev changefeed.Event) bool {
	if s.table != ev.Table {
		return false
	}
	return len(s.events) == 0 || s.events[ev.Type]
}

// Hub implements changefeed.Notifier. Sends never block: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	logger *zap.Logger
}

var _ changefeed.Notifier = (*Hub)(nil)

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: map[*Subscription]struct{}{}, buffer: 64, logger: logger}
}

// Subscribe registers interest in table, optionally narrowed to event types.
func (h *Hub) Subscribe(table string, events ...changefeed.EventType) *Subscription {
	s := &Subscription{C: make(chan []byte, h.buffer), table: table}
	if len(events) > 0 {
		s.events = make(map[changefeed.EventType]bool, len(events))
		for _, e := range events {
			s.events[e] = true
		}
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	metrics.Subscribers.Inc()
	return s
}

// Unsubscribe removes s and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.C)
	metrics.Subscribers.Dec()
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Notify(ctx context.Context, ev changefeed.Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if !s.wants(ev) {
			continue
		}
		select {
		case s.C <- msg:
			metrics.RecordChangeEvent(ev.Table, string(ev.Type), "delivered")
		default:
			metrics.RecordChangeEvent(ev.Table, string(ev.Type), "dropped")
			h.logger.Warn("subscriber buffer full, dropping event",
				zap.String("table", ev.Table),
				zap.String("event_type", string(ev.Type)))
		}
	}
	return nil
}

// Close drops every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.C)
		metrics.Subscribers.Dec()
	}
}
