package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/changefeed"
)

// Channel is the NOTIFY channel fed by the notify_row_change trigger.
const Channel = "row_changes"

// notificationSource is the subset of *pq.Listener the loop needs.
type notificationSource interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// Listener turns row_changes notifications into change events.
type Listener struct {
	dsn          string
	db           *sql.DB
	notifier     changefeed.Notifier
	logger       *zap.Logger
	pingInterval time.Duration
}

// NewListener reads id-only notifications back through db. A nil db forwards
// them with just the id.
func NewListener(dsn string, db *sql.DB, notifier changefeed.Notifier, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{dsn: dsn, db: db, notifier: notifier, logger: logger, pingInterval: 90 * time.Second}
}

// Run listens until ctx is cancelled. pq reconnects on its own; a nil
// notification marks a reconnect, after which missed events are not replayed.
func (l *Listener) Run(ctx context.Context) error {
	pl := pq.NewListener(l.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.logger.Warn("postgres listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := pl.Listen(Channel); err != nil {
		pl.Close()
		return fmt.Errorf("listen %s: %w", Channel, err)
	}
	l.logger.Info("listening for row changes", zap.String("channel", Channel))
	return l.loop(ctx, pl)
}

func (l *Listener) loop(ctx context.Context, src notificationSource) error {
	defer src.Close()
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-src.NotificationChannel():
			if n == nil {
				l.logger.Info("postgres listener reconnected")
				continue
			}
			l.handle(ctx, n.Extra)
		case <-ticker.C:
			if err := src.Ping(); err != nil {
				l.logger.Warn("postgres listener ping", zap.Error(err))
			}
		}
	}
}

func (l *Listener) handle(ctx context.Context, payload string) {
	ev, err := changefeed.Decode([]byte(payload))
	if err != nil {
		l.logger.Warn("skip malformed row change", zap.Error(err))
		return
	}
	if ev.New == nil && ev.Old == nil {
		var ref struct {
			ID string `json:"id"`
		}
		if json.Unmarshal([]byte(payload), &ref) == nil && ref.ID != "" {
			l.expand(ctx, &ev, ref.ID)
		}
	}
	if err := l.notifier.Notify(ctx, ev); err != nil {
		l.logger.Warn("deliver row change", zap.String("table", ev.Table), zap.Error(err))
	}
}

// changeTables limits row lookups to the tables the trigger is installed on.
var changeTables = map[string]bool{
	changefeed.TableOrders:       true,
	changefeed.TableReservations: true,
	changefeed.TableApprovals:    true,
}

// expand fills in a row the trigger announced by id only. The old image of
// an update or delete is gone by now, so Old carries just the id.
func (l *Listener) expand(ctx context.Context, ev *changefeed.Event, id string) {
	stub, _ := json.Marshal(map[string]string{"id": id})
	if ev.Type != changefeed.Insert {
		ev.Old = stub
	}
	if ev.Type == changefeed.Delete {
		return
	}
	ev.New = stub
	if l.db == nil || !changeTables[ev.Table] {
		return
	}

	row, err := l.loadRow(ctx, ev.Table, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		l.logger.Debug("changed row already gone", zap.String("table", ev.Table), zap.String("id", id))
	case err != nil:
		l.logger.Warn("load changed row", zap.String("table", ev.Table), zap.String("id", id), zap.Error(err))
	default:
		ev.New = row
	}
}

func (l *Listener) loadRow(ctx context.Context, table, id string) (json.RawMessage, error) {
	var row string
	err := l.db.QueryRowContext(ctx,
		`SELECT row_to_json(t)::text FROM `+table+` t WHERE t.id = $1`, id).Scan(&row)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(row), nil
}
