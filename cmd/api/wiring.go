package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/approvals"
	"github.com/QiangXu1564/order-reserve-aid/internal/aws"
	"github.com/QiangXu1564/order-reserve-aid/internal/changefeed"
	"github.com/QiangXu1564/order-reserve-aid/internal/config"
	"github.com/QiangXu1564/order-reserve-aid/internal/idempotency"
	"github.com/QiangXu1564/order-reserve-aid/internal/orders"
	"github.com/QiangXu1564/order-reserve-aid/internal/postgres"
	"github.com/QiangXu1564/order-reserve-aid/internal/realtime"
	"github.com/QiangXu1564/order-reserve-aid/internal/reservations"
)

// backend is the set of stores behind the handlers.
type backend struct {
	orders       orders.Repository
	reservations reservations.Repository
	approvals    approvals.Repository
	idempotency  idempotency.Recorder

	// listener feeds the hub from postgres; nil for dynamodb.
	listener *postgres.Listener
	db       *sql.DB
}

func (b *backend) Close() {
	if b.db != nil {
		b.db.Close()
	}
}

// changeNotifier fans change events out to the hub (local server only) and
// the change queue (when CHANGE_QUEUE_URL is set).
func changeNotifier(cfg *config.Config, clients *aws.Clients, hub *realtime.Hub) changefeed.Notifier {
	var m changefeed.Multi
	if hub != nil {
		m = append(m, hub)
	}
	if cfg.ChangeQueueURL != "" && clients != nil {
		m = append(m, changefeed.NewQueueNotifier(aws.NewPublisher(clients.SQS, cfg.ChangeQueueURL)))
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func newBackend(ctx context.Context, cfg *config.Config, hub *realtime.Hub, logger *zap.Logger) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return newPostgresBackend(ctx, cfg, hub, logger)
	default:
		return newDynamoBackend(ctx, cfg, hub, logger)
	}
}

func newDynamoBackend(ctx context.Context, cfg *config.Config, hub *realtime.Hub, logger *zap.Logger) (*backend, error) {
	clients, err := aws.NewClients(ctx, cfg.AWS())
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}

	var feed changefeed.Emitter
	if n := changeNotifier(cfg, clients, hub); n != nil {
		feed = changefeed.NewEmitter(n, logger.Named("changefeed"))
	}

	return &backend{
		orders:       orders.NewStore(clients.DynamoDB, cfg.OrdersTable).WithFeed(feed),
		reservations: reservations.NewStore(clients.DynamoDB, cfg.ReservationsTable).WithFeed(feed),
		approvals:    approvals.NewStore(clients.DynamoDB, cfg.ApprovalsTable).WithFeed(feed),
		idempotency:  idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
	}, nil
}

// newPostgresBackend applies migrations and relies on the row_changes
// trigger for change events.
func newPostgresBackend(ctx context.Context, cfg *config.Config, hub *realtime.Hub, logger *zap.Logger) (*backend, error) {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Apply(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	var clients *aws.Clients
	if cfg.ChangeQueueURL != "" {
		if clients, err = aws.NewClients(ctx, cfg.AWS()); err != nil {
			db.Close()
			return nil, fmt.Errorf("init aws clients: %w", err)
		}
	}

	b := &backend{
		orders:       postgres.NewOrderStore(db),
		reservations: postgres.NewReservationStore(db),
		approvals:    postgres.NewApprovalStore(db),
		idempotency:  postgres.NewIdempotencyStore(db, cfg.IdempotencyTTL),
		db:           db,
	}
	if n := changeNotifier(cfg, clients, hub); n != nil {
		b.listener = postgres.NewListener(cfg.DatabaseURL, db, n, logger.Named("pglisten"))
	}
	return b, nil
}
