package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itsm-platform/ticketing-service/internal/events"
	"github.com/itsm-platform/ticketing-service/internal/observability"
	"github.com/itsm-platform/ticketing-service/internal/repository"
)

// OutboxRelay moves committed outbox rows onto the event queue.
type OutboxRelay struct {
	uow       repository.UnitOfWork
	publisher events.Publisher
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// OutboxRelayConfig tunes polling.
type OutboxRelayConfig struct {
	Interval  time.Duration
	BatchSize int
}

// NewOutboxRelay builds a relay.
func NewOutboxRelay(uow repository.UnitOfWork, publisher events.Publisher, cfg OutboxRelayConfig, logger *zap.Logger, metrics *observability.Metrics) *OutboxRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &OutboxRelay{
		uow:       uow,
		publisher: publisher,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run flushes on every tick until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.logger.Info("outbox relay started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Flush(context.WithoutCancel(ctx)); err != nil {
				r.logger.Error("outbox flush failed", zap.Error(err))
			}
		}
	}
}

// Flush publishes one batch of pending rows and returns how many were
// dispatched. Rows that fail to publish stay pending with the error recorded.
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	var published, failed int
	err := r.uow.Within(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		pending, err := repos.Outbox.LockPending(ctx, r.batchSize)
		if err != nil {
			return err
		}
		for _, row := range pending {
			id := row.ID
			if id == "" {
				id = uuid.NewString()
			}
			msg := events.Message{ID: id, Body: row.Payload}
			if evt, err := events.Decode(row.Payload); err == nil {
				msg.Key = evt.TicketID
			}
			if err := r.publisher.Publish(ctx, msg); err != nil {
				failed++
				r.logger.Warn("outbox publish failed",
					zap.String("outbox_id", row.ID),
					zap.String("event", string(row.EventType)),
					zap.Int("attempts", row.Attempts+1),
					zap.Error(err))
				if err := repos.Outbox.MarkFailed(ctx, row.ID, err.Error()); err != nil {
					return err
				}
				continue
			}
			if err := repos.Outbox.MarkDispatched(ctx, row.ID); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	r.metrics.RecordOutbox("published", published)
	r.metrics.RecordOutbox("failed", failed)
	if err != nil {
		return 0, err
	}
	return published, nil
}
