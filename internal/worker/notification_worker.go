package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/itsm-platform/ticketing-service/internal/events"
	"github.com/itsm-platform/ticketing-service/internal/observability"
)

// EventHandler processes one decoded ticket event.
type EventHandler interface {
	Create(ctx context.Context, event events.TicketEvent) error
}

// NotificationWorkerConfig tunes consumer retries.
type NotificationWorkerConfig struct {
	MaxRetries   int
	RetryInitial time.Duration
}

// NotificationWorker consumes ticket events one at a time and hands them to the
// notification fan-out.
type NotificationWorker struct {
	queue   events.Queue
	handler EventHandler
	cfg     NotificationWorkerConfig
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewNotificationWorker wires a consumer.
func NewNotificationWorker(queue events.Queue, handler EventHandler, cfg NotificationWorkerConfig, logger *zap.Logger, metrics *observability.Metrics) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 500 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &NotificationWorker{queue: queue, handler: handler, cfg: cfg, logger: logger, metrics: metrics}
}

// Run consumes until ctx is cancelled or the queue is closed. A message already
// received is finished before Run returns.
func (w *NotificationWorker) Run(ctx context.Context) error {
	w.logger.Info("notification consumer started")
	defer w.logger.Info("notification consumer stopped")

	for {
		delivery, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, events.ErrQueueClosed) {
				return nil
			}
			w.logger.Warn("queue receive failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		w.handle(context.WithoutCancel(ctx), delivery)
	}
}

func (w *NotificationWorker) handle(ctx context.Context, d events.Delivery) {
	logger := w.logger.With(zap.String("message_id", d.ID))

	event, err := events.Decode(d.Body)
	if err != nil {
		w.deadLetter(ctx, logger, d, err)
		return
	}
	logger = logger.With(zap.String("event", string(event.Event)), zap.String("ticket_id", event.TicketID))

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, w.handler.Create(ctx, event)
	},
		backoff.WithBackOff(w.backOff()),
		backoff.WithMaxTries(uint(w.cfg.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			w.metrics.RecordQueue("retried")
			logger.Warn("notification handler failed; retrying", zap.Duration("backoff", next), zap.Error(err))
		}),
	)
	if err != nil {
		w.deadLetter(ctx, logger, d, err)
		return
	}

	if err := w.queue.Ack(ctx, d); err != nil {
		logger.Error("ack failed", zap.Error(err))
		return
	}
	w.metrics.RecordQueue("processed")
}

func (w *NotificationWorker) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.RetryInitial
	b.MaxInterval = 30 * w.cfg.RetryInitial
	b.Reset()
	return b
}

// deadLetter parks the message with the error text and acknowledges it.
func (w *NotificationWorker) deadLetter(ctx context.Context, logger *zap.Logger, d events.Delivery, cause error) {
	logger.Error("message dead-lettered", zap.Error(cause))
	if err := w.queue.DeadLetter(ctx, d, cause.Error()); err != nil {
		logger.Error("dead-letter failed", zap.Error(err))
		return
	}
	w.metrics.RecordQueue("dead_lettered")
}
