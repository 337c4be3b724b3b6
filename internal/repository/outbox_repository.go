package repository

import (
	"context"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// OutboxRepository stores lifecycle events awaiting publication.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event *domain.OutboxEvent) error
	// LockPending must run inside a transaction; locked rows are skipped by
	// concurrent relays until it ends.
	LockPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

type outboxRepository struct {
	db DBTX
}

// NewOutboxRepository builds repository.
func NewOutboxRepository(db DBTX) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Enqueue(ctx context.Context, event *domain.OutboxEvent) error {
	const query = `
        INSERT INTO outbox_events (event_type, payload)
        VALUES ($1, $2)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query, event.EventType, event.Payload).Scan(&event.ID, &event.CreatedAt)
}

func (r *outboxRepository) LockPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	const query = `
        SELECT id, event_type, payload, attempts, last_error, created_at
        FROM outbox_events
        WHERE dispatched_at IS NULL
        ORDER BY created_at
        LIMIT $1
        FOR UPDATE SKIP LOCKED`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *outboxRepository) MarkDispatched(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE outbox_events SET dispatched_at=NOW(), attempts=attempts+1, last_error=NULL WHERE id=$1`, id)
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := r.db.Exec(ctx, `UPDATE outbox_events SET attempts=attempts+1, last_error=$2 WHERE id=$1`, id, reason)
	return err
}
