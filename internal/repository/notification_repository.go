package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// NotificationRepository persists in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetForUser(ctx context.Context, id, userID string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, status *domain.NotificationStatus) ([]domain.Notification, error)
	MarkRead(ctx context.Context, n *domain.Notification, at time.Time) error
}

type notificationRepository struct {
	db DBTX
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `id, user_id, manager_id, executive_id, message, status, ticket_id, read_at, created_at`

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (user_id, manager_id, executive_id, message, status, ticket_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		n.UserID,
		n.ManagerID,
		n.ExecutiveID,
		n.Message,
		n.Status,
		n.TicketID,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) GetForUser(ctx context.Context, id, userID string) (*domain.Notification, error) {
	row := r.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=$1 AND user_id=$2`, id, userID)
	return scanNotification(row)
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, status *domain.NotificationStatus) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id=$1`
	args := []any{userID}
	if status != nil {
		args = append(args, *status)
		query += ` AND status=$2`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

// MarkRead flips an unread notification to read. Already-read rows are left
// untouched and n is refreshed from storage.
func (r *notificationRepository) MarkRead(ctx context.Context, n *domain.Notification, at time.Time) error {
	const query = `
        UPDATE notifications SET status=$1, read_at=COALESCE(read_at, $2)
        WHERE id=$3 AND user_id=$4
        RETURNING status, read_at`
	return r.db.QueryRow(ctx, query, domain.NotificationRead, at, n.ID, n.UserID).Scan(&n.Status, &n.ReadAt)
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.ManagerID,
		&n.ExecutiveID,
		&n.Message,
		&n.Status,
		&n.TicketID,
		&n.ReadAt,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &n, nil
}
