package repository

import (
	"context"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// NotificationRuleRepository reads and maintains the rule table.
type NotificationRuleRepository interface {
	List(ctx context.Context) ([]domain.NotificationRule, error)
	Upsert(ctx context.Context, rule *domain.NotificationRule) error
}

type notificationRuleRepository struct {
	db DBTX
}

// NewNotificationRuleRepository builds repository.
func NewNotificationRuleRepository(db DBTX) NotificationRuleRepository {
	return &notificationRuleRepository{db: db}
}

func (r *notificationRuleRepository) List(ctx context.Context) ([]domain.NotificationRule, error) {
	const query = `
        SELECT id, event, recipient_types, is_active, created_at, updated_at
        FROM notification_rules ORDER BY event`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.NotificationRule
	for rows.Next() {
		var (
			rule       domain.NotificationRule
			recipients []string
		)
		if err := rows.Scan(&rule.ID, &rule.Event, &recipients, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		for _, rt := range recipients {
			rule.RecipientTypes = append(rule.RecipientTypes, domain.RecipientType(rt))
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

func (r *notificationRuleRepository) Upsert(ctx context.Context, rule *domain.NotificationRule) error {
	const query = `
        INSERT INTO notification_rules (event, recipient_types, is_active)
        VALUES ($1, $2, $3)
        ON CONFLICT (event) DO UPDATE
            SET recipient_types = EXCLUDED.recipient_types, is_active = EXCLUDED.is_active, updated_at = NOW()
        RETURNING id, created_at, updated_at`
	recipients := make([]string, len(rule.RecipientTypes))
	for i, rt := range rule.RecipientTypes {
		recipients[i] = string(rt)
	}
	return r.db.QueryRow(ctx, query, rule.Event, recipients, rule.IsActive).
		Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}
