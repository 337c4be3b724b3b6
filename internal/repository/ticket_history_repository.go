package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// HistoryFilter narrows the grouped history report. The scope IDs restrict
// which tickets are included; the remaining fields filter history rows.
type HistoryFilter struct {
	TicketID     *string
	TicketNumber *string
	ManagerID    *string
	ExecutiveID  *string
	CreatedByID  *string
	AssignedTo   *string
	ChangeType   *domain.ChangeType
	From         *time.Time
	To           *time.Time
	Ascending    bool
	Page         Page
}

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
	ListGrouped(ctx context.Context, filter HistoryFilter) ([]domain.TicketHistoryGroup, int, error)
}

type ticketHistoryRepository struct {
	db DBTX
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(db DBTX) TicketHistoryRepository {
	return &ticketHistoryRepository{db: db}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_histories (ticket_id, change_type, field_name, old_value, new_value, changed_by_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		history.TicketID,
		history.ChangeType,
		history.FieldName,
		history.OldValue,
		history.NewValue,
		history.ChangedByID,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, change_type, field_name, old_value, new_value, changed_by_id, created_at
        FROM ticket_histories WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var h domain.TicketHistory
		if err := rows.Scan(&h.ID, &h.TicketID, &h.ChangeType, &h.FieldName, &h.OldValue, &h.NewValue, &h.ChangedByID, &h.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

type historyJSON struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticketId"`
	ChangeType  string    `json:"changeType"`
	FieldName   *string   `json:"fieldName"`
	OldValue    *string   `json:"oldValue"`
	NewValue    *string   `json:"newValue"`
	ChangedByID *string   `json:"changedById"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListGrouped aggregates matching history rows into one JSON array per ticket.
func (r *ticketHistoryRepository) ListGrouped(ctx context.Context, filter HistoryFilter) ([]domain.TicketHistoryGroup, int, error) {
	clauses := []string{"1=1"}
	args := []any{}
	add := func(format string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(format, len(args)))
	}

	if filter.TicketID != nil {
		add("t.id=$%d", *filter.TicketID)
	}
	if filter.TicketNumber != nil && strings.TrimSpace(*filter.TicketNumber) != "" {
		add("t.ticket_number ILIKE $%d", "%"+strings.TrimSpace(*filter.TicketNumber)+"%")
	}
	if filter.ManagerID != nil {
		add("t.assigned_to_manager_id=$%d", *filter.ManagerID)
	}
	if filter.ExecutiveID != nil {
		add("t.assigned_to_executive_id=$%d", *filter.ExecutiveID)
	}
	if filter.CreatedByID != nil {
		add("t.created_by_id=$%d", *filter.CreatedByID)
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("(t.assigned_to_manager_id=$%d OR t.assigned_to_executive_id=$%d)", len(args), len(args)))
	}
	if filter.ChangeType != nil {
		add("h.change_type=$%d", string(*filter.ChangeType))
	}
	if filter.From != nil {
		add("h.created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("h.created_at <= $%d", *filter.To)
	}

	order := "DESC"
	if filter.Ascending {
		order = "ASC"
	}
	page := filter.Page.normalized(20)

	query := fmt.Sprintf(`
        SELECT t.id, t.ticket_number, t.title,
               json_agg(json_build_object(
                   'id', h.id, 'ticketId', h.ticket_id, 'changeType', h.change_type,
                   'fieldName', h.field_name, 'oldValue', h.old_value, 'newValue', h.new_value,
                   'changedById', h.changed_by_id, 'createdAt', h.created_at
               ) ORDER BY h.created_at),
               COUNT(*) OVER()
        FROM ticket_histories h
        JOIN tickets t ON t.id = h.ticket_id
        WHERE %s
        GROUP BY t.id, t.ticket_number, t.title
        ORDER BY MAX(h.created_at) %s
        LIMIT %d OFFSET %d`, strings.Join(clauses, " AND "), order, page.Limit, page.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		groups []domain.TicketHistoryGroup
		total  int
	)
	for rows.Next() {
		var (
			group domain.TicketHistoryGroup
			raw   []byte
		)
		if err := rows.Scan(&group.TicketID, &group.TicketNumber, &group.Title, &raw, &total); err != nil {
			return nil, 0, err
		}
		var items []historyJSON
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, 0, fmt.Errorf("decode ticket histories: %w", err)
		}
		for _, item := range items {
			group.Histories = append(group.Histories, domain.TicketHistory{
				ID:          item.ID,
				TicketID:    item.TicketID,
				ChangeType:  domain.ChangeType(item.ChangeType),
				FieldName:   item.FieldName,
				OldValue:    item.OldValue,
				NewValue:    item.NewValue,
				ChangedByID: item.ChangedByID,
				CreatedAt:   item.CreatedAt,
			})
		}
		groups = append(groups, group)
	}
	return groups, total, rows.Err()
}
