package repository

import (
	"context"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// CatalogRepository reads priority and status reference data.
type CatalogRepository interface {
	ListPriorities(ctx context.Context) ([]domain.TicketPriority, error)
	ListStatuses(ctx context.Context) ([]domain.TicketStatus, error)
}

type catalogRepository struct {
	db DBTX
}

// NewCatalogRepository builds the repository.
func NewCatalogRepository(db DBTX) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) ListPriorities(ctx context.Context) ([]domain.TicketPriority, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, sort_order FROM ticket_priorities ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketPriority
	for rows.Next() {
		var p domain.TicketPriority
		if err := rows.Scan(&p.ID, &p.Name, &p.SortOrder); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *catalogRepository) ListStatuses(ctx context.Context) ([]domain.TicketStatus, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM ticket_statuses ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketStatus
	for rows.Next() {
		var s domain.TicketStatus
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
