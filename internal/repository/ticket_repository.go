package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// TicketFilter captures listing parameters. Scope fields are combined with AND;
// ManagerOrUnassigned widens ManagerID to also match tickets with no manager.
type TicketFilter struct {
	CreatedForID        *string
	ManagerID           *string
	ManagerOrUnassigned bool
	ExecutiveID         *string
	StatusID            *string
	DepartmentID        *string
	CategoryID          *string
	PriorityID          *string
	Page                Page
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	LatestCreatedFor(ctx context.Context, userID string) (*domain.Ticket, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketSelect = `
        SELECT t.id, t.ticket_number, t.title, t.description, t.department_id, t.category_id,
               t.priority_id, t.status_id, t.created_by_id, t.created_for_id,
               t.assigned_to_manager_id, t.assigned_to_executive_id,
               t.conversation_context, t.summary, t.sla_response_due, t.sla_resolution_due,
               t.sla_response_breached, t.sla_resolution_breached, t.resolved_at, t.closed_at,
               t.created_at, t.updated_at,
               d.name, c.name, c.code, p.name, s.name,
               cb.full_name, cb.email, cf.full_name, cf.email,
               COALESCE(m.full_name, ''), COALESCE(e.full_name, '')
        FROM tickets t
        JOIN departments d ON d.id = t.department_id
        JOIN ticket_categories c ON c.id = t.category_id
        JOIN ticket_priorities p ON p.id = t.priority_id
        JOIN ticket_statuses s ON s.id = t.status_id
        JOIN users cb ON cb.id = t.created_by_id
        JOIN users cf ON cf.id = t.created_for_id
        LEFT JOIN users m ON m.id = t.assigned_to_manager_id
        LEFT JOIN users e ON e.id = t.assigned_to_executive_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, title, description, department_id, category_id, priority_id, status_id,
            created_by_id, created_for_id, assigned_to_manager_id, assigned_to_executive_id,
            conversation_context, summary, sla_response_due, sla_resolution_due)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.Title,
		ticket.Description,
		ticket.DepartmentID,
		ticket.CategoryID,
		ticket.PriorityID,
		ticket.StatusID,
		ticket.CreatedByID,
		ticket.CreatedForID,
		ticket.AssignedToManagerID,
		ticket.AssignedToExecutiveID,
		ticket.ConversationContext,
		ticket.Summary,
		ticket.SLAResponseDue,
		ticket.SLAResolutionDue,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, category_id=$3, priority_id=$4, status_id=$5,
            assigned_to_manager_id=$6, assigned_to_executive_id=$7, conversation_context=$8, summary=$9,
            sla_response_due=$10, sla_resolution_due=$11, resolved_at=$12, closed_at=$13, updated_at=NOW()
        WHERE id=$14
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.CategoryID,
		ticket.PriorityID,
		ticket.StatusID,
		ticket.AssignedToManagerID,
		ticket.AssignedToExecutiveID,
		ticket.ConversationContext,
		ticket.Summary,
		ticket.SLAResponseDue,
		ticket.SLAResolutionDue,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return err
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return scanTicket(r.db.QueryRow(ctx, ticketSelect+` WHERE t.id=$1`, id))
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	return scanTicket(r.db.QueryRow(ctx, ticketSelect+` WHERE t.ticket_number=$1`, number))
}

func (r *ticketRepository) LatestCreatedFor(ctx context.Context, userID string) (*domain.Ticket, error) {
	return scanTicket(r.db.QueryRow(ctx, ticketSelect+` WHERE t.created_for_id=$1 ORDER BY t.created_at DESC LIMIT 1`, userID))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedForID != nil {
		args = append(args, *filter.CreatedForID)
		clauses = append(clauses, fmt.Sprintf("t.created_for_id=$%d", len(args)))
	}
	if filter.ManagerID != nil {
		args = append(args, *filter.ManagerID)
		if filter.ManagerOrUnassigned {
			clauses = append(clauses, fmt.Sprintf("(t.assigned_to_manager_id=$%d OR t.assigned_to_manager_id IS NULL)", len(args)))
		} else {
			clauses = append(clauses, fmt.Sprintf("t.assigned_to_manager_id=$%d", len(args)))
		}
	}
	if filter.ExecutiveID != nil {
		args = append(args, *filter.ExecutiveID)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to_executive_id=$%d", len(args)))
	}
	if filter.StatusID != nil {
		args = append(args, *filter.StatusID)
		clauses = append(clauses, fmt.Sprintf("t.status_id=$%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("t.department_id=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("t.category_id=$%d", len(args)))
	}
	if filter.PriorityID != nil {
		args = append(args, *filter.PriorityID)
		clauses = append(clauses, fmt.Sprintf("t.priority_id=$%d", len(args)))
	}

	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets t WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page.normalized(10)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.created_at DESC LIMIT %d OFFSET %d`,
		ticketSelect, where, page.Limit, page.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *ticket)
	}
	return result, total, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID,
		&t.TicketNumber,
		&t.Title,
		&t.Description,
		&t.DepartmentID,
		&t.CategoryID,
		&t.PriorityID,
		&t.StatusID,
		&t.CreatedByID,
		&t.CreatedForID,
		&t.AssignedToManagerID,
		&t.AssignedToExecutiveID,
		&t.ConversationContext,
		&t.Summary,
		&t.SLAResponseDue,
		&t.SLAResolutionDue,
		&t.SLAResponseBreached,
		&t.SLAResolutionBreached,
		&t.ResolvedAt,
		&t.ClosedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Refs.DepartmentName,
		&t.Refs.CategoryName,
		&t.Refs.CategoryCode,
		&t.Refs.PriorityName,
		&t.Refs.StatusName,
		&t.Refs.CreatedByName,
		&t.Refs.CreatedByEmail,
		&t.Refs.CreatedForName,
		&t.Refs.CreatedForMail,
		&t.Refs.ManagerName,
		&t.Refs.ExecutiveName,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
