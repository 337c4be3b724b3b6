package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// CategoryRepository manages ticket categories and manager category mappings.
type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.TicketCategory, error)
	ListActive(ctx context.Context, departmentID *string) ([]domain.TicketCategory, error)
	AddUserCategory(ctx context.Context, mapping *domain.UserCategory) error
	RemoveUserCategory(ctx context.Context, userID, categoryID string) error
	DeleteUserCategories(ctx context.Context, userID string) error
	UserHasCategory(ctx context.Context, userID, categoryID string) (bool, error)
}

type categoryRepository struct {
	db DBTX
}

// NewCategoryRepository builds the repository.
func NewCategoryRepository(db DBTX) CategoryRepository {
	return &categoryRepository{db: db}
}

const categoryColumns = `id, department_id, name, code, description, is_active, created_at`

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.TicketCategory, error) {
	var c domain.TicketCategory
	if err := r.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM ticket_categories WHERE id=$1`, id).Scan(
		&c.ID, &c.DepartmentID, &c.Name, &c.Code, &c.Description, &c.IsActive, &c.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepository) ListActive(ctx context.Context, departmentID *string) ([]domain.TicketCategory, error) {
	query := `SELECT ` + categoryColumns + ` FROM ticket_categories WHERE is_active = TRUE`
	args := []any{}
	if departmentID != nil {
		args = append(args, *departmentID)
		query += fmt.Sprintf(" AND department_id=$%d", len(args))
	}
	query += " ORDER BY name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketCategory
	for rows.Next() {
		var c domain.TicketCategory
		if err := rows.Scan(&c.ID, &c.DepartmentID, &c.Name, &c.Code, &c.Description, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *categoryRepository) AddUserCategory(ctx context.Context, mapping *domain.UserCategory) error {
	const query = `
        INSERT INTO user_categories (user_id, category_id)
        VALUES ($1, $2)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query, mapping.UserID, mapping.CategoryID).Scan(&mapping.ID, &mapping.CreatedAt)
}

func (r *categoryRepository) RemoveUserCategory(ctx context.Context, userID, categoryID string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM user_categories WHERE user_id=$1 AND category_id=$2`, userID, categoryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *categoryRepository) DeleteUserCategories(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM user_categories WHERE user_id=$1`, userID)
	return err
}

func (r *categoryRepository) UserHasCategory(ctx context.Context, userID, categoryID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_categories WHERE user_id=$1 AND category_id=$2)`,
		userID, categoryID,
	).Scan(&exists)
	return exists, err
}
