package repository

import (
	"context"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// DepartmentRepository reads departments. Rows are created by the seed.
type DepartmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Department, error)
	ListActive(ctx context.Context) ([]domain.Department, error)
}

type departmentRepository struct {
	db DBTX
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(db DBTX) DepartmentRepository {
	return &departmentRepository{db: db}
}

func (r *departmentRepository) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	const query = `
        SELECT id, organization_id, name, description, is_active, created_at, updated_at
        FROM departments WHERE id=$1`
	var dept domain.Department
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&dept.ID,
		&dept.OrganizationID,
		&dept.Name,
		&dept.Description,
		&dept.IsActive,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepository) ListActive(ctx context.Context) ([]domain.Department, error) {
	const query = `
        SELECT id, organization_id, name, description, is_active, created_at, updated_at
        FROM departments WHERE is_active = TRUE ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		var dept domain.Department
		if err := rows.Scan(
			&dept.ID,
			&dept.OrganizationID,
			&dept.Name,
			&dept.Description,
			&dept.IsActive,
			&dept.CreatedAt,
			&dept.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, dept)
	}
	return result, rows.Err()
}
