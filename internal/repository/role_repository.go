package repository

import (
	"context"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// RoleRepository reads the role catalog.
type RoleRepository interface {
	List(ctx context.Context) ([]domain.Role, error)
}

type roleRepository struct {
	db DBTX
}

// NewRoleRepository builds repository.
func NewRoleRepository(db DBTX) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) List(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.db.Query(ctx, `SELECT id, key, name, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Key, &role.Name, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
