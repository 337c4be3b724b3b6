package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// UserFilter captures admin search parameters.
type UserFilter struct {
	RoleID       *string
	DepartmentID *string
	CategoryID   *string
	Search       *string
	Page         Page
}

// UserRepository defines persistence access for users and their role and
// department memberships.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, int, error)
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	AddDepartment(ctx context.Context, userID, departmentID string) error
	NextUniqueKey(ctx context.Context, prefix string) (string, error)
	// LeastLoadedManager returns nil when no available manager exists.
	LeastLoadedManager(ctx context.Context) (*domain.User, error)
	ListManagersByDepartment(ctx context.Context, departmentID string) ([]domain.User, error)
	ListManagersByCategory(ctx context.Context, categoryID string) ([]domain.User, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `u.id, u.email, u.password_hash, u.full_name, u.unique_key, u.team_id, u.skills, u.is_available, u.created_at, u.updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, password_hash, full_name, unique_key, team_id, skills, is_available)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.UniqueKey,
		user.TeamID,
		user.Skills,
		user.IsAvailable,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users u WHERE LOWER(u.email)=LOWER($1)`, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	users := []domain.User{*user}
	if err := r.loadRelations(ctx, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RoleID != nil {
		args = append(args, *filter.RoleID)
		clauses = append(clauses, fmt.Sprintf("EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id=u.id AND ur.role_id=$%d)", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("EXISTS (SELECT 1 FROM user_departments ud WHERE ud.user_id=u.id AND ud.department_id=$%d)", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("EXISTS (SELECT 1 FROM user_categories uc WHERE uc.user_id=u.id AND uc.category_id=$%d)", len(args)))
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		args = append(args, "%"+strings.TrimSpace(*filter.Search)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(u.email ILIKE %s OR u.full_name ILIKE %s)", placeholder, placeholder))
	}

	page := filter.Page.normalized(10)
	query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() FROM users u WHERE %s ORDER BY u.created_at DESC LIMIT %d OFFSET %d`,
		userColumns, strings.Join(clauses, " AND "), page.Limit, page.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		users []domain.User
		total int
	)
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.PasswordHash,
			&user.FullName,
			&user.UniqueKey,
			&user.TeamID,
			&user.Skills,
			&user.IsAvailable,
			&user.CreatedAt,
			&user.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadRelations(ctx, users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) AddRole(ctx context.Context, userID, roleID string) error {
	const query = `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := r.db.Exec(ctx, query, userID, roleID)
	return err
}

func (r *userRepository) RemoveRole(ctx context.Context, userID, roleID string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id=$1 AND role_id=$2`, userID, roleID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) AddDepartment(ctx context.Context, userID, departmentID string) error {
	const query = `INSERT INTO user_departments (user_id, department_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := r.db.Exec(ctx, query, userID, departmentID)
	return err
}

// NextUniqueKey allocates the next per-prefix user key, starting at 1001.
func (r *userRepository) NextUniqueKey(ctx context.Context, prefix string) (string, error) {
	const query = `
        INSERT INTO user_key_sequences (prefix, last_value) VALUES ($1, 1001)
        ON CONFLICT (prefix) DO UPDATE SET last_value = user_key_sequences.last_value + 1
        RETURNING last_value`
	var n int64
	if err := r.db.QueryRow(ctx, query, prefix).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", prefix, n), nil
}

func (r *userRepository) LeastLoadedManager(ctx context.Context) (*domain.User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users u
        JOIN user_roles ur ON ur.user_id = u.id
        JOIN roles ro ON ro.id = ur.role_id AND ro.key = $1
        LEFT JOIN tickets t ON t.assigned_to_manager_id = u.id
            AND t.status_id IN (SELECT id FROM ticket_statuses WHERE name = ANY($2))
        WHERE u.is_available = TRUE
        GROUP BY u.id
        ORDER BY COUNT(t.id) ASC
        LIMIT 1`

	user, err := scanUser(r.db.QueryRow(ctx, query, domain.RoleManager, domain.ActiveStatusNames))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) ListManagersByDepartment(ctx context.Context, departmentID string) ([]domain.User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users u
        JOIN user_roles ur ON ur.user_id = u.id
        JOIN roles ro ON ro.id = ur.role_id AND ro.key = $1
        JOIN user_departments ud ON ud.user_id = u.id AND ud.department_id = $2
        ORDER BY u.full_name`
	return r.listUsers(ctx, query, domain.RoleManager, departmentID)
}

func (r *userRepository) ListManagersByCategory(ctx context.Context, categoryID string) ([]domain.User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users u
        JOIN user_roles ur ON ur.user_id = u.id
        JOIN roles ro ON ro.id = ur.role_id AND ro.key = $1
        JOIN user_categories uc ON uc.user_id = u.id AND uc.category_id = $2
        ORDER BY u.full_name`
	return r.listUsers(ctx, query, domain.RoleManager, categoryID)
}

func (r *userRepository) listUsers(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// loadRelations fills roles and departments for users in two batched queries.
func (r *userRepository) loadRelations(ctx context.Context, users []domain.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, len(users))
	index := make(map[string]int, len(users))
	for i, u := range users {
		ids[i] = u.ID
		index[u.ID] = i
	}

	roleRows, err := r.db.Query(ctx, `
        SELECT ur.user_id, ro.id, ro.key, ro.name, ro.created_at
        FROM user_roles ur JOIN roles ro ON ro.id = ur.role_id
        WHERE ur.user_id = ANY($1::uuid[])
        ORDER BY ro.key`, ids)
	if err != nil {
		return err
	}
	for roleRows.Next() {
		var (
			userID string
			role   domain.Role
		)
		if err := roleRows.Scan(&userID, &role.ID, &role.Key, &role.Name, &role.CreatedAt); err != nil {
			roleRows.Close()
			return err
		}
		users[index[userID]].Roles = append(users[index[userID]].Roles, role)
	}
	roleRows.Close()
	if err := roleRows.Err(); err != nil {
		return err
	}

	deptRows, err := r.db.Query(ctx, `
        SELECT ud.user_id, d.id, d.organization_id, d.name, d.description, d.is_active, d.created_at, d.updated_at
        FROM user_departments ud JOIN departments d ON d.id = ud.department_id
        WHERE ud.user_id = ANY($1::uuid[])
        ORDER BY d.name`, ids)
	if err != nil {
		return err
	}
	defer deptRows.Close()
	for deptRows.Next() {
		var (
			userID string
			dept   domain.Department
		)
		if err := deptRows.Scan(&userID, &dept.ID, &dept.OrganizationID, &dept.Name, &dept.Description, &dept.IsActive, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
			return err
		}
		users[index[userID]].Departments = append(users[index[userID]].Departments, dept)
	}
	return deptRows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.UniqueKey,
		&user.TeamID,
		&user.Skills,
		&user.IsAvailable,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
