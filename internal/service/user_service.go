package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/itsm-platform/ticketing-service/internal/auth"
	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/repository"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

// UserService manages user accounts.
type UserService struct {
	repos      *repository.Repositories
	uow        repository.UnitOfWork
	lookup     *LookupService
	bcryptCost int
	logger     *zap.Logger
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	Repos      *repository.Repositories
	UnitOfWork repository.UnitOfWork
	Lookup     *LookupService
	BcryptCost int
	Logger     *zap.Logger
}

// CreateUserInput describes a new account. Empty RoleIDs means employee.
type CreateUserInput struct {
	Email         string
	Password      string
	FullName      string
	RoleIDs       []string
	DepartmentIDs []string
	TeamID        *string
	Skills        map[string]any
	IsAvailable   *bool
}

// UserListFilter narrows user listings.
type UserListFilter struct {
	RoleID       *string
	DepartmentID *string
	CategoryID   *string
	Search       *string
	Pagination   Pagination
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		repos:      deps.Repos,
		uow:        deps.UnitOfWork,
		lookup:     deps.Lookup,
		bcryptCost: deps.BcryptCost,
		logger:     logger,
	}
}

// Register creates a self-service employee account. Requested roles are ignored.
func (s *UserService) Register(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	employee, err := s.lookup.RoleByKey(ctx, domain.RoleEmployee)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, input, []domain.Role{*employee})
}

// CreateUser creates an account with explicit roles and departments.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	roles := make([]domain.Role, 0, len(input.RoleIDs)+1)
	for _, id := range lo.Uniq(input.RoleIDs) {
		role, err := s.lookup.RoleByID(ctx, id)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}

	keys := lo.Map(roles, func(r domain.Role, _ int) domain.RoleKey { return r.Key })
	if len(roles) == 0 || (lo.Contains(keys, domain.RoleManager) && !lo.Contains(keys, domain.RoleEmployee)) {
		employee, err := s.lookup.RoleByKey(ctx, domain.RoleEmployee)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *employee)
	}
	return s.create(ctx, input, roles)
}

func (s *UserService) create(ctx context.Context, input CreateUserInput, roles []domain.Role) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := s.repos.Users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("User with this email already exists", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	available := true
	if input.IsAvailable != nil {
		available = *input.IsAvailable
	}

	var userID string
	err = s.uow.Within(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		keys := lo.Map(roles, func(r domain.Role, _ int) domain.RoleKey { return r.Key })
		uniqueKey, err := repos.Users.NextUniqueKey(ctx, domain.UniqueKeyPrefix(keys))
		if err != nil {
			return err
		}

		user := &domain.User{
			Email:        email,
			PasswordHash: hash,
			FullName:     strings.TrimSpace(input.FullName),
			UniqueKey:    uniqueKey,
			TeamID:       input.TeamID,
			Skills:       input.Skills,
			IsAvailable:  available,
		}
		if err := repos.Users.Create(ctx, user); err != nil {
			return err
		}
		for _, role := range roles {
			if err := repos.Users.AddRole(ctx, user.ID, role.ID); err != nil {
				return err
			}
		}
		for _, deptID := range lo.Uniq(input.DepartmentIDs) {
			if _, err := repos.Departments.GetByID(ctx, deptID); err != nil {
				return notFound(err, "Department")
			}
			if err := repos.Users.AddDepartment(ctx, user.ID, deptID); err != nil {
				return err
			}
		}
		userID = user.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.String("user_id", userID), zap.Any("roles", lo.Map(roles, func(r domain.Role, _ int) domain.RoleKey { return r.Key })))
	return s.GetByID(ctx, userID)
}

// GetByID returns a user with roles and departments.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repos.Users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "User")
	}
	return user, nil
}

// List returns a page of users matching filter.
func (s *UserService) List(ctx context.Context, filter UserListFilter) ([]domain.User, Meta, error) {
	users, total, err := s.repos.Users.List(ctx, repository.UserFilter{
		RoleID:       filter.RoleID,
		DepartmentID: filter.DepartmentID,
		CategoryID:   filter.CategoryID,
		Search:       filter.Search,
		Page:         filter.Pagination.repoPage(),
	})
	if err != nil {
		return nil, Meta{}, err
	}
	return users, filter.Pagination.meta(total), nil
}
