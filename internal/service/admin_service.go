package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/repository"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

// AdminService implements super-admin maintenance operations.
type AdminService struct {
	repos       *repository.Repositories
	uow         repository.UnitOfWork
	lookup      *LookupService
	users       *UserService
	assignments *AssignmentService
	logger      *zap.Logger
}

// AdminDependencies bundles collaborators for the admin service.
type AdminDependencies struct {
	Repos       *repository.Repositories
	UnitOfWork  repository.UnitOfWork
	Lookup      *LookupService
	Users       *UserService
	Assignments *AssignmentService
	Logger      *zap.Logger
}

// NewAdminService constructs the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		repos:       deps.Repos,
		uow:         deps.UnitOfWork,
		lookup:      deps.Lookup,
		users:       deps.Users,
		assignments: deps.Assignments,
		logger:      logger,
	}
}

func (s *AdminService) userAndRole(ctx context.Context, userID, roleID string) (*domain.User, *domain.Role, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, notFound(err, "User")
	}
	role, err := s.lookup.RoleByID(ctx, roleID)
	if err != nil {
		return nil, nil, err
	}
	return user, role, nil
}

// AddRoleToUser grants a role. Granting manager also grants employee.
func (s *AdminService) AddRoleToUser(ctx context.Context, userID, roleID string) (*domain.User, error) {
	user, role, err := s.userAndRole(ctx, userID, roleID)
	if err != nil {
		return nil, err
	}
	if user.HasRole(role.Key) {
		return nil, apperrors.NewBadRequest("ROLE_ALREADY_ASSIGNED", "User already has this role", nil)
	}

	grants := []domain.Role{*role}
	if role.Key == domain.RoleManager && !user.HasRole(domain.RoleEmployee) {
		employee, err := s.lookup.RoleByKey(ctx, domain.RoleEmployee)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *employee)
	}

	err = s.uow.Within(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		for _, r := range grants {
			if err := repos.Users.AddRole(ctx, user.ID, r.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.lookup.InvalidateRoles()
	s.logger.Info("role granted", zap.String("user_id", user.ID), zap.String("role", string(role.Key)))
	return s.users.GetByID(ctx, user.ID)
}

// RemoveRoleFromUser revokes a role. super_admin can never be removed here;
// removing manager also drops the user's category mappings.
func (s *AdminService) RemoveRoleFromUser(ctx context.Context, userID, roleID string) (*domain.User, error) {
	user, role, err := s.userAndRole(ctx, userID, roleID)
	if err != nil {
		return nil, err
	}
	if role.Key == domain.RoleSuperAdmin {
		return nil, apperrors.NewForbidden("Cannot remove super_admin role")
	}
	if !user.HasRole(role.Key) {
		return nil, apperrors.NewBadRequest("ROLE_NOT_ASSIGNED", "User does not have this role", nil)
	}

	err = s.uow.Within(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if err := repos.Users.RemoveRole(ctx, user.ID, role.ID); err != nil {
			return notFound(err, "Role assignment")
		}
		if role.Key == domain.RoleManager {
			return repos.Categories.DeleteUserCategories(ctx, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.lookup.InvalidateRoles()
	s.logger.Info("role revoked", zap.String("user_id", user.ID), zap.String("role", string(role.Key)))
	return s.users.GetByID(ctx, user.ID)
}

// AddCategoryToUser maps a manager to a ticket category.
func (s *AdminService) AddCategoryToUser(ctx context.Context, userID, categoryID string) (*domain.UserCategory, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User")
	}
	if !user.HasRole(domain.RoleManager) {
		return nil, apperrors.NewBadRequest("NOT_A_MANAGER", "Category mapping is only allowed for IT Managers", nil)
	}
	if _, err := s.repos.Categories.GetByID(ctx, categoryID); err != nil {
		return nil, notFound(err, "Category")
	}
	mapped, err := s.repos.Categories.UserHasCategory(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}
	if mapped {
		return nil, apperrors.NewBadRequest("CATEGORY_ALREADY_MAPPED", "User is already mapped to this category", nil)
	}

	mapping := &domain.UserCategory{UserID: userID, CategoryID: categoryID}
	if err := s.repos.Categories.AddUserCategory(ctx, mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

// RemoveCategoryFromUser deletes a manager/category mapping.
func (s *AdminService) RemoveCategoryFromUser(ctx context.Context, userID, categoryID string) error {
	err := s.repos.Categories.RemoveUserCategory(ctx, userID, categoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("Category mapping", nil)
	}
	return err
}

// FindAllUsers searches users.
func (s *AdminService) FindAllUsers(ctx context.Context, filter UserListFilter) ([]domain.User, Meta, error) {
	return s.users.List(ctx, filter)
}

// AssignTicketToITManager assigns a ticket to a manager mapped to its category.
func (s *AdminService) AssignTicketToITManager(ctx context.Context, ticketID, managerID, actorID string) (*domain.Ticket, error) {
	ticket, err := s.repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFound(err, "Ticket")
	}
	manager, err := s.repos.Users.GetByID(ctx, managerID)
	if err != nil {
		return nil, notFound(err, "User")
	}
	if !manager.HasRole(domain.RoleManager) {
		return nil, apperrors.NewBadRequest("NOT_A_MANAGER", "Can only assign tickets to IT Managers", nil)
	}
	mapped, err := s.repos.Categories.UserHasCategory(ctx, manager.ID, ticket.CategoryID)
	if err != nil {
		return nil, err
	}
	if !mapped {
		return nil, apperrors.NewBadRequest("CATEGORY_NOT_MAPPED", "Manager is not mapped to the ticket category",
			map[string]any{"categoryId": ticket.CategoryID})
	}
	return s.assignments.assign(ctx, ticket, domain.SlotManager, manager, actorID, "Ticket assigned to IT Manager")
}

// UpsertNotificationRule creates or replaces the rule for an event.
func (s *AdminService) UpsertNotificationRule(ctx context.Context, event domain.TicketEventType, recipients []domain.RecipientType, isActive bool) (*domain.NotificationRule, error) {
	if !event.Valid() {
		return nil, apperrors.NewValidationError("invalid event", map[string]any{"event": event})
	}
	recipients = lo.Uniq(recipients)
	for _, r := range recipients {
		if !r.Valid() {
			return nil, apperrors.NewValidationError("invalid recipient type", map[string]any{"recipientTypes": r})
		}
	}
	if len(recipients) == 0 {
		return nil, apperrors.NewValidationError("at least one recipient type is required", map[string]any{"recipientTypes": "required"})
	}

	rule := &domain.NotificationRule{Event: event, RecipientTypes: recipients, IsActive: isActive}
	if err := s.repos.Rules.Upsert(ctx, rule); err != nil {
		return nil, err
	}
	s.lookup.InvalidateRules()
	return rule, nil
}

// ListNotificationRules returns the rule table.
func (s *AdminService) ListNotificationRules(ctx context.Context) ([]domain.NotificationRule, error) {
	return s.repos.Rules.List(ctx)
}
