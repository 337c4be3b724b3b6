package service

import (
	"context"
	"sync"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/repository"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

// LookupService serves catalog data. Roles, statuses, priorities and
// notification rules are cached until invalidated by an admin write.
type LookupService struct {
	roles       repository.RoleRepository
	catalog     repository.CatalogRepository
	categories  repository.CategoryRepository
	departments repository.DepartmentRepository
	rules       repository.NotificationRuleRepository

	mu         sync.RWMutex
	roleCache  []domain.Role
	statuses   []domain.TicketStatus
	priorities []domain.TicketPriority
	ruleCache  []domain.NotificationRule
}

// LookupDependencies bundles repositories for the lookup service.
type LookupDependencies struct {
	RoleRepo       repository.RoleRepository
	CatalogRepo    repository.CatalogRepository
	CategoryRepo   repository.CategoryRepository
	DepartmentRepo repository.DepartmentRepository
	RuleRepo       repository.NotificationRuleRepository
}

// NewLookupService constructs the service.
func NewLookupService(deps LookupDependencies) *LookupService {
	return &LookupService{
		roles:       deps.RoleRepo,
		catalog:     deps.CatalogRepo,
		categories:  deps.CategoryRepo,
		departments: deps.DepartmentRepo,
		rules:       deps.RuleRepo,
	}
}

func cached[T any](ctx context.Context, mu *sync.RWMutex, slot *[]T, load func(context.Context) ([]T, error)) ([]T, error) {
	mu.RLock()
	items := *slot
	mu.RUnlock()
	if items != nil {
		return items, nil
	}

	items, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	mu.Lock()
	*slot = items
	mu.Unlock()
	return items, nil
}

// Roles lists every role.
func (s *LookupService) Roles(ctx context.Context) ([]domain.Role, error) {
	return cached(ctx, &s.mu, &s.roleCache, s.roles.List)
}

// RoleByID resolves a role id.
func (s *LookupService) RoleByID(ctx context.Context, id string) (*domain.Role, error) {
	roles, err := s.Roles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		if roles[i].ID == id {
			role := roles[i]
			return &role, nil
		}
	}
	return nil, apperrors.NewNotFound("Role", map[string]any{"id": id})
}

// RoleByKey resolves a role key.
func (s *LookupService) RoleByKey(ctx context.Context, key domain.RoleKey) (*domain.Role, error) {
	roles, err := s.Roles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		if roles[i].Key == key {
			role := roles[i]
			return &role, nil
		}
	}
	return nil, apperrors.NewNotFound("Role", map[string]any{"key": key})
}

// Statuses lists ticket statuses ordered by name.
func (s *LookupService) Statuses(ctx context.Context) ([]domain.TicketStatus, error) {
	return cached(ctx, &s.mu, &s.statuses, s.catalog.ListStatuses)
}

// StatusByID resolves a status id.
func (s *LookupService) StatusByID(ctx context.Context, id string) (*domain.TicketStatus, error) {
	statuses, err := s.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	for i := range statuses {
		if statuses[i].ID == id {
			status := statuses[i]
			return &status, nil
		}
	}
	return nil, apperrors.NewNotFound("Status", map[string]any{"id": id})
}

// StatusByName resolves a status by its catalog name.
func (s *LookupService) StatusByName(ctx context.Context, name string) (*domain.TicketStatus, error) {
	statuses, err := s.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	for i := range statuses {
		if statuses[i].Name == name {
			status := statuses[i]
			return &status, nil
		}
	}
	return nil, apperrors.NewNotFound("Status", map[string]any{"name": name})
}

// Priorities lists priorities ordered by sort order then name.
func (s *LookupService) Priorities(ctx context.Context) ([]domain.TicketPriority, error) {
	return cached(ctx, &s.mu, &s.priorities, s.catalog.ListPriorities)
}

// PriorityByID resolves a priority id.
func (s *LookupService) PriorityByID(ctx context.Context, id string) (*domain.TicketPriority, error) {
	priorities, err := s.Priorities(ctx)
	if err != nil {
		return nil, err
	}
	for i := range priorities {
		if priorities[i].ID == id {
			p := priorities[i]
			return &p, nil
		}
	}
	return nil, apperrors.NewNotFound("Priority", map[string]any{"id": id})
}

// PriorityByName resolves a priority by its catalog name.
func (s *LookupService) PriorityByName(ctx context.Context, name string) (*domain.TicketPriority, error) {
	priorities, err := s.Priorities(ctx)
	if err != nil {
		return nil, err
	}
	for i := range priorities {
		if priorities[i].Name == name {
			p := priorities[i]
			return &p, nil
		}
	}
	return nil, apperrors.NewNotFound("Priority", map[string]any{"name": name})
}

// Categories lists active categories, optionally for one department.
func (s *LookupService) Categories(ctx context.Context, departmentID *string) ([]domain.TicketCategory, error) {
	return s.categories.ListActive(ctx, departmentID)
}

// Departments lists active departments.
func (s *LookupService) Departments(ctx context.Context) ([]domain.Department, error) {
	return s.departments.ListActive(ctx)
}

// ChangeTypes lists the history change types.
func (s *LookupService) ChangeTypes() []domain.ChangeType {
	return domain.ChangeTypes
}

// Rules lists notification rules.
func (s *LookupService) Rules(ctx context.Context) ([]domain.NotificationRule, error) {
	return cached(ctx, &s.mu, &s.ruleCache, s.rules.List)
}

// ActiveRule returns the active rule for event, or nil when none is active.
func (s *LookupService) ActiveRule(ctx context.Context, event domain.TicketEventType) (*domain.NotificationRule, error) {
	rules, err := s.Rules(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rules {
		if rules[i].Event == event && rules[i].IsActive {
			rule := rules[i]
			return &rule, nil
		}
	}
	return nil, nil
}

// InvalidateRoles drops cached roles.
func (s *LookupService) InvalidateRoles() {
	s.mu.Lock()
	s.roleCache = nil
	s.mu.Unlock()
}

// InvalidateRules drops cached notification rules.
func (s *LookupService) InvalidateRules() {
	s.mu.Lock()
	s.ruleCache = nil
	s.mu.Unlock()
}
