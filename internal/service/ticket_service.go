package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/events"
	"github.com/itsm-platform/ticketing-service/internal/repository"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

// TicketDependencies bundles collaborators shared by the ticket and assignment services.
type TicketDependencies struct {
	Repos      *repository.Repositories
	UnitOfWork repository.UnitOfWork
	Lookup     *LookupService
	Logger     *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// ticketCore holds what every ticket workflow needs.
type ticketCore struct {
	repos  *repository.Repositories
	uow    repository.UnitOfWork
	lookup *LookupService
	events eventPublisher
	logger *zap.Logger
	now    func() time.Time
}

func newTicketCore(deps TicketDependencies) ticketCore {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return ticketCore{
		repos:  deps.Repos,
		uow:    deps.UnitOfWork,
		lookup: deps.Lookup,
		events: eventPublisher{lookup: deps.Lookup, logger: logger, now: now},
		logger: logger,
		now:    now,
	}
}

func (c ticketCore) reload(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := c.repos.Tickets.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Ticket")
	}
	return ticket, nil
}

// visible hides tickets the caller may not read behind NotFound.
func visible(ticket *domain.Ticket, err error, principal domain.Principal) (*domain.Ticket, error) {
	if err != nil {
		return nil, notFound(err, "Ticket")
	}
	if !ticket.VisibleTo(principal.UserID, principal.Roles) {
		return nil, apperrors.NewNotFound("Ticket", nil)
	}
	return ticket, nil
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	ticketCore
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Title               string
	Description         string
	DepartmentID        string
	CategoryID          string
	PriorityID          *string
	CreatedForID        *string
	ConversationContext map[string]any
	Summary             map[string]any
	SLAResponseDue      *time.Time
	SLAResolutionDue    *time.Time
}

// UpdateTicketInput carries optional field changes. Nil or blank fields are left alone.
type UpdateTicketInput struct {
	StatusID            *string
	PriorityID          *string
	CategoryID          *string
	Title               *string
	Description         *string
	SLAResponseDue      *time.Time
	SLAResolutionDue    *time.Time
	ConversationContext map[string]any
}

// UpdateStatusInput changes status and always records a comment.
type UpdateStatusInput struct {
	StatusID   string
	Comment    string
	IsInternal bool
}

// TicketListFilter narrows ticket listings.
type TicketListFilter struct {
	StatusID     *string
	DepartmentID *string
	CategoryID   *string
	PriorityID   *string
	Pagination   Pagination
}

// HistoryListFilter narrows the grouped history report.
type HistoryListFilter struct {
	TicketID     *string
	TicketNumber *string
	AssignedTo   *string
	ChangeType   *domain.ChangeType
	From         *time.Time
	To           *time.Time
	// Order is "ASC" or "DESC" on the latest history time; DESC by default.
	Order      string
	Pagination Pagination
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{ticketCore: newTicketCore(deps)}
}

// Create opens a ticket, routes it to the least-loaded manager and records the
// creation history and CREATE event atomically.
func (s *TicketService) Create(ctx context.Context, actorID string, input CreateTicketInput) (*domain.Ticket, error) {
	if _, err := s.repos.Users.GetByID(ctx, actorID); err != nil {
		return nil, notFound(err, "User")
	}

	createdForID := actorID
	if input.CreatedForID != nil && *input.CreatedForID != "" && *input.CreatedForID != actorID {
		if _, err := s.repos.Users.GetByID(ctx, *input.CreatedForID); err != nil {
			return nil, notFound(err, "Created for user")
		}
		createdForID = *input.CreatedForID
	}

	dept, err := s.repos.Departments.GetByID(ctx, input.DepartmentID)
	if err != nil {
		return nil, notFound(err, "Department")
	}
	if !dept.IsActive {
		return nil, apperrors.NewBadRequest("DEPARTMENT_INACTIVE", "Department is not active", map[string]any{"departmentId": dept.ID})
	}

	category, err := s.repos.Categories.GetByID(ctx, input.CategoryID)
	if err != nil {
		return nil, notFound(err, "Category")
	}
	if category.DepartmentID != dept.ID {
		return nil, apperrors.NewBadRequest("INVALID_CATEGORY_FOR_DEPARTMENT",
			"Category does not belong to the selected department",
			map[string]any{"categoryId": category.ID, "departmentId": dept.ID})
	}

	var priority *domain.TicketPriority
	if input.PriorityID != nil && *input.PriorityID != "" {
		priority, err = s.lookup.PriorityByID(ctx, *input.PriorityID)
	} else {
		priority, err = s.lookup.PriorityByName(ctx, domain.PriorityMedium)
	}
	if err != nil {
		return nil, err
	}

	status, err := s.lookup.StatusByName(ctx, domain.StatusNew)
	if err != nil {
		return nil, err
	}

	manager, err := s.repos.Users.LeastLoadedManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("select manager: %w", err)
	}

	now := s.now()
	ticket := &domain.Ticket{
		TicketNumber:        generateTicketNumber(category.Code, now),
		Title:               strings.TrimSpace(input.Title),
		Description:         strings.TrimSpace(input.Description),
		DepartmentID:        dept.ID,
		CategoryID:          category.ID,
		PriorityID:          priority.ID,
		StatusID:            status.ID,
		CreatedByID:         actorID,
		CreatedForID:        createdForID,
		ConversationContext: input.ConversationContext,
		Summary:             input.Summary,
		SLAResponseDue:      input.SLAResponseDue,
		SLAResolutionDue:    input.SLAResolutionDue,
	}
	if manager != nil {
		domain.SlotManager.Assign(ticket, manager.ID)
	}

	err = s.uow.Within(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		if err := repos.Histories.Create(ctx, &domain.TicketHistory{
			TicketID:    ticket.ID,
			ChangeType:  domain.ChangeCreated,
			NewValue:    strPtr(fmt.Sprintf("Ticket %s created", ticket.TicketNumber)),
			ChangedByID: &actorID,
		}); err != nil {
			return err
		}
		return s.events.publishEvent(ctx, repos.Outbox, events.TicketEvent{
			Event:        domain.EventCreate,
			TicketID:     ticket.ID,
			TicketNumber: ticket.TicketNumber,
			Message:      fmt.Sprintf("Ticket %s created", ticket.TicketNumber),
			CategoryName: category.Name,
			PriorityName: priority.Name,
			NewStatus:    status.Name,
			ActorID:      actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.String("ticket_id", ticket.ID), zap.String("ticket_number", ticket.TicketNumber)}
	if manager != nil {
		fields = append(fields, zap.String("manager_id", manager.ID))
	}
	s.logger.Info("ticket created", fields...)
	return s.reload(ctx, ticket.ID)
}

// FindAll lists tickets created for the actor.
func (s *TicketService) FindAll(ctx context.Context, actorID string, filter TicketListFilter) ([]domain.Ticket, Meta, error) {
	return s.list(ctx, repository.TicketFilter{CreatedForID: &actorID}, filter)
}

// ListForManager lists tickets assigned to the manager or not yet assigned.
func (s *TicketService) ListForManager(ctx context.Context, actorID string, filter TicketListFilter) ([]domain.Ticket, Meta, error) {
	return s.list(ctx, repository.TicketFilter{ManagerID: &actorID, ManagerOrUnassigned: true}, filter)
}

// ListForExecutive lists tickets assigned to the executive.
func (s *TicketService) ListForExecutive(ctx context.Context, actorID string, filter TicketListFilter) ([]domain.Ticket, Meta, error) {
	return s.list(ctx, repository.TicketFilter{ExecutiveID: &actorID}, filter)
}

func (s *TicketService) list(ctx context.Context, scope repository.TicketFilter, filter TicketListFilter) ([]domain.Ticket, Meta, error) {
	scope.StatusID = filter.StatusID
	scope.DepartmentID = filter.DepartmentID
	scope.CategoryID = filter.CategoryID
	scope.PriorityID = filter.PriorityID
	scope.Page = filter.Pagination.repoPage()

	tickets, total, err := s.repos.Tickets.List(ctx, scope)
	if err != nil {
		return nil, Meta{}, err
	}
	return tickets, filter.Pagination.meta(total), nil
}

// LatestForEmployee returns the newest ticket created for the actor, or nil.
func (s *TicketService) LatestForEmployee(ctx context.Context, actorID string) (*domain.Ticket, error) {
	ticket, err := s.repos.Tickets.LatestCreatedFor(ctx, actorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ticket, err
}

// FindOne returns a ticket visible to the principal.
func (s *TicketService) FindOne(ctx context.Context, id string, principal domain.Principal) (*domain.Ticket, error) {
	ticket, err := s.repos.Tickets.GetByID(ctx, id)
	return visible(ticket, err, principal)
}

// existing loads a ticket without applying visibility. Callers are staff
// operations already restricted by role.
func (s *TicketService) existing(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.repos.Tickets.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Ticket")
	}
	return ticket, nil
}

// FindOneByNumber returns a ticket by its number when visible to the principal.
func (s *TicketService) FindOneByNumber(ctx context.Context, number string, principal domain.Principal) (*domain.Ticket, error) {
	ticket, err := s.repos.Tickets.GetByNumber(ctx, number)
	return visible(ticket, err, principal)
}

type historyBuffer struct {
	ticketID string
	actorID  string
	entries  []*domain.TicketHistory
}

func (h *historyBuffer) add(changeType domain.ChangeType, field string, oldValue, newValue *string) {
	entry := &domain.TicketHistory{
		TicketID:    h.ticketID,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
		ChangedByID: &h.actorID,
	}
	if field != "" {
		entry.FieldName = &field
	}
	h.entries = append(h.entries, entry)
}

func (h *historyBuffer) save(ctx context.Context, repo repository.TicketHistoryRepository) error {
	for _, entry := range h.entries {
		if err := repo.Create(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// Update applies field changes, writing one history row per changed field.
func (s *TicketService) Update(ctx context.Context, id string, input UpdateTicketInput, principal domain.Principal) (*domain.Ticket, error) {
	ticket, err := s.FindOne(ctx, id, principal)
	if err != nil {
		return nil, err
	}

	now := s.now()
	history := &historyBuffer{ticketID: ticket.ID, actorID: principal.UserID}
	oldStatus := ticket.Refs.StatusName
	statusChanged := false

	if input.StatusID != nil && *input.StatusID != "" && *input.StatusID != ticket.StatusID {
		status, err := s.lookup.StatusByID(ctx, *input.StatusID)
		if err != nil {
			return nil, err
		}
		history.add(domain.ChangeStatusChanged, "status", strPtr(oldStatus), strPtr(status.Name))
		ticket.MarkStatus(status.ID, status.Name, now)
		ticket.Refs.StatusName = status.Name
		statusChanged = true
	}

	if input.PriorityID != nil && *input.PriorityID != "" && *input.PriorityID != ticket.PriorityID {
		priority, err := s.lookup.PriorityByID(ctx, *input.PriorityID)
		if err != nil {
			return nil, err
		}
		history.add(domain.ChangePriorityChanged, "priority", strPtr(ticket.Refs.PriorityName), strPtr(priority.Name))
		ticket.PriorityID = priority.ID
		ticket.Refs.PriorityName = priority.Name
	}

	if input.CategoryID != nil && *input.CategoryID != "" && *input.CategoryID != ticket.CategoryID {
		category, err := s.repos.Categories.GetByID(ctx, *input.CategoryID)
		if err != nil {
			return nil, notFound(err, "Category")
		}
		if category.DepartmentID != ticket.DepartmentID {
			return nil, apperrors.NewBadRequest("INVALID_CATEGORY_FOR_DEPARTMENT",
				"Category does not belong to the ticket's department",
				map[string]any{"categoryId": category.ID, "departmentId": ticket.DepartmentID})
		}
		history.add(domain.ChangeUpdated, "category", strPtr(ticket.Refs.CategoryName), strPtr(category.Name))
		ticket.CategoryID = category.ID
		ticket.Refs.CategoryName = category.Name
		ticket.Refs.CategoryCode = category.Code
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title cannot be blank", map[string]any{"title": "must not be blank"})
		}
		if title != ticket.Title {
			history.add(domain.ChangeUpdated, "title", strPtr(ticket.Title), strPtr(title))
			ticket.Title = title
		}
	}

	// A present empty description clears it.
	if input.Description != nil {
		if desc := strings.TrimSpace(*input.Description); desc != ticket.Description {
			history.add(domain.ChangeUpdated, "description", strPtr(ticket.Description), strPtr(desc))
			ticket.Description = desc
		}
	}

	if input.SLAResponseDue != nil && (ticket.SLAResponseDue == nil || !ticket.SLAResponseDue.Equal(*input.SLAResponseDue)) {
		history.add(domain.ChangeUpdated, "sla_response_due", formatTime(ticket.SLAResponseDue), formatTime(input.SLAResponseDue))
		ticket.SLAResponseDue = input.SLAResponseDue
	}

	if input.SLAResolutionDue != nil && (ticket.SLAResolutionDue == nil || !ticket.SLAResolutionDue.Equal(*input.SLAResolutionDue)) {
		history.add(domain.ChangeUpdated, "sla_resolution_due", formatTime(ticket.SLAResolutionDue), formatTime(input.SLAResolutionDue))
		ticket.SLAResolutionDue = input.SLAResolutionDue
	}

	if input.ConversationContext != nil {
		ticket.ConversationContext = input.ConversationContext
	}

	err = s.uow.Within(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if err := history.save(ctx, repos.Histories); err != nil {
			return err
		}
		if !statusChanged {
			return nil
		}
		return s.events.publishEvent(ctx, repos.Outbox, events.TicketEvent{
			Event:        domain.EventStatusChange,
			TicketID:     ticket.ID,
			TicketNumber: ticket.TicketNumber,
			Message:      fmt.Sprintf("Ticket %s status changed from %s to %s", ticket.TicketNumber, oldStatus, ticket.Refs.StatusName),
			OldStatus:    oldStatus,
			NewStatus:    ticket.Refs.StatusName,
			ActorID:      principal.UserID,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, ticket.ID)
}

// UpdateStatusWithComment records a comment and, when the status differs, the
// status change, atomically. Like Remove it relies on the route's role guard.
func (s *TicketService) UpdateStatusWithComment(ctx context.Context, id string, input UpdateStatusInput, principal domain.Principal) (*domain.Ticket, error) {
	content := strings.TrimSpace(input.Comment)
	if content == "" {
		return nil, apperrors.NewValidationError("comment is required", map[string]any{"comment": "required"})
	}

	ticket, err := s.existing(ctx, id)
	if err != nil {
		return nil, err
	}
	status, err := s.lookup.StatusByID(ctx, input.StatusID)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Refs.StatusName
	changed := status.ID != ticket.StatusID

	err = s.uow.Within(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if err := repos.Comments.Create(ctx, &domain.Comment{
			TicketID:   ticket.ID,
			AuthorID:   principal.UserID,
			Content:    content,
			IsInternal: input.IsInternal,
		}); err != nil {
			return err
		}

		history := &historyBuffer{ticketID: ticket.ID, actorID: principal.UserID}
		if changed {
			ticket.MarkStatus(status.ID, status.Name, s.now())
			ticket.Refs.StatusName = status.Name
			if err := repos.Tickets.Update(ctx, ticket); err != nil {
				return err
			}
			history.add(domain.ChangeStatusChanged, "status", strPtr(oldStatus), strPtr(status.Name))
		}
		history.add(domain.ChangeCommentAdded, "comment", nil, strPtr(content))
		if err := history.save(ctx, repos.Histories); err != nil {
			return err
		}

		if !changed {
			return nil
		}
		return s.events.publishEvent(ctx, repos.Outbox, events.TicketEvent{
			Event:        domain.EventStatusChange,
			TicketID:     ticket.ID,
			TicketNumber: ticket.TicketNumber,
			Message:      content,
			OldStatus:    oldStatus,
			NewStatus:    status.Name,
			ActorID:      principal.UserID,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, ticket.ID)
}

// Remove hard-deletes a ticket. History and comments cascade. Access is
// decided by the route's role guard, not by ticket visibility.
func (s *TicketService) Remove(ctx context.Context, id string, principal domain.Principal) error {
	ticket, err := s.existing(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repos.Tickets.Delete(ctx, ticket.ID); err != nil {
		return notFound(err, "Ticket")
	}
	s.logger.Info("ticket removed", zap.String("ticket_id", ticket.ID), zap.String("actor_id", principal.UserID))
	return nil
}

// ListComments returns a visible ticket's comments. Internal comments are
// limited to staff roles.
func (s *TicketService) ListComments(ctx context.Context, id string, principal domain.Principal) ([]domain.Comment, error) {
	ticket, err := s.FindOne(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	comments, err := s.repos.Comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	if principal.HasAnyRole(domain.RoleManager, domain.RoleITExecutive, domain.RoleSuperAdmin) {
		return comments, nil
	}
	public := make([]domain.Comment, 0, len(comments))
	for _, c := range comments {
		if !c.IsInternal {
			public = append(public, c)
		}
	}
	return public, nil
}

// GetTicketHistories reports history grouped per ticket, scoped by the caller's roles.
func (s *TicketService) GetTicketHistories(ctx context.Context, filter HistoryListFilter, principal domain.Principal) ([]domain.TicketHistoryGroup, Meta, error) {
	hf := repository.HistoryFilter{
		TicketID:     filter.TicketID,
		TicketNumber: filter.TicketNumber,
		ChangeType:   filter.ChangeType,
		From:         filter.From,
		To:           filter.To,
		Ascending:    strings.EqualFold(filter.Order, "ASC"),
		Page:         filter.Pagination.repoPage(),
	}

	isAdmin := principal.HasRole(domain.RoleSuperAdmin)
	if isAdmin && filter.AssignedTo != nil && *filter.AssignedTo != "" {
		hf.AssignedTo = filter.AssignedTo
	}
	switch {
	case principal.HasRole(domain.RoleManager):
		hf.ManagerID = &principal.UserID
	case principal.HasRole(domain.RoleITExecutive):
		hf.ExecutiveID = &principal.UserID
	case !isAdmin:
		hf.CreatedByID = &principal.UserID
	}

	groups, total, err := s.repos.Histories.ListGrouped(ctx, hf)
	if err != nil {
		return nil, Meta{}, err
	}
	return groups, filter.Pagination.meta(total), nil
}
