package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/events"
	"github.com/itsm-platform/ticketing-service/internal/repository"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

// AssignmentService moves tickets between the manager and executive tiers.
type AssignmentService struct {
	ticketCore
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps TicketDependencies) *AssignmentService {
	return &AssignmentService{ticketCore: newTicketCore(deps)}
}

// AssignToManagerSelf lets a manager claim a ticket from one of their departments.
func (s *AssignmentService) AssignToManagerSelf(ctx context.Context, ticketID, actorID string) (*domain.Ticket, error) {
	ticket, err := s.repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFound(err, "Ticket")
	}
	manager, err := s.repos.Users.GetByID(ctx, actorID)
	if err != nil {
		return nil, notFound(err, "User")
	}
	if !manager.HasRole(domain.RoleManager) {
		return nil, apperrors.NewBadRequest("NOT_A_MANAGER", "user is not an IT manager", nil)
	}
	if !manager.InDepartment(ticket.DepartmentID) {
		return nil, apperrors.NewBadRequest("DEPARTMENT_MISMATCH",
			"Ticket department does not match any of the IT Manager's assigned departments",
			map[string]any{"departmentId": ticket.DepartmentID})
	}
	return s.assign(ctx, ticket, domain.SlotManager, manager, actorID, "Ticket assigned to IT Manager")
}

// AssignToExecutive hands a ticket to an IT executive. Only the ticket's
// manager or a super admin may do so.
func (s *AssignmentService) AssignToExecutive(ctx context.Context, ticketID, executiveID string, principal domain.Principal) (*domain.Ticket, error) {
	ticket, err := s.repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFound(err, "Ticket")
	}

	owner := domain.SlotManager.Assignee(ticket)
	isOwningManager := principal.HasRole(domain.RoleManager) && owner != nil && *owner == principal.UserID
	if !isOwningManager && !principal.HasRole(domain.RoleSuperAdmin) {
		return nil, apperrors.NewForbidden("Only the ticket's IT Manager can assign it to an IT Executive")
	}

	executive, err := s.repos.Users.GetByID(ctx, executiveID)
	if err != nil {
		return nil, notFound(err, "User")
	}
	if !executive.HasRole(domain.RoleITExecutive) {
		return nil, apperrors.NewBadRequest("NOT_AN_EXECUTIVE", "Can only assign tickets to IT Executives", nil)
	}
	return s.assign(ctx, ticket, domain.SlotExecutive, executive, principal.UserID, "Ticket assigned to IT Executive")
}

// assign stores assignee in slot, moves the ticket to Assigned and records the
// history row and ASSIGN event in one transaction.
func (s *AssignmentService) assign(ctx context.Context, ticket *domain.Ticket, slot domain.AssignmentSlot, assignee *domain.User, actorID, message string) (*domain.Ticket, error) {
	assigned, err := s.lookup.StatusByName(ctx, domain.StatusAssigned)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Refs.StatusName
	var oldName *string
	if name := assigneeName(ticket, slot); name != "" {
		oldName = strPtr(name)
	}

	slot.Assign(ticket, assignee.ID)
	ticket.MarkStatus(assigned.ID, assigned.Name, s.now())

	err = s.uow.Within(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		history := &historyBuffer{ticketID: ticket.ID, actorID: actorID}
		history.add(domain.ChangeAssigned, slot.FieldName(), oldName, strPtr(assignee.FullName))
		if err := history.save(ctx, repos.Histories); err != nil {
			return err
		}
		return s.events.publishEvent(ctx, repos.Outbox, events.TicketEvent{
			Event:        domain.EventAssign,
			TicketID:     ticket.ID,
			TicketNumber: ticket.TicketNumber,
			Message:      message,
			CategoryName: ticket.Refs.CategoryName,
			PriorityName: ticket.Refs.PriorityName,
			OldStatus:    oldStatus,
			NewStatus:    assigned.Name,
			ActorID:      actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket assigned",
		zap.String("ticket_id", ticket.ID),
		zap.String("slot", slot.FieldName()),
		zap.String("assignee_id", assignee.ID))
	return s.reload(ctx, ticket.ID)
}

func assigneeName(ticket *domain.Ticket, slot domain.AssignmentSlot) string {
	if slot == domain.SlotExecutive {
		return ticket.Refs.ExecutiveName
	}
	return ticket.Refs.ManagerName
}
