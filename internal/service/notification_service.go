package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/events"
	"github.com/itsm-platform/ticketing-service/internal/repository"
)

// TemplateMailer renders and sends a named email template.
type TemplateMailer interface {
	SendTemplate(ctx context.Context, to, template string, data map[string]any) error
}

// NotificationService fans lifecycle events out to in-app notifications and email.
type NotificationService struct {
	repos  *repository.Repositories
	uow    repository.UnitOfWork
	lookup *LookupService
	mailer TemplateMailer
	logger *zap.Logger
	now    func() time.Time
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Repos      *repository.Repositories
	UnitOfWork repository.UnitOfWork
	Lookup     *LookupService
	Mailer     TemplateMailer
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &NotificationService{
		repos:  deps.Repos,
		uow:    deps.UnitOfWork,
		lookup: deps.Lookup,
		mailer: deps.Mailer,
		logger: logger,
		now:    now,
	}
}

// Create notifies every recipient the event's active rule selects. Rows commit
// together and a failed insert aborts for retry. Email failures are only logged.
func (s *NotificationService) Create(ctx context.Context, event events.TicketEvent) error {
	rule, err := s.lookup.ActiveRule(ctx, event.Event)
	if err != nil {
		return fmt.Errorf("load notification rule: %w", err)
	}
	if rule == nil {
		return nil
	}

	ticket, err := s.repos.Tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return fmt.Errorf("load ticket %s: %w", event.TicketID, err)
	}

	recipients, err := s.resolveRecipients(ctx, rule.RecipientTypes, ticket)
	if err != nil {
		return err
	}

	message := event.Message
	if message == "" {
		message = fmt.Sprintf("Ticket %s updated", ticket.TicketNumber)
	}

	err = s.uow.Within(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		for _, user := range recipients {
			if err := repos.Notifications.Create(ctx, &domain.Notification{
				UserID:      user.ID,
				ManagerID:   ticket.AssignedToManagerID,
				ExecutiveID: ticket.AssignedToExecutiveID,
				Message:     message,
				Status:      domain.NotificationUnread,
				TicketID:    &ticket.ID,
			}); err != nil {
				return fmt.Errorf("create notification for %s: %w", user.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Emails go out only once every row is committed.
	if s.mailer != nil {
		for _, user := range recipients {
			requester := user.ID == ticket.CreatedForID || user.ID == ticket.CreatedByID
			template := templateFor(event, requester)
			if err := s.mailer.SendTemplate(ctx, user.Email, template, templateData(event, ticket, user)); err != nil {
				s.logger.Warn("notification email failed",
					zap.String("ticket_id", ticket.ID),
					zap.String("user_id", user.ID),
					zap.String("template", template),
					zap.Error(err))
			}
		}
	}

	s.logger.Info("notifications created",
		zap.String("event", string(event.Event)),
		zap.String("ticket_id", ticket.ID),
		zap.Int("recipients", len(recipients)))
	return nil
}

// resolveRecipients expands recipient types into users, deduplicated by id in
// first-seen order.
func (s *NotificationService) resolveRecipients(ctx context.Context, types []domain.RecipientType, ticket *domain.Ticket) ([]domain.User, error) {
	var users []domain.User
	for _, recipientType := range types {
		switch recipientType {
		case domain.RecipientCreatedBy:
			user, err := s.repos.Users.GetByID(ctx, ticket.CreatedForID)
			if errors.Is(err, pgx.ErrNoRows) {
				user, err = s.repos.Users.GetByID(ctx, ticket.CreatedByID)
			}
			if err != nil {
				return nil, fmt.Errorf("load requester: %w", err)
			}
			users = append(users, *user)
		case domain.RecipientAssignedTo:
			for _, slot := range []domain.AssignmentSlot{domain.SlotManager, domain.SlotExecutive} {
				id := slot.Assignee(ticket)
				if id == nil {
					continue
				}
				user, err := s.repos.Users.GetByID(ctx, *id)
				if errors.Is(err, pgx.ErrNoRows) {
					continue
				}
				if err != nil {
					return nil, fmt.Errorf("load assignee: %w", err)
				}
				users = append(users, *user)
			}
		case domain.RecipientDepartmentITManagers:
			managers, err := s.repos.Users.ListManagersByDepartment(ctx, ticket.DepartmentID)
			if err != nil {
				return nil, fmt.Errorf("load department managers: %w", err)
			}
			users = append(users, managers...)
		case domain.RecipientCategoryITManagers:
			managers, err := s.repos.Users.ListManagersByCategory(ctx, ticket.CategoryID)
			if err != nil {
				return nil, fmt.Errorf("load category managers: %w", err)
			}
			users = append(users, managers...)
		default:
			s.logger.Warn("unknown recipient type", zap.String("recipient_type", string(recipientType)))
		}
	}
	return lo.UniqBy(users, func(u domain.User) string { return u.ID }), nil
}

func templateFor(event events.TicketEvent, requester bool) string {
	var name string
	switch {
	case event.Event == domain.EventCreate:
		name = "ticket-created"
	case event.Event == domain.EventAssign:
		name = "ticket-assigned"
	case event.IsResolvedTransition():
		name = "ticket-resolved"
	default:
		name = "ticket-status-change"
	}
	if !requester {
		name += "-manager"
	}
	return name
}

func templateData(event events.TicketEvent, ticket *domain.Ticket, recipient domain.User) map[string]any {
	oldStatus := event.OldStatus
	if oldStatus == "" {
		oldStatus = "Unknown"
	}
	newStatus := event.NewStatus
	if newStatus == "" {
		newStatus = ticket.Refs.StatusName
	}
	data := map[string]any{
		"userName":     recipient.FullName,
		"ticketNumber": ticket.TicketNumber,
		"title":        ticket.Title,
		"categoryName": ticket.Refs.CategoryName,
		"priorityName": ticket.Refs.PriorityName,
		"statusName":   ticket.Refs.StatusName,
		"oldStatus":    oldStatus,
		"newStatus":    newStatus,
		"assigneeName": lo.Ternary(ticket.Refs.ExecutiveName != "", ticket.Refs.ExecutiveName, ticket.Refs.ManagerName),
	}
	if event.Event == domain.EventStatusChange {
		data["comment"] = event.Message
	}
	return data
}

// FindAllUnread lists the user's unread notifications, newest first.
func (s *NotificationService) FindAllUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	status := domain.NotificationUnread
	return s.repos.Notifications.ListByUser(ctx, userID, &status)
}

// FindAll lists the user's notifications, newest first.
func (s *NotificationService) FindAll(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.repos.Notifications.ListByUser(ctx, userID, nil)
}

// MarkAsRead marks the user's notification read. Already-read notifications
// are returned unchanged.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID string) (*domain.Notification, error) {
	notification, err := s.repos.Notifications.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, notFound(err, "Notification")
	}
	if notification.Status == domain.NotificationRead {
		return notification, nil
	}
	if err := s.repos.Notifications.MarkRead(ctx, notification, s.now()); err != nil {
		return nil, notFound(err, "Notification")
	}
	return notification, nil
}
