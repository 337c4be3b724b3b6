package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/itsm-platform/ticketing-service/internal/api/dto"
	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/service"
)

// TicketsHandler manages ticket endpoints for every role.
type TicketsHandler struct {
	tickets     *service.TicketService
	assignments *service.AssignmentService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, assignments *service.AssignmentService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignments: assignments}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.Create(c.UserContext(), p.UserID, service.CreateTicketInput{
		Title:               req.Title,
		Description:         req.Description,
		DepartmentID:        req.DepartmentID,
		CategoryID:          req.CategoryID,
		PriorityID:          req.PriorityID,
		CreatedForID:        req.CreatedForID,
		ConversationContext: req.ConversationContext,
		Summary:             req.Summary,
		SLAResponseDue:      req.SLAResponseDue,
		SLAResolutionDue:    req.SLAResolutionDue,
	})
	if err != nil {
		return err
	}
	return data(c, fiber.StatusCreated, dto.NewTicketResponse(ticket))
}

// List GET /tickets: tickets created for the caller.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	return h.list(c, h.tickets.FindAll)
}

// ListForManager GET /tickets/it-manager.
func (h *TicketsHandler) ListForManager(c *fiber.Ctx) error {
	return h.list(c, h.tickets.ListForManager)
}

// ListForExecutive GET /tickets/it-executive.
func (h *TicketsHandler) ListForExecutive(c *fiber.Ctx) error {
	return h.list(c, h.tickets.ListForExecutive)
}

type ticketLister func(ctx context.Context, actorID string, filter service.TicketListFilter) ([]domain.Ticket, service.Meta, error)

func (h *TicketsHandler) list(c *fiber.Ctx, fetch ticketLister) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var q dto.TicketListQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	tickets, meta, err := fetch(c.UserContext(), p.UserID, service.TicketListFilter{
		StatusID:     optional(q.StatusID),
		DepartmentID: optional(q.DepartmentID),
		CategoryID:   optional(q.CategoryID),
		PriorityID:   optional(q.PriorityID),
		Pagination:   service.Pagination{Page: q.Page, Limit: q.Limit},
	})
	if err != nil {
		return err
	}
	return page(c, dto.NewTicketResponses(tickets), meta)
}

// Latest GET /tickets/employee/latest. Responds with null data when the caller has no tickets.
func (h *TicketsHandler) Latest(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.LatestForEmployee(c.UserContext(), p.UserID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return data(c, fiber.StatusOK, nil)
	}
	return data(c, fiber.StatusOK, dto.NewTicketResponse(ticket))
}

// Histories GET /tickets/ticket-histories.
func (h *TicketsHandler) Histories(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var q dto.HistoryQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	from, err := parseTime("from", q.From)
	if err != nil {
		return err
	}
	to, err := parseTime("to", q.To)
	if err != nil {
		return err
	}
	filter := service.HistoryListFilter{
		TicketID:     optional(q.TicketID),
		TicketNumber: optional(q.TicketNumber),
		AssignedTo:   optional(q.AssignedTo),
		From:         from,
		To:           to,
		Order:        q.Order,
		Pagination:   service.Pagination{Page: q.Page, Limit: q.Limit},
	}
	if q.ChangeType != "" {
		ct := domain.ChangeType(q.ChangeType)
		filter.ChangeType = &ct
	}
	groups, meta, err := h.tickets.GetTicketHistories(c.UserContext(), filter, p)
	if err != nil {
		return err
	}
	return page(c, dto.NewHistoryGroupResponses(groups), meta)
}

// GetByNumber GET /tickets/number/:ticketNumber.
func (h *TicketsHandler) GetByNumber(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.FindOneByNumber(c.UserContext(), c.Params("ticketNumber"), p)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewTicketResponse(ticket))
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.FindOne(c.UserContext(), c.Params("id"), p)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewTicketResponse(ticket))
}

// Update PATCH /tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.Update(c.UserContext(), c.Params("id"), service.UpdateTicketInput{
		StatusID:            req.StatusID,
		PriorityID:          req.PriorityID,
		CategoryID:          req.CategoryID,
		Title:               req.Title,
		Description:         req.Description,
		SLAResponseDue:      req.SLAResponseDue,
		SLAResolutionDue:    req.SLAResolutionDue,
		ConversationContext: req.ConversationContext,
	}, p)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewTicketResponse(ticket))
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.UpdateStatusWithComment(c.UserContext(), c.Params("id"), service.UpdateStatusInput{
		StatusID:   req.StatusID,
		Comment:    req.Comment,
		IsInternal: req.IsInternal,
	}, p)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewTicketResponse(ticket))
}

// Delete DELETE /tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Remove(c.UserContext(), c.Params("id"), p); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Comments GET /tickets/:id/comments.
func (h *TicketsHandler) Comments(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	comments, err := h.tickets.ListComments(c.UserContext(), c.Params("id"), p)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewCommentResponses(comments))
}

// AssignToManager POST /tickets/assign-to-manager: the calling manager claims the ticket.
func (h *TicketsHandler) AssignToManager(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.AssignToManagerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.assignments.AssignToManagerSelf(c.UserContext(), req.TicketID, p.UserID)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewTicketResponse(ticket))
}

// AssignToExecutive POST /tickets/assign-to-executive.
func (h *TicketsHandler) AssignToExecutive(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.AssignToExecutiveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.assignments.AssignToExecutive(c.UserContext(), req.TicketID, req.ExecutiveID, p)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewTicketResponse(ticket))
}
