package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/itsm-platform/ticketing-service/internal/api/dto"
	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/service"
)

// AdminHandler exposes super-admin operations.
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// AddRole POST /admin/users/roles/add.
func (h *AdminHandler) AddRole(c *fiber.Ctx) error {
	var req dto.UserRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.admin.AddRoleToUser(c.UserContext(), req.UserID, req.RoleID)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewUserResponse(user))
}

// RemoveRole POST /admin/users/roles/remove.
func (h *AdminHandler) RemoveRole(c *fiber.Ctx) error {
	var req dto.UserRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.admin.RemoveRoleFromUser(c.UserContext(), req.UserID, req.RoleID)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewUserResponse(user))
}

// AddCategory POST /admin/users/categories/add.
func (h *AdminHandler) AddCategory(c *fiber.Ctx) error {
	var req dto.UserCategoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	mapping, err := h.admin.AddCategoryToUser(c.UserContext(), req.UserID, req.CategoryID)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusCreated, dto.NewUserCategoryResponse(mapping))
}

// RemoveCategory POST /admin/users/categories/remove.
func (h *AdminHandler) RemoveCategory(c *fiber.Ctx) error {
	var req dto.UserCategoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.admin.RemoveCategoryFromUser(c.UserContext(), req.UserID, req.CategoryID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListUsers GET /admin/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	filter, err := userListFilter(c)
	if err != nil {
		return err
	}
	users, meta, err := h.admin.FindAllUsers(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return page(c, dto.NewUserResponses(users), meta)
}

// AssignTicket POST /admin/tickets/assign.
func (h *AdminHandler) AssignTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.AdminAssignTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.admin.AssignTicketToITManager(c.UserContext(), req.TicketID, req.ManagerID, p.UserID)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewTicketResponse(ticket))
}

// ListRules GET /admin/notification-rules.
func (h *AdminHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.admin.ListNotificationRules(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewRuleResponses(rules))
}

// UpsertRule PUT /admin/notification-rules. Omitting isActive activates the rule.
func (h *AdminHandler) UpsertRule(c *fiber.Ctx) error {
	var req dto.NotificationRuleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	recipients := make([]domain.RecipientType, 0, len(req.RecipientTypes))
	for _, r := range req.RecipientTypes {
		recipients = append(recipients, domain.RecipientType(r))
	}
	active := req.IsActive == nil || *req.IsActive
	rule, err := h.admin.UpsertNotificationRule(c.UserContext(), domain.TicketEventType(req.Event), recipients, active)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewRuleResponse(rule))
}
