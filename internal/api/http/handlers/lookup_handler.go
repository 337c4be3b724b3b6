package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/itsm-platform/ticketing-service/internal/api/dto"
	"github.com/itsm-platform/ticketing-service/internal/service"
)

// LookupHandler serves the public reference catalogs.
type LookupHandler struct {
	lookup *service.LookupService
}

// NewLookupHandler constructs handler.
func NewLookupHandler(lookup *service.LookupService) *LookupHandler {
	return &LookupHandler{lookup: lookup}
}

// Categories GET /lookup/categories, optionally narrowed by ?departmentId=.
func (h *LookupHandler) Categories(c *fiber.Ctx) error {
	items, err := h.lookup.Categories(c.UserContext(), optional(c.Query("departmentId")))
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewCategoryResponses(items))
}

// Statuses GET /lookup/statuses.
func (h *LookupHandler) Statuses(c *fiber.Ctx) error {
	items, err := h.lookup.Statuses(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewStatusResponses(items))
}

// Priorities GET /lookup/priorities.
func (h *LookupHandler) Priorities(c *fiber.Ctx) error {
	items, err := h.lookup.Priorities(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewPriorityResponses(items))
}

// Roles GET /lookup/roles.
func (h *LookupHandler) Roles(c *fiber.Ctx) error {
	items, err := h.lookup.Roles(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.RoleResponse, 0, len(items))
	for _, r := range items {
		out = append(out, dto.NewRoleResponse(r))
	}
	return data(c, fiber.StatusOK, out)
}

// Departments GET /lookup/departments.
func (h *LookupHandler) Departments(c *fiber.Ctx) error {
	items, err := h.lookup.Departments(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.DepartmentResponse, 0, len(items))
	for _, d := range items {
		out = append(out, dto.NewDepartmentResponse(d))
	}
	return data(c, fiber.StatusOK, out)
}

// ChangeTypes GET /lookup/change-types.
func (h *LookupHandler) ChangeTypes(c *fiber.Ctx) error {
	return data(c, fiber.StatusOK, h.lookup.ChangeTypes())
}
