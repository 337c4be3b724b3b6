package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/itsm-platform/ticketing-service/internal/api/dto"
	"github.com/itsm-platform/ticketing-service/internal/service"
)

// UsersHandler exposes login and user account endpoints.
type UsersHandler struct {
	auth  *service.AuthService
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, users *service.UserService) *UsersHandler {
	return &UsersHandler{auth: authService, users: users}
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.LoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   result.ExpiresAt,
		User:        dto.NewUserResponse(result.User),
	})
}

// Register handles POST /users/register. New accounts always get the employee role.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.users.Register(c.UserContext(), service.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		return err
	}
	return data(c, fiber.StatusCreated, dto.NewUserResponse(user))
}

// Create handles POST /users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.users.CreateUser(c.UserContext(), service.CreateUserInput{
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		RoleIDs:       req.RoleIDs,
		DepartmentIDs: req.DepartmentIDs,
		TeamID:        req.TeamID,
		Skills:        req.Skills,
		IsAvailable:   req.IsAvailable,
	})
	if err != nil {
		return err
	}
	return data(c, fiber.StatusCreated, dto.NewUserResponse(user))
}

// List handles GET /users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	filter, err := userListFilter(c)
	if err != nil {
		return err
	}
	users, meta, err := h.users.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return page(c, dto.NewUserResponses(users), meta)
}

// Me handles GET /users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	user, err := h.users.GetByID(c.UserContext(), p.UserID)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewUserResponse(user))
}

// Get handles GET /users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewUserResponse(user))
}

func userListFilter(c *fiber.Ctx) (service.UserListFilter, error) {
	var q dto.UserListQuery
	if err := bindQuery(c, &q); err != nil {
		return service.UserListFilter{}, err
	}
	return service.UserListFilter{
		RoleID:       optional(q.RoleID),
		DepartmentID: optional(q.DepartmentID),
		CategoryID:   optional(q.CategoryID),
		Search:       optional(q.Search),
		Pagination:   service.Pagination{Page: q.Page, Limit: q.Limit},
	}, nil
}
