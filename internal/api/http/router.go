package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/itsm-platform/ticketing-service/internal/api/http/handlers"
	"github.com/itsm-platform/ticketing-service/internal/auth"
	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Lookup         *handlers.LookupHandler
	Admin          *handlers.AdminHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	const (
		employee  = domain.RoleEmployee
		manager   = domain.RoleManager
		executive = domain.RoleITExecutive
		admin     = domain.RoleSuperAdmin
	)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Post("/auth/login", cfg.Users.Login)

	lookup := app.Group("/lookup")
	lookup.Get("/categories", cfg.Lookup.Categories)
	lookup.Get("/statuses", cfg.Lookup.Statuses)
	lookup.Get("/priorities", cfg.Lookup.Priorities)
	lookup.Get("/roles", cfg.Lookup.Roles)
	lookup.Get("/departments", cfg.Lookup.Departments)
	lookup.Get("/change-types", cfg.Lookup.ChangeTypes)

	authn := cfg.AuthMiddleware.Handle

	users := app.Group("/users")
	users.Post("/register", cfg.Users.Register)
	users.Post("/", authn, auth.RequireRoles(admin), cfg.Users.Create)
	users.Get("/", authn, auth.RequireRoles(manager, admin), cfg.Users.List)
	users.Get("/me", authn, cfg.Users.Me)
	users.Get("/:id", authn, cfg.Users.Get)

	tickets := app.Group("/tickets", authn)
	tickets.Post("/", cfg.Tickets.Create)
	tickets.Get("/", cfg.Tickets.List)
	tickets.Get("/it-manager", auth.RequireRoles(manager), cfg.Tickets.ListForManager)
	tickets.Get("/it-executive", auth.RequireRoles(executive), cfg.Tickets.ListForExecutive)
	tickets.Get("/employee/latest", auth.RequireRoles(employee), cfg.Tickets.Latest)
	tickets.Get("/ticket-histories", cfg.Tickets.Histories)
	tickets.Get("/number/:ticketNumber", cfg.Tickets.GetByNumber)
	tickets.Post("/assign-to-manager", auth.RequireRoles(manager), cfg.Tickets.AssignToManager)
	tickets.Post("/assign-to-executive", auth.RequireRoles(manager, admin), cfg.Tickets.AssignToExecutive)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", auth.RequireRoles(manager, executive, employee), cfg.Tickets.Update)
	tickets.Patch("/:id/status", auth.RequireRoles(manager, executive), cfg.Tickets.UpdateStatus)
	tickets.Delete("/:id", auth.RequireRoles(manager, executive, admin), cfg.Tickets.Delete)
	tickets.Get("/:id/comments", cfg.Tickets.Comments)

	adminGroup := app.Group("/admin", authn, auth.RequireRoles(admin))
	adminGroup.Post("/users/roles/add", cfg.Admin.AddRole)
	adminGroup.Post("/users/roles/remove", cfg.Admin.RemoveRole)
	adminGroup.Post("/users/categories/add", cfg.Admin.AddCategory)
	adminGroup.Post("/users/categories/remove", cfg.Admin.RemoveCategory)
	adminGroup.Get("/users", cfg.Admin.ListUsers)
	adminGroup.Post("/tickets/assign", cfg.Admin.AssignTicket)
	adminGroup.Get("/notification-rules", cfg.Admin.ListRules)
	adminGroup.Put("/notification-rules", cfg.Admin.UpsertRule)

	notifications := app.Group("/notifications", authn)
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/unread", cfg.Notifications.Unread)
	notifications.Patch("/:id/read", cfg.Notifications.MarkRead)
}
