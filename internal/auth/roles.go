package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

// RequireRoles ensures the caller holds at least one of the allowed roles.
// With no roles it only requires authentication.
func RequireRoles(allowed ...domain.RoleKey) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowed) == 0 || principal.HasAnyRole(allowed...) {
			return c.Next()
		}
		return apperrors.NewForbidden("insufficient role")
	}
}

// RequireAuthenticated ensures a principal is present.
func RequireAuthenticated() fiber.Handler {
	return RequireRoles()
}
