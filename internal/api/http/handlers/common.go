package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/itsm-platform/ticketing-service/internal/api/dto"
	"github.com/itsm-platform/ticketing-service/internal/auth"
	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/service"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

// bind decodes the JSON body into req and validates it.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

// bindQuery decodes query parameters into req and validates it.
func bindQuery(c *fiber.Ctx, req any) error {
	if err := c.QueryParser(req); err != nil {
		return apperrors.NewValidationError("invalid query parameters", nil)
	}
	return dto.Validate(req)
}

func principal(c *fiber.Ctx) (domain.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok || p == nil {
		return domain.Principal{}, apperrors.NewUnauthorized("authentication required")
	}
	return *p, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.NewValidationError("Validation failed", map[string]any{field: "must be an RFC 3339 timestamp or YYYY-MM-DD date"})
}

func data(c *fiber.Ctx, status int, payload any) error {
	return c.Status(status).JSON(fiber.Map{"data": payload})
}

func page(c *fiber.Ctx, items any, meta service.Meta) error {
	return c.JSON(fiber.Map{"data": items, "meta": meta})
}
