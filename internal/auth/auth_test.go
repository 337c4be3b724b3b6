package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

type stubUsers map[string]*domain.User

func (s stubUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func newTestApp(tokens *TokenManager, users stubUsers, guard fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if de, ok := err.(*apperrors.DomainError); ok {
				return c.Status(de.HTTPStatus).SendString(de.Code)
			}
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		},
	})
	mw := NewAuthMiddleware(tokens, users)
	app.Get("/me", mw.Handle, guard, func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.UserID)
	})
	return app
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	user := &domain.User{ID: "u1", Email: "a@b.c", Roles: []domain.Role{{Key: domain.RoleManager}}}

	token, exp, err := tm.GenerateToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.Equal(t, []domain.RoleKey{domain.RoleManager}, claims.Roles)

	_, err = NewTokenManager("other", time.Minute).ParseToken(token)
	assert.Error(t, err)
}

func TestMiddlewareAndRoleGuard(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	manager := &domain.User{ID: "m1", Email: "m@x.io", Roles: []domain.Role{{Key: domain.RoleManager}}}
	employee := &domain.User{ID: "e1", Email: "e@x.io", Roles: []domain.Role{{Key: domain.RoleEmployee}}}
	users := stubUsers{"m1": manager, "e1": employee}
	app := newTestApp(tm, users, RequireRoles(domain.RoleManager, domain.RoleSuperAdmin))

	managerToken, _, err := tm.GenerateToken(manager)
	require.NoError(t, err)
	employeeToken, _, err := tm.GenerateToken(employee)
	require.NoError(t, err)
	ghostToken, _, err := tm.GenerateToken(&domain.User{ID: "ghost"})
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"bad scheme", "Basic abc", fiber.StatusUnauthorized},
		{"garbage token", "Bearer nope", fiber.StatusUnauthorized},
		{"unknown user", "Bearer " + ghostToken, fiber.StatusUnauthorized},
		{"wrong role", "Bearer " + employeeToken, fiber.StatusForbidden},
		{"allowed", "Bearer " + managerToken, fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRolesReloadedFromStore(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	user := &domain.User{ID: "u1", Roles: []domain.Role{{Key: domain.RoleManager}}}
	token, _, err := tm.GenerateToken(user)
	require.NoError(t, err)

	demoted := &domain.User{ID: "u1", Roles: []domain.Role{{Key: domain.RoleEmployee}}}
	app := newTestApp(tm, stubUsers{"u1": demoted}, RequireRoles(domain.RoleManager))

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "s3cret!"))
	assert.Error(t, ComparePassword(hash, "wrong"))
}
