package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsm-platform/ticketing-service/internal/auth"
	"github.com/itsm-platform/ticketing-service/internal/domain"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

func TestRegisterAlwaysCreatesEmployee(t *testing.T) {
	f := newFixture()

	user, err := f.users.Register(context.Background(), CreateUserInput{
		Email:    "  New.Hire@Example.com ",
		Password: "s3cret-pass",
		FullName: "New Hire",
		RoleIDs:  []string{"role-admin"},
	})
	require.NoError(t, err)
	assert.Equal(t, "new.hire@example.com", user.Email)
	assert.Equal(t, []domain.RoleKey{domain.RoleEmployee}, user.RoleKeys())
	assert.Equal(t, "EMP-USR-1001", user.UniqueKey)
	assert.True(t, user.IsAvailable)
	require.NoError(t, auth.ComparePassword(user.PasswordHash, "s3cret-pass"))

	_, err = f.users.Register(context.Background(), CreateUserInput{Email: "NEW.HIRE@example.com", Password: "x", FullName: "Dup"})
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestCreateUserRoles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	manager, err := f.users.CreateUser(ctx, CreateUserInput{
		Email:         "mgr@example.com",
		Password:      "pw",
		FullName:      "Morgan",
		RoleIDs:       []string{"role-manager", "role-manager"},
		DepartmentIDs: []string{"dept-it"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.RoleKey{domain.RoleManager, domain.RoleEmployee}, manager.RoleKeys())
	assert.Equal(t, "MGR-USR-1001", manager.UniqueKey)
	assert.True(t, manager.InDepartment("dept-it"))

	exec, err := f.users.CreateUser(ctx, CreateUserInput{Email: "exec@example.com", Password: "pw", FullName: "Eli", RoleIDs: []string{"role-executive"}})
	require.NoError(t, err)
	assert.Equal(t, []domain.RoleKey{domain.RoleITExecutive}, exec.RoleKeys())
	assert.Equal(t, "EXC-USR-1001", exec.UniqueKey)

	plain, err := f.users.CreateUser(ctx, CreateUserInput{Email: "plain@example.com", Password: "pw", FullName: "Pat", IsAvailable: new(bool)})
	require.NoError(t, err)
	assert.Equal(t, []domain.RoleKey{domain.RoleEmployee}, plain.RoleKeys())
	assert.False(t, plain.IsAvailable)

	_, err = f.users.CreateUser(ctx, CreateUserInput{Email: "bad@example.com", Password: "pw", RoleIDs: []string{"role-nope"}})
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	_, err = f.users.CreateUser(ctx, CreateUserInput{Email: "nodept@example.com", Password: "pw", DepartmentIDs: []string{"dept-missing"}})
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestLogin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.users.Register(ctx, CreateUserInput{Email: "login@example.com", Password: "correct-horse", FullName: "Lee"})
	require.NoError(t, err)

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	svc := NewAuthService(f.store.Repos().Users, tokens)

	result, err := svc.Login(ctx, "Login@Example.com", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, "login@example.com", result.User.Email)

	claims, err := tokens.ParseToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.Subject)
	assert.Equal(t, []domain.RoleKey{domain.RoleEmployee}, claims.Roles)

	for _, tc := range []struct{ email, password string }{
		{"login@example.com", "wrong"},
		{"nobody@example.com", "correct-horse"},
	} {
		_, err := svc.Login(ctx, tc.email, tc.password)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
		assert.Equal(t, "Invalid credentials", err.Error())
	}
}
