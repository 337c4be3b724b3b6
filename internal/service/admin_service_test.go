package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

func TestAddManagerRoleAlsoGrantsEmployee(t *testing.T) {
	f := newFixture()
	bare := f.store.AddUser("bare", "Bo Bare", nil)
	ctx := context.Background()

	user, err := f.admin.AddRoleToUser(ctx, bare.ID, "role-manager")
	require.NoError(t, err)
	assert.True(t, user.HasRole(domain.RoleManager))
	assert.True(t, user.HasRole(domain.RoleEmployee))

	_, err = f.admin.AddRoleToUser(ctx, bare.ID, "role-manager")
	assert.True(t, apperrors.IsCode(err, "ROLE_ALREADY_ASSIGNED"))

	_, err = f.admin.AddRoleToUser(ctx, bare.ID, "role-unknown")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	_, err = f.admin.AddRoleToUser(ctx, "ghost", "role-manager")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestSuperAdminRoleCannotBeRemoved(t *testing.T) {
	f := newFixture()
	admin := f.store.AddUser("admin", "Ada Admin", []domain.RoleKey{domain.RoleSuperAdmin})
	emp := f.store.AddUser("emp", "Erin Employee", []domain.RoleKey{domain.RoleEmployee})

	for _, u := range []*domain.User{admin, emp} {
		_, err := f.admin.RemoveRoleFromUser(context.Background(), u.ID, "role-admin")
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), u.ID)
	}
	stored, err := f.users.GetByID(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasRole(domain.RoleSuperAdmin))
}

func TestRemoveManagerRoleDropsCategoryMappings(t *testing.T) {
	f := newFixture()
	_, mgrA, _ := seedStaff(f)
	ctx := context.Background()

	mapping, err := f.admin.AddCategoryToUser(ctx, mgrA.ID, "cat-hw")
	require.NoError(t, err)
	assert.NotEmpty(t, mapping.ID)

	_, err = f.admin.AddCategoryToUser(ctx, mgrA.ID, "cat-hw")
	assert.True(t, apperrors.IsCode(err, "CATEGORY_ALREADY_MAPPED"))

	user, err := f.admin.RemoveRoleFromUser(ctx, mgrA.ID, "role-manager")
	require.NoError(t, err)
	assert.False(t, user.HasRole(domain.RoleManager))
	assert.True(t, user.HasRole(domain.RoleEmployee))
	assert.Empty(t, f.store.UserCategories)

	_, err = f.admin.RemoveRoleFromUser(ctx, mgrA.ID, "role-manager")
	assert.True(t, apperrors.IsCode(err, "ROLE_NOT_ASSIGNED"))
}

func TestCategoryMappingRules(t *testing.T) {
	f := newFixture()
	emp, mgrA, _ := seedStaff(f)
	ctx := context.Background()

	_, err := f.admin.AddCategoryToUser(ctx, emp.ID, "cat-hw")
	assert.True(t, apperrors.IsCode(err, "NOT_A_MANAGER"))

	_, err = f.admin.AddCategoryToUser(ctx, mgrA.ID, "cat-missing")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	err = f.admin.RemoveCategoryFromUser(ctx, mgrA.ID, "cat-hw")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	_, err = f.admin.AddCategoryToUser(ctx, mgrA.ID, "cat-sw")
	require.NoError(t, err)
	require.NoError(t, f.admin.RemoveCategoryFromUser(ctx, mgrA.ID, "cat-sw"))
}

func TestAssignTicketToITManagerRequiresCategoryMapping(t *testing.T) {
	f := newFixture()
	emp, mgrA, mgrB := seedStaff(f)
	admin := f.store.AddUser("admin", "Ada Admin", []domain.RoleKey{domain.RoleSuperAdmin})
	ticket := createTicket(t, f, emp.ID)
	ctx := context.Background()

	_, err := f.admin.AssignTicketToITManager(ctx, ticket.ID, emp.ID, admin.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_A_MANAGER"))

	_, err = f.admin.AssignTicketToITManager(ctx, ticket.ID, mgrB.ID, admin.ID)
	assert.True(t, apperrors.IsCode(err, "CATEGORY_NOT_MAPPED"))
	assert.Equal(t, mgrA.ID, *f.store.Ticket(ticket.ID).AssignedToManagerID)

	_, err = f.admin.AddCategoryToUser(ctx, mgrB.ID, "cat-hw")
	require.NoError(t, err)
	assigned, err := f.admin.AssignTicketToITManager(ctx, ticket.ID, mgrB.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, mgrB.ID, *assigned.AssignedToManagerID)
	assert.Equal(t, domain.StatusAssigned, assigned.Refs.StatusName)

	histories := f.store.HistoriesFor(ticket.ID)
	require.Len(t, histories, 2)
	assert.Equal(t, admin.ID, *histories[1].ChangedByID)
}

func TestUpsertNotificationRule(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	rule, err := f.lookup.ActiveRule(ctx, domain.EventUpdate)
	require.NoError(t, err)
	assert.Nil(t, rule)

	_, err = f.admin.UpsertNotificationRule(ctx, "BOGUS", []domain.RecipientType{domain.RecipientCreatedBy}, true)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	_, err = f.admin.UpsertNotificationRule(ctx, domain.EventUpdate, []domain.RecipientType{"NOBODY"}, true)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	_, err = f.admin.UpsertNotificationRule(ctx, domain.EventUpdate, nil, true)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	saved, err := f.admin.UpsertNotificationRule(ctx, domain.EventUpdate,
		[]domain.RecipientType{domain.RecipientCreatedBy, domain.RecipientCreatedBy, domain.RecipientCategoryITManagers}, true)
	require.NoError(t, err)
	assert.Equal(t, "rule-update", saved.ID)
	assert.Equal(t, []domain.RecipientType{domain.RecipientCreatedBy, domain.RecipientCategoryITManagers}, saved.RecipientTypes)

	rule, err = f.lookup.ActiveRule(ctx, domain.EventUpdate)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Len(t, rule.RecipientTypes, 2)

	rules, err := f.admin.ListNotificationRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 4)
}

func TestFindAllUsersFiltersByRole(t *testing.T) {
	f := newFixture()
	seedStaff(f)

	managers, meta, err := f.admin.FindAllUsers(context.Background(), UserListFilter{RoleID: strPtr("role-manager")})
	require.NoError(t, err)
	assert.Len(t, managers, 2)
	assert.Equal(t, 2, meta.Total)
}
