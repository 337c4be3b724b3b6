package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

func TestAssignToManagerSelfOutsideDepartmentLeavesTicketUntouched(t *testing.T) {
	f := newFixture()
	emp, mgrA, _ := seedStaff(f)
	hrManager := f.store.AddUser("mgr-hr", "Harper HR", []domain.RoleKey{domain.RoleEmployee, domain.RoleManager}, "dept-hr")
	ticket := createTicket(t, f, emp.ID)
	before := f.store.Ticket(ticket.ID)

	_, err := f.assignments.AssignToManagerSelf(context.Background(), ticket.ID, hrManager.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "DEPARTMENT_MISMATCH"))
	assert.Contains(t, err.Error(), "Ticket department does not match")

	after := f.store.Ticket(ticket.ID)
	assert.Equal(t, mgrA.ID, *after.AssignedToManagerID)
	assert.Equal(t, before.StatusID, after.StatusID)
	assert.Len(t, f.store.HistoriesFor(ticket.ID), 1)
	assert.Len(t, f.store.OutboxEvents(), 1)
}

func TestAssignToManagerSelfRequiresManagerRole(t *testing.T) {
	f := newFixture()
	emp, _, _ := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)

	_, err := f.assignments.AssignToManagerSelf(context.Background(), ticket.ID, emp.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_A_MANAGER"))

	_, err = f.assignments.AssignToManagerSelf(context.Background(), "missing", emp.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestAssignToManagerSelf(t *testing.T) {
	f := newFixture()
	emp, _, mgrB := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)

	assigned, err := f.assignments.AssignToManagerSelf(context.Background(), ticket.ID, mgrB.ID)
	require.NoError(t, err)
	assert.Equal(t, mgrB.ID, *assigned.AssignedToManagerID)
	assert.Equal(t, domain.StatusAssigned, assigned.Refs.StatusName)

	histories := f.store.HistoriesFor(ticket.ID)
	require.Len(t, histories, 2)
	last := histories[1]
	assert.Equal(t, domain.ChangeAssigned, last.ChangeType)
	assert.Equal(t, "assignedToManager", *last.FieldName)
	assert.Equal(t, "Alex Manager", *last.OldValue)
	assert.Equal(t, "Blair Manager", *last.NewValue)
	assert.Equal(t, mgrB.ID, *last.ChangedByID)

	published := f.store.OutboxEvents()
	require.Len(t, published, 2)
	assert.Equal(t, domain.EventAssign, published[1].Event)
	assert.Equal(t, "Ticket assigned to IT Manager", published[1].Message)
	assert.Equal(t, domain.StatusNew, published[1].OldStatus)
	assert.Equal(t, domain.StatusAssigned, published[1].NewStatus)
}

func TestAssignToExecutive(t *testing.T) {
	f := newFixture()
	emp, mgrA, mgrB := seedStaff(f)
	exec := f.store.AddUser("exec", "Eli Exec", []domain.RoleKey{domain.RoleITExecutive})
	admin := f.store.AddUser("admin", "Ada Admin", []domain.RoleKey{domain.RoleSuperAdmin})
	ticket := createTicket(t, f, emp.ID)
	ctx := context.Background()

	_, err := f.assignments.AssignToExecutive(ctx, ticket.ID, exec.ID, principalOf(mgrB))
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = f.assignments.AssignToExecutive(ctx, ticket.ID, emp.ID, principalOf(mgrA))
	assert.True(t, apperrors.IsCode(err, "NOT_AN_EXECUTIVE"))
	assert.Nil(t, f.store.Ticket(ticket.ID).AssignedToExecutiveID)

	assigned, err := f.assignments.AssignToExecutive(ctx, ticket.ID, exec.ID, principalOf(mgrA))
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedToExecutiveID)
	assert.Equal(t, exec.ID, *assigned.AssignedToExecutiveID)
	assert.Equal(t, mgrA.ID, *assigned.AssignedToManagerID)
	assert.Equal(t, "Eli Exec", assigned.Refs.ExecutiveName)

	// the executive can now see the ticket
	_, err = f.tickets.FindOne(ctx, ticket.ID, principalOf(exec))
	require.NoError(t, err)

	_, err = f.assignments.AssignToExecutive(ctx, ticket.ID, exec.ID, principalOf(admin))
	require.NoError(t, err)

	histories := f.store.HistoriesFor(ticket.ID)
	require.Len(t, histories, 3)
	assert.Equal(t, "assignedToExecutive", *histories[1].FieldName)
	assert.Nil(t, histories[1].OldValue)
	assert.Equal(t, "Eli Exec", *histories[2].OldValue)
}
