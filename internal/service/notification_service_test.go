package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/events"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

// deliver feeds every pending outbox event to the notification service.
func deliver(t *testing.T, f *fixture) {
	t.Helper()
	pending, err := f.store.Repos().Outbox.LockPending(context.Background(), 100)
	require.NoError(t, err)
	for _, row := range pending {
		evt, err := events.Decode(row.Payload)
		require.NoError(t, err)
		require.NoError(t, f.notifications.Create(context.Background(), evt))
		require.NoError(t, f.store.Repos().Outbox.MarkDispatched(context.Background(), row.ID))
	}
}

func TestCreateEventNotifiesOnlyTheRequester(t *testing.T) {
	f := newFixture()
	emp, mgrA, _ := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)

	deliver(t, f)

	got := f.store.NotificationsFor(emp.ID)
	require.Len(t, got, 1)
	assert.Equal(t, "Ticket "+ticket.TicketNumber+" created", got[0].Message)
	assert.Equal(t, domain.NotificationUnread, got[0].Status)
	assert.Equal(t, ticket.ID, *got[0].TicketID)
	assert.Equal(t, mgrA.ID, *got[0].ManagerID)
	assert.Empty(t, f.store.NotificationsFor(mgrA.ID))

	require.Len(t, f.mailer.sent, 1)
	mail := f.mailer.sent[0]
	assert.Equal(t, emp.Email, mail.To)
	assert.Equal(t, "ticket-created", mail.Template)
	assert.Equal(t, "Erin Employee", mail.Data["userName"])
	assert.Equal(t, ticket.TicketNumber, mail.Data["ticketNumber"])
	assert.Equal(t, "Hardware", mail.Data["categoryName"])
	assert.Equal(t, "Medium", mail.Data["priorityName"])
}

func TestAssignEventNotifiesRequesterAndAssignees(t *testing.T) {
	f := newFixture()
	emp, mgrA, _ := seedStaff(f)
	exec := f.store.AddUser("exec", "Eli Exec", []domain.RoleKey{domain.RoleITExecutive})
	ticket := createTicket(t, f, emp.ID)
	deliver(t, f)
	f.mailer.sent = nil

	_, err := f.admin.UpsertNotificationRule(context.Background(), domain.EventAssign, []domain.RecipientType{
		domain.RecipientCreatedBy, domain.RecipientAssignedTo, domain.RecipientDepartmentITManagers,
	}, true)
	require.NoError(t, err)

	_, err = f.assignments.AssignToExecutive(context.Background(), ticket.ID, exec.ID, principalOf(mgrA))
	require.NoError(t, err)
	deliver(t, f)

	assert.Len(t, f.store.NotificationsFor(emp.ID), 2)
	assert.Len(t, f.store.NotificationsFor(mgrA.ID), 1, "assignee and department manager are deduplicated")
	assert.Len(t, f.store.NotificationsFor(exec.ID), 1)
	assert.Len(t, f.store.NotificationsFor("mgr-b"), 1)

	templates := map[string]string{}
	for _, m := range f.mailer.sent {
		templates[m.To] = m.Template
	}
	assert.Equal(t, "ticket-assigned", templates[emp.Email])
	assert.Equal(t, "ticket-assigned-manager", templates[mgrA.Email])
	assert.Equal(t, "ticket-assigned-manager", templates[exec.Email])
	assert.Equal(t, "Eli Exec", f.mailer.sent[0].Data["assigneeName"])
}

func TestResolvedEventUsesResolvedTemplates(t *testing.T) {
	f := newFixture()
	emp, mgrA, _ := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)
	deliver(t, f)
	f.mailer.sent = nil

	_, err := f.tickets.UpdateStatusWithComment(context.Background(), ticket.ID,
		UpdateStatusInput{StatusID: "st-resolved", Comment: "Swapped the PSU"}, principalOf(mgrA))
	require.NoError(t, err)
	deliver(t, f)

	require.Len(t, f.mailer.sent, 2)
	assert.Equal(t, "ticket-resolved", f.mailer.sent[0].Template)
	assert.Equal(t, "ticket-resolved-manager", f.mailer.sent[1].Template)
	assert.Equal(t, "Swapped the PSU", f.mailer.sent[0].Data["comment"])
	assert.Equal(t, domain.StatusNew, f.mailer.sent[0].Data["oldStatus"])
	assert.Equal(t, domain.StatusResolved, f.mailer.sent[0].Data["newStatus"])
}

func TestTemplateFor(t *testing.T) {
	tests := []struct {
		event     events.TicketEvent
		requester bool
		want      string
	}{
		{events.TicketEvent{Event: domain.EventCreate}, true, "ticket-created"},
		{events.TicketEvent{Event: domain.EventCreate}, false, "ticket-created-manager"},
		{events.TicketEvent{Event: domain.EventStatusChange, NewStatus: domain.StatusInProgress}, true, "ticket-status-change"},
		{events.TicketEvent{Event: domain.EventStatusChange, NewStatus: domain.StatusResolved}, false, "ticket-resolved-manager"},
		{events.TicketEvent{Event: domain.EventUpdate}, true, "ticket-status-change"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, templateFor(tt.event, tt.requester))
	}
}

func TestNotificationCreateSkipsInactiveRules(t *testing.T) {
	f := newFixture()
	emp, _, _ := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)

	err := f.notifications.Create(context.Background(), events.TicketEvent{Event: domain.EventUpdate, TicketID: ticket.ID})
	require.NoError(t, err)
	assert.Empty(t, f.store.Notifications)
	assert.Empty(t, f.mailer.sent)
}

func TestNotificationCreateFailures(t *testing.T) {
	f := newFixture()
	emp, _, _ := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)
	ctx := context.Background()
	evt := events.TicketEvent{Event: domain.EventCreate, TicketID: ticket.ID, Message: "hello"}

	f.mailer.err = errors.New("smtp down")
	require.NoError(t, f.notifications.Create(ctx, evt), "email errors are not fatal")
	assert.Len(t, f.store.NotificationsFor(emp.ID), 1)

	f.store.FailNotifications = errors.New("insert failed")
	assert.Error(t, f.notifications.Create(ctx, evt))

	f.store.FailNotifications = nil
	assert.Error(t, f.notifications.Create(ctx, events.TicketEvent{Event: domain.EventCreate, TicketID: "missing"}))
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	f := newFixture()
	emp, mgrA, _ := seedStaff(f)
	createTicket(t, f, emp.ID)
	createTicket(t, f, emp.ID)
	deliver(t, f)
	ctx := context.Background()

	unread, err := f.notifications.FindAllUnread(ctx, emp.ID)
	require.NoError(t, err)
	require.Len(t, unread, 2)
	target := unread[0].ID

	readAt := f.now
	first, err := f.notifications.MarkAsRead(ctx, target, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationRead, first.Status)
	require.NotNil(t, first.ReadAt)
	assert.Equal(t, readAt, *first.ReadAt)

	f.now = f.now.Add(time.Hour)
	second, err := f.notifications.MarkAsRead(ctx, target, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, readAt, *second.ReadAt)

	_, err = f.notifications.MarkAsRead(ctx, target, mgrA.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	unread, err = f.notifications.FindAllUnread(ctx, emp.ID)
	require.NoError(t, err)
	assert.Len(t, unread, 1)
	all, err := f.notifications.FindAll(ctx, emp.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCategoryManagersRuleNotifiesMappedManagers(t *testing.T) {
	f := newFixture()
	emp, mgrA, mgrB := seedStaff(f)
	ctx := context.Background()

	_, err := f.admin.AddCategoryToUser(ctx, mgrB.ID, "cat-hw")
	require.NoError(t, err)
	_, err = f.admin.AddCategoryToUser(ctx, mgrA.ID, "cat-sw")
	require.NoError(t, err)
	_, err = f.admin.UpsertNotificationRule(ctx, domain.EventCreate, []domain.RecipientType{domain.RecipientCategoryITManagers}, true)
	require.NoError(t, err)

	createTicket(t, f, emp.ID)
	deliver(t, f)

	assert.Len(t, f.store.NotificationsFor(mgrB.ID), 1)
	assert.Empty(t, f.store.NotificationsFor(mgrA.ID), "mapped to another category")
	assert.Empty(t, f.store.NotificationsFor(emp.ID))
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, mgrB.Email, f.mailer.sent[0].To)
	assert.Equal(t, "ticket-created-manager", f.mailer.sent[0].Template)
}

func TestNotificationRowsAreAllOrNothing(t *testing.T) {
	f := newFixture()
	emp, _, _ := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)
	require.NotNil(t, ticket.AssignedToManagerID)
	ctx := context.Background()
	evt := events.TicketEvent{Event: domain.EventAssign, TicketID: ticket.ID, Message: "assigned"}

	f.store.FailNotifications = errors.New("insert failed")
	f.store.FailNotificationAt = 2
	assert.Error(t, f.notifications.Create(ctx, evt))
	assert.Empty(t, f.store.Notifications)
	assert.Empty(t, f.mailer.sent)

	f.store.FailNotifications = nil
	require.NoError(t, f.notifications.Create(ctx, evt))
	assert.Len(t, f.store.NotificationsFor(emp.ID), 1)
	assert.Len(t, f.store.NotificationsFor(*ticket.AssignedToManagerID), 1)
	assert.Len(t, f.mailer.sent, 2)
}
