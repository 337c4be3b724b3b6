package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

var ticketNumberPattern = regexp.MustCompile(`^TKT-[A-Z0-9]+-[A-Z0-9]+-[A-Z0-9]{4}$`)

// seedStaff adds an employee and two IT managers.
func seedStaff(f *fixture) (emp, mgrA, mgrB *domain.User) {
	emp = f.store.AddUser("emp", "Erin Employee", []domain.RoleKey{domain.RoleEmployee}, "dept-it")
	mgrA = f.store.AddUser("mgr-a", "Alex Manager", []domain.RoleKey{domain.RoleEmployee, domain.RoleManager}, "dept-it")
	mgrB = f.store.AddUser("mgr-b", "Blair Manager", []domain.RoleKey{domain.RoleEmployee, domain.RoleManager}, "dept-it")
	return emp, mgrA, mgrB
}

func createTicket(t *testing.T, f *fixture, actorID string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Create(context.Background(), actorID, CreateTicketInput{
		Title:        "Laptop will not boot",
		Description:  "Black screen after the update",
		DepartmentID: "dept-it",
		CategoryID:   "cat-hw",
	})
	require.NoError(t, err)
	return ticket
}

func TestCreateTicketDefaultsAndRouting(t *testing.T) {
	f := newFixture()
	emp, mgrA, _ := seedStaff(f)

	ticket := createTicket(t, f, emp.ID)

	assert.Regexp(t, ticketNumberPattern, ticket.TicketNumber)
	assert.Contains(t, ticket.TicketNumber, "TKT-HW-")
	assert.Equal(t, "prio-medium", ticket.PriorityID)
	assert.Equal(t, domain.StatusNew, ticket.Refs.StatusName)
	assert.Equal(t, emp.ID, ticket.CreatedByID)
	assert.Equal(t, emp.ID, ticket.CreatedForID)
	require.NotNil(t, ticket.AssignedToManagerID)
	assert.Equal(t, mgrA.ID, *ticket.AssignedToManagerID)
	assert.Nil(t, ticket.AssignedToExecutiveID)

	histories := f.store.HistoriesFor(ticket.ID)
	require.Len(t, histories, 1)
	assert.Equal(t, domain.ChangeCreated, histories[0].ChangeType)
	assert.Equal(t, "Ticket "+ticket.TicketNumber+" created", *histories[0].NewValue)

	published := f.store.OutboxEvents()
	require.Len(t, published, 1)
	assert.Equal(t, domain.EventCreate, published[0].Event)
	assert.Equal(t, ticket.ID, published[0].TicketID)
	assert.Equal(t, f.now, published[0].OccurredAt)
}

func TestCreateTicketPicksLeastLoadedManager(t *testing.T) {
	f := newFixture()
	emp, mgrA, mgrB := seedStaff(f)

	first := createTicket(t, f, emp.ID)
	second := createTicket(t, f, emp.ID)

	assert.Equal(t, mgrA.ID, *first.AssignedToManagerID)
	assert.Equal(t, mgrB.ID, *second.AssignedToManagerID)
	assert.NotEqual(t, first.TicketNumber, second.TicketNumber)
}

func TestCreateTicketWithoutManagersLeavesTicketUnassigned(t *testing.T) {
	f := newFixture()
	emp := f.store.AddUser("emp", "Erin Employee", []domain.RoleKey{domain.RoleEmployee})

	ticket := createTicket(t, f, emp.ID)
	assert.Nil(t, ticket.AssignedToManagerID)
}

func TestCreateTicketRejectsInvalidInput(t *testing.T) {
	f := newFixture()
	emp, _, _ := seedStaff(f)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateTicketInput
		code  string
	}{
		{"category outside department", CreateTicketInput{Title: "x", DepartmentID: "dept-it", CategoryID: "cat-req"}, "INVALID_CATEGORY_FOR_DEPARTMENT"},
		{"inactive department", CreateTicketInput{Title: "x", DepartmentID: "dept-old", CategoryID: "cat-hw"}, "DEPARTMENT_INACTIVE"},
		{"unknown department", CreateTicketInput{Title: "x", DepartmentID: "nope", CategoryID: "cat-hw"}, "NOT_FOUND"},
		{"unknown category", CreateTicketInput{Title: "x", DepartmentID: "dept-it", CategoryID: "nope"}, "NOT_FOUND"},
		{"unknown beneficiary", CreateTicketInput{Title: "x", DepartmentID: "dept-it", CategoryID: "cat-hw", CreatedForID: strPtr("ghost")}, "NOT_FOUND"},
		{"unknown priority", CreateTicketInput{Title: "x", DepartmentID: "dept-it", CategoryID: "cat-hw", PriorityID: strPtr("nope")}, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tickets.Create(ctx, emp.ID, tt.input)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, tt.code), "got %v", err)
		})
	}
	assert.Empty(t, f.store.Tickets)
	assert.Empty(t, f.store.Outbox)
}

func TestCreateTicketOnBehalfOfAnotherUser(t *testing.T) {
	f := newFixture()
	emp, mgrA, _ := seedStaff(f)
	other := f.store.AddUser("other", "Otto Other", []domain.RoleKey{domain.RoleEmployee})

	ticket, err := f.tickets.Create(context.Background(), mgrA.ID, CreateTicketInput{
		Title:        "Printer jam",
		DepartmentID: "dept-it",
		CategoryID:   "cat-hw",
		CreatedForID: &other.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, mgrA.ID, ticket.CreatedByID)
	assert.Equal(t, other.ID, ticket.CreatedForID)

	latest, err := f.tickets.LatestForEmployee(context.Background(), other.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, ticket.ID, latest.ID)

	none, err := f.tickets.LatestForEmployee(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUpdateWritesHistoryOnlyForChangedFields(t *testing.T) {
	f := newFixture()
	emp, _, _ := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)
	ctx := context.Background()

	updated, err := f.tickets.Update(ctx, ticket.ID, UpdateTicketInput{
		Title:       strPtr(ticket.Title),
		Description: strPtr("Still a black screen"),
		PriorityID:  strPtr(ticket.PriorityID),
	}, principalOf(emp))
	require.NoError(t, err)
	assert.Equal(t, "Still a black screen", updated.Description)

	histories := f.store.HistoriesFor(ticket.ID)
	require.Len(t, histories, 2)
	assert.Equal(t, domain.ChangeUpdated, histories[1].ChangeType)
	assert.Equal(t, "description", *histories[1].FieldName)
	assert.Equal(t, "Black screen after the update", *histories[1].OldValue)
	assert.Len(t, f.store.OutboxEvents(), 1, "only the CREATE event")

	_, err = f.tickets.Update(ctx, ticket.ID, UpdateTicketInput{
		PriorityID: strPtr("prio-high"),
		CategoryID: strPtr("cat-sw"),
	}, principalOf(emp))
	require.NoError(t, err)

	histories = f.store.HistoriesFor(ticket.ID)
	require.Len(t, histories, 4)
	assert.Equal(t, domain.ChangePriorityChanged, histories[2].ChangeType)
	assert.Equal(t, "Medium", *histories[2].OldValue)
	assert.Equal(t, "High", *histories[2].NewValue)
	assert.Equal(t, "category", *histories[3].FieldName)
	assert.Equal(t, "Software", *histories[3].NewValue)
}

func TestUpdateClearsDescriptionAndRejectsBlankTitle(t *testing.T) {
	f := newFixture()
	emp, _, _ := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)
	ctx := context.Background()

	updated, err := f.tickets.Update(ctx, ticket.ID, UpdateTicketInput{Description: strPtr("")}, principalOf(emp))
	require.NoError(t, err)
	assert.Empty(t, updated.Description)

	histories := f.store.HistoriesFor(ticket.ID)
	require.Len(t, histories, 2)
	assert.Equal(t, "description", *histories[1].FieldName)
	assert.Equal(t, "", *histories[1].NewValue)

	_, err = f.tickets.Update(ctx, ticket.ID, UpdateTicketInput{Title: strPtr("   ")}, principalOf(emp))
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	assert.Equal(t, "Laptop will not boot", f.store.Ticket(ticket.ID).Title)
	assert.Len(t, f.store.HistoriesFor(ticket.ID), 2)
}

func TestUpdateRejectsCategoryFromOtherDepartment(t *testing.T) {
	f := newFixture()
	emp, _, _ := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)

	_, err := f.tickets.Update(context.Background(), ticket.ID, UpdateTicketInput{CategoryID: strPtr("cat-req")}, principalOf(emp))
	assert.True(t, apperrors.IsCode(err, "INVALID_CATEGORY_FOR_DEPARTMENT"))
	assert.Equal(t, "cat-hw", f.store.Ticket(ticket.ID).CategoryID)
	assert.Len(t, f.store.HistoriesFor(ticket.ID), 1)
}

func TestStatusChangesSetResolutionTimestampsOnce(t *testing.T) {
	f := newFixture()
	emp, _, _ := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)
	ctx := context.Background()
	p := principalOf(emp)
	resolvedAt := f.now

	_, err := f.tickets.Update(ctx, ticket.ID, UpdateTicketInput{StatusID: strPtr("st-resolved")}, p)
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	_, err = f.tickets.Update(ctx, ticket.ID, UpdateTicketInput{StatusID: strPtr("st-progress")}, p)
	require.NoError(t, err)
	_, err = f.tickets.Update(ctx, ticket.ID, UpdateTicketInput{StatusID: strPtr("st-resolved")}, p)
	require.NoError(t, err)

	stored := f.store.Ticket(ticket.ID)
	require.NotNil(t, stored.ResolvedAt)
	assert.Equal(t, resolvedAt, *stored.ResolvedAt)
	assert.Nil(t, stored.ClosedAt)

	published := f.store.OutboxEvents()
	require.Len(t, published, 4)
	last := published[3]
	assert.Equal(t, domain.EventStatusChange, last.Event)
	assert.Equal(t, domain.StatusInProgress, last.OldStatus)
	assert.Equal(t, domain.StatusResolved, last.NewStatus)
	assert.True(t, last.IsResolvedTransition())
}

func TestUpdateStatusWithComment(t *testing.T) {
	f := newFixture()
	emp, mgrA, _ := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)
	ctx := context.Background()
	p := principalOf(mgrA)

	_, err := f.tickets.UpdateStatusWithComment(ctx, ticket.ID, UpdateStatusInput{StatusID: "st-progress", Comment: "   "}, p)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = f.tickets.UpdateStatusWithComment(ctx, ticket.ID, UpdateStatusInput{StatusID: "st-progress", Comment: "Looking into it"}, p)
	require.NoError(t, err)
	updated, err := f.tickets.UpdateStatusWithComment(ctx, ticket.ID, UpdateStatusInput{StatusID: "st-resolved", Comment: "Replaced the disk"}, p)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, updated.Refs.StatusName)
	require.NotNil(t, updated.ResolvedAt)

	histories := f.store.HistoriesFor(ticket.ID)
	require.Len(t, histories, 5)
	assert.Equal(t, domain.ChangeStatusChanged, histories[1].ChangeType)
	assert.Equal(t, domain.ChangeCommentAdded, histories[2].ChangeType)
	assert.Equal(t, domain.ChangeStatusChanged, histories[3].ChangeType)
	assert.Equal(t, domain.StatusInProgress, *histories[3].OldValue)

	published := f.store.OutboxEvents()
	require.Len(t, published, 3)
	assert.Equal(t, "Replaced the disk", published[2].Message)

	// same status only adds the comment
	_, err = f.tickets.UpdateStatusWithComment(ctx, ticket.ID, UpdateStatusInput{StatusID: "st-resolved", Comment: "Confirmed", IsInternal: true}, p)
	require.NoError(t, err)
	assert.Len(t, f.store.HistoriesFor(ticket.ID), 6)
	assert.Len(t, f.store.OutboxEvents(), 3)
	assert.Len(t, f.store.Comments, 3)
}

func TestTicketVisibility(t *testing.T) {
	f := newFixture()
	emp, mgrA, mgrB := seedStaff(f)
	admin := f.store.AddUser("admin", "Ada Admin", []domain.RoleKey{domain.RoleSuperAdmin})
	ticket := createTicket(t, f, emp.ID)
	ctx := context.Background()

	for _, u := range []*domain.User{emp, mgrA} {
		got, err := f.tickets.FindOne(ctx, ticket.ID, principalOf(u))
		require.NoError(t, err, u.ID)
		assert.Equal(t, ticket.ID, got.ID)
	}

	for _, u := range []*domain.User{mgrB, admin} {
		_, err := f.tickets.FindOne(ctx, ticket.ID, principalOf(u))
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"), u.ID)
		_, err = f.tickets.FindOneByNumber(ctx, ticket.TicketNumber, principalOf(u))
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"), u.ID)
	}

	byNumber, err := f.tickets.FindOneByNumber(ctx, ticket.TicketNumber, principalOf(emp))
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, byNumber.ID)
}

func TestRemoveDeletesAnyExistingTicket(t *testing.T) {
	f := newFixture()
	emp, _, _ := seedStaff(f)
	admin := f.store.AddUser("admin", "Ada Admin", []domain.RoleKey{domain.RoleSuperAdmin})
	ticket := createTicket(t, f, emp.ID)
	ctx := context.Background()

	require.NoError(t, f.tickets.Remove(ctx, ticket.ID, principalOf(admin)))
	_, err := f.tickets.FindOne(ctx, ticket.ID, principalOf(emp))
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	err = f.tickets.Remove(ctx, ticket.ID, principalOf(admin))
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestUpdateStatusByManagerOutsideAssignment(t *testing.T) {
	f := newFixture()
	emp, mgrA, mgrB := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)
	require.NotNil(t, ticket.AssignedToManagerID)
	other := mgrB
	if *ticket.AssignedToManagerID == mgrB.ID {
		other = mgrA
	}
	ctx := context.Background()

	updated, err := f.tickets.UpdateStatusWithComment(ctx, ticket.ID,
		UpdateStatusInput{StatusID: "st-progress", Comment: "Picking this up"}, principalOf(other))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, updated.Refs.StatusName)

	_, err = f.tickets.UpdateStatusWithComment(ctx, "missing",
		UpdateStatusInput{StatusID: "st-progress", Comment: "Picking this up"}, principalOf(other))
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestConcurrentStatusUpdatesBothRecorded(t *testing.T) {
	f := newFixture()
	emp, mgrA, mgrB := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)
	ctx := context.Background()

	targets := map[string]string{"st-progress": domain.StatusInProgress, "st-resolved": domain.StatusResolved}
	actors := []*domain.User{mgrA, mgrB}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	i := 0
	for statusID := range targets {
		wg.Add(1)
		go func(i int, statusID string) {
			defer wg.Done()
			_, errs[i] = f.tickets.UpdateStatusWithComment(ctx, ticket.ID,
				UpdateStatusInput{StatusID: statusID, Comment: "update " + statusID}, principalOf(actors[i]))
		}(i, statusID)
		i++
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	var statusChanges []domain.TicketHistory
	for _, h := range f.store.HistoriesFor(ticket.ID) {
		if h.ChangeType == domain.ChangeStatusChanged {
			statusChanges = append(statusChanges, h)
		}
	}
	require.Len(t, statusChanges, 2)

	final := f.store.Ticket(ticket.ID).StatusID
	assert.Contains(t, targets, final)
	assert.Len(t, f.store.Comments, 2)
}

func TestListCommentsHidesInternalFromRequesters(t *testing.T) {
	f := newFixture()
	emp, mgrA, _ := seedStaff(f)
	ticket := createTicket(t, f, emp.ID)
	ctx := context.Background()

	_, err := f.tickets.UpdateStatusWithComment(ctx, ticket.ID, UpdateStatusInput{StatusID: "st-progress", Comment: "On it"}, principalOf(mgrA))
	require.NoError(t, err)
	_, err = f.tickets.UpdateStatusWithComment(ctx, ticket.ID, UpdateStatusInput{StatusID: "st-progress", Comment: "Vendor RMA needed", IsInternal: true}, principalOf(mgrA))
	require.NoError(t, err)

	staff, err := f.tickets.ListComments(ctx, ticket.ID, principalOf(mgrA))
	require.NoError(t, err)
	assert.Len(t, staff, 2)

	public, err := f.tickets.ListComments(ctx, ticket.ID, principalOf(emp))
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "On it", public[0].Content)
}

func TestTicketListsAreScopedAndPaged(t *testing.T) {
	f := newFixture()
	emp, mgrA, mgrB := seedStaff(f)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		createTicket(t, f, emp.ID)
	}

	mine, meta, err := f.tickets.FindAll(ctx, emp.ID, TicketListFilter{Pagination: Pagination{Page: 1, Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	assert.Equal(t, Meta{Page: 1, Limit: 2, Total: 3, TotalPages: 2}, meta)

	forA, _, err := f.tickets.ListForManager(ctx, mgrA.ID, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, forA, 2)
	forB, _, err := f.tickets.ListForManager(ctx, mgrB.ID, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, forB, 1)

	none, meta, err := f.tickets.ListForExecutive(ctx, "exec", TicketListFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Equal(t, 0, meta.TotalPages)
}

func TestGetTicketHistoriesScopesByRole(t *testing.T) {
	f := newFixture()
	emp, mgrA, _ := seedStaff(f)
	exec := f.store.AddUser("exec", "Eli Exec", []domain.RoleKey{domain.RoleITExecutive})
	admin := f.store.AddUser("admin", "Ada Admin", []domain.RoleKey{domain.RoleSuperAdmin})
	createTicket(t, f, emp.ID)
	ctx := context.Background()
	filter := HistoryListFilter{AssignedTo: strPtr("mgr-b"), Order: "asc"}

	groups, _, err := f.tickets.GetTicketHistories(ctx, filter, principalOf(mgrA))
	require.NoError(t, err)
	assert.Len(t, groups, 1)
	got := f.store.LastHistoryFilter
	require.NotNil(t, got.ManagerID)
	assert.Equal(t, mgrA.ID, *got.ManagerID)
	assert.Nil(t, got.AssignedTo)
	assert.True(t, got.Ascending)

	_, _, err = f.tickets.GetTicketHistories(ctx, filter, principalOf(exec))
	require.NoError(t, err)
	got = f.store.LastHistoryFilter
	require.NotNil(t, got.ExecutiveID)
	assert.Nil(t, got.ManagerID)

	_, _, err = f.tickets.GetTicketHistories(ctx, HistoryListFilter{}, principalOf(emp))
	require.NoError(t, err)
	got = f.store.LastHistoryFilter
	require.NotNil(t, got.CreatedByID)
	assert.Equal(t, emp.ID, *got.CreatedByID)
	assert.False(t, got.Ascending)

	_, _, err = f.tickets.GetTicketHistories(ctx, filter, principalOf(admin))
	require.NoError(t, err)
	got = f.store.LastHistoryFilter
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, "mgr-b", *got.AssignedTo)
	assert.Nil(t, got.CreatedByID)
	assert.Nil(t, got.ManagerID)
}

func TestGenerateTicketNumber(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	number := generateTicketNumber("net", now)
	assert.Regexp(t, ticketNumberPattern, number)
	assert.Regexp(t, `^TKT-NET-LT8FBMO0-[A-Z0-9]{4}$`, number)
}

func TestPaginationMeta(t *testing.T) {
	assert.Equal(t, Meta{Page: 1, Limit: 10, Total: 0, TotalPages: 0}, Pagination{}.meta(0))
	assert.Equal(t, Meta{Page: 3, Limit: 100, Total: 250, TotalPages: 3}, Pagination{Page: 3, Limit: 500}.meta(250))
	assert.Equal(t, 40, Pagination{Page: 5, Limit: 10}.repoPage().Offset)
}
