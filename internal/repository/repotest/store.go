// Package repotest provides an in-memory implementation of the repository
// interfaces for service and handler tests.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/events"
	"github.com/itsm-platform/ticketing-service/internal/repository"
)

// Store is an in-memory stand-in for the Postgres schema.
type Store struct {
	mu  sync.Mutex
	seq int

	users          map[string]*domain.User
	roles          []domain.Role
	departments    map[string]*domain.Department
	categories     map[string]*domain.TicketCategory
	UserCategories []domain.UserCategory
	priorities     []domain.TicketPriority
	statuses       []domain.TicketStatus
	Tickets        map[string]*domain.Ticket
	histories      []domain.TicketHistory
	Comments       []domain.Comment
	Notifications  []*domain.Notification
	rules          []domain.NotificationRule
	Outbox         []domain.OutboxEvent
	keySeq         map[string]int64

	LastHistoryFilter repository.HistoryFilter
	FailNotifications error
	// FailNotificationAt fails the n-th notification insert (1-based) with
	// FailNotifications. Zero fails every insert.
	FailNotificationAt int
	notificationCalls  int
}

// NewStore returns a store seeded with the four roles, a small catalog, IT, HR
// and an inactive Legacy department, and the default notification rules.
func NewStore() *Store {
	m := &Store{
		users:       map[string]*domain.User{},
		departments: map[string]*domain.Department{},
		categories:  map[string]*domain.TicketCategory{},
		Tickets:     map[string]*domain.Ticket{},
		keySeq:      map[string]int64{},
	}
	m.roles = []domain.Role{
		{ID: "role-employee", Key: domain.RoleEmployee, Name: "Employee"},
		{ID: "role-manager", Key: domain.RoleManager, Name: "IT Manager"},
		{ID: "role-executive", Key: domain.RoleITExecutive, Name: "IT Executive"},
		{ID: "role-admin", Key: domain.RoleSuperAdmin, Name: "Super Admin"},
	}
	m.priorities = []domain.TicketPriority{
		{ID: "prio-critical", Name: "Critical", SortOrder: 1},
		{ID: "prio-high", Name: "High", SortOrder: 2},
		{ID: "prio-medium", Name: "Medium", SortOrder: 3},
		{ID: "prio-low", Name: "Low", SortOrder: 4},
	}
	m.statuses = []domain.TicketStatus{
		{ID: "st-assigned", Name: domain.StatusAssigned},
		{ID: "st-closed", Name: domain.StatusClosed},
		{ID: "st-progress", Name: domain.StatusInProgress},
		{ID: "st-new", Name: domain.StatusNew},
		{ID: "st-resolved", Name: domain.StatusResolved},
	}
	m.rules = []domain.NotificationRule{
		{ID: "rule-create", Event: domain.EventCreate, RecipientTypes: []domain.RecipientType{domain.RecipientCreatedBy}, IsActive: true},
		{ID: "rule-assign", Event: domain.EventAssign, RecipientTypes: []domain.RecipientType{domain.RecipientCreatedBy, domain.RecipientAssignedTo}, IsActive: true},
		{ID: "rule-status", Event: domain.EventStatusChange, RecipientTypes: []domain.RecipientType{domain.RecipientCreatedBy, domain.RecipientAssignedTo}, IsActive: true},
		{ID: "rule-update", Event: domain.EventUpdate, RecipientTypes: []domain.RecipientType{domain.RecipientCreatedBy}, IsActive: false},
	}
	m.departments["dept-it"] = &domain.Department{ID: "dept-it", Name: "IT", IsActive: true}
	m.departments["dept-hr"] = &domain.Department{ID: "dept-hr", Name: "HR", IsActive: true}
	m.departments["dept-old"] = &domain.Department{ID: "dept-old", Name: "Legacy", IsActive: false}
	m.categories["cat-hw"] = &domain.TicketCategory{ID: "cat-hw", DepartmentID: "dept-it", Name: "Hardware", Code: "HW", IsActive: true}
	m.categories["cat-sw"] = &domain.TicketCategory{ID: "cat-sw", DepartmentID: "dept-it", Name: "Software", Code: "SW", IsActive: true}
	m.categories["cat-req"] = &domain.TicketCategory{ID: "cat-req", DepartmentID: "dept-hr", Name: "Request", Code: "REQ", IsActive: true}
	return m
}

func (m *Store) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *Store) role(key domain.RoleKey) domain.Role {
	for _, r := range m.roles {
		if r.Key == key {
			return r
		}
	}
	panic("unknown role " + key)
}

// AddUser inserts a user holding roles and departments.
func (m *Store) AddUser(id, name string, roles []domain.RoleKey, departments ...string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := &domain.User{ID: id, Email: id + "@itsm.test", FullName: name, IsAvailable: true}
	for _, key := range roles {
		user.Roles = append(user.Roles, m.role(key))
	}
	for _, d := range departments {
		user.Departments = append(user.Departments, *m.departments[d])
	}
	m.users[id] = user
	return user
}

// Ticket returns the stored row without joined names.
func (m *Store) Ticket(id string) domain.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.Tickets[id]
}

func (m *Store) HistoriesFor(ticketID string) []domain.TicketHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range m.histories {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out
}

// OutboxEvents decodes every enqueued outbox payload in order.
func (m *Store) OutboxEvents() []events.TicketEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.TicketEvent, 0, len(m.Outbox))
	for _, o := range m.Outbox {
		evt, err := events.Decode(o.Payload)
		if err != nil {
			panic(err)
		}
		out = append(out, evt)
	}
	return out
}

func (m *Store) statusName(id string) string {
	for _, s := range m.statuses {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}

func (m *Store) hydrate(t domain.Ticket) *domain.Ticket {
	if d, ok := m.departments[t.DepartmentID]; ok {
		t.Refs.DepartmentName = d.Name
	}
	if c, ok := m.categories[t.CategoryID]; ok {
		t.Refs.CategoryName = c.Name
		t.Refs.CategoryCode = c.Code
	}
	for _, p := range m.priorities {
		if p.ID == t.PriorityID {
			t.Refs.PriorityName = p.Name
		}
	}
	t.Refs.StatusName = m.statusName(t.StatusID)
	if u, ok := m.users[t.CreatedByID]; ok {
		t.Refs.CreatedByName, t.Refs.CreatedByEmail = u.FullName, u.Email
	}
	if u, ok := m.users[t.CreatedForID]; ok {
		t.Refs.CreatedForName, t.Refs.CreatedForMail = u.FullName, u.Email
	}
	t.Refs.ManagerName, t.Refs.ExecutiveName = "", ""
	if t.AssignedToManagerID != nil {
		if u, ok := m.users[*t.AssignedToManagerID]; ok {
			t.Refs.ManagerName = u.FullName
		}
	}
	if t.AssignedToExecutiveID != nil {
		if u, ok := m.users[*t.AssignedToExecutiveID]; ok {
			t.Refs.ExecutiveName = u.FullName
		}
	}
	return &t
}

// Repos returns repositories backed by the store.
func (m *Store) Repos() *repository.Repositories {
	return &repository.Repositories{
		Users:         fakeUsers{m},
		Roles:         fakeRoles{m},
		Departments:   fakeDepartments{m},
		Categories:    fakeCategories{m},
		Catalog:       fakeCatalog{m},
		Tickets:       fakeTickets{m},
		Histories:     fakeHistories{m},
		Comments:      fakeComments{m},
		Notifications: fakeNotifications{m},
		Rules:         fakeRules{m},
		Outbox:        fakeOutbox{m},
	}
}

// UnitOfWork runs fn directly against the store. When fn fails, tickets and
// the append-only tables are restored to their state before the call. The
// restore is not isolated from concurrent callers.
type UnitOfWork struct {
	Store *Store
}

func (u *UnitOfWork) Within(ctx context.Context, fn func(ctx context.Context, repos *repository.Repositories) error) error {
	snap := u.Store.snapshot()
	if err := fn(ctx, u.Store.Repos()); err != nil {
		u.Store.restore(snap)
		return err
	}
	return nil
}

type storeSnapshot struct {
	tickets       map[string]*domain.Ticket
	histories     []domain.TicketHistory
	comments      []domain.Comment
	notifications []*domain.Notification
	outbox        []domain.OutboxEvent
}

func (m *Store) snapshot() storeSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	tickets := make(map[string]*domain.Ticket, len(m.Tickets))
	for id, t := range m.Tickets {
		tickets[id] = t
	}
	return storeSnapshot{
		tickets:       tickets,
		histories:     m.histories[:len(m.histories):len(m.histories)],
		comments:      m.Comments[:len(m.Comments):len(m.Comments)],
		notifications: m.Notifications[:len(m.Notifications):len(m.Notifications)],
		outbox:        m.Outbox[:len(m.Outbox):len(m.Outbox)],
	}
}

func (m *Store) restore(s storeSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tickets = s.tickets
	m.histories = s.histories
	m.Comments = s.comments
	m.Notifications = s.notifications
	m.Outbox = s.outbox
}

// users

type fakeUsers struct{ m *Store }

func (f fakeUsers) Create(_ context.Context, user *domain.User) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	user.ID = f.m.nextID("user")
	user.CreatedAt = time.Now()
	stored := *user
	f.m.users[user.ID] = &stored
	return nil
}

func (f fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	u, ok := f.m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, u := range f.m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f fakeUsers) List(_ context.Context, filter repository.UserFilter) ([]domain.User, int, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []domain.User
	for _, u := range f.m.users {
		if filter.RoleID != nil {
			found := false
			for _, r := range u.Roles {
				found = found || r.ID == *filter.RoleID
			}
			if !found {
				continue
			}
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f fakeUsers) AddRole(_ context.Context, userID, roleID string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	u := f.m.users[userID]
	for _, r := range u.Roles {
		if r.ID == roleID {
			return nil
		}
	}
	for _, r := range f.m.roles {
		if r.ID == roleID {
			u.Roles = append(append([]domain.Role{}, u.Roles...), r)
		}
	}
	return nil
}

func (f fakeUsers) RemoveRole(_ context.Context, userID, roleID string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	u := f.m.users[userID]
	kept := []domain.Role{}
	for _, r := range u.Roles {
		if r.ID != roleID {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(u.Roles) {
		return pgx.ErrNoRows
	}
	u.Roles = kept
	return nil
}

func (f fakeUsers) AddDepartment(_ context.Context, userID, departmentID string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	u := f.m.users[userID]
	u.Departments = append(u.Departments, *f.m.departments[departmentID])
	return nil
}

func (f fakeUsers) NextUniqueKey(_ context.Context, prefix string) (string, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.keySeq[prefix] == 0 {
		f.m.keySeq[prefix] = 1001
	} else {
		f.m.keySeq[prefix]++
	}
	return fmt.Sprintf("%s-%d", prefix, f.m.keySeq[prefix]), nil
}

func (f fakeUsers) LeastLoadedManager(_ context.Context) (*domain.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var (
		best     *domain.User
		bestLoad int
	)
	ids := make([]string, 0, len(f.m.users))
	for id := range f.m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		u := f.m.users[id]
		if !u.IsAvailable || !u.HasRole(domain.RoleManager) {
			continue
		}
		load := 0
		for _, t := range f.m.Tickets {
			if t.AssignedToManagerID == nil || *t.AssignedToManagerID != id {
				continue
			}
			switch f.m.statusName(t.StatusID) {
			case domain.StatusNew, domain.StatusAssigned, domain.StatusInProgress:
				load++
			}
		}
		if best == nil || load < bestLoad {
			cp := *u
			best, bestLoad = &cp, load
		}
	}
	return best, nil
}

func (f fakeUsers) ListManagersByDepartment(_ context.Context, departmentID string) ([]domain.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []domain.User
	for _, u := range f.m.users {
		if u.HasRole(domain.RoleManager) && u.InDepartment(departmentID) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (f fakeUsers) ListManagersByCategory(_ context.Context, categoryID string) ([]domain.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []domain.User
	for _, uc := range f.m.UserCategories {
		if u, ok := f.m.users[uc.UserID]; ok && uc.CategoryID == categoryID && u.HasRole(domain.RoleManager) {
			out = append(out, *u)
		}
	}
	return out, nil
}

// catalog

type fakeRoles struct{ m *Store }

func (f fakeRoles) List(context.Context) ([]domain.Role, error) { return f.m.roles, nil }

type fakeCatalog struct{ m *Store }

func (f fakeCatalog) ListPriorities(context.Context) ([]domain.TicketPriority, error) {
	return f.m.priorities, nil
}

func (f fakeCatalog) ListStatuses(context.Context) ([]domain.TicketStatus, error) {
	return f.m.statuses, nil
}

type fakeDepartments struct{ m *Store }

func (f fakeDepartments) GetByID(_ context.Context, id string) (*domain.Department, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	d, ok := f.m.departments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (f fakeDepartments) ListActive(context.Context) ([]domain.Department, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []domain.Department
	for _, d := range f.m.departments {
		if d.IsActive {
			out = append(out, *d)
		}
	}
	return out, nil
}

type fakeCategories struct{ m *Store }

func (f fakeCategories) GetByID(_ context.Context, id string) (*domain.TicketCategory, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f fakeCategories) ListActive(_ context.Context, departmentID *string) ([]domain.TicketCategory, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []domain.TicketCategory
	for _, c := range f.m.categories {
		if c.IsActive && (departmentID == nil || c.DepartmentID == *departmentID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f fakeCategories) AddUserCategory(_ context.Context, mapping *domain.UserCategory) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	mapping.ID = f.m.nextID("uc")
	f.m.UserCategories = append(f.m.UserCategories, *mapping)
	return nil
}

func (f fakeCategories) RemoveUserCategory(_ context.Context, userID, categoryID string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for i, uc := range f.m.UserCategories {
		if uc.UserID == userID && uc.CategoryID == categoryID {
			f.m.UserCategories = append(f.m.UserCategories[:i], f.m.UserCategories[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f fakeCategories) DeleteUserCategories(_ context.Context, userID string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	kept := f.m.UserCategories[:0]
	for _, uc := range f.m.UserCategories {
		if uc.UserID != userID {
			kept = append(kept, uc)
		}
	}
	f.m.UserCategories = kept
	return nil
}

func (f fakeCategories) UserHasCategory(_ context.Context, userID, categoryID string) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, uc := range f.m.UserCategories {
		if uc.UserID == userID && uc.CategoryID == categoryID {
			return true, nil
		}
	}
	return false, nil
}

// tickets

type fakeTickets struct{ m *Store }

func (f fakeTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, t := range f.m.Tickets {
		if t.TicketNumber == ticket.TicketNumber {
			return fmt.Errorf("duplicate ticket number %s", ticket.TicketNumber)
		}
	}
	ticket.ID = f.m.nextID("ticket")
	ticket.CreatedAt = time.Now().Add(time.Duration(f.m.seq) * time.Millisecond)
	ticket.UpdatedAt = ticket.CreatedAt
	stored := *ticket
	f.m.Tickets[ticket.ID] = &stored
	return nil
}

func (f fakeTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.Tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	stored := *ticket
	f.m.Tickets[ticket.ID] = &stored
	return nil
}

func (f fakeTickets) Delete(_ context.Context, id string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.Tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.m.Tickets, id)
	return nil
}

func (f fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	t, ok := f.m.Tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return f.m.hydrate(*t), nil
}

func (f fakeTickets) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, t := range f.m.Tickets {
		if t.TicketNumber == number {
			return f.m.hydrate(*t), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f fakeTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.m.Tickets {
		if filter.CreatedForID != nil && t.CreatedForID != *filter.CreatedForID {
			continue
		}
		if filter.ManagerID != nil {
			mine := t.AssignedToManagerID != nil && *t.AssignedToManagerID == *filter.ManagerID
			unassigned := t.AssignedToManagerID == nil
			if !mine && !(filter.ManagerOrUnassigned && unassigned) {
				continue
			}
		}
		if filter.ExecutiveID != nil && (t.AssignedToExecutiveID == nil || *t.AssignedToExecutiveID != *filter.ExecutiveID) {
			continue
		}
		if filter.StatusID != nil && t.StatusID != *filter.StatusID {
			continue
		}
		out = append(out, *f.m.hydrate(*t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	start := filter.Page.Offset
	if start > total {
		start = total
	}
	end := start + filter.Page.Limit
	if filter.Page.Limit == 0 || end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (f fakeTickets) LatestCreatedFor(_ context.Context, userID string) (*domain.Ticket, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var latest *domain.Ticket
	for _, t := range f.m.Tickets {
		if t.CreatedForID == userID && (latest == nil || t.CreatedAt.After(latest.CreatedAt)) {
			latest = t
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	return f.m.hydrate(*latest), nil
}

type fakeHistories struct{ m *Store }

func (f fakeHistories) Create(_ context.Context, history *domain.TicketHistory) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	history.ID = f.m.nextID("hist")
	history.CreatedAt = time.Now()
	f.m.histories = append(f.m.histories, *history)
	return nil
}

func (f fakeHistories) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	return f.m.HistoriesFor(ticketID), nil
}

func (f fakeHistories) ListGrouped(_ context.Context, filter repository.HistoryFilter) ([]domain.TicketHistoryGroup, int, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.LastHistoryFilter = filter
	var groups []domain.TicketHistoryGroup
	for _, t := range f.m.Tickets {
		if filter.CreatedByID != nil && t.CreatedByID != *filter.CreatedByID {
			continue
		}
		if filter.ManagerID != nil && (t.AssignedToManagerID == nil || *t.AssignedToManagerID != *filter.ManagerID) {
			continue
		}
		group := domain.TicketHistoryGroup{TicketID: t.ID, TicketNumber: t.TicketNumber, Title: t.Title}
		for _, h := range f.m.histories {
			if h.TicketID == t.ID {
				group.Histories = append(group.Histories, h)
			}
		}
		groups = append(groups, group)
	}
	return groups, len(groups), nil
}

type fakeComments struct{ m *Store }

func (f fakeComments) Create(_ context.Context, comment *domain.Comment) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	comment.ID = f.m.nextID("comment")
	f.m.Comments = append(f.m.Comments, *comment)
	return nil
}

func (f fakeComments) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []domain.Comment
	for _, c := range f.m.Comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

// notifications

type fakeNotifications struct{ m *Store }

func (f fakeNotifications) Create(_ context.Context, n *domain.Notification) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.notificationCalls++
	if f.m.FailNotifications != nil && (f.m.FailNotificationAt == 0 || f.m.FailNotificationAt == f.m.notificationCalls) {
		return f.m.FailNotifications
	}
	n.ID = f.m.nextID("notif")
	n.CreatedAt = time.Now()
	stored := *n
	f.m.Notifications = append(f.m.Notifications, &stored)
	return nil
}

func (f fakeNotifications) GetForUser(_ context.Context, id, userID string) (*domain.Notification, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, n := range f.m.Notifications {
		if n.ID == id && n.UserID == userID {
			cp := *n
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f fakeNotifications) ListByUser(_ context.Context, userID string, status *domain.NotificationStatus) ([]domain.Notification, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []domain.Notification
	for i := len(f.m.Notifications) - 1; i >= 0; i-- {
		n := f.m.Notifications[i]
		if n.UserID == userID && (status == nil || n.Status == *status) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f fakeNotifications) MarkRead(_ context.Context, n *domain.Notification, at time.Time) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, stored := range f.m.Notifications {
		if stored.ID == n.ID {
			stored.Status = domain.NotificationRead
			if stored.ReadAt == nil {
				stored.ReadAt = &at
			}
			n.Status, n.ReadAt = stored.Status, stored.ReadAt
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *Store) NotificationsFor(userID string) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.Notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out
}

type fakeRules struct{ m *Store }

func (f fakeRules) List(context.Context) ([]domain.NotificationRule, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	return append([]domain.NotificationRule{}, f.m.rules...), nil
}

func (f fakeRules) Upsert(_ context.Context, rule *domain.NotificationRule) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for i, r := range f.m.rules {
		if r.Event == rule.Event {
			rule.ID = r.ID
			f.m.rules[i] = *rule
			return nil
		}
	}
	rule.ID = f.m.nextID("rule")
	f.m.rules = append(f.m.rules, *rule)
	return nil
}

type fakeOutbox struct{ m *Store }

func (f fakeOutbox) Enqueue(_ context.Context, event *domain.OutboxEvent) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	event.ID = f.m.nextID("outbox")
	f.m.Outbox = append(f.m.Outbox, *event)
	return nil
}

func (f fakeOutbox) LockPending(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []domain.OutboxEvent
	for _, e := range f.m.Outbox {
		if e.DispatchedAt == nil && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f fakeOutbox) MarkDispatched(_ context.Context, id string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	now := time.Now()
	for i := range f.m.Outbox {
		if f.m.Outbox[i].ID == id {
			f.m.Outbox[i].DispatchedAt = &now
		}
	}
	return nil
}

func (f fakeOutbox) MarkFailed(_ context.Context, id string, reason string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for i := range f.m.Outbox {
		if f.m.Outbox[i].ID == id {
			f.m.Outbox[i].Attempts++
			f.m.Outbox[i].LastError = &reason
		}
	}
	return nil
}

