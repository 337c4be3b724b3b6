package service

import (
	"context"
	"sync"
	"time"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/repository/repotest"
)

// fixture wires every service against one in-memory store.
type fixture struct {
	store         *repotest.Store
	uow           *repotest.UnitOfWork
	lookup        *LookupService
	users         *UserService
	tickets       *TicketService
	assignments   *AssignmentService
	admin         *AdminService
	notifications *NotificationService
	mailer        *recordingMailer
	now           time.Time
}

type sentMail struct {
	To       string
	Template string
	Data     map[string]any
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (r *recordingMailer) SendTemplate(_ context.Context, to, template string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMail{To: to, Template: template, Data: data})
	return r.err
}

func newFixture() *fixture {
	store := repotest.NewStore()
	repos := store.Repos()
	uow := &repotest.UnitOfWork{Store: store}
	f := &fixture{store: store, uow: uow, mailer: &recordingMailer{}, now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	f.lookup = NewLookupService(LookupDependencies{
		RoleRepo:       repos.Roles,
		CatalogRepo:    repos.Catalog,
		CategoryRepo:   repos.Categories,
		DepartmentRepo: repos.Departments,
		RuleRepo:       repos.Rules,
	})
	ticketDeps := TicketDependencies{Repos: repos, UnitOfWork: uow, Lookup: f.lookup, Now: clock}
	f.users = NewUserService(UserDependencies{Repos: repos, UnitOfWork: uow, Lookup: f.lookup, BcryptCost: 4})
	f.tickets = NewTicketService(ticketDeps)
	f.assignments = NewAssignmentService(ticketDeps)
	f.admin = NewAdminService(AdminDependencies{
		Repos:       repos,
		UnitOfWork:  uow,
		Lookup:      f.lookup,
		Users:       f.users,
		Assignments: f.assignments,
	})
	f.notifications = NewNotificationService(NotificationDependencies{
		Repos:      repos,
		UnitOfWork: uow,
		Lookup:     f.lookup,
		Mailer:     f.mailer,
		Now:        clock,
	})
	return f
}

func principalOf(u *domain.User) domain.Principal {
	return domain.Principal{UserID: u.ID, Email: u.Email, Roles: u.RoleKeys()}
}
