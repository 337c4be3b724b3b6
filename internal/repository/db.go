package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles every repository bound to the same DBTX.
type Repositories struct {
	Users         UserRepository
	Roles         RoleRepository
	Departments   DepartmentRepository
	Categories    CategoryRepository
	Catalog       CatalogRepository
	Tickets       TicketRepository
	Histories     TicketHistoryRepository
	Comments      CommentRepository
	Notifications NotificationRepository
	Rules         NotificationRuleRepository
	Outbox        OutboxRepository
}

// NewRepositories binds all repositories to db.
func NewRepositories(db DBTX) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(db),
		Roles:         NewRoleRepository(db),
		Departments:   NewDepartmentRepository(db),
		Categories:    NewCategoryRepository(db),
		Catalog:       NewCatalogRepository(db),
		Tickets:       NewTicketRepository(db),
		Histories:     NewTicketHistoryRepository(db),
		Comments:      NewCommentRepository(db),
		Notifications: NewNotificationRepository(db),
		Rules:         NewNotificationRuleRepository(db),
		Outbox:        NewOutboxRepository(db),
	}
}

// UnitOfWork runs fn against repositories sharing one transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error
}

type pgUnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork returns a pgx transaction-backed UnitOfWork.
func NewUnitOfWork(pool *pgxpool.Pool) UnitOfWork {
	return &pgUnitOfWork{pool: pool}
}

func (u *pgUnitOfWork) Within(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error {
	return pgx.BeginTxFunc(ctx, u.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, NewRepositories(tx))
	})
}

// Page normalizes limit/offset pagination.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized(defaultLimit int) Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
