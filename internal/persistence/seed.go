package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/itsm-platform/ticketing-service/internal/auth"
	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/repository"
)

// SeedOptions configures the bootstrap super admin.
type SeedOptions struct {
	SuperAdminEmail    string
	SuperAdminPassword string
	SuperAdminName     string
	BcryptCost         int
}

const seedOrganization = "ITSM"

type seedRole struct {
	key  domain.RoleKey
	name string
}

type seedCategory struct {
	department string
	name       string
	code       string
}

type seedPriority struct {
	name  string
	order int
}

type seedRule struct {
	event      domain.TicketEventType
	recipients []domain.RecipientType
	active     bool
}

var (
	seedRoles = []seedRole{
		{domain.RoleEmployee, "Employee"},
		{domain.RoleManager, "IT Manager"},
		{domain.RoleITExecutive, "IT Executive"},
		{domain.RoleSuperAdmin, "Super Admin"},
	}
	seedDepartments = []string{"IT", "HR", "Admin"}
	seedCategories  = []seedCategory{
		{"IT", "Hardware", "HW"},
		{"IT", "Software", "SW"},
		{"IT", "Network", "NET"},
		{"IT", "Access and Permissions", "ACC"},
		{"IT", "Infrastructure", "INF"},
		{"IT", "Security", "SEC"},
		{"Admin", "Request", "REQ"},
	}
	seedPriorities = []seedPriority{
		{"Critical", 1},
		{"High", 2},
		{domain.PriorityMedium, 3},
		{"Low", 4},
	}
	seedStatuses = []string{
		domain.StatusNew,
		domain.StatusAssigned,
		domain.StatusInProgress,
		"Waiting",
		"On Hold",
		domain.StatusResolved,
		domain.StatusClosed,
		domain.StatusCancelled,
		"Escalated",
	}
	seedRules = []seedRule{
		{domain.EventCreate, []domain.RecipientType{domain.RecipientCreatedBy}, true},
		{domain.EventAssign, []domain.RecipientType{domain.RecipientCreatedBy, domain.RecipientAssignedTo}, true},
		{domain.EventStatusChange, []domain.RecipientType{domain.RecipientCreatedBy, domain.RecipientAssignedTo}, true},
		{domain.EventUpdate, []domain.RecipientType{domain.RecipientCreatedBy}, false},
	}
)

// Seed loads reference data and the super admin in one transaction. Existing
// rows are left untouched, so it is safe to run repeatedly.
func Seed(ctx context.Context, pool *pgxpool.Pool, opts SeedOptions, logger *zap.Logger) error {
	if pool == nil {
		return errors.New("seed: postgres pool required")
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		roleIDs := make(map[domain.RoleKey]string, len(seedRoles))
		for _, r := range seedRoles {
			var id string
			err := tx.QueryRow(ctx, `
                INSERT INTO roles (key, name) VALUES ($1, $2)
                ON CONFLICT (key) DO UPDATE SET key = EXCLUDED.key
                RETURNING id`, r.key, r.name).Scan(&id)
			if err != nil {
				return fmt.Errorf("seed role %s: %w", r.key, err)
			}
			roleIDs[r.key] = id
		}

		var orgID string
		if err := tx.QueryRow(ctx, `
            INSERT INTO organizations (name) VALUES ($1)
            ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
            RETURNING id`, seedOrganization).Scan(&orgID); err != nil {
			return fmt.Errorf("seed organization: %w", err)
		}

		deptIDs := make(map[string]string, len(seedDepartments))
		for _, name := range seedDepartments {
			var id string
			err := tx.QueryRow(ctx, `
                INSERT INTO departments (organization_id, name) VALUES ($1, $2)
                ON CONFLICT (organization_id, name) DO UPDATE SET name = EXCLUDED.name
                RETURNING id`, orgID, name).Scan(&id)
			if err != nil {
				return fmt.Errorf("seed department %s: %w", name, err)
			}
			deptIDs[name] = id
		}

		for _, c := range seedCategories {
			if _, err := tx.Exec(ctx, `
                INSERT INTO ticket_categories (department_id, name, code) VALUES ($1, $2, $3)
                ON CONFLICT DO NOTHING`, deptIDs[c.department], c.name, c.code); err != nil {
				return fmt.Errorf("seed category %s: %w", c.code, err)
			}
		}
		for _, p := range seedPriorities {
			if _, err := tx.Exec(ctx, `
                INSERT INTO ticket_priorities (name, sort_order) VALUES ($1, $2)
                ON CONFLICT (name) DO NOTHING`, p.name, p.order); err != nil {
				return fmt.Errorf("seed priority %s: %w", p.name, err)
			}
		}
		for _, s := range seedStatuses {
			if _, err := tx.Exec(ctx, `INSERT INTO ticket_statuses (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, s); err != nil {
				return fmt.Errorf("seed status %s: %w", s, err)
			}
		}
		for _, r := range seedRules {
			recipients := make([]string, len(r.recipients))
			for i, rt := range r.recipients {
				recipients[i] = string(rt)
			}
			if _, err := tx.Exec(ctx, `
                INSERT INTO notification_rules (event, recipient_types, is_active) VALUES ($1, $2, $3)
                ON CONFLICT (event) DO NOTHING`, string(r.event), recipients, r.active); err != nil {
				return fmt.Errorf("seed rule %s: %w", r.event, err)
			}
		}

		if err := seedSuperAdmin(ctx, repository.NewUserRepository(tx), roleIDs[domain.RoleSuperAdmin], opts, logger); err != nil {
			return err
		}

		logger.Info("seed finished",
			zap.Int("roles", len(seedRoles)),
			zap.Int("departments", len(seedDepartments)),
			zap.Int("categories", len(seedCategories)),
			zap.Int("statuses", len(seedStatuses)),
		)
		return nil
	})
}

func seedSuperAdmin(ctx context.Context, users repository.UserRepository, roleID string, opts SeedOptions, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(opts.SuperAdminEmail))
	if email == "" {
		logger.Warn("no super admin email configured; skipping")
		return nil
	}
	if _, err := users.GetByEmail(ctx, email); err == nil {
		logger.Info("super admin already present", zap.String("email", email))
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lookup super admin: %w", err)
	}

	hash, err := auth.HashPassword(opts.SuperAdminPassword, opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash super admin password: %w", err)
	}
	key, err := users.NextUniqueKey(ctx, domain.UniqueKeyPrefix([]domain.RoleKey{domain.RoleSuperAdmin}))
	if err != nil {
		return fmt.Errorf("allocate super admin key: %w", err)
	}
	admin := &domain.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     opts.SuperAdminName,
		UniqueKey:    key,
		IsAvailable:  true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create super admin: %w", err)
	}
	if err := users.AddRole(ctx, admin.ID, roleID); err != nil {
		return fmt.Errorf("grant super admin role: %w", err)
	}
	logger.Info("super admin created", zap.String("email", email), zap.String("unique_key", key))
	return nil
}
