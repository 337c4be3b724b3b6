package persistence

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationDirection selects what RunMigrations does.
type MigrationDirection string

const (
	MigrateUp     MigrationDirection = "up"
	MigrateDown   MigrationDirection = "down"
	MigrateStatus MigrationDirection = "status"
)

// RunMigrations applies the embedded goose migrations against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	return Migrate(ctx, pool, MigrateUp, logger)
}

// Migrate runs goose in the requested direction. Down rolls back a single version.
func Migrate(ctx context.Context, pool *pgxpool.Pool, direction MigrationDirection, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	from, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	switch direction {
	case MigrateUp:
		err = goose.UpContext(ctx, db, migrationsDir)
	case MigrateDown:
		err = goose.DownContext(ctx, db, migrationsDir)
	case MigrateStatus:
		err = goose.StatusContext(ctx, db, migrationsDir)
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}

	to, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	logger.Info("migrations finished",
		zap.String("direction", string(direction)),
		zap.Int64("from_version", from),
		zap.Int64("to_version", to),
	)
	return nil
}
