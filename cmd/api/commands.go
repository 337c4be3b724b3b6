package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itsm-platform/ticketing-service/internal/config"
	"github.com/itsm-platform/ticketing-service/internal/observability"
	"github.com/itsm-platform/ticketing-service/internal/persistence"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "itsm-api",
		Short:         "ITSM ticketing backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running the binary without a subcommand starts the server.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newSeedCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, outbox relay and notification consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	for _, direction := range []persistence.MigrationDirection{persistence.MigrateUp, persistence.MigrateDown, persistence.MigrateStatus} {
		cmd.AddCommand(&cobra.Command{
			Use:   string(direction),
			Short: fmt.Sprintf("Run goose %s", direction),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), func(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) error {
					return persistence.Migrate(ctx, pg.PoolHandle(), direction, logger)
				})
			},
		})
	}
	return cmd
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load reference data and the bootstrap super admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) error {
				return persistence.Seed(ctx, pg.PoolHandle(), persistence.SeedOptions{
					SuperAdminEmail:    cfg.Seed.SuperAdminEmail,
					SuperAdminPassword: cfg.Seed.SuperAdminPassword,
					SuperAdminName:     cfg.Seed.SuperAdminName,
					BcryptCost:         cfg.Auth.BcryptCost,
				}, logger)
			})
		},
	}
}

// withDatabase runs fn with config, logger and a Postgres pool, cancelled on SIGINT/SIGTERM.
func withDatabase(parent context.Context, fn func(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) error) error {
	ctx, stop := signal.NotifyContext(contextOrBackground(parent), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	return fn(ctx, cfg, pg, logger)
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
