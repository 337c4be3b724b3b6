package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/itsm-platform/ticketing-service/internal/api/http"
	"github.com/itsm-platform/ticketing-service/internal/api/http/handlers"
	"github.com/itsm-platform/ticketing-service/internal/auth"
	"github.com/itsm-platform/ticketing-service/internal/config"
	"github.com/itsm-platform/ticketing-service/internal/events"
	"github.com/itsm-platform/ticketing-service/internal/mailer"
	"github.com/itsm-platform/ticketing-service/internal/observability"
	"github.com/itsm-platform/ticketing-service/internal/persistence"
	"github.com/itsm-platform/ticketing-service/internal/repository"
	"github.com/itsm-platform/ticketing-service/internal/service"
	"github.com/itsm-platform/ticketing-service/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func runServe(parent context.Context) error {
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	queue, err := newQueue(ctx, cfg, redis, logger)
	if err != nil {
		return err
	}
	defer queue.Close() //nolint:errcheck

	metrics := observability.NewMetrics("itsm")
	pool := pg.PoolHandle()
	repos := repository.NewRepositories(pool)
	uow := repository.NewUnitOfWork(pool)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())

	lookup := service.NewLookupService(service.LookupDependencies{
		RoleRepo:       repos.Roles,
		CatalogRepo:    repos.Catalog,
		CategoryRepo:   repos.Categories,
		DepartmentRepo: repos.Departments,
		RuleRepo:       repos.Rules,
	})
	ticketDeps := service.TicketDependencies{Repos: repos, UnitOfWork: uow, Lookup: lookup, Logger: logger}
	users := service.NewUserService(service.UserDependencies{
		Repos:      repos,
		UnitOfWork: uow,
		Lookup:     lookup,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     logger,
	})
	tickets := service.NewTicketService(ticketDeps)
	assignments := service.NewAssignmentService(ticketDeps)
	admin := service.NewAdminService(service.AdminDependencies{
		Repos:       repos,
		UnitOfWork:  uow,
		Lookup:      lookup,
		Users:       users,
		Assignments: assignments,
		Logger:      logger,
	})
	notifications := service.NewNotificationService(service.NotificationDependencies{
		Repos:      repos,
		UnitOfWork: uow,
		Lookup:     lookup,
		Mailer:     mailer.NewMailer(mailer.NewTemplateStore(cfg.Mail.TemplateDir), newSender(cfg.Mail, logger)),
		Logger:     logger,
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Users:          handlers.NewUsersHandler(service.NewAuthService(repos.Users, tokens), users),
		Tickets:        handlers.NewTicketsHandler(tickets, assignments),
		Lookup:         handlers.NewLookupHandler(lookup),
		Admin:          handlers.NewAdminHandler(admin),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.Users),
		Metrics:        metrics,
	})

	relay := worker.NewOutboxRelay(uow, queue, worker.OutboxRelayConfig{
		Interval:  cfg.Outbox.PollInterval(),
		BatchSize: cfg.Outbox.BatchSize,
	}, logger, metrics)
	consumer := worker.NewNotificationWorker(queue, notifications, worker.NotificationWorkerConfig{
		MaxRetries:   cfg.Queue.MaxRetries,
		RetryInitial: cfg.Queue.RetryInitial(),
	}, logger, metrics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return app.ShutdownWithContext(shutdownCtx)
	})
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return consumer.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newQueue(ctx context.Context, cfg *config.Config, redis *persistence.Redis, logger *zap.Logger) (events.Queue, error) {
	switch cfg.Queue.Driver {
	case config.QueueDriverKafka:
		return events.NewKafkaQueue(events.KafkaOptions{
			Brokers:    cfg.Queue.KafkaBrokers,
			Topic:      cfg.Queue.Name,
			DeadLetter: cfg.Queue.DeadLetterName(),
			Group:      cfg.Queue.Group,
		}), nil
	default:
		q, err := events.NewRedisStreamQueue(ctx, redis.Client, events.RedisStreamOptions{
			Stream:     cfg.Queue.Name,
			DeadLetter: cfg.Queue.DeadLetterName(),
			Group:      cfg.Queue.Group,
			Consumer:   cfg.Queue.Consumer,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init redis stream queue: %w", err)
		}
		return q, nil
	}
}

func newSender(cfg config.MailConfig, logger *zap.Logger) mailer.Sender {
	if cfg.Enabled {
		return mailer.NewSMTPSender(cfg)
	}
	return mailer.LogSender{Logger: logger}
}
