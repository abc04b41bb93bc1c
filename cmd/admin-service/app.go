package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq" // PostgreSQL driver

	"cardassist/internal/broker"
	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/internal/deadletter"
	"cardassist/internal/logger"
	"cardassist/pkg/bootstrap"
	"cardassist/pkg/health"
	"cardassist/pkg/logging"
	"cardassist/pkg/metrics"
	"cardassist/pkg/migrations"
	"cardassist/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	service        *deadletter.Service
	engine         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceNameAdmin)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceNameAdmin)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	repo, err := a.initRepository(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.InitBroker(ctx, constants.ServiceNameAdmin, true, true); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	metrics.RegisterAdminMetrics()
	metrics.RegisterBrokerMetrics()

	a.service = deadletter.NewService(repo, a.Producer, broker.TopologyOf(a.Conn), a.Logger)
	a.initHTTP(ctx)
	return nil
}

func (a *App) initRepository(ctx context.Context) (deadletter.Repository, error) {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return nil, err
	}
	if db == nil {
		a.Logger.WarnwCtx(ctx, "No PostgreSQL configured, dead letters are kept in memory")
		return deadletter.NewMemoryRepository(), nil
	}
	a.db = db

	if a.Config.Database.RunMigrations {
		if err := migrations.RunPostgres(db); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		a.Logger.InfowCtx(ctx, "Database migrations applied")
	}
	return deadletter.NewPostgresRepository(db), nil
}

func (a *App) initHTTP(ctx context.Context) {
	engine := bootstrap.NewEngine(ctx, constants.ServiceNameAdmin, a.Config, a.Logger)

	deadletter.NewHandler(a.service, a.Logger).RegisterRoutes(engine)

	registry := health.NewCheckerRegistry()
	registry.Register(health.NewCheckFunc("broker", a.Conn.Ping))
	if a.db != nil {
		registry.Register(health.NewPostgreSQLChecker(a.db))
	}
	bootstrap.MountOps(engine, registry)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.engine = engine
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	srv := bootstrap.NewServer(a.Config.Server, a.engine)
	g.Go(func() error {
		return bootstrap.Serve(gCtx, srv, constants.ShutdownTimeout, a.Logger)
	})

	dlq := broker.TopologyOf(a.Conn).DeadLetter
	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "Archiving dead letters", "queue", dlq)
		if err := a.Consumer.Consume(gCtx, dlq, a.service.Archive); err != nil && gCtx.Err() == nil {
			return fmt.Errorf("dead-letter consumer: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceNameAdmin)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down admin service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error
		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}
		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, nil, a.db, nil)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
