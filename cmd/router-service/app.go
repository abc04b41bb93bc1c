package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"cardassist/internal/actions"
	"cardassist/internal/auth"
	"cardassist/internal/classifier"
	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/internal/inference"
	"cardassist/internal/ingress"
	"cardassist/internal/logger"
	"cardassist/internal/response"
	"cardassist/internal/router"
	"cardassist/pkg/bootstrap"
	"cardassist/pkg/health"
	"cardassist/pkg/logging"
	"cardassist/pkg/metrics"
	"cardassist/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	responses      response.Store
	engine         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceNameRouter)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceNameRouter)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initResponseStore(ctx); err != nil {
		return fmt.Errorf("failed to initialize response store: %w", err)
	}

	if err := a.InitBroker(ctx, constants.ServiceNameRouter, true, false); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	metrics.RegisterRouterMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTP(ctx)
	return nil
}

func (a *App) initResponseStore(ctx context.Context) error {
	if a.Config.Sink.Store != constants.StoreRedis {
		a.Logger.WarnwCtx(ctx, "Using in-memory response store, queued replies are only visible to consumers in this process")
		a.responses = response.NewMemoryStore()
		return nil
	}

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	if rdb == nil {
		return fmt.Errorf("sink.store is redis but no redis host is configured")
	}
	a.redis = rdb
	a.responses = response.NewRedisStore(rdb, a.Config.Sink.ResponseTTL)
	return nil
}

func (a *App) initHTTP(ctx context.Context) {
	verifier := auth.NewManager(a.Config.Auth)
	client := inference.New(a.Config.Inference, a.Config.CircuitBreaker)
	cls := classifier.New(client, a.Config.Classifier, a.Logger)
	rt := router.New(cls, a.Producer, a.Config.Routing.BillQueryTarget, a.Logger)

	engine := bootstrap.NewEngine(ctx, constants.ServiceNameRouter, a.Config, a.Logger)

	ingress.NewHandler(rt, a.responses, verifier, a.Config.Ingress, a.Logger).RegisterRoutes(engine)
	accounts := actions.NewService(actions.NewMemoryRepository(), a.Logger)
	ingress.NewActionsHandler(accounts, verifier, a.Logger).RegisterRoutes(engine)

	registry := health.NewCheckerRegistry()
	registry.Register(health.NewCheckFunc("broker", a.Conn.Ping))
	if a.redis != nil {
		registry.Register(health.NewRedisChecker(a.redis))
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

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceNameRouter)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down router service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error
		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}
		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, nil, nil)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
