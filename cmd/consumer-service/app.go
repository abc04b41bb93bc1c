package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"cardassist/internal/actions"
	"cardassist/internal/auth"
	"cardassist/internal/broker"
	"cardassist/internal/classifier"
	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/internal/consumer"
	"cardassist/internal/idempotency"
	"cardassist/internal/inference"
	"cardassist/internal/knowledge"
	"cardassist/internal/logger"
	"cardassist/internal/response"
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
	mongoClient    *mongo.Client
	processor      *consumer.Processor
	engine         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceNameConsumer)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceNameConsumer)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if a.needsRedis() {
		rdb, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		if rdb == nil {
			return fmt.Errorf("redis store selected but no redis host is configured")
		}
		a.redis = rdb
	}

	index, err := a.loadKnowledge(ctx)
	if err != nil {
		return fmt.Errorf("failed to load knowledge index: %w", err)
	}

	if err := a.InitBroker(ctx, constants.ServiceNameConsumer, false, true); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	metrics.RegisterConsumerMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterRouterMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initProcessor(index)
	a.initHTTP(ctx)
	return nil
}

func (a *App) needsRedis() bool {
	return a.Config.Idempotency.Store == constants.StoreRedis || a.Config.Sink.Store == constants.StoreRedis
}

func (a *App) loadKnowledge(ctx context.Context) (*knowledge.Index, error) {
	var src knowledge.Source = knowledge.EmbeddedSource{}
	if a.Config.Knowledge.Source == constants.KnowledgeSourceMongoDB {
		client, err := a.dbConnector.InitMongoDB(ctx)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("knowledge.source is mongodb but no mongodb uri is configured")
		}
		a.mongoClient = client
		src = knowledge.NewMongoSource(client.Database(a.Config.Database.MongoDB.Database), a.Config.Knowledge.Collection)
	}

	index, err := knowledge.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	a.Logger.InfowCtx(ctx, "Knowledge index loaded", "source", a.Config.Knowledge.Source, "entries", index.Len())
	return index, nil
}

func (a *App) initProcessor(index *knowledge.Index) {
	client := inference.New(a.Config.Inference, a.Config.CircuitBreaker)

	var idemStore idempotency.Store = idempotency.NewMemoryStore()
	if a.Config.Idempotency.Store == constants.StoreRedis {
		idemStore = idempotency.NewRedisStore(a.redis)
		if a.Config.CircuitBreaker.Enabled {
			idemStore = idempotency.NewCircuitBreakerStore(idemStore, a.Config.CircuitBreaker)
		}
	}

	var store response.Store = response.NewMemoryStore()
	if a.Config.Sink.Store == constants.StoreRedis {
		store = response.NewRedisStore(a.redis, a.Config.Sink.ResponseTTL)
	}
	var webhook *response.WebhookSink
	if len(a.Config.Sink.Webhooks) > 0 {
		webhook = response.NewWebhookSink(a.Config.Sink.Webhooks)
	}

	accounts := actions.NewService(actions.NewMemoryRepository(), a.Logger)

	a.processor = consumer.NewProcessor(consumer.Deps{
		Classifier:  classifier.New(client, a.Config.Classifier, a.Logger),
		Knowledge:   index,
		Actions:     actions.NewDispatcher(accounts, auth.NewManager(a.Config.Auth), a.Logger),
		Generator:   client,
		Sink:        response.NewChannelSink(store, webhook, a.Logger),
		Idempotency: idempotency.NewService(idemStore, a.Config.Idempotency, a.Logger),
	}, a.Config.Consumer, a.Config.Routing.BillQueryTarget, a.Logger)
}

func (a *App) initHTTP(ctx context.Context) {
	engine := bootstrap.NewEngine(ctx, constants.ServiceNameConsumer, a.Config, a.Logger)

	registry := health.NewCheckerRegistry()
	registry.Register(health.NewCheckFunc("broker", a.Conn.Ping))
	if a.redis != nil {
		registry.Register(health.NewRedisChecker(a.redis))
	}
	if a.mongoClient != nil {
		registry.RegisterOptional(health.NewMongoDBChecker(a.mongoClient))
	}
	bootstrap.MountOps(engine, registry)

	a.engine = engine
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	srv := bootstrap.NewServer(a.Config.Server, a.engine)
	g.Go(func() error {
		return bootstrap.Serve(gCtx, srv, constants.ShutdownTimeout, a.Logger)
	})

	queues := broker.TopologyOf(a.Conn).WorkQueues()
	g.Go(func() error {
		return consumer.RunWorkers(gCtx, a.Consumer, queues, a.processor, a.Logger)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceNameConsumer)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down consumer service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error
		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}
		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, nil, a.mongoClient)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
