package bootstrap

import (
	"context"
	"fmt"

	"cardassist/internal/broker"
	"cardassist/internal/config"
	"cardassist/internal/logger"
)

type serviceNamer interface {
	SetServiceName(name string)
}

// Base carries what every service owns: config, logger and the broker
// connection with the producer and consumer built on it.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Conn     broker.Connection
	Producer broker.Producer
	Consumer broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitBroker opens the broker connection. The producer and consumer are only
// created when requested.
func (b *Base) InitBroker(ctx context.Context, serviceName string, withProducer, withConsumer bool) error {
	conn, err := broker.Connect(ctx, b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	b.Conn = conn

	if withProducer {
		producer, err := broker.NewProducer(conn, b.Logger)
		if err != nil {
			return fmt.Errorf("failed to create producer: %w", err)
		}
		if sn, ok := producer.(serviceNamer); ok && serviceName != "" {
			sn.SetServiceName(serviceName)
		}
		b.Producer = producer
	}

	if withConsumer {
		consumer, err := broker.NewConsumer(conn, b.Logger)
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
		if serviceName != "" {
			consumer.SetServiceName(serviceName)
		}
		b.Consumer = consumer
	}

	return nil
}

// ShutdownBroker stops consumers before producers and releases the
// connection last.
func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if b.Conn != nil {
		if err := b.Conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("broker connection close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	errs = append(errs, b.ShutdownBroker()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	_ = b.Logger.Sync()
	return nil
}
