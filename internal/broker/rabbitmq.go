package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/internal/logger"
	"cardassist/pkg/errors"
	"cardassist/pkg/metrics"
	"cardassist/pkg/models"
	"cardassist/pkg/retry"
	"cardassist/pkg/tracing"
)

const contentTypeJSON = "application/json"

// RabbitConnection owns one AMQP connection. Every producer and every consumer
// worker opens its own channel on it.
type RabbitConnection struct {
	conn     *amqp.Connection
	cfg      config.RabbitMQConfig
	topology Topology
	logger   logger.Logger
}

func RabbitURL(cfg config.RabbitMQConfig) string {
	path := "/"
	if cfg.VHost != "" && cfg.VHost != "/" {
		path += url.PathEscape(cfg.VHost)
	}
	host := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return fmt.Sprintf("amqp://%s@%s%s", url.UserPassword(cfg.User, cfg.Password).String(), host, path)
}

// DialRabbitMQ connects with bounded retries and declares the exchange, the
// work queues and the dead-letter queue.
func DialRabbitMQ(ctx context.Context, cfg config.RabbitMQConfig, topology Topology, log logger.Logger) (*RabbitConnection, error) {
	attempts := cfg.DialAttempts
	if attempts <= 0 {
		attempts = constants.DefaultDialAttempts
	}
	delay := cfg.DialDelay
	if delay <= 0 {
		delay = constants.DefaultDialDelay
	}

	policy := retry.Policy{
		MaxAttempts:     attempts,
		InitialInterval: delay,
		MaxInterval:     4 * delay,
		Multiplier:      2,
	}

	var conn *amqp.Connection
	err := retry.RetryWithCallback(ctx, policy, func() error {
		c, err := amqp.DialConfig(RabbitURL(cfg), amqp.Config{
			Dial:       amqp.DefaultDial(10 * time.Second),
			Properties: amqp.Table{"connection_name": "cardassist"},
		})
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, func(attempt int, err error, next time.Duration) {
		log.Warnw("RabbitMQ dial failed, retrying",
			"attempt", attempt,
			"next_delay", next,
			"host", cfg.Host,
			"error", err,
		)
	})
	if err != nil {
		return nil, errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("dial rabbitmq: %w", err))
	}

	rc := &RabbitConnection{conn: conn, cfg: cfg, topology: topology, logger: log}
	if err := rc.declareTopology(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	log.Infow("RabbitMQ connected",
		"host", cfg.Host,
		"exchange", topology.Exchange,
		"queues", topology.WorkQueues(),
	)
	return rc, nil
}

func (c *RabbitConnection) declareTopology() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(c.topology.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.topology.Exchange, err)
	}

	bindings := make(map[string]string, len(c.topology.Queues)+1)
	for key, queue := range c.topology.Queues {
		bindings[key] = queue
	}
	bindings[constants.RoutingKeyDeadLetter] = c.topology.DeadLetter

	for key, queue := range bindings {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, key, c.topology.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", queue, key, err)
		}
	}
	return nil
}

func (c *RabbitConnection) Ping(ctx context.Context) error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("rabbitmq connection closed"))
	}
	return nil
}

func (c *RabbitConnection) Close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}

// RabbitProducer publishes persistent messages on a confirm-mode channel and
// waits for the broker's ack before returning.
type RabbitProducer struct {
	conn        *RabbitConnection
	logger      logger.Logger
	serviceName *serviceLabel

	mu sync.Mutex
	ch *amqp.Channel
}

func NewRabbitProducer(conn *RabbitConnection, log logger.Logger) *RabbitProducer {
	return &RabbitProducer{conn: conn, logger: log, serviceName: newServiceLabel("unknown")}
}

func (p *RabbitProducer) SetServiceName(name string) {
	p.serviceName.Set(name)
}

func (p *RabbitProducer) Publish(ctx context.Context, routingKey string, msg models.RoutedMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	headers := tracing.InjectAMQP(ctx, nil)
	return p.publish(ctx, routingKey, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.Envelope.MessageID,
		Timestamp:    time.Now().UTC(),
		Type:         string(msg.Target),
		Headers:      headers,
		Body:         body,
	})
}

func (p *RabbitProducer) publishRaw(ctx context.Context, routingKey string, body []byte, reason string) error {
	return p.publish(ctx, routingKey, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{"x-poison-reason": reason},
		Body:         body,
	})
}

func (p *RabbitProducer) publish(ctx context.Context, routingKey string, pub amqp.Publishing) error {
	start := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return errors.ErrBrokerUnavailable.WithCause(err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.conn.topology.Exchange, routingKey, false, false, pub)
	if err != nil {
		p.reset()
		return errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("publish to %s: %w", routingKey, err))
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("await confirm for %s: %w", routingKey, err))
	}
	if !acked {
		return errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("broker nacked message on %s", routingKey))
	}

	service := p.serviceName.String()
	metrics.IncBrokerPublished(service, routingKey)
	metrics.ObserveBrokerMessageSize(service, routingKey, "publish", len(pub.Body))
	metrics.ObserveBrokerPublishDuration(service, routingKey, time.Since(start))
	return nil
}

// channel must be called with p.mu held.
func (p *RabbitProducer) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("confirm mode: %w", err)
	}
	p.ch = ch
	return ch, nil
}

func (p *RabbitProducer) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}

func (p *RabbitProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}

// RabbitConsumer shares the service's AMQP connection; each worker gets its
// own channel. pub dead-letters and republishes on its own confirm channel.
type RabbitConsumer struct {
	conn        *RabbitConnection
	logger      logger.Logger
	pub         *RabbitProducer
	serviceName *serviceLabel
	wg          sync.WaitGroup
}

func NewRabbitConsumer(conn *RabbitConnection, log logger.Logger) *RabbitConsumer {
	return &RabbitConsumer{
		conn:        conn,
		logger:      log,
		pub:         NewRabbitProducer(conn, log),
		serviceName: newServiceLabel("unknown"),
	}
}

func (c *RabbitConsumer) SetServiceName(name string) {
	c.serviceName.Set(name)
	c.pub.SetServiceName(name)
}

// Consume runs the configured number of workers on queue, each on its own
// channel, and returns when ctx is done or a worker loses its channel.
func (c *RabbitConsumer) Consume(ctx context.Context, queue string, handler HandlerFunc) error {
	workers := c.conn.cfg.Workers
	if workers <= 0 {
		workers = constants.DefaultWorkers
	}

	service := c.serviceName.String()
	s := &settler{
		logger:          c.logger,
		serviceName:     service,
		deadLetterQueue: c.conn.topology.DeadLetter,
		deadLetter: func(ctx context.Context, msg models.RoutedMessage) error {
			return c.pub.Publish(ctx, constants.RoutingKeyDeadLetter, msg)
		},
		poison: func(ctx context.Context, body []byte, reason string) error {
			return c.pub.publishRaw(ctx, constants.RoutingKeyDeadLetter, body, reason)
		},
		republish: func(ctx context.Context, queue string, msg models.RoutedMessage) error {
			key, ok := c.conn.topology.RoutingKeyFor(queue)
			if !ok {
				return fmt.Errorf("no routing key bound to queue %q", queue)
			}
			return c.pub.Publish(ctx, key, msg)
		},
	}

	c.wg.Add(1)
	defer c.wg.Done()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		worker := i
		g.Go(func() error {
			return c.work(gctx, queue, worker, service, s, handler)
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *RabbitConsumer) work(ctx context.Context, queue string, worker int, service string, s *settler, handler HandlerFunc) error {
	ch, err := c.conn.conn.Channel()
	if err != nil {
		return errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("open channel: %w", err))
	}
	defer ch.Close()

	prefetch := c.conn.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = constants.DefaultPrefetch
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	tag := fmt.Sprintf("%s-%s-%d", service, queue, worker)
	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	c.logger.Infow("Started consuming",
		"queue", queue,
		"worker", worker,
		"prefetch", prefetch,
		"service_name", service,
	)

	for {
		select {
		case <-ctx.Done():
			_ = ch.Cancel(tag, false)
			c.logger.Infow("Stopped consuming", "queue", queue, "worker", worker, "reason", "context canceled")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("delivery channel for %s closed", queue))
			}
			c.handle(ctx, queue, d, s, handler)
		}
	}
}

func (c *RabbitConsumer) handle(ctx context.Context, queue string, d amqp.Delivery, s *settler, handler HandlerFunc) {
	msgCtx := tracing.ExtractAMQP(ctx, d.Headers)
	msgCtx, span := tracing.StartConsumerSpan(msgCtx, "rabbitmq.consume "+queue)
	defer span.End()

	switch s.settle(msgCtx, queue, d.Body, handler) {
	case dispositionRequeue:
		if err := d.Nack(false, true); err != nil {
			c.logger.ErrorwCtx(msgCtx, "Failed to nack message", "queue", queue, "error", err)
		}
	default:
		if err := d.Ack(false); err != nil {
			c.logger.ErrorwCtx(msgCtx, "Failed to ack message", "queue", queue, "error", err)
		}
	}
}

func (c *RabbitConsumer) Close() error {
	c.wg.Wait()
	return c.pub.Close()
}
