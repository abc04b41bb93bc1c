package broker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/internal/logger"
	"cardassist/pkg/errors"
	"cardassist/pkg/logging"
	"cardassist/pkg/metrics"
	"cardassist/pkg/models"
	"cardassist/pkg/tracing"
)

const kafkaRetryDelay = time.Second

// KafkaConnection holds broker addresses; kafka-go opens sockets per writer
// and reader, so every consumer worker gets its own reader.
type KafkaConnection struct {
	cfg      config.KafkaConfig
	topology Topology
	logger   logger.Logger
}

func NewKafkaConnection(cfg config.KafkaConfig, topology Topology, log logger.Logger) *KafkaConnection {
	return &KafkaConnection{cfg: cfg, topology: topology, logger: log}
}

func (c *KafkaConnection) Ping(ctx context.Context) error {
	if len(c.cfg.Brokers) == 0 {
		return errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("no kafka brokers configured"))
	}
	conn, err := kafka.DialContext(ctx, "tcp", c.cfg.Brokers[0])
	if err != nil {
		return errors.ErrBrokerUnavailable.WithCause(err)
	}
	return conn.Close()
}

func (c *KafkaConnection) Close() error {
	return nil
}

type KafkaProducer struct {
	writer      *kafka.Writer
	topology    Topology
	logger      logger.Logger
	serviceName *serviceLabel
}

func NewKafkaProducer(conn *KafkaConnection, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(conn.cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &KafkaProducer{writer: w, topology: conn.topology, logger: log, serviceName: newServiceLabel("unknown")}
}

func (p *KafkaProducer) SetServiceName(name string) {
	p.serviceName.Set(name)
}

func (p *KafkaProducer) Publish(ctx context.Context, routingKey string, msg models.RoutedMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.write(ctx, routingKey, []byte(msg.Envelope.MessageID), body, tracing.InjectKafka(ctx, nil))
}

func (p *KafkaProducer) publishRaw(ctx context.Context, routingKey string, body []byte, reason string) error {
	return p.write(ctx, routingKey, nil, body, []kafka.Header{{Key: "x-poison-reason", Value: []byte(reason)}})
}

func (p *KafkaProducer) write(ctx context.Context, routingKey string, key, body []byte, headers []kafka.Header) error {
	topic, ok := p.topology.QueueFor(routingKey)
	if !ok {
		return fmt.Errorf("no kafka topic for routing key %q", routingKey)
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   body,
		Headers: headers,
		Time:    time.Now(),
	})
	if err != nil {
		return errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("failed to write kafka message: %w", err))
	}

	service := p.serviceName.String()
	metrics.IncBrokerPublished(service, topic)
	metrics.ObserveBrokerMessageSize(service, topic, "publish", len(body))
	metrics.ObserveBrokerPublishDuration(service, topic, time.Since(start))
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaConsumer struct {
	conn        *KafkaConnection
	logger      logger.Logger
	pub         *KafkaProducer
	serviceName *serviceLabel

	mu      sync.Mutex
	readers []*kafka.Reader
	wg      sync.WaitGroup
}

func NewKafkaConsumer(conn *KafkaConnection, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		conn:        conn,
		logger:      log,
		pub:         NewKafkaProducer(conn, log),
		serviceName: newServiceLabel("unknown"),
	}
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName.Set(name)
	c.pub.SetServiceName(name)
}

func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	service := c.serviceName.String()
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.conn.cfg.Brokers,
		"group_id", c.conn.cfg.GroupID,
		"service_name", service,
	)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.conn.cfg.Brokers,
		GroupID:  c.conn.cfg.GroupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	c.mu.Lock()
	c.readers = append(c.readers, reader)
	c.mu.Unlock()

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
		republish: func(ctx context.Context, topic string, msg models.RoutedMessage) error {
			key, ok := c.conn.topology.RoutingKeyFor(topic)
			if !ok {
				return fmt.Errorf("no routing key bound to topic %q", topic)
			}
			return c.pub.Publish(ctx, key, msg)
		},
	}

	c.wg.Add(1)
	defer c.wg.Done()

	consumeCtx := logging.WithServiceName(ctx, service)
	c.logger.InfowCtx(consumeCtx, "Started consuming", "topic", topic)

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfowCtx(consumeCtx, "Stopped consuming",
					"topic", topic,
					"reason", "context canceled",
				)
				return ctx.Err()
			}
			if stderrors.Is(err, io.EOF) {
				// Reader closed.
				return nil
			}
			c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
				"error", err,
				"topic", topic,
			)
			sleep(ctx, kafkaRetryDelay)
			continue
		}

		if c.process(ctx, topic, m, s, handler) == dispositionRequeue {
			// Uncommitted; the group redelivers it after restart.
			return ctx.Err()
		}

		// A message republished during shutdown must still be committed, or
		// the stale copy would be redelivered next to the updated one.
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.KafkaWriteTimeout)
		err = reader.CommitMessages(commitCtx, m)
		cancel()
		if err != nil {
			c.logger.ErrorwCtx(consumeCtx, "Failed to commit message",
				"error", err,
				"topic", topic,
				"offset", m.Offset,
			)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// process settles m, retrying in place while the outcome is a plain requeue.
// It returns dispositionRequeue only when ctx ended first.
func (c *KafkaConsumer) process(ctx context.Context, topic string, m kafka.Message, s *settler, handler HandlerFunc) disposition {
	for {
		msgCtx := tracing.ExtractKafka(ctx, m.Headers)
		msgCtx, span := tracing.StartConsumerSpan(msgCtx, "kafka.consume "+topic)
		d := s.settle(msgCtx, topic, m.Value, handler)
		span.End()

		if d != dispositionRequeue || ctx.Err() != nil {
			return d
		}
		sleep(ctx, kafkaRetryDelay)
	}
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	readers := c.readers
	c.readers = nil
	c.mu.Unlock()

	var err error
	for _, r := range readers {
		if closeErr := r.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	if closeErr := c.pub.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	c.wg.Wait()
	return err
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
