package broker

import (
	"context"
	stderrors "errors"
	"sync/atomic"

	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/pkg/models"
)

// Connection is the transport handle a service acquires once at startup and
// releases on shutdown. Producers and consumers are built on top of it.
type Connection interface {
	Ping(ctx context.Context) error
	Close() error
}

type Producer interface {
	Publish(ctx context.Context, routingKey string, msg models.RoutedMessage) error
	Close() error
}

// Consumer delivers messages of one queue to a handler until ctx is done. A
// nil handler result acknowledges the message; an error dead-letters a copy
// and then acknowledges it; a cancelled ctx or ErrRequeue leaves it for
// redelivery. When the handler advanced Envelope.AttemptCount, the message
// is republished with the new count rather than requeued as received.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg *models.RoutedMessage) error

// ErrRequeue, wrapped into a handler error, returns the message to its queue
// instead of dead-lettering it.
var ErrRequeue = stderrors.New("requeue")

// serviceLabel is the service name used in broker metrics and logs. It can be
// set after the producer or consumer has been handed to other goroutines.
type serviceLabel struct {
	v atomic.Value
}

func newServiceLabel(name string) *serviceLabel {
	l := &serviceLabel{}
	l.Set(name)
	return l
}

func (l *serviceLabel) Set(name string) {
	l.v.Store(name)
}

func (l *serviceLabel) String() string {
	name, _ := l.v.Load().(string)
	return name
}

// Topology names the queue (or topic) behind every routing key.
type Topology struct {
	Exchange   string
	Queues     map[string]string
	DeadLetter string
}

func NewTopology(cfg config.BrokerConfig) Topology {
	if cfg.Type == constants.BrokerTypeKafka {
		return Topology{
			Queues: map[string]string{
				constants.RoutingKeyKnowledge:  cfg.Kafka.KnowledgeTopic,
				constants.RoutingKeyAction:     cfg.Kafka.ActionTopic,
				constants.RoutingKeyGenerative: cfg.Kafka.GenerativeTopic,
			},
			DeadLetter: cfg.Kafka.DLQTopic,
		}
	}

	rmq := cfg.RabbitMQ
	return Topology{
		Exchange: orDefault(rmq.Exchange, constants.DefaultExchange),
		Queues: map[string]string{
			constants.RoutingKeyKnowledge:  orDefault(rmq.KnowledgeQueue, constants.DefaultKnowledgeQueue),
			constants.RoutingKeyAction:     orDefault(rmq.ActionQueue, constants.DefaultActionQueue),
			constants.RoutingKeyGenerative: orDefault(rmq.GenerativeQueue, constants.DefaultGenerativeQueue),
		},
		DeadLetter: orDefault(rmq.DeadLetterQueue, constants.DefaultDeadLetterQueue),
	}
}

// QueueFor resolves a routing key, including the dead-letter key.
func (t Topology) QueueFor(routingKey string) (string, bool) {
	if routingKey == constants.RoutingKeyDeadLetter {
		return t.DeadLetter, t.DeadLetter != ""
	}
	q, ok := t.Queues[routingKey]
	return q, ok && q != ""
}

// WorkQueues lists the consumer-facing queues in a stable order.
func (t Topology) WorkQueues() []string {
	return []string{
		t.Queues[constants.RoutingKeyKnowledge],
		t.Queues[constants.RoutingKeyAction],
		t.Queues[constants.RoutingKeyGenerative],
	}
}

// RoutingKeyFor is the inverse of QueueFor.
func (t Topology) RoutingKeyFor(queue string) (string, bool) {
	if queue == t.DeadLetter {
		return constants.RoutingKeyDeadLetter, true
	}
	for key, q := range t.Queues {
		if q == queue {
			return key, true
		}
	}
	return "", false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
