package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cardassist/internal/logger"
	"cardassist/pkg/errors"
	"cardassist/pkg/models"
)

const memoryRequeueDelay = 10 * time.Millisecond

type memoryQueue struct {
	items    [][]byte
	notify   chan struct{}
	acked    int
	requeued int
}

func (q *memoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// MemoryBroker is an in-process broker with the same delivery contract as the
// network transports. It is its own Connection, Producer and Consumer.
type MemoryBroker struct {
	topology    Topology
	logger      logger.Logger
	serviceName *serviceLabel

	mu         sync.Mutex
	queues     map[string]*memoryQueue
	publishErr error
	closed     bool
}

func NewMemoryBroker(topology Topology) *MemoryBroker {
	b := &MemoryBroker{
		topology:    topology,
		logger:      logger.NopLogger(),
		serviceName: newServiceLabel("memory"),
		queues:      make(map[string]*memoryQueue),
	}
	for _, q := range topology.WorkQueues() {
		b.queue(q)
	}
	b.queue(topology.DeadLetter)
	return b
}

// WithLogger replaces the no-op logger.
func (b *MemoryBroker) WithLogger(log logger.Logger) *MemoryBroker {
	b.logger = log
	return b
}

// SetPublishError makes every following Publish fail with err until it is
// reset with nil.
func (b *MemoryBroker) SetPublishError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishErr = err
}

func (b *MemoryBroker) SetServiceName(name string) {
	b.serviceName.Set(name)
}

// queue must be called with b.mu held or before b is shared.
func (b *MemoryBroker) queue(name string) *memoryQueue {
	q, ok := b.queues[name]
	if !ok {
		q = &memoryQueue{notify: make(chan struct{}, 1)}
		b.queues[name] = q
	}
	return q
}

func (b *MemoryBroker) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("memory broker closed"))
	}
	return nil
}

func (b *MemoryBroker) Publish(ctx context.Context, routingKey string, msg models.RoutedMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.PublishRaw(ctx, routingKey, body)
}

// PublishRaw enqueues body as-is, which lets tests inject undecodable payloads.
func (b *MemoryBroker) PublishRaw(ctx context.Context, routingKey string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.ErrBrokerUnavailable.WithCause(err)
	}

	name, ok := b.topology.QueueFor(routingKey)
	if !ok {
		return fmt.Errorf("no queue bound to routing key %q", routingKey)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("memory broker closed"))
	}
	if b.publishErr != nil {
		return errors.ErrBrokerUnavailable.WithCause(b.publishErr)
	}

	q := b.queue(name)
	q.items = append(q.items, body)
	q.signal()
	return nil
}

func (b *MemoryBroker) pop(name string) ([]byte, bool, <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queue(name)
	if len(q.items) == 0 {
		return nil, false, q.notify
	}
	body := q.items[0]
	q.items = q.items[1:]
	return body, true, nil
}

func (b *MemoryBroker) settle(name string, body []byte, d disposition) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queue(name)
	switch d {
	case dispositionRequeue:
		q.requeued++
		q.items = append([][]byte{body}, q.items...)
		q.signal()
	case dispositionRepublished:
		q.requeued++
	default:
		q.acked++
	}
}

// republish puts an updated copy of msg at the head of queue.
func (b *MemoryBroker) republish(queue string, msg models.RoutedMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("memory broker closed"))
	}
	q := b.queue(queue)
	q.items = append([][]byte{body}, q.items...)
	q.signal()
	return nil
}

func (b *MemoryBroker) Consume(ctx context.Context, queue string, handler HandlerFunc) error {
	s := &settler{
		logger:          b.logger,
		serviceName:     b.serviceName.String(),
		deadLetterQueue: b.topology.DeadLetter,
		deadLetter: func(ctx context.Context, msg models.RoutedMessage) error {
			body, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			return b.enqueueDeadLetter(body)
		},
		poison: func(ctx context.Context, body []byte, reason string) error {
			return b.enqueueDeadLetter(body)
		},
		republish: func(ctx context.Context, queue string, msg models.RoutedMessage) error {
			return b.republish(queue, msg)
		},
	}

	for {
		body, ok, wait := b.pop(queue)
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-wait:
				continue
			}
		}

		d := s.settle(ctx, queue, body, handler)
		b.settle(queue, body, d)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d != dispositionAck {
			sleep(ctx, memoryRequeueDelay)
		}
	}
}

// enqueueDeadLetter ignores SetPublishError so failure-path tests can still
// observe dead letters.
func (b *MemoryBroker) enqueueDeadLetter(body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.ErrBrokerUnavailable.WithCause(fmt.Errorf("memory broker closed"))
	}
	q := b.queue(b.topology.DeadLetter)
	q.items = append(q.items, body)
	q.signal()
	return nil
}

// Len reports the number of messages waiting in queue.
func (b *MemoryBroker) Len(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue(queue).items)
}

// Acked reports how many messages of queue reached a terminal outcome.
func (b *MemoryBroker) Acked(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue(queue).acked
}

func (b *MemoryBroker) Requeued(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue(queue).requeued
}

// Peek decodes the waiting messages of queue without consuming them.
func (b *MemoryBroker) Peek(queue string) ([]models.RoutedMessage, error) {
	b.mu.Lock()
	items := append([][]byte(nil), b.queue(queue).items...)
	b.mu.Unlock()

	out := make([]models.RoutedMessage, 0, len(items))
	for _, body := range items {
		var msg models.RoutedMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (b *MemoryBroker) Topology() Topology {
	return b.topology
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
