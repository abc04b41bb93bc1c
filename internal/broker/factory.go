package broker

import (
	"context"
	"fmt"

	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/internal/logger"
)

func Connect(ctx context.Context, cfg config.BrokerConfig, log logger.Logger) (Connection, error) {
	topology := NewTopology(cfg)

	switch cfg.Type {
	case constants.BrokerTypeRabbitMQ:
		return DialRabbitMQ(ctx, cfg.RabbitMQ, topology, log)
	case constants.BrokerTypeKafka:
		return NewKafkaConnection(cfg.Kafka, topology, log), nil
	case constants.BrokerTypeMemory:
		return NewMemoryBroker(topology), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

func NewProducer(conn Connection, log logger.Logger) (Producer, error) {
	switch c := conn.(type) {
	case *RabbitConnection:
		return NewRabbitProducer(c, log), nil
	case *KafkaConnection:
		return NewKafkaProducer(c, log), nil
	case *MemoryBroker:
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported broker connection %T", conn)
	}
}

func NewConsumer(conn Connection, log logger.Logger) (Consumer, error) {
	switch c := conn.(type) {
	case *RabbitConnection:
		return NewRabbitConsumer(c, log), nil
	case *KafkaConnection:
		return NewKafkaConsumer(c, log), nil
	case *MemoryBroker:
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported broker connection %T", conn)
	}
}

// TopologyOf returns the topology a connection was opened with.
func TopologyOf(conn Connection) Topology {
	switch c := conn.(type) {
	case *RabbitConnection:
		return c.topology
	case *KafkaConnection:
		return c.topology
	case *MemoryBroker:
		return c.topology
	default:
		return Topology{}
	}
}
