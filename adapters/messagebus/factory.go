package messagebus

import (
	"fmt"

	"go.uber.org/zap"
)

// Драйверы шины сообщений
const (
	DriverRabbitMQ = "rabbitmq"
	DriverNATS     = "nats"
	DriverKafka    = "kafka"
	DriverInMemory = "inmemory"
)

// FactoryConfig конфигурация фабрики шины сообщений
type FactoryConfig struct {
	Driver   string
	RabbitMQ RabbitMQConfig
	NATS     NATSConfig
	Kafka    KafkaConfig
}

// NewMessageBus создает шину сообщений по имени драйвера
func NewMessageBus(config FactoryConfig, logger *zap.Logger) (MessageBus, error) {
	switch config.Driver {
	case DriverRabbitMQ:
		return NewRabbitMQBus(config.RabbitMQ, SystemClock{}, logger)
	case DriverNATS:
		return NewNATSBus(config.NATS, logger)
	case DriverKafka:
		return NewKafkaBus(config.Kafka, logger)
	case DriverInMemory:
		return NewInMemoryBus(logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, config.Driver)
	}
}
