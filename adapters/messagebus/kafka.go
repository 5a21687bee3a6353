package messagebus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConfig конфигурация Kafka шины
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// DefaultKafkaConfig возвращает конфигурацию по умолчанию
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "inventory-events",
		BatchTimeout: 10 * time.Millisecond,
	}
}

// Validate проверяет корректность конфигурации
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers cannot be empty")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	return nil
}

// KafkaBus реализация MessageBus поверх Kafka.
// Все события пишутся в один топик, ключом партиционирования служит
// заголовок aggregate_id: порядок внутри агрегата сохраняется
// партиционированием.
type KafkaBus struct {
	config KafkaConfig
	writer *kafka.Writer
	logger *zap.Logger

	mu      sync.Mutex
	readers []*kafka.Reader
	cancel  []context.CancelFunc
}

// NewKafkaBus создает новую Kafka шину
func NewKafkaBus(config KafkaConfig, logger *zap.Logger) (*KafkaBus, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: config.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}

	return &KafkaBus{
		config: config,
		writer: writer,
		logger: logger,
	}, nil
}

// Publish публикует сообщение, партиционируя его по агрегату
func (b *KafkaBus) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	kafkaHeaders := make([]kafka.Header, 0, len(headers)+1)
	kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: "subject", Value: []byte(subject)})
	for key, value := range headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: key, Value: []byte(value)})
	}

	err := b.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(partitionKey(subject, headers)),
		Value:   data,
		Headers: kafkaHeaders,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe подписывает обработчик через consumer group.
// Шаблоны subject не поддерживаются: фильтрация по subject-заголовку
// выполняется на стороне потребителя.
func (b *KafkaBus) Subscribe(ctx context.Context, subject, queue string, handler MessageHandler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: b.config.Brokers,
		Topic:   b.config.Topic,
		GroupID: queue,
	})

	consumeCtx, cancel := context.WithCancel(context.Background())

	b.mu.Lock()
	b.readers = append(b.readers, reader)
	b.cancel = append(b.cancel, cancel)
	b.mu.Unlock()

	go func() {
		for {
			kafkaMsg, err := reader.FetchMessage(consumeCtx)
			if err != nil {
				if consumeCtx.Err() != nil {
					return
				}
				b.logger.Error("failed to fetch kafka message", zap.Error(err))
				continue
			}

			msg := Message{
				Data:    kafkaMsg.Value,
				Headers: make(map[string]string, len(kafkaMsg.Headers)),
			}
			for _, header := range kafkaMsg.Headers {
				msg.Headers[header.Key] = string(header.Value)
			}
			msg.Subject = msg.Headers["subject"]

			if !subjectMatches(subject, msg.Subject) {
				if err := reader.CommitMessages(consumeCtx, kafkaMsg); err != nil {
					b.logger.Error("failed to commit kafka message", zap.Error(err))
				}
				continue
			}

			err = handler(consumeCtx, msg)
			if err != nil && !IsPermanent(err) {
				// Без коммита сообщение будет доставлено повторно
				b.logger.Warn("message processing failed",
					zap.String("subject", msg.Subject), zap.Error(err))
				continue
			}
			if IsPermanent(err) {
				b.logger.Error("message rejected permanently",
					zap.String("subject", msg.Subject), zap.Error(err))
			}
			if err := reader.CommitMessages(consumeCtx, kafkaMsg); err != nil {
				b.logger.Error("failed to commit kafka message", zap.Error(err))
			}
		}
	}()

	return nil
}

// Close закрывает writer и всех потребителей
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, cancel := range b.cancel {
		cancel()
	}
	for _, reader := range b.readers {
		if err := reader.Close(); err != nil {
			b.logger.Error("failed to close kafka reader", zap.Error(err))
		}
	}

	if err := b.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}

// partitionKey возвращает ключ партиционирования сообщения.
// События одного агрегата попадают в одну партицию независимо от
// routing key, для сообщений без агрегата используется subject.
func partitionKey(subject string, headers map[string]string) string {
	if aggregateID := headers["aggregate_id"]; aggregateID != "" {
		return aggregateID
	}
	return subject
}
