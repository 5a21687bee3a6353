package messagebus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSConfig конфигурация NATS шины
type NATSConfig struct {
	URL           string
	Stream        string
	Subjects      []string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig возвращает конфигурацию по умолчанию
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Stream:        "events",
		Subjects:      []string{">"},
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
	}
}

// Validate проверяет корректность конфигурации
func (c NATSConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}
	if c.Stream == "" {
		return fmt.Errorf("stream cannot be empty")
	}
	if len(c.Subjects) == 0 {
		return fmt.Errorf("subjects cannot be empty")
	}
	return nil
}

// NATSBus реализация MessageBus поверх JetStream.
// Подтверждение явное: необработанное сообщение доставляется повторно,
// PermanentError завершает доставку через Term. Переподключение
// делегировано клиенту NATS.
type NATSBus struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewNATSBus создает и подключает новую NATS шину.
// Stream создается при первом подключении, если его еще нет.
func NewNATSBus(config NATSConfig, logger *zap.Logger) (*NATSBus, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid nats config: %w", err)
	}

	conn, err := nats.Connect(config.URL,
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      config.Stream,
		Subjects:  config.Subjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", config.Stream, err)
	}

	return &NATSBus{conn: conn, js: js, logger: logger}, nil
}

// Publish публикует сообщение в stream по указанному subject
func (b *NATSBus) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	if !b.conn.IsConnected() {
		return ErrNotConnected
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	for key, value := range headers {
		msg.Header.Set(key, value)
	}

	if _, err := b.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe подписывает обработчик на subject через durable consumer.
// Сообщение подтверждается только после успешной обработки.
func (b *NATSBus) Subscribe(ctx context.Context, subject, queue string, handler MessageHandler) error {
	if !b.conn.IsConnected() {
		return ErrNotConnected
	}

	// AMQP-шаблон "#" соответствует ">" в NATS
	natsSubject := strings.ReplaceAll(subject, "#", ">")

	_, err := b.js.QueueSubscribe(natsSubject, queue, func(natsMsg *nats.Msg) {
		msg := Message{
			Subject: natsMsg.Subject,
			Data:    natsMsg.Data,
			Headers: make(map[string]string),
		}
		for key := range natsMsg.Header {
			msg.Headers[key] = natsMsg.Header.Get(key)
		}

		err := handler(context.Background(), msg)
		switch {
		case err == nil:
			if ackErr := natsMsg.Ack(); ackErr != nil {
				b.logger.Error("failed to ack message",
					zap.String("subject", natsMsg.Subject), zap.Error(ackErr))
			}
		case IsPermanent(err):
			b.logger.Error("message rejected permanently",
				zap.String("subject", natsMsg.Subject), zap.Error(err))
			if termErr := natsMsg.Term(); termErr != nil {
				b.logger.Error("failed to term message",
					zap.String("subject", natsMsg.Subject), zap.Error(termErr))
			}
		default:
			// Без подтверждения сообщение будет доставлено повторно
			b.logger.Warn("message processing failed",
				zap.String("subject", natsMsg.Subject), zap.Error(err))
			if nakErr := natsMsg.Nak(); nakErr != nil {
				b.logger.Error("failed to nak message",
					zap.String("subject", natsMsg.Subject), zap.Error(nakErr))
			}
		}
	},
		nats.Durable(durableName(queue)),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", natsSubject, err)
	}
	return nil
}

// Close закрывает соединение с шиной
func (b *NATSBus) Close() error {
	if b.conn != nil && !b.conn.IsClosed() {
		if err := b.conn.Drain(); err != nil {
			return fmt.Errorf("failed to drain nats connection: %w", err)
		}
	}
	return nil
}

// durableName приводит имя очереди к допустимому имени durable consumer:
// имена consumer в JetStream не могут содержать точки и шаблонные символы
func durableName(queue string) string {
	return strings.NewReplacer(".", "-", "*", "-", ">", "-").Replace(queue)
}
