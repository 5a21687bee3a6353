package messagebus

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// InMemoryBus реализация MessageBus в памяти для тестирования.
// Доставка синхронная, семантика шаблонов как у topic exchange.
type InMemoryBus struct {
	mu            sync.RWMutex
	subscriptions []subscription
	closed        bool
	logger        *zap.Logger
}

// NewInMemoryBus создает новую in-memory шину
func NewInMemoryBus(logger *zap.Logger) *InMemoryBus {
	return &InMemoryBus{logger: logger}
}

// Publish доставляет сообщение всем подходящим подписчикам синхронно
func (b *InMemoryBus) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrNotConnected
	}
	subs := make([]subscription, len(b.subscriptions))
	copy(subs, b.subscriptions)
	b.mu.RUnlock()

	msg := Message{Subject: subject, Data: data, Headers: headers}
	for _, sub := range subs {
		if !subjectMatches(sub.subject, subject) {
			continue
		}
		if err := sub.handler(ctx, msg); err != nil {
			b.logger.Warn("in-memory handler failed",
				zap.String("subject", subject),
				zap.String("queue", sub.queue),
				zap.Error(err))
		}
	}
	return nil
}

// Subscribe подписывает обработчик на шаблон subject
func (b *InMemoryBus) Subscribe(ctx context.Context, subject, queue string, handler MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrNotConnected
	}

	b.subscriptions = append(b.subscriptions, subscription{
		subject: subject,
		queue:   queue,
		handler: handler,
	})
	return nil
}

// Close закрывает шину
func (b *InMemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subscriptions = nil
	return nil
}

// subjectMatches проверяет соответствие subject шаблону topic exchange.
// "*" соответствует ровно одному сегменту, "#" любому хвосту.
func subjectMatches(pattern, subject string) bool {
	if pattern == subject || pattern == "#" {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	subjectParts := strings.Split(subject, ".")

	for i, part := range patternParts {
		if part == "#" {
			return true
		}
		if i >= len(subjectParts) {
			return false
		}
		if part != "*" && part != subjectParts[i] {
			return false
		}
	}
	return len(patternParts) == len(subjectParts)
}
