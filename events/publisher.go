// Package events предоставляет публикацию событий на шину сообщений.
package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Bus минимальный интерфейс шины сообщений, необходимый публикатору
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error
}

// RoutingKeyResolver возвращает routing key для типа события
type RoutingKeyResolver func(eventType string) (string, bool)

// RetryConfig конфигурация повторов публикации
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig возвращает конфигурацию повторов по умолчанию
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// BusPublisher публикует закоммиченные события на шину сообщений.
// Публикация выполняется строго после durable записи в event store:
// доставка at-least-once, идемпотентность обеспечивается потребителем.
type BusPublisher struct {
	bus      Bus
	resolver RoutingKeyResolver
	retry    *RetryConfig
	logger   *zap.Logger
}

// NewBusPublisher создает новый публикатор
func NewBusPublisher(bus Bus, resolver RoutingKeyResolver, logger *zap.Logger) *BusPublisher {
	return &BusPublisher{
		bus:      bus,
		resolver: resolver,
		logger:   logger,
	}
}

// WithRetry настраивает retry логику публикации
func (p *BusPublisher) WithRetry(config RetryConfig) *BusPublisher {
	p.retry = &config
	return p
}

// Publish публикует событие с routing key, выведенным из его типа
func (p *BusPublisher) Publish(ctx context.Context, event Event, version int64) error {
	routingKey, ok := p.resolver(event.EventType())
	if !ok {
		return fmt.Errorf("no routing key registered for event type %s", event.EventType())
	}

	envelope, err := WrapEvent(event, version)
	if err != nil {
		return err
	}

	payload, err := envelope.Encode()
	if err != nil {
		return err
	}

	headers := map[string]string{
		"event_id":     event.EventID(),
		"event_type":   event.EventType(),
		"aggregate_id": event.AggregateID(),
	}

	if err := p.publishWithRetry(ctx, routingKey, payload, headers); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.EventType(), err)
	}

	p.logger.Debug("event published",
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_id", event.AggregateID()),
		zap.String("routing_key", routingKey),
		zap.Int64("version", version))

	return nil
}

// publishWithRetry выполняет публикацию с exponential backoff
func (p *BusPublisher) publishWithRetry(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	if p.retry == nil {
		return p.bus.Publish(ctx, subject, data, headers)
	}

	var lastErr error
	delay := p.retry.InitialDelay

	for attempt := 0; attempt < p.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * p.retry.BackoffMultiplier)
			if delay > p.retry.MaxDelay {
				delay = p.retry.MaxDelay
			}
		}

		lastErr = p.bus.Publish(ctx, subject, data, headers)
		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("publish failed after %d attempts: %w", p.retry.MaxAttempts, lastErr)
}
