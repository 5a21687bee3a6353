package readmodel

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/akriventsev/stockroom/adapters/messagebus"
	"github.com/akriventsev/stockroom/domain"
	"github.com/akriventsev/stockroom/events"
)

// OrderDenormalizer обновляет проекцию заказов из событий шины.
// Идемпотентность: создание применяется upsert-ом по идентификатору,
// смена статуса только при допустимом переходе.
type OrderDenormalizer struct {
	repo   OrderReadRepository
	dedup  DedupStore
	logger *zap.Logger
}

// NewOrderDenormalizer создает новый денормализатор заказов
func NewOrderDenormalizer(repo OrderReadRepository, logger *zap.Logger) *OrderDenormalizer {
	return &OrderDenormalizer{repo: repo, logger: logger}
}

// WithDedup подключает фильтр дубликатов
func (d *OrderDenormalizer) WithDedup(dedup DedupStore) *OrderDenormalizer {
	d.dedup = dedup
	return d
}

// Handle обрабатывает входящее сообщение шины
func (d *OrderDenormalizer) Handle(ctx context.Context, msg messagebus.Message) error {
	envelope, err := events.DecodeEnvelope(msg.Data)
	if err != nil {
		return messagebus.Permanent(err)
	}

	eventID := msg.Headers["event_id"]
	if d.dedup != nil && eventID != "" {
		processed, err := d.dedup.IsProcessed(ctx, eventID)
		if err == nil && processed {
			return nil
		}
	}

	switch envelope.Type {
	case domain.EventTypeOrderCreated:
		if err := d.applyCreated(ctx, envelope); err != nil {
			return err
		}
	case domain.EventTypeOrderStatusUpdated:
		if err := d.applyStatusUpdated(ctx, envelope); err != nil {
			return err
		}
	default:
		d.logger.Warn("skipping unknown event type",
			zap.String("event_type", envelope.Type),
			zap.String("aggregate_id", envelope.AggregateID))
		return nil
	}

	if d.dedup != nil && eventID != "" {
		if err := d.dedup.MarkProcessed(ctx, eventID); err != nil {
			d.logger.Warn("dedup mark failed", zap.Error(err))
		}
	}
	return nil
}

func (d *OrderDenormalizer) applyCreated(ctx context.Context, envelope events.Envelope) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		return messagebus.Permanent(fmt.Errorf("failed to unmarshal %s: %w", envelope.Type, err))
	}

	view := &OrderView{
		ID:          envelope.AggregateID,
		CustomerID:  event.CustomerID,
		Lines:       event.Lines,
		TotalAmount: event.TotalAmount,
		Status:      event.Status,
		CreatedAt:   envelope.OccurredAt,
		UpdatedAt:   envelope.OccurredAt,
	}
	if err := d.repo.UpsertOrder(ctx, view); err != nil {
		return fmt.Errorf("failed to upsert order view: %w", err)
	}

	d.logger.Debug("order view created", zap.String("order_id", envelope.AggregateID))
	return nil
}

func (d *OrderDenormalizer) applyStatusUpdated(ctx context.Context, envelope events.Envelope) error {
	var event domain.OrderStatusUpdatedEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		return messagebus.Permanent(fmt.Errorf("failed to unmarshal %s: %w", envelope.Type, err))
	}

	applied, err := d.repo.UpdateStatus(ctx, envelope.AggregateID,
		event.PreviousStatus, event.CurrentStatus, envelope.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to update order view status: %w", err)
	}
	if !applied {
		d.logger.Debug("discarding stale status update",
			zap.String("order_id", envelope.AggregateID),
			zap.String("to", string(event.CurrentStatus)))
		return nil
	}

	d.logger.Debug("order view status updated",
		zap.String("order_id", envelope.AggregateID),
		zap.String("status", string(event.CurrentStatus)))
	return nil
}
