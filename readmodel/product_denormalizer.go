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

// ProductDenormalizer обновляет проекцию продуктов из событий шины.
// Обработка идемпотентна: версия агрегата в envelope служит токеном
// упорядочивания, остаток переносится абсолютным значением.
type ProductDenormalizer struct {
	repo   ProductReadRepository
	dedup  DedupStore
	logger *zap.Logger
}

// NewProductDenormalizer создает новый денормализатор продуктов
func NewProductDenormalizer(repo ProductReadRepository, logger *zap.Logger) *ProductDenormalizer {
	return &ProductDenormalizer{repo: repo, logger: logger}
}

// WithDedup подключает фильтр дубликатов
func (d *ProductDenormalizer) WithDedup(dedup DedupStore) *ProductDenormalizer {
	d.dedup = dedup
	return d
}

// Handle обрабатывает входящее сообщение шины
func (d *ProductDenormalizer) Handle(ctx context.Context, msg messagebus.Message) error {
	envelope, err := events.DecodeEnvelope(msg.Data)
	if err != nil {
		// Нечитаемое сообщение не станет читаемым при повторе
		return messagebus.Permanent(err)
	}

	eventID := msg.Headers["event_id"]
	if skip, err := d.alreadyProcessed(ctx, eventID); err == nil && skip {
		return nil
	}

	switch envelope.Type {
	case domain.EventTypeProductCreated:
		if err := d.applyCreated(ctx, envelope); err != nil {
			return err
		}
	case domain.EventTypeProductStockUpdated:
		if err := d.applyStockUpdated(ctx, envelope); err != nil {
			return err
		}
	default:
		// Неизвестный тип на стороне чтения пропускается, а не падает
		d.logger.Warn("skipping unknown event type",
			zap.String("event_type", envelope.Type),
			zap.String("aggregate_id", envelope.AggregateID))
		return nil
	}

	d.markProcessed(ctx, eventID)
	return nil
}

func (d *ProductDenormalizer) applyCreated(ctx context.Context, envelope events.Envelope) error {
	var event domain.ProductCreatedEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		return messagebus.Permanent(fmt.Errorf("failed to unmarshal %s: %w", envelope.Type, err))
	}

	view := &ProductView{
		ID:          envelope.AggregateID,
		Name:        event.Name,
		Description: event.Description,
		Price:       event.Price,
		Stock:       event.Stock,
		Version:     envelope.Version,
		UpdatedAt:   envelope.OccurredAt,
	}
	if err := d.repo.UpsertProduct(ctx, view); err != nil {
		return fmt.Errorf("failed to upsert product view: %w", err)
	}

	d.logger.Debug("product view created",
		zap.String("product_id", envelope.AggregateID),
		zap.Int64("stock", event.Stock))
	return nil
}

func (d *ProductDenormalizer) applyStockUpdated(ctx context.Context, envelope events.Envelope) error {
	var event domain.ProductStockUpdatedEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		return messagebus.Permanent(fmt.Errorf("failed to unmarshal %s: %w", envelope.Type, err))
	}

	applied, err := d.repo.SetStock(ctx, envelope.AggregateID, event.NewStock, envelope.Version, envelope.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to update product view stock: %w", err)
	}
	if !applied {
		d.logger.Debug("discarding stale stock update",
			zap.String("product_id", envelope.AggregateID),
			zap.Int64("version", envelope.Version))
		return nil
	}

	d.logger.Debug("product view stock updated",
		zap.String("product_id", envelope.AggregateID),
		zap.Int64("stock", event.NewStock),
		zap.Int64("version", envelope.Version))
	return nil
}

func (d *ProductDenormalizer) alreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	if d.dedup == nil || eventID == "" {
		return false, nil
	}
	processed, err := d.dedup.IsProcessed(ctx, eventID)
	if err != nil {
		d.logger.Warn("dedup check failed", zap.Error(err))
		return false, err
	}
	return processed, nil
}

func (d *ProductDenormalizer) markProcessed(ctx context.Context, eventID string) {
	if d.dedup == nil || eventID == "" {
		return
	}
	if err := d.dedup.MarkProcessed(ctx, eventID); err != nil {
		d.logger.Warn("dedup mark failed", zap.Error(err))
	}
}
