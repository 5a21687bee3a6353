package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/akriventsev/stockroom/domain"
	"github.com/akriventsev/stockroom/events"
	"github.com/akriventsev/stockroom/eventsourcing"
)

// ProductHandler обрабатывает команды продукта.
// Агрегат восстанавливается полным воспроизведением истории на каждую
// команду, сохранение защищено проверкой expectedVersion.
type ProductHandler struct {
	store     eventsourcing.EventStore
	publisher events.Publisher
	logger    *zap.Logger
}

// NewProductHandler создает новый обработчик команд продукта
func NewProductHandler(store eventsourcing.EventStore, publisher events.Publisher, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// RegisterHandlers регистрирует обработчики на командном bus
func (h *ProductHandler) RegisterHandlers(bus *CommandBus) error {
	if err := bus.Register(CommandCreateProduct, h.handleCreate); err != nil {
		return err
	}
	return bus.Register(CommandUpdateStock, h.handleUpdateStock)
}

func (h *ProductHandler) handleCreate(ctx context.Context, cmd Command) (interface{}, error) {
	create, ok := cmd.(CreateProductCommand)
	if !ok {
		return nil, fmt.Errorf("unexpected command type %T", cmd)
	}
	return h.CreateProduct(ctx, create)
}

func (h *ProductHandler) handleUpdateStock(ctx context.Context, cmd Command) (interface{}, error) {
	update, ok := cmd.(UpdateStockCommand)
	if !ok {
		return nil, fmt.Errorf("unexpected command type %T", cmd)
	}
	return nil, h.UpdateStock(ctx, update)
}

// CreateProduct создает новый продукт
func (h *ProductHandler) CreateProduct(ctx context.Context, cmd CreateProductCommand) (*domain.ProductAggregate, error) {
	product, err := h.loadProduct(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}

	if err := product.Create(cmd.Name, cmd.Description, cmd.Price, cmd.Stock); err != nil {
		return nil, err
	}

	if err := h.commit(ctx, product); err != nil {
		return nil, err
	}

	h.logger.Info("product created",
		zap.String("product_id", product.ID()),
		zap.String("name", product.Name()),
		zap.Int64("stock", product.Stock()))
	return product, nil
}

// UpdateStock изменяет остаток продукта
func (h *ProductHandler) UpdateStock(ctx context.Context, cmd UpdateStockCommand) error {
	product, err := h.loadProduct(ctx, cmd.ProductID)
	if err != nil {
		return err
	}

	if err := product.UpdateStock(cmd.Quantity); err != nil {
		return err
	}

	if err := h.commit(ctx, product); err != nil {
		return err
	}

	h.logger.Info("product stock updated",
		zap.String("product_id", product.ID()),
		zap.Int64("quantity", cmd.Quantity),
		zap.Int64("stock", product.Stock()))
	return nil
}

// GetProduct восстанавливает агрегат продукта из потока событий
func (h *ProductHandler) GetProduct(ctx context.Context, productID string) (*domain.ProductAggregate, error) {
	product, err := h.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Exists() {
		return nil, domain.ErrProductNotFound(productID)
	}
	return product, nil
}

func (h *ProductHandler) loadProduct(ctx context.Context, productID string) (*domain.ProductAggregate, error) {
	if productID == "" {
		return nil, domain.NewError(domain.ErrCodeValidation, "product id cannot be empty")
	}

	stream, err := h.store.GetEvents(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product events: %w", err)
	}

	return domain.LoadProductFromHistory(productID, eventsourcing.UnwrapEvents(stream))
}

// commit сохраняет несохраненные события и публикует их после записи
func (h *ProductHandler) commit(ctx context.Context, product *domain.ProductAggregate) error {
	uncommitted := product.GetUncommittedEvents()
	if len(uncommitted) == 0 {
		return nil
	}

	baseVersion := product.Version() - int64(len(uncommitted))
	if err := h.store.AppendEvents(ctx, product.ID(), baseVersion, uncommitted); err != nil {
		if errors.Is(err, eventsourcing.ErrConcurrencyConflict) {
			return domain.WrapError(domain.ErrCodeConcurrencyConflict,
				fmt.Sprintf("product %s was modified concurrently", product.ID()), err)
		}
		return fmt.Errorf("failed to append product events: %w", err)
	}
	product.MarkEventsAsCommitted()

	for i, event := range uncommitted {
		version := baseVersion + int64(i) + 1
		if err := h.publisher.Publish(ctx, event, version); err != nil {
			// Запись уже зафиксирована, публикация at-least-once
			h.logger.Error("failed to publish committed event",
				zap.String("event_type", event.EventType()),
				zap.String("aggregate_id", event.AggregateID()),
				zap.Error(err))
		}
	}
	return nil
}
