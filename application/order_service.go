package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/akriventsev/stockroom/adapters/repository"
	"github.com/akriventsev/stockroom/domain"
	"github.com/akriventsev/stockroom/events"
	"github.com/akriventsev/stockroom/eventsourcing"
)

// pendingEvent событие, ожидающее публикации после фиксации транзакции
type pendingEvent struct {
	event   events.Event
	version int64
}

// OrderService координирует создание и отмену заказов.
// Проверка остатков, запись заказа и резервирование выполняются в одной
// транзакции: заказ и события изменения остатков фиксируются все вместе
// или не фиксируются вовсе. Публикация на шину происходит после фиксации.
type OrderService struct {
	eventStore eventsourcing.EventStore
	orders     repository.OrderStore
	tx         repository.TransactionRunner
	publisher  events.Publisher
	logger     *zap.Logger
}

// NewOrderService создает новый координатор заказов
func NewOrderService(
	eventStore eventsourcing.EventStore,
	orders repository.OrderStore,
	tx repository.TransactionRunner,
	publisher events.Publisher,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		eventStore: eventStore,
		orders:     orders,
		tx:         tx,
		publisher:  publisher,
		logger:     logger,
	}
}

// RegisterHandlers регистрирует обработчики на командном bus
func (s *OrderService) RegisterHandlers(bus *CommandBus) error {
	if err := bus.Register(CommandCreateOrder, func(ctx context.Context, cmd Command) (interface{}, error) {
		create, ok := cmd.(CreateOrderCommand)
		if !ok {
			return nil, fmt.Errorf("unexpected command type %T", cmd)
		}
		return s.CreateOrder(ctx, create)
	}); err != nil {
		return err
	}

	if err := bus.Register(CommandUpdateOrderStatus, func(ctx context.Context, cmd Command) (interface{}, error) {
		update, ok := cmd.(UpdateOrderStatusCommand)
		if !ok {
			return nil, fmt.Errorf("unexpected command type %T", cmd)
		}
		return s.UpdateOrderStatus(ctx, update)
	}); err != nil {
		return err
	}

	return bus.Register(CommandCancelOrder, func(ctx context.Context, cmd Command) (interface{}, error) {
		cancel, ok := cmd.(CancelOrderCommand)
		if !ok {
			return nil, fmt.Errorf("unexpected command type %T", cmd)
		}
		return s.CancelOrder(ctx, cancel.OrderID)
	})
}

// CreateOrder создает заказ с резервированием остатков.
// Сначала проверяются все позиции, затем выполняются записи: при любой
// нехватке ни один остаток не меняется и заказ не создается. Ошибка
// нехватки перечисляет все проблемные продукты.
func (s *OrderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	if cmd.CustomerID == "" {
		return nil, domain.NewError(domain.ErrCodeValidation, "customer id cannot be empty")
	}
	if len(cmd.Lines) == 0 {
		return nil, domain.NewError(domain.ErrCodeValidation, "order must contain at least one product")
	}
	for _, line := range cmd.Lines {
		if line.ProductID == "" {
			return nil, domain.NewError(domain.ErrCodeValidation, "order line product id cannot be empty")
		}
		if line.Quantity <= 0 {
			return nil, domain.NewError(domain.ErrCodeValidation, "order line quantity must be positive")
		}
	}

	required := requiredQuantities(cmd.Lines)

	var (
		order   *domain.Order
		pending []pendingEvent
	)

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		products := make(map[string]*domain.ProductAggregate, len(required))

		// Фаза проверки: загружаем все продукты до первой записи
		var missing, insufficient []string
		for _, productID := range sortedKeys(required) {
			product, err := s.loadProduct(txCtx, productID)
			if err != nil {
				return err
			}
			switch {
			case !product.Exists():
				missing = append(missing, productID)
			case !product.HasStock(required[productID]):
				insufficient = append(insufficient, productID)
			}
			products[productID] = product
		}
		if len(missing) > 0 {
			return domain.NewError(domain.ErrCodeNotFound,
				fmt.Sprintf("products not found: %s", joinIDs(missing)))
		}
		if len(insufficient) > 0 {
			return domain.ErrInsufficientStock(insufficient)
		}

		// Цены берутся из агрегатов, а не из запроса
		lines := make([]domain.OrderLine, len(cmd.Lines))
		for i, line := range cmd.Lines {
			lines[i] = domain.OrderLine{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     products[line.ProductID].Price(),
			}
		}

		newOrder, err := domain.NewOrder(cmd.CustomerID, lines)
		if err != nil {
			return err
		}

		if err := s.orders.Insert(txCtx, newOrder); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		pending = pending[:0]
		pending = append(pending, pendingEvent{event: domain.NewOrderCreatedEvent(newOrder)})

		// Фаза записи: резервируем остатки по каждому продукту
		for _, productID := range sortedKeys(required) {
			product := products[productID]
			if err := product.UpdateStock(-required[productID]); err != nil {
				return err
			}
			stockEvents, err := s.commitProduct(txCtx, product)
			if err != nil {
				return err
			}
			pending = append(pending, stockEvents...)
		}

		order = newOrder
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishPending(ctx, pending)
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("customer_id", order.CustomerID),
		zap.Float64("total", order.TotalAmount))
	return order, nil
}

// UpdateOrderStatus меняет статус заказа с проверкой перехода.
// Чтение и CAS выполняются внутри транзакционного раннера: смена статуса
// сериализуется с отменой заказа. Переход в CANCELLED выполняется через
// отмену с возвратом остатков.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (*domain.Order, error) {
	if !cmd.Status.IsValid() {
		return nil, domain.NewError(domain.ErrCodeValidation,
			fmt.Sprintf("unknown order status: %s", cmd.Status))
	}
	if cmd.Status == domain.OrderStatusCancelled {
		return s.CancelOrder(ctx, cmd.OrderID)
	}

	var (
		order    *domain.Order
		previous domain.OrderStatus
	)

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.orders.Get(txCtx, cmd.OrderID)
		if err != nil {
			return s.mapOrderStoreError(err, cmd.OrderID)
		}

		if !current.Status.CanTransitionTo(cmd.Status) {
			return domain.ErrInvalidTransition(current.Status, cmd.Status)
		}

		if err := s.orders.UpdateStatusCAS(txCtx, cmd.OrderID, current.Status, cmd.Status); err != nil {
			return s.mapOrderStoreError(err, cmd.OrderID)
		}

		previous = current.Status
		current.Status = cmd.Status
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishPending(ctx, []pendingEvent{
		{event: domain.NewOrderStatusUpdatedEvent(order.ID, previous, cmd.Status)},
	})
	s.logger.Info("order status updated",
		zap.String("order_id", order.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(cmd.Status)))
	return order, nil
}

// CancelOrder отменяет заказ и возвращает остатки.
// Возврат остатков и смена статуса фиксируются в одной транзакции.
// CAS статуса выполняется до возврата остатков: конфликт обрывает
// отмену, пока остатки еще не изменены.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var (
		order   *domain.Order
		pending []pendingEvent
	)

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.orders.Get(txCtx, orderID)
		if err != nil {
			return s.mapOrderStoreError(err, orderID)
		}

		if !current.Status.CanTransitionTo(domain.OrderStatusCancelled) {
			return domain.ErrInvalidTransition(current.Status, domain.OrderStatusCancelled)
		}

		if err := s.orders.UpdateStatusCAS(txCtx, orderID, current.Status, domain.OrderStatusCancelled); err != nil {
			return s.mapOrderStoreError(err, orderID)
		}

		pending = pending[:0]
		pending = append(pending, pendingEvent{
			event: domain.NewOrderStatusUpdatedEvent(orderID, current.Status, domain.OrderStatusCancelled),
		})

		restored := requiredQuantities(current.Lines)
		for _, productID := range sortedKeys(restored) {
			product, err := s.loadProduct(txCtx, productID)
			if err != nil {
				return err
			}
			if err := product.UpdateStock(restored[productID]); err != nil {
				return err
			}
			stockEvents, err := s.commitProduct(txCtx, product)
			if err != nil {
				return err
			}
			pending = append(pending, stockEvents...)
		}

		current.Status = domain.OrderStatusCancelled
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishPending(ctx, pending)
	s.logger.Info("order cancelled", zap.String("order_id", orderID))
	return order, nil
}

// GetOrder возвращает заказ по идентификатору
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, s.mapOrderStoreError(err, orderID)
	}
	return order, nil
}

// ListOrdersByCustomer возвращает заказы клиента со смещением и лимитом
func (s *OrderService) ListOrdersByCustomer(ctx context.Context, customerID string, offset, limit int64) ([]*domain.Order, error) {
	if customerID == "" {
		return nil, domain.NewError(domain.ErrCodeValidation, "customer id cannot be empty")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.orders.ListByCustomer(ctx, customerID, offset, limit)
}

func (s *OrderService) loadProduct(ctx context.Context, productID string) (*domain.ProductAggregate, error) {
	stream, err := s.eventStore.GetEvents(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product events: %w", err)
	}
	return domain.LoadProductFromHistory(productID, eventsourcing.UnwrapEvents(stream))
}

// commitProduct сохраняет события продукта и возвращает их для публикации
func (s *OrderService) commitProduct(ctx context.Context, product *domain.ProductAggregate) ([]pendingEvent, error) {
	uncommitted := product.GetUncommittedEvents()
	if len(uncommitted) == 0 {
		return nil, nil
	}

	baseVersion := product.Version() - int64(len(uncommitted))
	if err := s.eventStore.AppendEvents(ctx, product.ID(), baseVersion, uncommitted); err != nil {
		if errors.Is(err, eventsourcing.ErrConcurrencyConflict) {
			return nil, domain.WrapError(domain.ErrCodeConcurrencyConflict,
				fmt.Sprintf("product %s was modified concurrently", product.ID()), err)
		}
		return nil, fmt.Errorf("failed to append product events: %w", err)
	}
	product.MarkEventsAsCommitted()

	result := make([]pendingEvent, len(uncommitted))
	for i, event := range uncommitted {
		result[i] = pendingEvent{event: event, version: baseVersion + int64(i) + 1}
	}
	return result, nil
}

// publishPending публикует события после фиксации транзакции.
// Ошибка публикации не откатывает запись: доставка at-least-once,
// недоставленные события можно перечитать из event store.
func (s *OrderService) publishPending(ctx context.Context, pending []pendingEvent) {
	for _, p := range pending {
		if err := s.publisher.Publish(ctx, p.event, p.version); err != nil {
			s.logger.Error("failed to publish committed event",
				zap.String("event_type", p.event.EventType()),
				zap.String("aggregate_id", p.event.AggregateID()),
				zap.Error(err))
		}
	}
}

func (s *OrderService) mapOrderStoreError(err error, orderID string) error {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return domain.ErrOrderNotFound(orderID)
	case errors.Is(err, repository.ErrStatusConflict):
		return domain.WrapError(domain.ErrCodeConcurrencyConflict,
			fmt.Sprintf("order %s was modified concurrently", orderID), err)
	default:
		return err
	}
}

// requiredQuantities суммирует количества по продукту.
// Дубли одного продукта в разных позициях резервируются одним изменением.
func requiredQuantities(lines []domain.OrderLine) map[string]int64 {
	required := make(map[string]int64, len(lines))
	for _, line := range lines {
		required[line.ProductID] += line.Quantity
	}
	return required
}

// sortedKeys возвращает ключи в детерминированном порядке.
// Стабильный порядок обхода продуктов снижает вероятность дедлоков.
func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ", ")
}
