package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akriventsev/stockroom/adapters/messagebus"
	"github.com/akriventsev/stockroom/adapters/repository"
	"github.com/akriventsev/stockroom/domain"
	"github.com/akriventsev/stockroom/events"
	"github.com/akriventsev/stockroom/eventsourcing"
)

type orderFixture struct {
	store    *eventsourcing.InMemoryEventStore
	orders   *repository.InMemoryOrderStore
	products *ProductHandler
	service  *OrderService
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	logger := zap.NewNop()

	store := eventsourcing.NewInMemoryEventStore()
	orders := repository.NewInMemoryOrderStore()
	publisher := events.NewBusPublisher(messagebus.NewInMemoryBus(logger), domain.RoutingKey, logger)

	return &orderFixture{
		store:    store,
		orders:   orders,
		products: NewProductHandler(store, publisher, logger),
		service: NewOrderService(store, orders,
			repository.NewInMemoryTransactionRunner(), publisher, logger),
	}
}

func (f *orderFixture) createProduct(t *testing.T, id string, price float64, stock int64) {
	t.Helper()
	_, err := f.products.CreateProduct(context.Background(), CreateProductCommand{
		ProductID: id,
		Name:      id,
		Price:     price,
		Stock:     stock,
	})
	require.NoError(t, err)
}

func (f *orderFixture) productStock(t *testing.T, id string) int64 {
	t.Helper()
	product, err := f.products.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return product.Stock()
}

func TestCreateOrderReservesStock(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	f.createProduct(t, "product-1", 10, 10)
	f.createProduct(t, "product-2", 5, 5)

	order, err := f.service.CreateOrder(ctx, CreateOrderCommand{
		CustomerID: "customer-1",
		Lines: []domain.OrderLine{
			{ProductID: "product-1", Quantity: 3},
			{ProductID: "product-2", Quantity: 2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	// Цена берется из агрегата: 3*10 + 2*5
	assert.Equal(t, 40.0, order.TotalAmount)
	assert.Equal(t, int64(7), f.productStock(t, "product-1"))
	assert.Equal(t, int64(3), f.productStock(t, "product-2"))

	persisted, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, persisted.ID)
}

func TestCreateOrderInsufficientListsAllProducts(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	f.createProduct(t, "product-1", 10, 2)
	f.createProduct(t, "product-2", 5, 1)
	f.createProduct(t, "product-3", 1, 100)

	_, err := f.service.CreateOrder(ctx, CreateOrderCommand{
		CustomerID: "customer-1",
		Lines: []domain.OrderLine{
			{ProductID: "product-1", Quantity: 5},
			{ProductID: "product-2", Quantity: 5},
			{ProductID: "product-3", Quantity: 5},
		},
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeInsufficientStock))
	assert.Contains(t, err.Error(), "product-1")
	assert.Contains(t, err.Error(), "product-2")
	assert.NotContains(t, err.Error(), "product-3")

	// Ни один остаток не изменился, заказов нет
	assert.Equal(t, int64(2), f.productStock(t, "product-1"))
	assert.Equal(t, int64(1), f.productStock(t, "product-2"))
	assert.Equal(t, int64(100), f.productStock(t, "product-3"))

	listed, err := f.service.ListOrdersByCustomer(ctx, "customer-1", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.service.CreateOrder(context.Background(), CreateOrderCommand{
		CustomerID: "customer-1",
		Lines:      []domain.OrderLine{{ProductID: "ghost", Quantity: 1}},
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

func TestCreateOrderAggregatesDuplicateLines(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	f.createProduct(t, "product-1", 10, 10)

	order, err := f.service.CreateOrder(ctx, CreateOrderCommand{
		CustomerID: "customer-1",
		Lines: []domain.OrderLine{
			{ProductID: "product-1", Quantity: 2},
			{ProductID: "product-1", Quantity: 3},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.productStock(t, "product-1"))
	assert.Equal(t, 50.0, order.TotalAmount)

	// Резервирование одним событием на продукт
	stream, err := f.store.GetEvents(ctx, "product-1")
	require.NoError(t, err)
	assert.Len(t, stream, 2)
}

func TestCancelOrderRestoresStock(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	f.createProduct(t, "product-1", 10, 10)

	order, err := f.service.CreateOrder(ctx, CreateOrderCommand{
		CustomerID: "customer-1",
		Lines:      []domain.OrderLine{{ProductID: "product-1", Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(6), f.productStock(t, "product-1"))

	cancelled, err := f.service.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, int64(10), f.productStock(t, "product-1"))

	// Повторная отмена недопустима и не возвращает остаток дважды
	_, err = f.service.CancelOrder(ctx, order.ID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidTransition))
	assert.Equal(t, int64(10), f.productStock(t, "product-1"))
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	f.createProduct(t, "product-1", 10, 10)
	order, err := f.service.CreateOrder(ctx, CreateOrderCommand{
		CustomerID: "customer-1",
		Lines:      []domain.OrderLine{{ProductID: "product-1", Quantity: 1}},
	})
	require.NoError(t, err)

	updated, err := f.service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{
		OrderID: order.ID,
		Status:  domain.OrderStatusProcessing,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, updated.Status)

	updated, err = f.service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{
		OrderID: order.ID,
		Status:  domain.OrderStatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, updated.Status)

	// Из терминального статуса переходов нет
	_, err = f.service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{
		OrderID: order.ID,
		Status:  domain.OrderStatusProcessing,
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidTransition))
}

func TestUpdateOrderStatusToCancelledRestoresStock(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	f.createProduct(t, "product-1", 10, 10)
	order, err := f.service.CreateOrder(ctx, CreateOrderCommand{
		CustomerID: "customer-1",
		Lines:      []domain.OrderLine{{ProductID: "product-1", Quantity: 4}},
	})
	require.NoError(t, err)

	updated, err := f.service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{
		OrderID: order.ID,
		Status:  domain.OrderStatusCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, updated.Status)
	assert.Equal(t, int64(10), f.productStock(t, "product-1"))
}

func TestUpdateOrderStatusValidation(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{
		OrderID: "order-1",
		Status:  "SHIPPED",
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))

	_, err = f.service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{
		OrderID: "ghost",
		Status:  domain.OrderStatusProcessing,
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

// flakyOrderStore отклоняет заданное число CAS-обновлений статуса,
// имитируя конкурентную смену статуса другим писателем.
type flakyOrderStore struct {
	*repository.InMemoryOrderStore
	failures int
}

func (s *flakyOrderStore) UpdateStatusCAS(ctx context.Context, orderID string, expected, next domain.OrderStatus) error {
	if s.failures > 0 {
		s.failures--
		return repository.ErrStatusConflict
	}
	return s.InMemoryOrderStore.UpdateStatusCAS(ctx, orderID, expected, next)
}

func TestCancelOrderCASConflictLeavesStockUntouched(t *testing.T) {
	logger := zap.NewNop()
	store := eventsourcing.NewInMemoryEventStore()
	orders := &flakyOrderStore{InMemoryOrderStore: repository.NewInMemoryOrderStore()}
	publisher := events.NewBusPublisher(messagebus.NewInMemoryBus(logger), domain.RoutingKey, logger)
	products := NewProductHandler(store, publisher, logger)
	service := NewOrderService(store, orders,
		repository.NewInMemoryTransactionRunner(), publisher, logger)
	ctx := context.Background()

	_, err := products.CreateProduct(ctx, CreateProductCommand{
		ProductID: "product-1", Name: "product-1", Price: 10, Stock: 10,
	})
	require.NoError(t, err)

	order, err := service.CreateOrder(ctx, CreateOrderCommand{
		CustomerID: "customer-1",
		Lines:      []domain.OrderLine{{ProductID: "product-1", Quantity: 4}},
	})
	require.NoError(t, err)

	// Конфликт CAS обрывает отмену: остатки не тронуты, статус прежний
	orders.failures = 1
	_, err = service.CancelOrder(ctx, order.ID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeConcurrencyConflict))

	product, err := products.GetProduct(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), product.Stock())

	persisted, err := service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, persisted.Status)

	// Без конфликта отмена проходит и возвращает остаток целиком
	cancelled, err := service.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	product, err = products.GetProduct(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), product.Stock())
}

// countingTxRunner фиксирует число транзакций, проходящих через раннер
type countingTxRunner struct {
	repository.TransactionRunner
	calls int
}

func (r *countingTxRunner) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	return r.TransactionRunner.WithinTransaction(ctx, fn)
}

func TestUpdateOrderStatusRunsInTransaction(t *testing.T) {
	logger := zap.NewNop()
	store := eventsourcing.NewInMemoryEventStore()
	orders := repository.NewInMemoryOrderStore()
	publisher := events.NewBusPublisher(messagebus.NewInMemoryBus(logger), domain.RoutingKey, logger)
	products := NewProductHandler(store, publisher, logger)
	runner := &countingTxRunner{TransactionRunner: repository.NewInMemoryTransactionRunner()}
	service := NewOrderService(store, orders, runner, publisher, logger)
	ctx := context.Background()

	_, err := products.CreateProduct(ctx, CreateProductCommand{
		ProductID: "product-1", Name: "product-1", Price: 10, Stock: 10,
	})
	require.NoError(t, err)

	order, err := service.CreateOrder(ctx, CreateOrderCommand{
		CustomerID: "customer-1",
		Lines:      []domain.OrderLine{{ProductID: "product-1", Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, runner.calls)

	// Смена статуса сериализуется тем же раннером, что и отмена
	_, err = service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{
		OrderID: order.ID,
		Status:  domain.OrderStatusProcessing,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, runner.calls)
}

func TestListOrdersByCustomerPaging(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	f.createProduct(t, "product-1", 1, 100)
	for i := 0; i < 5; i++ {
		_, err := f.service.CreateOrder(ctx, CreateOrderCommand{
			CustomerID: "customer-1",
			Lines:      []domain.OrderLine{{ProductID: "product-1", Quantity: 1}},
		})
		require.NoError(t, err)
	}

	page, err := f.service.ListOrdersByCustomer(ctx, "customer-1", 0, 3)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	rest, err := f.service.ListOrdersByCustomer(ctx, "customer-1", 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	other, err := f.service.ListOrdersByCustomer(ctx, "customer-2", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}
