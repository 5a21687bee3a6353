package readmodel

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/akriventsev/stockroom/domain"
)

// InMemoryProductReadRepository реализация ProductReadRepository в памяти
type InMemoryProductReadRepository struct {
	mu       sync.RWMutex
	products map[string]*ProductView
}

// NewInMemoryProductReadRepository создает новое in-memory хранилище проекции продуктов
func NewInMemoryProductReadRepository() *InMemoryProductReadRepository {
	return &InMemoryProductReadRepository{
		products: make(map[string]*ProductView),
	}
}

// UpsertProduct применяет создание продукта идемпотентно
func (r *InMemoryProductReadRepository) UpsertProduct(ctx context.Context, view *ProductView) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.products[view.ID]
	if !exists {
		clone := *view
		r.products[view.ID] = &clone
		return nil
	}

	// Документ уже есть: обновляем атрибуты, не трогая более свежий остаток
	existing.Name = view.Name
	existing.Description = view.Description
	existing.Price = view.Price
	if view.Version > existing.Version {
		existing.Version = view.Version
	}
	return nil
}

// SetStock устанавливает абсолютный остаток, если version новее
func (r *InMemoryProductReadRepository) SetStock(ctx context.Context, productID string, stock, version int64, updatedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.products[productID]
	if !exists {
		r.products[productID] = &ProductView{
			ID:        productID,
			Stock:     stock,
			Version:   version,
			UpdatedAt: updatedAt,
		}
		return true, nil
	}

	if version <= existing.Version {
		return false, nil
	}

	existing.Stock = stock
	existing.Version = version
	existing.UpdatedAt = updatedAt
	return true, nil
}

// Get возвращает проекцию продукта
func (r *InMemoryProductReadRepository) Get(ctx context.Context, productID string) (*ProductView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	view, exists := r.products[productID]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	clone := *view
	return &clone, nil
}

// List возвращает проекции продуктов со смещением и лимитом
func (r *InMemoryProductReadRepository) List(ctx context.Context, offset, limit int64) ([]*ProductView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]*ProductView, 0, len(r.products))
	for _, view := range r.products {
		clone := *view
		views = append(views, &clone)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })

	return paginate(views, offset, limit), nil
}

// InMemoryOrderReadRepository реализация OrderReadRepository в памяти
type InMemoryOrderReadRepository struct {
	mu     sync.RWMutex
	orders map[string]*OrderView
}

// NewInMemoryOrderReadRepository создает новое in-memory хранилище проекции заказов
func NewInMemoryOrderReadRepository() *InMemoryOrderReadRepository {
	return &InMemoryOrderReadRepository{
		orders: make(map[string]*OrderView),
	}
}

// UpsertOrder применяет создание заказа идемпотентно
func (r *InMemoryOrderReadRepository) UpsertOrder(ctx context.Context, view *OrderView) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[view.ID]; exists {
		return nil
	}
	clone := *view
	r.orders[view.ID] = &clone
	return nil
}

// UpdateStatus применяет переход статуса заказа
func (r *InMemoryOrderReadRepository) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, updatedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !from.CanTransitionTo(to) {
		return false, nil
	}

	existing, exists := r.orders[orderID]
	if !exists || existing.Status != from {
		return false, nil
	}

	existing.Status = to
	existing.UpdatedAt = updatedAt
	return true, nil
}

// Get возвращает проекцию заказа
func (r *InMemoryOrderReadRepository) Get(ctx context.Context, orderID string) (*OrderView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	view, exists := r.orders[orderID]
	if !exists {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	clone := *view
	return &clone, nil
}

// ListByCustomer возвращает проекции заказов клиента
func (r *InMemoryOrderReadRepository) ListByCustomer(ctx context.Context, customerID string, offset, limit int64) ([]*OrderView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var views []*OrderView
	for _, view := range r.orders {
		if view.CustomerID == customerID {
			clone := *view
			views = append(views, &clone)
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.After(views[j].CreatedAt) })

	return paginate(views, offset, limit), nil
}

func paginate[T any](items []T, offset, limit int64) []T {
	if offset >= int64(len(items)) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && int64(len(items)) > limit {
		items = items[:limit]
	}
	return items
}
