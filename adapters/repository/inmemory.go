package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/akriventsev/stockroom/domain"
)

// InMemoryOrderStore реализация OrderStore в памяти для тестирования
type InMemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

// NewInMemoryOrderStore создает новое in-memory хранилище заказов
func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{
		orders: make(map[string]*domain.Order),
	}
}

// Insert сохраняет новый заказ
func (s *InMemoryOrderStore) Insert(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("%w: %s", ErrOrderExists, order.ID)
	}

	clone := *order
	s.orders[order.ID] = &clone
	return nil
}

// Get возвращает заказ по идентификатору
func (s *InMemoryOrderStore) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.orders[orderID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	clone := *order
	return &clone, nil
}

// UpdateStatusCAS меняет статус заказа с проверкой текущего статуса
func (s *InMemoryOrderStore) UpdateStatusCAS(ctx context.Context, orderID string, expected, next domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[orderID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if order.Status != expected {
		return fmt.Errorf("%w: order %s is not in status %s", ErrStatusConflict, orderID, expected)
	}

	order.Status = next
	order.UpdatedAt = nowUTC()
	return nil
}

// ListByCustomer возвращает заказы клиента со смещением и лимитом
func (s *InMemoryOrderStore) ListByCustomer(ctx context.Context, customerID string, offset, limit int64) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Order
	for _, order := range s.orders {
		if order.CustomerID == customerID {
			clone := *order
			result = append(result, &clone)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if offset >= int64(len(result)) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && int64(len(result)) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Clear очищает все заказы (для тестов)
func (s *InMemoryOrderStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make(map[string]*domain.Order)
}
