// Package repository предоставляет хранилища документной модели заказов.
package repository

import (
	"context"
	"errors"

	"github.com/akriventsev/stockroom/domain"
)

var (
	// ErrOrderNotFound возникает когда заказ не найден
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists возникает при повторной вставке заказа
	ErrOrderExists = errors.New("order already exists")
	// ErrStatusConflict возникает когда статус заказа изменился конкурентно
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// OrderStore хранилище заказов на стороне записи
type OrderStore interface {
	// Insert сохраняет новый заказ
	Insert(ctx context.Context, order *domain.Order) error

	// Get возвращает заказ по идентификатору
	Get(ctx context.Context, orderID string) (*domain.Order, error)

	// UpdateStatusCAS меняет статус заказа при условии, что текущий
	// статус равен expected. Возвращает ErrStatusConflict иначе.
	UpdateStatusCAS(ctx context.Context, orderID string, expected, next domain.OrderStatus) error

	// ListByCustomer возвращает заказы клиента со смещением и лимитом
	ListByCustomer(ctx context.Context, customerID string, offset, limit int64) ([]*domain.Order, error)
}

// TransactionRunner выполняет функцию в рамках одной транзакции.
// Все записи внутри fn либо фиксируются вместе, либо откатываются вместе.
type TransactionRunner interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
