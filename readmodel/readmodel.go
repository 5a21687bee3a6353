// Package readmodel содержит проекции на стороне чтения.
// Проекции eventually consistent и обновляются денормализаторами
// из событий шины. Повторная и переупорядоченная доставка безопасны.
package readmodel

import (
	"context"
	"errors"
	"time"

	"github.com/akriventsev/stockroom/domain"
)

// ErrNotFound возникает когда документ проекции не найден
var ErrNotFound = errors.New("read model document not found")

// ProductView проекция продукта
type ProductView struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	Price       float64   `json:"price" bson:"price"`
	Stock       int64     `json:"stock" bson:"stock"`
	Version     int64     `json:"version" bson:"version"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updated_at"`
}

// OrderView проекция заказа
type OrderView struct {
	ID          string             `json:"id" bson:"_id"`
	CustomerID  string             `json:"customerId" bson:"customer_id"`
	Lines       []domain.OrderLine `json:"products" bson:"products"`
	TotalAmount float64            `json:"totalAmount" bson:"total_amount"`
	Status      domain.OrderStatus `json:"status" bson:"status"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updated_at"`
}

// ProductReadRepository хранилище проекции продуктов.
// Version служит токеном упорядочивания: устаревшие обновления
// отбрасываются, повторные применяются без эффекта.
type ProductReadRepository interface {
	// UpsertProduct применяет создание продукта. Идемпотентно:
	// повторное применение не меняет документ, а уже записанный
	// остаток от более позднего события не затирается.
	UpsertProduct(ctx context.Context, view *ProductView) error

	// SetStock устанавливает абсолютный остаток, если version новее
	// сохраненной. Возвращает false если обновление устарело.
	SetStock(ctx context.Context, productID string, stock, version int64, updatedAt time.Time) (bool, error)

	// Get возвращает проекцию продукта
	Get(ctx context.Context, productID string) (*ProductView, error)

	// List возвращает проекции продуктов со смещением и лимитом
	List(ctx context.Context, offset, limit int64) ([]*ProductView, error)
}

// OrderReadRepository хранилище проекции заказов.
// Идемпотентность обеспечивается upsert по идентификатору и проверкой
// допустимости перехода статуса.
type OrderReadRepository interface {
	// UpsertOrder применяет создание заказа идемпотентно
	UpsertOrder(ctx context.Context, view *OrderView) error

	// UpdateStatus применяет переход статуса. Возвращает false если
	// переход недопустим из текущего статуса (дубль или устаревшее).
	UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, updatedAt time.Time) (bool, error)

	// Get возвращает проекцию заказа
	Get(ctx context.Context, orderID string) (*OrderView, error)

	// ListByCustomer возвращает проекции заказов клиента
	ListByCustomer(ctx context.Context, customerID string, offset, limit int64) ([]*OrderView, error)
}
