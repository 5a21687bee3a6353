// Package domain содержит агрегаты, события и модели складского учета.
package domain

import (
	"fmt"

	"github.com/akriventsev/stockroom/events"
	"github.com/akriventsev/stockroom/eventsourcing"
)

// ProductAggregate агрегат продукта, восстанавливаемый из потока событий.
// Состояние существует только на время обработки команды.
type ProductAggregate struct {
	*eventsourcing.EventSourcedAggregate

	name        string
	description string
	price       float64
	stock       int64
	created     bool
}

// NewProductAggregate создает пустой агрегат продукта
func NewProductAggregate(id string) *ProductAggregate {
	product := &ProductAggregate{
		EventSourcedAggregate: eventsourcing.NewEventSourcedAggregate(id),
	}
	product.SetApplier(product)
	return product
}

// Name возвращает название продукта
func (p *ProductAggregate) Name() string {
	return p.name
}

// Description возвращает описание продукта
func (p *ProductAggregate) Description() string {
	return p.description
}

// Price возвращает цену продукта
func (p *ProductAggregate) Price() float64 {
	return p.price
}

// Stock возвращает текущий остаток
func (p *ProductAggregate) Stock() int64 {
	return p.stock
}

// Exists сообщает, был ли продукт создан
func (p *ProductAggregate) Exists() bool {
	return p.created
}

// Create создает продукт. Повторное создание запрещено.
func (p *ProductAggregate) Create(name, description string, price float64, stock int64) error {
	if p.created {
		return ErrProductAlreadyExists(p.ID())
	}
	if name == "" {
		return NewError(ErrCodeValidation, "product name cannot be empty")
	}
	if price < 0 {
		return NewError(ErrCodeValidation, "product price cannot be negative")
	}
	if stock < 0 {
		return NewError(ErrCodeValidation, "product stock cannot be negative")
	}

	return p.RaiseEvent(NewProductCreatedEvent(p.ID(), name, description, price, stock))
}

// UpdateStock изменяет остаток на quantity (знак определяет направление).
// Остаток не может стать отрицательным.
func (p *ProductAggregate) UpdateStock(quantity int64) error {
	if !p.created {
		return ErrProductNotFound(p.ID())
	}

	newStock := p.stock + quantity
	if newStock < 0 {
		return ErrInsufficientStock([]string{p.ID()})
	}

	return p.RaiseEvent(NewProductStockUpdatedEvent(p.ID(), quantity, p.stock, newStock))
}

// HasStock проверяет достаточность остатка без изменения состояния
func (p *ProductAggregate) HasStock(quantity int64) bool {
	return p.created && p.stock >= quantity
}

// Apply применяет событие к состоянию агрегата.
// Неизвестный тип события в потоке означает поврежденную историю.
func (p *ProductAggregate) Apply(event events.Event) error {
	switch e := event.(type) {
	case *ProductCreatedEvent:
		p.name = e.Name
		p.description = e.Description
		p.price = e.Price
		p.stock = e.Stock
		p.created = true
	case *ProductStockUpdatedEvent:
		p.stock = e.NewStock
	default:
		return fmt.Errorf("unexpected event type %s in product stream", event.EventType())
	}
	return nil
}

// LoadProductFromHistory восстанавливает агрегат продукта из истории событий
func LoadProductFromHistory(id string, history []events.Event) (*ProductAggregate, error) {
	product := NewProductAggregate(id)
	if err := product.LoadFromHistory(history); err != nil {
		return nil, fmt.Errorf("failed to rebuild product %s: %w", id, err)
	}
	return product, nil
}
