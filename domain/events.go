package domain

import (
	"encoding/json"
	"fmt"

	"github.com/akriventsev/stockroom/events"
)

// Типы доменных событий
const (
	EventTypeProductCreated      = "ProductCreated"
	EventTypeProductStockUpdated = "ProductStockUpdated"
	EventTypeOrderCreated        = "OrderCreated"
	EventTypeOrderStatusUpdated  = "OrderStatusUpdated"
)

// routingKeys статическая таблица маршрутизации событий на шину.
// Новый тип события требует явной записи здесь.
var routingKeys = map[string]string{
	EventTypeProductCreated:      "product.created",
	EventTypeProductStockUpdated: "product.stock.updated",
	EventTypeOrderCreated:        "order.created",
	EventTypeOrderStatusUpdated:  "order.status.updated",
}

// RoutingKey возвращает routing key для типа события
func RoutingKey(eventType string) (string, bool) {
	key, ok := routingKeys[eventType]
	return key, ok
}

// ProductCreatedEvent событие создания продукта
type ProductCreatedEvent struct {
	events.BaseEvent `bson:",inline"`
	Name             string  `json:"name" bson:"name"`
	Description      string  `json:"description" bson:"description"`
	Price            float64 `json:"price" bson:"price"`
	Stock            int64   `json:"stock" bson:"stock"`
}

// NewProductCreatedEvent создает событие создания продукта
func NewProductCreatedEvent(productID, name, description string, price float64, stock int64) *ProductCreatedEvent {
	return &ProductCreatedEvent{
		BaseEvent:   events.NewBaseEvent(EventTypeProductCreated, productID),
		Name:        name,
		Description: description,
		Price:       price,
		Stock:       stock,
	}
}

// ProductStockUpdatedEvent событие изменения остатка продукта.
// NewStock абсолютное значение: проекция не зависит от порядка применения дельт.
type ProductStockUpdatedEvent struct {
	events.BaseEvent `bson:",inline"`
	Quantity         int64 `json:"quantity" bson:"quantity"`
	PreviousStock    int64 `json:"previousStock" bson:"previous_stock"`
	NewStock         int64 `json:"newStock" bson:"new_stock"`
}

// NewProductStockUpdatedEvent создает событие изменения остатка
func NewProductStockUpdatedEvent(productID string, quantity, previousStock, newStock int64) *ProductStockUpdatedEvent {
	return &ProductStockUpdatedEvent{
		BaseEvent:     events.NewBaseEvent(EventTypeProductStockUpdated, productID),
		Quantity:      quantity,
		PreviousStock: previousStock,
		NewStock:      newStock,
	}
}

// OrderCreatedEvent событие создания заказа
type OrderCreatedEvent struct {
	events.BaseEvent `bson:",inline"`
	CustomerID       string      `json:"customerId" bson:"customer_id"`
	Lines            []OrderLine `json:"products" bson:"products"`
	TotalAmount      float64     `json:"totalAmount" bson:"total_amount"`
	Status           OrderStatus `json:"status" bson:"status"`
}

// NewOrderCreatedEvent создает событие создания заказа
func NewOrderCreatedEvent(order *Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseEvent:   events.NewBaseEvent(EventTypeOrderCreated, order.ID),
		CustomerID:  order.CustomerID,
		Lines:       order.Lines,
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
	}
}

// OrderStatusUpdatedEvent событие смены статуса заказа
type OrderStatusUpdatedEvent struct {
	events.BaseEvent `bson:",inline"`
	PreviousStatus   OrderStatus `json:"previousStatus" bson:"previous_status"`
	CurrentStatus    OrderStatus `json:"currentStatus" bson:"current_status"`
}

// NewOrderStatusUpdatedEvent создает событие смены статуса заказа
func NewOrderStatusUpdatedEvent(orderID string, from, to OrderStatus) *OrderStatusUpdatedEvent {
	return &OrderStatusUpdatedEvent{
		BaseEvent:      events.NewBaseEvent(EventTypeOrderStatusUpdated, orderID),
		PreviousStatus: from,
		CurrentStatus:  to,
	}
}

// EventDeserializer восстанавливает конкретные типы событий из JSON.
// Диспетчеризация статическая: неизвестный тип это ошибка, а не заглушка.
type EventDeserializer struct{}

// NewEventDeserializer создает десериализатор доменных событий
func NewEventDeserializer() *EventDeserializer {
	return &EventDeserializer{}
}

// DeserializeEvent десериализует JSON данные в конкретный тип события
func (d *EventDeserializer) DeserializeEvent(eventType string, data []byte) (events.Event, error) {
	switch eventType {
	case EventTypeProductCreated:
		var event ProductCreatedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
		}
		return &event, nil
	case EventTypeProductStockUpdated:
		var event ProductStockUpdatedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
		}
		return &event, nil
	case EventTypeOrderCreated:
		var event OrderCreatedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
		}
		return &event, nil
	case EventTypeOrderStatusUpdated:
		var event OrderStatusUpdatedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
		}
		return &event, nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}
