package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus статус заказа
type OrderStatus string

// Статусы заказа
const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// orderTransitions допустимые переходы статусов заказа.
// COMPLETED и CANCELLED терминальны.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled},
}

// CanTransitionTo проверяет допустимость перехода статуса
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, является ли статус терминальным
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// IsValid проверяет, что статус известен
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderLine позиция заказа
type OrderLine struct {
	ProductID string  `json:"productId" bson:"product_id"`
	Quantity  int64   `json:"quantity" bson:"quantity"`
	Price     float64 `json:"price" bson:"price"`
}

// Order заказ в документной модели.
// Заказы не событийно-сорсированы: их жизненный цикл короткий, а
// история изменений публикуется событиями смены статуса.
type Order struct {
	ID          string      `json:"id" bson:"_id"`
	CustomerID  string      `json:"customerId" bson:"customer_id"`
	Lines       []OrderLine `json:"products" bson:"products"`
	TotalAmount float64     `json:"totalAmount" bson:"total_amount"`
	Status      OrderStatus `json:"status" bson:"status"`
	CreatedAt   time.Time   `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" bson:"updated_at"`
}

// NewOrder создает заказ в статусе PENDING с вычисленной суммой
func NewOrder(customerID string, lines []OrderLine) (*Order, error) {
	if customerID == "" {
		return nil, NewError(ErrCodeValidation, "customer id cannot be empty")
	}
	if len(lines) == 0 {
		return nil, NewError(ErrCodeValidation, "order must contain at least one product")
	}
	for _, line := range lines {
		if line.ProductID == "" {
			return nil, NewError(ErrCodeValidation, "order line product id cannot be empty")
		}
		if line.Quantity <= 0 {
			return nil, NewError(ErrCodeValidation, "order line quantity must be positive")
		}
	}

	now := time.Now().UTC()
	return &Order{
		ID:          uuid.NewString(),
		CustomerID:  customerID,
		Lines:       lines,
		TotalAmount: computeTotal(lines),
		Status:      OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func computeTotal(lines []OrderLine) float64 {
	total := 0.0
	for _, line := range lines {
		total += line.Price * float64(line.Quantity)
	}
	return total
}
