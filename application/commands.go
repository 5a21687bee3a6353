// Package application содержит обработчики команд и координацию записи.
package application

import (
	"github.com/akriventsev/stockroom/domain"
)

// Типы команд
const (
	CommandCreateProduct     = "CreateProduct"
	CommandUpdateStock       = "UpdateStock"
	CommandCreateOrder       = "CreateOrder"
	CommandUpdateOrderStatus = "UpdateOrderStatus"
	CommandCancelOrder       = "CancelOrder"
)

// Command команда на стороне записи
type Command interface {
	// CommandType возвращает тип команды
	CommandType() string
}

// CreateProductCommand команда создания продукта
type CreateProductCommand struct {
	ProductID   string
	Name        string
	Description string
	Price       float64
	Stock       int64
}

func (c CreateProductCommand) CommandType() string { return CommandCreateProduct }

// UpdateStockCommand команда изменения остатка продукта.
// Знак Quantity определяет направление изменения.
type UpdateStockCommand struct {
	ProductID string
	Quantity  int64
}

func (c UpdateStockCommand) CommandType() string { return CommandUpdateStock }

// CreateOrderCommand команда создания заказа с резервированием остатков
type CreateOrderCommand struct {
	CustomerID string
	Lines      []domain.OrderLine
}

func (c CreateOrderCommand) CommandType() string { return CommandCreateOrder }

// UpdateOrderStatusCommand команда смены статуса заказа
type UpdateOrderStatusCommand struct {
	OrderID string
	Status  domain.OrderStatus
}

func (c UpdateOrderStatusCommand) CommandType() string { return CommandUpdateOrderStatus }

// CancelOrderCommand команда отмены заказа с возвратом остатков
type CancelOrderCommand struct {
	OrderID string
}

func (c CancelOrderCommand) CommandType() string { return CommandCancelOrder }
