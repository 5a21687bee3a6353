package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Коды доменных ошибок
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeInsufficientStock   = "INSUFFICIENT_STOCK"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	ErrCodeValidation          = "VALIDATION"
)

// Error доменная ошибка с кодом для маппинга на транспортный уровень
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// NewError создает доменную ошибку
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError создает доменную ошибку с причиной
func WrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// ErrProductNotFound возвращает ошибку отсутствия продукта
func ErrProductNotFound(productID string) *Error {
	return NewError(ErrCodeNotFound, fmt.Sprintf("product %s not found", productID))
}

// ErrOrderNotFound возвращает ошибку отсутствия заказа
func ErrOrderNotFound(orderID string) *Error {
	return NewError(ErrCodeNotFound, fmt.Sprintf("order %s not found", orderID))
}

// ErrProductAlreadyExists возвращает ошибку повторного создания продукта
func ErrProductAlreadyExists(productID string) *Error {
	return NewError(ErrCodeAlreadyExists, fmt.Sprintf("product %s already exists", productID))
}

// ErrInsufficientStock возвращает ошибку нехватки остатков.
// Перечисляет все продукты с нехваткой, а не только первый встреченный.
func ErrInsufficientStock(productIDs []string) *Error {
	return NewError(ErrCodeInsufficientStock,
		fmt.Sprintf("insufficient stock for products: %s", strings.Join(productIDs, ", ")))
}

// ErrInvalidTransition возвращает ошибку недопустимого перехода статуса заказа
func ErrInvalidTransition(from, to OrderStatus) *Error {
	return NewError(ErrCodeInvalidTransition,
		fmt.Sprintf("invalid order status transition from %s to %s", from, to))
}

// IsCode проверяет, что ошибка является доменной с указанным кодом
func IsCode(err error, code string) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
