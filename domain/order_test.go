package domain

import (
	"strings"
	"testing"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusCompleted, false},
		{OrderStatusProcessing, OrderStatusCompleted, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
		{OrderStatusPending, OrderStatusPending, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if !OrderStatusCompleted.IsTerminal() {
		t.Error("COMPLETED must be terminal")
	}
	if !OrderStatusCancelled.IsTerminal() {
		t.Error("CANCELLED must be terminal")
	}
	if OrderStatusPending.IsTerminal() {
		t.Error("PENDING must not be terminal")
	}
	if OrderStatusProcessing.IsTerminal() {
		t.Error("PROCESSING must not be terminal")
	}
}

func TestNewOrder(t *testing.T) {
	order, err := NewOrder("customer-1", []OrderLine{
		{ProductID: "product-1", Quantity: 2, Price: 10},
		{ProductID: "product-2", Quantity: 1, Price: 5.5},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.Status != OrderStatusPending {
		t.Errorf("expected PENDING, got %s", order.Status)
	}
	if order.TotalAmount != 25.5 {
		t.Errorf("expected total 25.5, got %f", order.TotalAmount)
	}
	if order.ID == "" {
		t.Error("expected generated order id")
	}
}

func TestNewOrderValidation(t *testing.T) {
	if _, err := NewOrder("", []OrderLine{{ProductID: "p", Quantity: 1}}); !IsCode(err, ErrCodeValidation) {
		t.Errorf("expected VALIDATION for empty customer, got %v", err)
	}
	if _, err := NewOrder("customer-1", nil); !IsCode(err, ErrCodeValidation) {
		t.Errorf("expected VALIDATION for empty lines, got %v", err)
	}
	if _, err := NewOrder("customer-1", []OrderLine{{ProductID: "p", Quantity: 0}}); !IsCode(err, ErrCodeValidation) {
		t.Errorf("expected VALIDATION for zero quantity, got %v", err)
	}
	if _, err := NewOrder("customer-1", []OrderLine{{ProductID: "", Quantity: 1}}); !IsCode(err, ErrCodeValidation) {
		t.Errorf("expected VALIDATION for empty product id, got %v", err)
	}
}

func TestInsufficientStockErrorListsAllProducts(t *testing.T) {
	err := ErrInsufficientStock([]string{"product-1", "product-2"})

	if !IsCode(err, ErrCodeInsufficientStock) {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}
	message := err.Error()
	for _, id := range []string{"product-1", "product-2"} {
		if !strings.Contains(message, id) {
			t.Errorf("expected error to mention %s: %s", id, message)
		}
	}
}
