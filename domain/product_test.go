package domain

import (
	"encoding/json"
	"testing"

	"github.com/akriventsev/stockroom/events"
)

func TestProductCreate(t *testing.T) {
	product := NewProductAggregate("product-1")

	if err := product.Create("Widget", "a widget", 9.99, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !product.Exists() {
		t.Error("expected product to exist after create")
	}
	if product.Stock() != 5 {
		t.Errorf("expected stock 5, got %d", product.Stock())
	}
	if product.Version() != 1 {
		t.Errorf("expected version 1, got %d", product.Version())
	}
}

func TestProductCreateTwice(t *testing.T) {
	product := NewProductAggregate("product-1")
	if err := product.Create("Widget", "", 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := product.Create("Widget", "", 1, 1)
	if !IsCode(err, ErrCodeAlreadyExists) {
		t.Fatalf("expected ALREADY_EXISTS, got %v", err)
	}
}

func TestProductCreateValidation(t *testing.T) {
	cases := []struct {
		name  string
		price float64
		stock int64
		title string
	}{
		{name: "empty name", price: 1, stock: 1, title: ""},
		{name: "negative price", price: -1, stock: 1, title: "Widget"},
		{name: "negative stock", price: 1, stock: -1, title: "Widget"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			product := NewProductAggregate("product-1")
			err := product.Create(tc.title, "", tc.price, tc.stock)
			if !IsCode(err, ErrCodeValidation) {
				t.Fatalf("expected VALIDATION, got %v", err)
			}
		})
	}
}

func TestProductUpdateStock(t *testing.T) {
	product := NewProductAggregate("product-1")
	if err := product.Create("Widget", "", 1, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := product.UpdateStock(-3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if product.Stock() != 2 {
		t.Errorf("expected stock 2, got %d", product.Stock())
	}

	if err := product.UpdateStock(10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if product.Stock() != 12 {
		t.Errorf("expected stock 12, got %d", product.Stock())
	}
	if product.Version() != 3 {
		t.Errorf("expected version 3, got %d", product.Version())
	}
}

func TestProductUpdateStockInsufficient(t *testing.T) {
	product := NewProductAggregate("product-1")
	if err := product.Create("Widget", "", 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := product.UpdateStock(-5)
	if !IsCode(err, ErrCodeInsufficientStock) {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}

	// Отклоненная команда не меняет состояние
	if product.Stock() != 2 {
		t.Errorf("expected stock unchanged at 2, got %d", product.Stock())
	}
	if product.Version() != 1 {
		t.Errorf("expected version unchanged at 1, got %d", product.Version())
	}
}

func TestProductUpdateStockNotFound(t *testing.T) {
	product := NewProductAggregate("product-1")

	err := product.UpdateStock(1)
	if !IsCode(err, ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestProductReplayDeterminism(t *testing.T) {
	source := NewProductAggregate("product-1")
	if err := source.Create("Widget", "", 9.99, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := source.UpdateStock(-3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := source.UpdateStock(-2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history := source.GetUncommittedEvents()

	replayed, err := LoadProductFromHistory("product-1", history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replayed.Stock() != 0 {
		t.Errorf("expected stock 0, got %d", replayed.Stock())
	}
	if replayed.Version() != 3 {
		t.Errorf("expected version 3, got %d", replayed.Version())
	}
	if replayed.Name() != "Widget" {
		t.Errorf("expected name Widget, got %s", replayed.Name())
	}
}

func TestProductApplyUnknownEvent(t *testing.T) {
	product := NewProductAggregate("product-1")

	unknown := &OrderStatusUpdatedEvent{
		BaseEvent:      events.NewBaseEvent(EventTypeOrderStatusUpdated, "product-1"),
		PreviousStatus: OrderStatusPending,
		CurrentStatus:  OrderStatusProcessing,
	}

	if err := product.Apply(unknown); err == nil {
		t.Fatal("expected error for foreign event in product stream")
	}
}

func TestDeserializeUnknownEventType(t *testing.T) {
	deserializer := NewEventDeserializer()

	if _, err := deserializer.DeserializeEvent("Mystery", []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestDeserializeRoundTrip(t *testing.T) {
	deserializer := NewEventDeserializer()
	original := NewProductStockUpdatedEvent("product-1", -3, 5, 2)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored, err := deserializer.DeserializeEvent(EventTypeProductStockUpdated, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event, ok := restored.(*ProductStockUpdatedEvent)
	if !ok {
		t.Fatalf("unexpected type %T", restored)
	}
	if event.NewStock != 2 || event.PreviousStock != 5 || event.Quantity != -3 {
		t.Errorf("round trip lost fields: %+v", event)
	}
	if event.EventID() != original.EventID() {
		t.Errorf("round trip lost event id")
	}
}

func TestRoutingKeys(t *testing.T) {
	for _, eventType := range []string{
		EventTypeProductCreated,
		EventTypeProductStockUpdated,
		EventTypeOrderCreated,
		EventTypeOrderStatusUpdated,
	} {
		if _, ok := RoutingKey(eventType); !ok {
			t.Errorf("missing routing key for %s", eventType)
		}
	}

	if _, ok := RoutingKey("Mystery"); ok {
		t.Error("unexpected routing key for unknown type")
	}
}
