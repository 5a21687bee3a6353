package readmodel

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/akriventsev/stockroom/domain"
)

func testOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder("customer-1", []domain.OrderLine{
		{ProductID: "product-1", Quantity: 2, Price: 10},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return order
}

func TestOrderDenormalizerCreated(t *testing.T) {
	repo := NewInMemoryOrderReadRepository()
	denormalizer := NewOrderDenormalizer(repo, zap.NewNop())
	ctx := context.Background()

	order := testOrder(t)
	msg := envelopeMessage(t, domain.NewOrderCreatedEvent(order), 0)

	// Дубли создания дают ровно один документ
	for i := 0; i < 2; i++ {
		if err := denormalizer.Handle(ctx, msg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	view, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != domain.OrderStatusPending {
		t.Errorf("expected PENDING, got %s", view.Status)
	}
	if view.TotalAmount != 20 {
		t.Errorf("expected total 20, got %f", view.TotalAmount)
	}
}

func TestOrderDenormalizerStatusUpdated(t *testing.T) {
	repo := NewInMemoryOrderReadRepository()
	denormalizer := NewOrderDenormalizer(repo, zap.NewNop())
	ctx := context.Background()

	order := testOrder(t)
	if err := denormalizer.Handle(ctx, envelopeMessage(t, domain.NewOrderCreatedEvent(order), 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statusMsg := envelopeMessage(t,
		domain.NewOrderStatusUpdatedEvent(order.ID, domain.OrderStatusPending, domain.OrderStatusProcessing), 0)

	if err := denormalizer.Handle(ctx, statusMsg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != domain.OrderStatusProcessing {
		t.Errorf("expected PROCESSING, got %s", view.Status)
	}

	// Повторная доставка того же перехода не применяется
	if err := denormalizer.Handle(ctx, statusMsg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	view, _ = repo.Get(ctx, order.ID)
	if view.Status != domain.OrderStatusProcessing {
		t.Errorf("duplicate transition must not change status, got %s", view.Status)
	}
}

func TestOrderDenormalizerInvalidTransitionDiscarded(t *testing.T) {
	repo := NewInMemoryOrderReadRepository()
	denormalizer := NewOrderDenormalizer(repo, zap.NewNop())
	ctx := context.Background()

	order := testOrder(t)
	if err := denormalizer.Handle(ctx, envelopeMessage(t, domain.NewOrderCreatedEvent(order), 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Переход из терминального статуса отбрасывается без ошибки
	msg := envelopeMessage(t,
		domain.NewOrderStatusUpdatedEvent(order.ID, domain.OrderStatusCompleted, domain.OrderStatusProcessing), 0)
	if err := denormalizer.Handle(ctx, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != domain.OrderStatusPending {
		t.Errorf("expected status unchanged at PENDING, got %s", view.Status)
	}
}
