package eventsourcing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akriventsev/stockroom/events"
)

func storedEvent(aggregateID string, amount int64) events.Event {
	return &counterIncrementedEvent{
		BaseEvent: events.NewBaseEvent("CounterIncremented", aggregateID),
		Amount:    amount,
	}
}

func TestInMemoryStoreAppendAndGet(t *testing.T) {
	store := NewInMemoryEventStore()
	ctx := context.Background()

	err := store.AppendEvents(ctx, "agg-1", 0, []events.Event{
		storedEvent("agg-1", 1),
		storedEvent("agg-1", 2),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stream, err := store.GetEvents(ctx, "agg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stream) != 2 {
		t.Fatalf("expected 2 events, got %d", len(stream))
	}
	if stream[0].Version != 1 || stream[1].Version != 2 {
		t.Errorf("expected versions 1,2 got %d,%d", stream[0].Version, stream[1].Version)
	}
	if CurrentVersion(stream) != 2 {
		t.Errorf("expected current version 2, got %d", CurrentVersion(stream))
	}
}

func TestInMemoryStoreEmptyStream(t *testing.T) {
	store := NewInMemoryEventStore()

	stream, err := store.GetEvents(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stream) != 0 {
		t.Errorf("expected empty stream for unknown aggregate")
	}
}

func TestInMemoryStoreConcurrencyConflict(t *testing.T) {
	store := NewInMemoryEventStore()
	ctx := context.Background()

	if err := store.AppendEvents(ctx, "agg-1", 0, []events.Event{storedEvent("agg-1", 1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Второй писатель с устаревшей версией должен получить конфликт
	err := store.AppendEvents(ctx, "agg-1", 0, []events.Event{storedEvent("agg-1", 2)})
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}

	stream, _ := store.GetEvents(ctx, "agg-1")
	if len(stream) != 1 {
		t.Errorf("conflicting append must not persist, got %d events", len(stream))
	}
}

func TestInMemoryStoreConcurrentAppendSingleWinner(t *testing.T) {
	store := NewInMemoryEventStore()
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	var conflicts int64

	// Все писатели стартуют с одной и той же ожидаемой версии
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.AppendEvents(ctx, "agg-1", 0, []events.Event{storedEvent("agg-1", 1)})
			switch {
			case err == nil:
			case errors.Is(err, ErrConcurrencyConflict):
				atomic.AddInt64(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if conflicts != writers-1 {
		t.Errorf("expected %d conflicts, got %d", writers-1, conflicts)
	}
	stream, err := store.GetEvents(ctx, "agg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stream) != 1 {
		t.Errorf("expected single committed event, got %d", len(stream))
	}
}

func TestInMemoryStoreGetEventsByType(t *testing.T) {
	store := NewInMemoryEventStore()
	ctx := context.Background()

	if err := store.AppendEvents(ctx, "agg-1", 0, []events.Event{storedEvent("agg-1", 1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.AppendEvents(ctx, "agg-2", 0, []events.Event{storedEvent("agg-2", 2)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := store.GetEventsByType(ctx, "CounterIncremented", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("expected 2 events, got %d", len(found))
	}

	none, err := store.GetEventsByType(ctx, "Unknown", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no events of unknown type")
	}
}
