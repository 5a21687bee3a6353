package eventsourcing

import (
	"testing"

	"github.com/akriventsev/stockroom/events"
)

type counterIncrementedEvent struct {
	events.BaseEvent
	Amount int64 `json:"amount"`
}

type counterAggregate struct {
	*EventSourcedAggregate
	total int64
}

func newCounterAggregate(id string) *counterAggregate {
	counter := &counterAggregate{
		EventSourcedAggregate: NewEventSourcedAggregate(id),
	}
	counter.SetApplier(counter)
	return counter
}

func (c *counterAggregate) Increment(amount int64) error {
	return c.RaiseEvent(&counterIncrementedEvent{
		BaseEvent: events.NewBaseEvent("CounterIncremented", c.ID()),
		Amount:    amount,
	})
}

func (c *counterAggregate) Apply(event events.Event) error {
	incremented := event.(*counterIncrementedEvent)
	c.total += incremented.Amount
	return nil
}

func TestAggregateRaiseEvent(t *testing.T) {
	counter := newCounterAggregate("counter-1")

	if err := counter.Increment(5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := counter.Increment(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if counter.total != 8 {
		t.Errorf("expected total 8, got %d", counter.total)
	}
	if counter.Version() != 2 {
		t.Errorf("expected version 2, got %d", counter.Version())
	}
	if len(counter.GetUncommittedEvents()) != 2 {
		t.Errorf("expected 2 uncommitted events, got %d", len(counter.GetUncommittedEvents()))
	}
}

func TestAggregateLoadFromHistory(t *testing.T) {
	source := newCounterAggregate("counter-1")
	for _, amount := range []int64{1, 2, 3} {
		if err := source.Increment(amount); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	history := source.GetUncommittedEvents()

	// Одна и та же история всегда дает одно и то же состояние
	for i := 0; i < 3; i++ {
		replayed := newCounterAggregate("counter-1")
		if err := replayed.LoadFromHistory(history); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if replayed.total != 6 {
			t.Errorf("expected total 6, got %d", replayed.total)
		}
		if replayed.Version() != 3 {
			t.Errorf("expected version 3, got %d", replayed.Version())
		}
		if len(replayed.GetUncommittedEvents()) != 0 {
			t.Errorf("replayed events must not be uncommitted")
		}
	}
}

func TestAggregateMarkEventsAsCommitted(t *testing.T) {
	counter := newCounterAggregate("counter-1")
	if err := counter.Increment(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counter.MarkEventsAsCommitted()

	if len(counter.GetUncommittedEvents()) != 0 {
		t.Errorf("expected no uncommitted events after commit")
	}
	if counter.Version() != 1 {
		t.Errorf("commit must not change version, got %d", counter.Version())
	}
}

func TestAggregateApplierNotSet(t *testing.T) {
	aggregate := NewEventSourcedAggregate("no-applier")

	err := aggregate.RaiseEvent(&counterIncrementedEvent{
		BaseEvent: events.NewBaseEvent("CounterIncremented", "no-applier"),
		Amount:    1,
	})
	if err == nil {
		t.Fatal("expected error when applier is not set")
	}
}
