// Package eventsourcing предоставляет поддержку Event Sourcing паттерна.
package eventsourcing

import (
	"fmt"

	"github.com/akriventsev/stockroom/events"
)

// EventApplier интерфейс для агрегатов, которые могут применять события
type EventApplier interface {
	// Apply применяет конкретное событие к состоянию агрегата
	Apply(event events.Event) error
}

// EventSourcedAggregate базовый тип для агрегатов с Event Sourcing.
// Агрегат эфемерен: создается заново на каждую команду, восстанавливается
// полным воспроизведением истории и отбрасывается после сохранения.
type EventSourcedAggregate struct {
	id                string
	version           int64
	uncommittedEvents []events.Event
	applier           EventApplier
}

// NewEventSourcedAggregate создает новый Event Sourced агрегат
func NewEventSourcedAggregate(id string) *EventSourcedAggregate {
	return &EventSourcedAggregate{
		id:                id,
		version:           0,
		uncommittedEvents: make([]events.Event, 0),
	}
}

// SetApplier устанавливает EventApplier для агрегата
func (a *EventSourcedAggregate) SetApplier(applier EventApplier) {
	a.applier = applier
}

// ID возвращает идентификатор агрегата
func (a *EventSourcedAggregate) ID() string {
	return a.id
}

// Version возвращает текущую версию агрегата.
// Версия равна количеству примененных событий и никогда не уменьшается.
func (a *EventSourcedAggregate) Version() int64 {
	return a.version
}

// RaiseEvent применяет новое событие и добавляет его в uncommitted буфер
func (a *EventSourcedAggregate) RaiseEvent(event events.Event) error {
	if err := a.applyEvent(event); err != nil {
		return fmt.Errorf("failed to apply event %s: %w", event.EventType(), err)
	}
	a.uncommittedEvents = append(a.uncommittedEvents, event)
	a.version++
	return nil
}

// LoadFromHistory восстанавливает состояние агрегата из истории событий.
// Детерминированность: одна и та же история всегда дает одно и то же состояние.
func (a *EventSourcedAggregate) LoadFromHistory(history []events.Event) error {
	for i, event := range history {
		if err := a.applyEvent(event); err != nil {
			return fmt.Errorf("failed to apply event at index %d: %w", i, err)
		}
		a.version++
	}
	return nil
}

// applyEvent применяет событие к состоянию агрегата
func (a *EventSourcedAggregate) applyEvent(event events.Event) error {
	if a.applier == nil {
		return fmt.Errorf("EventApplier not set for aggregate %s", a.id)
	}
	return a.applier.Apply(event)
}

// GetUncommittedEvents возвращает несохраненные события
func (a *EventSourcedAggregate) GetUncommittedEvents() []events.Event {
	return a.uncommittedEvents
}

// MarkEventsAsCommitted очищает uncommitted события после сохранения.
// Вызывается только после подтверждения записи от Event Store.
func (a *EventSourcedAggregate) MarkEventsAsCommitted() {
	a.uncommittedEvents = make([]events.Event, 0)
}
