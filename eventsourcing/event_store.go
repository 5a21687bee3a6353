// Package eventsourcing предоставляет поддержку Event Sourcing паттерна.
package eventsourcing

import (
	"context"
	"errors"
	"time"

	"github.com/akriventsev/stockroom/events"
)

var (
	// ErrConcurrencyConflict возникает при конфликте версий при сохранении событий
	ErrConcurrencyConflict = errors.New("concurrency conflict: expected version does not match current version")
	// ErrStreamNotFound возникает когда поток событий агрегата не найден
	ErrStreamNotFound = errors.New("event stream not found")
	// ErrStoreUnavailable возникает при недоступности хранилища событий
	ErrStoreUnavailable = errors.New("event store unavailable")
)

// StoredEvent представляет сохраненное событие с метаданными
type StoredEvent struct {
	ID          string
	AggregateID string
	EventType   string
	EventData   events.Event
	Version     int64
	OccurredAt  time.Time
	CreatedAt   time.Time
}

// EventStore интерфейс для хранения событий.
// Append атомарен: батч либо сохраняется целиком, либо не сохраняется вовсе.
// Проверка expectedVersion обеспечивает оптимистичную конкурентность:
// два конкурентных писателя одного потока не могут оба успешно записать.
type EventStore interface {
	// AppendEvents добавляет события в поток агрегата с проверкой версии.
	// Возвращает ErrConcurrencyConflict если текущая версия потока
	// не совпадает с expectedVersion.
	AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, events []events.Event) error

	// GetEvents возвращает все события агрегата в порядке добавления.
	// Пустой результат означает, что агрегат никогда не создавался.
	GetEvents(ctx context.Context, aggregateID string) ([]StoredEvent, error)

	// GetEventsByType возвращает события определенного типа начиная с указанного времени
	GetEventsByType(ctx context.Context, eventType string, fromTimestamp time.Time) ([]StoredEvent, error)
}

// CurrentVersion возвращает версию потока по его последнему событию
func CurrentVersion(stream []StoredEvent) int64 {
	if len(stream) == 0 {
		return 0
	}
	return stream[len(stream)-1].Version
}

// UnwrapEvents извлекает доменные события из сохраненных
func UnwrapEvents(stream []StoredEvent) []events.Event {
	result := make([]events.Event, 0, len(stream))
	for _, stored := range stream {
		if stored.EventData != nil {
			result = append(result, stored.EventData)
		}
	}
	return result
}
