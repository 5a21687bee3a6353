// Package events предоставляет базовые интерфейсы для работы с доменными событиями.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event представляет доменное событие
type Event interface {
	// EventID возвращает уникальный идентификатор события
	EventID() string
	// EventType возвращает тип события
	EventType() string
	// AggregateID возвращает идентификатор агрегата
	AggregateID() string
	// OccurredAt возвращает время возникновения события
	OccurredAt() time.Time
}

// BaseEvent базовая реализация события.
// Поля экспортированы для сериализации в event store и на шину.
type BaseEvent struct {
	ID        string    `json:"id" bson:"id"`
	Type      string    `json:"type" bson:"type"`
	Aggregate string    `json:"aggregateId" bson:"aggregate_id"`
	Time      time.Time `json:"occurredAt" bson:"occurred_at"`
}

// NewBaseEvent создает новое базовое событие
func NewBaseEvent(eventType, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Aggregate: aggregateID,
		Time:      time.Now().UTC(),
	}
}

func (e BaseEvent) EventID() string {
	return e.ID
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) AggregateID() string {
	return e.Aggregate
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Time
}

// Deserializer десериализует сохраненные данные в конкретный тип события
type Deserializer interface {
	// DeserializeEvent десериализует JSON данные в конкретный тип события
	DeserializeEvent(eventType string, data []byte) (Event, error)
}

// Publisher публикатор доменных событий
type Publisher interface {
	// Publish публикует событие с указанной версией агрегата
	Publish(ctx context.Context, event Event, version int64) error
}
