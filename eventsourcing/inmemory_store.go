package eventsourcing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akriventsev/stockroom/events"
)

// InMemoryEventStore реализация EventStore в памяти для тестирования и разработки
type InMemoryEventStore struct {
	mu      sync.RWMutex
	streams map[string][]StoredEvent
}

// NewInMemoryEventStore создает новый InMemory Event Store
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		streams: make(map[string][]StoredEvent),
	}
}

// AppendEvents добавляет события в поток агрегата
func (s *InMemoryEventStore) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, newEvents []events.Event) error {
	if len(newEvents) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateID]
	currentVersion := CurrentVersion(stream)

	// Проверяем оптимистичную конкурентность
	if expectedVersion != currentVersion {
		return fmt.Errorf("%w: expected %d, got %d", ErrConcurrencyConflict, expectedVersion, currentVersion)
	}

	for i, event := range newEvents {
		stream = append(stream, StoredEvent{
			ID:          event.EventID(),
			AggregateID: aggregateID,
			EventType:   event.EventType(),
			EventData:   event,
			Version:     expectedVersion + int64(i) + 1,
			OccurredAt:  event.OccurredAt(),
			CreatedAt:   time.Now(),
		})
	}

	s.streams[aggregateID] = stream
	return nil
}

// GetEvents возвращает события агрегата в порядке добавления
func (s *InMemoryEventStore) GetEvents(ctx context.Context, aggregateID string) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[aggregateID]
	result := make([]StoredEvent, len(stream))
	copy(result, stream)
	return result, nil
}

// GetEventsByType возвращает события определенного типа
func (s *InMemoryEventStore) GetEventsByType(ctx context.Context, eventType string, fromTimestamp time.Time) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []StoredEvent
	for _, stream := range s.streams {
		for _, event := range stream {
			if event.EventType == eventType && !event.OccurredAt.Before(fromTimestamp) {
				result = append(result, event)
			}
		}
	}
	return result, nil
}

// Clear очищает все события (для тестов)
func (s *InMemoryEventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = make(map[string][]StoredEvent)
}
