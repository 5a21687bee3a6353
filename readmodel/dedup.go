package readmodel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupStore отслеживает уже обработанные события.
// Вспомогательный фильтр поверх идемпотентных проекций: отсекает
// заведомые дубли до обращения к хранилищу проекции. Помечать событие
// следует только после успешного применения, иначе повторная доставка
// будет отброшена до того, как проекция обновится.
type DedupStore interface {
	// IsProcessed проверяет, было ли событие уже обработано
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed помечает событие обработанным
	MarkProcessed(ctx context.Context, eventID string) error
}

// RedisDedupConfig конфигурация Redis дедупликации
type RedisDedupConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// DefaultRedisDedupConfig возвращает конфигурацию по умолчанию
func DefaultRedisDedupConfig() RedisDedupConfig {
	return RedisDedupConfig{
		KeyPrefix: "dedup:event:",
		TTL:       24 * time.Hour,
	}
}

// RedisDedupStore дедупликация на Redis с TTL
type RedisDedupStore struct {
	client *redis.Client
	config RedisDedupConfig
}

// NewRedisDedupStore создает новый Redis дедупликатор
func NewRedisDedupStore(client *redis.Client, config RedisDedupConfig) *RedisDedupStore {
	return &RedisDedupStore{client: client, config: config}
}

// IsProcessed проверяет, было ли событие уже обработано
func (s *RedisDedupStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	count, err := s.client.Exists(ctx, s.config.KeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event dedup: %w", err)
	}
	return count > 0, nil
}

// MarkProcessed помечает событие обработанным
func (s *RedisDedupStore) MarkProcessed(ctx context.Context, eventID string) error {
	if err := s.client.Set(ctx, s.config.KeyPrefix+eventID, 1, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// InMemoryDedupStore дедупликация в памяти для тестирования
type InMemoryDedupStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemoryDedupStore создает новый in-memory дедупликатор
func NewInMemoryDedupStore() *InMemoryDedupStore {
	return &InMemoryDedupStore{seen: make(map[string]struct{})}
}

// IsProcessed проверяет, было ли событие уже обработано
func (s *InMemoryDedupStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.seen[eventID]
	return exists, nil
}

// MarkProcessed помечает событие обработанным
func (s *InMemoryDedupStore) MarkProcessed(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[eventID] = struct{}{}
	return nil
}
