package eventsourcing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/akriventsev/stockroom/events"
)

// PostgresEventStoreConfig конфигурация для PostgreSQL Event Store
type PostgresEventStoreConfig struct {
	TableName string
}

// DefaultPostgresEventStoreConfig возвращает конфигурацию по умолчанию
func DefaultPostgresEventStoreConfig() PostgresEventStoreConfig {
	return PostgresEventStoreConfig{
		TableName: "events",
	}
}

// Validate проверяет корректность конфигурации
func (c PostgresEventStoreConfig) Validate() error {
	if c.TableName == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	return nil
}

// PostgresEventStore реализация EventStore для PostgreSQL.
// Альтернатива MongoDB-хранилищу с тем же контрактом оптимистичной конкурентности.
type PostgresEventStore struct {
	config       PostgresEventStoreConfig
	pool         *pgxpool.Pool
	deserializer events.Deserializer
	logger       *zap.Logger
}

// NewPostgresEventStore создает новый PostgreSQL Event Store
func NewPostgresEventStore(pool *pgxpool.Pool, config PostgresEventStoreConfig, deserializer events.Deserializer, logger *zap.Logger) (*PostgresEventStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres event store config: %w", err)
	}

	return &PostgresEventStore{
		config:       config,
		pool:         pool,
		deserializer: deserializer,
		logger:       logger,
	}, nil
}

// Initialize создает таблицу событий и индексы
func (s *PostgresEventStore) Initialize(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id           TEXT PRIMARY KEY,
			aggregate_id TEXT NOT NULL,
			event_type   TEXT NOT NULL,
			event_data   JSONB NOT NULL,
			version      BIGINT NOT NULL,
			occurred_at  TIMESTAMPTZ NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (aggregate_id, version)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_aggregate ON %s (aggregate_id, version);
		CREATE INDEX IF NOT EXISTS idx_%s_type ON %s (event_type, occurred_at);
	`, s.config.TableName, s.config.TableName, s.config.TableName, s.config.TableName, s.config.TableName)

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize event store schema: %w", err)
	}

	s.logger.Info("event store initialized", zap.String("table", s.config.TableName))
	return nil
}

// AppendEvents добавляет события в поток агрегата
func (s *PostgresEventStore) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, newEvents []events.Event) error {
	if len(newEvents) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	// Проверяем текущую версию потока
	var currentVersion sql.NullInt64
	checkQuery := fmt.Sprintf("SELECT MAX(version) FROM %s WHERE aggregate_id = $1", s.config.TableName)
	if err := tx.QueryRow(ctx, checkQuery, aggregateID).Scan(&currentVersion); err != nil {
		return fmt.Errorf("%w: failed to check version: %v", ErrStoreUnavailable, err)
	}

	actualVersion := int64(0)
	if currentVersion.Valid {
		actualVersion = currentVersion.Int64
	}

	if expectedVersion != actualVersion {
		return fmt.Errorf("%w: expected %d, got %d", ErrConcurrencyConflict, expectedVersion, actualVersion)
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, aggregate_id, event_type, event_data, version, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.config.TableName)

	for i, event := range newEvents {
		eventData, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
		}

		version := expectedVersion + int64(i) + 1
		if _, err := tx.Exec(ctx, insertQuery,
			event.EventID(), aggregateID, event.EventType(), eventData, version, event.OccurredAt(),
		); err != nil {
			return fmt.Errorf("%w: failed to insert event: %v", ErrStoreUnavailable, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit events: %v", ErrStoreUnavailable, err)
	}

	s.logger.Debug("events appended",
		zap.String("aggregate_id", aggregateID),
		zap.Int("count", len(newEvents)),
		zap.Int64("from_version", expectedVersion))
	return nil
}

// GetEvents возвращает события агрегата в порядке добавления
func (s *PostgresEventStore) GetEvents(ctx context.Context, aggregateID string) ([]StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, aggregate_id, event_type, event_data, version, occurred_at, created_at
		FROM %s WHERE aggregate_id = $1 ORDER BY version
	`, s.config.TableName)

	rows, err := s.pool.Query(ctx, query, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query events: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return s.scanAll(rows)
}

// GetEventsByType возвращает события определенного типа
func (s *PostgresEventStore) GetEventsByType(ctx context.Context, eventType string, fromTimestamp time.Time) ([]StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, aggregate_id, event_type, event_data, version, occurred_at, created_at
		FROM %s WHERE event_type = $1 AND occurred_at >= $2 ORDER BY occurred_at
	`, s.config.TableName)

	rows, err := s.pool.Query(ctx, query, eventType, fromTimestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query events by type: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return s.scanAll(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func (s *PostgresEventStore) scanAll(rows pgxRows) ([]StoredEvent, error) {
	var result []StoredEvent
	for rows.Next() {
		var (
			stored    StoredEvent
			eventData []byte
		)
		if err := rows.Scan(&stored.ID, &stored.AggregateID, &stored.EventType,
			&eventData, &stored.Version, &stored.OccurredAt, &stored.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stored event: %w", err)
		}

		event, err := s.deserializer.DeserializeEvent(stored.EventType, eventData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize event %s: %w", stored.EventType, err)
		}
		stored.EventData = event

		result = append(result, stored)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows failed: %v", ErrStoreUnavailable, err)
	}
	return result, nil
}
