package eventsourcing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/akriventsev/stockroom/events"
)

// MongoEventStoreConfig конфигурация для MongoDB Event Store
type MongoEventStoreConfig struct {
	Database   string
	Collection string
}

// DefaultMongoEventStoreConfig возвращает конфигурацию по умолчанию
func DefaultMongoEventStoreConfig() MongoEventStoreConfig {
	return MongoEventStoreConfig{
		Database:   "inventory_write",
		Collection: "events",
	}
}

// Validate проверяет корректность конфигурации
func (c MongoEventStoreConfig) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database cannot be empty")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection cannot be empty")
	}
	return nil
}

// MongoEventStore реализация EventStore для MongoDB.
// Клиент создается один раз при старте процесса и передается снаружи.
type MongoEventStore struct {
	config       MongoEventStoreConfig
	collection   *mongo.Collection
	deserializer events.Deserializer
	logger       *zap.Logger
}

// NewMongoEventStore создает новый MongoDB Event Store
func NewMongoEventStore(client *mongo.Client, config MongoEventStoreConfig, deserializer events.Deserializer, logger *zap.Logger) (*MongoEventStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongodb event store config: %w", err)
	}

	return &MongoEventStore{
		config:       config,
		collection:   client.Database(config.Database).Collection(config.Collection),
		deserializer: deserializer,
		logger:       logger,
	}, nil
}

// Initialize создает индексы хранилища.
// Уникальный индекс (aggregateId, version) обеспечивает проверку версии
// на уровне хранилища даже между процессами.
func (s *MongoEventStore) Initialize(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "aggregateId", Value: 1}, {Key: "version", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "aggregateId", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "occurredAt", Value: 1}}},
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create event store indexes: %w", err)
	}

	s.logger.Info("event store initialized",
		zap.String("database", s.config.Database),
		zap.String("collection", s.config.Collection))
	return nil
}

// AppendEvents добавляет события в поток агрегата.
// Если вызывающий уже находится внутри mongo-сессии (координатор резервирования),
// запись присоединяется к его транзакции; иначе открывается собственная.
func (s *MongoEventStore) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, newEvents []events.Event) error {
	if len(newEvents) == 0 {
		return nil
	}

	if mongo.SessionFromContext(ctx) != nil {
		return s.appendEvents(ctx, aggregateID, expectedVersion, newEvents)
	}

	session, err := s.collection.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("%w: failed to start session: %v", ErrStoreUnavailable, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, s.appendEvents(sc, aggregateID, expectedVersion, newEvents)
	})
	return err
}

func (s *MongoEventStore) appendEvents(ctx context.Context, aggregateID string, expectedVersion int64, newEvents []events.Event) error {
	// Проверяем текущую версию потока
	var head bson.M
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	err := s.collection.FindOne(ctx, bson.M{"aggregateId": aggregateID}, opts).Decode(&head)

	currentVersion := int64(0)
	if err == nil {
		currentVersion = asInt64(head["version"])
	} else if err != mongo.ErrNoDocuments {
		return fmt.Errorf("%w: failed to read stream head: %v", ErrStoreUnavailable, err)
	}

	if expectedVersion != currentVersion {
		return fmt.Errorf("%w: expected %d, got %d", ErrConcurrencyConflict, expectedVersion, currentVersion)
	}

	docs := make([]interface{}, len(newEvents))
	for i, event := range newEvents {
		data, err := marshalEventData(event)
		if err != nil {
			return err
		}
		docs[i] = bson.M{
			"_id":         event.EventID(),
			"aggregateId": aggregateID,
			"type":        event.EventType(),
			"data":        data,
			"occurredAt":  event.OccurredAt(),
			"version":     expectedVersion + int64(i) + 1,
			"createdAt":   time.Now().UTC(),
		}
	}

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: duplicate version for aggregate %s", ErrConcurrencyConflict, aggregateID)
		}
		return fmt.Errorf("%w: failed to insert events: %v", ErrStoreUnavailable, err)
	}

	s.logger.Debug("events appended",
		zap.String("aggregate_id", aggregateID),
		zap.Int("count", len(newEvents)),
		zap.Int64("from_version", expectedVersion))
	return nil
}

// GetEvents возвращает события агрегата в порядке добавления
func (s *MongoEventStore) GetEvents(ctx context.Context, aggregateID string) ([]StoredEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"aggregateId": aggregateID}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find events: %v", ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	return s.decodeAll(ctx, cursor)
}

// GetEventsByType возвращает события определенного типа
func (s *MongoEventStore) GetEventsByType(ctx context.Context, eventType string, fromTimestamp time.Time) ([]StoredEvent, error) {
	filter := bson.M{
		"type":       eventType,
		"occurredAt": bson.M{"$gte": fromTimestamp},
	}
	opts := options.Find().SetSort(bson.D{{Key: "occurredAt", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find events by type: %v", ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	return s.decodeAll(ctx, cursor)
}

func (s *MongoEventStore) decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]StoredEvent, error) {
	var result []StoredEvent
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode stored event: %w", err)
		}

		stored := StoredEvent{
			AggregateID: asString(doc["aggregateId"]),
			EventType:   asString(doc["type"]),
			Version:     asInt64(doc["version"]),
			OccurredAt:  asTime(doc["occurredAt"]),
			CreatedAt:   asTime(doc["createdAt"]),
		}
		if id, ok := doc["_id"].(string); ok {
			stored.ID = id
		}

		event, err := s.unmarshalEventData(stored.EventType, doc["data"])
		if err != nil {
			return nil, err
		}
		stored.EventData = event

		result = append(result, stored)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: cursor failed: %v", ErrStoreUnavailable, err)
	}
	return result, nil
}

func (s *MongoEventStore) unmarshalEventData(eventType string, raw interface{}) (events.Event, error) {
	dataDoc, ok := raw.(bson.M)
	if !ok {
		return nil, fmt.Errorf("stored event %s has malformed data payload", eventType)
	}

	jsonBytes, err := bson.MarshalExtJSON(dataDoc, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert event data to JSON: %w", err)
	}

	event, err := s.deserializer.DeserializeEvent(eventType, jsonBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize event %s: %w", eventType, err)
	}
	return event, nil
}

// marshalEventData преобразует событие в BSON-документ через его JSON-форму,
// чтобы формат в хранилище совпадал с публикуемым envelope
func marshalEventData(event events.Event) (bson.M, error) {
	jsonBytes, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}

	var doc bson.M
	if err := bson.UnmarshalExtJSON(jsonBytes, false, &doc); err != nil {
		return nil, fmt.Errorf("failed to convert event %s to BSON: %w", event.EventType(), err)
	}
	return doc, nil
}

// Вспомогательные функции декодирования BSON
func asString(val interface{}) string {
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

func asInt64(val interface{}) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func asTime(val interface{}) time.Time {
	switch v := val.(type) {
	case time.Time:
		return v
	case primitive.DateTime:
		return v.Time()
	default:
		return time.Time{}
	}
}
