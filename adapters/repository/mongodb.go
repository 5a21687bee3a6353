package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/akriventsev/stockroom/domain"
)

// MongoOrderStoreConfig конфигурация MongoDB хранилища заказов
type MongoOrderStoreConfig struct {
	Database   string
	Collection string
}

// DefaultMongoOrderStoreConfig возвращает конфигурацию по умолчанию
func DefaultMongoOrderStoreConfig() MongoOrderStoreConfig {
	return MongoOrderStoreConfig{
		Database:   "inventory_write",
		Collection: "orders",
	}
}

// Validate проверяет корректность конфигурации
func (c MongoOrderStoreConfig) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database cannot be empty")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection cannot be empty")
	}
	return nil
}

// MongoOrderStore реализация OrderStore для MongoDB
type MongoOrderStore struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoOrderStore создает новое MongoDB хранилище заказов
func NewMongoOrderStore(client *mongo.Client, config MongoOrderStoreConfig, logger *zap.Logger) (*MongoOrderStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongodb order store config: %w", err)
	}

	return &MongoOrderStore{
		collection: client.Database(config.Database).Collection(config.Collection),
		logger:     logger,
	}, nil
}

// Initialize создает индексы хранилища заказов
func (s *MongoOrderStore) Initialize(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create order store indexes: %w", err)
	}
	return nil
}

// Insert сохраняет новый заказ
func (s *MongoOrderStore) Insert(ctx context.Context, order *domain.Order) error {
	if _, err := s.collection.InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrOrderExists, order.ID)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	s.logger.Debug("order inserted",
		zap.String("order_id", order.ID),
		zap.String("customer_id", order.CustomerID))
	return nil
}

// Get возвращает заказ по идентификатору
func (s *MongoOrderStore) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	err := s.collection.FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return &order, nil
}

// UpdateStatusCAS меняет статус заказа с проверкой текущего статуса.
// Фильтр по ожидаемому статусу делает смену атомарной на уровне документа.
func (s *MongoOrderStore) UpdateStatusCAS(ctx context.Context, orderID string, expected, next domain.OrderStatus) error {
	filter := bson.M{"_id": orderID, "status": expected}
	update := bson.M{"$set": bson.M{"status": next, "updated_at": nowUTC()}}

	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if result.MatchedCount == 0 {
		// Различаем отсутствие заказа и конкурентную смену статуса
		count, err := s.collection.CountDocuments(ctx, bson.M{"_id": orderID})
		if err != nil {
			return fmt.Errorf("failed to check order existence: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return fmt.Errorf("%w: order %s is not in status %s", ErrStatusConflict, orderID, expected)
	}

	s.logger.Debug("order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(expected)),
		zap.String("to", string(next)))
	return nil
}

// ListByCustomer возвращает заказы клиента со смещением и лимитом
func (s *MongoOrderStore) ListByCustomer(ctx context.Context, customerID string, offset, limit int64) ([]*domain.Order, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(offset).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, bson.M{"customer_id": customerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}
