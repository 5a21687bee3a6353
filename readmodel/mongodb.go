package readmodel

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/akriventsev/stockroom/domain"
)

// MongoReadConfig конфигурация MongoDB хранилища проекций.
// База чтения отделена от базы записи.
type MongoReadConfig struct {
	Database           string
	ProductsCollection string
	OrdersCollection   string
}

// DefaultMongoReadConfig возвращает конфигурацию по умолчанию
func DefaultMongoReadConfig() MongoReadConfig {
	return MongoReadConfig{
		Database:           "inventory_read",
		ProductsCollection: "products",
		OrdersCollection:   "orders",
	}
}

// Validate проверяет корректность конфигурации
func (c MongoReadConfig) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database cannot be empty")
	}
	if c.ProductsCollection == "" || c.OrdersCollection == "" {
		return fmt.Errorf("collections cannot be empty")
	}
	return nil
}

// MongoProductReadRepository реализация ProductReadRepository для MongoDB
type MongoProductReadRepository struct {
	collection *mongo.Collection
}

// NewMongoProductReadRepository создает новое хранилище проекции продуктов
func NewMongoProductReadRepository(client *mongo.Client, config MongoReadConfig) (*MongoProductReadRepository, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongodb read config: %w", err)
	}
	return &MongoProductReadRepository{
		collection: client.Database(config.Database).Collection(config.ProductsCollection),
	}, nil
}

// UpsertProduct применяет создание продукта.
// Остаток записывается только при вставке: если проекция уже получила
// более позднее обновление остатка, оно не затирается.
func (r *MongoProductReadRepository) UpsertProduct(ctx context.Context, view *ProductView) error {
	update := bson.M{
		"$set": bson.M{
			"name":        view.Name,
			"description": view.Description,
			"price":       view.Price,
		},
		"$max": bson.M{"version": view.Version},
		"$setOnInsert": bson.M{
			"stock":      view.Stock,
			"updated_at": view.UpdatedAt,
		},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": view.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert product view: %w", err)
	}
	return nil
}

// SetStock устанавливает абсолютный остаток, если version новее
func (r *MongoProductReadRepository) SetStock(ctx context.Context, productID string, stock, version int64, updatedAt time.Time) (bool, error) {
	filter := bson.M{"_id": productID, "version": bson.M{"$lt": version}}
	update := bson.M{"$set": bson.M{
		"stock":      stock,
		"version":    version,
		"updated_at": updatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		// Upsert не прошел: документ существует с version >= version
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to set product view stock: %w", err)
	}
	return result.MatchedCount > 0 || result.UpsertedCount > 0, nil
}

// Get возвращает проекцию продукта
func (r *MongoProductReadRepository) Get(ctx context.Context, productID string) (*ProductView, error) {
	var view ProductView
	err := r.collection.FindOne(ctx, bson.M{"_id": productID}).Decode(&view)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product view: %w", err)
	}
	return &view, nil
}

// List возвращает проекции продуктов со смещением и лимитом
func (r *MongoProductReadRepository) List(ctx context.Context, offset, limit int64) ([]*ProductView, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetSkip(offset).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list product views: %w", err)
	}
	defer cursor.Close(ctx)

	var views []*ProductView
	if err := cursor.All(ctx, &views); err != nil {
		return nil, fmt.Errorf("failed to decode product views: %w", err)
	}
	return views, nil
}

// MongoOrderReadRepository реализация OrderReadRepository для MongoDB
type MongoOrderReadRepository struct {
	collection *mongo.Collection
}

// NewMongoOrderReadRepository создает новое хранилище проекции заказов
func NewMongoOrderReadRepository(client *mongo.Client, config MongoReadConfig) (*MongoOrderReadRepository, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongodb read config: %w", err)
	}
	return &MongoOrderReadRepository{
		collection: client.Database(config.Database).Collection(config.OrdersCollection),
	}, nil
}

// Initialize создает индексы проекции заказов
func (r *MongoOrderReadRepository) Initialize(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create order view indexes: %w", err)
	}
	return nil
}

// UpsertOrder применяет создание заказа идемпотентно
func (r *MongoOrderReadRepository) UpsertOrder(ctx context.Context, view *OrderView) error {
	update := bson.M{"$setOnInsert": bson.M{
		"customer_id":  view.CustomerID,
		"products":     view.Lines,
		"total_amount": view.TotalAmount,
		"status":       view.Status,
		"created_at":   view.CreatedAt,
		"updated_at":   view.UpdatedAt,
	}}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": view.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert order view: %w", err)
	}
	return nil
}

// UpdateStatus применяет переход статуса заказа
func (r *MongoOrderReadRepository) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, updatedAt time.Time) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, nil
	}

	filter := bson.M{"_id": orderID, "status": from}
	update := bson.M{"$set": bson.M{"status": to, "updated_at": updatedAt}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update order view status: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// Get возвращает проекцию заказа
func (r *MongoOrderReadRepository) Get(ctx context.Context, orderID string) (*OrderView, error) {
	var view OrderView
	err := r.collection.FindOne(ctx, bson.M{"_id": orderID}).Decode(&view)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order view: %w", err)
	}
	return &view, nil
}

// ListByCustomer возвращает проекции заказов клиента
func (r *MongoOrderReadRepository) ListByCustomer(ctx context.Context, customerID string, offset, limit int64) ([]*OrderView, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(offset).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"customer_id": customerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list order views: %w", err)
	}
	defer cursor.Close(ctx)

	var views []*OrderView
	if err := cursor.All(ctx, &views); err != nil {
		return nil, fmt.Errorf("failed to decode order views: %w", err)
	}
	return views, nil
}
