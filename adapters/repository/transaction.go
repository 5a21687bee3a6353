package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// MongoTransactionRunner выполняет функцию внутри multi-document транзакции.
// Сессия кладется в контекст, поэтому все Mongo-хранилища внутри fn
// автоматически участвуют в одной транзакции.
type MongoTransactionRunner struct {
	client *mongo.Client
}

// NewMongoTransactionRunner создает новый транзакционный раннер
func NewMongoTransactionRunner(client *mongo.Client) *MongoTransactionRunner {
	return &MongoTransactionRunner{client: client}
}

// WithinTransaction выполняет fn в рамках одной mongo-сессии
func (r *MongoTransactionRunner) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// InMemoryTransactionRunner сериализует транзакции мьютексом.
// Подходит для тестов: вызывающий обязан выполнять все проверки
// до первой записи, откат не поддерживается.
type InMemoryTransactionRunner struct {
	mu sync.Mutex
}

// NewInMemoryTransactionRunner создает новый in-memory раннер
func NewInMemoryTransactionRunner() *InMemoryTransactionRunner {
	return &InMemoryTransactionRunner{}
}

// WithinTransaction выполняет fn под глобальным мьютексом
func (r *InMemoryTransactionRunner) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
