package readmodel

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/akriventsev/stockroom/adapters/messagebus"
)

// ConsumerConfig конфигурация подписок денормализаторов
type ConsumerConfig struct {
	ProductQueue   string
	ProductPattern string
	OrderQueue     string
	OrderPattern   string
}

// DefaultConsumerConfig возвращает конфигурацию по умолчанию
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		ProductQueue:   "readmodel.products",
		ProductPattern: "product.#",
		OrderQueue:     "readmodel.orders",
		OrderPattern:   "order.#",
	}
}

// Consumer подключает денормализаторы к шине сообщений.
// Каждый денормализатор получает свою durable очередь: доставка
// at-least-once, идемпотентность на стороне проекций.
type Consumer struct {
	bus      messagebus.MessageBus
	config   ConsumerConfig
	products *ProductDenormalizer
	orders   *OrderDenormalizer
	logger   *zap.Logger
}

// NewConsumer создает новый потребитель событий проекций
func NewConsumer(
	bus messagebus.MessageBus,
	config ConsumerConfig,
	products *ProductDenormalizer,
	orders *OrderDenormalizer,
	logger *zap.Logger,
) *Consumer {
	return &Consumer{
		bus:      bus,
		config:   config,
		products: products,
		orders:   orders,
		logger:   logger,
	}
}

// Start подписывает денормализаторы на события
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.bus.Subscribe(ctx, c.config.ProductPattern, c.config.ProductQueue, c.products.Handle); err != nil {
		return fmt.Errorf("failed to subscribe product denormalizer: %w", err)
	}
	if err := c.bus.Subscribe(ctx, c.config.OrderPattern, c.config.OrderQueue, c.orders.Handle); err != nil {
		return fmt.Errorf("failed to subscribe order denormalizer: %w", err)
	}

	c.logger.Info("read model consumers started",
		zap.String("product_queue", c.config.ProductQueue),
		zap.String("order_queue", c.config.OrderQueue))
	return nil
}
