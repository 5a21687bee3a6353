// Сервис складского учета: event sourcing на стороне записи,
// денормализованные проекции на стороне чтения.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/akriventsev/stockroom/adapters/messagebus"
	"github.com/akriventsev/stockroom/adapters/repository"
	"github.com/akriventsev/stockroom/api"
	"github.com/akriventsev/stockroom/application"
	"github.com/akriventsev/stockroom/config"
	"github.com/akriventsev/stockroom/domain"
	"github.com/akriventsev/stockroom/events"
	"github.com/akriventsev/stockroom/eventsourcing"
	"github.com/akriventsev/stockroom/readmodel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Клиенты БД создаются один раз и передаются во все хранилища
	writeClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoWriteURI))
	if err != nil {
		return err
	}
	defer writeClient.Disconnect(context.Background())

	readClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoReadURI))
	if err != nil {
		return err
	}
	defer readClient.Disconnect(context.Background())

	deserializer := domain.NewEventDeserializer()

	var eventStore eventsourcing.EventStore
	switch cfg.EventStoreDriver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PostgresURI)
		if err != nil {
			return err
		}
		defer pool.Close()

		store, err := eventsourcing.NewPostgresEventStore(pool, cfg.PostgresEventStore, deserializer, logger)
		if err != nil {
			return err
		}
		if err := store.Initialize(ctx); err != nil {
			return err
		}
		eventStore = store
	default:
		store, err := eventsourcing.NewMongoEventStore(writeClient, cfg.EventStore, deserializer, logger)
		if err != nil {
			return err
		}
		if err := store.Initialize(ctx); err != nil {
			return err
		}
		eventStore = store
	}

	orderStore, err := repository.NewMongoOrderStore(writeClient, cfg.OrderStore, logger)
	if err != nil {
		return err
	}
	if err := orderStore.Initialize(ctx); err != nil {
		return err
	}

	productReads, err := readmodel.NewMongoProductReadRepository(readClient, cfg.ReadModel)
	if err != nil {
		return err
	}
	orderReads, err := readmodel.NewMongoOrderReadRepository(readClient, cfg.ReadModel)
	if err != nil {
		return err
	}
	if err := orderReads.Initialize(ctx); err != nil {
		return err
	}

	bus, err := messagebus.NewMessageBus(cfg.Broker, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	publisher := events.NewBusPublisher(bus, domain.RoutingKey, logger).
		WithRetry(events.DefaultRetryConfig())

	txRunner := repository.NewMongoTransactionRunner(writeClient)

	commandBus := application.NewCommandBus(
		application.RecoveryMiddleware(logger),
		application.LoggingMiddleware(logger),
		application.TracingMiddleware(otel.Tracer("stockroom/commands")),
	)

	productHandler := application.NewProductHandler(eventStore, publisher, logger)
	if err := productHandler.RegisterHandlers(commandBus); err != nil {
		return err
	}

	orderService := application.NewOrderService(eventStore, orderStore, txRunner, publisher, logger)
	if err := orderService.RegisterHandlers(commandBus); err != nil {
		return err
	}

	productDenormalizer := readmodel.NewProductDenormalizer(productReads, logger)
	orderDenormalizer := readmodel.NewOrderDenormalizer(orderReads, logger)

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()

		dedup := readmodel.NewRedisDedupStore(redisClient, cfg.RedisDedup)
		productDenormalizer.WithDedup(dedup)
		orderDenormalizer.WithDedup(dedup)
	}

	consumer := readmodel.NewConsumer(bus, cfg.Consumer, productDenormalizer, orderDenormalizer, logger)
	if err := consumer.Start(ctx); err != nil {
		return err
	}

	server, err := api.NewServer(cfg.Server,
		api.NewProductController(commandBus, productReads),
		api.NewOrderController(commandBus, orderReads),
		logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	return server.Shutdown(context.Background())
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}
