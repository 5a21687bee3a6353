package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CommandHandlerFunc обработчик команды
type CommandHandlerFunc func(ctx context.Context, cmd Command) (interface{}, error)

// CommandMiddleware оборачивает обработчик команды
type CommandMiddleware func(next CommandHandlerFunc) CommandHandlerFunc

// CommandBus маршрутизирует команды к зарегистрированным обработчикам.
// Диспетчеризация статическая: незарегистрированный тип команды это ошибка.
type CommandBus struct {
	mu         sync.RWMutex
	handlers   map[string]CommandHandlerFunc
	middleware []CommandMiddleware
}

// NewCommandBus создает новый командный bus
func NewCommandBus(middleware ...CommandMiddleware) *CommandBus {
	return &CommandBus{
		handlers:   make(map[string]CommandHandlerFunc),
		middleware: middleware,
	}
}

// Register регистрирует обработчик для типа команды
func (b *CommandBus) Register(commandType string, handler CommandHandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[commandType]; exists {
		return fmt.Errorf("handler already registered for command %s", commandType)
	}

	wrapped := handler
	for i := len(b.middleware) - 1; i >= 0; i-- {
		wrapped = b.middleware[i](wrapped)
	}
	b.handlers[commandType] = wrapped
	return nil
}

// Dispatch выполняет команду через зарегистрированный обработчик
func (b *CommandBus) Dispatch(ctx context.Context, cmd Command) (interface{}, error) {
	b.mu.RLock()
	handler, exists := b.handlers[cmd.CommandType()]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no handler registered for command %s", cmd.CommandType())
	}
	return handler(ctx, cmd)
}

// LoggingMiddleware логирует выполнение команд
func LoggingMiddleware(logger *zap.Logger) CommandMiddleware {
	return func(next CommandHandlerFunc) CommandHandlerFunc {
		return func(ctx context.Context, cmd Command) (interface{}, error) {
			start := time.Now()
			result, err := next(ctx, cmd)
			fields := []zap.Field{
				zap.String("command", cmd.CommandType()),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("command failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("command handled", fields...)
			}
			return result, err
		}
	}
}

// RecoveryMiddleware преобразует панику обработчика в ошибку
func RecoveryMiddleware(logger *zap.Logger) CommandMiddleware {
	return func(next CommandHandlerFunc) CommandHandlerFunc {
		return func(ctx context.Context, cmd Command) (result interface{}, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("command handler panicked",
						zap.String("command", cmd.CommandType()),
						zap.Any("panic", r))
					err = fmt.Errorf("command %s panicked: %v", cmd.CommandType(), r)
				}
			}()
			return next(ctx, cmd)
		}
	}
}

// TracingMiddleware создает span на каждую команду
func TracingMiddleware(tracer trace.Tracer) CommandMiddleware {
	return func(next CommandHandlerFunc) CommandHandlerFunc {
		return func(ctx context.Context, cmd Command) (interface{}, error) {
			ctx, span := tracer.Start(ctx, "command."+cmd.CommandType(),
				trace.WithAttributes(attribute.String("command.type", cmd.CommandType())))
			defer span.End()

			result, err := next(ctx, cmd)
			if err != nil {
				span.RecordError(err)
			}
			return result, err
		}
	}
}
