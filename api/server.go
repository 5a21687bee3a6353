// Package api предоставляет HTTP интерфейс сервиса.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akriventsev/stockroom/domain"
	"github.com/akriventsev/stockroom/readmodel"
)

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Port            int
	Mode            string
	ShutdownTimeout time.Duration
}

// DefaultServerConfig возвращает конфигурацию по умолчанию
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            3000,
		Mode:            gin.ReleaseMode,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate проверяет корректность конфигурации
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// Server HTTP сервер сервиса
type Server struct {
	config   ServerConfig
	engine   *gin.Engine
	server   *http.Server
	products *ProductController
	orders   *OrderController
	logger   *zap.Logger
}

// NewServer создает новый HTTP сервер
func NewServer(config ServerConfig, products *ProductController, orders *OrderController, logger *zap.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	gin.SetMode(config.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		config:   config,
		engine:   engine,
		products: products,
		orders:   orders,
		logger:   logger,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	products := s.engine.Group("/products")
	{
		products.POST("", s.products.Create)
		products.GET("", s.products.List)
		products.GET("/:id", s.products.Get)
		products.PATCH("/:id/stock", s.products.UpdateStock)
	}

	orders := s.engine.Group("/orders")
	{
		orders.POST("", s.orders.Create)
		orders.GET("", s.orders.List)
		orders.GET("/:id", s.orders.Get)
		orders.PATCH("/:id/status", s.orders.UpdateStatus)
		orders.POST("/:id/cancel", s.orders.Cancel)
	}

	s.engine.GET("/customers/:id/orders", s.orders.ListByCustomer)
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.engine,
	}

	s.logger.Info("http server starting", zap.Int("port", s.config.Port))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown останавливает HTTP сервер
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

// Handler возвращает HTTP обработчик сервера (для тестов)
func (s *Server) Handler() http.Handler {
	return s.engine
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

// respondError преобразует доменную ошибку в HTTP ответ
func respondError(c *gin.Context, err error) {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		c.JSON(statusForCode(domainErr.Code), gin.H{
			"error": domainErr.Message,
			"code":  domainErr.Code,
		})
		return
	}

	if errors.Is(err, readmodel.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": domain.ErrCodeNotFound})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func statusForCode(code string) int {
	switch code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeAlreadyExists, domain.ErrCodeConcurrencyConflict, domain.ErrCodeInvalidTransition:
		return http.StatusConflict
	case domain.ErrCodeInsufficientStock:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
