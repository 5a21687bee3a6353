package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akriventsev/stockroom/application"
	"github.com/akriventsev/stockroom/domain"
	"github.com/akriventsev/stockroom/readmodel"
)

// OrderController обрабатывает HTTP запросы заказов
type OrderController struct {
	bus    *application.CommandBus
	reader readmodel.OrderReadRepository
}

// NewOrderController создает новый контроллер заказов
func NewOrderController(bus *application.CommandBus, reader readmodel.OrderReadRepository) *OrderController {
	return &OrderController{bus: bus, reader: reader}
}

type createOrderRequest struct {
	CustomerID string                   `json:"customerId" binding:"required"`
	Products   []createOrderLineRequest `json:"products" binding:"required"`
}

type createOrderLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Create обрабатывает POST /orders
func (ctrl *OrderController) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lines := make([]domain.OrderLine, len(req.Products))
	for i, line := range req.Products {
		lines[i] = domain.OrderLine{ProductID: line.ProductID, Quantity: line.Quantity}
	}

	result, err := ctrl.bus.Dispatch(c.Request.Context(), application.CreateOrderCommand{
		CustomerID: req.CustomerID,
		Lines:      lines,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Get обрабатывает GET /orders/:id
func (ctrl *OrderController) Get(c *gin.Context) {
	view, err := ctrl.reader.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateStatus обрабатывает PATCH /orders/:id/status
func (ctrl *OrderController) UpdateStatus(c *gin.Context) {
	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := ctrl.bus.Dispatch(c.Request.Context(), application.UpdateOrderStatusCommand{
		OrderID: c.Param("id"),
		Status:  domain.OrderStatus(req.Status),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Cancel обрабатывает POST /orders/:id/cancel
func (ctrl *OrderController) Cancel(c *gin.Context) {
	result, err := ctrl.bus.Dispatch(c.Request.Context(), application.CancelOrderCommand{
		OrderID: c.Param("id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// List обрабатывает GET /orders?customerId=...
func (ctrl *OrderController) List(c *gin.Context) {
	customerID := c.Query("customerId")
	if customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customerId query parameter is required"})
		return
	}
	ctrl.listForCustomer(c, customerID)
}

// ListByCustomer обрабатывает GET /customers/:id/orders
func (ctrl *OrderController) ListByCustomer(c *gin.Context) {
	ctrl.listForCustomer(c, c.Param("id"))
}

func (ctrl *OrderController) listForCustomer(c *gin.Context, customerID string) {
	offset, limit := pagination(c)
	views, err := ctrl.reader.ListByCustomer(c.Request.Context(), customerID, offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if views == nil {
		views = []*readmodel.OrderView{}
	}
	c.JSON(http.StatusOK, views)
}
