package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/akriventsev/stockroom/application"
	"github.com/akriventsev/stockroom/readmodel"
)

// ProductController обрабатывает HTTP запросы продуктов.
// Запись идет через командный bus, чтение из eventually consistent проекции.
type ProductController struct {
	bus    *application.CommandBus
	reader readmodel.ProductReadRepository
}

// NewProductController создает новый контроллер продуктов
func NewProductController(bus *application.CommandBus, reader readmodel.ProductReadRepository) *ProductController {
	return &ProductController{bus: bus, reader: reader}
}

type createProductRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int64   `json:"stock"`
}

type updateStockRequest struct {
	Quantity int64 `json:"quantity" binding:"required"`
}

// Create обрабатывает POST /products
func (ctrl *ProductController) Create(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	productID := req.ID
	if productID == "" {
		productID = uuid.NewString()
	}

	if _, err := ctrl.bus.Dispatch(c.Request.Context(), application.CreateProductCommand{
		ProductID:   productID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": productID})
}

// UpdateStock обрабатывает PATCH /products/:id/stock
func (ctrl *ProductController) UpdateStock(c *gin.Context) {
	var req updateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := ctrl.bus.Dispatch(c.Request.Context(), application.UpdateStockCommand{
		ProductID: c.Param("id"),
		Quantity:  req.Quantity,
	}); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Get обрабатывает GET /products/:id
func (ctrl *ProductController) Get(c *gin.Context) {
	view, err := ctrl.reader.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// List обрабатывает GET /products
func (ctrl *ProductController) List(c *gin.Context) {
	offset, limit := pagination(c)
	views, err := ctrl.reader.List(c.Request.Context(), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if views == nil {
		views = []*readmodel.ProductView{}
	}
	c.JSON(http.StatusOK, views)
}

func pagination(c *gin.Context) (offset, limit int64) {
	offset, _ = strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)
	limit, _ = strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}
