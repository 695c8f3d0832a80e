package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"product-importer/internal/config"
	"product-importer/internal/models"
	"product-importer/internal/repository"
	"product-importer/internal/webhooks"
)

type ProductsHandler struct {
	repo     *repository.ProductsRepository
	notifier *webhooks.Notifier
	cfg      *config.Config
}

func NewProductsHandler(repo *repository.ProductsRepository, notifier *webhooks.Notifier, cfg *config.Config) *ProductsHandler {
	return &ProductsHandler{
		repo:     repo,
		notifier: notifier,
		cfg:      cfg,
	}
}

// CreateProduct creates a new product
// @Summary Create product
// @Description Create a new product with a unique SKU
// @Tags Products
// @Accept json
// @Produce json
// @Param product body models.CreateProductRequest true "Product data"
// @Success 201 {object} models.ProductResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /products [post]
func (h *ProductsHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	sku := models.NormalizeSKU(req.SKU)
	if _, err := h.repo.GetProductBySKU(sku); err == nil {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: fmt.Sprintf("Product with SKU %s already exists", sku),
				Field:   "sku",
			},
		})
		return
	}

	price := 0.0
	if req.Price != nil {
		if *req.Price < 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "VALIDATION_ERROR",
					Message: "Price must not be negative",
					Field:   "price",
				},
			})
			return
		}
		price = *req.Price
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	product := &models.Product{
		SKU:         sku,
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Active:      active,
	}
	if err := h.repo.CreateProduct(product); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CREATE_FAILED",
				Message: "Failed to create product",
			},
		})
		return
	}

	h.notifier.Notify(models.EventProductCreated, product)

	c.JSON(http.StatusCreated, models.ProductResponse{
		Success: true,
		Data:    product,
	})
}

// GetProducts lists products with filters, ordering and pagination
// @Summary List products
// @Description List products with optional filters, ordering and pagination
// @Tags Products
// @Produce json
// @Param sku query string false "Filter by SKU substring"
// @Param name query string false "Filter by name substring"
// @Param description query string false "Filter by description substring"
// @Param active query bool false "Filter by active flag"
// @Param search query string false "Search across sku, name and description"
// @Param ordering query string false "Ordering field, prefix with - for descending"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} models.ProductListResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /products [get]
func (h *ProductsHandler) GetProducts(c *gin.Context) {
	var req models.ListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = h.cfg.DefaultPageSize
	}
	if req.Limit > h.cfg.MaxPageSize {
		req.Limit = h.cfg.MaxPageSize
	}

	products, total, err := h.repo.GetProducts(&req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to retrieve products",
			},
		})
		return
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	c.JSON(http.StatusOK, models.ProductListResponse{
		Success: true,
		Data:    products,
		Pagination: &models.PaginationInfo{
			Page:        req.Page,
			Limit:       req.Limit,
			Total:       total,
			TotalPages:  totalPages,
			HasNext:     req.Page < totalPages,
			HasPrevious: req.Page > 1,
		},
	})
}

// GetProduct retrieves a single product
// @Summary Get product
// @Description Get a product by ID
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.ProductResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{id} [get]
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	product, err := h.repo.GetProductByID(id)
	if err != nil {
		h.respondNotFoundOrError(c, err, "Product")
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{
		Success: true,
		Data:    product,
	})
}

// UpdateProduct updates an existing product
// @Summary Update product
// @Description Update product fields by ID
// @Tags Products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param product body models.UpdateProductRequest true "Fields to update"
// @Success 200 {object} models.ProductResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{id} [put]
func (h *ProductsHandler) UpdateProduct(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "VALIDATION_ERROR",
					Message: "Price must not be negative",
					Field:   "price",
				},
			})
			return
		}
		updates["price"] = *req.Price
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "No fields to update",
			},
		})
		return
	}

	product, err := h.repo.UpdateProduct(id, updates)
	if err != nil {
		h.respondNotFoundOrError(c, err, "Product")
		return
	}

	h.notifier.Notify(models.EventProductUpdated, product)

	c.JSON(http.StatusOK, models.ProductResponse{
		Success: true,
		Data:    product,
	})
}

// DeleteProduct removes a product
// @Summary Delete product
// @Description Delete a product by ID
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{id} [delete]
func (h *ProductsHandler) DeleteProduct(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	product, err := h.repo.GetProductByID(id)
	if err != nil {
		h.respondNotFoundOrError(c, err, "Product")
		return
	}

	if err := h.repo.DeleteProduct(id); err != nil {
		h.respondNotFoundOrError(c, err, "Product")
		return
	}

	h.notifier.Notify(models.EventProductDeleted, product)

	message := "Product deleted successfully"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: &message,
	})
}

// BulkDeleteProducts removes every product after explicit confirmation
// @Summary Delete all products
// @Description Delete every product. Requires {"confirm": true} in the body.
// @Tags Products
// @Accept json
// @Produce json
// @Param body body models.BulkDeleteProductsRequest true "Confirmation"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /products/bulk-delete [post]
func (h *ProductsHandler) BulkDeleteProducts(c *gin.Context) {
	var req models.BulkDeleteProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Confirm {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "Bulk delete requires confirm: true",
				Field:   "confirm",
			},
		})
		return
	}

	count, err := h.repo.DeleteAllProducts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DELETE_FAILED",
				Message: "Failed to delete products",
			},
		})
		return
	}

	message := fmt.Sprintf("Deleted %d products", count)
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    gin.H{"deletedCount": count},
		Message: &message,
	})
}

func (h *ProductsHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "Invalid product ID",
				Field:   "id",
			},
		})
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProductsHandler) respondNotFoundOrError(c *gin.Context, err error, entity string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: entity + " not found",
			},
		})
		return
	}
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    "FETCH_FAILED",
			Message: "Failed to retrieve " + entity,
		},
	})
}
