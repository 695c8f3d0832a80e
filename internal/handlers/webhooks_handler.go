package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"product-importer/internal/models"
	"product-importer/internal/repository"
	"product-importer/internal/webhooks"
)

type WebhooksHandler struct {
	repo     *repository.WebhooksRepository
	notifier *webhooks.Notifier
}

func NewWebhooksHandler(repo *repository.WebhooksRepository, notifier *webhooks.Notifier) *WebhooksHandler {
	return &WebhooksHandler{
		repo:     repo,
		notifier: notifier,
	}
}

// CreateWebhook registers a new webhook
// @Summary Create webhook
// @Description Register a webhook URL for one event type
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param webhook body models.CreateWebhookRequest true "Webhook data"
// @Success 201 {object} models.WebhookResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /webhooks [post]
func (h *WebhooksHandler) CreateWebhook(c *gin.Context) {
	var req models.CreateWebhookRequest
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

	if !models.ValidWebhookEvent(req.EventType) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: fmt.Sprintf("Unknown event type, expected one of: %s", strings.Join(models.WebhookEvents, ", ")),
				Field:   "eventType",
			},
		})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	webhook := &models.Webhook{
		URL:       req.URL,
		EventType: req.EventType,
		IsActive:  isActive,
	}
	if err := h.repo.CreateWebhook(webhook); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CREATE_FAILED",
				Message: "Failed to create webhook",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, models.WebhookResponse{
		Success: true,
		Data:    webhook,
	})
}

// GetWebhooks lists all registered webhooks
// @Summary List webhooks
// @Tags Webhooks
// @Produce json
// @Success 200 {object} models.WebhookListResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /webhooks [get]
func (h *WebhooksHandler) GetWebhooks(c *gin.Context) {
	hooks, err := h.repo.GetWebhooks()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to retrieve webhooks",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.WebhookListResponse{
		Success: true,
		Data:    hooks,
	})
}

// GetWebhook retrieves a single webhook
// @Summary Get webhook
// @Tags Webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} models.WebhookResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /webhooks/{id} [get]
func (h *WebhooksHandler) GetWebhook(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	webhook, err := h.repo.GetWebhookByID(id)
	if err != nil {
		h.respondNotFoundOrError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.WebhookResponse{
		Success: true,
		Data:    webhook,
	})
}

// UpdateWebhook updates an existing webhook
// @Summary Update webhook
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param id path string true "Webhook ID"
// @Param webhook body models.UpdateWebhookRequest true "Fields to update"
// @Success 200 {object} models.WebhookResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /webhooks/{id} [put]
func (h *WebhooksHandler) UpdateWebhook(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req models.UpdateWebhookRequest
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
	if req.URL != nil {
		updates["url"] = *req.URL
	}
	if req.EventType != nil {
		if !models.ValidWebhookEvent(*req.EventType) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "VALIDATION_ERROR",
					Message: fmt.Sprintf("Unknown event type, expected one of: %s", strings.Join(models.WebhookEvents, ", ")),
					Field:   "eventType",
				},
			})
			return
		}
		updates["event_type"] = *req.EventType
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
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

	webhook, err := h.repo.UpdateWebhook(id, updates)
	if err != nil {
		h.respondNotFoundOrError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.WebhookResponse{
		Success: true,
		Data:    webhook,
	})
}

// DeleteWebhook removes a webhook
// @Summary Delete webhook
// @Tags Webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /webhooks/{id} [delete]
func (h *WebhooksHandler) DeleteWebhook(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.repo.DeleteWebhook(id); err != nil {
		h.respondNotFoundOrError(c, err)
		return
	}

	message := "Webhook deleted successfully"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: &message,
	})
}

// TestWebhook sends a test delivery to a webhook and reports the outcome
// @Summary Test webhook
// @Description Send a test payload to the webhook URL and report response code, latency and body
// @Tags Webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /webhooks/{id}/test [post]
func (h *WebhooksHandler) TestWebhook(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	webhook, err := h.repo.GetWebhookByID(id)
	if err != nil {
		h.respondNotFoundOrError(c, err)
		return
	}

	result := h.notifier.Test(c.Request.Context(), webhook)

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    result,
	})
}

func (h *WebhooksHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "Invalid webhook ID",
				Field:   "id",
			},
		})
		return uuid.Nil, false
	}
	return id, true
}

func (h *WebhooksHandler) respondNotFoundOrError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: "Webhook not found",
			},
		})
		return
	}
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    "FETCH_FAILED",
			Message: "Failed to retrieve webhook",
		},
	})
}
