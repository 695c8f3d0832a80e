package models

import (
	"time"

	"github.com/google/uuid"
)

// Webhook event names. Product events fire on direct API writes, the
// bulk_import events on pipeline lifecycle transitions.
const (
	EventProductCreated      = "product_created"
	EventProductUpdated      = "product_updated"
	EventProductDeleted      = "product_deleted"
	EventBulkImportStarted   = "bulk_import_started"
	EventBulkImportCompleted = "bulk_import_completed"
	EventBulkImportFailed    = "bulk_import_failed"
)

// WebhookEvents lists every event type a webhook may subscribe to.
var WebhookEvents = []string{
	EventProductCreated,
	EventProductUpdated,
	EventProductDeleted,
	EventBulkImportStarted,
	EventBulkImportCompleted,
	EventBulkImportFailed,
}

// ValidWebhookEvent reports whether eventType is a known event name.
func ValidWebhookEvent(eventType string) bool {
	for _, e := range WebhookEvents {
		if e == eventType {
			return true
		}
	}
	return false
}

// Webhook is a registered outbound subscriber for one event type.
type Webhook struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	URL       string    `json:"url" gorm:"size:500;not null"`
	EventType string    `json:"eventType" gorm:"size:50;not null;index"`
	IsActive  bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for the Webhook model
func (Webhook) TableName() string {
	return "webhooks"
}

// CreateWebhookRequest registers a new subscriber
type CreateWebhookRequest struct {
	URL       string `json:"url" binding:"required,url"`
	EventType string `json:"eventType" binding:"required"`
	IsActive  *bool  `json:"isActive"`
}

// UpdateWebhookRequest mutates an existing subscriber
type UpdateWebhookRequest struct {
	URL       *string `json:"url,omitempty" binding:"omitempty,url"`
	EventType *string `json:"eventType,omitempty"`
	IsActive  *bool   `json:"isActive,omitempty"`
}

// WebhookResponse wraps a single webhook representation
type WebhookResponse struct {
	Success bool     `json:"success"`
	Data    *Webhook `json:"data"`
	Message *string  `json:"message,omitempty"`
}

// WebhookListResponse wraps a webhook listing
type WebhookListResponse struct {
	Success bool      `json:"success"`
	Data    []Webhook `json:"data"`
}

// WebhookTestResult reports the outcome of a manual test delivery.
type WebhookTestResult struct {
	Status         string  `json:"status"` // "success" or "error"
	ResponseCode   int     `json:"responseCode,omitempty"`
	ResponseTimeMs float64 `json:"responseTime"`
	ResponseBody   string  `json:"responseBody,omitempty"`
	Error          string  `json:"error,omitempty"`
}
