package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"product-importer/internal/models"
)

type WebhooksRepository struct {
	db *gorm.DB
}

func NewWebhooksRepository(db *gorm.DB) *WebhooksRepository {
	return &WebhooksRepository{db: db}
}

// CreateWebhook registers a new webhook
func (r *WebhooksRepository) CreateWebhook(webhook *models.Webhook) error {
	if webhook.ID == uuid.Nil {
		webhook.ID = uuid.New()
	}
	webhook.CreatedAt = time.Now()
	webhook.UpdatedAt = time.Now()
	return r.db.Create(webhook).Error
}

// GetWebhookByID retrieves a webhook by ID
func (r *WebhooksRepository) GetWebhookByID(id uuid.UUID) (*models.Webhook, error) {
	var webhook models.Webhook
	if err := r.db.First(&webhook, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &webhook, nil
}

// GetWebhooks lists all registered webhooks
func (r *WebhooksRepository) GetWebhooks() ([]models.Webhook, error) {
	var webhooks []models.Webhook
	if err := r.db.Order("created_at DESC").Find(&webhooks).Error; err != nil {
		return nil, err
	}
	return webhooks, nil
}

// GetActiveWebhooksForEvent lists active webhooks subscribed to eventType.
func (r *WebhooksRepository) GetActiveWebhooksForEvent(eventType string) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	err := r.db.Where("event_type = ? AND is_active = ?", eventType, true).
		Find(&webhooks).Error
	if err != nil {
		return nil, err
	}
	return webhooks, nil
}

// UpdateWebhook applies the given field updates to a webhook
func (r *WebhooksRepository) UpdateWebhook(id uuid.UUID, updates map[string]interface{}) (*models.Webhook, error) {
	updates["updated_at"] = time.Now()
	result := r.db.Model(&models.Webhook{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var webhook models.Webhook
	if err := r.db.First(&webhook, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &webhook, nil
}

// DeleteWebhook removes a webhook by ID
func (r *WebhooksRepository) DeleteWebhook(id uuid.UUID) error {
	result := r.db.Delete(&models.Webhook{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
