package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-importer/internal/models"
)

func TestCreateWebhook(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/webhooks", models.CreateWebhookRequest{
		URL:       "http://example.com/hook",
		EventType: models.EventProductCreated,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.WebhookResponse
	decodeJSON(t, w, &resp)
	require.NotNil(t, resp.Data)
	assert.True(t, resp.Data.IsActive)
}

func TestCreateWebhookRejectsUnknownEvent(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/webhooks", models.CreateWebhookRequest{
		URL:       "http://example.com/hook",
		EventType: "product_exploded",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	decodeJSON(t, w, &resp)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "eventType", resp.Error.Field)
}

func TestCreateWebhookRejectsBadURL(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/webhooks", models.CreateWebhookRequest{
		URL:       "not-a-url",
		EventType: models.EventProductCreated,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateAndDeleteWebhook(t *testing.T) {
	f := newFixture(t)

	hook := &models.Webhook{URL: "http://example.com/hook", EventType: models.EventProductCreated, IsActive: true}
	require.NoError(t, f.webhooks.CreateWebhook(hook))

	inactive := false
	w := f.request(t, http.MethodPut, "/api/v1/webhooks/"+hook.ID.String(), models.UpdateWebhookRequest{
		IsActive: &inactive,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.WebhookResponse
	decodeJSON(t, w, &resp)
	assert.False(t, resp.Data.IsActive)

	w = f.request(t, http.MethodDelete, "/api/v1/webhooks/"+hook.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.request(t, http.MethodGet, "/api/v1/webhooks/"+hook.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookNotFound(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodGet, "/api/v1/webhooks/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerTestDelivery(t *testing.T) {
	f := newFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	hook := &models.Webhook{URL: server.URL, EventType: models.EventProductCreated, IsActive: true}
	require.NoError(t, f.webhooks.CreateWebhook(hook))

	w := f.request(t, http.MethodPost, "/api/v1/webhooks/"+hook.ID.String()+"/test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"success"`)
	assert.Contains(t, w.Body.String(), `"responseCode":204`)
}
