package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"product-importer/internal/models"
	"product-importer/internal/repository"
)

const (
	deliveryTimeout = 10 * time.Second
	maxReportedBody = 200
	contentTypeJSON = "application/json"
	userAgentHeader = "product-importer-webhooks/1.0"
)

// Payload is the body sent to every subscriber.
type Payload struct {
	EventType string      `json:"event_type"`
	Timestamp float64     `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Notifier delivers events to registered webhooks. Delivery is single-shot
// best effort: one POST per subscriber with a fixed timeout, no retries.
type Notifier struct {
	repo   *repository.WebhooksRepository
	client *http.Client
	logger *logrus.Entry
}

func NewNotifier(repo *repository.WebhooksRepository, logger *logrus.Logger) *Notifier {
	return &Notifier{
		repo:   repo,
		client: &http.Client{Timeout: deliveryTimeout},
		logger: logger.WithField("component", "webhooks"),
	}
}

// Notify fans the event out to every active subscriber for eventType.
// Deliveries run in the background so callers never block on slow targets.
func (n *Notifier) Notify(eventType string, data interface{}) {
	hooks, err := n.repo.GetActiveWebhooksForEvent(eventType)
	if err != nil {
		n.logger.WithError(err).WithField("eventType", eventType).
			Error("Failed to load webhooks for event")
		return
	}
	if len(hooks) == 0 {
		return
	}

	payload := Payload{
		EventType: eventType,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Data:      data,
	}

	for _, hook := range hooks {
		go func(hook models.Webhook) {
			result := n.deliver(context.Background(), hook.URL, payload)
			entry := n.logger.WithFields(logrus.Fields{
				"eventType": eventType,
				"webhookId": hook.ID,
				"url":       hook.URL,
			})
			if result.Status == "success" {
				entry.WithField("responseCode", result.ResponseCode).Info("Webhook delivered")
			} else {
				entry.WithField("error", result.Error).Warn("Webhook delivery failed")
			}
		}(hook)
	}
}

// Test sends a synthetic payload to a single webhook and reports the
// response code, latency and a truncated body.
func (n *Notifier) Test(ctx context.Context, hook *models.Webhook) models.WebhookTestResult {
	payload := Payload{
		EventType: hook.EventType,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Data:      map[string]string{"message": "This is a test webhook"},
	}
	return n.deliver(ctx, hook.URL, payload)
}

func (n *Notifier) deliver(ctx context.Context, url string, payload Payload) models.WebhookTestResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return models.WebhookTestResult{Status: "error", Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.WebhookTestResult{Status: "error", Error: err.Error()}
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("User-Agent", userAgentHeader)

	start := time.Now()
	resp, err := n.client.Do(req)
	elapsedMs := roundMs(time.Since(start))

	if err != nil {
		return models.WebhookTestResult{
			Status:         "error",
			ResponseTimeMs: elapsedMs,
			Error:          err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxReportedBody))

	return models.WebhookTestResult{
		Status:         "success",
		ResponseCode:   resp.StatusCode,
		ResponseTimeMs: elapsedMs,
		ResponseBody:   string(respBody),
	}
}

// roundMs converts a duration to milliseconds with two decimal places.
func roundMs(d time.Duration) float64 {
	ms := float64(d.Microseconds()) / 1000.0
	return float64(int(ms*100+0.5)) / 100
}
