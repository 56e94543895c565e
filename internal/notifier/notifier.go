package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fleet-alert-service/pkg/models"
)

// Notifier receives newly classified alerts for signaling. Implementations
// own their own suppression policy; callers treat every call as best-effort.
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
}

var severityRank = map[models.Severity]int{
	models.SeverityLow:      0,
	models.SeverityMedium:   1,
	models.SeverityHigh:     2,
	models.SeverityCritical: 3,
}

// WebhookNotifier posts alerts to the tone-generation service. Alerts below
// the configured minimum severity are suppressed here, not by the caller.
type WebhookNotifier struct {
	url         string
	minSeverity models.Severity
	client      *http.Client
}

func NewWebhookNotifier(url string, minSeverity models.Severity) *WebhookNotifier {
	if _, ok := severityRank[minSeverity]; !ok {
		minSeverity = models.SeverityLow
	}
	return &WebhookNotifier{
		url:         url,
		minSeverity: minSeverity,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, alert models.Alert) error {
	if severityRank[alert.Severity] < severityRank[n.minSeverity] {
		return nil
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notifier returned status %d", resp.StatusCode)
	}
	return nil
}
