package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fleet-alert-service/pkg/logger"
	"fleet-alert-service/pkg/models"
)

// Source polls the upstream tracking API for the fleet's current snapshots.
// A failed fetch degrades to the last good snapshot set instead of blocking
// the cycle; only the very first fetch can surface a hard error.
type Source struct {
	url    string
	client *http.Client

	mu       sync.Mutex
	lastGood []models.TelemetrySnapshot
}

func NewSource(url string, timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Source{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *Source) Fetch(ctx context.Context) ([]models.TelemetrySnapshot, models.FetchStatus, error) {
	snapshots, err := s.fetch(ctx)
	if err != nil {
		s.mu.Lock()
		fallback := s.lastGood
		s.mu.Unlock()

		if fallback == nil {
			return nil, models.FetchError, err
		}

		logger.Warn("Telemetry fetch failed, serving stale snapshots",
			logger.Int("snapshots", len(fallback)), logger.Err(err))
		return fallback, models.FetchDegraded, nil
	}

	s.mu.Lock()
	s.lastGood = snapshots
	s.mu.Unlock()
	return snapshots, models.FetchOK, nil
}

func (s *Source) fetch(ctx context.Context) ([]models.TelemetrySnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telemetry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telemetry API returned status %d", resp.StatusCode)
	}

	var snapshots []models.TelemetrySnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshots); err != nil {
		return nil, fmt.Errorf("failed to decode telemetry response: %w", err)
	}

	return snapshots, nil
}
