package config

import (
	"testing"
	"time"

	"fleet-alert-service/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, float64(80), cfg.SpeedLimitKMH)
	assert.Equal(t, 5*time.Minute, cfg.DedupWindow)
	assert.Equal(t, 500, cfg.MaxQueueSize)
	assert.Equal(t, 25, cfg.PostgresMaxOpenConns)
	assert.Equal(t, 5, cfg.PostgresMaxIdleConns)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)

	require.Len(t, cfg.Retention, 4)
	assert.Equal(t, 7, cfg.Retention[models.CategoryResolvedAlerts].RetentionDays)
	assert.Equal(t, 30, cfg.Retention[models.CategoryActiveHistory].RetentionDays)
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("SPEED_LIMIT_KMH", "100")
	t.Setenv("DEDUP_WINDOW", "2m")
	t.Setenv("POSTGRESQL_MAX_OPEN_CONNS", "50")
	t.Setenv("CONNECT_TIMEOUT", "3s")
	t.Setenv("RETENTION_RESOLVED_DAYS", "14")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, float64(100), cfg.SpeedLimitKMH)
	assert.Equal(t, 2*time.Minute, cfg.DedupWindow)
	assert.Equal(t, 50, cfg.PostgresMaxOpenConns)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 14, cfg.Retention[models.CategoryResolvedAlerts].RetentionDays)
}

func TestLoadIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("SPEED_LIMIT_KMH", "fast")
	t.Setenv("DEDUP_WINDOW", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, float64(80), cfg.SpeedLimitKMH)
	assert.Equal(t, 5*time.Minute, cfg.DedupWindow)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"negative queue size", "MAX_QUEUE_SIZE", "-5"},
		{"zero pool size", "POSTGRESQL_MAX_OPEN_CONNS", "0"},
		{"negative connect timeout", "CONNECT_TIMEOUT", "-1s"},
		{"zero retention days", "RETENTION_ACTIVE_DAYS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
