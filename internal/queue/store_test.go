package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleet-alert-service/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	queue   []models.Alert
	fail    bool
	setCall int
}

func (c *memoryCache) GetQueue(ctx context.Context) ([]models.Alert, error) {
	if c.fail {
		return nil, errors.New("cache unavailable")
	}
	return c.queue, nil
}

func (c *memoryCache) SetQueue(ctx context.Context, alerts []models.Alert) error {
	if c.fail {
		return errors.New("cache unavailable")
	}
	c.setCall++
	c.queue = alerts
	return nil
}

func newTestStore(cache Cache) *Store {
	return NewStore(cache, 5*time.Minute, 500)
}

func TestStoreMergeAndPersistReportsFreshAlerts(t *testing.T) {
	cache := &memoryCache{}
	store := newTestStore(cache)

	first := alertAt("VH-001", models.AlertSpeedViolation, t0)
	fresh, err := store.MergeAndPersist(context.Background(), []models.Alert{first})
	require.NoError(t, err)
	require.Len(t, fresh, 1)

	// Same detection again: nothing new enters the queue.
	fresh, err = store.MergeAndPersist(context.Background(), []models.Alert{first})
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.Equal(t, 1, store.Size())
}

func TestStoreDuplicateWithinWindowSupersedes(t *testing.T) {
	cache := &memoryCache{}
	store := newTestStore(cache)

	_, err := store.MergeAndPersist(context.Background(),
		[]models.Alert{alertAt("VH-001", models.AlertSpeedViolation, t0)})
	require.NoError(t, err)

	// A re-detection 3 minutes later replaces the stored entry: the queue
	// still holds one alert and the newer detection is the surviving one.
	redetected := alertAt("VH-001", models.AlertSpeedViolation, t0.Add(3*time.Minute))
	fresh, err := store.MergeAndPersist(context.Background(), []models.Alert{redetected})
	require.NoError(t, err)

	assert.Equal(t, 1, store.Size())
	require.Len(t, fresh, 1)
	assert.Equal(t, redetected.ID, fresh[0].ID)
}

func TestStorePersistsWholeQueueEachMerge(t *testing.T) {
	cache := &memoryCache{}
	store := newTestStore(cache)

	_, err := store.MergeAndPersist(context.Background(),
		[]models.Alert{alertAt("VH-001", models.AlertSpeedViolation, t0)})
	require.NoError(t, err)
	_, err = store.MergeAndPersist(context.Background(),
		[]models.Alert{alertAt("VH-002", models.AlertPanicButton, t0)})
	require.NoError(t, err)

	assert.Equal(t, 2, cache.setCall)
	assert.Len(t, cache.queue, 2)
}

func TestStoreActiveExcludesPromoted(t *testing.T) {
	cache := &memoryCache{}
	store := newTestStore(cache)

	saved := alertAt("VH-001", models.AlertSpeedViolation, t0)
	saved.SavedToDatabase = true
	unsaved := alertAt("VH-002", models.AlertPanicButton, t0)

	cache.queue = []models.Alert{saved, unsaved}
	require.NoError(t, store.Load(context.Background()))

	active := store.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "VH-002", active[0].VehicleID)
}

func TestStoreMarkSent(t *testing.T) {
	cache := &memoryCache{}
	store := newTestStore(cache)

	alert := alertAt("VH-001", models.AlertSpeedViolation, t0)
	_, err := store.MergeAndPersist(context.Background(), []models.Alert{alert})
	require.NoError(t, err)

	sentAt := t0.Add(time.Minute)
	require.NoError(t, store.MarkSent(context.Background(), alert.ID, "operator1", sentAt))

	got, ok := store.Get(alert.ID)
	require.True(t, ok)
	assert.True(t, got.Sent)
	assert.Equal(t, "operator1", got.SentBy)

	assert.Error(t, store.MarkSent(context.Background(), "missing", "operator1", sentAt))
}

func TestStoreMarkSavedPurgesFromActiveView(t *testing.T) {
	cache := &memoryCache{}
	store := newTestStore(cache)

	alert := alertAt("VH-001", models.AlertSpeedViolation, t0)
	other := alertAt("VH-002", models.AlertPanicButton, t0)
	_, err := store.MergeAndPersist(context.Background(), []models.Alert{alert, other})
	require.NoError(t, err)

	require.NoError(t, store.MarkSaved(context.Background(), alert.ID, t0.Add(time.Minute)))

	active := store.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "VH-002", active[0].VehicleID)

	_, ok := store.Get(alert.ID)
	assert.False(t, ok)

	assert.Error(t, store.MarkSaved(context.Background(), "missing", t0))
}

func TestStorePromotedAlertDoesNotResurface(t *testing.T) {
	cache := &memoryCache{}
	store := newTestStore(cache)

	alert := alertAt("VH-001", models.AlertSpeedViolation, t0)
	_, err := store.MergeAndPersist(context.Background(), []models.Alert{alert})
	require.NoError(t, err)
	require.NoError(t, store.MarkSaved(context.Background(), alert.ID, t0.Add(time.Minute)))

	// A later cycle re-detects the same condition outside the dedup window.
	redetected := alertAt("VH-001", models.AlertSpeedViolation, t0.Add(20*time.Minute))
	fresh, err := store.MergeAndPersist(context.Background(), []models.Alert{redetected})
	require.NoError(t, err)

	// The fresh alert is a new detection, not the resurrected SavedAlert.
	require.Len(t, fresh, 1)
	assert.Equal(t, redetected.ID, fresh[0].ID)
	assert.NotEqual(t, alert.ID, fresh[0].ID)

	active := store.Active()
	require.Len(t, active, 1)
	assert.False(t, active[0].SavedToDatabase)
}

func TestStoreCapsQueueSize(t *testing.T) {
	cache := &memoryCache{}
	store := NewStore(cache, 5*time.Minute, 3)

	var incoming []models.Alert
	for _, id := range []string{"A", "B", "C", "D", "E"} {
		incoming = append(incoming, alertAt("VH-"+id, models.AlertSpeedViolation, t0))
	}

	_, err := store.MergeAndPersist(context.Background(), incoming)
	require.NoError(t, err)

	assert.Equal(t, 3, store.Size())
}
