package queue

import (
	"fmt"
	"testing"
	"time"

	"fleet-alert-service/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const window = 5 * time.Minute

var t0 = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func alertAt(vehicleID string, alertType models.AlertType, at time.Time) models.Alert {
	return models.Alert{
		ID:         models.AlertID(vehicleID, alertType, at),
		VehicleID:  vehicleID,
		Type:       alertType,
		Severity:   models.SeverityCritical,
		DetectedAt: at,
	}
}

func TestMergeCollapsesDuplicatesWithinWindow(t *testing.T) {
	existing := []models.Alert{alertAt("VH-001", models.AlertSpeedViolation, t0)}
	incoming := []models.Alert{alertAt("VH-001", models.AlertSpeedViolation, t0.Add(3*time.Minute))}

	merged := Merge(incoming, existing, window)

	require.Len(t, merged, 1)
	// The fresh detection is first in the concatenated order and wins.
	assert.Equal(t, t0.Add(3*time.Minute), merged[0].DetectedAt)
}

func TestMergeKeepsRecurrencesOutsideWindow(t *testing.T) {
	existing := []models.Alert{alertAt("VH-001", models.AlertSpeedViolation, t0)}
	incoming := []models.Alert{alertAt("VH-001", models.AlertSpeedViolation, t0.Add(10*time.Minute))}

	merged := Merge(incoming, existing, window)

	assert.Len(t, merged, 2)
}

func TestMergeSixMinutesApartBothSurvive(t *testing.T) {
	existing := []models.Alert{alertAt("VH-001", models.AlertPanicButton, t0)}
	incoming := []models.Alert{alertAt("VH-001", models.AlertPanicButton, t0.Add(6*time.Minute))}

	merged := Merge(incoming, existing, window)

	assert.Len(t, merged, 2)
}

func TestMergeDistinguishesVehicleAndType(t *testing.T) {
	existing := []models.Alert{alertAt("VH-001", models.AlertSpeedViolation, t0)}
	incoming := []models.Alert{
		alertAt("VH-002", models.AlertSpeedViolation, t0.Add(time.Minute)),
		alertAt("VH-001", models.AlertPanicButton, t0.Add(time.Minute)),
	}

	merged := Merge(incoming, existing, window)

	assert.Len(t, merged, 3)
}

func TestMergePreservesAcknowledgedDuplicate(t *testing.T) {
	sentAt := t0.Add(time.Minute)
	acknowledged := alertAt("VH-001", models.AlertSpeedViolation, t0)
	acknowledged.Sent = true
	acknowledged.SentAt = &sentAt
	acknowledged.SentBy = "operator1"

	incoming := []models.Alert{alertAt("VH-001", models.AlertSpeedViolation, t0.Add(2*time.Minute))}

	merged := Merge(incoming, []models.Alert{acknowledged}, window)

	require.Len(t, merged, 1)
	assert.True(t, merged[0].Sent)
	assert.Equal(t, "operator1", merged[0].SentBy)
}

func TestMergeNewAlertsComeFirst(t *testing.T) {
	existing := []models.Alert{alertAt("VH-001", models.AlertSpeedViolation, t0)}
	incoming := []models.Alert{alertAt("VH-002", models.AlertPanicButton, t0.Add(time.Minute))}

	merged := Merge(incoming, existing, window)

	require.Len(t, merged, 2)
	assert.Equal(t, "VH-002", merged[0].VehicleID)
}

func TestCapTruncatesToMaxSize(t *testing.T) {
	var alerts []models.Alert
	for i := 0; i < 600; i++ {
		alerts = append(alerts, alertAt(fmt.Sprintf("VH-%03d", i), models.AlertSpeedViolation, t0))
	}

	capped := Cap(alerts, 500)

	require.Len(t, capped, 500)
	// Head of the list survives.
	assert.Equal(t, "VH-000", capped[0].VehicleID)
}

func TestCapLeavesSmallQueuesAlone(t *testing.T) {
	alerts := []models.Alert{alertAt("VH-001", models.AlertSpeedViolation, t0)}

	assert.Len(t, Cap(alerts, 500), 1)
}
