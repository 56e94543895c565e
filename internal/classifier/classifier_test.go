package classifier

import (
	"testing"
	"time"

	"fleet-alert-service/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(speed float64, event string) models.TelemetrySnapshot {
	return models.TelemetrySnapshot{
		VehicleID: "VH-001",
		Plate:     "ABCD12",
		Driver:    "J. Rojas",
		Event:     event,
		Speed:     speed,
		Location:  "Ruta 5 Sur km 34",
		Source:    "gps",
		Timestamp: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
	}
}

func TestClassifySpeedViolation(t *testing.T) {
	c := New(80)

	alerts := c.Classify(snapshot(95, ""))

	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertSpeedViolation, alerts[0].Type)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Contains(t, alerts[0].Details, "95")
	assert.Contains(t, alerts[0].Details, "80")
}

func TestClassifyPanicButtonWithoutSpeeding(t *testing.T) {
	c := New(80)

	alerts := c.Classify(snapshot(30, "BOTON PANICO"))

	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertPanicButton, alerts[0].Type)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
}

func TestClassifyMultipleRulesFromOneSnapshot(t *testing.T) {
	c := New(80)

	alerts := c.Classify(snapshot(110, "BOTON PANICO"))

	require.Len(t, alerts, 2)
	types := []models.AlertType{alerts[0].Type, alerts[1].Type}
	assert.Contains(t, types, models.AlertSpeedViolation)
	assert.Contains(t, types, models.AlertPanicButton)
}

func TestClassifyEventVocabulary(t *testing.T) {
	tests := []struct {
		event    string
		want     models.AlertType
		severity models.Severity
	}{
		{"Frenada brusca detectada", models.AlertHarshBraking, models.SeverityMedium},
		{"ACELERACION BRUSCA", models.AlertHarshAcceleration, models.SeverityMedium},
		{"Entrada a zona controlada", models.AlertGeofenceEntry, models.SeverityHigh},
		{"Salida de zona autorizada", models.AlertGeofenceExit, models.SeverityHigh},
		{"Bateria desconectada", models.AlertBatteryDisconnect, models.SeverityCritical},
		{"Vehiculo en ralenti prolongado", models.AlertExcessiveIdle, models.SeverityLow},
	}

	c := New(80)
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			alerts := c.Classify(snapshot(20, tt.event))
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.want, alerts[0].Type)
			assert.Equal(t, tt.severity, alerts[0].Severity)
		})
	}
}

func TestClassifySkyPatrolInfraction(t *testing.T) {
	c := New(80)

	snap := snapshot(40, "Infraccion registrada por operador")
	snap.Source = SourceSkyPatrol

	alerts := c.Classify(snap)

	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertGeneral, alerts[0].Type)
	assert.Equal(t, models.SeverityMedium, alerts[0].Severity)
}

func TestClassifySkyPatrolInfractionSuppressedBySpecificRule(t *testing.T) {
	c := New(80)

	// The panic rule already covers this event, so the catch-all stays quiet.
	snap := snapshot(40, "Infraccion: BOTON PANICO")
	snap.Source = SourceSkyPatrol

	alerts := c.Classify(snap)

	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertPanicButton, alerts[0].Type)
}

func TestClassifyFulltrackExceedsSuppressedBySpeedRule(t *testing.T) {
	c := New(80)

	snap := snapshot(120, "Excede velocidad maxima")
	snap.Source = SourceFulltrack

	alerts := c.Classify(snap)

	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertSpeedViolation, alerts[0].Type)
}

func TestClassifyFulltrackExceedsWithoutSpeedReading(t *testing.T) {
	c := New(80)

	snap := snapshot(0, "Excede velocidad maxima")
	snap.Source = SourceFulltrack

	alerts := c.Classify(snap)

	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertGeneral, alerts[0].Type)
	assert.Equal(t, models.SeverityMedium, alerts[0].Severity)
}

func TestClassifyFulltrackEmergency(t *testing.T) {
	c := New(80)

	snap := snapshot(40, "Emergencia reportada en ruta")
	snap.Source = SourceFulltrack

	alerts := c.Classify(snap)

	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertGeneral, alerts[0].Type)
	assert.Equal(t, models.SeverityHigh, alerts[0].Severity)
}

func TestClassifyMalformedSnapshot(t *testing.T) {
	c := New(80)

	alerts := c.Classify(models.TelemetrySnapshot{VehicleID: "VH-002"})

	assert.Empty(t, alerts)
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := New(80)
	snap := snapshot(95, "BOTON PANICO")

	first := c.Classify(snap)
	second := c.Classify(snap)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestClassifyDefaultSpeedLimit(t *testing.T) {
	c := New(0)

	assert.Equal(t, float64(80), c.SpeedLimitKMH)
}
