package classifier

import (
	"fmt"
	"strings"

	"fleet-alert-service/pkg/models"
)

// Classifier turns one telemetry snapshot into zero or more alert candidates.
// It is pure: no I/O, no clock reads, deterministic for a given snapshot.
type Classifier struct {
	SpeedLimitKMH float64
}

func New(speedLimitKMH float64) *Classifier {
	if speedLimitKMH <= 0 {
		speedLimitKMH = 80
	}
	return &Classifier{SpeedLimitKMH: speedLimitKMH}
}

// Classify evaluates the rule catalogue against a single snapshot. Rules are
// independent; a snapshot can trigger several alerts at once. Missing numeric
// fields count as zero and a missing event as the empty string, so malformed
// input never fails classification.
func (c *Classifier) Classify(snap models.TelemetrySnapshot) []models.Alert {
	var alerts []models.Alert
	event := strings.ToLower(strings.TrimSpace(snap.Event))

	speedFired := false
	if snap.Speed >= c.SpeedLimitKMH {
		details := fmt.Sprintf("Speed %.0f km/h exceeds the %.0f km/h limit", snap.Speed, c.SpeedLimitKMH)
		alerts = append(alerts, c.newAlert(snap, models.AlertSpeedViolation, models.SeverityCritical, details))
		speedFired = true
	}

	vocabFired := false
	for _, rule := range eventRules {
		if !matchAny(event, rule.keywords) {
			continue
		}
		alertType := rule.alertType
		if alertType == models.AlertGeofenceEntry && matchAny(event, geofenceExitKeywords) {
			alertType = models.AlertGeofenceExit
		}
		details := fmt.Sprintf("%s: %s", rule.label, snap.Event)
		alerts = append(alerts, c.newAlert(snap, alertType, rule.severity, details))
		vocabFired = true
	}

	// Source-specific catch-alls. A general alert is suppressed when a more
	// specific rule already fired for the same snapshot.
	switch strings.ToLower(snap.Source) {
	case SourceSkyPatrol:
		if !vocabFired && matchAny(event, skyPatrolInfractionKeywords) {
			details := fmt.Sprintf("SkyPatrol infraction reported: %s", snap.Event)
			alerts = append(alerts, c.newAlert(snap, models.AlertGeneral, models.SeverityMedium, details))
		}
	case SourceFulltrack:
		if !speedFired && matchAny(event, fulltrackExceedsKeywords) {
			details := fmt.Sprintf("Fulltrack limit exceeded: %s", snap.Event)
			alerts = append(alerts, c.newAlert(snap, models.AlertGeneral, models.SeverityMedium, details))
		}
		if matchAny(event, fulltrackEmergencyKeywords) {
			details := fmt.Sprintf("Fulltrack emergency reported: %s", snap.Event)
			alerts = append(alerts, c.newAlert(snap, models.AlertGeneral, models.SeverityHigh, details))
		}
	}

	return alerts
}

func (c *Classifier) newAlert(snap models.TelemetrySnapshot, alertType models.AlertType, severity models.Severity, details string) models.Alert {
	return models.Alert{
		ID:         models.AlertID(snap.VehicleID, alertType, snap.Timestamp),
		VehicleID:  snap.VehicleID,
		Plate:      snap.Plate,
		Driver:     snap.Driver,
		Type:       alertType,
		Severity:   severity,
		Details:    details,
		Location:   snap.Location,
		Speed:      snap.Speed,
		Source:     snap.Source,
		Contract:   snap.Contract,
		DetectedAt: snap.Timestamp,
	}
}

func matchAny(event string, keywords []string) bool {
	if event == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(event, kw) {
			return true
		}
	}
	return false
}
