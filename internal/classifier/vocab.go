package classifier

import "fleet-alert-service/pkg/models"

// Telemetry providers tag each snapshot with the platform it came from.
// SkyPatrol and Fulltrack report free-text events with their own vocabularies,
// handled by the source-specific catch-all rules.
const (
	SourceSkyPatrol = "skypatrol"
	SourceFulltrack = "fulltrack"
)

// eventRule matches a fixed vocabulary against the snapshot's free-text event.
// Matching is case-insensitive substring; rules are independent of each other.
type eventRule struct {
	alertType models.AlertType
	severity  models.Severity
	keywords  []string
	label     string
}

var eventRules = []eventRule{
	{
		alertType: models.AlertPanicButton,
		severity:  models.SeverityCritical,
		keywords:  []string{"panico", "pánico", "sos", "boton de emergencia", "panic"},
		label:     "Panic button pressed",
	},
	{
		alertType: models.AlertHarshBraking,
		severity:  models.SeverityMedium,
		keywords:  []string{"frenada brusca", "frenado brusco", "harsh braking"},
		label:     "Harsh braking detected",
	},
	{
		alertType: models.AlertHarshAcceleration,
		severity:  models.SeverityMedium,
		keywords:  []string{"aceleracion brusca", "aceleración brusca", "harsh acceleration"},
		label:     "Harsh acceleration detected",
	},
	{
		alertType: models.AlertGeofenceEntry,
		severity:  models.SeverityHigh,
		keywords:  []string{"geocerca", "geofence", "zona controlada", "entrada a zona", "salida de zona"},
		label:     "Geofence event",
	},
	{
		alertType: models.AlertBatteryDisconnect,
		severity:  models.SeverityCritical,
		keywords:  []string{"bateria desconectada", "batería desconectada", "corte de bateria", "battery disconnect"},
		label:     "Battery disconnected",
	},
	{
		alertType: models.AlertExcessiveIdle,
		severity:  models.SeverityLow,
		keywords:  []string{"ralenti", "ralentí", "excessive idle", "motor detenido encendido"},
		label:     "Excessive idling",
	},
}

// geofenceExitKeywords sub-classify a geofence match as an exit; default is entry.
var geofenceExitKeywords = []string{"salida", "fuera de zona", "exit", "out of zone"}

// Source-specific catch-all vocabularies.
var (
	skyPatrolInfractionKeywords = []string{"infraccion", "infracción"}
	fulltrackExceedsKeywords    = []string{"excede", "exceso"}
	fulltrackEmergencyKeywords  = []string{"emergencia", "alerta"}
)
