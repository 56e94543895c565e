package models

import (
	"fmt"
	"time"
)

// FetchStatus tags the quality of one telemetry fetch
type FetchStatus string

const (
	FetchOK       FetchStatus = "ok"
	FetchDegraded FetchStatus = "degraded"
	FetchError    FetchStatus = "error"
	// FetchUnknown reports that no fetch has completed yet.
	FetchUnknown FetchStatus = "unknown"
)

// TelemetrySnapshot represents one vehicle's latest reported state
type TelemetrySnapshot struct {
	VehicleID string    `json:"vehicle_id"`
	Plate     string    `json:"plate"`
	Driver    string    `json:"driver"`
	Event     string    `json:"event"`
	Speed     float64   `json:"speed"` // km/h
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Location  string    `json:"location"`
	Source    string    `json:"source"`
	Contract  string    `json:"contract,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertType classifies a detected occurrence
type AlertType string

const (
	AlertSpeedViolation    AlertType = "speed_violation"
	AlertPanicButton       AlertType = "panic_button"
	AlertHarshBraking      AlertType = "harsh_braking"
	AlertHarshAcceleration AlertType = "harsh_acceleration"
	AlertGeofenceEntry     AlertType = "geofence_entry"
	AlertGeofenceExit      AlertType = "geofence_exit"
	AlertBatteryDisconnect AlertType = "battery_disconnect"
	AlertExcessiveIdle     AlertType = "excessive_idle"
	AlertGeneral           AlertType = "general"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Alert represents a detected occurrence in the active queue
type Alert struct {
	ID              string     `json:"id"`
	VehicleID       string     `json:"vehicle_id"`
	Plate           string     `json:"plate"`
	Driver          string     `json:"driver"`
	Type            AlertType  `json:"type"`
	Severity        Severity   `json:"severity"`
	Details         string     `json:"details"`
	Location        string     `json:"location"`
	Speed           float64    `json:"speed"`
	Source          string     `json:"source"`
	Contract        string     `json:"contract,omitempty"`
	DetectedAt      time.Time  `json:"detected_at"`
	Sent            bool       `json:"sent"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	SentBy          string     `json:"sent_by,omitempty"`
	SavedToDatabase bool       `json:"saved_to_database"`
	SavedAt         *time.Time `json:"saved_at,omitempty"`
}

// AlertID derives the deterministic identifier for a detection.
// Identical (vehicle, type, timestamp) tuples always map to the same ID.
func AlertID(vehicleID string, alertType AlertType, detectedAt time.Time) string {
	return fmt.Sprintf("%s-%s-%d", vehicleID, alertType, detectedAt.Unix())
}

// SavedAlertStatus is the triage workflow state of a promoted alert
type SavedAlertStatus string

const (
	SavedStatusPending    SavedAlertStatus = "pending"
	SavedStatusInProgress SavedAlertStatus = "in_progress"
	SavedStatusResolved   SavedAlertStatus = "resolved"
)

// SavedAlert is an alert promoted into long-term history
type SavedAlert struct {
	Alert
	Status      SavedAlertStatus `json:"status"`
	SavedBy     string           `json:"saved_by"`
	PromotedAt  time.Time        `json:"promoted_at"`
	ActionPlans []ActionPlan     `json:"action_plans,omitempty"`
}

type ActionPlanStatus string

const (
	PlanStatusPending    ActionPlanStatus = "pending"
	PlanStatusInProgress ActionPlanStatus = "in_progress"
	PlanStatusCompleted  ActionPlanStatus = "completed"
)

// ActionPlan is a remediation item attached to a SavedAlert
type ActionPlan struct {
	ID           int64            `json:"id"`
	SavedAlertID string           `json:"saved_alert_id"`
	Description  string           `json:"description"`
	Responsible  string           `json:"responsible"`
	Status       ActionPlanStatus `json:"status"`
	Observations string           `json:"observations,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// InspectionCrossing records a geofence entry or exit derived from telemetry
type InspectionCrossing struct {
	ID        int64     `json:"id"`
	VehicleID string    `json:"vehicle_id"`
	Plate     string    `json:"plate"`
	Direction string    `json:"direction"` // entry | exit
	Location  string    `json:"location"`
	CrossedAt time.Time `json:"crossed_at"`
}

// RetentionCategory names one independently swept record family
type RetentionCategory string

const (
	CategoryActiveHistory  RetentionCategory = "active_history"
	CategoryResolvedAlerts RetentionCategory = "resolved_alerts"
	CategoryInspections    RetentionCategory = "inspections"
	CategoryCompletedPlans RetentionCategory = "completed_plans"
)

// RetentionPolicy bounds one category's stored records
type RetentionPolicy struct {
	RetentionDays int `json:"retention_days"`
	MaxRecords    int `json:"max_records"`
}

// SweepResult reports what one retention sweep exported and deleted
type SweepResult struct {
	StartedAt time.Time                    `json:"started_at"`
	Exported  map[RetentionCategory]int    `json:"exported"`
	Deleted   map[RetentionCategory]int    `json:"deleted"`
	Failed    map[RetentionCategory]string `json:"failed,omitempty"`
}
