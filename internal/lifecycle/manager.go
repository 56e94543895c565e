package lifecycle

import (
	"context"
	"fmt"
	"time"

	"fleet-alert-service/internal/queue"
	"fleet-alert-service/pkg/logger"
	"fleet-alert-service/pkg/models"
)

// Gateway is the persistence boundary for promoted alerts, action plans and
// inspection crossings. Implementations return errors, never panic.
type Gateway interface {
	SaveAlert(ctx context.Context, alert models.Alert, actor string, at time.Time) error
	AlertExists(ctx context.Context, id string) (bool, error)
	ListSaved(ctx context.Context, limit int) ([]models.SavedAlert, error)
	UpdateStatus(ctx context.Context, id string, status models.SavedAlertStatus) error
	DeleteSaved(ctx context.Context, id string) error
	AddActionPlan(ctx context.Context, plan models.ActionPlan) (int64, error)
	UpdateActionPlan(ctx context.Context, savedAlertID string, planID int64, update ActionPlanUpdate) error
	DeleteActionPlan(ctx context.Context, savedAlertID string, planID int64) error
	SaveInspection(ctx context.Context, crossing models.InspectionCrossing) error
}

// ActionPlanUpdate carries the editable fields of an action plan. Nil fields
// are left untouched.
type ActionPlanUpdate struct {
	Description  *string
	Responsible  *string
	Status       *models.ActionPlanStatus
	Observations *string
}

// PromoteResult reports the outcome of a promotion attempt.
type PromoteResult struct {
	SavedAlertID    string `json:"saved_alert_id"`
	AlreadyPromoted bool   `json:"already_promoted"`
}

// Manager owns every alert status transition: acknowledgment in the active
// queue, one-way promotion into history, and the saved-alert workflow.
type Manager struct {
	store   *queue.Store
	gateway Gateway
}

func NewManager(store *queue.Store, gateway Gateway) *Manager {
	return &Manager{store: store, gateway: gateway}
}

// Acknowledge marks an alert as copied by an operator. The alert remains in
// the active queue.
func (m *Manager) Acknowledge(ctx context.Context, id, actor string) error {
	return m.store.MarkSent(ctx, id, actor, time.Now())
}

// Promote writes an alert into the saved history and purges it from the
// active queue. Promotion is one-way and idempotent: an already-promoted
// alert is reported as such without touching the store again. A gateway
// failure leaves the alert in the active queue untouched.
func (m *Manager) Promote(ctx context.Context, id, actor string) (PromoteResult, error) {
	alert, ok := m.store.Get(id)
	if !ok {
		// Not in the queue anymore; if history has it, this is a repeat call.
		exists, err := m.gateway.AlertExists(ctx, id)
		if err != nil {
			return PromoteResult{}, fmt.Errorf("failed to check saved alert %s: %w", id, err)
		}
		if exists {
			return PromoteResult{SavedAlertID: id, AlreadyPromoted: true}, nil
		}
		return PromoteResult{}, fmt.Errorf("alert %s not found", id)
	}

	if alert.SavedToDatabase {
		return PromoteResult{SavedAlertID: id, AlreadyPromoted: true}, nil
	}

	now := time.Now()
	if err := m.gateway.SaveAlert(ctx, alert, actor, now); err != nil {
		return PromoteResult{}, fmt.Errorf("failed to save alert %s: %w", id, err)
	}

	if err := m.store.MarkSaved(ctx, id, now); err != nil {
		// History already holds the record; a stale cache entry is recoverable
		// on the next cycle, so log rather than fail the promotion.
		logger.Error("Failed to purge promoted alert from queue",
			logger.String("alert_id", id), logger.Err(err))
	}

	return PromoteResult{SavedAlertID: id}, nil
}

// AutoSave mirrors a newly classified alert into history without removing it
// from the active queue. Used by the best-effort dispatch path.
func (m *Manager) AutoSave(ctx context.Context, alert models.Alert) error {
	return m.gateway.SaveAlert(ctx, alert, "system", time.Now())
}

// ListSaved returns promoted alerts with their action plans.
func (m *Manager) ListSaved(ctx context.Context, limit int) ([]models.SavedAlert, error) {
	return m.gateway.ListSaved(ctx, limit)
}

// UpdateStatus moves a saved alert between pending, in_progress and resolved.
// Transitions are operator-driven and not strictly linear.
func (m *Manager) UpdateStatus(ctx context.Context, id string, status models.SavedAlertStatus) error {
	switch status {
	case models.SavedStatusPending, models.SavedStatusInProgress, models.SavedStatusResolved:
	default:
		return fmt.Errorf("invalid saved alert status %q", status)
	}
	return m.gateway.UpdateStatus(ctx, id, status)
}

// DeleteSaved removes a saved alert and its action plans.
func (m *Manager) DeleteSaved(ctx context.Context, id string) error {
	return m.gateway.DeleteSaved(ctx, id)
}

// AddActionPlan attaches a remediation item to a saved alert. The plan's
// workflow is decoupled from the parent's status.
func (m *Manager) AddActionPlan(ctx context.Context, plan models.ActionPlan) (int64, error) {
	if plan.SavedAlertID == "" {
		return 0, fmt.Errorf("action plan requires a saved alert id")
	}
	if plan.Status == "" {
		plan.Status = models.PlanStatusPending
	}
	return m.gateway.AddActionPlan(ctx, plan)
}

func (m *Manager) UpdateActionPlan(ctx context.Context, savedAlertID string, planID int64, update ActionPlanUpdate) error {
	if update.Status != nil {
		switch *update.Status {
		case models.PlanStatusPending, models.PlanStatusInProgress, models.PlanStatusCompleted:
		default:
			return fmt.Errorf("invalid action plan status %q", *update.Status)
		}
	}
	return m.gateway.UpdateActionPlan(ctx, savedAlertID, planID, update)
}

func (m *Manager) DeleteActionPlan(ctx context.Context, savedAlertID string, planID int64) error {
	return m.gateway.DeleteActionPlan(ctx, savedAlertID, planID)
}

// RecordInspection persists a geofence crossing derived from telemetry.
func (m *Manager) RecordInspection(ctx context.Context, crossing models.InspectionCrossing) error {
	return m.gateway.SaveInspection(ctx, crossing)
}
