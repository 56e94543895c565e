package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleet-alert-service/internal/queue"
	"fleet-alert-service/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	queue []models.Alert
}

func (c *memoryCache) GetQueue(ctx context.Context) ([]models.Alert, error) {
	return c.queue, nil
}

func (c *memoryCache) SetQueue(ctx context.Context, alerts []models.Alert) error {
	c.queue = alerts
	return nil
}

type fakeGateway struct {
	saved       map[string]models.Alert
	plans       map[int64]models.ActionPlan
	nextPlanID  int64
	inspections []models.InspectionCrossing
	saveErr     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		saved: make(map[string]models.Alert),
		plans: make(map[int64]models.ActionPlan),
	}
}

func (g *fakeGateway) SaveAlert(ctx context.Context, alert models.Alert, actor string, at time.Time) error {
	if g.saveErr != nil {
		return g.saveErr
	}
	g.saved[alert.ID] = alert
	return nil
}

func (g *fakeGateway) AlertExists(ctx context.Context, id string) (bool, error) {
	_, ok := g.saved[id]
	return ok, nil
}

func (g *fakeGateway) ListSaved(ctx context.Context, limit int) ([]models.SavedAlert, error) {
	var out []models.SavedAlert
	for _, a := range g.saved {
		out = append(out, models.SavedAlert{Alert: a, Status: models.SavedStatusPending})
	}
	return out, nil
}

func (g *fakeGateway) UpdateStatus(ctx context.Context, id string, status models.SavedAlertStatus) error {
	if _, ok := g.saved[id]; !ok {
		return errors.New("saved alert not found")
	}
	return nil
}

func (g *fakeGateway) DeleteSaved(ctx context.Context, id string) error {
	if _, ok := g.saved[id]; !ok {
		return errors.New("saved alert not found")
	}
	delete(g.saved, id)
	return nil
}

func (g *fakeGateway) AddActionPlan(ctx context.Context, plan models.ActionPlan) (int64, error) {
	if _, ok := g.saved[plan.SavedAlertID]; !ok {
		return 0, errors.New("saved alert not found")
	}
	g.nextPlanID++
	plan.ID = g.nextPlanID
	g.plans[plan.ID] = plan
	return plan.ID, nil
}

func (g *fakeGateway) UpdateActionPlan(ctx context.Context, savedAlertID string, planID int64, update ActionPlanUpdate) error {
	plan, ok := g.plans[planID]
	if !ok || plan.SavedAlertID != savedAlertID {
		return errors.New("action plan not found")
	}
	if update.Status != nil {
		plan.Status = *update.Status
	}
	g.plans[planID] = plan
	return nil
}

func (g *fakeGateway) DeleteActionPlan(ctx context.Context, savedAlertID string, planID int64) error {
	plan, ok := g.plans[planID]
	if !ok || plan.SavedAlertID != savedAlertID {
		return errors.New("action plan not found")
	}
	delete(g.plans, planID)
	return nil
}

func (g *fakeGateway) SaveInspection(ctx context.Context, crossing models.InspectionCrossing) error {
	g.inspections = append(g.inspections, crossing)
	return nil
}

var detectedAt = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func testAlert(vehicleID string) models.Alert {
	return models.Alert{
		ID:         models.AlertID(vehicleID, models.AlertSpeedViolation, detectedAt),
		VehicleID:  vehicleID,
		Type:       models.AlertSpeedViolation,
		Severity:   models.SeverityCritical,
		DetectedAt: detectedAt,
	}
}

func newTestManager(t *testing.T, gateway Gateway, alerts ...models.Alert) (*Manager, *queue.Store) {
	t.Helper()

	store := queue.NewStore(&memoryCache{}, 5*time.Minute, 500)
	if len(alerts) > 0 {
		_, err := store.MergeAndPersist(context.Background(), alerts)
		require.NoError(t, err)
	}
	return NewManager(store, gateway), store
}

func TestPromoteWritesHistoryAndPurgesQueue(t *testing.T) {
	gateway := newFakeGateway()
	alert := testAlert("VH-001")
	manager, store := newTestManager(t, gateway, alert)

	result, err := manager.Promote(context.Background(), alert.ID, "operator1")
	require.NoError(t, err)
	assert.False(t, result.AlreadyPromoted)
	assert.Equal(t, alert.ID, result.SavedAlertID)

	_, saved := gateway.saved[alert.ID]
	assert.True(t, saved)
	assert.Empty(t, store.Active())
}

func TestPromoteIsIdempotent(t *testing.T) {
	gateway := newFakeGateway()
	alert := testAlert("VH-001")
	manager, _ := newTestManager(t, gateway, alert)

	_, err := manager.Promote(context.Background(), alert.ID, "operator1")
	require.NoError(t, err)

	result, err := manager.Promote(context.Background(), alert.ID, "operator1")
	require.NoError(t, err)
	assert.True(t, result.AlreadyPromoted)
}

func TestPromoteFailureKeepsAlertInQueue(t *testing.T) {
	gateway := newFakeGateway()
	gateway.saveErr = errors.New("database unreachable")
	alert := testAlert("VH-001")
	manager, store := newTestManager(t, gateway, alert)

	_, err := manager.Promote(context.Background(), alert.ID, "operator1")
	require.Error(t, err)

	// A failed promotion must not remove the alert from the active queue.
	require.Len(t, store.Active(), 1)
	assert.Equal(t, alert.ID, store.Active()[0].ID)
}

func TestPromoteUnknownAlertFails(t *testing.T) {
	gateway := newFakeGateway()
	manager, _ := newTestManager(t, gateway)

	_, err := manager.Promote(context.Background(), "missing", "operator1")
	assert.Error(t, err)
}

func TestAcknowledgeKeepsAlertInQueue(t *testing.T) {
	gateway := newFakeGateway()
	alert := testAlert("VH-001")
	manager, store := newTestManager(t, gateway, alert)

	require.NoError(t, manager.Acknowledge(context.Background(), alert.ID, "operator1"))

	active := store.Active()
	require.Len(t, active, 1)
	assert.True(t, active[0].Sent)
	assert.Equal(t, "operator1", active[0].SentBy)
}

func TestUpdateStatusValidatesValue(t *testing.T) {
	gateway := newFakeGateway()
	alert := testAlert("VH-001")
	manager, _ := newTestManager(t, gateway, alert)

	_, err := manager.Promote(context.Background(), alert.ID, "operator1")
	require.NoError(t, err)

	assert.NoError(t, manager.UpdateStatus(context.Background(), alert.ID, models.SavedStatusResolved))
	assert.Error(t, manager.UpdateStatus(context.Background(), alert.ID, "closed"))
}

func TestActionPlanOnMissingSavedAlert(t *testing.T) {
	gateway := newFakeGateway()
	manager, _ := newTestManager(t, gateway)

	_, err := manager.AddActionPlan(context.Background(), models.ActionPlan{
		SavedAlertID: "missing",
		Description:  "Revisar conductor",
		Responsible:  "supervisor",
	})
	assert.Error(t, err)
}

func TestActionPlanWorkflow(t *testing.T) {
	gateway := newFakeGateway()
	alert := testAlert("VH-001")
	manager, _ := newTestManager(t, gateway, alert)

	_, err := manager.Promote(context.Background(), alert.ID, "operator1")
	require.NoError(t, err)

	planID, err := manager.AddActionPlan(context.Background(), models.ActionPlan{
		SavedAlertID: alert.ID,
		Description:  "Citar al conductor",
		Responsible:  "supervisor",
	})
	require.NoError(t, err)

	completed := models.PlanStatusCompleted
	require.NoError(t, manager.UpdateActionPlan(context.Background(), alert.ID, planID,
		ActionPlanUpdate{Status: &completed}))

	bad := models.ActionPlanStatus("done")
	assert.Error(t, manager.UpdateActionPlan(context.Background(), alert.ID, planID,
		ActionPlanUpdate{Status: &bad}))

	require.NoError(t, manager.DeleteActionPlan(context.Background(), alert.ID, planID))
	assert.Error(t, manager.DeleteActionPlan(context.Background(), alert.ID, planID))
}
