package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fleet-alert-service/pkg/models"
)

// PostgresGateway implements Gateway against the fleet database.
type PostgresGateway struct {
	db *sql.DB
}

func NewPostgresGateway(db *sql.DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

func (g *PostgresGateway) SaveAlert(ctx context.Context, alert models.Alert, actor string, at time.Time) error {
	// ON CONFLICT keeps promotion idempotent: a repeated save of the same
	// deterministic alert ID is a no-op.
	query := `
		INSERT INTO saved_alerts (
			id, vehicle_id, plate, driver, alert_type, severity, details,
			location, speed, source, contract, detected_at,
			sent, sent_at, sent_by, status, saved_by, promoted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := g.db.ExecContext(ctx, query,
		alert.ID, alert.VehicleID, alert.Plate, alert.Driver,
		alert.Type, alert.Severity, alert.Details,
		alert.Location, alert.Speed, alert.Source, nullable(alert.Contract), alert.DetectedAt,
		alert.Sent, alert.SentAt, nullable(alert.SentBy),
		models.SavedStatusPending, actor, at,
	)
	if err != nil {
		return fmt.Errorf("failed to insert saved alert: %w", err)
	}
	return nil
}

func (g *PostgresGateway) AlertExists(ctx context.Context, id string) (bool, error) {
	var count int
	err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM saved_alerts WHERE id = $1`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query saved alert: %w", err)
	}
	return count > 0, nil
}

func (g *PostgresGateway) ListSaved(ctx context.Context, limit int) ([]models.SavedAlert, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, vehicle_id, plate, driver, alert_type, severity, details,
		       location, speed, source, COALESCE(contract, ''), detected_at,
		       status, saved_by, promoted_at
		FROM saved_alerts
		ORDER BY promoted_at DESC
		LIMIT $1
	`

	rows, err := g.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved alerts: %w", err)
	}
	defer rows.Close()

	var saved []models.SavedAlert
	for rows.Next() {
		var sa models.SavedAlert
		if err := rows.Scan(
			&sa.ID, &sa.VehicleID, &sa.Plate, &sa.Driver, &sa.Type, &sa.Severity, &sa.Details,
			&sa.Location, &sa.Speed, &sa.Source, &sa.Contract, &sa.DetectedAt,
			&sa.Status, &sa.SavedBy, &sa.PromotedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan saved alert: %w", err)
		}
		sa.SavedToDatabase = true

		plans, err := g.listActionPlans(ctx, sa.ID)
		if err != nil {
			return nil, err
		}
		sa.ActionPlans = plans
		saved = append(saved, sa)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating saved alerts: %w", err)
	}
	return saved, nil
}

func (g *PostgresGateway) UpdateStatus(ctx context.Context, id string, status models.SavedAlertStatus) error {
	res, err := g.db.ExecContext(ctx,
		`UPDATE saved_alerts SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update saved alert status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("saved alert %s not found", id)
	}
	return nil
}

func (g *PostgresGateway) DeleteSaved(ctx context.Context, id string) error {
	res, err := g.db.ExecContext(ctx, `DELETE FROM saved_alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete saved alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("saved alert %s not found", id)
	}
	return nil
}

func (g *PostgresGateway) AddActionPlan(ctx context.Context, plan models.ActionPlan) (int64, error) {
	exists, err := g.AlertExists(ctx, plan.SavedAlertID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("saved alert %s not found", plan.SavedAlertID)
	}

	query := `
		INSERT INTO action_plans (saved_alert_id, description, responsible, status, observations)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err = g.db.QueryRowContext(ctx, query,
		plan.SavedAlertID, plan.Description, plan.Responsible, plan.Status, nullable(plan.Observations),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert action plan: %w", err)
	}
	return id, nil
}

func (g *PostgresGateway) UpdateActionPlan(ctx context.Context, savedAlertID string, planID int64, update ActionPlanUpdate) error {
	query := `
		UPDATE action_plans SET
			description  = COALESCE($3, description),
			responsible  = COALESCE($4, responsible),
			status       = COALESCE($5, status),
			observations = COALESCE($6, observations),
			updated_at   = NOW()
		WHERE id = $1 AND saved_alert_id = $2
	`

	var status *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}

	res, err := g.db.ExecContext(ctx, query,
		planID, savedAlertID,
		update.Description, update.Responsible, status, update.Observations,
	)
	if err != nil {
		return fmt.Errorf("failed to update action plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("action plan %d not found for saved alert %s", planID, savedAlertID)
	}
	return nil
}

func (g *PostgresGateway) DeleteActionPlan(ctx context.Context, savedAlertID string, planID int64) error {
	res, err := g.db.ExecContext(ctx,
		`DELETE FROM action_plans WHERE id = $1 AND saved_alert_id = $2`, planID, savedAlertID)
	if err != nil {
		return fmt.Errorf("failed to delete action plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("action plan %d not found for saved alert %s", planID, savedAlertID)
	}
	return nil
}

func (g *PostgresGateway) SaveInspection(ctx context.Context, crossing models.InspectionCrossing) error {
	query := `
		INSERT INTO inspection_crossings (vehicle_id, plate, direction, location, crossed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := g.db.ExecContext(ctx, query,
		crossing.VehicleID, crossing.Plate, crossing.Direction, crossing.Location, crossing.CrossedAt)
	if err != nil {
		return fmt.Errorf("failed to insert inspection crossing: %w", err)
	}
	return nil
}

func (g *PostgresGateway) listActionPlans(ctx context.Context, savedAlertID string) ([]models.ActionPlan, error) {
	query := `
		SELECT id, saved_alert_id, description, responsible, status, COALESCE(observations, ''),
		       created_at, updated_at
		FROM action_plans
		WHERE saved_alert_id = $1
		ORDER BY created_at ASC
	`

	rows, err := g.db.QueryContext(ctx, query, savedAlertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query action plans: %w", err)
	}
	defer rows.Close()

	var plans []models.ActionPlan
	for rows.Next() {
		var p models.ActionPlan
		if err := rows.Scan(&p.ID, &p.SavedAlertID, &p.Description, &p.Responsible,
			&p.Status, &p.Observations, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan action plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
