package retention

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"fleet-alert-service/pkg/models"

	"github.com/lib/pq"
)

// PostgresStore implements RecordStore over the fleet database. Each category
// maps to one table (or a status slice of one) with its own timestamp column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Candidates(ctx context.Context, category models.RetentionCategory, cutoff time.Time, maxRecords int) ([]string, []Record, error) {
	switch category {
	case models.CategoryActiveHistory:
		return s.savedAlertCandidates(ctx, cutoff, maxRecords,
			[]string{string(models.SavedStatusPending), string(models.SavedStatusInProgress)})
	case models.CategoryResolvedAlerts:
		return s.savedAlertCandidates(ctx, cutoff, maxRecords,
			[]string{string(models.SavedStatusResolved)})
	case models.CategoryInspections:
		return s.inspectionCandidates(ctx, cutoff, maxRecords)
	case models.CategoryCompletedPlans:
		return s.planCandidates(ctx, cutoff, maxRecords)
	default:
		return nil, nil, fmt.Errorf("unknown retention category %q", category)
	}
}

func (s *PostgresStore) Delete(ctx context.Context, category models.RetentionCategory, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var query string
	switch category {
	case models.CategoryActiveHistory, models.CategoryResolvedAlerts:
		query = `DELETE FROM saved_alerts WHERE id = ANY($1)`
	case models.CategoryInspections:
		query = `DELETE FROM inspection_crossings WHERE id::text = ANY($1)`
	case models.CategoryCompletedPlans:
		query = `DELETE FROM action_plans WHERE id::text = ANY($1)`
	default:
		return 0, fmt.Errorf("unknown retention category %q", category)
	}

	res, err := s.db.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s records: %w", category, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

var savedAlertHeader = []string{
	"id", "vehicle_id", "plate", "driver", "alert_type", "severity",
	"details", "location", "status", "saved_by", "promoted_at",
}

func (s *PostgresStore) savedAlertCandidates(ctx context.Context, cutoff time.Time, maxRecords int, statuses []string) ([]string, []Record, error) {
	query := `
		SELECT id, vehicle_id, plate, driver, alert_type, severity,
		       details, location, status, saved_by, promoted_at
		FROM saved_alerts
		WHERE status = ANY($1) AND (promoted_at < $2 OR id IN (
			SELECT id FROM saved_alerts WHERE status = ANY($1)
			ORDER BY promoted_at DESC OFFSET $3
		))
		ORDER BY promoted_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(statuses), cutoff, maxRecords)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query saved alert candidates: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var id, vehicleID, plate, driver, alertType, severity, details, location, status, savedBy string
		var promotedAt time.Time
		if err := rows.Scan(&id, &vehicleID, &plate, &driver, &alertType, &severity,
			&details, &location, &status, &savedBy, &promotedAt); err != nil {
			return nil, nil, fmt.Errorf("failed to scan saved alert candidate: %w", err)
		}
		records = append(records, Record{
			ID: id,
			Fields: []string{id, vehicleID, plate, driver, alertType, severity,
				details, location, status, savedBy, promotedAt.Format(time.RFC3339)},
		})
	}
	return savedAlertHeader, records, rows.Err()
}

var inspectionHeader = []string{"id", "vehicle_id", "plate", "direction", "location", "crossed_at"}

func (s *PostgresStore) inspectionCandidates(ctx context.Context, cutoff time.Time, maxRecords int) ([]string, []Record, error) {
	query := `
		SELECT id, vehicle_id, plate, direction, location, crossed_at
		FROM inspection_crossings
		WHERE crossed_at < $1 OR id IN (
			SELECT id FROM inspection_crossings ORDER BY crossed_at DESC OFFSET $2
		)
		ORDER BY crossed_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, cutoff, maxRecords)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query inspection candidates: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var id int64
		var vehicleID, plate, direction, location string
		var crossedAt time.Time
		if err := rows.Scan(&id, &vehicleID, &plate, &direction, &location, &crossedAt); err != nil {
			return nil, nil, fmt.Errorf("failed to scan inspection candidate: %w", err)
		}
		idStr := strconv.FormatInt(id, 10)
		records = append(records, Record{
			ID:     idStr,
			Fields: []string{idStr, vehicleID, plate, direction, location, crossedAt.Format(time.RFC3339)},
		})
	}
	return inspectionHeader, records, rows.Err()
}

var planHeader = []string{"id", "saved_alert_id", "description", "responsible", "status", "observations", "updated_at"}

func (s *PostgresStore) planCandidates(ctx context.Context, cutoff time.Time, maxRecords int) ([]string, []Record, error) {
	query := `
		SELECT id, saved_alert_id, description, responsible, status, COALESCE(observations, ''), updated_at
		FROM action_plans
		WHERE status = 'completed' AND (updated_at < $1 OR id IN (
			SELECT id FROM action_plans WHERE status = 'completed'
			ORDER BY updated_at DESC OFFSET $2
		))
		ORDER BY updated_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, cutoff, maxRecords)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query action plan candidates: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var id int64
		var savedAlertID, description, responsible, status, observations string
		var updatedAt time.Time
		if err := rows.Scan(&id, &savedAlertID, &description, &responsible, &status, &observations, &updatedAt); err != nil {
			return nil, nil, fmt.Errorf("failed to scan action plan candidate: %w", err)
		}
		idStr := strconv.FormatInt(id, 10)
		records = append(records, Record{
			ID: idStr,
			Fields: []string{idStr, savedAlertID, description, responsible, status,
				observations, updatedAt.Format(time.RFC3339)},
		})
	}
	return planHeader, records, rows.Err()
}
