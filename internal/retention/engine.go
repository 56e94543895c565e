package retention

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fleet-alert-service/pkg/logger"
	"fleet-alert-service/pkg/models"
)

// Record is one evictable row, already flattened for export.
type Record struct {
	ID     string
	Fields []string
}

// RecordStore reads and deletes records per retention category.
type RecordStore interface {
	// Candidates returns records older than cutoff plus the oldest records
	// beyond maxRecords, oldest first, together with the export header.
	Candidates(ctx context.Context, category models.RetentionCategory, cutoff time.Time, maxRecords int) ([]string, []Record, error)
	Delete(ctx context.Context, category models.RetentionCategory, ids []string) (int, error)
}

// Exporter stores an audit artifact for a batch before it may be deleted.
type Exporter interface {
	Export(ctx context.Context, category models.RetentionCategory, sweptAt time.Time, header []string, rows [][]string) error
}

const exportTimeout = 2 * time.Minute

// Engine ages out records per category under configured policies. A category
// is only ever deleted after its batch has been exported; export failure
// skips the deletion entirely and is surfaced to the caller.
type Engine struct {
	policies map[models.RetentionCategory]models.RetentionPolicy
	store    RecordStore
	exporter Exporter
}

func NewEngine(policies map[models.RetentionCategory]models.RetentionPolicy, store RecordStore, exporter Exporter) *Engine {
	return &Engine{
		policies: policies,
		store:    store,
		exporter: exporter,
	}
}

// Sweep runs every category's eviction pass. The scheduled and the manual
// trigger both call this one routine. The returned error enumerates the
// categories whose batches could not be exported and therefore kept.
func (e *Engine) Sweep(ctx context.Context, now time.Time) (models.SweepResult, error) {
	result := models.SweepResult{
		StartedAt: now,
		Exported:  make(map[models.RetentionCategory]int),
		Deleted:   make(map[models.RetentionCategory]int),
		Failed:    make(map[models.RetentionCategory]string),
	}

	var failures []string
	for category, policy := range e.policies {
		exported, deleted, err := e.sweepCategory(ctx, category, policy, now)
		result.Exported[category] = exported
		result.Deleted[category] = deleted
		if err != nil {
			result.Failed[category] = err.Error()
			failures = append(failures, fmt.Sprintf("%s (%d records kept): %v", category, exported, err))
			continue
		}

		logger.Info("Retention sweep finished for category",
			logger.String("category", string(category)),
			logger.Int("exported", exported),
			logger.Int("deleted", deleted))
	}

	if len(failures) > 0 {
		return result, fmt.Errorf("retention sweep failed for %d categories: %s",
			len(failures), strings.Join(failures, "; "))
	}
	return result, nil
}

func (e *Engine) sweepCategory(ctx context.Context, category models.RetentionCategory, policy models.RetentionPolicy, now time.Time) (int, int, error) {
	cutoff := now.AddDate(0, 0, -policy.RetentionDays)

	header, records, err := e.store.Candidates(ctx, category, cutoff, policy.MaxRecords)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to collect candidates: %w", err)
	}
	if len(records) == 0 {
		return 0, 0, nil
	}

	rows := make([][]string, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Fields)
		ids = append(ids, r.ID)
	}

	// Export is the durability step: it must complete before any deletion,
	// and it gets its own bounded deadline so a hung upload aborts the batch
	// instead of stalling the sweep.
	exportCtx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	if err := e.exporter.Export(exportCtx, category, now, header, rows); err != nil {
		return 0, 0, fmt.Errorf("export failed, deletion skipped: %w", err)
	}

	deleted, err := e.store.Delete(ctx, category, ids)
	if err != nil {
		return len(records), deleted, fmt.Errorf("delete failed after export: %w", err)
	}

	return len(records), deleted, nil
}
