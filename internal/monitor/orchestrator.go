package monitor

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"fleet-alert-service/internal/classifier"
	"fleet-alert-service/internal/lifecycle"
	"fleet-alert-service/internal/notifier"
	"fleet-alert-service/internal/queue"
	"fleet-alert-service/internal/retention"
	"fleet-alert-service/internal/telemetry"
	"fleet-alert-service/pkg/config"
	"fleet-alert-service/pkg/db"
	"fleet-alert-service/pkg/logger"
	"fleet-alert-service/pkg/models"
)

// ErrCycleInFlight is returned when a refresh is requested while another
// cycle still holds the single-flight guard.
var ErrCycleInFlight = errors.New("a refresh cycle is already running")

// CycleInfo summarizes the most recent completed cycle.
type CycleInfo struct {
	FinishedAt  time.Time          `json:"finished_at"`
	FetchStatus models.FetchStatus `json:"fetch_status"`
	Snapshots   int                `json:"snapshots"`
	Candidates  int                `json:"candidates"`
	NewAlerts   int                `json:"new_alerts"`
	QueueSize   int                `json:"queue_size"`
}

// Orchestrator wires the alert engine together and executes the full
// fetch → classify → merge → persist → dispatch cycle.
type Orchestrator struct {
	config     *config.Config
	db         *sql.DB
	redis      *db.RedisClient
	source     *telemetry.Source
	classifier *classifier.Classifier
	store      *queue.Store
	lifecycle  *lifecycle.Manager
	retention  *retention.Engine
	dispatcher *Dispatcher

	// cycleMu serializes full cycles: a manual refresh overlapping the
	// scheduled one is rejected instead of racing on the queue write.
	cycleMu sync.Mutex

	mu        sync.Mutex
	lastCycle *CycleInfo
	lastSweep *models.SweepResult
}

func NewOrchestrator(cfg *config.Config, dbConn *sql.DB, redisClient *db.RedisClient, minioClient *db.MinioClient) *Orchestrator {
	store := queue.NewStore(queue.NewRedisCache(redisClient), cfg.DedupWindow, cfg.MaxQueueSize)
	gateway := lifecycle.NewPostgresGateway(dbConn)
	lm := lifecycle.NewManager(store, gateway)

	engine := retention.NewEngine(cfg.Retention,
		retention.NewPostgresStore(dbConn),
		db.NewExportStorage(minioClient))

	n := notifier.NewWebhookNotifier(cfg.NotifierURL, models.Severity(cfg.NotifierMinSeverity))
	dispatcher := NewDispatcher(lm, n, cfg.DispatchWorkers, cfg.DispatchQueueSize)

	o := NewOrchestratorWith(cfg, telemetry.NewSource(cfg.TelemetryAPIURL, cfg.TelemetryTimeout),
		store, lm, engine, dispatcher)
	o.db = dbConn
	o.redis = redisClient
	return o
}

// NewOrchestratorWith assembles the engine from pre-built subsystems. The
// production boot path goes through NewOrchestrator; anything that needs to
// swap the queue cache, lifecycle gateway or notifier behind their interfaces
// wires the subsystems itself and lands here.
func NewOrchestratorWith(cfg *config.Config, source *telemetry.Source, store *queue.Store,
	lm *lifecycle.Manager, engine *retention.Engine, dispatcher *Dispatcher) *Orchestrator {
	return &Orchestrator{
		config:     cfg,
		source:     source,
		classifier: classifier.New(cfg.SpeedLimitKMH),
		store:      store,
		lifecycle:  lm,
		retention:  engine,
		dispatcher: dispatcher,
	}
}

func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.store.Load(ctx); err != nil {
		return err
	}
	o.dispatcher.Start()
	return nil
}

func (o *Orchestrator) Stop() {
	o.dispatcher.Stop()
}

// GetDB returns the database connection
func (o *Orchestrator) GetDB() *sql.DB {
	return o.db
}

// GetRedis returns the Redis client
func (o *Orchestrator) GetRedis() *db.RedisClient {
	return o.redis
}

// GetStore returns the active queue store
func (o *Orchestrator) GetStore() *queue.Store {
	return o.store
}

// GetLifecycle returns the lifecycle manager
func (o *Orchestrator) GetLifecycle() *lifecycle.Manager {
	return o.lifecycle
}

// GetConfig returns the config
func (o *Orchestrator) GetConfig() *config.Config {
	return o.config
}

// LastCycle returns the most recent cycle summary, nil before the first run.
func (o *Orchestrator) LastCycle() *CycleInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastCycle
}

// RunCycle executes one full refresh cycle under the single-flight guard.
// Side-effect failures never abort the cycle; only a failed fetch with no
// fallback data or a failed queue persist surface as errors.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if !o.cycleMu.TryLock() {
		return ErrCycleInFlight
	}
	defer o.cycleMu.Unlock()

	snapshots, fetchStatus, err := o.source.Fetch(ctx)
	if err != nil {
		logger.Error("Telemetry fetch failed with no fallback", logger.Err(err))
		return err
	}

	var candidates []models.Alert
	for _, snap := range snapshots {
		candidates = append(candidates, o.classifier.Classify(snap)...)
	}

	fresh, err := o.store.MergeAndPersist(ctx, candidates)
	if err != nil {
		logger.Error("Failed to persist merged queue", logger.Err(err))
		return err
	}

	for _, alert := range fresh {
		o.dispatcher.EnqueueAlert(alert)

		switch alert.Type {
		case models.AlertGeofenceEntry, models.AlertGeofenceExit:
			direction := "entry"
			if alert.Type == models.AlertGeofenceExit {
				direction = "exit"
			}
			o.dispatcher.EnqueueInspection(models.InspectionCrossing{
				VehicleID: alert.VehicleID,
				Plate:     alert.Plate,
				Direction: direction,
				Location:  alert.Location,
				CrossedAt: alert.DetectedAt,
			})
		}
	}

	info := &CycleInfo{
		FinishedAt:  time.Now(),
		FetchStatus: fetchStatus,
		Snapshots:   len(snapshots),
		Candidates:  len(candidates),
		NewAlerts:   len(fresh),
		QueueSize:   o.store.Size(),
	}

	o.mu.Lock()
	o.lastCycle = info
	o.mu.Unlock()

	logger.Info("Refresh cycle finished",
		logger.String("fetch_status", string(fetchStatus)),
		logger.Int("snapshots", info.Snapshots),
		logger.Int("candidates", info.Candidates),
		logger.Int("new_alerts", info.NewAlerts),
		logger.Int("queue_size", info.QueueSize))

	return nil
}

// RunRetentionSweep runs the eviction engine. The scheduled ticker and the
// manual operator trigger both land here, so both have identical semantics.
func (o *Orchestrator) RunRetentionSweep(ctx context.Context) (models.SweepResult, error) {
	result, err := o.retention.Sweep(ctx, time.Now())

	o.mu.Lock()
	o.lastSweep = &result
	o.mu.Unlock()

	if err != nil {
		logger.Error("Retention sweep reported failures", logger.Err(err))
	}
	return result, err
}

// Stats snapshots the engine's operational counters.
func (o *Orchestrator) Stats() map[string]interface{} {
	o.mu.Lock()
	lastCycle := o.lastCycle
	lastSweep := o.lastSweep
	o.mu.Unlock()

	return map[string]interface{}{
		"queue_size": o.store.Size(),
		"dispatch":   o.dispatcher.Stats(),
		"last_cycle": lastCycle,
		"last_sweep": lastSweep,
	}
}
