package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fleet-alert-service/internal/lifecycle"
	"fleet-alert-service/internal/notifier"
	"fleet-alert-service/pkg/logger"
	"fleet-alert-service/pkg/models"
)

type taskKind string

const (
	taskAutoSave   taskKind = "auto_save"
	taskNotify     taskKind = "notify"
	taskInspection taskKind = "inspection"
)

type dispatchTask struct {
	kind     taskKind
	alert    models.Alert
	crossing models.InspectionCrossing
}

// DispatchStats exposes the side-effect counters for the stats endpoint.
type DispatchStats struct {
	Enqueued           int64 `json:"enqueued"`
	Dropped            int64 `json:"dropped"`
	AutoSaveFailures   int64 `json:"auto_save_failures"`
	NotifyFailures     int64 `json:"notify_failures"`
	InspectionFailures int64 `json:"inspection_failures"`
}

// Dispatcher runs the fire-and-forget side effects (auto-save, notify,
// inspection recording) on a bounded worker pool. The classification cycle
// never waits on it: a full queue drops the task and bumps a counter.
type Dispatcher struct {
	tasks     chan dispatchTask
	workers   int
	lifecycle *lifecycle.Manager
	notifier  notifier.Notifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	enqueued           atomic.Int64
	dropped            atomic.Int64
	autoSaveFailures   atomic.Int64
	notifyFailures     atomic.Int64
	inspectionFailures atomic.Int64
}

func NewDispatcher(lm *lifecycle.Manager, n notifier.Notifier, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 5
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		tasks:     make(chan dispatchTask, queueSize),
		workers:   workers,
		lifecycle: lm,
		notifier:  n,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (d *Dispatcher) Start() {
	logger.Info("Starting dispatch workers", logger.Int("workers", d.workers))
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	logger.Info("Dispatch workers stopped")
}

// EnqueueAlert schedules the auto-save and notify side effects for a newly
// classified alert.
func (d *Dispatcher) EnqueueAlert(alert models.Alert) {
	d.enqueue(dispatchTask{kind: taskAutoSave, alert: alert})
	d.enqueue(dispatchTask{kind: taskNotify, alert: alert})
}

// EnqueueInspection schedules a best-effort inspection crossing write.
func (d *Dispatcher) EnqueueInspection(crossing models.InspectionCrossing) {
	d.enqueue(dispatchTask{kind: taskInspection, crossing: crossing})
}

func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Enqueued:           d.enqueued.Load(),
		Dropped:            d.dropped.Load(),
		AutoSaveFailures:   d.autoSaveFailures.Load(),
		NotifyFailures:     d.notifyFailures.Load(),
		InspectionFailures: d.inspectionFailures.Load(),
	}
}

func (d *Dispatcher) enqueue(t dispatchTask) {
	select {
	case d.tasks <- t:
		d.enqueued.Add(1)
	default:
		d.dropped.Add(1)
		logger.Warn("Dispatch queue full, task dropped",
			logger.String("kind", string(t.kind)),
			logger.String("alert_id", t.alert.ID))
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case t := <-d.tasks:
			d.run(t)
		}
	}
}

func (d *Dispatcher) run(t dispatchTask) {
	ctx, cancel := context.WithTimeout(d.ctx, 15*time.Second)
	defer cancel()

	switch t.kind {
	case taskAutoSave:
		if err := d.lifecycle.AutoSave(ctx, t.alert); err != nil {
			d.autoSaveFailures.Add(1)
			logger.Error("Alert auto-save failed",
				logger.String("alert_id", t.alert.ID), logger.Err(err))
		}
	case taskNotify:
		if err := d.notifier.Notify(ctx, t.alert); err != nil {
			d.notifyFailures.Add(1)
			logger.Error("Alert notification failed",
				logger.String("alert_id", t.alert.ID), logger.Err(err))
		}
	case taskInspection:
		if err := d.lifecycle.RecordInspection(ctx, t.crossing); err != nil {
			d.inspectionFailures.Add(1)
			logger.Error("Inspection crossing write failed",
				logger.String("vehicle_id", t.crossing.VehicleID), logger.Err(err))
		}
	}
}
