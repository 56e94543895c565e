package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"fleet-alert-service/internal/monitor"
	"fleet-alert-service/pkg/config"
	"fleet-alert-service/pkg/logger"
)

// WorkerPool drives the scheduled triggers: the periodic refresh cycle and
// the daily retention sweep. Manual triggers go through the same orchestrator
// entry points, so both paths share one set of semantics.
type WorkerPool struct {
	config       *config.Config
	orchestrator *monitor.Orchestrator
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

func NewWorkerPool(cfg *config.Config, orch *monitor.Orchestrator) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		config:       cfg,
		orchestrator: orch,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (wp *WorkerPool) Start() {
	logger.Info("Starting scheduled workers",
		logger.Duration("cycle_interval", wp.config.CycleInterval),
		logger.Duration("retention_interval", wp.config.RetentionInterval))

	wp.wg.Add(1)
	go wp.cycleRunner()

	wp.wg.Add(1)
	go wp.retentionRunner()
}

func (wp *WorkerPool) Stop() {
	logger.Info("Stopping scheduled workers...")
	wp.cancel()
	wp.wg.Wait()
	logger.Info("Scheduled workers stopped")
}

func (wp *WorkerPool) cycleRunner() {
	defer wp.wg.Done()

	logger.Info("Refresh cycle runner started")

	// Populate the queue right away instead of waiting a full interval.
	wp.runCycle()

	ticker := time.NewTicker(wp.config.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			logger.Info("Refresh cycle runner stopped")
			return
		case <-ticker.C:
			wp.runCycle()
		}
	}
}

func (wp *WorkerPool) runCycle() {
	ctx, cancel := context.WithTimeout(wp.ctx, 2*time.Minute)
	defer cancel()

	if err := wp.orchestrator.RunCycle(ctx); err != nil {
		if errors.Is(err, monitor.ErrCycleInFlight) {
			logger.Warn("Scheduled cycle skipped, another cycle is running")
			return
		}
		logger.Error("Refresh cycle failed", logger.Err(err))
	}
}

func (wp *WorkerPool) retentionRunner() {
	defer wp.wg.Done()

	logger.Info("Retention sweep runner started")

	ticker := time.NewTicker(wp.config.RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			logger.Info("Retention sweep runner stopped")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(wp.ctx, 10*time.Minute)
			if _, err := wp.orchestrator.RunRetentionSweep(ctx); err != nil {
				logger.Error("Scheduled retention sweep failed", logger.Err(err))
			}
			cancel()
		}
	}
}
