package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/courseforge/courseforge/pkg/models"
)

// WorkerPool manages a pool of ingestion workers.
type WorkerPool struct {
	db       *gorm.DB
	config   *Config
	executor *Executor
	workers  []*Worker

	mu      sync.Mutex
	started bool
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(db *gorm.DB, cfg *Config, executor *Executor) *WorkerPool {
	return &WorkerPool{
		db:       db,
		config:   cfg,
		executor: executor,
		workers:  make([]*Worker, 0, cfg.WorkerCount),
	}
}

// Start spawns worker goroutines. Safe to call multiple times; subsequent
// calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true

	slog.Info("Starting ingestion worker pool", "worker_count", p.config.WorkerCount)
	for i := 0; i < p.config.WorkerCount; i++ {
		worker := NewWorker(fmt.Sprintf("worker-%d", i), p.db, p.config, p.executor)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}
	slog.Info("Worker pool started")
}

// Stop signals all workers to stop and waits for them to finish their
// current materials (graceful shutdown).
func (p *WorkerPool) Stop() {
	slog.Info("Stopping ingestion worker pool gracefully")
	for _, worker := range p.workers {
		worker.Stop()
	}
	slog.Info("Worker pool stopped")
}

// Health returns the pool's health snapshot.
func (p *WorkerPool) Health(ctx context.Context) *PoolHealth {
	var queueDepth int64
	if err := p.db.WithContext(ctx).Model(&models.SourceMaterial{}).
		Where("status = ?", models.MaterialPending).
		Count(&queueDepth).Error; err != nil {
		slog.Error("Failed to query queue depth for health check", "error", err)
	}

	health := &PoolHealth{
		QueueDepth:   queueDepth,
		TotalWorkers: len(p.workers),
	}
	for _, worker := range p.workers {
		stats := worker.Health()
		health.Workers = append(health.Workers, stats)
		if stats.Status == string(WorkerStatusWorking) {
			health.ActiveWorkers++
		}
	}
	return health
}
