package queue

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/courseforge/courseforge/pkg/models"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes materials.
type Worker struct {
	id       string
	db       *gorm.DB
	config   *Config
	executor *Executor
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu                 sync.RWMutex
	status             WorkerStatus
	currentMaterialID  string
	materialsProcessed int
	lastActivity       time.Time
}

// NewWorker creates a queue worker.
func NewWorker(id string, db *gorm.DB, cfg *Config, executor *Executor) *Worker {
	return &Worker{
		id:           id,
		db:           db,
		config:       cfg,
		executor:     executor,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                 w.id,
		Status:             string(w.status),
		CurrentMaterialID:  w.currentMaterialID,
		MaterialsProcessed: w.materialsProcessed,
		LastActivity:       w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("Ingestion worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoMaterialsAvailable) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing material", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

// pollInterval applies jitter so concurrent workers do not poll in lockstep.
func (w *Worker) pollInterval() time.Duration {
	if w.config.PollIntervalJitter <= 0 {
		return w.config.PollInterval
	}
	jitter := time.Duration(rand.Int64N(int64(w.config.PollIntervalJitter)))
	return w.config.PollInterval + jitter
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

func (w *Worker) pollAndProcess(ctx context.Context) error {
	material, err := w.claimNext(ctx)
	if err != nil {
		return err
	}

	log := slog.With("material_id", material.ID, "worker_id", w.id, "source_type", material.SourceType)
	log.Info("Material claimed")

	w.setStatus(WorkerStatusWorking, material.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	processCtx, cancel := context.WithTimeout(ctx, w.config.ProcessTimeout)
	defer cancel()

	w.executor.Execute(processCtx, material)

	w.mu.Lock()
	w.materialsProcessed++
	w.mu.Unlock()
	log.Info("Material processed")
	return nil
}

// claimNext atomically flips the oldest pending material to processing.
// SKIP LOCKED keeps concurrent workers from fighting over the same row.
func (w *Worker) claimNext(ctx context.Context) (*models.SourceMaterial, error) {
	var material models.SourceMaterial

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", models.MaterialPending).
			Order("created_at").
			First(&material).Error
		if err != nil {
			return err
		}
		return tx.Model(&models.SourceMaterial{}).
			Where("id = ?", material.ID).
			Update("status", models.MaterialProcessing).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoMaterialsAvailable
		}
		return nil, err
	}
	return &material, nil
}

func (w *Worker) setStatus(status WorkerStatus, materialID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentMaterialID = materialID
	w.lastActivity = time.Now()
}
