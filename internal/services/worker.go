package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/huangang/taskforge/internal/config"
	"github.com/huangang/taskforge/pkg/logger"
)

const (
	reconcileQueue       = "reconcile"
	reconcileConcurrency = 4
	reconcileMaxRetry    = 3
)

// Worker consumes progress:reconcile jobs from Redis.
type Worker struct {
	server  *asynq.Server
	process ReconcileFunc

	mu      sync.Mutex
	started bool
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	w := &Worker{}
	w.server = asynq.NewServer(redisClientOpt(cfg), asynq.Config{
		Concurrency:     reconcileConcurrency,
		Queues:          map[string]int{reconcileQueue: 1},
		RetryDelayFunc:  reconcileRetryDelay,
		ShutdownTimeout: 10 * time.Second,
		ErrorHandler:    asynq.ErrorHandlerFunc(reportReconcileFailure),
	})
	return w
}

func (w *Worker) SetProcessor(process ReconcileFunc) {
	w.process = process
}

// Start begins polling in the background. Calling it twice is a no-op.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return nil
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeReconcileProgress, w.handleReconcileTask)
	if err := w.server.Start(mux); err != nil {
		return fmt.Errorf("start reconcile worker: %w", err)
	}
	w.started = true
	logger.Infof("[Worker] Consuming %q (concurrency %d)", reconcileQueue, reconcileConcurrency)
	return nil
}

// Stop waits up to the shutdown timeout for in-flight jobs.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	w.server.Shutdown()
	w.started = false
	logger.Infof("[Worker] Stopped")
}

func (w *Worker) handleReconcileTask(ctx context.Context, t *asynq.Task) error {
	var task ReconcileTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode reconcile task: %v: %w", err, asynq.SkipRetry)
	}

	if w.process == nil {
		logger.Warnf("[Worker] no processor set, dropping reconcile of project %d", task.ProjectID)
		return nil
	}
	return w.process(ctx, &task)
}

// reconcileRetryDelay backs off linearly; a later sweep repairs anything that
// still fails.
func reconcileRetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	return time.Duration(n+1) * 10 * time.Second
}

func reportReconcileFailure(ctx context.Context, t *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	logger.Error().
		Err(err).
		Str("type", t.Type()).
		Int("retried", retried).
		Int("max_retry", maxRetry).
		Msg("[Worker] reconcile job failed")
}
