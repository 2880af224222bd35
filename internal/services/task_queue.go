package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/huangang/taskforge/internal/config"
	"github.com/huangang/taskforge/pkg/logger"
)

const TaskTypeReconcileProgress = "progress:reconcile"

// ReconcileTask asks for one project's progress to be recomputed from its
// tasks.
type ReconcileTask struct {
	ProjectID uint   `json:"project_id"`
	Trigger   string `json:"trigger"` // schedule, manual
}

// ReconcileFunc handles one reconcile job.
type ReconcileFunc func(context.Context, *ReconcileTask) error

// TaskQueue carries reconcile jobs to whoever processes them.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *ReconcileTask) error
	// IsAsync reports whether Enqueue returns before the job has run.
	IsAsync() bool
	Close() error
}

// NewTaskQueue picks the asynq queue when Redis is enabled and reachable and
// the in-process queue otherwise.
func NewTaskQueue(cfg *config.RedisConfig) TaskQueue {
	if !cfg.Enabled {
		logger.Infof("[TaskQueue] Redis disabled, reconcile jobs run inline")
		return NewSyncQueue()
	}
	queue, err := NewAsyncQueue(cfg)
	if err != nil {
		logger.Warnf("[TaskQueue] Redis at %s unavailable, reconcile jobs run inline: %v", cfg.Addr, err)
		return NewSyncQueue()
	}
	logger.Infof("[TaskQueue] Reconcile jobs go through Redis at %s", cfg.Addr)
	return queue
}

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue hands jobs to asynq; a Worker runs them.
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue fails when Redis cannot be reached.
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisClientOpt(cfg)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		return nil, fmt.Errorf("reach redis: %w", err)
	}

	return &AsyncQueue{client: asynq.NewClient(opt)}, nil
}

// Enqueue rejects a second job for the same project and trigger within a
// minute with asynq.ErrDuplicateTask, so overlapping sweeps collapse.
func (q *AsyncQueue) Enqueue(ctx context.Context, task *ReconcileTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	info, err := q.client.EnqueueContext(ctx,
		asynq.NewTask(TaskTypeReconcileProgress, payload),
		asynq.Queue(reconcileQueue),
		asynq.MaxRetry(reconcileMaxRetry),
		asynq.Unique(time.Minute),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Uint("project_id", task.ProjectID).Msg("[AsyncQueue] reconcile enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error { return q.client.Close() }

// SyncQueue runs each job in the caller's goroutine and returns its error.
type SyncQueue struct {
	process ReconcileFunc
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(process ReconcileFunc) {
	q.process = process
}

func (q *SyncQueue) Enqueue(ctx context.Context, task *ReconcileTask) error {
	if q.process == nil {
		logger.Warnf("[SyncQueue] no processor set, dropping reconcile of project %d", task.ProjectID)
		return nil
	}
	return q.process(ctx, task)
}

func (q *SyncQueue) IsAsync() bool { return false }

func (q *SyncQueue) Close() error { return nil }
