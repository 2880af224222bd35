package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/huangang/taskforge/internal/authz"
	"github.com/huangang/taskforge/internal/metrics"
	"github.com/huangang/taskforge/internal/models"
	"github.com/huangang/taskforge/internal/store"
	"github.com/huangang/taskforge/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const reconcileLockName = "progress_reconcile"

// ProgressReconciler periodically recomputes every project's progress,
// repairing drift left by concurrent status updates.
type ProgressReconciler struct {
	db         *gorm.DB
	store      store.Store
	queue      TaskQueue
	metrics    *metrics.Metrics
	schedule   string
	instanceID string

	cronScheduler *cron.Cron
}

func NewProgressReconciler(db *gorm.DB, st store.Store, queue TaskQueue, m *metrics.Metrics, schedule string) *ProgressReconciler {
	host, _ := os.Hostname()
	return &ProgressReconciler{
		db:         db,
		store:      st,
		queue:      queue,
		metrics:    m,
		schedule:   schedule,
		instanceID: fmt.Sprintf("%s-%d", host, os.Getpid()),
	}
}

func (r *ProgressReconciler) StartScheduler() error {
	r.cronScheduler = cron.New()
	if _, err := r.cronScheduler.AddFunc(r.schedule, r.runScheduled); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", r.schedule, err)
	}
	r.cronScheduler.Start()
	logger.Infof("[Reconcile] Scheduler started (schedule: %s)", r.schedule)
	return nil
}

// StopScheduler waits for a running sweep to finish.
func (r *ProgressReconciler) StopScheduler() {
	if r.cronScheduler != nil {
		<-r.cronScheduler.Stop().Done()
	}
}

func (r *ProgressReconciler) runScheduled() {
	ctx := context.Background()
	now := time.Now()
	slot := now.UTC().Truncate(time.Minute).Format("2006-01-02T15:04")

	acquired, err := r.TryAcquireLock(ctx, slot, now.Add(time.Hour))
	if err != nil {
		logger.Errorf("[Reconcile] Failed to acquire lock for slot %s: %v", slot, err)
		return
	}
	if !acquired {
		logger.Debug().Str("slot", slot).Msg("[Reconcile] slot already claimed by another instance")
		return
	}

	n, err := r.EnqueueAll(ctx, "schedule")
	if err != nil {
		logger.Errorf("[Reconcile] Sweep failed after %d projects: %v", n, err)
		return
	}
	logger.Infof("[Reconcile] Enqueued %d projects", n)

	if err := r.ReleaseExpiredLocks(ctx, now); err != nil {
		logger.Errorf("[Reconcile] Failed to clean up expired locks: %v", err)
	}
}

// TryAcquireLock claims slot for this instance. It returns false when another
// instance already holds it.
func (r *ProgressReconciler) TryAcquireLock(ctx context.Context, slot string, expiresAt time.Time) (bool, error) {
	lock := models.SchedulerLock{
		LockName:  reconcileLockName,
		LockKey:   slot,
		LockedBy:  r.instanceID,
		LockedAt:  time.Now(),
		ExpiresAt: expiresAt,
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseExpiredLocks deletes reconcile lock rows that expired before now.
func (r *ProgressReconciler) ReleaseExpiredLocks(ctx context.Context, now time.Time) error {
	return r.db.WithContext(ctx).
		Where("lock_name = ? AND expires_at < ?", reconcileLockName, now).
		Delete(&models.SchedulerLock{}).Error
}

// EnqueueAll queues one reconcile job per project and returns how many were
// queued. A project whose previous job is still pending is skipped.
func (r *ProgressReconciler) EnqueueAll(ctx context.Context, trigger string) (int, error) {
	ids, err := r.store.ListProjectIDs(ctx)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, id := range ids {
		err := r.queue.Enqueue(ctx, &ReconcileTask{ProjectID: id, Trigger: trigger})
		if errors.Is(err, asynq.ErrDuplicateTask) {
			logger.Debug().Uint("project_id", id).Msg("[Reconcile] job already pending, skipped")
			continue
		}
		if err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// Process recomputes one project. A project deleted since the job was queued
// is skipped.
func (r *ProgressReconciler) Process(ctx context.Context, task *ReconcileTask) error {
	project, err := r.store.GetProject(ctx, task.ProjectID)
	if err != nil {
		r.metrics.ObserveReconcile("error")
		return err
	}
	if project == nil {
		r.metrics.ObserveReconcile("skipped")
		return nil
	}

	progress, err := authz.RecalculateProgress(ctx, r.store, task.ProjectID)
	if err != nil {
		r.metrics.ObserveReconcile("error")
		return err
	}
	r.metrics.ObserveReconcile("ok")
	r.metrics.ObserveRecalculation("reconcile")

	if progress != project.Progress {
		logger.Info().
			Uint("project_id", task.ProjectID).
			Int("from", project.Progress).
			Int("to", progress).
			Str("trigger", task.Trigger).
			Msg("[Reconcile] progress corrected")
	}
	return nil
}
