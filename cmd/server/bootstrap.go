package main

import (
	"github.com/huangang/taskforge/internal/config"
	"github.com/huangang/taskforge/internal/handlers"
	"github.com/huangang/taskforge/internal/metrics"
	"github.com/huangang/taskforge/internal/middleware"
	"github.com/huangang/taskforge/internal/models"
	"github.com/huangang/taskforge/internal/services"
	"github.com/huangang/taskforge/internal/store"
	"github.com/huangang/taskforge/internal/utils"
	"github.com/huangang/taskforge/pkg/logger"
)

// appServices holds everything the router and shutdown need.
type appServices struct {
	cfg         *config.Config
	metrics     *metrics.Metrics
	taskQueue   services.TaskQueue
	worker      *services.Worker
	reconciler  *services.ProgressReconciler
	authLimiter *middleware.RateLimiter

	authHandler    *handlers.AuthHandler
	projectHandler *handlers.ProjectHandler
	memberHandler  *handlers.ProjectMemberHandler
	taskHandler    *handlers.TaskHandler
	healthHandler  *handlers.HealthHandler
}

// bootstrap opens the database and wires services, the reconcile queue and
// its scheduler.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	db, err := models.Open(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	m := metrics.New()
	if sqlDB, err := db.DB(); err == nil {
		if err := m.RegisterDB(sqlDB); err != nil {
			logger.Warn().Err(err).Msg("Failed to register DB stats collector")
		}
	}

	st := store.NewGormStore(db)

	taskQueue := services.NewTaskQueue(&cfg.Redis)
	reconciler := services.NewProgressReconciler(db, st, taskQueue, m, cfg.Reconcile.Schedule)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(reconciler.Process)
	}

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(reconciler.Process)
			if err := worker.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start worker")
			}
		}
	}

	if cfg.Reconcile.Enabled {
		if err := reconciler.StartScheduler(); err != nil {
			logger.Fatalf("Failed to start reconcile scheduler: %v", err)
		}
	}

	return &appServices{
		cfg:         cfg,
		metrics:     m,
		taskQueue:   taskQueue,
		worker:      worker,
		reconciler:  reconciler,
		authLimiter: middleware.NewRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst),

		authHandler: handlers.NewAuthHandler(services.NewAuthService(db, &cfg.JWT, &cfg.LDAP)),
		projectHandler: handlers.NewProjectHandler(
			services.NewProjectService(st),
			services.NewAnalyticsService(st),
			m,
		),
		memberHandler: handlers.NewProjectMemberHandler(services.NewTeamService(st), m),
		taskHandler:   handlers.NewTaskHandler(services.NewTaskService(st, m), m),
		healthHandler: handlers.NewHealthHandler(db, taskQueue),
	}
}

// shutdown stops the scheduler before the queue so no sweep enqueues onto a
// closed client.
func (s *appServices) shutdown() {
	s.reconciler.StopScheduler()
	s.authLimiter.Stop()
	logger.Info().Msg("Schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
