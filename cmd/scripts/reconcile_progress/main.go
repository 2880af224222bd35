package main

import (
	"context"
	"flag"
	"os"

	"github.com/huangang/taskforge/internal/config"
	"github.com/huangang/taskforge/internal/models"
	"github.com/huangang/taskforge/internal/services"
	"github.com/huangang/taskforge/internal/store"
	"github.com/huangang/taskforge/pkg/logger"
)

// One-shot progress sweep over every project, run in-process without Redis.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger.Init(*level)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	db, err := models.Open(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	st := store.NewGormStore(db)
	queue := services.NewSyncQueue()
	reconciler := services.NewProgressReconciler(db, st, queue, nil, cfg.Reconcile.Schedule)
	queue.SetProcessor(reconciler.Process)

	n, err := reconciler.EnqueueAll(context.Background(), "manual")
	if err != nil {
		logger.Fatalf("Reconcile stopped after %d projects: %v", n, err)
	}
	logger.Infof("Reconciled %d projects", n)
}
