package authz

import (
	"context"
	"fmt"
	"math"

	"github.com/huangang/taskforge/internal/models"
)

// ComputeProgress returns the rounded percentage of completed tasks, or 0
// for an empty project.
func ComputeProgress(tasks []models.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for i := range tasks {
		if tasks[i].Status == models.TaskStatusCompleted {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(tasks))))
}

// RecalculateProgress recomputes the project's progress from all of its
// tasks, persists it and returns the new value.
func RecalculateProgress(ctx context.Context, store Store, projectID uint) (int, error) {
	tasks, err := store.ListTasks(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("list tasks of project %d: %w", projectID, err)
	}
	progress := ComputeProgress(tasks)
	if _, err := store.UpdateProject(ctx, projectID, map[string]interface{}{"progress": progress}); err != nil {
		return 0, fmt.Errorf("update progress of project %d: %w", projectID, err)
	}
	return progress, nil
}
