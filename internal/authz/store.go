package authz

import (
	"context"

	"github.com/huangang/taskforge/internal/models"
)

// Store is the data access the engine needs. Getters return (nil, nil) when
// the record does not exist; a non-nil error always means the lookup itself
// failed.
type Store interface {
	GetProject(ctx context.Context, id uint) (*models.Project, error)
	UpdateProject(ctx context.Context, id uint, fields map[string]interface{}) (*models.Project, error)

	GetMembership(ctx context.Context, projectID uint, username string) (*models.ProjectMember, error)
	ListMemberships(ctx context.Context, projectID uint) ([]models.ProjectMember, error)
	UpsertMembership(ctx context.Context, projectID uint, username string, role Role) (*models.ProjectMember, error)
	DeleteMembership(ctx context.Context, id uint) error

	GetTask(ctx context.Context, id uint) (*models.Task, error)
	ListTasks(ctx context.Context, projectID uint) ([]models.Task, error)
	InsertTask(ctx context.Context, task *models.Task) (*models.Task, error)
	UpdateTask(ctx context.Context, id uint, fields map[string]interface{}) (*models.Task, error)
	DeleteTask(ctx context.Context, id uint) error
}
