// Package store holds the persistence behind the authorization engine.
package store

import (
	"context"

	"github.com/huangang/taskforge/internal/authz"
	"github.com/huangang/taskforge/internal/models"
)

// Store is authz.Store plus the project and user queries the services need.
// Getters return (nil, nil) for absent records.
type Store interface {
	authz.Store

	UserExists(ctx context.Context, username string) (bool, error)

	CreateProject(ctx context.Context, project *models.Project) (*models.Project, error)
	ListProjectsForUser(ctx context.Context, username string) ([]models.Project, error)
	ListProjectIDs(ctx context.Context) ([]uint, error)
	// DeleteProject removes the project with its tasks and memberships.
	DeleteProject(ctx context.Context, id uint) error

	// UnassignTasks clears assigned_to on every task of the project assigned
	// to username.
	UnassignTasks(ctx context.Context, projectID uint, username string) error
}
