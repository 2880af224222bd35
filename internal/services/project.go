package services

import (
	"context"
	"strings"

	"github.com/huangang/taskforge/internal/authz"
	"github.com/huangang/taskforge/internal/models"
	"github.com/huangang/taskforge/internal/store"
)

type ProjectService struct {
	store    store.Store
	resolver *authz.Resolver
}

func NewProjectService(st store.Store) *ProjectService {
	return &ProjectService{store: st, resolver: authz.NewResolver(st)}
}

type ProjectListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Name     string `form:"name"`
	Status   string `form:"status"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Status      string `json:"status" binding:"omitempty,oneof=active on_hold completed archived"`
}

// UpdateProjectRequest cannot touch owner_id or progress.
type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status" binding:"omitempty,oneof=active on_hold completed archived"`
}

type ProjectPermissions struct {
	ProjectID   uint               `json:"project_id"`
	Role        authz.Role         `json:"role"`
	IsOwner     bool               `json:"is_owner"`
	Permissions []authz.Permission `json:"permissions"`
}

// List returns the projects the user owns or belongs to, newest first.
func (s *ProjectService) List(ctx context.Context, username string, req *ProjectListRequest) (*ProjectListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	all, err := s.store.ListProjectsForUser(ctx, username)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.Project, 0, len(all))
	name := strings.ToLower(req.Name)
	for _, p := range all {
		if name != "" && !strings.Contains(strings.ToLower(p.Name), name) {
			continue
		}
		if req.Status != "" && p.Status != req.Status {
			continue
		}
		filtered = append(filtered, p)
	}

	total := len(filtered)
	start := (req.Page - 1) * req.PageSize
	if start > total {
		start = total
	}
	end := start + req.PageSize
	if end > total {
		end = total
	}

	return &ProjectListResponse{
		Total:    int64(total),
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    filtered[start:end],
	}, nil
}

func (s *ProjectService) Get(ctx context.Context, username string, id uint) (*models.Project, error) {
	project, err := s.authorize(ctx, username, id, authz.PermViewProject, "insufficient permission to view this project")
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Create makes the caller the owner of a new project. No membership row is
// written for the owner.
func (s *ProjectService) Create(ctx context.Context, username string, req *CreateProjectRequest) (*models.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, authz.BadRequest("name is required")
	}
	status := req.Status
	if status == "" {
		status = models.ProjectStatusActive
	}
	return s.store.CreateProject(ctx, &models.Project{
		Name:        name,
		Description: req.Description,
		Status:      status,
		OwnerID:     username,
	})
}

func (s *ProjectService) Update(ctx context.Context, username string, id uint, req *UpdateProjectRequest) (*models.Project, error) {
	project, err := s.authorize(ctx, username, id, authz.PermEditProject, "insufficient permission to edit this project")
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, authz.BadRequest("name cannot be empty")
		}
		fields["name"] = name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if len(fields) == 0 {
		return project, nil
	}
	return s.store.UpdateProject(ctx, id, fields)
}

// Delete removes the project together with its tasks and memberships.
func (s *ProjectService) Delete(ctx context.Context, username string, id uint) error {
	if _, err := s.authorize(ctx, username, id, authz.PermDeleteProject, "only the project owner can delete this project"); err != nil {
		return err
	}
	return s.store.DeleteProject(ctx, id)
}

// Permissions reports the caller's resolved role in the project and what it
// grants.
func (s *ProjectService) Permissions(ctx context.Context, username string, id uint) (*ProjectPermissions, error) {
	m, _, err := s.resolver.Resolve(ctx, username, id)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireMember(m); err != nil {
		return nil, err
	}
	return &ProjectPermissions{
		ProjectID:   id,
		Role:        m.EffectiveRole(),
		IsOwner:     m.IsOwner(),
		Permissions: authz.PermissionsFor(m.EffectiveRole()),
	}, nil
}

func (s *ProjectService) authorize(ctx context.Context, username string, id uint, perm authz.Permission, denied string) (*models.Project, error) {
	m, project, err := s.resolver.Resolve(ctx, username, id)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireMember(m); err != nil {
		return nil, err
	}
	if !m.Can(perm) {
		return nil, authz.Forbidden(denied)
	}
	return project, nil
}
