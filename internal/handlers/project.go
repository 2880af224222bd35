package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskforge/internal/metrics"
	"github.com/huangang/taskforge/internal/middleware"
	"github.com/huangang/taskforge/internal/services"
	"github.com/huangang/taskforge/pkg/response"
)

type ProjectHandler struct {
	projectService   *services.ProjectService
	analyticsService *services.AnalyticsService
	metrics          *metrics.Metrics
}

func NewProjectHandler(projectService *services.ProjectService, analyticsService *services.AnalyticsService, m *metrics.Metrics) *ProjectHandler {
	return &ProjectHandler{
		projectService:   projectService,
		analyticsService: analyticsService,
		metrics:          m,
	}
}

// List returns the caller's projects, paginated
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	var req services.ProjectListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.projectService.List(c.Request.Context(), middleware.GetUsername(c), &req)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Success(c, resp)
}

// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	project, err := h.projectService.Get(c.Request.Context(), middleware.GetUsername(c), id)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Success(c, project)
}

// Create makes the caller the owner of a new project
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), middleware.GetUsername(c), &req)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Created(c, project)
}

// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	var req services.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), middleware.GetUsername(c), id, &req)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Success(c, project)
}

// Delete removes the project with its tasks and team
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	if err := h.projectService.Delete(c.Request.Context(), middleware.GetUsername(c), id); err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Deleted(c, nil)
}

// GET /api/projects/:id/permissions
func (h *ProjectHandler) Permissions(c *gin.Context) {
	id, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	perms, err := h.projectService.Permissions(c.Request.Context(), middleware.GetUsername(c), id)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Success(c, perms)
}

// GET /api/projects/:id/analytics
func (h *ProjectHandler) Analytics(c *gin.Context) {
	id, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	out, err := h.analyticsService.Project(c.Request.Context(), middleware.GetUsername(c), id)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Success(c, out)
}
