package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskforge/internal/metrics"
	"github.com/huangang/taskforge/internal/middleware"
	"github.com/huangang/taskforge/internal/services"
	"github.com/huangang/taskforge/pkg/response"
)

// ProjectMemberHandler exposes the project team. Mutations are owner-only.
type ProjectMemberHandler struct {
	teamService *services.TeamService
	metrics     *metrics.Metrics
}

func NewProjectMemberHandler(teamService *services.TeamService, m *metrics.Metrics) *ProjectMemberHandler {
	return &ProjectMemberHandler{teamService: teamService, metrics: m}
}

// GET /api/projects/:id/members
func (h *ProjectMemberHandler) List(c *gin.Context) {
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	team, err := h.teamService.List(c.Request.Context(), middleware.GetUsername(c), projectID)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Success(c, team)
}

// POST /api/projects/:id/members
func (h *ProjectMemberHandler) Add(c *gin.Context) {
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	var req services.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	member, err := h.teamService.Add(c.Request.Context(), middleware.GetUsername(c), projectID, &req)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Created(c, member)
}

// PUT /api/projects/:id/members/:username
func (h *ProjectMemberHandler) UpdateRole(c *gin.Context) {
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	var req services.UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	member, err := h.teamService.UpdateRole(c.Request.Context(), middleware.GetUsername(c), projectID, c.Param("username"), &req)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Success(c, member)
}

// DELETE /api/projects/:id/members/:username
func (h *ProjectMemberHandler) Remove(c *gin.Context) {
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	if err := h.teamService.Remove(c.Request.Context(), middleware.GetUsername(c), projectID, c.Param("username")); err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Deleted(c, nil)
}
