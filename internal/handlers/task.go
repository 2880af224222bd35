package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskforge/internal/metrics"
	"github.com/huangang/taskforge/internal/middleware"
	"github.com/huangang/taskforge/internal/services"
	"github.com/huangang/taskforge/pkg/response"
)

type TaskHandler struct {
	taskService *services.TaskService
	metrics     *metrics.Metrics
}

func NewTaskHandler(taskService *services.TaskService, m *metrics.Metrics) *TaskHandler {
	return &TaskHandler{taskService: taskService, metrics: m}
}

// GET /api/projects/:id/tasks
func (h *TaskHandler) List(c *gin.Context) {
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	tasks, err := h.taskService.List(c.Request.Context(), middleware.GetUsername(c), projectID)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Success(c, tasks)
}

// POST /api/projects/:id/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	projectID, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	var req services.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.taskService.Create(c.Request.Context(), middleware.GetUsername(c), projectID, &req)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Created(c, result)
}

// GET /api/tasks/:id
func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id", "task")
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), middleware.GetUsername(c), id)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Success(c, task)
}

// PUT /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "task")
	if !ok {
		return
	}

	var req services.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.taskService.Update(c.Request.Context(), middleware.GetUsername(c), id, &req)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Success(c, result)
}

// PATCH /api/tasks/:id/status
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id", "task")
	if !ok {
		return
	}

	var req services.UpdateTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.taskService.UpdateStatus(c.Request.Context(), middleware.GetUsername(c), id, req.Status)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Success(c, result)
}

// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "task")
	if !ok {
		return
	}

	result, err := h.taskService.Delete(c.Request.Context(), middleware.GetUsername(c), id)
	if err != nil {
		respondError(c, h.metrics, err)
		return
	}
	response.Deleted(c, result)
}
