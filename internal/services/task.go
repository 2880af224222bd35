package services

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/huangang/taskforge/internal/authz"
	"github.com/huangang/taskforge/internal/metrics"
	"github.com/huangang/taskforge/internal/models"
	"github.com/huangang/taskforge/internal/store"
)

type TaskService struct {
	store    store.Store
	resolver *authz.Resolver
	metrics  *metrics.Metrics
}

func NewTaskService(st store.Store, m *metrics.Metrics) *TaskService {
	return &TaskService{
		store:    st,
		resolver: authz.NewResolver(st),
		metrics:  m,
	}
}

type CreateTaskRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	AssignedTo  *string `json:"assigned_to"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
}

// UpdateTaskRequest carries only the fields the caller sent.
type UpdateTaskRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	AssignedTo  OptionalString `json:"assigned_to"`
	Status      *string        `json:"status"`
	Priority    *string        `json:"priority"`
}

func (r *UpdateTaskRequest) statusOnly() bool {
	return r.Status != nil && r.Title == nil && r.Description == nil &&
		r.Priority == nil && !r.AssignedTo.Set
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// OptionalString tells an absent JSON field apart from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// TaskResult is a task mutation's outcome. Progress is set whenever the
// mutation recomputed the project's progress.
type TaskResult struct {
	Task     *models.Task `json:"task,omitempty"`
	Progress *int         `json:"progress,omitempty"`
}

func (s *TaskService) List(ctx context.Context, username string, projectID uint) ([]models.Task, error) {
	m, _, err := s.resolver.Resolve(ctx, username, projectID)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireMember(m); err != nil {
		return nil, err
	}
	if !authz.CanViewTask(m) {
		return nil, authz.Forbidden("insufficient permission to view tasks")
	}
	return s.store.ListTasks(ctx, projectID)
}

func (s *TaskService) Get(ctx context.Context, username string, taskID uint) (*models.Task, error) {
	task, m, err := s.loadTask(ctx, username, taskID)
	if err != nil {
		return nil, err
	}
	if !authz.CanViewTask(m) {
		return nil, authz.Forbidden("insufficient permission to view tasks")
	}
	return task, nil
}

// Create adds a task to the project. Assigning to someone other than the
// creator needs the assignee to be a member and the creator to hold
// assign_task, checked in that order.
func (s *TaskService) Create(ctx context.Context, username string, projectID uint, req *CreateTaskRequest) (*TaskResult, error) {
	m, _, err := s.resolver.Resolve(ctx, username, projectID)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireMember(m); err != nil {
		return nil, err
	}
	if !authz.CanCreateTask(m) {
		return nil, authz.Forbidden("insufficient permission to create tasks")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, authz.BadRequest("title is required")
	}
	status, err := taskStatusOrDefault(req.Status)
	if err != nil {
		return nil, err
	}
	priority, err := taskPriorityOrDefault(req.Priority)
	if err != nil {
		return nil, err
	}

	assignee := normalizeAssignee(req.AssignedTo)
	if assignee != nil && *assignee != username {
		if err := s.requireAssignable(ctx, projectID, *assignee); err != nil {
			return nil, err
		}
		if !authz.CanAssignTask(m) {
			return nil, authz.Forbidden("insufficient permission to assign tasks to others")
		}
	}

	task, err := s.store.InsertTask(ctx, &models.Task{
		ProjectID:   projectID,
		Title:       title,
		Description: req.Description,
		AssignedTo:  assignee,
		Status:      status,
		Priority:    priority,
		CreatedBy:   username,
	})
	if err != nil {
		return nil, err
	}

	progress, err := s.recalculate(ctx, projectID, "create")
	if err != nil {
		return nil, err
	}
	return &TaskResult{Task: task, Progress: &progress}, nil
}

// Update edits non-status fields, reassignment included. A status sent along
// with the edit is applied too and recomputes progress. A body carrying only
// a status is the status-only action and follows its rule.
func (s *TaskService) Update(ctx context.Context, username string, taskID uint, req *UpdateTaskRequest) (*TaskResult, error) {
	if req.statusOnly() {
		return s.UpdateStatus(ctx, username, taskID, *req.Status)
	}

	task, m, err := s.loadTask(ctx, username, taskID)
	if err != nil {
		return nil, err
	}
	if !authz.CanEditTask(m, task, username) {
		return nil, authz.Forbidden("insufficient permission to edit this task")
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, authz.BadRequest("title cannot be empty")
		}
		fields["title"] = title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Priority != nil {
		if !models.ValidTaskPriority(*req.Priority) {
			return nil, authz.BadRequest("invalid priority")
		}
		fields["priority"] = *req.Priority
	}
	if req.Status != nil {
		if !models.ValidTaskStatus(*req.Status) {
			return nil, authz.BadRequest("invalid status")
		}
		fields["status"] = *req.Status
	}
	if req.AssignedTo.Set {
		next := normalizeAssignee(req.AssignedTo.Value)
		if !sameAssignee(task.AssignedTo, next) {
			if !authz.CanAssignTask(m) {
				return nil, authz.Forbidden("insufficient permission to reassign tasks")
			}
			if next != nil {
				if err := s.requireAssignable(ctx, task.ProjectID, *next); err != nil {
					return nil, err
				}
				fields["assigned_to"] = *next
			} else {
				fields["assigned_to"] = nil
			}
		}
	}

	if len(fields) == 0 {
		return &TaskResult{Task: task}, nil
	}

	updated, err := s.store.UpdateTask(ctx, taskID, fields)
	if err != nil {
		return nil, err
	}
	result := &TaskResult{Task: updated}
	if _, ok := fields["status"]; ok {
		progress, err := s.recalculate(ctx, task.ProjectID, "update")
		if err != nil {
			return nil, err
		}
		result.Progress = &progress
	}
	return result, nil
}

// UpdateStatus is the narrower status-only action; the assignee may always
// use it.
func (s *TaskService) UpdateStatus(ctx context.Context, username string, taskID uint, status string) (*TaskResult, error) {
	task, m, err := s.loadTask(ctx, username, taskID)
	if err != nil {
		return nil, err
	}
	if !authz.CanUpdateTaskStatus(m, task, username) {
		return nil, authz.Forbidden("insufficient permission to update task status")
	}
	if !models.ValidTaskStatus(status) {
		return nil, authz.BadRequest("invalid status")
	}

	updated, err := s.store.UpdateTask(ctx, taskID, map[string]interface{}{"status": status})
	if err != nil {
		return nil, err
	}
	progress, err := s.recalculate(ctx, task.ProjectID, "status")
	if err != nil {
		return nil, err
	}
	return &TaskResult{Task: updated, Progress: &progress}, nil
}

func (s *TaskService) Delete(ctx context.Context, username string, taskID uint) (*TaskResult, error) {
	task, m, err := s.loadTask(ctx, username, taskID)
	if err != nil {
		return nil, err
	}
	if !authz.CanDeleteTask(m) {
		return nil, authz.Forbidden("insufficient permission to delete tasks")
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return nil, err
	}
	progress, err := s.recalculate(ctx, task.ProjectID, "delete")
	if err != nil {
		return nil, err
	}
	return &TaskResult{Progress: &progress}, nil
}

// loadTask fetches the task and resolves the caller against its project,
// rejecting non-members.
func (s *TaskService) loadTask(ctx context.Context, username string, taskID uint) (*models.Task, authz.Membership, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, authz.Membership{}, err
	}
	if task == nil {
		return nil, authz.Membership{}, authz.NotFound("task not found")
	}
	m, _, err := s.resolver.Resolve(ctx, username, task.ProjectID)
	if err != nil {
		return nil, authz.Membership{}, err
	}
	if err := authz.RequireMember(m); err != nil {
		return nil, authz.Membership{}, err
	}
	return task, m, nil
}

func (s *TaskService) requireAssignable(ctx context.Context, projectID uint, assignee string) error {
	ok, err := s.resolver.IsMember(ctx, assignee, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return authz.BadRequest("assignee is not a member of this project")
	}
	return nil
}

func (s *TaskService) recalculate(ctx context.Context, projectID uint, trigger string) (int, error) {
	progress, err := authz.RecalculateProgress(ctx, s.store, projectID)
	if err != nil {
		return 0, err
	}
	s.metrics.ObserveRecalculation(trigger)
	return progress, nil
}

func taskStatusOrDefault(status string) (string, error) {
	if status == "" {
		return models.TaskStatusTodo, nil
	}
	if !models.ValidTaskStatus(status) {
		return "", authz.BadRequest("invalid status")
	}
	return status, nil
}

func taskPriorityOrDefault(priority string) (string, error) {
	if priority == "" {
		return models.TaskPriorityMedium, nil
	}
	if !models.ValidTaskPriority(priority) {
		return "", authz.BadRequest("invalid priority")
	}
	return priority, nil
}

// An empty or blank assignee means unassigned.
func normalizeAssignee(assignee *string) *string {
	if assignee == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*assignee)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
