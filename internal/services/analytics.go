package services

import (
	"context"

	"github.com/huangang/taskforge/internal/authz"
	"github.com/huangang/taskforge/internal/models"
	"github.com/huangang/taskforge/internal/store"
	"golang.org/x/sync/errgroup"
)

type AnalyticsService struct {
	store    store.Store
	resolver *authz.Resolver
}

func NewAnalyticsService(st store.Store) *AnalyticsService {
	return &AnalyticsService{store: st, resolver: authz.NewResolver(st)}
}

type ProjectAnalytics struct {
	ProjectID      uint           `json:"project_id"`
	Progress       int            `json:"progress"`
	TotalTasks     int            `json:"total_tasks"`
	CompletedTasks int            `json:"completed_tasks"`
	ByStatus       map[string]int `json:"by_status"`
	ByPriority     map[string]int `json:"by_priority"`
	ByAssignee     []AssigneeLoad `json:"by_assignee"`
	MemberCount    int            `json:"member_count"`
	RoleCounts     map[string]int `json:"role_counts"`
}

type AssigneeLoad struct {
	Username  string `json:"username"` // empty for unassigned tasks
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

// Project summarizes the project's tasks and team. Progress is computed from
// the current task set rather than read from the project row.
func (s *AnalyticsService) Project(ctx context.Context, username string, projectID uint) (*ProjectAnalytics, error) {
	m, project, err := s.resolver.Resolve(ctx, username, projectID)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireMember(m); err != nil {
		return nil, err
	}
	if !m.Can(authz.PermViewAnalytics) {
		return nil, authz.Forbidden("insufficient permission to view analytics")
	}

	var (
		tasks   []models.Task
		members []models.ProjectMember
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		tasks, err = s.store.ListTasks(egCtx, projectID)
		return err
	})
	eg.Go(func() error {
		var err error
		members, err = s.store.ListMemberships(egCtx, projectID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := &ProjectAnalytics{
		ProjectID:  projectID,
		Progress:   authz.ComputeProgress(tasks),
		TotalTasks: len(tasks),
		ByStatus: map[string]int{
			models.TaskStatusTodo:       0,
			models.TaskStatusInProgress: 0,
			models.TaskStatusCompleted:  0,
		},
		ByPriority: map[string]int{
			models.TaskPriorityLow:    0,
			models.TaskPriorityMedium: 0,
			models.TaskPriorityHigh:   0,
		},
		RoleCounts: map[string]int{string(authz.RoleOwner): 1},
	}

	loads := map[string]*AssigneeLoad{}
	var order []string
	for _, t := range tasks {
		out.ByStatus[t.Status]++
		out.ByPriority[t.Priority]++
		done := t.Status == models.TaskStatusCompleted
		if done {
			out.CompletedTasks++
		}

		assignee := ""
		if t.AssignedTo != nil {
			assignee = *t.AssignedTo
		}
		load, ok := loads[assignee]
		if !ok {
			load = &AssigneeLoad{Username: assignee}
			loads[assignee] = load
			order = append(order, assignee)
		}
		load.Total++
		if done {
			load.Completed++
		}
	}
	out.ByAssignee = make([]AssigneeLoad, 0, len(order))
	for _, u := range order {
		out.ByAssignee = append(out.ByAssignee, *loads[u])
	}

	out.MemberCount = 1
	for _, row := range members {
		if row.Username == project.OwnerID {
			continue
		}
		out.MemberCount++
		out.RoleCounts[row.Role]++
	}
	return out, nil
}
