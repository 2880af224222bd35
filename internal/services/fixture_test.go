package services

import (
	"context"
	"errors"
	"testing"

	"github.com/huangang/taskforge/internal/models"
	"github.com/huangang/taskforge/internal/store/storetest"
)

// newTeam builds a project owned by alice with dave as manager, bob as
// developer and carol as viewer. erin exists but is not a member.
func newTeam(t *testing.T) (*storetest.Memory, uint) {
	t.Helper()
	st := storetest.New()
	st.AddUser("alice", "bob", "carol", "dave", "erin")

	project, err := st.CreateProject(context.Background(), &models.Project{Name: "Apollo", OwnerID: "alice"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	st.PutMembership(project.ID, "dave", "manager")
	st.PutMembership(project.ID, "bob", "developer")
	st.PutMembership(project.ID, "carol", "viewer")
	return st, project.ID
}

func addTask(t *testing.T, st *storetest.Memory, projectID uint, status string, assignee *string) *models.Task {
	t.Helper()
	task, err := st.InsertTask(context.Background(), &models.Task{
		ProjectID:  projectID,
		Title:      "task",
		Status:     status,
		Priority:   models.TaskPriorityMedium,
		AssignedTo: assignee,
		CreatedBy:  "alice",
	})
	if err != nil {
		t.Fatalf("InsertTask() error = %v", err)
	}
	return task
}

func strPtr(s string) *string { return &s }

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if kind == nil {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return
	}
	if !errors.Is(err, kind) {
		t.Fatalf("error = %v, expected kind %v", err, kind)
	}
}

func projectProgress(t *testing.T, st *storetest.Memory, projectID uint) int {
	t.Helper()
	p, err := st.GetProject(context.Background(), projectID)
	if err != nil || p == nil {
		t.Fatalf("GetProject() = %v, %v", p, err)
	}
	return p.Progress
}
