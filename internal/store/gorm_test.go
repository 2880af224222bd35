package store

import (
	"context"
	"testing"

	"github.com/huangang/taskforge/internal/authz"
	"github.com/huangang/taskforge/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	return NewGormStore(db)
}

func TestGormStore_AbsentRecordsAreNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.GetProject(ctx, 99)
	if p != nil || err != nil {
		t.Errorf("GetProject(absent) = %v, %v; expected nil, nil", p, err)
	}
	m, err := s.GetMembership(ctx, 99, "bob")
	if m != nil || err != nil {
		t.Errorf("GetMembership(absent) = %v, %v; expected nil, nil", m, err)
	}
	task, err := s.GetTask(ctx, 99)
	if task != nil || err != nil {
		t.Errorf("GetTask(absent) = %v, %v; expected nil, nil", task, err)
	}
}

func TestGormStore_UpsertMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.CreateProject(ctx, &models.Project{Name: "core", OwnerID: "alice"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}

	first, err := s.UpsertMembership(ctx, p.ID, "bob", authz.RoleDeveloper)
	if err != nil {
		t.Fatalf("UpsertMembership() error = %v", err)
	}
	second, err := s.UpsertMembership(ctx, p.ID, "bob", authz.RoleManager)
	if err != nil {
		t.Fatalf("UpsertMembership() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("upsert created a second row: %d vs %d", first.ID, second.ID)
	}
	if second.Role != string(authz.RoleManager) {
		t.Errorf("Role = %q, expected %q", second.Role, authz.RoleManager)
	}

	members, err := s.ListMemberships(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListMemberships() error = %v", err)
	}
	if len(members) != 1 {
		t.Errorf("ListMemberships() returned %d rows, expected 1", len(members))
	}
}

func TestGormStore_TasksAndUnassign(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, &models.Project{Name: "core", OwnerID: "alice"})

	bob := "bob"
	task, err := s.InsertTask(ctx, &models.Task{ProjectID: p.ID, Title: "a", AssignedTo: &bob, Status: models.TaskStatusTodo})
	if err != nil {
		t.Fatalf("InsertTask() error = %v", err)
	}

	updated, err := s.UpdateTask(ctx, task.ID, map[string]interface{}{"status": models.TaskStatusCompleted})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if updated.Status != models.TaskStatusCompleted {
		t.Errorf("Status = %q, expected %q", updated.Status, models.TaskStatusCompleted)
	}

	if err := s.UnassignTasks(ctx, p.ID, "bob"); err != nil {
		t.Fatalf("UnassignTasks() error = %v", err)
	}
	got, _ := s.GetTask(ctx, task.ID)
	if got.AssignedTo != nil {
		t.Errorf("AssignedTo = %q, expected nil", *got.AssignedTo)
	}

	progress, err := authz.RecalculateProgress(ctx, s, p.ID)
	if err != nil {
		t.Fatalf("RecalculateProgress() error = %v", err)
	}
	if progress != 100 {
		t.Errorf("progress = %d, expected 100", progress)
	}
	reloaded, _ := s.GetProject(ctx, p.ID)
	if reloaded.Progress != 100 {
		t.Errorf("persisted progress = %d, expected 100", reloaded.Progress)
	}
}

func TestGormStore_ListProjectsForUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owned, _ := s.CreateProject(ctx, &models.Project{Name: "owned", OwnerID: "bob"})
	joined, _ := s.CreateProject(ctx, &models.Project{Name: "joined", OwnerID: "alice"})
	s.CreateProject(ctx, &models.Project{Name: "other", OwnerID: "alice"})
	if _, err := s.UpsertMembership(ctx, joined.ID, "bob", authz.RoleViewer); err != nil {
		t.Fatal(err)
	}

	projects, err := s.ListProjectsForUser(ctx, "bob")
	if err != nil {
		t.Fatalf("ListProjectsForUser() error = %v", err)
	}
	ids := map[uint]bool{}
	for _, p := range projects {
		ids[p.ID] = true
	}
	if len(projects) != 2 || !ids[owned.ID] || !ids[joined.ID] {
		t.Errorf("ListProjectsForUser(bob) = %v, expected projects %d and %d", projects, owned.ID, joined.ID)
	}
}

func TestGormStore_DeleteProjectCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, &models.Project{Name: "core", OwnerID: "alice"})
	s.UpsertMembership(ctx, p.ID, "bob", authz.RoleDeveloper)
	task, _ := s.InsertTask(ctx, &models.Task{ProjectID: p.ID, Title: "a"})

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if got, _ := s.GetProject(ctx, p.ID); got != nil {
		t.Error("project should be gone")
	}
	if got, _ := s.GetTask(ctx, task.ID); got != nil {
		t.Error("task should be gone")
	}
	if m, _ := s.GetMembership(ctx, p.ID, "bob"); m != nil {
		t.Error("membership should be gone")
	}
}

func TestGormStore_UserExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.db.Create(&models.User{Username: "carol", IsActive: true}).Error; err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		username string
		want     bool
	}{{"carol", true}, {"dave", false}} {
		got, err := s.UserExists(ctx, tt.username)
		if err != nil {
			t.Fatalf("UserExists() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("UserExists(%q) = %v, expected %v", tt.username, got, tt.want)
		}
	}
}
