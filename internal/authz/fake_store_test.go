package authz

import (
	"context"
	"errors"
	"sort"

	"github.com/huangang/taskforge/internal/models"
)

type memStore struct {
	projects map[uint]*models.Project
	members  map[uint]*models.ProjectMember
	tasks    map[uint]*models.Task
	nextID   uint

	listTasksErr    error
	membershipReads int
}

func newMemStore() *memStore {
	return &memStore{
		projects: map[uint]*models.Project{},
		members:  map[uint]*models.ProjectMember{},
		tasks:    map[uint]*models.Task{},
	}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *memStore) addProject(owner string) *models.Project {
	p := &models.Project{ID: s.id(), Name: "p", OwnerID: owner, Status: models.ProjectStatusActive}
	s.projects[p.ID] = p
	return p
}

func (s *memStore) addMember(projectID uint, username string, role string) {
	m := &models.ProjectMember{ID: s.id(), ProjectID: projectID, Username: username, Role: role}
	s.members[m.ID] = m
}

func (s *memStore) addTask(projectID uint, status string, assignee *string) *models.Task {
	t := &models.Task{ID: s.id(), ProjectID: projectID, Title: "t", Status: status, AssignedTo: assignee}
	s.tasks[t.ID] = t
	return t
}

func (s *memStore) GetProject(_ context.Context, id uint) (*models.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) UpdateProject(_ context.Context, id uint, fields map[string]interface{}) (*models.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, errors.New("no such project")
	}
	if v, ok := fields["progress"]; ok {
		p.Progress = v.(int)
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) GetMembership(_ context.Context, projectID uint, username string) (*models.ProjectMember, error) {
	s.membershipReads++
	for _, m := range s.members {
		if m.ProjectID == projectID && m.Username == username {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListMemberships(_ context.Context, projectID uint) ([]models.ProjectMember, error) {
	var out []models.ProjectMember
	for _, m := range s.members {
		if m.ProjectID == projectID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memStore) UpsertMembership(ctx context.Context, projectID uint, username string, role Role) (*models.ProjectMember, error) {
	if m, _ := s.GetMembership(ctx, projectID, username); m != nil {
		s.members[m.ID].Role = string(role)
		m.Role = string(role)
		return m, nil
	}
	s.addMember(projectID, username, string(role))
	return s.GetMembership(ctx, projectID, username)
}

func (s *memStore) DeleteMembership(_ context.Context, id uint) error {
	delete(s.members, id)
	return nil
}

func (s *memStore) GetTask(_ context.Context, id uint) (*models.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) ListTasks(_ context.Context, projectID uint) ([]models.Task, error) {
	if s.listTasksErr != nil {
		return nil, s.listTasksErr
	}
	var out []models.Task
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) InsertTask(_ context.Context, task *models.Task) (*models.Task, error) {
	cp := *task
	cp.ID = s.id()
	s.tasks[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *memStore) UpdateTask(_ context.Context, id uint, fields map[string]interface{}) (*models.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, errors.New("no such task")
	}
	if v, ok := fields["status"]; ok {
		t.Status = v.(string)
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) DeleteTask(_ context.Context, id uint) error {
	delete(s.tasks, id)
	return nil
}
