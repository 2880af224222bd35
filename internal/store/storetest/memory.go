// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/huangang/taskforge/internal/authz"
	"github.com/huangang/taskforge/internal/models"
	"github.com/huangang/taskforge/internal/store"
)

var _ store.Store = (*Memory)(nil)

var errMissing = errors.New("storetest: record does not exist")

// Memory keeps every record in maps guarded by a single mutex. Returned
// records are copies.
type Memory struct {
	mu       sync.Mutex
	nextID   uint
	users    map[string]bool
	projects map[uint]models.Project
	members  map[uint]models.ProjectMember
	tasks    map[uint]models.Task

	// FailListTasks, when set, is returned by ListTasks.
	FailListTasks error
}

func New() *Memory {
	return &Memory{
		users:    map[string]bool{},
		projects: map[uint]models.Project{},
		members:  map[uint]models.ProjectMember{},
		tasks:    map[uint]models.Task{},
	}
}

func (m *Memory) id() uint {
	m.nextID++
	return m.nextID
}

// AddUser registers usernames so UserExists reports them.
func (m *Memory) AddUser(usernames ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range usernames {
		m.users[u] = true
	}
}

func (m *Memory) UserExists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[username], nil
}

func (m *Memory) GetProject(_ context.Context, id uint) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) CreateProject(_ context.Context, project *models.Project) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *project
	p.ID = m.id()
	if p.Status == "" {
		p.Status = models.ProjectStatusActive
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.projects[p.ID] = p
	*project = p
	return &p, nil
}

func (m *Memory) UpdateProject(_ context.Context, id uint, fields map[string]interface{}) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, errMissing
	}
	for k, v := range fields {
		switch k {
		case "name":
			p.Name = v.(string)
		case "description":
			p.Description = v.(string)
		case "status":
			p.Status = v.(string)
		case "progress":
			p.Progress = v.(int)
		}
	}
	p.UpdatedAt = time.Now()
	m.projects[id] = p
	return &p, nil
}

func (m *Memory) ListProjectsForUser(_ context.Context, username string) ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	memberOf := map[uint]bool{}
	for _, mem := range m.members {
		if mem.Username == username {
			memberOf[mem.ProjectID] = true
		}
	}
	var out []models.Project
	for _, p := range m.projects {
		if p.OwnerID == username || memberOf[p.ID] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) ListProjectIDs(_ context.Context) ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint, 0, len(m.projects))
	for id := range m.projects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) DeleteProject(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tid, t := range m.tasks {
		if t.ProjectID == id {
			delete(m.tasks, tid)
		}
	}
	for mid, mem := range m.members {
		if mem.ProjectID == id {
			delete(m.members, mid)
		}
	}
	delete(m.projects, id)
	return nil
}

// PutMembership writes a membership row directly, bypassing every rule.
func (m *Memory) PutMembership(projectID uint, username, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, mem := range m.members {
		if mem.ProjectID == projectID && mem.Username == username {
			mem.Role = role
			m.members[id] = mem
			return
		}
	}
	id := m.id()
	m.members[id] = models.ProjectMember{ID: id, ProjectID: projectID, Username: username, Role: role, AssignedAt: time.Now()}
}

func (m *Memory) GetMembership(_ context.Context, projectID uint, username string) (*models.ProjectMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members {
		if mem.ProjectID == projectID && mem.Username == username {
			return &mem, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListMemberships(_ context.Context, projectID uint) ([]models.ProjectMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ProjectMember
	for _, mem := range m.members {
		if mem.ProjectID == projectID {
			out = append(out, mem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpsertMembership(ctx context.Context, projectID uint, username string, role authz.Role) (*models.ProjectMember, error) {
	m.PutMembership(projectID, username, string(role))
	return m.GetMembership(ctx, projectID, username)
}

func (m *Memory) DeleteMembership(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, id)
	return nil
}

func (m *Memory) GetTask(_ context.Context, id uint) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) ListTasks(_ context.Context, projectID uint) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailListTasks != nil {
		return nil, m.FailListTasks
	}
	var out []models.Task
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) InsertTask(_ context.Context, task *models.Task) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := *task
	t.ID = m.id()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.tasks[t.ID] = t
	return &t, nil
}

func (m *Memory) UpdateTask(_ context.Context, id uint, fields map[string]interface{}) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, errMissing
	}
	for k, v := range fields {
		switch k {
		case "title":
			t.Title = v.(string)
		case "description":
			t.Description = v.(string)
		case "status":
			t.Status = v.(string)
		case "priority":
			t.Priority = v.(string)
		case "assigned_to":
			switch a := v.(type) {
			case string:
				t.AssignedTo = &a
			case *string:
				t.AssignedTo = a
			default:
				t.AssignedTo = nil
			}
		}
	}
	t.UpdatedAt = time.Now()
	m.tasks[id] = t
	return &t, nil
}

func (m *Memory) DeleteTask(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

func (m *Memory) UnassignTasks(_ context.Context, projectID uint, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tasks {
		if t.ProjectID == projectID && t.IsAssignedTo(username) {
			t.AssignedTo = nil
			m.tasks[id] = t
		}
	}
	return nil
}
