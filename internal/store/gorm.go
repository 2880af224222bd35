package store

import (
	"context"
	"errors"
	"time"

	"github.com/huangang/taskforge/internal/authz"
	"github.com/huangang/taskforge/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetProject(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

func (s *GormStore) UpdateProject(ctx context.Context, id uint, fields map[string]interface{}) (*models.Project, error) {
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Project{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return nil, err
	}
	var project models.Project
	if err := db.First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *GormStore) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjectsForUser returns projects owned by username or where username
// holds a membership row, newest first.
func (s *GormStore) ListProjectsForUser(ctx context.Context, username string) ([]models.Project, error) {
	var projects []models.Project
	memberOf := s.db.Model(&models.ProjectMember{}).Select("project_id").Where("username = ?", username)
	err := s.db.WithContext(ctx).
		Where("owner_id = ? OR id IN (?)", username, memberOf).
		Order("created_at DESC, id DESC").
		Find(&projects).Error
	return projects, err
}

func (s *GormStore) ListProjectIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Project{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

func (s *GormStore) DeleteProject(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, id).Error
	})
}

func (s *GormStore) GetMembership(ctx context.Context, projectID uint, username string) (*models.ProjectMember, error) {
	var member models.ProjectMember
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND username = ?", projectID, username).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (s *GormStore) ListMemberships(ctx context.Context, projectID uint) ([]models.ProjectMember, error) {
	var members []models.ProjectMember
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("assigned_at ASC, id ASC").
		Find(&members).Error
	return members, err
}

// UpsertMembership relies on the (project_id, username) unique index so
// concurrent adds of the same user collapse into one row.
func (s *GormStore) UpsertMembership(ctx context.Context, projectID uint, username string, role authz.Role) (*models.ProjectMember, error) {
	db := s.db.WithContext(ctx)
	member := models.ProjectMember{
		ProjectID:  projectID,
		Username:   username,
		Role:       string(role),
		AssignedAt: time.Now(),
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(&member).Error
	if err != nil {
		return nil, err
	}
	return s.GetMembership(ctx, projectID, username)
}

func (s *GormStore) DeleteMembership(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.ProjectMember{}, id).Error
}

func (s *GormStore) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (s *GormStore) ListTasks(ctx context.Context, projectID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (s *GormStore) InsertTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

func (s *GormStore) UpdateTask(ctx context.Context, id uint, fields map[string]interface{}) (*models.Task, error) {
	db := s.db.WithContext(ctx)
	if len(fields) > 0 {
		if err := db.Model(&models.Task{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return nil, err
		}
	}
	var task models.Task
	if err := db.First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *GormStore) DeleteTask(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.Task{}, id).Error
}

func (s *GormStore) UnassignTasks(ctx context.Context, projectID uint, username string) error {
	return s.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("project_id = ? AND assigned_to = ?", projectID, username).
		Update("assigned_to", nil).Error
}

func (s *GormStore) UserExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}
