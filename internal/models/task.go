package models

import (
	"time"

	"gorm.io/gorm"
)

// Task is a unit of work inside a project.
type Task struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ProjectID   uint           `gorm:"index;not null" json:"project_id"`
	Title       string         `gorm:"size:300;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	AssignedTo  *string        `gorm:"size:100;index" json:"assigned_to"`
	Status      string         `gorm:"size:20;default:todo" json:"status"`     // todo, in_progress, completed
	Priority    string         `gorm:"size:20;default:medium" json:"priority"` // low, medium, high
	CreatedBy   string         `gorm:"size:100" json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Task) TableName() string { return "tasks" }

// IsAssignedTo reports whether the task is currently assigned to username.
func (t *Task) IsAssignedTo(username string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == username
}
