package models

import (
	"time"

	"gorm.io/gorm"
)

// Project is a tenant boundary: an owner, a team, and a set of tasks.
type Project struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:200;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Status      string         `gorm:"size:20;default:active" json:"status"` // active, on_hold, completed, archived
	OwnerID     string         `gorm:"column:owner_id;size:100;index;not null" json:"owner_id"`
	Progress    int            `gorm:"default:0" json:"progress"` // 0-100, derived from task statuses
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Project) TableName() string { return "projects" }
