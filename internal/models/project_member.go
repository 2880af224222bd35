package models

import "time"

// ProjectMember is a non-owner user's role within a project. The owner is
// implicit (Project.OwnerID) and needs no row here.
type ProjectMember struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProjectID  uint      `gorm:"uniqueIndex:idx_project_username;not null" json:"project_id"`
	Username   string    `gorm:"uniqueIndex:idx_project_username;size:100;not null" json:"username"`
	Role       string    `gorm:"size:20;not null;default:viewer" json:"role"` // manager, developer, viewer
	AssignedAt time.Time `json:"assigned_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (ProjectMember) TableName() string { return "project_members" }
