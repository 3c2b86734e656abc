// Package model provides data models for the project directory.
package model

import (
	"errors"
	"time"
)

// ErrRepositoryNotFound indicates that the repository is not registered in the directory.
var ErrRepositoryNotFound = errors.New("repository not found")

// Repository maps an external repository id to its owning project.
type Repository struct {
	ID        string    `gorm:"primaryKey;column:id"`
	ProjectID string    `gorm:"column:project_id;not null;index:idx_repositories_project"`
	OwnerID   string    `gorm:"column:owner_id;not null"`
	Name      string    `gorm:"column:name;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName specifies the table name for Repository model.
func (Repository) TableName() string {
	return "repositories"
}
