package domain

import (
	"time"

	"github.com/google/uuid"
)

// Model представляет логическую папку 3D-объекта: именованную коллекцию
// упорядоченных версий, принадлежащую организации.
// Инвариант: current_version всегда равен метке последней созданной
// неудаленной версии.
type Model struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	Name           string     `json:"name" db:"name"`
	Slug           string     `json:"slug" db:"slug"`
	Description    string     `json:"description" db:"description"`
	CurrentVersion string     `json:"current_version" db:"current_version"`
	TotalVersions  int        `json:"total_versions" db:"total_versions"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}
