package domain

import (
	"time"
)

// APIKey привязывает программный ключ интеграции к организации.
type APIKey struct {
	ID             int64      `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	Key            string     `json:"-" db:"key"`
	Name           string     `json:"name" db:"name"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}
