package domain

import (
	"time"

	"github.com/google/uuid"
)

// ModelVersion представляет неизменяемый снимок файлов модели.
// Метки версий строго возрастают (v1, v2, ...) и никогда не переиспользуются.
// После создания редактируются только name и changelog.
type ModelVersion struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	ModelID       uuid.UUID  `json:"model_id" db:"model_id"`
	Label         string     `json:"label" db:"label"`
	Name          string     `json:"name" db:"name"`
	Changelog     string     `json:"changelog" db:"changelog"`
	ThumbnailPath *string    `json:"thumbnail_path,omitempty" db:"thumbnail_path"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
