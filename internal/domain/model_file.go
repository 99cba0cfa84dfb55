package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JSONMap хранит произвольные метаданные в колонке JSONB.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for JSONMap: %T", src)
	}
	return json.Unmarshal(data, m)
}

// ModelFile представляет один загруженный артефакт внутри версии.
// Запись неизменяема после создания; удаляется только при компенсирующем
// откате или при удалении профиля с выделенным slicer-файлом.
type ModelFile struct {
	ID               uuid.UUID `json:"id" db:"id"`
	VersionID        uuid.UUID `json:"version_id" db:"version_id"`
	StoredFilename   string    `json:"stored_filename" db:"stored_filename"`
	OriginalFilename string    `json:"original_filename" db:"original_filename"`
	SizeBytes        int64     `json:"size_bytes" db:"size_bytes"`
	MIMEType         string    `json:"mime_type" db:"mime_type"`
	Extension        string    `json:"extension" db:"extension"`
	StorageKey       string    `json:"storage_key" db:"storage_key"`
	StorageBucket    string    `json:"storage_bucket" db:"storage_bucket"`
	Metadata         JSONMap   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}
