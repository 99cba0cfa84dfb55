package domain

import (
	"time"
)

// Organization представляет тенанта (организацию) — владельца моделей.
// Счетчики current_storage_bytes и current_model_count денормализованы и
// обновляются атомарными SQL-инкрементами; для принятия решений о лимитах
// они носят справочный характер, истинное значение пересчитывается живым
// агрегатным запросом.
type Organization struct {
	ID                string    `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	StorageLimitBytes int64     `json:"storage_limit_bytes" db:"storage_limit_bytes"`
	CurrentStorage    int64     `json:"current_storage" db:"current_storage_bytes"`
	CurrentModelCount int       `json:"current_model_count" db:"current_model_count"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
