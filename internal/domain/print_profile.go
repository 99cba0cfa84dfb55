package domain

import (
	"time"

	"github.com/google/uuid"
)

// PrintProfile представляет метаданные слайсера, извлеченные из 3MF-файла.
// Каждый профиль ссылается ровно на один ModelFile. Dedicated = true означает,
// что файл был загружен отдельно как slicer-файл и его объект в хранилище
// принадлежит профилю (удаляется вместе с ним); false — профиль создан
// поверх обычного source-файла, объект остается.
type PrintProfile struct {
	ID                    uuid.UUID `json:"id" db:"id"`
	VersionID             uuid.UUID `json:"version_id" db:"version_id"`
	ModelFileID           uuid.UUID `json:"model_file_id" db:"model_file_id"`
	PrinterName           string    `json:"printer_name" db:"printer_name"`
	NormalizedPrinterName string    `json:"normalized_printer_name" db:"normalized_printer_name"`
	ThumbnailPath         *string   `json:"thumbnail_path,omitempty" db:"thumbnail_path"`
	SlicerType            string    `json:"slicer_type" db:"slicer_type"`
	PrintTimeSeconds      *int64    `json:"print_time_seconds,omitempty" db:"print_time_seconds"`
	FilamentSummary       *string   `json:"filament_summary,omitempty" db:"filament_summary"`
	FilamentWeightGrams   *float64  `json:"filament_weight_grams,omitempty" db:"filament_weight_grams"`
	LayerHeightMm         *float64  `json:"layer_height_mm,omitempty" db:"layer_height_mm"`
	InfillPercent         *int      `json:"infill_percent,omitempty" db:"infill_percent"`
	NozzleTempC           *int      `json:"nozzle_temp_c,omitempty" db:"nozzle_temp_c"`
	BedTempC              *int      `json:"bed_temp_c,omitempty" db:"bed_temp_c"`
	PlateCopies           *int      `json:"plate_copies,omitempty" db:"plate_copies"`
	Dedicated             bool      `json:"dedicated" db:"dedicated"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
}
