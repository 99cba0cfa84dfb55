// Package slicer распознает диалекты 3MF-контейнеров (Bambu Studio,
// OrcaSlicer, PrusaSlicer) и извлекает нормализованные метаданные печати.
package slicer

import (
	"errors"
	"fmt"
)

// Теги диалектов слайсеров.
const (
	TypeBambu   = "bambu"
	TypeOrca    = "orca"
	TypePrusa   = "prusa"
	TypeUnknown = "unknown"
)

// DefaultPrinterName используется, когда диалект не сообщил имя принтера.
const DefaultPrinterName = "Unknown Printer"

// ErrUnknownFormat возвращается, когда ни один парсер не распознал контейнер.
var ErrUnknownFormat = errors.New("unknown slicer format")

// ParseError сохраняет исходное сообщение парсера для показа пользователю.
type ParseError struct {
	SlicerType string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s config: %v", e.SlicerType, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Metadata содержит нормализованные числовые поля профиля печати.
// Отсутствующие у диалекта поля остаются nil.
type Metadata struct {
	PrintTimeSeconds    *int64
	FilamentSummary     *string
	FilamentWeightGrams *float64
	LayerHeightMm       *float64
	InfillPercent       *int
	NozzleTempC         *int
	BedTempC            *int
	PlateCopies         *int
}

// ParsedProfile — результат извлечения метаданных из 3MF-контейнера.
type ParsedProfile struct {
	PrinterName           string
	NormalizedPrinterName string
	Thumbnail             []byte
	SlicerType            string
	Metadata              Metadata
}
