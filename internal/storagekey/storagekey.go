// Package storagekey строит детерминированные ключи объектного хранилища.
// Ключ полностью восстановим из метаданных ({org}/{model}/{version}/{kind}/{file}),
// поэтому компенсирующее удаление не требует дополнительных чтений.
package storagekey

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind определяет роль объекта в пространстве ключей.
type Kind string

const (
	KindSource   Kind = "source"
	KindSlicer   Kind = "slicer"
	KindArtifact Kind = "artifact"
	KindTemp     Kind = "temp"
)

// сегменты пути для каждого вида
var kindSegments = map[Kind]string{
	KindSource:   "sources",
	KindSlicer:   "slicer",
	KindArtifact: "artifacts",
}

// Build возвращает ключ для source/slicer/artifact объектов. Чистая функция:
// одинаковые аргументы всегда дают одинаковый ключ, случайность для
// уникальности вносит вызывающий через filename.
func Build(orgID string, modelID uuid.UUID, version string, filename string, kind Kind) string {
	segment, ok := kindSegments[kind]
	if !ok {
		segment = string(kind)
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s", orgID, modelID, version, segment, filename)
}

// TempKey возвращает ключ короткоживущего промежуточного объекта.
// Временные объекты не привязаны к организации и модели.
func TempKey(now time.Time, filename string) string {
	return fmt.Sprintf("temp/%d-%s", now.UnixMilli(), filename)
}
