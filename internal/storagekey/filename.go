package storagekey

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Slug приводит строку к виду, безопасному для URL и ключей хранилища:
// нижний регистр, латиница/цифры, дефисы вместо прочих символов.
func Slug(s string) string {
	var b strings.Builder
	lastDash := true // подавляем ведущие дефисы
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		out = "file"
	}
	return out
}

// StoredFilename формирует имя хранимого файла: slug исходного имени,
// короткий случайный суффикс и исходное расширение.
func StoredFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	suffix := strings.Split(uuid.New().String(), "-")[0]
	return Slug(base) + "-" + suffix + ext
}

// Extension возвращает нормализованное расширение файла без точки.
func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}
