package service

import (
	"errors"
	"fmt"

	"printvault/internal/repository"
)

// Определение пользовательских ошибок конвейера загрузки
var (
	ErrEmptyUpload = errors.New("no files in upload")
	// Чужая и несуществующая модель дают одинаковую ошибку, чтобы не
	// раскрывать существование ресурсов между тенантами.
	ErrNotFoundOrDenied = errors.New("not found or access denied")
	ErrStorage          = errors.New("storage operation failed")
	ErrPersistence      = errors.New("database operation failed")
	ErrInvalidName      = errors.New("invalid model name")
	ErrStorageLimit     = errors.New("not enough storage space available")
)

// UnsupportedTypeError именует файл, отклоненный по расширению.
type UnsupportedTypeError struct {
	Filename  string
	Extension string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q (%s)", e.Extension, e.Filename)
}

// FileTooLargeError именует файл, превысивший лимит своего расширения.
type FileTooLargeError struct {
	Filename  string
	Extension string
	Size      int64
	Limit     int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file %s is too large: %d bytes, limit for .%s is %d bytes",
		e.Filename, e.Size, e.Extension, e.Limit)
}

// isVersionRace распознает проигрыш оптимистической проверки версии.
// Гонка отдается вызывающему как есть: повтор конвейера безопасен.
func isVersionRace(err error) bool {
	return errors.Is(err, repository.ErrVersionRace)
}
