// storage.go
package s3

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound отличает отсутствующий объект от транзиентных ошибок:
// логика отката трактует "уже удален" как успех.
var ErrNotFound = errors.New("object not found")

// Object определяет интерфейс для потокового чтения объекта.
type Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

// s3Object реализует интерфейс Object
type s3Object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *s3Object) ContentLength() int64 {
	return o.contentLength
}

func (o *s3Object) ContentType() string {
	return o.contentType
}

// UploadInfo — результат успешной загрузки.
type UploadInfo struct {
	Key  string
	Size int64
	ETag string
}

// ObjectMeta — метаданные объекта без его содержимого.
type ObjectMeta struct {
	Size         int64
	ETag         string
	LastModified time.Time
	ContentType  string
}

// DeleteReport — поштучный отчет пакетного удаления: вызывающий может
// повторить только неудавшиеся ключи.
type DeleteReport struct {
	Deleted []string
	Failed  map[string]error
}

// Storage определяет интерфейс для работы с S3-совместимым хранилищем.
// Клиент не выполняет повторов — каждая операция повторяема вызывающим.
type Storage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (*UploadInfo, error)
	UploadStream(ctx context.Context, key string, r io.Reader, contentType string) (*UploadInfo, error)
	GetBytes(ctx context.Context, key string) ([]byte, string, error)
	GetObject(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys []string) *DeleteReport
	Exists(ctx context.Context, key string) (bool, error)
	Head(ctx context.Context, key string) (*ObjectMeta, error)
	PresignDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Bucket() string
}
