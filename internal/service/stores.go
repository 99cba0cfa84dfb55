package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"printvault/internal/domain"
)

// Интерфейсы хранилищ, реализуемые репозиториями из internal/repository.
// Сервисы принимают интерфейсы, чтобы конвейер и разрешение конфликтов
// были проверяемы без живой базы.

type ModelStore interface {
	Create(ctx context.Context, model *domain.Model) error
	GetForOrg(ctx context.Context, modelID uuid.UUID, orgID string) (*domain.Model, error)
	ListByOrg(ctx context.Context, orgID string) ([]domain.Model, error)
	SlugExists(ctx context.Context, orgID string, slug string) (bool, error)
	Rename(ctx context.Context, modelID uuid.UUID, orgID string, newName string, newDescription string) error
	SoftDelete(ctx context.Context, modelID uuid.UUID, orgID string) error
}

type VersionStore interface {
	CreateVersion(ctx context.Context, model *domain.Model, previousLabel string, version *domain.ModelVersion, files []*domain.ModelFile) error
	AppendFiles(ctx context.Context, versionID uuid.UUID, files []*domain.ModelFile) error
	GetForOrg(ctx context.Context, versionID uuid.UUID, orgID string) (*domain.ModelVersion, error)
	GetByLabel(ctx context.Context, modelID uuid.UUID, label string) (*domain.ModelVersion, error)
	ListByModel(ctx context.Context, modelID uuid.UUID) ([]domain.ModelVersion, error)
	ListFiles(ctx context.Context, versionID uuid.UUID) ([]domain.ModelFile, error)
	GetFileForOrg(ctx context.Context, fileID uuid.UUID, orgID string) (*domain.ModelFile, error)
	UpdateMeta(ctx context.Context, versionID uuid.UUID, name string, changelog string) error
	MarkFileProcessed(ctx context.Context, fileID uuid.UUID) error
}

type ProfileStore interface {
	ListByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.PrintProfile, error)
	Create(ctx context.Context, profile *domain.PrintProfile) error
	CreateWithFile(ctx context.Context, file *domain.ModelFile, profile *domain.PrintProfile) error
	GetForOrg(ctx context.Context, profileID uuid.UUID, orgID string) (*domain.PrintProfile, error)
	Delete(ctx context.Context, profileID uuid.UUID) error
	DeleteWithFile(ctx context.Context, profileID uuid.UUID, fileID uuid.UUID) error
}

type OrganizationStore interface {
	Get(ctx context.Context, orgID string) (*domain.Organization, error)
	AddStorageUsage(ctx context.Context, orgID string, deltaBytes int64) error
	AddModelCount(ctx context.Context, orgID string, delta int) error
	LiveStorageUsage(ctx context.Context, orgID string) (int64, error)
	LiveModelCount(ctx context.Context, orgID string) (int, error)
	ReconcileStorageUsage(ctx context.Context, orgID string) error
}

type CleanupStore interface {
	ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]domain.Model, error)
	CollectStorageKeys(ctx context.Context, modelID uuid.UUID) ([]string, error)
	HardDelete(ctx context.Context, modelID uuid.UUID) (int64, error)
}

// Thumbnailer нормализует изображения превью перед загрузкой в хранилище.
type Thumbnailer interface {
	Normalize(data []byte) ([]byte, error)
}
