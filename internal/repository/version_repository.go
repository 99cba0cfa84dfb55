package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"printvault/internal/domain"
)

// ErrVersionRace сигнализирует, что current_version модели изменился между
// чтением и записью: конкурентный вызов успел зафиксировать свою версию
// первым. Вызывающий компенсирует загрузки и может повторить конвейер.
var ErrVersionRace = errors.New("model version changed concurrently")

type VersionRepository struct {
	db *sqlx.DB
}

func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// CreateVersion фиксирует новую версию одной транзакцией: строка версии,
// строки файлов и обновление метки/счетчика на строке модели. Обновление
// модели условно по прочитанной ранее метке current_version — это
// сериализует конкурентные вызовы через строку модели.
func (r *VersionRepository) CreateVersion(
	ctx context.Context,
	model *domain.Model,
	previousLabel string,
	version *domain.ModelVersion,
	files []*domain.ModelFile,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertVersion := `
        INSERT INTO model_versions (id, model_id, label, name, changelog, thumbnail_path)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at`

	err = tx.QueryRowContext(
		ctx,
		insertVersion,
		version.ID,
		version.ModelID,
		version.Label,
		version.Name,
		version.Changelog,
		version.ThumbnailPath,
	).Scan(&version.CreatedAt, &version.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}

	if err := insertFiles(ctx, tx, files); err != nil {
		return err
	}

	updateModel := `
        UPDATE models
        SET current_version = $1,
            total_versions = total_versions + 1,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2
        AND current_version = $3
        AND deleted_at IS NULL`

	result, err := tx.ExecContext(ctx, updateModel, version.Label, model.ID, previousLabel)
	if err != nil {
		return fmt.Errorf("failed to update model version: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrVersionRace
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	model.CurrentVersion = version.Label
	model.TotalVersions++
	return nil
}

func insertFiles(ctx context.Context, tx *sqlx.Tx, files []*domain.ModelFile) error {
	insertFile := `
        INSERT INTO model_files (
            id,
            version_id,
            stored_filename,
            original_filename,
            size_bytes,
            mime_type,
            extension,
            storage_key,
            storage_bucket,
            metadata
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING created_at, updated_at`

	for _, file := range files {
		err := tx.QueryRowContext(
			ctx,
			insertFile,
			file.ID,
			file.VersionID,
			file.StoredFilename,
			file.OriginalFilename,
			file.SizeBytes,
			file.MIMEType,
			file.Extension,
			file.StorageKey,
			file.StorageBucket,
			file.Metadata,
		).Scan(&file.CreatedAt, &file.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert file %s: %w", file.OriginalFilename, err)
		}
	}
	return nil
}

// AppendFiles добавляет файлы к уже существующей версии (программная
// загрузка по метке).
func (r *VersionRepository) AppendFiles(ctx context.Context, versionID uuid.UUID, files []*domain.ModelFile) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertFiles(ctx, tx, files); err != nil {
		return err
	}

	touch := `UPDATE model_versions SET updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	if _, err := tx.ExecContext(ctx, touch, versionID); err != nil {
		return fmt.Errorf("failed to touch version: %w", err)
	}

	return tx.Commit()
}

// GetForOrg возвращает версию с проверкой принадлежности организации
// через строку модели.
func (r *VersionRepository) GetForOrg(ctx context.Context, versionID uuid.UUID, orgID string) (*domain.ModelVersion, error) {
	var version domain.ModelVersion
	query := `
        SELECT mv.* FROM model_versions mv
        JOIN models m ON m.id = mv.model_id
        WHERE mv.id = $1
        AND m.organization_id = $2
        AND m.deleted_at IS NULL`

	err := r.db.GetContext(ctx, &version, query, versionID, orgID)
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *VersionRepository) GetByLabel(ctx context.Context, modelID uuid.UUID, label string) (*domain.ModelVersion, error) {
	var version domain.ModelVersion
	query := `SELECT * FROM model_versions WHERE model_id = $1 AND label = $2`

	err := r.db.GetContext(ctx, &version, query, modelID, label)
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *VersionRepository) ListByModel(ctx context.Context, modelID uuid.UUID) ([]domain.ModelVersion, error) {
	var versions []domain.ModelVersion
	query := `
        SELECT * FROM model_versions
        WHERE model_id = $1
        ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &versions, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

func (r *VersionRepository) ListFiles(ctx context.Context, versionID uuid.UUID) ([]domain.ModelFile, error) {
	var files []domain.ModelFile
	query := `
        SELECT * FROM model_files
        WHERE version_id = $1
        ORDER BY created_at`

	err := r.db.SelectContext(ctx, &files, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list version files: %w", err)
	}
	return files, nil
}

// MarkFileProcessed поднимает флаг processed в метаданных файла после
// успешного авторазбора его слайсерных данных.
func (r *VersionRepository) MarkFileProcessed(ctx context.Context, fileID uuid.UUID) error {
	query := `
        UPDATE model_files
        SET metadata = jsonb_set(metadata, '{processed}', 'true'::jsonb),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, fileID); err != nil {
		return fmt.Errorf("failed to mark file processed: %w", err)
	}
	return nil
}

// GetFileForOrg возвращает файл с проверкой принадлежности организации.
func (r *VersionRepository) GetFileForOrg(ctx context.Context, fileID uuid.UUID, orgID string) (*domain.ModelFile, error) {
	var file domain.ModelFile
	query := `
        SELECT mf.* FROM model_files mf
        JOIN model_versions mv ON mv.id = mf.version_id
        JOIN models m ON m.id = mv.model_id
        WHERE mf.id = $1
        AND m.organization_id = $2
        AND m.deleted_at IS NULL`

	err := r.db.GetContext(ctx, &file, query, fileID, orgID)
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// UpdateMeta редактирует имя и описание версии — единственная разрешенная
// мутация после создания.
func (r *VersionRepository) UpdateMeta(ctx context.Context, versionID uuid.UUID, name string, changelog string) error {
	query := `
        UPDATE model_versions
        SET name = $1,
            changelog = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, name, changelog, versionID)
	if err != nil {
		return fmt.Errorf("failed to update version meta: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("version not found")
	}

	return nil
}
