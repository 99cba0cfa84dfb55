package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"printvault/internal/domain"
)

type ModelRepository struct {
	db *sqlx.DB
}

func NewModelRepository(db *sqlx.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

func (r *ModelRepository) Create(ctx context.Context, model *domain.Model) error {
	query := `
        INSERT INTO models (id, organization_id, name, slug, description, current_version, total_versions)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		model.ID,
		model.OrganizationID,
		model.Name,
		model.Slug,
		model.Description,
		model.CurrentVersion,
		model.TotalVersions,
	).Scan(&model.CreatedAt, &model.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}

	return nil
}

// GetForOrg возвращает неудаленную модель только в пределах организации.
// Чужая и несуществующая модель неразличимы для вызывающего (sql.ErrNoRows),
// чтобы не раскрывать существование ресурсов между тенантами.
func (r *ModelRepository) GetForOrg(ctx context.Context, modelID uuid.UUID, orgID string) (*domain.Model, error) {
	var model domain.Model
	query := `
        SELECT * FROM models
        WHERE id = $1
        AND organization_id = $2
        AND deleted_at IS NULL`

	err := r.db.GetContext(ctx, &model, query, modelID, orgID)
	if err != nil {
		return nil, err
	}

	return &model, nil
}

func (r *ModelRepository) ListByOrg(ctx context.Context, orgID string) ([]domain.Model, error) {
	var models []domain.Model
	query := `
        SELECT * FROM models
        WHERE organization_id = $1 AND deleted_at IS NULL
        ORDER BY updated_at DESC`

	err := r.db.SelectContext(ctx, &models, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	return models, nil
}

// SlugExists проверяет занятость слага внутри организации.
func (r *ModelRepository) SlugExists(ctx context.Context, orgID string, slug string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM models WHERE organization_id = $1 AND slug = $2)`

	err := r.db.GetContext(ctx, &exists, query, orgID, slug)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

func (r *ModelRepository) Rename(ctx context.Context, modelID uuid.UUID, orgID string, newName string, newDescription string) error {
	query := `
        UPDATE models
        SET name = $1,
            description = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $3 AND organization_id = $4 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, newName, newDescription, modelID, orgID)
	if err != nil {
		return fmt.Errorf("failed to rename model: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// SoftDelete помечает модель удаленной; строки версий и файлов остаются
// до фоновой очистки.
func (r *ModelRepository) SoftDelete(ctx context.Context, modelID uuid.UUID, orgID string) error {
	query := `
        UPDATE models
        SET deleted_at = CURRENT_TIMESTAMP,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, modelID, orgID)
	if err != nil {
		return fmt.Errorf("failed to soft delete model: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// ListDeletedBefore возвращает модели, помеченные удаленными раньше
// заданного момента; используется фоновой очисткой.
func (r *ModelRepository) ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]domain.Model, error) {
	var models []domain.Model
	query := `
        SELECT * FROM models
        WHERE deleted_at IS NOT NULL AND deleted_at < $1
        ORDER BY deleted_at`

	err := r.db.SelectContext(ctx, &models, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted models: %w", err)
	}
	return models, nil
}

// CollectStorageKeys собирает все ключи хранилища, принадлежащие модели:
// файлы версий, превью версий и превью профилей. Ключи восстановимы из
// метаданных, дополнительного каталога объектов нет.
func (r *ModelRepository) CollectStorageKeys(ctx context.Context, modelID uuid.UUID) ([]string, error) {
	var keys []string

	query := `
        SELECT mf.storage_key
        FROM model_files mf
        JOIN model_versions mv ON mv.id = mf.version_id
        WHERE mv.model_id = $1
        UNION
        SELECT mv.thumbnail_path
        FROM model_versions mv
        WHERE mv.model_id = $1 AND mv.thumbnail_path IS NOT NULL
        UNION
        SELECT pp.thumbnail_path
        FROM print_profiles pp
        JOIN model_versions mv ON mv.id = pp.version_id
        WHERE mv.model_id = $1 AND pp.thumbnail_path IS NOT NULL`

	err := r.db.SelectContext(ctx, &keys, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect storage keys: %w", err)
	}
	return keys, nil
}

// HardDelete удаляет строки модели и всех зависимых сущностей одной
// транзакцией. Вызывается очисткой только после успешного удаления объектов.
func (r *ModelRepository) HardDelete(ctx context.Context, modelID uuid.UUID) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var freedBytes int64
	err = tx.GetContext(ctx, &freedBytes, `
        SELECT COALESCE(SUM(mf.size_bytes), 0)
        FROM model_files mf
        JOIN model_versions mv ON mv.id = mf.version_id
        WHERE mv.model_id = $1`, modelID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum model files: %w", err)
	}

	statements := []string{
		`DELETE FROM print_profiles WHERE version_id IN (SELECT id FROM model_versions WHERE model_id = $1)`,
		`DELETE FROM model_files WHERE version_id IN (SELECT id FROM model_versions WHERE model_id = $1)`,
		`DELETE FROM model_versions WHERE model_id = $1`,
		`DELETE FROM models WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, modelID); err != nil {
			return 0, fmt.Errorf("failed to hard delete model: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return freedBytes, nil
}
