package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"printvault/internal/domain"
)

const defaultStorageLimitBytes = 10 * 1024 * 1024 * 1024 // 10GB

type OrganizationRepository struct {
	db *sqlx.DB
}

func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Get(ctx context.Context, orgID string) (*domain.Organization, error) {
	var org domain.Organization

	err := r.db.GetContext(ctx, &org,
		`SELECT * FROM organizations WHERE id = $1`,
		orgID)

	if err != nil {
		// Если организация не найдена, создаем запись с дефолтным лимитом
		if err == sql.ErrNoRows {
			org = domain.Organization{
				ID:                orgID,
				Name:              orgID,
				StorageLimitBytes: defaultStorageLimitBytes,
			}

			err = r.Create(ctx, &org)
			if err != nil {
				return nil, fmt.Errorf("failed to create organization: %w", err)
			}
			return &org, nil
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

func (r *OrganizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	query := `
        INSERT INTO organizations (id, name, storage_limit_bytes, current_storage_bytes, current_model_count)
        VALUES ($1, $2, $3, 0, 0)
        RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		org.ID,
		org.Name,
		org.StorageLimitBytes,
	).Scan(&org.CreatedAt, &org.UpdatedAt)
}

// AddStorageUsage атомарно сдвигает денормализованный счетчик занятого
// места. Read-modify-write в приложении недопустим: параллельные загрузки
// теряли бы обновления.
func (r *OrganizationRepository) AddStorageUsage(ctx context.Context, orgID string, deltaBytes int64) error {
	query := `
        UPDATE organizations
        SET current_storage_bytes = GREATEST(0, current_storage_bytes + $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, deltaBytes, orgID)
	if err != nil {
		return fmt.Errorf("failed to update storage usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("organization not found: %s", orgID)
	}

	return nil
}

// AddModelCount атомарно сдвигает счетчик моделей организации.
func (r *OrganizationRepository) AddModelCount(ctx context.Context, orgID string, delta int) error {
	query := `
        UPDATE organizations
        SET current_model_count = GREATEST(0, current_model_count + $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, delta, orgID)
	if err != nil {
		return fmt.Errorf("failed to update model count: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("organization not found: %s", orgID)
	}

	return nil
}

// LiveStorageUsage пересчитывает занятое место живым агрегатом по файлам
// неудаленных моделей. Счетчик на строке организации — справочный и может
// расходиться после сбоев в компенсационном пути.
func (r *OrganizationRepository) LiveStorageUsage(ctx context.Context, orgID string) (int64, error) {
	var used int64
	query := `
        SELECT COALESCE(SUM(mf.size_bytes), 0)
        FROM model_files mf
        JOIN model_versions mv ON mv.id = mf.version_id
        JOIN models m ON m.id = mv.model_id
        WHERE m.organization_id = $1
        AND m.deleted_at IS NULL`

	err := r.db.GetContext(ctx, &used, query, orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate live storage usage: %w", err)
	}
	return used, nil
}

// LiveModelCount пересчитывает число неудаленных моделей организации.
func (r *OrganizationRepository) LiveModelCount(ctx context.Context, orgID string) (int, error) {
	var count int
	query := `
        SELECT COUNT(*)
        FROM models
        WHERE organization_id = $1 AND deleted_at IS NULL`

	err := r.db.GetContext(ctx, &count, query, orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to count models: %w", err)
	}
	return count, nil
}

// ReconcileStorageUsage подтягивает денормализованный счетчик к живому
// агрегату; вызывается фоновой очисткой.
func (r *OrganizationRepository) ReconcileStorageUsage(ctx context.Context, orgID string) error {
	query := `
        UPDATE organizations o
        SET current_storage_bytes = (
            SELECT COALESCE(SUM(mf.size_bytes), 0)
            FROM model_files mf
            JOIN model_versions mv ON mv.id = mf.version_id
            JOIN models m ON m.id = mv.model_id
            WHERE m.organization_id = o.id
            AND m.deleted_at IS NULL
        ),
        updated_at = CURRENT_TIMESTAMP
        WHERE o.id = $1`

	_, err := r.db.ExecContext(ctx, query, orgID)
	if err != nil {
		return fmt.Errorf("failed to reconcile storage usage: %w", err)
	}
	return nil
}
