package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"printvault/internal/domain"
)

type ProfileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) ListByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.PrintProfile, error) {
	var profiles []domain.PrintProfile
	query := `
        SELECT * FROM print_profiles
        WHERE version_id = $1
        ORDER BY created_at`

	err := r.db.SelectContext(ctx, &profiles, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

// Create вставляет профиль, указывающий на уже существующий ModelFile
// (автоматический разбор source-файла после коммита версии).
func (r *ProfileRepository) Create(ctx context.Context, profile *domain.PrintProfile) error {
	query := insertProfileQuery
	err := r.db.QueryRowContext(ctx, query, profileArgs(profile)...).Scan(&profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// CreateWithFile одной транзакцией вставляет выделенный slicer-файл и
// профиль, ссылающийся на него.
func (r *ProfileRepository) CreateWithFile(ctx context.Context, file *domain.ModelFile, profile *domain.PrintProfile) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertFiles(ctx, tx, []*domain.ModelFile{file}); err != nil {
		return err
	}

	profile.ModelFileID = file.ID
	err = tx.QueryRowContext(ctx, insertProfileQuery, profileArgs(profile)...).Scan(&profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return tx.Commit()
}

const insertProfileQuery = `
        INSERT INTO print_profiles (
            id,
            version_id,
            model_file_id,
            printer_name,
            normalized_printer_name,
            thumbnail_path,
            slicer_type,
            print_time_seconds,
            filament_summary,
            filament_weight_grams,
            layer_height_mm,
            infill_percent,
            nozzle_temp_c,
            bed_temp_c,
            plate_copies,
            dedicated
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        RETURNING created_at`

func profileArgs(p *domain.PrintProfile) []interface{} {
	return []interface{}{
		p.ID,
		p.VersionID,
		p.ModelFileID,
		p.PrinterName,
		p.NormalizedPrinterName,
		p.ThumbnailPath,
		p.SlicerType,
		p.PrintTimeSeconds,
		p.FilamentSummary,
		p.FilamentWeightGrams,
		p.LayerHeightMm,
		p.InfillPercent,
		p.NozzleTempC,
		p.BedTempC,
		p.PlateCopies,
		p.Dedicated,
	}
}

// GetForOrg возвращает профиль с проверкой принадлежности организации.
func (r *ProfileRepository) GetForOrg(ctx context.Context, profileID uuid.UUID, orgID string) (*domain.PrintProfile, error) {
	var profile domain.PrintProfile
	query := `
        SELECT pp.* FROM print_profiles pp
        JOIN model_versions mv ON mv.id = pp.version_id
        JOIN models m ON m.id = mv.model_id
        WHERE pp.id = $1
        AND m.organization_id = $2
        AND m.deleted_at IS NULL`

	err := r.db.GetContext(ctx, &profile, query, profileID, orgID)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Delete удаляет только строку профиля; backing-файл остается
// (source-файл, показываемый во вью исходников).
func (r *ProfileRepository) Delete(ctx context.Context, profileID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM print_profiles WHERE id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("profile not found")
	}

	return nil
}

// DeleteWithFile удаляет профиль вместе со строкой его выделенного
// slicer-файла одной транзакцией.
func (r *ProfileRepository) DeleteWithFile(ctx context.Context, profileID uuid.UUID, fileID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM print_profiles WHERE id = $1`, profileID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM model_files WHERE id = $1`, fileID); err != nil {
		return fmt.Errorf("failed to delete profile file: %w", err)
	}

	return tx.Commit()
}
