package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"printvault/internal/domain"
)

type APIKeyRepository struct {
	db *sqlx.DB
}

func NewAPIKeyRepository(db *sqlx.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// GetByKey возвращает ключ интеграции; sql.ErrNoRows означает неизвестный ключ.
func (r *APIKeyRepository) GetByKey(ctx context.Context, key string) (*domain.APIKey, error) {
	var apiKey domain.APIKey
	query := `SELECT * FROM api_keys WHERE key = $1`

	err := r.db.GetContext(ctx, &apiKey, query, key)
	if err != nil {
		return nil, err
	}
	return &apiKey, nil
}

// TouchLastUsed отмечает момент последнего использования ключа.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	return err
}
