package service

import (
	"context"
	"fmt"

	"printvault/internal/domain"
)

// UsageService отвечает за квоты организации. Счетчики на строке организации
// справочные и обновляются инкрементально; проверка лимита всегда идет по
// живому агрегату, чтобы сбой отдельного инкремента не блокировал загрузки.
type UsageService struct {
	orgs OrganizationStore
}

func NewUsageService(orgs OrganizationStore) *UsageService {
	return &UsageService{orgs: orgs}
}

// EnsureStorageAvailable проверяет, поместятся ли дополнительные байты в
// лимит организации. Возвращает ErrStorageLimit при превышении.
func (s *UsageService) EnsureStorageAvailable(ctx context.Context, orgID string, additionalBytes int64) error {
	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	used, err := s.orgs.LiveStorageUsage(ctx, orgID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if used+additionalBytes > org.StorageLimitBytes {
		return ErrStorageLimit
	}
	return nil
}

// AddStorage сдвигает справочный счетчик занятого места.
func (s *UsageService) AddStorage(ctx context.Context, orgID string, deltaBytes int64) error {
	return s.orgs.AddStorageUsage(ctx, orgID, deltaBytes)
}

// AddModels сдвигает справочный счетчик моделей.
func (s *UsageService) AddModels(ctx context.Context, orgID string, delta int) error {
	return s.orgs.AddModelCount(ctx, orgID, delta)
}

// Reconcile пересчитывает справочный счетчик места по живому агрегату.
func (s *UsageService) Reconcile(ctx context.Context, orgID string) error {
	return s.orgs.ReconcileStorageUsage(ctx, orgID)
}

// UsageSnapshot — сводка потребления организации для API.
type UsageSnapshot struct {
	Organization      *domain.Organization `json:"organization"`
	StorageUsedBytes  int64                `json:"storage_used_bytes"`
	StorageLimitBytes int64                `json:"storage_limit_bytes"`
	ModelCount        int                  `json:"model_count"`
}

// Snapshot возвращает лимит и живые агрегаты потребления.
func (s *UsageService) Snapshot(ctx context.Context, orgID string) (*UsageSnapshot, error) {
	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	used, err := s.orgs.LiveStorageUsage(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	count, err := s.orgs.LiveModelCount(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return &UsageSnapshot{
		Organization:      org,
		StorageUsedBytes:  used,
		StorageLimitBytes: org.StorageLimitBytes,
		ModelCount:        count,
	}, nil
}
