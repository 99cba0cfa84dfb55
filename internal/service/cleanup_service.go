package service

import (
	"context"
	"log"
	"time"

	"printvault/internal/service/s3"
)

// CleanupService — фоновая очистка мягко удаленных моделей. Сначала
// удаляются объекты хранилища, строки метаданных — только после полного
// успеха; частично очищенная модель будет дочищена следующим проходом.
type CleanupService struct {
	cleanup   CleanupStore
	objects   s3.Storage
	usage     *UsageService
	retention time.Duration
}

func NewCleanupService(cleanup CleanupStore, objects s3.Storage, usage *UsageService, retention time.Duration) *CleanupService {
	return &CleanupService{
		cleanup:   cleanup,
		objects:   objects,
		usage:     usage,
		retention: retention,
	}
}

// PurgeDeleted удаляет модели, помеченные удаленными дольше срока хранения.
// Возвращает число окончательно удаленных моделей.
func (s *CleanupService) PurgeDeleted(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.retention)

	models, err := s.cleanup.ListDeletedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, model := range models {
		keys, err := s.cleanup.CollectStorageKeys(ctx, model.ID)
		if err != nil {
			log.Printf("[Cleanup] Failed to collect keys for model %s: %v", model.ID, err)
			continue
		}

		if len(keys) > 0 {
			report := s.objects.DeleteMany(ctx, keys)
			if len(report.Failed) > 0 {
				// метаданные не трогаем: по ним очистка найдет
				// оставшиеся объекты на следующем проходе
				log.Printf("[Cleanup] Model %s: %d of %d objects not deleted, will retry",
					model.ID, len(report.Failed), len(keys))
				continue
			}
		}

		if _, err := s.cleanup.HardDelete(ctx, model.ID); err != nil {
			log.Printf("[Cleanup] Failed to hard delete model %s: %v", model.ID, err)
			continue
		}
		purged++

		if err := s.usage.Reconcile(ctx, model.OrganizationID); err != nil {
			log.Printf("[Cleanup] Failed to reconcile storage for org %s: %v", model.OrganizationID, err)
		}
	}

	if purged > 0 {
		log.Printf("[Cleanup] Purged %d deleted models", purged)
	}
	return purged, nil
}

// Run запускает периодическую очистку до отмены контекста.
func (s *CleanupService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeDeleted(ctx); err != nil {
				log.Printf("[Cleanup] Purge pass failed: %v", err)
			}
		}
	}
}
