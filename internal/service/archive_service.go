package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"printvault/internal/service/s3"
)

// ArchiveService отдает все файлы версии одним ZIP-архивом. Объекты
// читаются из хранилища последовательно и пишутся в поток без буферизации
// архива целиком.
type ArchiveService struct {
	versions VersionStore
	objects  s3.Storage
}

func NewArchiveService(versions VersionStore, objects s3.Storage) *ArchiveService {
	return &ArchiveService{versions: versions, objects: objects}
}

// StreamVersionArchive пишет ZIP с файлами версии в w. Архив без сжатия:
// меш-форматы почти не жмутся, а store-режим позволяет стримить без
// лишнего CPU.
func (s *ArchiveService) StreamVersionArchive(ctx context.Context, versionID uuid.UUID, orgID string, w io.Writer) error {
	version, err := s.versions.GetForOrg(ctx, versionID, orgID)
	if err != nil {
		return mapNoRows(err)
	}

	files, err := s.versions.ListFiles(ctx, version.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(files) == 0 {
		return ErrNotFoundOrDenied
	}

	zw := zip.NewWriter(w)
	seen := make(map[string]bool, len(files))

	for _, file := range files {
		name := file.OriginalFilename
		if seen[name] {
			// дубликат исходного имени внутри версии, храним под
			// уникальным именем хранилища
			name = file.StoredFilename
		}
		seen[name] = true

		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Store,
		})
		if err != nil {
			return fmt.Errorf("failed to create archive entry %s: %w", name, err)
		}

		obj, err := s.objects.GetObject(ctx, file.StorageKey)
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", ErrStorage, file.StorageKey, err)
		}

		_, err = io.Copy(entry, obj)
		if cerr := obj.Close(); cerr != nil {
			log.Printf("[Archive] Failed to close object %s: %v", file.StorageKey, cerr)
		}
		if err != nil {
			return fmt.Errorf("%w: stream %s: %v", ErrStorage, file.StorageKey, err)
		}
	}

	return zw.Close()
}

// ArchiveName возвращает имя скачиваемого архива версии.
func ArchiveName(modelSlug string, versionLabel string) string {
	return fmt.Sprintf("%s-%s.zip", modelSlug, versionLabel)
}
