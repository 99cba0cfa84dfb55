package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"printvault/internal/domain"
	"printvault/internal/service/s3"
	"printvault/internal/slicer"
	"printvault/internal/storagekey"
)

// Статусы результата разбора одного файла партии.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

// Причины отказа разбора.
const (
	FailureNot3MF        = "not_3mf"
	FailureTooLarge      = "too_large"
	FailureUnknownFormat = "unknown_format"
	FailureParseError    = "parse_error"
	FailureStorage       = "storage"
)

// Действия разрешения конфликта профилей.
const (
	ResolveReplace  = "replace"
	ResolveKeepBoth = "keep_both"
	ResolveSkip     = "skip"
)

// ProfileService управляет профилями печати: пакетная загрузка slicer-файлов
// с пофайловыми результатами, автоматический разбор 3MF из партии версии и
// разрешение конфликтов по имени принтера.
type ProfileService struct {
	models   ModelStore
	versions VersionStore
	profiles ProfileStore
	objects  s3.Storage
	usage    *UsageService
	thumbs   Thumbnailer
}

func NewProfileService(
	models ModelStore,
	versions VersionStore,
	profiles ProfileStore,
	objects s3.Storage,
	usage *UsageService,
	thumbs Thumbnailer,
) *ProfileService {
	return &ProfileService{
		models:   models,
		versions: versions,
		profiles: profiles,
		objects:  objects,
		usage:    usage,
		thumbs:   thumbs,
	}
}

// ProfileOutcome — результат обработки одного файла партии. Партия не
// атомарна: каждый файл завершается независимо.
type ProfileOutcome struct {
	Filename string               `json:"filename"`
	Status   string               `json:"status"`
	Reason   string               `json:"reason,omitempty"`
	Message  string               `json:"message,omitempty"`
	Profile  *domain.PrintProfile `json:"profile,omitempty"`
	Conflict *ProfileConflict     `json:"conflict,omitempty"`
}

// ProfileConflict описывает отложенный файл: он уже лежит по временному
// ключу и ждет решения пользователя.
type ProfileConflict struct {
	ExistingProfileID   uuid.UUID `json:"existing_profile_id"`
	ExistingPrinterName string    `json:"existing_printer_name"`
	NewPrinterName      string    `json:"new_printer_name"`
	SlicerType          string    `json:"slicer_type"`
	TempKey             string    `json:"temp_key"`
	OriginalFilename    string    `json:"original_filename"`
}

type UploadProfilesInput struct {
	VersionID      uuid.UUID
	OrganizationID string
	ActorID        string
	Files          []UploadFile
	IP             string
}

// UploadProfiles обрабатывает партию slicer-файлов для версии. Конфликтующий
// файл откладывается по временному ключу, остальные исходы окончательны.
func (s *ProfileService) UploadProfiles(ctx context.Context, in UploadProfilesInput) ([]ProfileOutcome, error) {
	if len(in.Files) == 0 {
		return nil, ErrEmptyUpload
	}

	version, err := s.versions.GetForOrg(ctx, in.VersionID, in.OrganizationID)
	if err != nil {
		return nil, mapNoRows(err)
	}

	model, err := s.models.GetForOrg(ctx, version.ModelID, in.OrganizationID)
	if err != nil {
		return nil, mapNoRows(err)
	}

	existing, err := s.profiles.ListByVersion(ctx, version.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	outcomes := make([]ProfileOutcome, 0, len(in.Files))
	for _, f := range in.Files {
		outcome := s.processOne(ctx, model, version, existing, f, in.ActorID, in.IP)
		if outcome.Status == OutcomeSuccess && outcome.Profile != nil {
			// успешный профиль участвует в проверке конфликтов
			// для оставшихся файлов партии
			existing = append(existing, *outcome.Profile)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (s *ProfileService) processOne(
	ctx context.Context,
	model *domain.Model,
	version *domain.ModelVersion,
	existing []domain.PrintProfile,
	f UploadFile,
	actorID string,
	ip string,
) ProfileOutcome {
	outcome := ProfileOutcome{Filename: f.OriginalName}

	ext := storagekey.Extension(f.OriginalName)
	if ext != "3mf" {
		outcome.Status = OutcomeFailed
		outcome.Reason = FailureNot3MF
		outcome.Message = fmt.Sprintf("expected a .3mf file, got .%s", ext)
		return outcome
	}
	if int64(len(f.Data)) > containerLimitBytes {
		outcome.Status = OutcomeFailed
		outcome.Reason = FailureTooLarge
		outcome.Message = fmt.Sprintf("file exceeds %d bytes", int64(containerLimitBytes))
		return outcome
	}

	parsed, err := slicer.ParseBytes(f.Data)
	if err != nil {
		outcome.Status = OutcomeFailed
		var parseErr *slicer.ParseError
		switch {
		case errors.As(err, &parseErr):
			outcome.Reason = FailureParseError
			outcome.Message = parseErr.Error()
		default:
			outcome.Reason = FailureUnknownFormat
			outcome.Message = "slicer format not recognized"
		}
		return outcome
	}

	if conflicting := findConflict(parsed.PrinterName, existing); conflicting != nil {
		tempKey := storagekey.TempKey(time.Now(), storagekey.StoredFilename(f.OriginalName))
		if _, err := s.objects.Upload(ctx, tempKey, f.Data, contentTypeFor(f.OriginalName, f.MIMEType)); err != nil {
			outcome.Status = OutcomeFailed
			outcome.Reason = FailureStorage
			outcome.Message = "failed to stash conflicting file"
			log.Printf("[Profile] Failed to stash %s at %s: %v", f.OriginalName, tempKey, err)
			return outcome
		}
		outcome.Status = OutcomeConflict
		outcome.Conflict = &ProfileConflict{
			ExistingProfileID:   conflicting.ID,
			ExistingPrinterName: conflicting.PrinterName,
			NewPrinterName:      parsed.PrinterName,
			SlicerType:          parsed.SlicerType,
			TempKey:             tempKey,
			OriginalFilename:    f.OriginalName,
		}
		return outcome
	}

	profile, err := s.createDedicated(ctx, model, version, f.Data, f.OriginalName, f.MIMEType, actorID, ip, parsed, parsed.PrinterName)
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Reason = FailureStorage
		outcome.Message = err.Error()
		return outcome
	}

	outcome.Status = OutcomeSuccess
	outcome.Profile = profile
	return outcome
}

type ResolveConflictInput struct {
	VersionID         uuid.UUID
	OrganizationID    string
	ActorID           string
	Action            string
	TempKey           string
	OriginalFilename  string
	ExistingProfileID uuid.UUID
	IP                string
}

// ResolveConflict завершает отложенный конфликт: replace удаляет старый
// профиль и создает новый, keep_both создает новый с уникализированным именем
// принтера, skip отбрасывает файл. Временный объект удаляется в любом исходе.
func (s *ProfileService) ResolveConflict(ctx context.Context, in ResolveConflictInput) (*domain.PrintProfile, error) {
	version, err := s.versions.GetForOrg(ctx, in.VersionID, in.OrganizationID)
	if err != nil {
		return nil, mapNoRows(err)
	}

	if in.Action == ResolveSkip {
		s.dropTemp(ctx, in.TempKey)
		return nil, nil
	}

	model, err := s.models.GetForOrg(ctx, version.ModelID, in.OrganizationID)
	if err != nil {
		return nil, mapNoRows(err)
	}

	data, contentType, err := s.objects.GetBytes(ctx, in.TempKey)
	if err != nil {
		if errors.Is(err, s3.ErrNotFound) {
			return nil, ErrNotFoundOrDenied
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	parsed, err := slicer.ParseBytes(data)
	if err != nil {
		// файл уже разбирался при загрузке, сюда попадает только порча
		return nil, fmt.Errorf("%w: stashed file is no longer parseable: %v", ErrStorage, err)
	}

	printerName := parsed.PrinterName
	switch in.Action {
	case ResolveReplace:
		if err := s.DeleteProfile(ctx, in.ExistingProfileID, in.OrganizationID); err != nil {
			return nil, err
		}
	case ResolveKeepBoth:
		existing, err := s.profiles.ListByVersion(ctx, version.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		printerName = disambiguatePrinterName(parsed.PrinterName, existing)
	default:
		return nil, fmt.Errorf("unknown conflict action %q", in.Action)
	}

	profile, err := s.createDedicated(ctx, model, version, data, in.OriginalFilename, contentType, in.ActorID, in.IP, parsed, printerName)
	if err != nil {
		return nil, err
	}

	s.dropTemp(ctx, in.TempKey)
	return profile, nil
}

// AutoCreateFromFile строит профиль из 3MF-файла, загруженного в партии
// версии. Конфликт по имени принтера здесь молча пропускается: авторазбор
// не должен мешать загрузке версии.
func (s *ProfileService) AutoCreateFromFile(
	ctx context.Context,
	model *domain.Model,
	version *domain.ModelVersion,
	file *domain.ModelFile,
	data []byte,
) error {
	parsed, err := slicer.ParseBytes(data)
	if err != nil {
		if errors.Is(err, slicer.ErrUnknownFormat) {
			// обычный 3MF без слайсерных метаданных
			return nil
		}
		return err
	}

	existing, err := s.profiles.ListByVersion(ctx, version.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if findConflict(parsed.PrinterName, existing) != nil {
		log.Printf("[Profile] Skipping auto profile for %s: printer %q already present", file.OriginalFilename, parsed.PrinterName)
		return nil
	}

	thumbPath := s.uploadProfileThumbnail(ctx, model, version.Label, parsed)

	profile := buildProfile(version.ID, file.ID, parsed, parsed.PrinterName, thumbPath, false)
	if err := s.profiles.Create(ctx, profile); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// DeleteProfile удаляет профиль. Выделенный slicer-файл профиля удаляется
// вместе с ним из хранилища и из метаданных; профиль поверх source-файла
// оставляет файл нетронутым.
func (s *ProfileService) DeleteProfile(ctx context.Context, profileID uuid.UUID, orgID string) error {
	profile, err := s.profiles.GetForOrg(ctx, profileID, orgID)
	if err != nil {
		return mapNoRows(err)
	}

	if profile.ThumbnailPath != nil {
		if err := s.objects.Delete(ctx, *profile.ThumbnailPath); err != nil {
			log.Printf("[Profile] Failed to delete thumbnail %s: %v", *profile.ThumbnailPath, err)
		}
	}

	if !profile.Dedicated {
		if err := s.profiles.Delete(ctx, profile.ID); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return nil
	}

	file, err := s.versions.GetFileForOrg(ctx, profile.ModelFileID, orgID)
	if err != nil {
		return mapNoRows(err)
	}

	// сначала объект: Delete трактует "уже нет" как успех, поэтому
	// повтор после частичного сбоя безопасен
	if err := s.objects.Delete(ctx, file.StorageKey); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if err := s.profiles.DeleteWithFile(ctx, profile.ID, file.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := s.usage.AddStorage(ctx, orgID, -file.SizeBytes); err != nil {
		log.Printf("[Profile] Failed to bump storage counter for org %s: %v", orgID, err)
	}
	return nil
}

// ListProfiles возвращает профили версии.
func (s *ProfileService) ListProfiles(ctx context.Context, versionID uuid.UUID, orgID string) ([]domain.PrintProfile, error) {
	version, err := s.versions.GetForOrg(ctx, versionID, orgID)
	if err != nil {
		return nil, mapNoRows(err)
	}

	profiles, err := s.profiles.ListByVersion(ctx, version.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return profiles, nil
}

// createDedicated загружает slicer-файл, его миниатюру и одной транзакцией
// создает запись файла с профилем. При сбое записи объекты компенсируются.
func (s *ProfileService) createDedicated(
	ctx context.Context,
	model *domain.Model,
	version *domain.ModelVersion,
	data []byte,
	originalName string,
	mimeType string,
	actorID string,
	ip string,
	parsed *slicer.ParsedProfile,
	printerName string,
) (*domain.PrintProfile, error) {
	undo := &undoStack{objects: s.objects}

	stored := storagekey.StoredFilename(originalName)
	key := storagekey.Build(model.OrganizationID, model.ID, version.Label, stored, storagekey.KindSlicer)
	contentType := contentTypeFor(originalName, mimeType)

	info, err := s.objects.Upload(ctx, key, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: upload %s: %v", ErrStorage, originalName, err)
	}
	undo.push(key)

	thumbPath := s.uploadProfileThumbnail(ctx, model, version.Label, parsed)

	file := &domain.ModelFile{
		ID:               uuid.New(),
		VersionID:        version.ID,
		StoredFilename:   stored,
		OriginalFilename: originalName,
		SizeBytes:        info.Size,
		MIMEType:         contentType,
		Extension:        "3mf",
		StorageKey:       key,
		StorageBucket:    s.objects.Bucket(),
		Metadata: domain.JSONMap{
			"uploaded_by": actorID,
			"uploaded_at": time.Now().UTC().Format(time.RFC3339),
			"upload_ip":   ip,
		},
	}

	profile := buildProfile(version.ID, file.ID, parsed, printerName, thumbPath, true)

	if err := s.profiles.CreateWithFile(ctx, file, profile); err != nil {
		if thumbPath != nil {
			undo.push(*thumbPath)
		}
		undo.rollback(ctx)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := s.usage.AddStorage(ctx, model.OrganizationID, info.Size); err != nil {
		log.Printf("[Profile] Failed to bump storage counter for org %s: %v", model.OrganizationID, err)
	}
	return profile, nil
}

// uploadProfileThumbnail сохраняет миниатюру профиля. Любой сбой здесь
// не критичен: профиль полезен и без картинки.
func (s *ProfileService) uploadProfileThumbnail(
	ctx context.Context,
	model *domain.Model,
	label string,
	parsed *slicer.ParsedProfile,
) *string {
	if len(parsed.Thumbnail) == 0 {
		return nil
	}

	normalized, err := s.thumbs.Normalize(parsed.Thumbnail)
	if err != nil {
		log.Printf("[Profile] Thumbnail normalization failed for model %s: %v", model.ID, err)
		normalized = parsed.Thumbnail
	}

	stored := storagekey.StoredFilename("profile.png")
	key := storagekey.Build(model.OrganizationID, model.ID, label, stored, storagekey.KindArtifact)

	if _, err := s.objects.Upload(ctx, key, normalized, "image/png"); err != nil {
		log.Printf("[Profile] Failed to upload thumbnail for model %s: %v", model.ID, err)
		return nil
	}
	return &key
}

func (s *ProfileService) dropTemp(ctx context.Context, tempKey string) {
	if err := s.objects.Delete(ctx, tempKey); err != nil {
		log.Printf("[Profile] Failed to delete temp object %s: %v", tempKey, err)
	}
}

func buildProfile(
	versionID uuid.UUID,
	fileID uuid.UUID,
	parsed *slicer.ParsedProfile,
	printerName string,
	thumbPath *string,
	dedicated bool,
) *domain.PrintProfile {
	return &domain.PrintProfile{
		ID:                    uuid.New(),
		VersionID:             versionID,
		ModelFileID:           fileID,
		PrinterName:           printerName,
		NormalizedPrinterName: slicer.NormalizePrinterName(printerName),
		ThumbnailPath:         thumbPath,
		SlicerType:            parsed.SlicerType,
		PrintTimeSeconds:      parsed.Metadata.PrintTimeSeconds,
		FilamentSummary:       parsed.Metadata.FilamentSummary,
		FilamentWeightGrams:   parsed.Metadata.FilamentWeightGrams,
		LayerHeightMm:         parsed.Metadata.LayerHeightMm,
		InfillPercent:         parsed.Metadata.InfillPercent,
		NozzleTempC:           parsed.Metadata.NozzleTempC,
		BedTempC:              parsed.Metadata.BedTempC,
		PlateCopies:           parsed.Metadata.PlateCopies,
		Dedicated:             dedicated,
	}
}

func findConflict(printerName string, existing []domain.PrintProfile) *domain.PrintProfile {
	normalized := slicer.NormalizePrinterName(printerName)
	for i := range existing {
		if existing[i].NormalizedPrinterName == normalized {
			return &existing[i]
		}
	}
	return nil
}

// disambiguatePrinterName подбирает свободное имя принтера, добавляя
// числовой суффикс: "X1C" -> "X1C (2)" -> "X1C (3)".
func disambiguatePrinterName(name string, existing []domain.PrintProfile) string {
	candidate := name
	for n := 2; findConflict(candidate, existing) != nil; n++ {
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}
	return candidate
}
