package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"mime"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"printvault/internal/domain"
	"printvault/internal/service/s3"
	"printvault/internal/slicer"
	"printvault/internal/storagekey"
)

// Лимиты размера по расширениям. Меш-форматы текстовые либо компактные
// бинарные, 3MF-контейнер несет проекты слайсера целиком и заметно тяжелее.
const (
	meshLimitBytes      = 100 << 20
	containerLimitBytes = 500 << 20
	previewLimitBytes   = 10 << 20
)

var uploadLimits = map[string]int64{
	"stl": meshLimitBytes,
	"obj": meshLimitBytes,
	"ply": meshLimitBytes,
	"3mf": containerLimitBytes,
}

var previewExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"webp": true,
}

// UploadFile — один файл из multipart-запроса или программной загрузки.
type UploadFile struct {
	OriginalName string
	MIMEType     string
	Data         []byte
}

// VersionService реализует конвейер добавления версии: валидация,
// последовательная загрузка объектов, транзакционная фиксация метаданных и
// компенсирующий откат хранилища при любом сбое после первой загрузки.
type VersionService struct {
	models   ModelStore
	versions VersionStore
	objects  s3.Storage
	usage    *UsageService
	profiles *ProfileService
	thumbs   Thumbnailer
}

func NewVersionService(
	models ModelStore,
	versions VersionStore,
	objects s3.Storage,
	usage *UsageService,
	profiles *ProfileService,
	thumbs Thumbnailer,
) *VersionService {
	return &VersionService{
		models:   models,
		versions: versions,
		objects:  objects,
		usage:    usage,
		profiles: profiles,
		thumbs:   thumbs,
	}
}

type AddVersionInput struct {
	ModelID        uuid.UUID
	OrganizationID string
	ActorID        string
	Name           string
	Changelog      string
	Files          []UploadFile
	PreviewImage   *UploadFile
	IP             string
}

type AddVersionResult struct {
	Version *domain.ModelVersion `json:"version"`
	Files   []domain.ModelFile   `json:"files"`
}

// AddVersion добавляет новую версию модели. Запись в базу происходит строго
// после того, как все объекты легли в хранилище; при сбое уже загруженные
// объекты удаляются в обратном порядке. До первой записи в хранилище операция
// свободна от побочных эффектов.
func (s *VersionService) AddVersion(ctx context.Context, in AddVersionInput) (*AddVersionResult, error) {
	if len(in.Files) == 0 {
		return nil, ErrEmptyUpload
	}

	var totalBytes int64
	for _, f := range in.Files {
		if err := validateUpload(f); err != nil {
			return nil, err
		}
		totalBytes += int64(len(f.Data))
	}
	if err := validatePreview(in.PreviewImage); err != nil {
		return nil, err
	}

	if err := s.usage.EnsureStorageAvailable(ctx, in.OrganizationID, totalBytes); err != nil {
		return nil, err
	}

	model, err := s.models.GetForOrg(ctx, in.ModelID, in.OrganizationID)
	if err != nil {
		return nil, mapNoRows(err)
	}

	previousLabel := model.CurrentVersion
	label := nextVersionLabel(previousLabel)

	undo := &undoStack{objects: s.objects}

	files, err := s.uploadBatch(ctx, model, label, in.Files, in.ActorID, in.IP, undo)
	if err != nil {
		undo.rollback(ctx)
		return nil, err
	}

	thumbPath, err := s.resolveThumbnail(ctx, model, label, in.PreviewImage, in.Files, undo)
	if err != nil {
		undo.rollback(ctx)
		return nil, err
	}

	version := &domain.ModelVersion{
		ID:            uuid.New(),
		ModelID:       model.ID,
		Label:         label,
		Name:          in.Name,
		Changelog:     in.Changelog,
		ThumbnailPath: thumbPath,
	}
	for _, f := range files {
		f.VersionID = version.ID
	}

	if err := s.versions.CreateVersion(ctx, model, previousLabel, version, files); err != nil {
		undo.rollback(ctx)
		if isVersionRace(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.afterCommit(ctx, model, version, files, in.Files, totalBytes)

	result := &AddVersionResult{Version: version, Files: make([]domain.ModelFile, 0, len(files))}
	for _, f := range files {
		result.Files = append(result.Files, *f)
	}
	return result, nil
}

type IngestInput struct {
	ModelID        uuid.UUID
	OrganizationID string
	ActorID        string
	// Пустая метка означает "создать новую версию"; непустая добавляет файл
	// к существующей версии.
	VersionLabel string
	VersionName  string
	Changelog    string
	File         UploadFile
	IP           string
}

// Ingest — программная загрузка одного файла. Проходит тем же конвейером,
// что и интерактивная: либо новая версия, либо дозапись к версии по метке.
func (s *VersionService) Ingest(ctx context.Context, in IngestInput) (*AddVersionResult, error) {
	if in.VersionLabel == "" {
		return s.AddVersion(ctx, AddVersionInput{
			ModelID:        in.ModelID,
			OrganizationID: in.OrganizationID,
			ActorID:        in.ActorID,
			Name:           in.VersionName,
			Changelog:      in.Changelog,
			Files:          []UploadFile{in.File},
			IP:             in.IP,
		})
	}

	if err := validateUpload(in.File); err != nil {
		return nil, err
	}
	totalBytes := int64(len(in.File.Data))

	if err := s.usage.EnsureStorageAvailable(ctx, in.OrganizationID, totalBytes); err != nil {
		return nil, err
	}

	model, err := s.models.GetForOrg(ctx, in.ModelID, in.OrganizationID)
	if err != nil {
		return nil, mapNoRows(err)
	}

	version, err := s.versions.GetByLabel(ctx, model.ID, in.VersionLabel)
	if err != nil {
		return nil, mapNoRows(err)
	}

	undo := &undoStack{objects: s.objects}

	files, err := s.uploadBatch(ctx, model, version.Label, []UploadFile{in.File}, in.ActorID, in.IP, undo)
	if err != nil {
		undo.rollback(ctx)
		return nil, err
	}
	for _, f := range files {
		f.VersionID = version.ID
	}

	if err := s.versions.AppendFiles(ctx, version.ID, files); err != nil {
		undo.rollback(ctx)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.afterCommit(ctx, model, version, files, []UploadFile{in.File}, totalBytes)

	result := &AddVersionResult{Version: version, Files: make([]domain.ModelFile, 0, len(files))}
	for _, f := range files {
		result.Files = append(result.Files, *f)
	}
	return result, nil
}

// uploadBatch последовательно загружает файлы версии в хранилище и собирает
// их будущие записи. Каждый успешный ключ попадает в undo-стек.
func (s *VersionService) uploadBatch(
	ctx context.Context,
	model *domain.Model,
	label string,
	files []UploadFile,
	actorID string,
	ip string,
	undo *undoStack,
) ([]*domain.ModelFile, error) {
	out := make([]*domain.ModelFile, 0, len(files))
	uploadedAt := time.Now().UTC().Format(time.RFC3339)

	for _, f := range files {
		ext := storagekey.Extension(f.OriginalName)
		// 3MF-контейнеры живут в своем сегменте ключей отдельно от мешей
		kind := storagekey.KindSource
		if ext == "3mf" {
			kind = storagekey.KindSlicer
		}

		stored := storagekey.StoredFilename(f.OriginalName)
		key := storagekey.Build(model.OrganizationID, model.ID, label, stored, kind)
		contentType := contentTypeFor(f.OriginalName, f.MIMEType)

		info, err := s.objects.Upload(ctx, key, f.Data, contentType)
		if err != nil {
			return nil, fmt.Errorf("%w: upload %s: %v", ErrStorage, f.OriginalName, err)
		}
		undo.push(key)

		out = append(out, &domain.ModelFile{
			ID:               uuid.New(),
			StoredFilename:   stored,
			OriginalFilename: f.OriginalName,
			SizeBytes:        info.Size,
			MIMEType:         contentType,
			Extension:        ext,
			StorageKey:       key,
			StorageBucket:    s.objects.Bucket(),
			Metadata: domain.JSONMap{
				"uploaded_by": actorID,
				"uploaded_at": uploadedAt,
				"upload_ip":   ip,
				"processed":   false,
			},
		})
	}
	return out, nil
}

// resolveThumbnail выбирает превью версии: явная картинка пользователя либо
// миниатюра из первого 3MF-файла партии. Явная картинка обязана загрузиться,
// fallback — best effort.
func (s *VersionService) resolveThumbnail(
	ctx context.Context,
	model *domain.Model,
	label string,
	preview *UploadFile,
	files []UploadFile,
	undo *undoStack,
) (*string, error) {
	if preview != nil {
		key, err := s.uploadThumbnail(ctx, model, label, preview.Data, undo)
		if err != nil {
			return nil, fmt.Errorf("%w: upload preview: %v", ErrStorage, err)
		}
		return &key, nil
	}

	for _, f := range files {
		if storagekey.Extension(f.OriginalName) != "3mf" {
			continue
		}
		parsed, err := slicer.ParseBytes(f.Data)
		if err != nil || len(parsed.Thumbnail) == 0 {
			continue
		}
		key, err := s.uploadThumbnail(ctx, model, label, parsed.Thumbnail, undo)
		if err != nil {
			log.Printf("[Version] Failed to upload fallback thumbnail for model %s: %v", model.ID, err)
			return nil, nil
		}
		return &key, nil
	}
	return nil, nil
}

func (s *VersionService) uploadThumbnail(
	ctx context.Context,
	model *domain.Model,
	label string,
	data []byte,
	undo *undoStack,
) (string, error) {
	normalized, err := s.thumbs.Normalize(data)
	if err != nil {
		// картинка остается как есть, нормализация не критична
		log.Printf("[Version] Thumbnail normalization failed for model %s: %v", model.ID, err)
		normalized = data
	}

	stored := storagekey.StoredFilename("preview.png")
	key := storagekey.Build(model.OrganizationID, model.ID, label, stored, storagekey.KindArtifact)

	if _, err := s.objects.Upload(ctx, key, normalized, "image/png"); err != nil {
		return "", err
	}
	undo.push(key)
	return key, nil
}

// afterCommit выполняет шаги после фиксации метаданных: сдвиг счетчика места
// и автоматический разбор 3MF-файлов в профили печати. Сбои здесь не
// откатывают версию, только логируются.
func (s *VersionService) afterCommit(
	ctx context.Context,
	model *domain.Model,
	version *domain.ModelVersion,
	files []*domain.ModelFile,
	uploads []UploadFile,
	totalBytes int64,
) {
	if err := s.usage.AddStorage(ctx, model.OrganizationID, totalBytes); err != nil {
		log.Printf("[Version] Failed to bump storage counter for org %s: %v", model.OrganizationID, err)
	}

	if s.profiles == nil {
		return
	}
	for i, f := range files {
		if f.Extension != "3mf" {
			continue
		}
		if err := s.profiles.AutoCreateFromFile(ctx, model, version, f, uploads[i].Data); err != nil {
			log.Printf("[Version] Auto profile from %s failed: %v", f.OriginalFilename, err)
			continue
		}
		if err := s.versions.MarkFileProcessed(ctx, f.ID); err != nil {
			log.Printf("[Version] Failed to mark file %s processed: %v", f.ID, err)
		}
	}
}

// GetVersion возвращает версию вместе со списком ее файлов.
func (s *VersionService) GetVersion(ctx context.Context, versionID uuid.UUID, orgID string) (*domain.ModelVersion, []domain.ModelFile, error) {
	version, err := s.versions.GetForOrg(ctx, versionID, orgID)
	if err != nil {
		return nil, nil, mapNoRows(err)
	}

	files, err := s.versions.ListFiles(ctx, version.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return version, files, nil
}

// ListVersions возвращает версии модели от новых к старым.
func (s *VersionService) ListVersions(ctx context.Context, modelID uuid.UUID, orgID string) ([]domain.ModelVersion, error) {
	model, err := s.models.GetForOrg(ctx, modelID, orgID)
	if err != nil {
		return nil, mapNoRows(err)
	}

	versions, err := s.versions.ListByModel(ctx, model.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return versions, nil
}

// UpdateVersionMeta редактирует имя и changelog версии. Файлы и метка
// версии неизменяемы.
func (s *VersionService) UpdateVersionMeta(ctx context.Context, versionID uuid.UUID, orgID string, name string, changelog string) (*domain.ModelVersion, error) {
	version, err := s.versions.GetForOrg(ctx, versionID, orgID)
	if err != nil {
		return nil, mapNoRows(err)
	}

	if err := s.versions.UpdateMeta(ctx, version.ID, name, changelog); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	version.Name = name
	version.Changelog = changelog
	return version, nil
}

// PresignFileDownload выдает временную ссылку на скачивание файла.
func (s *VersionService) PresignFileDownload(ctx context.Context, fileID uuid.UUID, orgID string, ttl time.Duration) (string, *domain.ModelFile, error) {
	file, err := s.versions.GetFileForOrg(ctx, fileID, orgID)
	if err != nil {
		return "", nil, mapNoRows(err)
	}

	url, err := s.objects.PresignDownloadURL(ctx, file.StorageKey, ttl)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return url, file, nil
}

// undoStack накапливает ключи загруженных объектов. rollback удаляет их в
// обратном порядке; ошибки удаления только логируются — осиротевший объект
// безопаснее потерянной записи метаданных.
type undoStack struct {
	objects s3.Storage
	keys    []string
}

func (u *undoStack) push(key string) {
	u.keys = append(u.keys, key)
}

func (u *undoStack) rollback(ctx context.Context) {
	for i := len(u.keys) - 1; i >= 0; i-- {
		if err := u.objects.Delete(ctx, u.keys[i]); err != nil {
			log.Printf("[Rollback] Failed to delete object %s: %v", u.keys[i], err)
		}
	}
	u.keys = nil
}

// validatePreview проверяет картинку превью до каких-либо записей в
// хранилище, наравне с файлами партии.
func validatePreview(preview *UploadFile) error {
	if preview == nil {
		return nil
	}

	ext := storagekey.Extension(preview.OriginalName)
	if !previewExtensions[ext] {
		return &UnsupportedTypeError{Filename: preview.OriginalName, Extension: ext}
	}
	if int64(len(preview.Data)) > previewLimitBytes {
		return &FileTooLargeError{
			Filename:  preview.OriginalName,
			Extension: ext,
			Size:      int64(len(preview.Data)),
			Limit:     previewLimitBytes,
		}
	}
	return nil
}

func validateUpload(f UploadFile) error {
	ext := storagekey.Extension(f.OriginalName)
	limit, ok := uploadLimits[ext]
	if !ok {
		return &UnsupportedTypeError{Filename: f.OriginalName, Extension: ext}
	}
	if int64(len(f.Data)) > limit {
		return &FileTooLargeError{
			Filename:  f.OriginalName,
			Extension: ext,
			Size:      int64(len(f.Data)),
			Limit:     limit,
		}
	}
	return nil
}

// nextVersionLabel вычисляет метку следующей версии. Нечитаемый суффикс
// трактуется как 1, пустая метка означает самую первую версию.
func nextVersionLabel(current string) string {
	if current == "" {
		return "v1"
	}
	n, err := strconv.Atoi(strings.TrimPrefix(current, "v"))
	if err != nil || n < 1 {
		n = 1
	}
	return "v" + strconv.Itoa(n+1)
}

func contentTypeFor(filename string, provided string) string {
	if provided != "" && provided != "application/octet-stream" {
		return provided
	}
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFoundOrDenied
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
