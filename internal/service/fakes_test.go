package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"printvault/internal/domain"
	"printvault/internal/repository"
	"printvault/internal/service/s3"
)

// Фейковые хранилища для тестов конвейера: поведение повторяет контракт
// репозиториев (sql.ErrNoRows, оптимистическая проверка версии) без базы.

type fakeModelStore struct {
	models map[uuid.UUID]*domain.Model
}

func newFakeModelStore() *fakeModelStore {
	return &fakeModelStore{models: make(map[uuid.UUID]*domain.Model)}
}

func (f *fakeModelStore) Create(_ context.Context, model *domain.Model) error {
	model.CreatedAt = time.Now()
	model.UpdatedAt = model.CreatedAt
	stored := *model
	f.models[model.ID] = &stored
	return nil
}

func (f *fakeModelStore) GetForOrg(_ context.Context, modelID uuid.UUID, orgID string) (*domain.Model, error) {
	m, ok := f.models[modelID]
	if !ok || m.OrganizationID != orgID || m.DeletedAt != nil {
		return nil, sql.ErrNoRows
	}
	copy := *m
	return &copy, nil
}

func (f *fakeModelStore) ListByOrg(_ context.Context, orgID string) ([]domain.Model, error) {
	var out []domain.Model
	for _, m := range f.models {
		if m.OrganizationID == orgID && m.DeletedAt == nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeModelStore) SlugExists(_ context.Context, orgID string, slug string) (bool, error) {
	for _, m := range f.models {
		if m.OrganizationID == orgID && m.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeModelStore) Rename(_ context.Context, modelID uuid.UUID, orgID string, newName string, newDescription string) error {
	m, ok := f.models[modelID]
	if !ok || m.OrganizationID != orgID || m.DeletedAt != nil {
		return sql.ErrNoRows
	}
	m.Name = newName
	m.Description = newDescription
	return nil
}

func (f *fakeModelStore) SoftDelete(_ context.Context, modelID uuid.UUID, orgID string) error {
	m, ok := f.models[modelID]
	if !ok || m.OrganizationID != orgID || m.DeletedAt != nil {
		return sql.ErrNoRows
	}
	now := time.Now()
	m.DeletedAt = &now
	return nil
}

type fakeVersionStore struct {
	models    *fakeModelStore
	versions  map[uuid.UUID]*domain.ModelVersion
	files     map[uuid.UUID][]domain.ModelFile
	createErr error
	appendErr error
}

func newFakeVersionStore(models *fakeModelStore) *fakeVersionStore {
	return &fakeVersionStore{
		models:   models,
		versions: make(map[uuid.UUID]*domain.ModelVersion),
		files:    make(map[uuid.UUID][]domain.ModelFile),
	}
}

func (f *fakeVersionStore) CreateVersion(_ context.Context, model *domain.Model, previousLabel string, version *domain.ModelVersion, files []*domain.ModelFile) error {
	if f.createErr != nil {
		return f.createErr
	}

	stored, ok := f.models.models[model.ID]
	if !ok || stored.DeletedAt != nil || stored.CurrentVersion != previousLabel {
		return repository.ErrVersionRace
	}

	version.CreatedAt = time.Now()
	version.UpdatedAt = version.CreatedAt
	v := *version
	f.versions[version.ID] = &v
	for _, file := range files {
		f.files[version.ID] = append(f.files[version.ID], *file)
	}

	stored.CurrentVersion = version.Label
	stored.TotalVersions++
	model.CurrentVersion = version.Label
	model.TotalVersions++
	return nil
}

func (f *fakeVersionStore) AppendFiles(_ context.Context, versionID uuid.UUID, files []*domain.ModelFile) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	for _, file := range files {
		f.files[versionID] = append(f.files[versionID], *file)
	}
	return nil
}

func (f *fakeVersionStore) GetForOrg(_ context.Context, versionID uuid.UUID, orgID string) (*domain.ModelVersion, error) {
	v, ok := f.versions[versionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	m, ok := f.models.models[v.ModelID]
	if !ok || m.OrganizationID != orgID || m.DeletedAt != nil {
		return nil, sql.ErrNoRows
	}
	copy := *v
	return &copy, nil
}

func (f *fakeVersionStore) GetByLabel(_ context.Context, modelID uuid.UUID, label string) (*domain.ModelVersion, error) {
	for _, v := range f.versions {
		if v.ModelID == modelID && v.Label == label {
			copy := *v
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeVersionStore) ListByModel(_ context.Context, modelID uuid.UUID) ([]domain.ModelVersion, error) {
	var out []domain.ModelVersion
	for _, v := range f.versions {
		if v.ModelID == modelID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeVersionStore) ListFiles(_ context.Context, versionID uuid.UUID) ([]domain.ModelFile, error) {
	return append([]domain.ModelFile(nil), f.files[versionID]...), nil
}

func (f *fakeVersionStore) GetFileForOrg(_ context.Context, fileID uuid.UUID, orgID string) (*domain.ModelFile, error) {
	for versionID, files := range f.files {
		for _, file := range files {
			if file.ID != fileID {
				continue
			}
			if _, err := f.GetForOrg(context.Background(), versionID, orgID); err != nil {
				return nil, err
			}
			copy := file
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeVersionStore) MarkFileProcessed(_ context.Context, fileID uuid.UUID) error {
	for versionID, files := range f.files {
		for i, file := range files {
			if file.ID == fileID {
				f.files[versionID][i].Metadata["processed"] = true
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

func (f *fakeVersionStore) UpdateMeta(_ context.Context, versionID uuid.UUID, name string, changelog string) error {
	v, ok := f.versions[versionID]
	if !ok {
		return sql.ErrNoRows
	}
	v.Name = name
	v.Changelog = changelog
	return nil
}

type fakeProfileStore struct {
	versions  *fakeVersionStore
	byVersion map[uuid.UUID][]domain.PrintProfile
	createErr error
}

func newFakeProfileStore(versions *fakeVersionStore) *fakeProfileStore {
	return &fakeProfileStore{
		versions:  versions,
		byVersion: make(map[uuid.UUID][]domain.PrintProfile),
	}
}

func (f *fakeProfileStore) ListByVersion(_ context.Context, versionID uuid.UUID) ([]domain.PrintProfile, error) {
	return append([]domain.PrintProfile(nil), f.byVersion[versionID]...), nil
}

func (f *fakeProfileStore) Create(_ context.Context, profile *domain.PrintProfile) error {
	if f.createErr != nil {
		return f.createErr
	}
	profile.CreatedAt = time.Now()
	f.byVersion[profile.VersionID] = append(f.byVersion[profile.VersionID], *profile)
	return nil
}

func (f *fakeProfileStore) CreateWithFile(ctx context.Context, file *domain.ModelFile, profile *domain.PrintProfile) error {
	if f.createErr != nil {
		return f.createErr
	}
	if err := f.versions.AppendFiles(ctx, file.VersionID, []*domain.ModelFile{file}); err != nil {
		return err
	}
	profile.ModelFileID = file.ID
	return f.Create(ctx, profile)
}

func (f *fakeProfileStore) GetForOrg(_ context.Context, profileID uuid.UUID, orgID string) (*domain.PrintProfile, error) {
	for versionID, profiles := range f.byVersion {
		for _, p := range profiles {
			if p.ID != profileID {
				continue
			}
			if _, err := f.versions.GetForOrg(context.Background(), versionID, orgID); err != nil {
				return nil, err
			}
			copy := p
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeProfileStore) Delete(_ context.Context, profileID uuid.UUID) error {
	for versionID, profiles := range f.byVersion {
		for i, p := range profiles {
			if p.ID == profileID {
				f.byVersion[versionID] = append(profiles[:i], profiles[i+1:]...)
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

func (f *fakeProfileStore) DeleteWithFile(ctx context.Context, profileID uuid.UUID, fileID uuid.UUID) error {
	if err := f.Delete(ctx, profileID); err != nil {
		return err
	}
	for versionID, files := range f.versions.files {
		for i, file := range files {
			if file.ID == fileID {
				f.versions.files[versionID] = append(files[:i], files[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

type fakeOrgStore struct {
	limit        int64
	live         int64
	liveModels   int
	storageDelta int64
	modelDelta   int
	reconciles   int
}

func (f *fakeOrgStore) Get(_ context.Context, orgID string) (*domain.Organization, error) {
	return &domain.Organization{ID: orgID, Name: orgID, StorageLimitBytes: f.limit}, nil
}

func (f *fakeOrgStore) AddStorageUsage(_ context.Context, _ string, deltaBytes int64) error {
	f.storageDelta += deltaBytes
	return nil
}

func (f *fakeOrgStore) AddModelCount(_ context.Context, _ string, delta int) error {
	f.modelDelta += delta
	return nil
}

func (f *fakeOrgStore) LiveStorageUsage(_ context.Context, _ string) (int64, error) {
	return f.live, nil
}

func (f *fakeOrgStore) LiveModelCount(_ context.Context, _ string) (int, error) {
	return f.liveModels, nil
}

func (f *fakeOrgStore) ReconcileStorageUsage(_ context.Context, _ string) error {
	f.reconciles++
	return nil
}

// fakeStorage повторяет контракт s3.Storage в памяти: Delete отсутствующего
// объекта успешен, DeleteMany дает поштучный отчет.
type fakeStorage struct {
	objects       map[string][]byte
	uploads       []string
	deletes       []string
	failKeySubstr string
	failDeleteKey string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(_ context.Context, key string, data []byte, _ string) (*s3.UploadInfo, error) {
	if f.failKeySubstr != "" && strings.Contains(key, f.failKeySubstr) {
		return nil, errors.New("upload failed")
	}
	f.objects[key] = append([]byte(nil), data...)
	f.uploads = append(f.uploads, key)
	return &s3.UploadInfo{Key: key, Size: int64(len(data)), ETag: "etag"}, nil
}

func (f *fakeStorage) UploadStream(ctx context.Context, key string, r io.Reader, contentType string) (*s3.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return f.Upload(ctx, key, data, contentType)
}

func (f *fakeStorage) GetBytes(_ context.Context, key string) ([]byte, string, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, "", s3.ErrNotFound
	}
	return append([]byte(nil), data...), "application/octet-stream", nil
}

type fakeObject struct {
	io.ReadCloser
	size int64
}

func (o *fakeObject) ContentLength() int64 { return o.size }
func (o *fakeObject) ContentType() string  { return "application/octet-stream" }

func (f *fakeStorage) GetObject(_ context.Context, key string) (s3.Object, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, s3.ErrNotFound
	}
	return &fakeObject{
		ReadCloser: io.NopCloser(bytes.NewReader(data)),
		size:       int64(len(data)),
	}, nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	if f.failDeleteKey != "" && key == f.failDeleteKey {
		return errors.New("delete failed")
	}
	delete(f.objects, key)
	f.deletes = append(f.deletes, key)
	return nil
}

func (f *fakeStorage) DeleteMany(ctx context.Context, keys []string) *s3.DeleteReport {
	report := &s3.DeleteReport{Failed: make(map[string]error)}
	for _, key := range keys {
		if err := f.Delete(ctx, key); err != nil {
			report.Failed[key] = err
			continue
		}
		report.Deleted = append(report.Deleted, key)
	}
	return report
}

func (f *fakeStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStorage) Head(_ context.Context, key string) (*s3.ObjectMeta, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, s3.ErrNotFound
	}
	return &s3.ObjectMeta{Size: int64(len(data))}, nil
}

func (f *fakeStorage) PresignDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (f *fakeStorage) Bucket() string {
	return "test-bucket"
}

type fakeThumbnailer struct {
	err error
}

func (f *fakeThumbnailer) Normalize(data []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return data, nil
}
