package service

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printvault/internal/domain"
)

func seedVersion(t *testing.T, env *testEnv) (*domain.Model, *domain.ModelVersion) {
	t.Helper()

	model := env.addModel("org-1", "Benchy")
	result, err := env.versionSvc.AddVersion(context.Background(), AddVersionInput{
		ModelID:        model.ID,
		OrganizationID: "org-1",
		ActorID:        "user-1",
		Files:          []UploadFile{stlFile("benchy.stl")},
	})
	require.NoError(t, err)
	return model, result.Version
}

// plain3MF — валидный ZIP без слайсерных метаданных.
func plain3MF(t *testing.T) UploadFile {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("3D/3dmodel.model")
	require.NoError(t, err)
	_, err = w.Write([]byte("<model/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return UploadFile{OriginalName: "plain.3mf", Data: buf.Bytes()}
}

func named3MF(t *testing.T, filename string, printerName string) UploadFile {
	t.Helper()

	f := make3MF(t, printerName)
	f.OriginalName = filename
	return f
}

func TestUploadProfilesOutcomes(t *testing.T) {
	env := newTestEnv()
	_, version := seedVersion(t, env)

	outcomes, err := env.profileSvc.UploadProfiles(context.Background(), UploadProfilesInput{
		VersionID:      version.ID,
		OrganizationID: "org-1",
		ActorID:        "user-1",
		Files: []UploadFile{
			stlFile("not-a-profile.stl"),
			plain3MF(t),
			named3MF(t, "x1c.3mf", "Bambu Lab X1 Carbon"),
		},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, OutcomeFailed, outcomes[0].Status)
	assert.Equal(t, FailureNot3MF, outcomes[0].Reason)

	assert.Equal(t, OutcomeFailed, outcomes[1].Status)
	assert.Equal(t, FailureUnknownFormat, outcomes[1].Reason)

	assert.Equal(t, OutcomeSuccess, outcomes[2].Status)
	require.NotNil(t, outcomes[2].Profile)
	assert.Equal(t, "Bambu Lab X1 Carbon", outcomes[2].Profile.PrinterName)
	assert.True(t, outcomes[2].Profile.Dedicated)
}

func TestUploadProfilesParseError(t *testing.T) {
	env := newTestEnv()
	_, version := seedVersion(t, env)

	broken := make3MF(t, "X1C")
	// портим JSON настроек, маркер Bambu остается на месте
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("Metadata/project_settings.config")
	require.NoError(t, err)
	_, err = w.Write([]byte("{broken json"))
	require.NoError(t, err)
	w, err = zw.Create("Metadata/slice_info.config")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<config><header><header_item key="X-BBL-Client-Type" value="slicer"/></header></config>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	broken.Data = buf.Bytes()

	outcomes, err := env.profileSvc.UploadProfiles(context.Background(), UploadProfilesInput{
		VersionID:      version.ID,
		OrganizationID: "org-1",
		Files:          []UploadFile{broken},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, OutcomeFailed, outcomes[0].Status)
	assert.Equal(t, FailureParseError, outcomes[0].Reason)
}

func TestUploadProfilesConflictStashesFile(t *testing.T) {
	env := newTestEnv()
	_, version := seedVersion(t, env)

	first, err := env.profileSvc.UploadProfiles(context.Background(), UploadProfilesInput{
		VersionID:      version.ID,
		OrganizationID: "org-1",
		Files:          []UploadFile{named3MF(t, "first.3mf", "Bambu Lab X1 Carbon")},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, first[0].Status)

	// другое написание того же принтера нормализуется в то же имя
	second, err := env.profileSvc.UploadProfiles(context.Background(), UploadProfilesInput{
		VersionID:      version.ID,
		OrganizationID: "org-1",
		Files:          []UploadFile{named3MF(t, "second.3mf", "bambu x1 carbon")},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeConflict, second[0].Status)

	conflict := second[0].Conflict
	require.NotNil(t, conflict)
	assert.Equal(t, first[0].Profile.ID, conflict.ExistingProfileID)
	assert.Equal(t, "Bambu Lab X1 Carbon", conflict.ExistingPrinterName)
	assert.Equal(t, "bambu x1 carbon", conflict.NewPrinterName)
	assert.True(t, strings.HasPrefix(conflict.TempKey, "temp/"), "temp key %s", conflict.TempKey)

	_, ok := env.storage.objects[conflict.TempKey]
	assert.True(t, ok, "conflicting file must be stashed")

	profiles, err := env.profileSvc.ListProfiles(context.Background(), version.ID, "org-1")
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestUploadProfilesIntraBatchConflict(t *testing.T) {
	env := newTestEnv()
	_, version := seedVersion(t, env)

	outcomes, err := env.profileSvc.UploadProfiles(context.Background(), UploadProfilesInput{
		VersionID:      version.ID,
		OrganizationID: "org-1",
		Files: []UploadFile{
			named3MF(t, "a.3mf", "X1 Carbon"),
			named3MF(t, "b.3mf", "X1 Carbon"),
		},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, OutcomeSuccess, outcomes[0].Status)
	assert.Equal(t, OutcomeConflict, outcomes[1].Status)
}

func TestUploadProfilesCrossTenant(t *testing.T) {
	env := newTestEnv()
	_, version := seedVersion(t, env)

	_, err := env.profileSvc.UploadProfiles(context.Background(), UploadProfilesInput{
		VersionID:      version.ID,
		OrganizationID: "org-2",
		Files:          []UploadFile{named3MF(t, "x.3mf", "X1C")},
	})
	assert.ErrorIs(t, err, ErrNotFoundOrDenied)
}

// stashConflict подготавливает разрешаемый конфликт: существующий профиль
// плюс отложенный файл во временном хранилище.
func stashConflict(t *testing.T, env *testEnv, version *domain.ModelVersion) (*domain.PrintProfile, *ProfileConflict) {
	t.Helper()

	first, err := env.profileSvc.UploadProfiles(context.Background(), UploadProfilesInput{
		VersionID:      version.ID,
		OrganizationID: "org-1",
		Files:          []UploadFile{named3MF(t, "first.3mf", "Bambu Lab X1 Carbon")},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, first[0].Status)

	second, err := env.profileSvc.UploadProfiles(context.Background(), UploadProfilesInput{
		VersionID:      version.ID,
		OrganizationID: "org-1",
		Files:          []UploadFile{named3MF(t, "second.3mf", "Bambu Lab X1 Carbon")},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeConflict, second[0].Status)

	return first[0].Profile, second[0].Conflict
}

func TestResolveConflictKeepBoth(t *testing.T) {
	env := newTestEnv()
	_, version := seedVersion(t, env)
	_, conflict := stashConflict(t, env, version)

	profile, err := env.profileSvc.ResolveConflict(context.Background(), ResolveConflictInput{
		VersionID:         version.ID,
		OrganizationID:    "org-1",
		Action:            ResolveKeepBoth,
		TempKey:           conflict.TempKey,
		OriginalFilename:  conflict.OriginalFilename,
		ExistingProfileID: conflict.ExistingProfileID,
	})
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Bambu Lab X1 Carbon (2)", profile.PrinterName)

	profiles, err := env.profileSvc.ListProfiles(context.Background(), version.ID, "org-1")
	require.NoError(t, err)
	assert.Len(t, profiles, 2)

	_, ok := env.storage.objects[conflict.TempKey]
	assert.False(t, ok, "temp object must be removed after resolution")
}

func TestResolveConflictReplace(t *testing.T) {
	env := newTestEnv()
	_, version := seedVersion(t, env)
	existing, conflict := stashConflict(t, env, version)

	existingFile, err := env.versions.GetFileForOrg(context.Background(), existing.ModelFileID, "org-1")
	require.NoError(t, err)

	profile, err := env.profileSvc.ResolveConflict(context.Background(), ResolveConflictInput{
		VersionID:         version.ID,
		OrganizationID:    "org-1",
		Action:            ResolveReplace,
		TempKey:           conflict.TempKey,
		OriginalFilename:  conflict.OriginalFilename,
		ExistingProfileID: conflict.ExistingProfileID,
	})
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.NotEqual(t, existing.ID, profile.ID)

	profiles, err := env.profileSvc.ListProfiles(context.Background(), version.ID, "org-1")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, profile.ID, profiles[0].ID)

	// slicer-файл старого профиля ушел из хранилища вместе с ним
	_, ok := env.storage.objects[existingFile.StorageKey]
	assert.False(t, ok)
}

func TestResolveConflictSkip(t *testing.T) {
	env := newTestEnv()
	_, version := seedVersion(t, env)
	_, conflict := stashConflict(t, env, version)

	profile, err := env.profileSvc.ResolveConflict(context.Background(), ResolveConflictInput{
		VersionID:      version.ID,
		OrganizationID: "org-1",
		Action:         ResolveSkip,
		TempKey:        conflict.TempKey,
	})
	require.NoError(t, err)
	assert.Nil(t, profile)

	_, ok := env.storage.objects[conflict.TempKey]
	assert.False(t, ok)

	profiles, err := env.profileSvc.ListProfiles(context.Background(), version.ID, "org-1")
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestResolveConflictMissingTemp(t *testing.T) {
	env := newTestEnv()
	_, version := seedVersion(t, env)

	_, err := env.profileSvc.ResolveConflict(context.Background(), ResolveConflictInput{
		VersionID:      version.ID,
		OrganizationID: "org-1",
		Action:         ResolveKeepBoth,
		TempKey:        "temp/1-gone.3mf",
	})
	assert.ErrorIs(t, err, ErrNotFoundOrDenied)
}

func TestDeleteProfileDedicatedRemovesFile(t *testing.T) {
	env := newTestEnv()
	_, version := seedVersion(t, env)

	outcomes, err := env.profileSvc.UploadProfiles(context.Background(), UploadProfilesInput{
		VersionID:      version.ID,
		OrganizationID: "org-1",
		Files:          []UploadFile{named3MF(t, "x1c.3mf", "X1 Carbon")},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, outcomes[0].Status)
	profile := outcomes[0].Profile

	file, err := env.versions.GetFileForOrg(context.Background(), profile.ModelFileID, "org-1")
	require.NoError(t, err)

	require.NoError(t, env.profileSvc.DeleteProfile(context.Background(), profile.ID, "org-1"))

	profiles, err := env.profileSvc.ListProfiles(context.Background(), version.ID, "org-1")
	require.NoError(t, err)
	assert.Empty(t, profiles)

	_, ok := env.storage.objects[file.StorageKey]
	assert.False(t, ok)

	_, err = env.versions.GetFileForOrg(context.Background(), file.ID, "org-1")
	assert.Error(t, err)
}

func TestDeleteProfileOverSourceFileKeepsFile(t *testing.T) {
	env := newTestEnv()
	model := env.addModel("org-1", "Benchy")

	// автопрофиль из 3MF в партии версии сидит поверх source-файла
	result, err := env.versionSvc.AddVersion(context.Background(), AddVersionInput{
		ModelID:        model.ID,
		OrganizationID: "org-1",
		Files:          []UploadFile{make3MF(t, "X1 Carbon")},
	})
	require.NoError(t, err)

	profiles, err := env.profileSvc.ListProfiles(context.Background(), result.Version.ID, "org-1")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.False(t, profiles[0].Dedicated)

	require.NoError(t, env.profileSvc.DeleteProfile(context.Background(), profiles[0].ID, "org-1"))

	// source-файл версии остался и в метаданных, и в хранилище
	file, err := env.versions.GetFileForOrg(context.Background(), result.Files[0].ID, "org-1")
	require.NoError(t, err)
	_, ok := env.storage.objects[file.StorageKey]
	assert.True(t, ok)
}
