package storagekey

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDeterministic(t *testing.T) {
	modelID := uuid.MustParse("2b0d7b3d-b9f1-4f0e-9c1a-000000000001")

	key := Build("org-42", modelID, "v3", "benchy-ab12cd34.stl", KindSource)
	assert.Equal(t, "org-42/2b0d7b3d-b9f1-4f0e-9c1a-000000000001/v3/sources/benchy-ab12cd34.stl", key)

	// одинаковые аргументы всегда дают одинаковый ключ
	assert.Equal(t, key, Build("org-42", modelID, "v3", "benchy-ab12cd34.stl", KindSource))
}

func TestBuildKindSegments(t *testing.T) {
	modelID := uuid.New()

	assert.Contains(t, Build("o", modelID, "v1", "f", KindSource), "/sources/")
	assert.Contains(t, Build("o", modelID, "v1", "f", KindSlicer), "/slicer/")
	assert.Contains(t, Build("o", modelID, "v1", "f", KindArtifact), "/artifacts/")
}

func TestTempKey(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	key := TempKey(now, "profile-ab12cd34.3mf")
	assert.Equal(t, "temp/1700000000000-profile-ab12cd34.3mf", key)
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Benchy Boat", "benchy-boat"},
		{"  Übermodel v2! ", "bermodel-v2"},
		{"---", "file"},
		{"", "file"},
		{"UPPER_case.name", "upper-case-name"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.in), "Slug(%q)", tt.in)
	}
}

func TestStoredFilename(t *testing.T) {
	name := StoredFilename("My Benchy.STL")

	require.True(t, strings.HasSuffix(name, ".stl"))
	require.True(t, strings.HasPrefix(name, "my-benchy-"))

	// случайный суффикс делает имена уникальными
	assert.NotEqual(t, name, StoredFilename("My Benchy.STL"))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "3mf", Extension("model.3MF"))
	assert.Equal(t, "stl", Extension("path/to/benchy.stl"))
	assert.Equal(t, "", Extension("noext"))
}
