package archive_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shpkml-service/internal/archive"
)

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestInspect_FlatArchive(t *testing.T) {
	zipPath := writeZip(t, map[string]string{
		"parcels.shp": "shp",
		"parcels.shx": "shx",
		"parcels.dbf": "dbf",
	})
	scratch := filepath.Join(t.TempDir(), "job-1")

	dir, err := archive.Inspect(zipPath, scratch, 0)
	require.NoError(t, err)
	assert.Equal(t, scratch, dir)
	assert.FileExists(t, filepath.Join(scratch, "parcels.dbf"))
}

func TestInspect_WrappingSubdirectory(t *testing.T) {
	zipPath := writeZip(t, map[string]string{
		"docs/readme.txt":         "not a shapefile",
		"layers/roads.shp":        "shp",
		"layers/roads.shx":        "shx",
		"layers/roads.dbf":        "dbf",
		"zlayers/parcels.shp":     "shp",
		"__MACOSX/._aaa.shp":      "fork",
		"__MACOSX/layers/._a.shp": "fork",
	})
	scratch := t.TempDir()

	dir, err := archive.Inspect(zipPath, scratch, 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(scratch, "layers"), dir, "first subdirectory with a .shp wins")
}

func TestLocate_SubdirsWithoutShapefiles(t *testing.T) {
	scratch := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(scratch, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scratch, "a.shp"), []byte("x"), 0o644))

	dir, err := archive.Locate(scratch)
	require.NoError(t, err)
	assert.Equal(t, scratch, dir)
}

func TestLocate_UppercaseExtension(t *testing.T) {
	scratch := t.TempDir()
	sub := filepath.Join(scratch, "DATA")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "ROADS.SHP"), []byte("x"), 0o644))

	dir, err := archive.Locate(scratch)
	require.NoError(t, err)
	assert.Equal(t, sub, dir)
}

func TestExtract_CorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04 definitely not a zip"), 0o644))

	_, err := archive.Inspect(path, t.TempDir(), 0)
	require.ErrorIs(t, err, archive.ErrExtraction)
}

func TestExtract_RejectsTraversal(t *testing.T) {
	zipPath := writeZip(t, map[string]string{"../../escape.shp": "x"})
	scratch := filepath.Join(t.TempDir(), "scratch")

	err := archive.Extract(zipPath, scratch, 0)
	require.ErrorIs(t, err, archive.ErrExtraction)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(scratch), "escape.shp"))
}

func TestExtract_FileAndDirectoryClash(t *testing.T) {
	zipPath := writeZip(t, map[string]string{"a": "plain file", "a/b.shp": "shp"})

	err := archive.Extract(zipPath, t.TempDir(), 0)
	require.ErrorIs(t, err, archive.ErrExtraction)
}

func TestExtract_SizeLimit(t *testing.T) {
	zipPath := writeZip(t, map[string]string{
		"roads.shp": strings.Repeat("x", 600),
		"roads.dbf": strings.Repeat("y", 600),
	})

	err := archive.Extract(zipPath, t.TempDir(), 1000)
	require.ErrorIs(t, err, archive.ErrExtraction)
	assert.Contains(t, err.Error(), "1000 bytes")

	require.NoError(t, archive.Extract(zipPath, t.TempDir(), 1200))
}
