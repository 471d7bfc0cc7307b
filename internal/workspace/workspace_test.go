package workspace_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shpkml-service/internal/workspace"
)

func TestLayout_For(t *testing.T) {
	l := workspace.NewLayout("/srv/data")
	ws := l.For("abc")

	assert.Equal(t, "abc", ws.JobID)
	assert.Equal(t, filepath.Join("/srv/data", "uploads", "abc.zip"), ws.UploadPath)
	assert.Equal(t, filepath.Join("/srv/data", "temp", "abc"), ws.ScratchDir)
	assert.Equal(t, filepath.Join("/srv/data", "output", "abc"), ws.OutputDir)
}

func prepared(t *testing.T) (workspace.Layout, workspace.Workspace) {
	t.Helper()
	l := workspace.NewLayout(t.TempDir())
	require.NoError(t, l.Init())
	ws := l.For("job-1")
	require.NoError(t, ws.SaveUpload(strings.NewReader("PK\x03\x04")))
	require.NoError(t, ws.Prepare())
	require.NoError(t, os.WriteFile(filepath.Join(ws.OutputDir, "a.kml"), []byte("<kml/>"), 0o644))
	return l, ws
}

func TestSaveUpload_RefusesOverwrite(t *testing.T) {
	_, ws := prepared(t)
	require.Error(t, ws.SaveUpload(strings.NewReader("again")))
}

func TestCleanup_SuccessKeepsOutput(t *testing.T) {
	_, ws := prepared(t)

	require.NoError(t, ws.Cleanup(true))
	assert.NoFileExists(t, ws.UploadPath)
	assert.NoDirExists(t, ws.ScratchDir)
	assert.FileExists(t, filepath.Join(ws.OutputDir, "a.kml"))
}

func TestCleanup_FailureRemovesEverything(t *testing.T) {
	_, ws := prepared(t)

	require.NoError(t, ws.Cleanup(false))
	assert.NoFileExists(t, ws.UploadPath)
	assert.NoDirExists(t, ws.ScratchDir)
	assert.NoDirExists(t, ws.OutputDir)

	// Idempotent.
	require.NoError(t, ws.Cleanup(false))
}

func TestSweep(t *testing.T) {
	l, ws := prepared(t)
	fresh := l.For("job-2")
	require.NoError(t, fresh.Prepare())

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(ws.OutputDir, old, old))

	removed, err := l.Sweep(time.Hour, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, removed)
	assert.NoDirExists(t, ws.OutputDir)
	assert.DirExists(t, fresh.OutputDir)
}

func TestSweep_DisabledOrMissing(t *testing.T) {
	l, ws := prepared(t)

	removed, err := l.Sweep(0, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.DirExists(t, ws.OutputDir)

	removed, err = workspace.NewLayout(filepath.Join(t.TempDir(), "none")).Sweep(time.Hour, time.Now())
	require.NoError(t, err)
	assert.Empty(t, removed)
}
