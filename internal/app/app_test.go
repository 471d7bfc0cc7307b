package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shpkml-service/internal/config"
)

func TestRedactDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://app:s3cret@db:5432/shpkml?sslmode=disable": "postgres://app:****@db:5432/shpkml?sslmode=disable",
		"postgres://app@db:5432/shpkml":                         "postgres://app@db:5432/shpkml",
		"":                                                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, RedactDSN(in), in)
	}
}

func memoryConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.AppConfig{
		Store:     config.StoreConfig{Driver: config.DriverMemory},
		Queue:     config.QueueConfig{Driver: config.DriverMemory},
		Workspace: config.WorkspaceConfig{Root: t.TempDir()},
		Converter: config.ConverterConfig{Command: []string{"true"}},
	}
	cfg.Sanitize()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNew_MemoryBackends(t *testing.T) {
	cfg := memoryConfig(t)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	for _, dir := range []string{"uploads", "temp", "output"} {
		info, err := os.Stat(filepath.Join(cfg.Workspace.Root, dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
	assert.Nil(t, a.pg)
	assert.Nil(t, a.rdb)
	assert.NotNil(t, a.JobService())
	assert.NotNil(t, a.Pool())
}

func TestRunBackground_StopsWithContext(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Workspace.OutputRetention = time.Hour
	cfg.Workspace.JanitorInterval = 10 * time.Millisecond

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.RunBackground(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background loops did not stop")
	}
}
