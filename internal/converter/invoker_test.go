package converter_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shpkml-service/internal/converter"
)

func shell(script string, timeout time.Duration) *converter.Invoker {
	// "$@" receives --input_path IN --output_path OUT ...
	return converter.NewInvoker(converter.Options{
		Command:          []string{"/bin/sh", "-c", script, "converter"},
		NameField:        "id",
		DescriptionField: "JOORA",
		Timeout:          timeout,
	})
}

func TestInvoker_Args(t *testing.T) {
	inv := converter.NewInvoker(converter.Options{
		Command:          []string{"python3", "-u", "scripts/shapefile_to_kml.py"},
		NameField:        "id",
		DescriptionField: "JOORA",
	})

	assert.Equal(t, []string{
		"python3", "-u", "scripts/shapefile_to_kml.py",
		"--input_path", "/in",
		"--output_path", "/out",
		"--name_field", "id",
		"--description_field", "JOORA",
	}, inv.Args("/in", "/out"))
}

func TestInvoker_CollectsStdoutThenStderr(t *testing.T) {
	inv := shell(`echo one; echo err1 >&2; echo two; echo err2 >&2`, 0)

	blob, err := inv.Convert(context.Background(), "/in", "/out")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nerr1\nerr2\n", blob)
}

func TestInvoker_PassesPathsAndWritesOutput(t *testing.T) {
	out := t.TempDir()
	inv := shell(`echo "<kml/>" > "$4/result.kml"; echo "in=$2 name=$6 desc=$8"`, 0)

	blob, err := inv.Convert(context.Background(), "/data/in", out)
	require.NoError(t, err)
	assert.Contains(t, blob, "in=/data/in name=id desc=JOORA")
	assert.FileExists(t, filepath.Join(out, "result.kml"))
}

func TestInvoker_NonZeroExitIsNotAnError(t *testing.T) {
	inv := shell(`echo "No valid shapefiles found"; exit 3`, 0)

	blob, err := inv.Convert(context.Background(), "/in", "/out")
	require.NoError(t, err)
	assert.Contains(t, blob, converter.MarkerNoValid)
}

func TestInvoker_StartFailure(t *testing.T) {
	inv := converter.NewInvoker(converter.Options{
		Command: []string{filepath.Join(t.TempDir(), "missing-binary")},
	})

	_, err := inv.Convert(context.Background(), "/in", "/out")
	require.ErrorIs(t, err, converter.ErrExecutionFailed)
}

func TestInvoker_NoCommand(t *testing.T) {
	_, err := converter.NewInvoker(converter.Options{}).Convert(context.Background(), "/in", "/out")
	require.ErrorIs(t, err, converter.ErrExecutionFailed)
}

func TestInvoker_Timeout(t *testing.T) {
	inv := shell(`exec sleep 5`, 100*time.Millisecond)

	start := time.Now()
	_, err := inv.Convert(context.Background(), "/in", "/out")
	require.ErrorIs(t, err, converter.ErrTimeout)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestInvoker_Cancelled(t *testing.T) {
	inv := shell(`exec sleep 5`, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := inv.Convert(ctx, "/in", "/out")
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, converter.ErrTimeout)
}
