// Package workspace owns the on-disk directories of conversion jobs.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Layout is the directory tree under one root:
//
//	<root>/uploads/<id>.zip   uploaded archive
//	<root>/temp/<id>/         extracted archive
//	<root>/output/<id>/       converter output, kept after success
type Layout struct {
	Root string
}

func NewLayout(root string) Layout {
	return Layout{Root: root}
}

func (l Layout) uploads() string { return filepath.Join(l.Root, "uploads") }
func (l Layout) temp() string    { return filepath.Join(l.Root, "temp") }
func (l Layout) output() string  { return filepath.Join(l.Root, "output") }

// Init creates the three top-level directories.
func (l Layout) Init() error {
	for _, dir := range []string{l.uploads(), l.temp(), l.output()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Workspace is the set of paths owned by a single job's run.
type Workspace struct {
	JobID      string
	UploadPath string
	ScratchDir string
	OutputDir  string
}

// For returns the workspace of jobID. Paths are derived once here and nowhere else.
func (l Layout) For(jobID string) Workspace {
	return Workspace{
		JobID:      jobID,
		UploadPath: filepath.Join(l.uploads(), jobID+".zip"),
		ScratchDir: filepath.Join(l.temp(), jobID),
		OutputDir:  filepath.Join(l.output(), jobID),
	}
}

// SaveUpload writes the uploaded archive to the workspace.
func (w Workspace) SaveUpload(r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(w.UploadPath), 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}
	f, err := os.OpenFile(w.UploadPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(w.UploadPath)
		return fmt.Errorf("write upload: %w", err)
	}
	return f.Close()
}

// Prepare creates fresh scratch and output directories.
func (w Workspace) Prepare() error {
	for _, dir := range []string{w.ScratchDir, w.OutputDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("reset %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Cleanup removes the run's transient artifacts. The output directory
// survives unless keepOutput is false.
func (w Workspace) Cleanup(keepOutput bool) error {
	paths := []string{w.ScratchDir, w.UploadPath}
	if !keepOutput {
		paths = append(paths, w.OutputDir)
	}
	var errs []error
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sweep removes output directories last modified before now-retention and
// returns the job ids whose outputs were removed.
func (l Layout) Sweep(retention time.Duration, now time.Time) ([]string, error) {
	if retention <= 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(l.output())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list output dir: %w", err)
	}

	cutoff := now.Add(-retention)
	var removed []string
	var errs []error
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(l.output(), e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, e.Name())
	}
	return removed, errors.Join(errs...)
}
