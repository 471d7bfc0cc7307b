// Package archive unpacks uploaded shapefile archives and finds the directory
// the converter should read from.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrExtraction marks an archive that could not be unpacked.
var ErrExtraction = errors.New("archive extraction failed")

// resourceForkDir holds macOS metadata copies (._name.shp) and never real shapefiles.
const resourceForkDir = "__MACOSX"

// DefaultMaxBytes bounds the uncompressed size of one archive when no limit is given.
const DefaultMaxBytes int64 = 1 << 30

// Inspect extracts zipPath into scratchDir and returns the effective input directory.
// maxBytes <= 0 means DefaultMaxBytes.
func Inspect(zipPath, scratchDir string, maxBytes int64) (string, error) {
	if err := Extract(zipPath, scratchDir, maxBytes); err != nil {
		return "", err
	}
	return Locate(scratchDir)
}

// Extract unpacks every entry of zipPath under dest. Entries that would land
// outside dest, or more than maxBytes of content in total, fail the whole extraction.
// Every error wraps ErrExtraction.
func Extract(zipPath, dest string, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("%w: open: %v", ErrExtraction, err)
	}
	defer r.Close()

	var declared uint64
	for _, f := range r.File {
		declared += f.UncompressedSize64
		if declared > uint64(maxBytes) {
			return fmt.Errorf("%w: archive expands beyond %d bytes", ErrExtraction, maxBytes)
		}
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("%w: create scratch dir: %v", ErrExtraction, err)
	}

	remaining := maxBytes
	for _, f := range r.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if !isWithinDir(dest, target) {
			return fmt.Errorf("%w: entry %q escapes extraction dir", ErrExtraction, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("%w: create %s: %v", ErrExtraction, f.Name, err)
			}
			continue
		}
		n, err := extractFile(f, target, remaining)
		if err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

// extractFile writes one entry and returns its size. Content past budget is an error
// even when the header under-declares it.
func extractFile(f *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("%w: create parent of %s: %v", ErrExtraction, f.Name, err)
	}
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: open entry %s: %v", ErrExtraction, f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %v", ErrExtraction, f.Name, err)
	}
	n, err := io.Copy(out, io.LimitReader(rc, budget+1))
	if err != nil {
		out.Close()
		return n, fmt.Errorf("%w: read entry %s: %v", ErrExtraction, f.Name, err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("%w: write %s: %v", ErrExtraction, f.Name, err)
	}
	if n > budget {
		return n, fmt.Errorf("%w: entry %s exceeds the extraction limit", ErrExtraction, f.Name)
	}
	return n, nil
}

// Locate returns the first top-level subdirectory of dir, in listing order,
// that holds a .shp file. Without one, dir itself is the input directory.
func Locate(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list scratch dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == resourceForkDir {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		ok, err := hasShapefile(sub)
		if err != nil {
			return "", err
		}
		if ok {
			return sub, nil
		}
	}
	return dir, nil
}

func hasShapefile(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("list %s: %w", filepath.Base(dir), err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".shp") {
			return true, nil
		}
	}
	return false, nil
}

func isWithinDir(basePath, targetPath string) bool {
	baseAbs, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	targetAbs, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(baseAbs, targetAbs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
