package service

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"shpkml-service/internal/entity"
	"shpkml-service/internal/kml"
)

const (
	ContentTypeKML = "application/vnd.google-earth.kml+xml"
	ContentTypeZIP = "application/zip"
)

// Download is a named byte stream ready to be served.
type Download struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Assembler turns a completed job's result into downloadable content.
// File content is read from the result's output directory.
type Assembler struct{}

func completedResult(job *entity.ConversionJob) (*entity.Result, error) {
	if job.Status != entity.StatusCompleted || job.Result == nil {
		return nil, fmt.Errorf("%w: current status %s", ErrNotCompleted, job.Status)
	}
	return job.Result, nil
}

// Combined returns the combined document under the archive-derived name.
func (Assembler) Combined(job *entity.ConversionJob) (*Download, error) {
	res, err := completedResult(job)
	if err != nil {
		return nil, err
	}
	content, err := readOutput(res, res.CombinedFile)
	if err != nil {
		return nil, err
	}
	return &Download{FileName: job.KMLFileName(), ContentType: ContentTypeKML, Content: content}, nil
}

// File returns one generated file. When the output is gone the document is
// rebuilt from the stored coordinates.
func (Assembler) File(job *entity.ConversionJob, name string) (*Download, error) {
	res, err := completedResult(job)
	if err != nil {
		return nil, err
	}
	f, ok := res.File(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	content, err := fileContent(res, f)
	if err != nil {
		return nil, err
	}
	return &Download{FileName: f.FileName, ContentType: ContentTypeKML, Content: content}, nil
}

// Bundle zips the combined document together with every generated file.
func (a Assembler) Bundle(job *entity.ConversionJob) (*Download, error) {
	combined, err := a.Combined(job)
	if err != nil {
		return nil, err
	}
	res := job.Result

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := addEntry(zw, combined.FileName, combined.Content); err != nil {
		return nil, err
	}
	for _, f := range res.Files {
		if f.FileName == combined.FileName {
			continue
		}
		content, err := fileContent(res, f)
		if err != nil {
			return nil, err
		}
		if err := addEntry(zw, f.FileName, content); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish bundle: %w", err)
	}
	return &Download{FileName: job.BundleFileName(), ContentType: ContentTypeZIP, Content: buf.Bytes()}, nil
}

func fileContent(res *entity.Result, f entity.ProcessedFile) ([]byte, error) {
	content, err := readOutput(res, f.FileName)
	if errors.Is(err, ErrResultGone) {
		return []byte(kml.Synthesize([]entity.ProcessedFile{f}, f.FileName)), nil
	}
	return content, err
}

func readOutput(res *entity.Result, name string) ([]byte, error) {
	if res.OutputDir == "" || name == "" || filepath.Base(name) != name {
		return nil, ErrResultGone
	}
	content, err := os.ReadFile(filepath.Join(res.OutputDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrResultGone, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return content, nil
}

func addEntry(zw *zip.Writer, name string, content []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
