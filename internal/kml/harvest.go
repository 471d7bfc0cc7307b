package kml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shpkml-service/internal/entity"
)

// CombinedFileName is the on-disk name of a merged document inside an output directory.
// The leading dot keeps it out of the converter's output set.
const CombinedFileName = ".combined.kml"

var ErrNoKML = errors.New("no KML files generated")

// OutputFiles lists the .kml files a converter wrote to dir, in listing order.
func OutputFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == CombinedFileName {
			continue
		}
		if strings.HasSuffix(e.Name(), ".kml") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Harvest collects the converter's output in dir into a job result.
// Several outputs are merged into CombinedFileName; a single output is its own combined file.
func Harvest(dir, originalFileName string) (*entity.Result, error) {
	names, err := OutputFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoKML
	}

	res := &entity.Result{OutputDir: dir, Files: make([]entity.ProcessedFile, 0, len(names))}
	docs := make([]string, 0, len(names))
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		doc := string(raw)
		docs = append(docs, doc)
		res.Files = append(res.Files, entity.ProcessedFile{
			FileName:    name,
			Coordinates: FirstTwoCoordinates(doc),
		})
	}

	combined := docs[0]
	res.CombinedFile = names[0]
	if len(names) > 1 {
		combined = Combine(docs, "Converted from "+originalFileName, CombinedDescription)
		if err := os.WriteFile(filepath.Join(dir, CombinedFileName), []byte(combined), 0o644); err != nil {
			return nil, fmt.Errorf("write combined kml: %w", err)
		}
		res.CombinedFile = CombinedFileName
	}

	if c, ok := FirstCoordinate(combined); ok {
		res.Representative = &c
	}
	return res, nil
}
