package entity

import (
	"errors"
	"strings"
	"time"
)

type JobStatus string

const (
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicateID = errors.New("job id already exists")
	// ErrTerminal is returned when a terminal write targets a job that already left processing.
	ErrTerminal = errors.New("job already in terminal state")
)

// Coordinate is a (longitude, latitude, altitude) triple.
// Altitude is nil when the source tuple had none.
type Coordinate struct {
	Longitude float64  `json:"longitude"`
	Latitude  float64  `json:"latitude"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

// Alt returns the altitude, 0 when absent.
func (c Coordinate) Alt() float64 {
	if c.Altitude == nil {
		return 0
	}
	return *c.Altitude
}

// ProcessedFile is one generated KML file. Its content lives in Result.OutputDir.
type ProcessedFile struct {
	FileName    string       `json:"fileName"`
	Coordinates []Coordinate `json:"firstTwoCoordinates"`
}

// Result is the payload attached to a completed job.
type Result struct {
	// CombinedFile is the on-disk name (relative to OutputDir) of the combined document.
	CombinedFile   string          `json:"combinedFile"`
	Files          []ProcessedFile `json:"files"`
	Representative *Coordinate     `json:"representativeCoordinate,omitempty"`
	OutputDir      string          `json:"-"`
}

// Merged reports whether the combined document was synthesized from several outputs.
func (r *Result) Merged() bool {
	return r != nil && len(r.Files) > 1
}

// File looks a processed file up by name.
func (r *Result) File(name string) (ProcessedFile, bool) {
	if r == nil {
		return ProcessedFile{}, false
	}
	for _, f := range r.Files {
		if f.FileName == name {
			return f, true
		}
	}
	return ProcessedFile{}, false
}

type ConversionJob struct {
	ID               string     `json:"id"`
	OriginalFileName string     `json:"originalFileName"`
	Status           JobStatus  `json:"status"`
	Error            *string    `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	Result           *Result    `json:"result,omitempty"`
}

// BaseName is the original archive name without its .zip suffix.
func (j *ConversionJob) BaseName() string {
	name := j.OriginalFileName
	if strings.HasSuffix(strings.ToLower(name), ".zip") {
		return name[:len(name)-len(".zip")]
	}
	return name
}

// KMLFileName is the download name of the combined document.
func (j *ConversionJob) KMLFileName() string {
	if j.Result.Merged() {
		return "combined_" + j.BaseName() + ".kml"
	}
	return j.BaseName() + ".kml"
}

// BundleFileName is the download name of the ZIP bundle.
func (j *ConversionJob) BundleFileName() string {
	return j.BaseName() + "_all_files.zip"
}

// Clone returns a deep copy of j.
func (j *ConversionJob) Clone() *ConversionJob {
	if j == nil {
		return nil
	}
	out := *j
	if j.Error != nil {
		msg := *j.Error
		out.Error = &msg
	}
	if j.CompletedAt != nil {
		at := *j.CompletedAt
		out.CompletedAt = &at
	}
	out.Result = j.Result.Clone()
	return &out
}

func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	if r.Representative != nil {
		c := r.Representative.clone()
		out.Representative = &c
	}
	if r.Files != nil {
		out.Files = make([]ProcessedFile, len(r.Files))
		for i, f := range r.Files {
			out.Files[i] = ProcessedFile{FileName: f.FileName}
			if f.Coordinates != nil {
				out.Files[i].Coordinates = make([]Coordinate, len(f.Coordinates))
				for k, c := range f.Coordinates {
					out.Files[i].Coordinates[k] = c.clone()
				}
			}
		}
	}
	return &out
}

func (c Coordinate) clone() Coordinate {
	if c.Altitude != nil {
		alt := *c.Altitude
		c.Altitude = &alt
	}
	return c
}
