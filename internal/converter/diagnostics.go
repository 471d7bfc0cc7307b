package converter

import (
	"fmt"
	"strings"
)

// Section markers the converter prints on its output streams.
const (
	MarkerValidationErrors = "Shapefile validation errors:"
	MarkerNoValid          = "No valid shapefiles found"
	MarkerAllFailed        = "All shapefiles failed to process"
	MarkerFileListing      = "Files found in the directory:"
)

const guidanceHint = "Please ensure your ZIP contains complete shapefiles " +
	"with matching .shp, .shx, and .dbf files for each base name."

// GuidanceMessage is the job error when no shapefile in the archive could be used.
const GuidanceMessage = "No valid shapefiles found. " + guidanceHint

// Mode selects how validation problems reported by the converter are treated.
type Mode string

const (
	// ModeStrict fails the job on any validation problem.
	ModeStrict Mode = "strict"
	// ModeLenient completes the job with a warning unless nothing could be converted.
	ModeLenient Mode = "lenient"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeStrict, ModeLenient:
		return m, nil
	case "":
		return ModeLenient, nil
	default:
		return "", fmt.Errorf("unknown diagnostics mode %q", s)
	}
}

// DiagnosticError is a converter-reported hard failure. Error returns the
// message shown to the user.
type DiagnosticError struct {
	Message string
}

func (e *DiagnosticError) Error() string { return e.Message }

// Report is what Parse finds in a diagnostic blob.
type Report struct {
	HasValidationErrors bool
	ValidationErrors    []string
	NoValid             bool
	AllFailed           bool
	FileListing         []string
}

// Parse scans blob once for the known section markers.
func Parse(blob string) Report {
	lines := strings.Split(blob, "\n")
	r := Report{
		HasValidationErrors: strings.Contains(blob, MarkerValidationErrors),
		NoValid:             strings.Contains(blob, MarkerNoValid),
		AllFailed:           strings.Contains(blob, MarkerAllFailed),
	}
	if r.HasValidationErrors {
		r.ValidationErrors = bullets(lines, MarkerValidationErrors)
	}
	if r.NoValid || r.AllFailed {
		r.FileListing = bullets(lines, MarkerFileListing)
	}
	return r
}

// bullets collects the "- " lines after the first line containing marker,
// up to the next blank line. Other lines in between are skipped.
func bullets(lines []string, marker string) []string {
	var out []string
	in := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !in {
			in = strings.Contains(line, marker)
			continue
		}
		if trimmed == "" {
			break
		}
		if strings.HasPrefix(trimmed, "- ") {
			out = append(out, trimmed)
		}
	}
	return out
}

// Classify gates a conversion run. A non-nil error is a *DiagnosticError and
// fails the job; a non-empty warning is attached to an otherwise completed job.
func (m Mode) Classify(blob string) (warning string, err error) {
	r := Parse(blob)
	if m == ModeStrict {
		return "", strictFailure(r, blob)
	}

	if r.NoValid || r.AllFailed {
		return "", &DiagnosticError{Message: GuidanceMessage}
	}
	if r.HasValidationErrors {
		if len(r.ValidationErrors) == 0 {
			return "Some shapefiles were skipped due to validation errors.", nil
		}
		return "Some shapefiles were skipped due to validation errors:\n" +
			strings.Join(r.ValidationErrors, "\n"), nil
	}
	return "", nil
}

func strictFailure(r Report, blob string) error {
	switch {
	case r.HasValidationErrors:
		if len(r.ValidationErrors) == 0 {
			return &DiagnosticError{Message: blob}
		}
		return &DiagnosticError{Message: "Shapefile validation failed:\n" + strings.Join(r.ValidationErrors, "\n")}
	case r.NoValid || r.AllFailed:
		if len(r.FileListing) == 0 {
			return &DiagnosticError{Message: blob}
		}
		return &DiagnosticError{Message: "No valid shapefiles found. Files in your ZIP:\n" +
			strings.Join(r.FileListing, "\n") + "\n\n" + guidanceHint}
	}
	return nil
}
