package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"shpkml-service/internal/entity"
	"shpkml-service/internal/service"
)

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Error: msg})
}

// writeServiceErr maps service and store errors to status codes.
// Anything unrecognised is logged and reported as fallback with 500.
func writeServiceErr(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, entity.ErrNotFound):
		writeErr(w, http.StatusNotFound, "Conversion not found")
	case errors.Is(err, service.ErrFileNotFound):
		writeErr(w, http.StatusNotFound, "File not found")
	case errors.Is(err, service.ErrNotCompleted):
		writeErr(w, http.StatusConflict, "Conversion not completed")
	case errors.Is(err, entity.ErrTerminal):
		writeErr(w, http.StatusConflict, "Conversion already finished")
	case errors.Is(err, service.ErrResultGone):
		writeErr(w, http.StatusGone, "Conversion output is no longer available")
	case errors.Is(err, service.ErrUploadTooLarge), errors.As(err, &tooLarge):
		writeErr(w, http.StatusRequestEntityTooLarge, "File too large")
	case errors.Is(err, service.ErrInvalidUpload):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error(fallback, "method", r.Method, "path", r.URL.Path, "error", err)
		writeErr(w, http.StatusInternalServerError, fallback)
	}
}

func writeDownload(w http.ResponseWriter, d *service.Download) {
	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.Content)
}

type uploadResp struct {
	ID      string           `json:"id"`
	Message string           `json:"message"`
	Status  entity.JobStatus `json:"status"`
}

type statusResp struct {
	ID               string                 `json:"id"`
	Status           entity.JobStatus       `json:"status"`
	OriginalFileName string                 `json:"originalFileName"`
	KMLFileName      string                 `json:"kmlFileName"`
	ProcessedFiles   []entity.ProcessedFile `json:"processedFiles"`
	Representative   *entity.Coordinate     `json:"representativeCoordinate,omitempty"`
	Error            *string                `json:"error,omitempty"`
	Warning          *string                `json:"warning,omitempty"`
	CreatedAt        string                 `json:"createdAt"`
	CompletedAt      *string                `json:"completedAt,omitempty"`
}

type coordinatesResp struct {
	ID               string                 `json:"id"`
	OriginalFileName string                 `json:"originalFileName"`
	ProcessedFiles   []entity.ProcessedFile `json:"processedFiles"`
	Representative   *entity.Coordinate     `json:"representativeCoordinate,omitempty"`
	CreatedAt        string                 `json:"createdAt"`
	CompletedAt      *string                `json:"completedAt,omitempty"`
}

type testCoordinatesReq struct {
	KMLContent string `json:"kmlContent"`
}

type testCoordinatesResp struct {
	ExtractedCoordinates []entity.Coordinate `json:"extractedCoordinates"`
	Count                int                 `json:"count"`
}

type cancelResp struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type healthResp struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
