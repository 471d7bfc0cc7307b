package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"shpkml-service/internal/entity"
	"shpkml-service/internal/obs"
	"shpkml-service/internal/service"
)

// uploadField is the multipart field carrying the archive.
const uploadField = "shapefile"

// multipartSlack covers multipart framing on top of the archive itself.
const multipartSlack = 1 << 20

type Handler struct {
	jobSvc    *service.JobService
	maxUpload int64
	now       func() time.Time
}

func NewHandler(jobSvc *service.JobService, maxUploadBytes int64) *Handler {
	return &Handler{jobSvc: jobSvc, maxUpload: maxUploadBytes, now: time.Now}
}

// Upload godoc
// @Summary Upload a zipped shapefile
// @Description Stores the archive, creates a conversion job (processing) and queues it.
// @Tags conversions
// @Accept multipart/form-data
// @Produce json
// @Param shapefile formData file true "ZIP archive with .shp/.shx/.dbf files"
// @Success 200 {object} uploadResp
// @Failure 400 {object} apiError
// @Failure 413 {object} apiError
// @Failure 500 {object} apiError
// @Router /api/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartSlack)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		obs.RecordUpload(false)
		writeErr(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			obs.RecordUpload(false)
			writeServiceErr(w, r, badMultipart(err), "Upload failed")
			return
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			_, _ = io.Copy(io.Discard, part)
			_ = part.Close()
			continue
		}

		job, err := h.jobSvc.Submit(r.Context(), service.Upload{
			FileName:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Size:        -1,
			Body:        part,
		})
		_ = part.Close()
		if err != nil {
			obs.RecordUpload(false)
			writeServiceErr(w, r, err, "Upload failed")
			return
		}

		obs.RecordUpload(true)
		writeJSON(w, http.StatusOK, uploadResp{
			ID:      job.ID,
			Message: "File uploaded successfully. Processing started.",
			Status:  job.Status,
		})
		return
	}

	obs.RecordUpload(false)
	writeErr(w, http.StatusBadRequest, "No file uploaded")
}

// badMultipart keeps size-limit errors and turns the rest into a bad upload.
func badMultipart(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", service.ErrInvalidUpload, err)
}

// GetStatus godoc
// @Summary Get conversion status
// @Tags conversions
// @Produce json
// @Param id path string true "conversion id (uuid)"
// @Success 200 {object} statusResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /api/status/{id} [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := h.jobSvc.GetStatus(r.Context(), id)
	if err != nil {
		writeServiceErr(w, r, err, "Status check failed")
		return
	}

	resp := statusResp{
		ID:               job.ID,
		Status:           job.Status,
		OriginalFileName: job.OriginalFileName,
		KMLFileName:      job.KMLFileName(),
		ProcessedFiles:   []entity.ProcessedFile{},
		CreatedAt:        formatTime(job.CreatedAt),
		CompletedAt:      formatTimePtr(job.CompletedAt),
	}
	switch job.Status {
	case entity.StatusCompleted:
		// на завершённой задаче Error хранит предупреждение: отдаём в обоих полях
		resp.Warning = job.Error
		resp.Error = job.Error
		if job.Result != nil {
			resp.ProcessedFiles = job.Result.Files
			resp.Representative = job.Result.Representative
		}
	case entity.StatusFailed:
		resp.Error = job.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

// Cancel godoc
// @Summary Cancel a conversion
// @Description Stops a queued or running conversion; the job ends as failed with "Conversion cancelled".
// @Tags conversions
// @Produce json
// @Param id path string true "conversion id (uuid)"
// @Success 202 {object} cancelResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /api/jobs/{id}/cancel [post]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	if err := h.jobSvc.Cancel(r.Context(), id); err != nil {
		writeServiceErr(w, r, err, "Cancel failed")
		return
	}
	writeJSON(w, http.StatusAccepted, cancelResp{ID: id, Message: "Cancellation requested"})
}

// TestCoordinates godoc
// @Summary Extract coordinates from KML text
// @Description Returns the first two coordinates found in the posted KML document.
// @Tags coordinates
// @Accept json
// @Produce json
// @Param request body testCoordinatesReq true "KML document"
// @Success 200 {object} testCoordinatesResp
// @Failure 400 {object} apiError
// @Router /api/test-coordinates [post]
func (h *Handler) TestCoordinates(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	var req testCoordinatesReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.KMLContent) == "" {
		writeErr(w, http.StatusBadRequest, "KML content is required")
		return
	}

	coords := h.jobSvc.ExtractCoordinates(req.KMLContent)
	if coords == nil {
		coords = []entity.Coordinate{}
	}
	writeJSON(w, http.StatusOK, testCoordinatesResp{ExtractedCoordinates: coords, Count: len(coords)})
}

// Health godoc
// @Summary API health
// @Tags health
// @Produce json
// @Success 200 {object} healthResp
// @Router /api/health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResp{Status: "OK", Timestamp: formatTime(h.now())})
}

func jobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return id, true
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
