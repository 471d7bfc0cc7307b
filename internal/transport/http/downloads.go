package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Download godoc
// @Summary Download the combined KML
// @Tags downloads
// @Produce application/vnd.google-earth.kml+xml
// @Param id path string true "conversion id (uuid)"
// @Success 200 {file} file
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Failure 410 {object} apiError
// @Router /api/download/{id} [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	d, err := h.jobSvc.Download(r.Context(), id)
	if err != nil {
		writeServiceErr(w, r, err, "Download failed")
		return
	}
	writeDownload(w, d)
}

// DownloadFile godoc
// @Summary Download one generated KML file
// @Description Falls back to a placemark-per-coordinate document when the file was removed.
// @Tags downloads
// @Produce application/vnd.google-earth.kml+xml
// @Param id path string true "conversion id (uuid)"
// @Param filename path string true "generated file name"
// @Success 200 {file} file
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /api/download/{id}/{filename} [get]
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	d, err := h.jobSvc.DownloadFile(r.Context(), id, chi.URLParam(r, "filename"))
	if err != nil {
		writeServiceErr(w, r, err, "Download failed")
		return
	}
	writeDownload(w, d)
}

// DownloadAll godoc
// @Summary Download the combined and individual KML files as a ZIP
// @Tags downloads
// @Produce application/zip
// @Param id path string true "conversion id (uuid)"
// @Success 200 {file} file
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Failure 410 {object} apiError
// @Router /api/download-all/{id} [get]
func (h *Handler) DownloadAll(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	d, err := h.jobSvc.DownloadAll(r.Context(), id)
	if err != nil {
		writeServiceErr(w, r, err, "Download failed")
		return
	}
	writeDownload(w, d)
}

// Coordinates godoc
// @Summary Get stored coordinates of a conversion
// @Tags coordinates
// @Produce json
// @Param id path string true "conversion id (uuid)"
// @Success 200 {object} coordinatesResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /api/coordinates/{id} [get]
func (h *Handler) Coordinates(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := h.jobSvc.Coordinates(r.Context(), id)
	if err != nil {
		writeServiceErr(w, r, err, "Failed to fetch coordinates")
		return
	}
	writeJSON(w, http.StatusOK, coordinatesResp{
		ID:               job.ID,
		OriginalFileName: job.OriginalFileName,
		ProcessedFiles:   job.Result.Files,
		Representative:   job.Result.Representative,
		CreatedAt:        formatTime(job.CreatedAt),
		CompletedAt:      formatTimePtr(job.CompletedAt),
	})
}

// FileCoordinates godoc
// @Summary Get stored coordinates of one generated file
// @Tags coordinates
// @Produce json
// @Param id path string true "conversion id (uuid)"
// @Param filename path string true "generated file name"
// @Success 200 {object} entity.ProcessedFile
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /api/coordinates/{id}/{filename} [get]
func (h *Handler) FileCoordinates(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	f, err := h.jobSvc.FileCoordinates(r.Context(), id, chi.URLParam(r, "filename"))
	if err != nil {
		writeServiceErr(w, r, err, "Failed to fetch coordinates")
		return
	}
	writeJSON(w, http.StatusOK, f)
}
