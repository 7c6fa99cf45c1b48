package web

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/chemflux/internal/core"
	"github.com/JonMunkholm/chemflux/internal/logging"
	"github.com/JonMunkholm/chemflux/internal/report"
)

// DatasetResponse is the JSON form of a stored dataset.
type DatasetResponse struct {
	ID         int64        `json:"id"`
	Name       string       `json:"name"`
	UploadedAt time.Time    `json:"uploaded_at"`
	CSVFile    string       `json:"csv_file"`
	Summary    core.Summary `json:"summary"`
}

// UploadResponse is a DatasetResponse plus the datasets the upload evicted.
type UploadResponse struct {
	DatasetResponse
	Evicted []int64 `json:"evicted"`
}

// ListResponse wraps the retained history.
type ListResponse struct {
	Count   int               `json:"count"`
	Results []DatasetResponse `json:"results"`
}

func newDatasetResponse(d *core.Dataset) DatasetResponse {
	return DatasetResponse{
		ID:         d.ID,
		Name:       d.Name,
		UploadedAt: d.UploadedAt.UTC(),
		CSVFile:    fmt.Sprintf("/api/datasets/%d/file", d.ID),
		Summary:    d.Summary,
	}
}

func newUploadResponse(res *core.IngestResult) UploadResponse {
	evicted := res.Evicted
	if evicted == nil {
		evicted = []int64{}
	}
	return UploadResponse{
		DatasetResponse: newDatasetResponse(res.Dataset),
		Evicted:         evicted,
	}
}

// handlePing is an unauthenticated liveness check.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListDatasets returns the retained datasets, newest first.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.service.List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := ListResponse{
		Count:   len(datasets),
		Results: make([]DatasetResponse, len(datasets)),
	}
	for i := range datasets {
		resp.Results[i] = newDatasetResponse(&datasets[i])
	}
	writeJSON(w, resp)
}

// handleGetDataset returns one dataset with its summary.
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	d, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, newDatasetResponse(d))
}

// handleDatasetReport renders the dataset's PDF report as an attachment.
func (s *Server) handleDatasetReport(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	d, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	pdf, pages, err := s.renderer.RenderPDF(report.InputFromDataset(d))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("render report for dataset %d: %w", id, err))
		return
	}
	logging.FromContext(r.Context()).Info("report rendered",
		"dataset_id", id,
		"pages", pages,
		"bytes", len(pdf),
	)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", attachment(report.Filename(id)))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// handleDatasetFile streams the raw upload back.
func (s *Server) handleDatasetFile(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	d, rc, err := s.service.OpenRaw(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(d.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logging.FromContext(r.Context()).Warn("raw file copy interrupted",
			"dataset_id", id,
			"error", err,
		)
	}
}

func datasetID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid dataset id %q", raw)
	}
	return id, nil
}

// attachment builds a Content-Disposition value, quoting or encoding the
// filename as needed.
func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
