package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/chemflux/internal/logging"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

// handleUpload ingests one CSV sent as multipart form field "file" and
// responds 201 with the stored dataset.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := r.ParseMultipartForm(min(multipartMemory, s.cfg.Upload.MaxFileSize)); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.respondError(w, r, err)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errInvalidForm, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	logger := logging.WithFields(r.Context(), "file", header.Filename, "size", len(data))
	logger.Debug("upload received")

	result, err := s.service.Ingest(r.Context(), header.Filename, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logger.Info("upload ingested",
		"dataset_id", result.Dataset.ID,
		"evicted", result.Evicted,
	)
	writeJSONStatus(w, http.StatusCreated, newUploadResponse(result))
}

// handleUploadStatus reports ingest slot usage so clients can back off
// before the limiter rejects them.
func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.Limiter().Status())
}
