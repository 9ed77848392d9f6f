package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"gallery/internal/domain"
)

const (
	cacheForever = "public, max-age=31536000"

	// multipartSlack leaves room for multipart headers around the file.
	multipartSlack = 1 << 20
)

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	listing, err := s.gallery.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()

	name, err := s.gallery.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{Success: true, Filename: name})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.gallery.Delete(r.Context(), r.PathValue("filename")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true})
}

func (s *Server) handleGenerateFeatures(w http.ResponseWriter, r *http.Request) {
	events, err := s.gallery.Regenerate(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		if err := writeSSE(w, flusher, ev); err != nil {
			s.log.WarnContext(r.Context(), "progress stream aborted",
				"request_id", RequestID(r.Context()),
				"error", err,
			)
			return
		}
	}
}

func (s *Server) handleCheckFeatures(w http.ResponseWriter, r *http.Request) {
	exists, err := s.gallery.CheckFeatures(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckFeaturesResponse{Exists: exists})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	// Missing features are reported before a missing upload.
	exists, err := s.gallery.CheckFeatures(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !exists {
		s.writeError(w, r, domain.ErrNoFeaturesAvailable)
		return
	}

	file, header, err := s.formFile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()

	results, err := s.gallery.Search(r.Context(), header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []domain.Match{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	path, err := s.gallery.ImagePath(r.PathValue("filename"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", cacheForever)
	w.Header().Set("ETag", fmt.Sprintf("%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	data, err := s.gallery.Thumbnail(r.PathValue("filename"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", cacheForever)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// formFile returns the multipart "file" field, enforcing the upload cap.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartSlack)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, s.maxUpload)
		}
		return nil, nil, fmt.Errorf("%w: no file provided", domain.ErrInvalidInput)
	}
	return file, header, nil
}

// statusFor maps a gallery error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProtectedResource):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoFeaturesAvailable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed",
			"request_id", RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSONError(w, status, err.Error())
}

// writeSSE writes one event of a text/event-stream response.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, v any) error {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
