package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gallery/internal/logging"
	"gallery/internal/usecase"
)

// Config configures a new Server instance.
type Config struct {
	Gallery        *usecase.GalleryService
	StaticDir      string // Serves "/" when set
	MaxUploadBytes int64
	Logger         *logging.Logger
}

// Server exposes the gallery over HTTP.
type Server struct {
	gallery   *usecase.GalleryService
	staticDir string
	maxUpload int64
	log       *logging.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Server{
		gallery:   cfg.Gallery,
		staticDir: cfg.StaticDir,
		maxUpload: cfg.MaxUploadBytes,
		log:       log,
	}
}

// Handler returns an http.Handler for every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/images", s.handleListImages)
	mux.HandleFunc("POST /api/upload-image", s.handleUpload)
	mux.HandleFunc("DELETE /api/delete-image/{filename}", s.handleDelete)
	mux.HandleFunc("POST /api/generate-features", s.handleGenerateFeatures)
	mux.HandleFunc("GET /api/check-features", s.handleCheckFeatures)
	mux.HandleFunc("POST /api/search", s.handleSearch)

	mux.HandleFunc("GET /images/{filename}", s.handleImage)
	mux.HandleFunc("GET /images/thumb/{filename}", s.handleThumbnail)

	if s.staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.staticDir)))
	}

	return s.requestID(mux)
}

type requestIDKey struct{}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID tags every request with an X-Request-ID and logs its outcome.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

		s.log.DebugContext(r.Context(), "request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps the progress stream working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
