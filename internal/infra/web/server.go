package web

import (
	"net/http"
	"time"

	"media-transcoder/internal/config"
	"media-transcoder/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the transcoding use case over HTTP.
type Server struct {
	uc        usecase.TranscodeUseCase
	ws        http.Handler
	maxUpload int64
	log       *zerolog.Logger
}

// NewServer builds the HTTP layer. ws serves progress subscriptions and may
// be nil, in which case /ws is not mounted.
func NewServer(uc usecase.TranscodeUseCase, ws http.Handler, maxUploadBytes int64, logger *zerolog.Logger) *Server {
	return &Server{
		uc:        uc,
		ws:        ws,
		maxUpload: maxUploadBytes,
		log:       logger,
	}
}

// NewRouter returns the full handler tree: middleware, API routes, the
// websocket endpoint, health and metrics.
func NewRouter(s *Server, cfg config.HTTPConfig, logger *zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes, TraceID(), RequestLog(logger), Recover(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if s.ws != nil {
		r.Method(http.MethodGet, "/ws", s.ws)
	}

	r.Group(func(r chi.Router) {
		r.Use(Timeout(cfg.RequestTimeout))
		RegisterRoutes(r, s)
	})
	return r
}

// RegisterRoutes mounts the job and file endpoints on r.
func RegisterRoutes(r chi.Router, s *Server) {
	r.Post("/upload", s.handleUpload)
	r.Get("/tasks", s.handleListJobs)
	r.Get("/tasks/{id}", s.handleGetJob)
	r.Get("/download/{id}", s.handleDownload)
	r.Get("/download_zip", s.handleDownloadZip)
	r.Get("/list_zip", s.handleListZip)
	r.Get("/task_id/{output_filename}", s.handleJobIDByOutput)
	r.Delete("/files/{kind}/{filename}", s.handleDeleteFile)
	r.Post("/clear_all", s.handleClearAll)
}

// NewHTTPServer wraps h with the configured listener settings.
func NewHTTPServer(addr string, h http.Handler, cfg config.HTTPConfig) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       2 * time.Minute,
	}
}
