package web

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"

	"media-transcoder/internal/domain"
	"media-transcoder/internal/domain/model"
	"media-transcoder/internal/infra/logging"
	"media-transcoder/internal/usecase"

	"github.com/go-chi/chi/v5"
)

const multipartMemory = 32 << 20

type errorBody struct {
	Detail string `json:"detail"`
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: err.Error()})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error()})
	default:
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
	}
}

// pathParam returns the decoded value of a route parameter.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		if r.ContentLength > s.maxUpload {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Detail: "upload too large"})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Detail: "upload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid multipart form"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	uploads := make([]usecase.Upload, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		opened = append(opened, f)
		uploads = append(uploads, usecase.Upload{Filename: fh.Filename, Body: f})
	}

	jobs, err := s.uc.Submit(r.Context(), uploads)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.uc.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.uc.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	path, err := s.uc.DownloadPath(r.Context(), pathParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	serveAttachment(w, r, path, "application/octet-stream")
}

func (s *Server) handleDownloadZip(w http.ResponseWriter, r *http.Request) {
	_, path, err := s.uc.Archive(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	serveAttachment(w, r, path, "application/zip")
}

func serveAttachment(w http.ResponseWriter, r *http.Request, path, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleListZip(w http.ResponseWriter, r *http.Request) {
	names, err := s.uc.ListArchives(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleJobIDByOutput(w http.ResponseWriter, r *http.Request) {
	id, err := s.uc.JobIDByOutput(r.Context(), pathParam(r, "output_filename"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": id})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	err := s.uc.DeleteFile(r.Context(), pathParam(r, "kind"), pathParam(r, "filename"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusBody{Status: "deleted"})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.ClearAll(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusBody{Status: "success", Message: "all files and jobs cleared"})
}
