package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vidsentry/internal/logging"
)

// Remover deletes a video's row and artifact by filename.
type Remover interface {
	Remove(ctx context.Context, filename string) (bool, error)
}

// ServerConfig supplies the collaborators behind each route.
type ServerConfig struct {
	Logger  *slog.Logger
	Token   string
	Status  func(ctx context.Context) DaemonStatus
	Videos  *VideoService
	Remover Remover
}

// NewRouter builds the chi router for the daemon API.
func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(cfg.Logger))
	r.Use(authMiddleware(cfg.Token))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusHandler(cfg))
		r.Get("/videos", listVideosHandler(cfg))
		r.Get("/videos/{filename}", getVideoHandler(cfg))
		r.Delete("/videos/{filename}", deleteVideoHandler(cfg))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, cfg.Logger, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, cfg.Logger, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Status == nil {
			writeJSON(w, cfg.Logger, http.StatusOK, DaemonStatus{})
			return
		}
		writeJSON(w, cfg.Logger, http.StatusOK, cfg.Status(r.Context()))
	}
}

func listVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := cfg.Videos.List(r.Context())
		if err != nil {
			writeError(w, cfg.Logger, http.StatusInternalServerError, err.Error())
			return
		}
		if items == nil {
			items = []Video{}
		}
		writeJSON(w, cfg.Logger, http.StatusOK, VideoListResponse{Items: items})
	}
}

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := filenameParam(r)
		if !ok {
			writeError(w, cfg.Logger, http.StatusBadRequest, "invalid filename")
			return
		}
		detail, err := cfg.Videos.Describe(r.Context(), filename)
		if err != nil {
			writeError(w, cfg.Logger, http.StatusInternalServerError, err.Error())
			return
		}
		if detail == nil {
			writeError(w, cfg.Logger, http.StatusNotFound, "video not found")
			return
		}
		writeJSON(w, cfg.Logger, http.StatusOK, VideoResponse{Video: *detail})
	}
}

func deleteVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := filenameParam(r)
		if !ok {
			writeError(w, cfg.Logger, http.StatusBadRequest, "invalid filename")
			return
		}
		if cfg.Remover == nil {
			writeError(w, cfg.Logger, http.StatusServiceUnavailable, "removal unavailable")
			return
		}
		removed, err := cfg.Remover.Remove(r.Context(), filename)
		if err != nil {
			writeError(w, cfg.Logger, http.StatusInternalServerError, err.Error())
			return
		}
		// Removing an unknown filename is a no-op, not an error.
		writeJSON(w, cfg.Logger, http.StatusOK, RemoveResponse{Filename: filename, Removed: removed})
	}
}

// filenameParam returns the unescaped {filename} segment. Path separators and
// dot segments are rejected since filenames are keyed by base name.
func filenameParam(r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "filename")
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return "", false
	}
	return name, true
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSON(w, logger, status, ErrorResponse{Error: message})
}
