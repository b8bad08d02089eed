package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"rivermonitor/internal/dto"
	"rivermonitor/internal/logger"
	"rivermonitor/internal/service"
)

// ImageHandler handles GET /image/{timestamp} by serving the stored PNG.
func ImageHandler(svc *service.ObservationService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := timestampParam(r)
		if err != nil {
			writeError(w, r, err, logger)
			return
		}

		path, err := svc.ImagePath(ts)
		if err != nil {
			writeError(w, r, err, logger)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		http.ServeFile(w, r, path)
	}
}

// DemoHandler serves index.html from the demo directory if it exists.
func DemoHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveFile(w, r, dir, "index.html")
	}
}

// serveFile is a helper that sets headers and serves a file if it exists.
func serveFile(w http.ResponseWriter, r *http.Request, dir, filename string) {
	filePath := filepath.Join(dir, filename)

	if info, err := os.Stat(filePath); err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, filePath)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles GET /healthz by pinging the database.
func HealthHandler(db Pinger, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			logger.Error("Health check failed: %v", err)
			writeJSON(w, r, http.StatusServiceUnavailable, dto.StatusResponse{Status: "unavailable"}, logger)
			return
		}
		writeJSON(w, r, http.StatusOK, dto.StatusResponse{Status: "OK"}, logger)
	}
}
