package route

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rivermonitor/internal/config"
	"rivermonitor/internal/handler"
	"rivermonitor/internal/logger"
	"rivermonitor/internal/middleware"
	"rivermonitor/internal/service"
	"rivermonitor/internal/service/websocket"
)

// Dependencies are the services the routes are wired to.
type Dependencies struct {
	Config  *config.Config
	Service *service.ObservationService
	Hub     *websocket.HubService
	DB      handler.Pinger
	Logger  *logger.Logger
}

// SetupRoutes registers the HTTP API, the live feed and operational endpoints.
func SetupRoutes(deps Dependencies) http.Handler {
	cfg := deps.Config.Server
	log := deps.Logger

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, handler.ErrorCodeHeader},
		MaxAge:         300,
	}))

	// Observation API
	r.With(uploadRateLimit(cfg.UploadRateLimit)).Post("/upload", handler.UploadHandler(deps.Service, cfg.MaxUploadBytes, log))
	r.Post("/retrieve", handler.RetrieveHandler(deps.Service, log))
	r.Get("/image/{timestamp:[0-9]+}", handler.ImageHandler(deps.Service, log))
	r.Get("/observation/{timestamp:[0-9]+}", handler.ObservationHandler(deps.Service, log))

	// Live feed
	if deps.Hub != nil {
		r.Get("/ws", handler.WebsocketHandler(deps.Hub, log))
	}

	// Operations
	r.Get("/healthz", handler.HealthHandler(deps.DB, log))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/demo", handler.DemoHandler(cfg.DemoDir))

	return r
}

// uploadRateLimit limits uploads per client IP per minute. Zero disables it.
func uploadRateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.LimitByIP(perMinute, time.Minute)
}
