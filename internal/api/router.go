package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"edfi-dms/internal/middleware"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	CORSAllowedOrigins []string
	ReloadRateLimit    middleware.RateLimitConfig
	Logger             *slog.Logger
}

// NewRouter mounts the handler's routes with request ids, request logging,
// panic recovery and CORS.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match", middleware.RequestIDHeader},
		ExposedHeaders: []string{"ETag", middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Get("/metadata", h.Discovery)
	r.Get("/metadata/dependencies", h.GetDependencies)

	if h.reloader != nil {
		r.Route("/management", func(r chi.Router) {
			r.Use(middleware.RateLimiter(cfg.ReloadRateLimit))
			r.Post("/reload-api-schema", h.ReloadSchema)
		})
	}
	return r
}
