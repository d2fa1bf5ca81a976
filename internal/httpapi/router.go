// Package httpapi exposes the record service and cache administration over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	rc "github.com/unkn0wn-root/recordcache"
)

// Deps are the components the router serves.
type Deps struct {
	Users   rc.Service
	Cache   rc.CacheStore
	Metrics *rc.Metrics
	Logger  *zap.Logger
	// Gatherer backs GET /metrics; nil serves prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// AvailableCaches lists the cache providers this build supports.
	AvailableCaches []string
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
}

// NewRouter creates and configures the HTTP router
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"*"}
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(Logger(d.Logger))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", healthCheck)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	users := &userHandler{svc: d.Users, logger: d.Logger}
	router.Route("/api/users", func(r chi.Router) {
		r.Get("/", users.List)
		r.Post("/", users.Create)
		r.Get("/{id}", users.Get)
		r.Put("/{id}", users.Update)
		r.Delete("/{id}", users.Delete)
	})

	caches := &cacheHandler{cache: d.Cache, metrics: d.Metrics, available: d.AvailableCaches, logger: d.Logger}
	router.Route("/api/cache", func(r chi.Router) {
		r.Get("/metrics", caches.Metrics)
		r.Get("/status", caches.Status)
		r.Post("/clear", caches.Clear)
	})

	return router
}

// healthCheck handles health check requests
func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
