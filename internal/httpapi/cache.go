package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	rc "github.com/unkn0wn-root/recordcache"
)

type cacheHandler struct {
	cache     rc.CacheStore
	metrics   *rc.Metrics
	available []string
	logger    *zap.Logger
}

// Metrics handles GET /api/cache/metrics
func (h *cacheHandler) Metrics(w http.ResponseWriter, _ *http.Request) {
	respondJSON(h.logger, w, http.StatusOK, map[string]any{
		"cacheImplementation": h.cache.Name(),
		"cacheEnabled":        h.cache.Enabled(),
		"metrics":             h.metrics.Snapshot(),
	})
}

// Status handles GET /api/cache/status
func (h *cacheHandler) Status(w http.ResponseWriter, _ *http.Request) {
	respondJSON(h.logger, w, http.StatusOK, map[string]any{
		"cacheEnabled":        h.cache.Enabled(),
		"cacheImplementation": h.cache.Name(),
		"availableCaches":     h.cache.Namespaces(),
		"availableProviders":  h.available,
	})
}

// Clear handles POST /api/cache/clear. Sequences are never touched. Metrics
// are reset even when some entries could not be evicted.
func (h *cacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	err := h.cache.Clear(r.Context())
	h.metrics.Reset()
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "All caches cleared and metrics reset",
	})
}
