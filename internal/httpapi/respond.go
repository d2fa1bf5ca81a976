package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	rc "github.com/unkn0wn-root/recordcache"
)

const internalErrorMessage = "Unexpected error occurred"

func respondJSON(logger *zap.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func respondError(logger *zap.Logger, w http.ResponseWriter, status int, message string) {
	respondJSON(logger, w, status, map[string]any{
		"error":   true,
		"message": message,
		"code":    status,
	})
}

// respondServiceError maps service errors onto HTTP statuses. Only NotFound
// reaches the client verbatim; everything else is logged and hidden.
func respondServiceError(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var nf *rc.NotFoundError
	if errors.As(err, &nf) {
		logger.Warn("Handled 404", zap.String("reason", nf.Error()))
		respondError(logger, w, http.StatusNotFound, nf.Error())
		return
	}
	logger.Error("Unhandled error",
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("outcome", string(rc.Classify(err))),
	)
	respondError(logger, w, http.StatusInternalServerError, internalErrorMessage)
}
