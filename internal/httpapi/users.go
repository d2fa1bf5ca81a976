package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	rc "github.com/unkn0wn-root/recordcache"
)

type userHandler struct {
	svc    rc.Service
	logger *zap.Logger
}

func (h *userHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	return id, true
}

func (h *userHandler) decodeDraft(w http.ResponseWriter, r *http.Request) (rc.User, bool) {
	var draft rc.User
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return rc.User{}, false
	}
	if err := validateStruct(draft); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Validation error: "+err.Error())
		return rc.User{}, false
	}
	return draft, true
}

// committed reports whether a write reached the record store even though the
// service returned err. The client gets the stored record; the stale cache
// entry is logged and left to its TTL.
func (h *userHandler) committed(r *http.Request, err error) bool {
	var ie *rc.InvalidateError
	if !errors.As(err, &ie) {
		return false
	}
	h.logger.Error("Write committed but cache invalidation failed",
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	return true
}

// List handles GET /api/users
func (h *userHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.GetAll(r.Context())
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, users)
}

// Get handles GET /api/users/{id}
func (h *userHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	u, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, u)
}

// Create handles POST /api/users
func (h *userHandler) Create(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Create(r.Context(), draft)
	if err != nil && !h.committed(r, err) {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusCreated, u)
}

// Update handles PUT /api/users/{id}
func (h *userHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Update(r.Context(), id, draft)
	if err != nil && !h.committed(r, err) {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusAccepted, u)
}

// Delete handles DELETE /api/users/{id}
func (h *userHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil && !h.committed(r, err) {
		respondServiceError(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
