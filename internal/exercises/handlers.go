package exercises

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/fdg312/nutrition-planner/internal/userctx"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for the exercise plan.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleCreate handles POST /v1/exercises
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ownerUserID, ok := userctx.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	var req UpsertExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	exercise, err := h.service.Create(r.Context(), ownerUserID, req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exercise)
}

// HandleList handles GET /v1/exercises
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ownerUserID, ok := userctx.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	exercises, err := h.service.List(r.Context(), ownerUserID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListExercisesResponse{Exercises: exercises})
}

// HandleUpdate handles PUT /v1/exercises/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ownerUserID, ok := userctx.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}
	id, ok := exerciseID(w, r)
	if !ok {
		return
	}

	var req UpsertExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	exercise, err := h.service.Update(r.Context(), ownerUserID, id, req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exercise)
}

// HandleDelete handles DELETE /v1/exercises/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ownerUserID, ok := userctx.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}
	id, ok := exerciseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), ownerUserID, id); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleWeek handles GET /v1/exercises/week?date=YYYY-MM-DD
func (h *Handler) HandleWeek(w http.ResponseWriter, r *http.Request) {
	ownerUserID, ok := userctx.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	week, err := h.service.Week(r.Context(), ownerUserID, strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, week)
}

// HandleMarkDone handles PUT /v1/exercises/{id}/completions/{date}
func (h *Handler) HandleMarkDone(w http.ResponseWriter, r *http.Request) {
	h.setCompletion(w, r, true)
}

// HandleUnmark handles DELETE /v1/exercises/{id}/completions/{date}
func (h *Handler) HandleUnmark(w http.ResponseWriter, r *http.Request) {
	h.setCompletion(w, r, false)
}

func (h *Handler) setCompletion(w http.ResponseWriter, r *http.Request, done bool) {
	ownerUserID, ok := userctx.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}
	id, ok := exerciseID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.SetCompletion(r.Context(), ownerUserID, id, r.PathValue("date"), done)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func exerciseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid exercise id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "validation failed: "):
		writeError(w, http.StatusBadRequest, "validation_failed", strings.TrimPrefix(msg, "validation failed: "))
	case errors.Is(err, ErrExerciseNotFound):
		writeError(w, http.StatusNotFound, "exercise_not_found", "Exercise not found")
	case errors.Is(err, ErrNotScheduled):
		writeError(w, http.StatusUnprocessableEntity, "not_scheduled", "Exercise is not scheduled on this day")
	case errors.Is(err, storage.ErrQueryFailed):
		writeError(w, http.StatusServiceUnavailable, "query_failed", "Exercise plan is temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
