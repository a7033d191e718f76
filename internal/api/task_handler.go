package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pvannier/lumen-api/internal/api/shared"
	"github.com/pvannier/lumen-api/internal/registry"
)

// TaskHandler serves job status reads.
type TaskHandler struct {
	registry *registry.Registry
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(reg *registry.Registry) *TaskHandler {
	return &TaskHandler{registry: reg}
}

// GetTask handles GET /api/tasks/{taskID}. An unknown id yields 404; the
// job may simply have been evicted already, so pollers treat that as a
// retryable condition rather than a hard failure.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID format")
		return
	}

	job, ok := h.registry.Get(id)
	if !ok {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}
