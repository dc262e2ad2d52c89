package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/apierr"
	"github.com/hiveboard/hiveboard/middleware"
	"github.com/hiveboard/hiveboard/storage"
)

var errEmptyTimeParam = errors.New("empty time parameter")

// TaskHandler serves the task list and timeline endpoints.
type TaskHandler struct {
	store  *storage.Store
	logger zerolog.Logger
}

// NewTaskHandler creates the task handler.
func NewTaskHandler(store *storage.Store, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{store: store, logger: logger}
}

// ListTasks handles GET /v1/tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	keyType := middleware.KeyType(r.Context())
	q := r.URL.Query()

	f := storage.EventFilter{
		TenantID:    tenantID,
		KeyType:     keyType,
		AgentID:     q.Get("agent_id"),
		ProjectID:   q.Get("project_id"),
		Environment: q.Get("environment"),
	}
	if since, err := parseTimeParam(q.Get("since")); err == nil {
		f.Since = since
	}
	if until, err := parseTimeParam(q.Get("until")); err == nil {
		f.Until = until
	}

	rows := h.store.ListTasks(f)
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

// GetTaskTimeline handles GET /v1/tasks/{id}/timeline. Tasks are scoped by
// (agent_id, task_id); agent_id is required as a query param since task_id
// alone is not globally unique.
func (h *TaskHandler) GetTaskTimeline(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	keyType := middleware.KeyType(r.Context())
	taskID := chi.URLParam(r, "id")
	agentID := r.URL.Query().Get("agent_id")

	if agentID == "" {
		writeError(w, apierr.BadRequest("agent_id query parameter is required"))
		return
	}

	timeline := h.store.GetTimeline(tenantID, agentID, taskID, keyType)
	if len(timeline.Events) == 0 {
		writeError(w, apierr.NotFound("task not found"))
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, errEmptyTimeParam
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
