package handler

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/middleware"
	"github.com/hiveboard/hiveboard/model"
	"github.com/hiveboard/hiveboard/storage"
)

// EventHandler serves GET /v1/events.
type EventHandler struct {
	store  *storage.Store
	logger zerolog.Logger
}

// NewEventHandler creates the event handler.
func NewEventHandler(store *storage.Store, logger zerolog.Logger) *EventHandler {
	return &EventHandler{store: store, logger: logger}
}

// ListEvents handles GET /v1/events.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	keyType := middleware.KeyType(r.Context())
	q := r.URL.Query()

	f := storage.EventFilter{
		TenantID:          tenantID,
		KeyType:           keyType,
		AgentID:           q.Get("agent_id"),
		TaskID:            q.Get("task_id"),
		ProjectID:         q.Get("project_id"),
		EventType:         model.EventType(q.Get("event_type")),
		Severity:          model.Severity(q.Get("severity")),
		PayloadKind:       model.PayloadKind(q.Get("payload_kind")),
		Environment:       q.Get("environment"),
		Group:             q.Get("group"),
		ExcludeHeartbeats: q.Get("exclude_heartbeats") != "false",
		Cursor:            q.Get("cursor"),
	}
	if since, err := parseTimeParam(q.Get("since")); err == nil {
		f.Since = since
	}
	if until, err := parseTimeParam(q.Get("until")); err == nil {
		f.Until = until
	}
	if limitRaw := q.Get("limit"); limitRaw != "" {
		if n, err := strconv.Atoi(limitRaw); err == nil {
			f.Limit = n
		}
	}

	events, cursor := h.store.FilterEvents(f)
	writePage(w, events, cursor)
}
