package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/apierr"
	"github.com/hiveboard/hiveboard/middleware"
	"github.com/hiveboard/hiveboard/storage"
)

// AgentHandler serves the agent list/detail/pipeline endpoints.
type AgentHandler struct {
	store          *storage.Store
	stuckThreshold time.Duration
	logger         zerolog.Logger
}

// NewAgentHandler creates the agent handler.
func NewAgentHandler(store *storage.Store, stuckThreshold time.Duration, logger zerolog.Logger) *AgentHandler {
	return &AgentHandler{store: store, stuckThreshold: stuckThreshold, logger: logger}
}

// attentionRank orders derived statuses for sort=attention: the states an
// operator needs to act on first come first.
var attentionRank = map[string]int{
	"stuck":            0,
	"error":            1,
	"waiting_approval": 2,
	"processing":       3,
	"idle":             4,
	"offline":          5,
}

// ListAgents handles GET /v1/agents.
func (h *AgentHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	keyType := middleware.KeyType(r.Context())
	q := r.URL.Query()

	rows := h.store.ListAgentsDerived(tenantID, keyType, h.stuckThreshold, time.Now().UTC())

	environment := q.Get("environment")
	group := q.Get("group")
	projectID := q.Get("project_id")

	var linked map[string]bool
	if projectID != "" {
		linked = make(map[string]bool)
		for _, id := range h.store.AgentsForProject(tenantID, projectID) {
			linked[id] = true
		}
	}

	filtered := make([]storage.AgentListRow, 0, len(rows))
	for _, row := range rows {
		if environment != "" && row.Agent.Environment != environment {
			continue
		}
		if group != "" && row.Agent.Group != group {
			continue
		}
		if linked != nil && !linked[row.Agent.AgentID] {
			continue
		}
		filtered = append(filtered, row)
	}

	if q.Get("sort") == "attention" {
		sort.SliceStable(filtered, func(i, j int) bool {
			return attentionRank[string(filtered[i].DerivedStatus)] < attentionRank[string(filtered[j].DerivedStatus)]
		})
	} else {
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Agent.AgentID < filtered[j].Agent.AgentID
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": filtered})
}

// GetAgent handles GET /v1/agents/{id}.
func (h *AgentHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	keyType := middleware.KeyType(r.Context())
	agentID := chi.URLParam(r, "id")

	agent, ok := h.store.GetAgent(tenantID, agentID)
	if !ok {
		writeError(w, apierr.NotFound("agent not found"))
		return
	}

	events := h.store.EventsForAgent(tenantID, agentID, keyType)
	now := time.Now().UTC()

	rows := h.store.ListAgentsDerived(tenantID, keyType, h.stuckThreshold, now)
	var row *storage.AgentListRow
	for i := range rows {
		if rows[i].Agent.AgentID == agentID {
			row = &rows[i]
			break
		}
	}
	if row == nil {
		writeJSON(w, http.StatusOK, map[string]any{"agent": agent, "event_count": len(events)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":          row.Agent,
		"derived_status": row.DerivedStatus,
		"stats_1h":       row.Stats1h,
	})
}

// GetAgentPipeline handles GET /v1/agents/{id}/pipeline.
func (h *AgentHandler) GetAgentPipeline(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	keyType := middleware.KeyType(r.Context())
	agentID := chi.URLParam(r, "id")

	if _, ok := h.store.GetAgent(tenantID, agentID); !ok {
		writeError(w, apierr.NotFound("agent not found"))
		return
	}

	writeJSON(w, http.StatusOK, h.store.GetPipeline(tenantID, agentID, keyType))
}
