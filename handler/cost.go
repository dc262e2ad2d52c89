package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/middleware"
	"github.com/hiveboard/hiveboard/storage"
)

// CostHandler serves the cost reporting endpoints and /v1/llm-calls.
type CostHandler struct {
	store  *storage.Store
	logger zerolog.Logger
}

// NewCostHandler creates the cost handler.
func NewCostHandler(store *storage.Store, logger zerolog.Logger) *CostHandler {
	return &CostHandler{store: store, logger: logger}
}

func windowFromQuery(q map[string][]string) (time.Time, time.Time) {
	until := time.Now().UTC()
	since := until.Add(-24 * time.Hour)
	if v, ok := q["since"]; ok && len(v) > 0 {
		if t, err := time.Parse(time.RFC3339, v[0]); err == nil {
			since = t
		}
	}
	if v, ok := q["until"]; ok && len(v) > 0 {
		if t, err := time.Parse(time.RFC3339, v[0]); err == nil {
			until = t
		}
	}
	return since, until
}

// GetCostSummary handles GET /v1/cost.
func (h *CostHandler) GetCostSummary(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	keyType := middleware.KeyType(r.Context())
	since, until := windowFromQuery(r.URL.Query())

	writeJSON(w, http.StatusOK, h.store.GetCostSummary(tenantID, keyType, since, until))
}

// GetCostCalls handles both GET /v1/cost/calls and GET /v1/llm-calls — the
// same individual-call listing, spec'd twice under different paths.
func (h *CostHandler) GetCostCalls(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	keyType := middleware.KeyType(r.Context())
	q := r.URL.Query()

	f := storage.EventFilter{
		TenantID: tenantID,
		KeyType:  keyType,
		AgentID:  q.Get("agent_id"),
		Cursor:   q.Get("cursor"),
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

	rows, cursor := h.store.GetCostCalls(f)
	writePage(w, rows, cursor)
}

// GetCostTimeseries handles GET /v1/cost/timeseries.
func (h *CostHandler) GetCostTimeseries(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	keyType := middleware.KeyType(r.Context())
	q := r.URL.Query()
	since, until := windowFromQuery(q)

	interval := time.Hour
	if raw := q.Get("interval_seconds"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			interval = time.Duration(n) * time.Second
		}
	}
	splitByModel := q.Get("group_by") == "model"

	buckets := h.store.GetCostTimeseries(tenantID, keyType, since, until, interval, splitByModel)
	writeJSON(w, http.StatusOK, map[string]any{"data": buckets})
}
