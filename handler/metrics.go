package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/middleware"
	"github.com/hiveboard/hiveboard/model"
	"github.com/hiveboard/hiveboard/storage"
)

// MetricsHandler serves GET /v1/metrics: a grouped count/aggregate view
// over the event stream, independent of the dedicated cost/task endpoints.
type MetricsHandler struct {
	store  *storage.Store
	logger zerolog.Logger
}

// NewMetricsHandler creates the metrics handler.
func NewMetricsHandler(store *storage.Store, logger zerolog.Logger) *MetricsHandler {
	return &MetricsHandler{store: store, logger: logger}
}

// GetMetrics handles GET /v1/metrics?metric=event_count|cost|duration_ms&group_by=agent_id|event_type|environment&range=1h.
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	keyType := middleware.KeyType(r.Context())
	q := r.URL.Query()

	metric := q.Get("metric")
	if metric == "" {
		metric = "event_count"
	}
	groupBy := q.Get("group_by")
	if groupBy == "" {
		groupBy = "agent_id"
	}
	window := parseRange(q.Get("range"))

	since := time.Now().UTC().Add(-window)
	events, _ := h.store.FilterEvents(storage.EventFilter{
		TenantID: tenantID,
		KeyType:  keyType,
		Since:    &since,
		Limit:    1 << 20,
	})

	groups := make(map[string]float64)
	var order []string
	for _, e := range events {
		key := groupKey(e, groupBy)
		if key == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] += metricValue(e, metric)
	}

	rows := make([]map[string]any, 0, len(order))
	for _, key := range order {
		rows = append(rows, map[string]any{"group": key, "value": groups[key]})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"metric":   metric,
		"group_by": groupBy,
		"range":    window.String(),
		"data":     rows,
	})
}

func groupKey(e model.Event, groupBy string) string {
	switch groupBy {
	case "event_type":
		return string(e.EventType)
	case "environment":
		return e.Environment
	case "project_id":
		if e.ProjectID != nil {
			return *e.ProjectID
		}
		return model.DefaultProjectID
	default:
		return e.AgentID
	}
}

func metricValue(e model.Event, metric string) float64 {
	switch metric {
	case "cost":
		if e.Payload.Kind != model.PayloadLLMCall {
			return 0
		}
		v, _ := e.Payload.DataFloat("cost_usd")
		return v
	case "duration_ms":
		if e.DurationMs == nil {
			return 0
		}
		return float64(*e.DurationMs)
	default:
		return 1
	}
}

func parseRange(raw string) time.Duration {
	if raw == "" {
		return time.Hour
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return time.Hour
}
