package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/apierr"
	"github.com/hiveboard/hiveboard/middleware"
	"github.com/hiveboard/hiveboard/model"
	"github.com/hiveboard/hiveboard/storage"
)

// AlertHandler serves alert rule CRUD and alert history.
type AlertHandler struct {
	store  *storage.Store
	logger zerolog.Logger
}

// NewAlertHandler creates the alert handler.
func NewAlertHandler(store *storage.Store, logger zerolog.Logger) *AlertHandler {
	return &AlertHandler{store: store, logger: logger}
}

// ListRules handles GET /v1/alerts/rules.
func (h *AlertHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"data": h.store.ListAlertRules(tenantID)})
}

// CreateRule handles POST /v1/alerts/rules.
func (h *AlertHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	var body struct {
		Name            string         `json:"name"`
		ConditionType   string         `json:"condition_type"`
		ConditionParams map[string]any `json:"condition_params"`
		Severity        string         `json:"severity"`
		Channels        []string       `json:"channels"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierr.BadRequest("invalid JSON body: "+err.Error()))
		return
	}
	if body.Name == "" || body.ConditionType == "" {
		writeError(w, apierr.BadRequest("name and condition_type are required"))
		return
	}

	severity := model.Severity(body.Severity)
	if !model.ValidSeverities[severity] {
		severity = model.SeverityWarn
	}

	rule, err := h.store.CreateAlertRule(tenantID, body.Name, body.ConditionType, body.ConditionParams, severity, body.Channels)
	if err != nil {
		writeError(w, apierr.Internal(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule handles PATCH /v1/alerts/rules/{id}.
func (h *AlertHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	ruleID := chi.URLParam(r, "id")

	var body struct {
		Enabled  *bool    `json:"enabled"`
		Channels []string `json:"channels"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierr.BadRequest("invalid JSON body: "+err.Error()))
		return
	}

	rule, apiErr := h.store.UpdateAlertRule(tenantID, ruleID, body.Enabled, body.Channels)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule handles DELETE /v1/alerts/rules/{id}.
func (h *AlertHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	ruleID := chi.URLParam(r, "id")

	if apiErr := h.store.DeleteAlertRule(tenantID, ruleID); apiErr != nil {
		writeError(w, apiErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListHistory handles GET /v1/alerts/history.
func (h *AlertHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": h.store.ListAlertHistory(tenantID, limit)})
}
