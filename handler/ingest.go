package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/ingest"
	"github.com/hiveboard/hiveboard/middleware"
	"github.com/hiveboard/hiveboard/model"
)

// IngestHandler handles POST /v1/ingest.
type IngestHandler struct {
	pipeline *ingest.Pipeline
	logger   zerolog.Logger
}

// NewIngestHandler creates the ingestion handler.
func NewIngestHandler(pipeline *ingest.Pipeline, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, logger: logger}
}

// Ingest handles POST /v1/ingest. It replies 400 when no event was
// accepted and the batch produced errors, 207 when any event was rejected
// (a duplicate event_id counts as rejected), 200 otherwise.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var batch model.IngestBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []string{"invalid JSON body: " + err.Error()}})
		return
	}

	tenantID := middleware.TenantID(r.Context())
	keyType := middleware.KeyType(r.Context())

	result := h.pipeline.Apply(tenantID, keyType, batch)

	status := http.StatusOK
	switch {
	case result.Accepted == 0 && len(result.Errors) > 0:
		status = http.StatusBadRequest
	case result.Rejected > 0:
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}
