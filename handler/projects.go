package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/apierr"
	"github.com/hiveboard/hiveboard/middleware"
	"github.com/hiveboard/hiveboard/model"
	"github.com/hiveboard/hiveboard/storage"
)

// ProjectHandler serves project CRUD.
type ProjectHandler struct {
	store  *storage.Store
	logger zerolog.Logger
}

// NewProjectHandler creates the project handler.
func NewProjectHandler(store *storage.Store, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{store: store, logger: logger}
}

// ListProjects handles GET /v1/projects.
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"data": h.store.ListProjects(tenantID)})
}

// CreateProject handles POST /v1/projects.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierr.BadRequest("invalid JSON body: "+err.Error()))
		return
	}
	if body.Name == "" {
		writeError(w, apierr.BadRequest("name is required"))
		return
	}

	project, apiErr := h.store.CreateProject(tenantID, body.Name)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// GetProject handles GET /v1/projects/{id}.
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	projectID := chi.URLParam(r, "id")

	project, ok := h.store.GetProject(tenantID, projectID)
	if !ok {
		writeError(w, apierr.NotFound("project not found"))
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// UpdateProject handles PATCH /v1/projects/{id}.
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	projectID := chi.URLParam(r, "id")

	var body struct {
		Name   *string `json:"name"`
		Status *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierr.BadRequest("invalid JSON body: "+err.Error()))
		return
	}

	var status *model.ProjectStatus
	if body.Status != nil {
		s := model.ProjectStatus(*body.Status)
		status = &s
	}

	project, apiErr := h.store.UpdateProject(tenantID, projectID, body.Name, status)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// ArchiveProject handles DELETE /v1/projects/{id} (an archive, not a hard
// delete — agents and events referencing the project remain queryable).
func (h *ProjectHandler) ArchiveProject(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	projectID := chi.URLParam(r, "id")

	if apiErr := h.store.ArchiveProject(tenantID, projectID); apiErr != nil {
		writeError(w, apiErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
