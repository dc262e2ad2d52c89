package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/storage"
)

func newTestProjectHandler(t *testing.T) (*ProjectHandler, *storage.Store) {
	t.Helper()
	store, err := storage.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return NewProjectHandler(store, zerolog.Nop()), store
}

func TestCreateProjectRejectsMissingName(t *testing.T) {
	h, _ := newTestProjectHandler(t)

	req := withTenant(httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(`{}`)), "acme")
	rw := httptest.NewRecorder()
	h.CreateProject(rw, req)

	if rw.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Result().StatusCode)
	}
}

func TestCreateProjectThenGetProject(t *testing.T) {
	h, _ := newTestProjectHandler(t)

	createReq := withTenant(httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(`{"name":"Payments"}`)), "acme")
	createRW := httptest.NewRecorder()
	h.CreateProject(createRW, createReq)
	if createRW.Result().StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", createRW.Result().StatusCode, createRW.Body.String())
	}

	r := chi.NewRouter()
	r.Get("/v1/projects/{id}", h.GetProject)

	list := withTenant(httptest.NewRequest(http.MethodGet, "/v1/projects", nil), "acme")
	listRW := httptest.NewRecorder()
	h.ListProjects(listRW, list)
	if !strings.Contains(listRW.Body.String(), "Payments") {
		t.Fatalf("expected Payments in project list, got %s", listRW.Body.String())
	}
}

func TestGetProjectNotFound(t *testing.T) {
	h, _ := newTestProjectHandler(t)

	r := chi.NewRouter()
	r.Get("/v1/projects/{id}", h.GetProject)

	req := withTenant(httptest.NewRequest(http.MethodGet, "/v1/projects/ghost", nil), "acme")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Result().StatusCode)
	}
}

func TestArchiveDefaultProjectRejectedThroughHandler(t *testing.T) {
	h, store := newTestProjectHandler(t)
	if err := store.EnsureDefaultProject("acme"); err != nil {
		t.Fatalf("EnsureDefaultProject: %v", err)
	}

	r := chi.NewRouter()
	r.Delete("/v1/projects/{id}", h.ArchiveProject)

	req := withTenant(httptest.NewRequest(http.MethodDelete, "/v1/projects/default", nil), "acme")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusBadRequest && rw.Result().StatusCode != http.StatusConflict {
		t.Fatalf("expected default project archival to be rejected, got %d", rw.Result().StatusCode)
	}
}

func TestUpdateProjectRenamesProject(t *testing.T) {
	h, _ := newTestProjectHandler(t)

	createReq := withTenant(httptest.NewRequest(http.MethodPost, "/v1/projects", strings.NewReader(`{"name":"Original"}`)), "acme")
	createRW := httptest.NewRecorder()
	h.CreateProject(createRW, createReq)

	var created struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(createRW.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created project: %v", err)
	}

	r := chi.NewRouter()
	r.Patch("/v1/projects/{id}", h.UpdateProject)

	patchReq := withTenant(httptest.NewRequest(http.MethodPatch, "/v1/projects/"+created.ProjectID, strings.NewReader(`{"name":"Renamed"}`)), "acme")
	patchRW := httptest.NewRecorder()
	r.ServeHTTP(patchRW, patchReq)

	if patchRW.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", patchRW.Result().StatusCode, patchRW.Body.String())
	}
	if !strings.Contains(patchRW.Body.String(), "Renamed") {
		t.Fatalf("expected renamed project in response, got %s", patchRW.Body.String())
	}
}
