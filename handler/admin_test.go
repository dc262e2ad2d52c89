package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/storage"
)

func newTestAdminHandler(t *testing.T) (*AdminHandler, *storage.Store) {
	t.Helper()
	store, err := storage.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return NewAdminHandler(store, zerolog.Nop()), store
}

func TestCreateTenantDefaultsInvalidPlanToFree(t *testing.T) {
	h, _ := newTestAdminHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/tenants", strings.NewReader(`{"tenant_id":"acme","plan":"not-a-real-plan"}`))
	rw := httptest.NewRecorder()
	h.CreateTenant(rw, req)

	if rw.Result().StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Result().StatusCode, rw.Body.String())
	}
	if !strings.Contains(rw.Body.String(), `"plan":"free"`) {
		t.Fatalf("expected plan to default to free, got %s", rw.Body.String())
	}
}

func TestCreateTenantRejectsMissingTenantID(t *testing.T) {
	h, _ := newTestAdminHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/tenants", strings.NewReader(`{}`))
	rw := httptest.NewRecorder()
	h.CreateTenant(rw, req)

	if rw.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Result().StatusCode)
	}
}

func TestCreateTenantConflictOnDuplicate(t *testing.T) {
	h, _ := newTestAdminHandler(t)

	body := `{"tenant_id":"acme","plan":"pro"}`
	first := httptest.NewRecorder()
	h.CreateTenant(first, httptest.NewRequest(http.MethodPost, "/v1/admin/tenants", strings.NewReader(body)))
	if first.Result().StatusCode != http.StatusCreated {
		t.Fatalf("expected first create to succeed, got %d", first.Result().StatusCode)
	}

	second := httptest.NewRecorder()
	h.CreateTenant(second, httptest.NewRequest(http.MethodPost, "/v1/admin/tenants", strings.NewReader(body)))
	if second.Result().StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate tenant, got %d", second.Result().StatusCode)
	}
}

func TestCreateKeyRequiresExistingTenant(t *testing.T) {
	h, _ := newTestAdminHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/keys", strings.NewReader(`{"tenant_id":"ghost","key_type":"live"}`))
	rw := httptest.NewRecorder()
	h.CreateKey(rw, req)

	if rw.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown tenant, got %d", rw.Result().StatusCode)
	}
}

func TestCreateKeyReturnsRawKeyOnce(t *testing.T) {
	h, store := newTestAdminHandler(t)
	if _, err := store.CreateTenant("acme", "pro"); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/keys", strings.NewReader(`{"tenant_id":"acme","key_type":"live","label":"test"}`))
	rw := httptest.NewRecorder()
	h.CreateKey(rw, req)

	if rw.Result().StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Result().StatusCode, rw.Body.String())
	}
	if !strings.Contains(rw.Body.String(), `"api_key":"hb_`) {
		t.Fatalf("expected raw api_key in response, got %s", rw.Body.String())
	}
}

func TestCreateKeyDefaultsInvalidKeyTypeToLive(t *testing.T) {
	h, store := newTestAdminHandler(t)
	if _, err := store.CreateTenant("acme", "pro"); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/keys", strings.NewReader(`{"tenant_id":"acme","key_type":"bogus"}`))
	rw := httptest.NewRecorder()
	h.CreateKey(rw, req)

	if rw.Result().StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rw.Result().StatusCode)
	}
	if !strings.Contains(rw.Body.String(), `"key_type":"live"`) {
		t.Fatalf("expected key_type to default to live, got %s", rw.Body.String())
	}
}
