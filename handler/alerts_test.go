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

func newTestAlertHandler(t *testing.T) (*AlertHandler, *storage.Store) {
	t.Helper()
	store, err := storage.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return NewAlertHandler(store, zerolog.Nop()), store
}

func TestCreateRuleRejectsMissingConditionType(t *testing.T) {
	h, _ := newTestAlertHandler(t)

	req := withTenant(httptest.NewRequest(http.MethodPost, "/v1/alerts/rules", strings.NewReader(`{"name":"too many errors"}`)), "acme")
	rw := httptest.NewRecorder()
	h.CreateRule(rw, req)

	if rw.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Result().StatusCode)
	}
}

func TestCreateRuleDefaultsInvalidSeverityToWarn(t *testing.T) {
	h, _ := newTestAlertHandler(t)

	body := `{"name":"too many errors","condition_type":"event_count","severity":"not-a-severity"}`
	req := withTenant(httptest.NewRequest(http.MethodPost, "/v1/alerts/rules", strings.NewReader(body)), "acme")
	rw := httptest.NewRecorder()
	h.CreateRule(rw, req)

	if rw.Result().StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Result().StatusCode, rw.Body.String())
	}
	if !strings.Contains(rw.Body.String(), `"severity":"warn"`) {
		t.Fatalf("expected severity to default to warn, got %s", rw.Body.String())
	}
}

func TestListRulesReturnsCreatedRules(t *testing.T) {
	h, _ := newTestAlertHandler(t)

	createReq := withTenant(httptest.NewRequest(http.MethodPost, "/v1/alerts/rules", strings.NewReader(`{"name":"rule-a","condition_type":"event_count"}`)), "acme")
	h.CreateRule(httptest.NewRecorder(), createReq)

	listReq := withTenant(httptest.NewRequest(http.MethodGet, "/v1/alerts/rules", nil), "acme")
	listRW := httptest.NewRecorder()
	h.ListRules(listRW, listReq)

	if !strings.Contains(listRW.Body.String(), "rule-a") {
		t.Fatalf("expected rule-a in list, got %s", listRW.Body.String())
	}
}

func TestUpdateRuleNotFound(t *testing.T) {
	h, _ := newTestAlertHandler(t)

	r := chi.NewRouter()
	r.Patch("/v1/alerts/rules/{id}", h.UpdateRule)

	req := withTenant(httptest.NewRequest(http.MethodPatch, "/v1/alerts/rules/ghost", strings.NewReader(`{"enabled":false}`)), "acme")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Result().StatusCode)
	}
}

func TestDeleteRuleRemovesIt(t *testing.T) {
	h, store := newTestAlertHandler(t)
	rule, err := store.CreateAlertRule("acme", "rule-a", "event_count", nil, "warn", nil)
	if err != nil {
		t.Fatalf("CreateAlertRule: %v", err)
	}

	r := chi.NewRouter()
	r.Delete("/v1/alerts/rules/{id}", h.DeleteRule)

	req := withTenant(httptest.NewRequest(http.MethodDelete, "/v1/alerts/rules/"+rule.RuleID, nil), "acme")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rw.Result().StatusCode)
	}
	if rules := store.ListAlertRules("acme"); len(rules) != 0 {
		t.Fatalf("expected rule to be gone, got %+v", rules)
	}
}

func TestListHistoryRespectsLimitParam(t *testing.T) {
	h, store := newTestAlertHandler(t)
	for i := 0; i < 3; i++ {
		if _, err := store.RecordAlertFiring("acme", "rule-a", nil); err != nil {
			t.Fatalf("RecordAlertFiring: %v", err)
		}
	}

	req := withTenant(httptest.NewRequest(http.MethodGet, "/v1/alerts/history?limit=1", nil), "acme")
	rw := httptest.NewRecorder()
	h.ListHistory(rw, req)

	var body struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode history response: %v", err)
	}
	if len(body.Data) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(body.Data))
	}
}
