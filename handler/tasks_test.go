package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/model"
	"github.com/hiveboard/hiveboard/storage"
)

func newTestTaskHandler(t *testing.T) (*TaskHandler, *storage.Store) {
	t.Helper()
	store, err := storage.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return NewTaskHandler(store, zerolog.Nop()), store
}

func taskEvent(tenantID, agentID, taskID, eventID string, eventType model.EventType, ts time.Time) model.Event {
	tid := taskID
	return model.Event{
		EventID:   eventID,
		TenantID:  tenantID,
		KeyType:   model.KeyTypeLive,
		AgentID:   agentID,
		TaskID:    &tid,
		Timestamp: ts,
		EventType: eventType,
		Severity:  model.SeverityInfo,
	}
}

func TestListTasksGroupsByAgentAndTask(t *testing.T) {
	h, store := newTestTaskHandler(t)
	now := time.Now().UTC()

	events := []model.Event{
		taskEvent("acme", "agent-1", "task-1", "evt-1", model.EventTaskStarted, now),
		taskEvent("acme", "agent-1", "task-1", "evt-2", model.EventTaskCompleted, now.Add(time.Second)),
	}
	if _, err := store.InsertEvents(events); err != nil {
		t.Fatalf("InsertEvents: %v", err)
	}

	req := withTenant(httptest.NewRequest(http.MethodGet, "/v1/tasks", nil), "acme")
	rw := httptest.NewRecorder()
	h.ListTasks(rw, req)

	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Result().StatusCode)
	}
	if !strings.Contains(rw.Body.String(), "task-1") {
		t.Fatalf("expected task-1 in response, got %s", rw.Body.String())
	}
}

func TestGetTaskTimelineRequiresAgentID(t *testing.T) {
	h, _ := newTestTaskHandler(t)

	r := chi.NewRouter()
	r.Get("/v1/tasks/{id}/timeline", h.GetTaskTimeline)

	req := withTenant(httptest.NewRequest(http.MethodGet, "/v1/tasks/task-1/timeline", nil), "acme")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without agent_id, got %d", rw.Result().StatusCode)
	}
}

func TestGetTaskTimelineNotFoundForUnknownTask(t *testing.T) {
	h, _ := newTestTaskHandler(t)

	r := chi.NewRouter()
	r.Get("/v1/tasks/{id}/timeline", h.GetTaskTimeline)

	req := withTenant(httptest.NewRequest(http.MethodGet, "/v1/tasks/ghost/timeline?agent_id=agent-1", nil), "acme")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Result().StatusCode)
	}
}

func TestGetTaskTimelineReturnsActionTree(t *testing.T) {
	h, store := newTestTaskHandler(t)
	now := time.Now().UTC()

	events := []model.Event{
		taskEvent("acme", "agent-1", "task-1", "evt-1", model.EventTaskStarted, now),
		taskEvent("acme", "agent-1", "task-1", "evt-2", model.EventTaskCompleted, now.Add(time.Second)),
	}
	if _, err := store.InsertEvents(events); err != nil {
		t.Fatalf("InsertEvents: %v", err)
	}

	r := chi.NewRouter()
	r.Get("/v1/tasks/{id}/timeline", h.GetTaskTimeline)

	req := withTenant(httptest.NewRequest(http.MethodGet, "/v1/tasks/task-1/timeline?agent_id=agent-1", nil), "acme")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Result().StatusCode, rw.Body.String())
	}
	if !strings.Contains(rw.Body.String(), "action_tree") {
		t.Fatalf("expected action_tree in response, got %s", rw.Body.String())
	}
}
