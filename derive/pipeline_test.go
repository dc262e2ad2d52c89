package derive

import (
	"testing"
	"time"

	"github.com/hiveboard/hiveboard/model"
)

func TestBuildPipelineViewKeepsNewestPerKind(t *testing.T) {
	now := time.Now().UTC()
	events := []model.Event{
		{
			Timestamp: now.Add(-time.Minute),
			Payload:   model.Payload{Kind: model.PayloadQueueSnapshot, Summary: "stale", Data: map[string]any{"depth": float64(3)}},
		},
		{
			Timestamp: now,
			Payload:   model.Payload{Kind: model.PayloadQueueSnapshot, Summary: "fresh", Data: map[string]any{"depth": float64(1)}},
		},
		{
			Timestamp: now,
			Payload:   model.Payload{Kind: model.PayloadTodo, Summary: "todo item"},
		},
	}

	view := BuildPipelineView(events)
	if view.Queue == nil {
		t.Fatal("expected queue section to be set")
	}
	if view.Queue.Summary != "fresh" {
		t.Fatalf("expected newest queue snapshot to win, got %s", view.Queue.Summary)
	}
	if view.Todos == nil {
		t.Fatal("expected todos section to be set")
	}
	if view.Issues != nil || view.Scheduled != nil {
		t.Fatal("expected issues/scheduled to be nil when no such events exist")
	}
}

func TestBuildPipelineViewEmptyWhenNoPipelineEvents(t *testing.T) {
	events := []model.Event{{EventType: model.EventHeartbeat}}
	view := BuildPipelineView(events)
	if view.Queue != nil || view.Todos != nil || view.Issues != nil || view.Scheduled != nil {
		t.Fatal("expected all sections nil for events with no pipeline payload kinds")
	}
}
