package ingest

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hiveboard/hiveboard/model"
)

func TestValidateAndEnrichRejectsUnknownEventType(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	_, _, err := pipeline.validateAndEnrich("acme", model.KeyTypeLive, model.Envelope{AgentID: "agent-1"}, model.RawEvent{
		EventType: "not_a_real_event_type",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err == nil {
		t.Fatal("expected an error for an unknown event_type")
	}
}

func TestValidateAndEnrichRejectsInvalidTimestamp(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	_, _, err := pipeline.validateAndEnrich("acme", model.KeyTypeLive, model.Envelope{AgentID: "agent-1"}, model.RawEvent{
		EventType: "heartbeat",
		Timestamp: "not-a-timestamp",
	})
	if err == nil {
		t.Fatal("expected an error for an invalid timestamp")
	}
}

func TestValidateAndEnrichInheritsAgentIDFromEnvelope(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	event, _, err := pipeline.validateAndEnrich("acme", model.KeyTypeLive, model.Envelope{AgentID: "agent-1"}, model.RawEvent{
		EventType: "heartbeat",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("validateAndEnrich: %v", err)
	}
	if event.AgentID != "agent-1" {
		t.Fatalf("expected agent_id inherited from envelope, got %s", event.AgentID)
	}
}

func TestValidateAndEnrichDefaultsInvalidSeverityWithWarning(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	event, warnings, err := pipeline.validateAndEnrich("acme", model.KeyTypeLive, model.Envelope{AgentID: "agent-1"}, model.RawEvent{
		EventType: "heartbeat",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Severity:  "not-a-severity",
	})
	if err != nil {
		t.Fatalf("validateAndEnrich: %v", err)
	}
	if event.Severity != model.SeverityDebug {
		t.Fatalf("expected heartbeat's default severity, got %s", event.Severity)
	}
	if len(warnings) == 0 {
		t.Fatal("expected a warning about the invalid severity")
	}
}

func TestValidateAndEnrichTruncatesOversizedEnvironment(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	oversized := strings.Repeat("x", model.MaxEnvironmentLen+10)

	event, warnings, err := pipeline.validateAndEnrich("acme", model.KeyTypeLive, model.Envelope{AgentID: "agent-1"}, model.RawEvent{
		EventType:   "heartbeat",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Environment: oversized,
	})
	if err != nil {
		t.Fatalf("validateAndEnrich: %v", err)
	}
	if len(event.Environment) != model.MaxEnvironmentLen {
		t.Fatalf("expected environment truncated to %d chars, got %d", model.MaxEnvironmentLen, len(event.Environment))
	}
	if len(warnings) == 0 {
		t.Fatal("expected a truncation warning")
	}
}

func TestNormalizePayloadComputesLLMCallCost(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	data, _ := json.Marshal(map[string]any{"model": "gpt-4o", "tokens_in": 1000, "tokens_out": 500})

	payload, _, err := pipeline.normalizePayload("evt-1", model.RawEvent{
		Payload: model.RawPayload{Kind: "llm_call", Data: data},
	})
	if err != nil {
		t.Fatalf("normalizePayload: %v", err)
	}

	if payload.Kind != model.PayloadLLMCall {
		t.Fatalf("expected llm_call kind, got %s", payload.Kind)
	}
	if _, ok := payload.Data["cost_usd"]; !ok {
		t.Fatalf("expected cost_usd to be computed, got %+v", payload.Data)
	}
	if estimated, _ := payload.Data["estimated"].(bool); !estimated {
		t.Fatalf("expected estimated=true when no client cost is supplied, got %+v", payload.Data)
	}
}

func TestNormalizePayloadHonorsClientSuppliedCost(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	data, _ := json.Marshal(map[string]any{"model": "not-in-catalog", "tokens_in": 1000, "tokens_out": 500, "cost": 0.10})

	payload, _, err := pipeline.normalizePayload("evt-1", model.RawEvent{
		Payload: model.RawPayload{Kind: "llm_call", Data: data},
	})
	if err != nil {
		t.Fatalf("normalizePayload: %v", err)
	}

	if cost, _ := payload.DataFloat("cost_usd"); cost != 0.10 {
		t.Fatalf("expected client-supplied cost 0.10 to be honored, got %v", cost)
	}
	if estimated, _ := payload.Data["estimated"].(bool); estimated {
		t.Fatalf("expected estimated=false when client supplies cost, got %+v", payload.Data)
	}
}

func TestNormalizePayloadRejectsOversizePayload(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	big := make(map[string]any, 1)
	big["blob"] = strings.Repeat("x", model.MaxPayloadBytes+1)
	data, _ := json.Marshal(big)

	_, _, err := pipeline.normalizePayload("evt-1", model.RawEvent{
		Payload: model.RawPayload{Kind: "llm_call", Data: data},
	})
	if err == nil {
		t.Fatal("expected an error for an oversize payload")
	}
}

func TestValidateAndEnrichRejectsOversizePayload(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	big := make(map[string]any, 1)
	big["blob"] = strings.Repeat("x", model.MaxPayloadBytes+1)
	data, _ := json.Marshal(big)

	_, _, err := pipeline.validateAndEnrich("acme", model.KeyTypeLive, model.Envelope{AgentID: "agent-1"}, model.RawEvent{
		EventType: "custom",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   model.RawPayload{Kind: "llm_call", Data: data},
	})
	if err == nil {
		t.Fatal("expected an error for an event whose payload exceeds the size ceiling")
	}
}

func TestNormalizePayloadWarnsOnUnrecognizedKind(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	payload, warnings, err := pipeline.normalizePayload("evt-1", model.RawEvent{
		Payload: model.RawPayload{Kind: "made_up_kind"},
	})
	if err != nil {
		t.Fatalf("normalizePayload: %v", err)
	}

	if payload.Kind != model.PayloadUnknown {
		t.Fatalf("expected unknown payload kind fallback, got %s", payload.Kind)
	}
	if len(warnings) == 0 {
		t.Fatal("expected a warning about the unrecognized kind")
	}
}

func TestNormalizePayloadWarnsOnMissingRecommendedFields(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	data, _ := json.Marshal(map[string]any{"model": "gpt-4o"})

	_, warnings, err := pipeline.normalizePayload("evt-1", model.RawEvent{
		Payload: model.RawPayload{Kind: "llm_call", Data: data},
	})
	if err != nil {
		t.Fatalf("normalizePayload: %v", err)
	}

	if len(warnings) == 0 {
		t.Fatal("expected a warning about missing recommended fields")
	}
}
