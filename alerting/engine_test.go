package alerting

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/model"
)

func TestEvaluateEventCountFiresAtThreshold(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	rule := model.AlertRule{
		RuleID:        "rule-1",
		Name:          "many-failures",
		ConditionType: string(ConditionEventCount),
		ConditionParams: map[string]any{
			"event_type": string(model.EventTaskFailed),
			"threshold":  float64(2),
		},
		Enabled: true,
	}
	events := []model.Event{
		{EventID: "e1", EventType: model.EventTaskFailed},
		{EventID: "e2", EventType: model.EventTaskFailed},
		{EventID: "e3", EventType: model.EventHeartbeat},
	}

	firings := e.Evaluate([]model.AlertRule{rule}, EvalContext{Events: events})
	if len(firings) != 1 {
		t.Fatalf("expected 1 firing, got %d", len(firings))
	}
	if len(firings[0].TriggeringEventIDs) != 2 {
		t.Fatalf("expected 2 triggering event ids, got %d", len(firings[0].TriggeringEventIDs))
	}
}

func TestEvaluateEventCountSkipsDisabledRule(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	rule := model.AlertRule{
		RuleID:        "rule-1",
		ConditionType: string(ConditionEventCount),
		ConditionParams: map[string]any{
			"threshold": float64(1),
		},
		Enabled: false,
	}
	events := []model.Event{{EventID: "e1", EventType: model.EventTaskFailed}}

	firings := e.Evaluate([]model.AlertRule{rule}, EvalContext{Events: events})
	if len(firings) != 0 {
		t.Fatalf("expected disabled rule not to fire, got %d firings", len(firings))
	}
}

func TestEvaluateAgentStatusFiresOnTransition(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	rule := model.AlertRule{
		RuleID:        "rule-1",
		ConditionType: string(ConditionAgentStatus),
		ConditionParams: map[string]any{
			"status": string(model.StatusStuck),
		},
		Enabled: true,
	}
	ctx := EvalContext{
		Transitions: []StatusTransition{
			{AgentID: "agent-1", From: model.StatusProcessing, To: model.StatusStuck},
		},
	}

	firings := e.Evaluate([]model.AlertRule{rule}, ctx)
	if len(firings) != 1 {
		t.Fatalf("expected 1 firing for agent_status transition, got %d", len(firings))
	}
}

func TestEvaluateCostThresholdFiresAboveLimit(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	rule := model.AlertRule{
		RuleID:        "rule-1",
		ConditionType: string(ConditionCostThreshold),
		ConditionParams: map[string]any{
			"threshold_usd": float64(1),
		},
		Enabled: true,
	}
	events := []model.Event{
		{EventID: "e1", Payload: model.Payload{Kind: model.PayloadLLMCall, Data: map[string]any{"cost_usd": 2.0}}},
		{EventID: "e2", Payload: model.Payload{Kind: model.PayloadLLMCall, Data: map[string]any{"cost_usd": 0.1}}},
	}

	firings := e.Evaluate([]model.AlertRule{rule}, EvalContext{Events: events})
	if len(firings) != 1 {
		t.Fatalf("expected 1 firing, got %d", len(firings))
	}
	if len(firings[0].TriggeringEventIDs) != 1 || firings[0].TriggeringEventIDs[0] != "e1" {
		t.Fatalf("expected only e1 to trigger, got %v", firings[0].TriggeringEventIDs)
	}
}

func TestEvaluateUnknownConditionTypeDoesNotFire(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	rule := model.AlertRule{RuleID: "rule-1", ConditionType: "not_a_real_condition", Enabled: true}

	firings := e.Evaluate([]model.AlertRule{rule}, EvalContext{})
	if len(firings) != 0 {
		t.Fatalf("expected unknown condition type not to fire, got %d", len(firings))
	}
}
