// Package alerting evaluates ingested event batches against tenant-defined
// alert rules and notifies configured channels when a rule's condition is
// satisfied.
package alerting

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/model"
)

// ConditionType is the kind of threshold an alert rule checks.
type ConditionType string

const (
	// ConditionEventCount fires when a batch contains at least
	// condition_params.threshold events matching event_type/severity.
	ConditionEventCount ConditionType = "event_count"
	// ConditionAgentStatus fires when an agent's derived status transitions
	// to condition_params.status.
	ConditionAgentStatus ConditionType = "agent_status"
	// ConditionCostThreshold fires when a single llm_call's cost reaches or
	// exceeds condition_params.threshold_usd.
	ConditionCostThreshold ConditionType = "cost_threshold"
)

// StatusTransition is an observed agent status change from one ingested
// batch, the trigger input for ConditionAgentStatus rules.
type StatusTransition struct {
	TenantID string
	AgentID  string
	From     model.DerivedStatus
	To       model.DerivedStatus
}

// EvalContext carries everything a batch's rule evaluation needs.
type EvalContext struct {
	TenantID    string
	Events      []model.Event
	Transitions []StatusTransition
}

// Firing is a rule that matched, with the events/transition that triggered it.
type Firing struct {
	Rule              model.AlertRule
	TriggeringEventIDs []string
}

// Engine evaluates a tenant's enabled rules, sorted by rule name for
// deterministic ordering (alert rules have no priority field; all enabled
// rules that match fire independently, unlike routing's first-match-wins).
type Engine struct {
	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewEngine creates an alert rule evaluation engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "alerting").Logger()}
}

// Evaluate checks every enabled rule in rules against ctx and returns the
// ones that fired.
func (e *Engine) Evaluate(rules []model.AlertRule, ctx EvalContext) []Firing {
	sorted := make([]model.AlertRule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var firings []Firing
	for _, rule := range sorted {
		if !rule.Enabled {
			continue
		}
		if ids, matched := e.evaluateRule(rule, ctx); matched {
			firings = append(firings, Firing{Rule: rule, TriggeringEventIDs: ids})
		}
	}
	return firings
}

func (e *Engine) evaluateRule(rule model.AlertRule, ctx EvalContext) ([]string, bool) {
	switch ConditionType(rule.ConditionType) {
	case ConditionEventCount:
		return e.evaluateEventCount(rule, ctx)
	case ConditionAgentStatus:
		return e.evaluateAgentStatus(rule, ctx)
	case ConditionCostThreshold:
		return e.evaluateCostThreshold(rule, ctx)
	default:
		e.logger.Warn().Str("rule_id", rule.RuleID).Str("condition_type", rule.ConditionType).Msg("unknown alert condition type")
		return nil, false
	}
}

func (e *Engine) evaluateEventCount(rule model.AlertRule, ctx EvalContext) ([]string, bool) {
	wantType, _ := rule.ConditionParams["event_type"].(string)
	wantSeverity, _ := rule.ConditionParams["severity"].(string)
	threshold := paramInt(rule.ConditionParams, "threshold", 1)

	var matched []string
	for _, ev := range ctx.Events {
		if wantType != "" && string(ev.EventType) != wantType {
			continue
		}
		if wantSeverity != "" && string(ev.Severity) != wantSeverity {
			continue
		}
		matched = append(matched, ev.EventID)
	}
	return matched, len(matched) >= threshold
}

func (e *Engine) evaluateAgentStatus(rule model.AlertRule, ctx EvalContext) ([]string, bool) {
	wantStatus, _ := rule.ConditionParams["status"].(string)
	for _, t := range ctx.Transitions {
		if string(t.To) == wantStatus && t.From != t.To {
			return nil, true
		}
	}
	return nil, false
}

func (e *Engine) evaluateCostThreshold(rule model.AlertRule, ctx EvalContext) ([]string, bool) {
	thresholdUSD := paramFloat(rule.ConditionParams, "threshold_usd", 0)
	var matched []string
	for _, ev := range ctx.Events {
		if ev.Payload.Kind != model.PayloadLLMCall {
			continue
		}
		cost, ok := ev.Payload.DataFloat("cost_usd")
		if ok && cost >= thresholdUSD {
			matched = append(matched, ev.EventID)
		}
	}
	return matched, len(matched) > 0
}

func paramInt(params map[string]any, key string, fallback int) int {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return fallback
	}
}

func paramFloat(params map[string]any, key string, fallback float64) float64 {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return fallback
	}
}
