package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hiveboard/hiveboard/model"
)

// validateAndEnrich turns a RawEvent into a stored Event: it inherits
// envelope fields, normalizes payload kind, checks field-length limits,
// defaults severity, computes llm_call cost, and parses the timestamp.
// Validation is fail-open on advisory issues (returned as warnings) and
// fail-closed on the structural problems §4.1 calls out as rejections,
// which now includes an oversize payload (§3.5) — partial bad payloads
// are warned about and dropped, but a payload past the size ceiling
// rejects the whole event rather than silently storing it without data.
func (p *Pipeline) validateAndEnrich(tenantID string, keyType model.KeyType, env model.Envelope, raw model.RawEvent) (model.Event, []string, error) {
	var warnings []string

	if raw.EventType == "" {
		return model.Event{}, nil, fmt.Errorf("event_type is required")
	}
	eventType := model.EventType(raw.EventType)
	if !model.ValidEventTypes[eventType] {
		return model.Event{}, nil, fmt.Errorf("unknown event_type %q", raw.EventType)
	}

	eventID := raw.EventID
	if eventID == "" {
		eventID = newEventID()
	}

	ts, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return model.Event{}, nil, fmt.Errorf("invalid timestamp: %w", err)
	}

	agentID := raw.AgentID
	if agentID == "" {
		agentID = env.AgentID
	}
	if agentID == "" {
		return model.Event{}, nil, fmt.Errorf("agent_id is required")
	}
	if len(agentID) > model.MaxAgentIDLen {
		return model.Event{}, nil, fmt.Errorf("agent_id exceeds %d characters", model.MaxAgentIDLen)
	}

	if raw.TaskID != "" && len(raw.TaskID) > model.MaxTaskIDLen {
		return model.Event{}, nil, fmt.Errorf("task_id exceeds %d characters", model.MaxTaskIDLen)
	}

	environment := firstNonEmpty(raw.Environment, env.Environment)
	if len(environment) > model.MaxEnvironmentLen {
		warnings = append(warnings, fmt.Sprintf("%s: environment truncated to %d characters", eventID, model.MaxEnvironmentLen))
		environment = environment[:model.MaxEnvironmentLen]
	}

	group := firstNonEmpty(raw.Group, env.Group)
	if len(group) > model.MaxGroupLen {
		warnings = append(warnings, fmt.Sprintf("%s: group truncated to %d characters", eventID, model.MaxGroupLen))
		group = group[:model.MaxGroupLen]
	}

	payload, payloadWarnings, err := p.normalizePayload(eventID, raw)
	if err != nil {
		return model.Event{}, nil, err
	}
	warnings = append(warnings, payloadWarnings...)

	severity := model.Severity(raw.Severity)
	if raw.Severity == "" || !model.ValidSeverities[severity] {
		if raw.Severity != "" {
			warnings = append(warnings, fmt.Sprintf("%s: invalid severity %q, defaulted", eventID, raw.Severity))
		}
		severity = model.DefaultSeverity(eventType, payload.Kind)
	}

	event := model.Event{
		EventID:     eventID,
		TenantID:    tenantID,
		KeyType:     keyType,
		Timestamp:   ts,
		EventType:   eventType,
		Severity:    severity,
		AgentID:     agentID,
		Environment: environment,
		Group:       group,
		AgentType:   firstNonEmpty(raw.AgentType, env.AgentType),
		AgentVersion: firstNonEmpty(raw.AgentVersion, env.AgentVersion),
		Framework:   firstNonEmpty(raw.Framework, env.Framework),
		SDKVersion:  firstNonEmpty(raw.SDKVersion, env.SDKVersion),
		DurationMs:  raw.DurationMs,
		Payload:     payload,
	}

	if raw.Status != "" {
		status := model.Status(raw.Status)
		event.Status = &status
	}
	if raw.ProjectID != "" {
		event.ProjectID = &raw.ProjectID
	}
	if raw.TaskID != "" {
		event.TaskID = &raw.TaskID
	}
	if raw.ActionID != "" {
		event.ActionID = &raw.ActionID
	}
	if raw.ParentActionID != "" {
		event.ParentActionID = &raw.ParentActionID
	}

	return event, warnings, nil
}

func (p *Pipeline) normalizePayload(eventID string, raw model.RawEvent) (model.Payload, []string, error) {
	var warnings []string

	if len(raw.Payload.Data) > model.MaxPayloadBytes {
		return model.Payload{}, nil, fmt.Errorf("%s: payload data exceeds %d bytes", eventID, model.MaxPayloadBytes)
	}

	kind := model.NormalizeKind(raw.Payload.Kind)
	if raw.Payload.Kind != "" && kind == model.PayloadUnknown && raw.Payload.Kind != string(model.PayloadUnknown) {
		warnings = append(warnings, fmt.Sprintf("%s: unrecognized payload kind %q, stored as unknown", eventID, raw.Payload.Kind))
	}

	var data map[string]any
	if len(raw.Payload.Data) > 0 {
		if err := json.Unmarshal(raw.Payload.Data, &data); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: payload data is not valid JSON, dropped", eventID))
		}
	}

	if missing := model.MissingDataFields(kind, data); len(missing) > 0 {
		warnings = append(warnings, fmt.Sprintf("%s: payload missing recommended fields %v for kind %q", eventID, missing, kind))
	}

	summary := raw.Payload.Summary
	if len(summary) > model.MaxSummaryLen {
		warnings = append(warnings, fmt.Sprintf("%s: summary truncated to %d characters", eventID, model.MaxSummaryLen))
		summary = summary[:model.MaxSummaryLen]
	}

	payload := model.Payload{Kind: kind, Summary: summary, Data: data, Tags: raw.Payload.Tags}

	if kind == model.PayloadLLMCall && data != nil {
		if clientCost, ok := payload.DataFloat("cost"); ok {
			payload.Data["cost_usd"] = clientCost
			payload.Data["estimated"] = false
		} else if p.pricing != nil {
			modelName, _ := payload.DataString("model")
			tokensIn, _ := payload.DataInt("tokens_in")
			tokensOut, _ := payload.DataInt("tokens_out")
			if modelName != "" {
				cost := p.pricing.CalculateCost(modelName, tokensIn, tokensOut)
				payload.Data["cost_usd"] = cost
				payload.Data["estimated"] = true
			}
		}
	}

	return payload, warnings, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("timestamp is required")
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
	}
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
