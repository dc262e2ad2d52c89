package model

import "encoding/json"

// PayloadKind discriminates the structured data carried on an event's
// payload. event_type stays structural; payload.kind carries the rich
// semantics (spec §3.3).
type PayloadKind string

const (
	PayloadLLMCall       PayloadKind = "llm_call"
	PayloadPlanCreated   PayloadKind = "plan_created"
	PayloadPlanStep      PayloadKind = "plan_step"
	PayloadQueueSnapshot PayloadKind = "queue_snapshot"
	PayloadTodo          PayloadKind = "todo"
	PayloadScheduled     PayloadKind = "scheduled"
	PayloadIssue         PayloadKind = "issue"
	PayloadUnknown       PayloadKind = "unknown"
)

// knownPayloadKinds lists the seven conventional kinds; anything else falls
// back to PayloadUnknown without rejecting the event.
var knownPayloadKinds = map[PayloadKind]bool{
	PayloadLLMCall:       true,
	PayloadPlanCreated:   true,
	PayloadPlanStep:      true,
	PayloadQueueSnapshot: true,
	PayloadTodo:          true,
	PayloadScheduled:     true,
	PayloadIssue:         true,
}

// requiredDataFields lists the fields a payload kind's data should carry;
// a missing field is an advisory warning, never a rejection (spec §4.1).
var requiredDataFields = map[PayloadKind][]string{
	PayloadLLMCall:       {"model", "tokens_in", "tokens_out"},
	PayloadPlanCreated:   {"goal", "steps"},
	PayloadPlanStep:      {"step_index", "action"},
	PayloadQueueSnapshot: {"depth"},
	PayloadTodo:          {"todo_id", "action"},
	PayloadScheduled:     {"items"},
	PayloadIssue:         {"severity", "action", "issue_id"},
}

// MissingDataFields returns the required fields for kind that data lacks.
func MissingDataFields(kind PayloadKind, data map[string]any) []string {
	fields, ok := requiredDataFields[kind]
	if !ok {
		return nil
	}
	var missing []string
	for _, f := range fields {
		if _, present := data[f]; !present {
			missing = append(missing, f)
		}
	}
	return missing
}

// NormalizeKind maps an arbitrary wire kind string to a known PayloadKind,
// falling back to PayloadUnknown for forward compatibility.
func NormalizeKind(raw string) PayloadKind {
	k := PayloadKind(raw)
	if knownPayloadKinds[k] {
		return k
	}
	return PayloadUnknown
}

// Payload is the validated, kind-tagged union stored on an Event.
type Payload struct {
	Kind    PayloadKind    `json:"kind"`
	Summary string         `json:"summary,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Tags    []string       `json:"tags,omitempty"`
}

// RawPayload is the payload as received on the wire, before kind
// normalization and size checks.
type RawPayload struct {
	Kind    string          `json:"kind"`
	Summary string          `json:"summary,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Tags    []string        `json:"tags,omitempty"`
}

// DataString reads a string field from payload data, returning ok=false if
// absent or not a string.
func (p Payload) DataString(key string) (string, bool) {
	v, ok := p.Data[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// DataFloat reads a numeric field from payload data (JSON numbers decode
// as float64).
func (p Payload) DataFloat(key string) (float64, bool) {
	v, ok := p.Data[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// DataInt reads a numeric field from payload data, truncating to int.
func (p Payload) DataInt(key string) (int, bool) {
	f, ok := p.DataFloat(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}
