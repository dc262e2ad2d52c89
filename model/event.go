// Package model defines the canonical data shapes ingested, stored, and
// served by HiveBoard: events, payload kinds, tenancy, and the derived-state
// enums computed from the event stream.
package model

import "time"

// EventType is one of the thirteen canonical structural event kinds. The
// richer semantics for a `custom` event live in its payload kind instead.
type EventType string

const (
	EventAgentRegistered  EventType = "agent_registered"
	EventHeartbeat        EventType = "heartbeat"
	EventTaskStarted      EventType = "task_started"
	EventTaskCompleted    EventType = "task_completed"
	EventTaskFailed       EventType = "task_failed"
	EventActionStarted    EventType = "action_started"
	EventActionCompleted  EventType = "action_completed"
	EventActionFailed     EventType = "action_failed"
	EventRetryStarted     EventType = "retry_started"
	EventEscalated        EventType = "escalated"
	EventApprovalRequested EventType = "approval_requested"
	EventApprovalReceived EventType = "approval_received"
	EventCustom           EventType = "custom"
)

// ValidEventTypes enumerates the thirteen canonical kinds for schema checks.
var ValidEventTypes = map[EventType]bool{
	EventAgentRegistered:   true,
	EventHeartbeat:         true,
	EventTaskStarted:       true,
	EventTaskCompleted:     true,
	EventTaskFailed:        true,
	EventActionStarted:     true,
	EventActionCompleted:   true,
	EventActionFailed:      true,
	EventRetryStarted:      true,
	EventEscalated:         true,
	EventApprovalRequested: true,
	EventApprovalReceived:  true,
	EventCustom:            true,
}

// Severity is the event's urgency level.
type Severity string

const (
	SeverityDebug Severity = "debug"
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// ValidSeverities backs the "present but invalid → fall back to default" rule.
var ValidSeverities = map[Severity]bool{
	SeverityDebug: true,
	SeverityInfo:  true,
	SeverityWarn:  true,
	SeverityError: true,
}

// defaultSeverityByEventType implements the abridged table in spec §6.2.
var defaultSeverityByEventType = map[EventType]Severity{
	EventHeartbeat:         SeverityDebug,
	EventTaskFailed:        SeverityError,
	EventActionFailed:      SeverityError,
	EventEscalated:         SeverityError,
	EventApprovalRequested: SeverityWarn,
	EventApprovalReceived:  SeverityWarn,
}

// defaultSeverityByPayloadKind refines severity for custom events.
var defaultSeverityByPayloadKind = map[PayloadKind]Severity{
	PayloadLLMCall: SeverityInfo,
	PayloadIssue:   SeverityWarn,
}

// DefaultSeverity resolves the severity an event should get when absent,
// applying the payload-kind refinement for custom events.
func DefaultSeverity(eventType EventType, kind PayloadKind) Severity {
	if eventType == EventCustom {
		if s, ok := defaultSeverityByPayloadKind[kind]; ok {
			return s
		}
		return SeverityInfo
	}
	if s, ok := defaultSeverityByEventType[eventType]; ok {
		return s
	}
	return SeverityInfo
}

// Status is the terminal outcome recorded on completion-type events.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusFailure    Status = "failure"
	StatusTimeout    Status = "timeout"
	StatusEscalated  Status = "escalated"
	StatusCancelled  Status = "cancelled"
)

// KeyType scopes an API key's traffic visibility.
type KeyType string

const (
	KeyTypeLive KeyType = "live"
	KeyTypeTest KeyType = "test"
	KeyTypeRead KeyType = "read"
)

// Field limits (spec §3.5).
const (
	MaxAgentIDLen  = 256
	MaxTaskIDLen   = 256
	MaxEnvironmentLen = 64
	MaxGroupLen    = 128
	MaxSummaryLen  = 512
	MaxPayloadBytes = 32 * 1024
	MaxBatchEvents = 500
)

// Event is the canonical observable fact HiveBoard stores and derives
// everything else from.
type Event struct {
	EventID         string    `json:"event_id"`
	TenantID        string    `json:"tenant_id"`
	KeyType         KeyType   `json:"key_type"`
	Timestamp       time.Time `json:"timestamp"`
	EventType       EventType `json:"event_type"`
	Severity        Severity  `json:"severity"`
	Status          *Status   `json:"status,omitempty"`
	AgentID         string    `json:"agent_id"`
	ProjectID       *string   `json:"project_id,omitempty"`
	TaskID          *string   `json:"task_id,omitempty"`
	ActionID        *string   `json:"action_id,omitempty"`
	ParentActionID  *string   `json:"parent_action_id,omitempty"`
	Environment     string    `json:"environment,omitempty"`
	Group           string    `json:"group,omitempty"`
	AgentType       string    `json:"agent_type,omitempty"`
	AgentVersion    string    `json:"agent_version,omitempty"`
	Framework       string    `json:"framework,omitempty"`
	SDKVersion      string    `json:"sdk_version,omitempty"`
	DurationMs      *int      `json:"duration_ms,omitempty"`
	Payload         Payload   `json:"payload"`
}

// TimestampZ renders the event timestamp with a Z suffix (spec §4.3.1).
func (e Event) TimestampZ() string {
	return e.Timestamp.UTC().Format(time.RFC3339Nano)
}

// Envelope carries per-batch identity and context inherited onto events
// that don't set their own.
type Envelope struct {
	AgentID      string `json:"agent_id"`
	AgentType    string `json:"agent_type,omitempty"`
	AgentVersion string `json:"agent_version,omitempty"`
	Framework    string `json:"framework,omitempty"`
	SDKVersion   string `json:"sdk_version,omitempty"`
	Environment  string `json:"environment,omitempty"`
	Group        string `json:"group,omitempty"`
}

// IngestBatch is the body of POST /v1/ingest.
type IngestBatch struct {
	Envelope Envelope    `json:"envelope"`
	Events   []RawEvent  `json:"events"`
}

// RawEvent is an event as received on the wire, before validation and
// enrichment have filled in tenant/key_type and inherited envelope fields.
type RawEvent struct {
	EventID        string          `json:"event_id"`
	Timestamp      string          `json:"timestamp"`
	EventType      string          `json:"event_type"`
	Severity       string          `json:"severity,omitempty"`
	Status         string          `json:"status,omitempty"`
	AgentID        string          `json:"agent_id,omitempty"`
	ProjectID      string          `json:"project_id,omitempty"`
	TaskID         string          `json:"task_id,omitempty"`
	ActionID       string          `json:"action_id,omitempty"`
	ParentActionID string          `json:"parent_action_id,omitempty"`
	Environment    string          `json:"environment,omitempty"`
	Group          string          `json:"group,omitempty"`
	AgentType      string          `json:"agent_type,omitempty"`
	AgentVersion   string          `json:"agent_version,omitempty"`
	Framework      string          `json:"framework,omitempty"`
	SDKVersion     string          `json:"sdk_version,omitempty"`
	DurationMs     *int            `json:"duration_ms,omitempty"`
	Payload        RawPayload      `json:"payload"`
}
