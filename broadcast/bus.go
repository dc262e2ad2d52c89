// Package broadcast pushes ingestion events to live subscribers over two
// interchangeable backends: an in-process WebSocket manager, or an HTTP
// bridge to an externally-run WebSocket gateway.
package broadcast

import (
	"time"

	"github.com/hiveboard/hiveboard/model"
)

// Message is the envelope sent to every matching subscriber, identical
// across both backends.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	TypeEventNew            = "event.new"
	TypeAgentStatusChanged  = "agent.status_changed"
	TypeAgentStuck          = "agent.stuck"
	TypeAgentStuckCleared   = "agent.stuck_cleared"
	TypePong                = "pong"
)

// StatusChangedData is the payload of an agent.status_changed message.
type StatusChangedData struct {
	AgentID              string  `json:"agent_id"`
	PreviousStatus       string  `json:"previous_status"`
	NewStatus            string  `json:"new_status"`
	CurrentTaskID        *string `json:"current_task_id,omitempty"`
	CurrentProjectID     *string `json:"current_project_id,omitempty"`
	HeartbeatAgeSeconds  *int    `json:"heartbeat_age_seconds,omitempty"`
}

// StuckData is the payload of an agent.stuck message.
type StuckData struct {
	AgentID               string `json:"agent_id"`
	LastHeartbeat         string `json:"last_heartbeat"`
	StuckThresholdSeconds int    `json:"stuck_threshold_seconds"`
}

// Subscription describes what a connection wants to receive.
type Subscription struct {
	TenantID string            `json:"tenant_id"`
	Channels SubscriptionChans `json:"channels"`
	Filters  SubscriptionFilters `json:"filters"`
}

// SubscriptionChans toggles the two broadcast channels.
type SubscriptionChans struct {
	Events bool `json:"events"`
	Agents bool `json:"agents"`
}

// SubscriptionFilters narrows event.new delivery.
type SubscriptionFilters struct {
	Environment string `json:"environment,omitempty"`
	MinSeverity string `json:"min_severity,omitempty"`
	AgentID     string `json:"agent_id,omitempty"`
	PayloadKind string `json:"payload_kind,omitempty"`
}

// Matches reports whether an event passes this subscription's filters.
func (f SubscriptionFilters) Matches(e model.Event) bool {
	if f.Environment != "" && e.Environment != f.Environment {
		return false
	}
	if f.AgentID != "" && e.AgentID != f.AgentID {
		return false
	}
	if f.PayloadKind != "" && string(e.Payload.Kind) != f.PayloadKind {
		return false
	}
	if f.MinSeverity != "" && severityRank(e.Severity) < severityRank(model.Severity(f.MinSeverity)) {
		return false
	}
	return true
}

var severityOrder = map[model.Severity]int{
	model.SeverityDebug: 0,
	model.SeverityInfo:  1,
	model.SeverityWarn:  2,
	model.SeverityError: 3,
}

func severityRank(s model.Severity) int {
	return severityOrder[s]
}

// Bus is the interface both broadcast backends implement, so ingestion and
// the HTTP layer never need to know which one is active.
type Bus interface {
	BroadcastEvent(tenantID string, e model.Event)
	BroadcastAgentStatusChanged(tenantID, agentID, previousStatus, newStatus string)
	BroadcastAgentStuck(tenantID, agentID string, lastHeartbeat time.Time, stuckThresholdSeconds int)
	ClearStuck(tenantID, agentID string)
}
