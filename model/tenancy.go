package model

import "time"

// Plan is a tenant's billing/retention tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// RetentionDays maps a plan to its event retention window (spec §4.4).
var RetentionDays = map[Plan]int{
	PlanFree:       7,
	PlanPro:        30,
	PlanEnterprise: 90,
}

// Tenant is the billing/data-isolation unit.
type Tenant struct {
	TenantID  string    `json:"tenant_id"`
	Plan      Plan      `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey is a bearer credential scoped to a tenant. The raw key is shown
// to the caller exactly once; only its hash is persisted.
type APIKey struct {
	KeyID     string    `json:"key_id"`
	TenantID  string    `json:"tenant_id"`
	KeyType   KeyType   `json:"key_type"`
	KeyHash   string    `json:"key_hash"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// ProjectStatus is a project's open/archived lifecycle state.
type ProjectStatus string

const (
	ProjectOpen     ProjectStatus = "open"
	ProjectArchived ProjectStatus = "archived"
)

// DefaultProjectID is the implicit project every tenant has; it cannot be
// deleted.
const DefaultProjectID = "default"

// Project is a named namespace within a tenant.
type Project struct {
	ProjectID string        `json:"project_id"`
	TenantID  string        `json:"tenant_id"`
	Name      string        `json:"name"`
	Slug      string        `json:"slug"`
	Status    ProjectStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DerivedStatus is one of the six agent states computed at query time, plus
// StatusCompleted, which only ever appears as a task's own derived_status
// (list_tasks) — an agent is "idle", but a finished task is "completed".
type DerivedStatus string

const (
	StatusOffline         DerivedStatus = "offline"
	StatusStuck           DerivedStatus = "stuck"
	StatusWaitingApproval DerivedStatus = "waiting_approval"
	StatusErrorState      DerivedStatus = "error"
	StatusProcessing      DerivedStatus = "processing"
	StatusIdle            DerivedStatus = "idle"
	StatusCompleted       DerivedStatus = "completed"
)

// Agent is the (tenant_id, agent_id) accelerator cache row. It is never a
// source of truth — every field here is reconstructible from the event
// stream; this row only makes queries cheap.
type Agent struct {
	TenantID       string    `json:"tenant_id"`
	AgentID        string    `json:"agent_id"`
	AgentType      string    `json:"agent_type,omitempty"`
	AgentVersion   string    `json:"agent_version,omitempty"`
	Framework      string    `json:"framework,omitempty"`
	Environment    string    `json:"environment,omitempty"`
	Group          string    `json:"group,omitempty"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	LastHeartbeat  time.Time `json:"last_heartbeat"`
	LastEventType  EventType `json:"last_event_type,omitempty"`
	LastTaskID     *string   `json:"last_task_id,omitempty"`
	LastProjectID  *string   `json:"last_project_id,omitempty"`
	PreviousStatus DerivedStatus `json:"previous_status,omitempty"`

	// StuckFired/StuckSince track the "fires exactly once per contiguous
	// stuck period" rule (spec §4.3.2). Not exposed over the API.
	StuckFired bool      `json:"-"`
	StuckSince time.Time `json:"-"`
}

// ProjectAgent is a many-to-many (tenant_id, project_id, agent_id) junction
// row, auto-populated on ingestion.
type ProjectAgent struct {
	TenantID  string `json:"tenant_id"`
	ProjectID string `json:"project_id"`
	AgentID   string `json:"agent_id"`
}

// AlertRule evaluates ingested batches for a condition and fires to
// channels when matched.
type AlertRule struct {
	RuleID          string            `json:"rule_id"`
	TenantID        string            `json:"tenant_id"`
	Name            string            `json:"name"`
	ConditionType   string            `json:"condition_type"`
	ConditionParams map[string]any    `json:"condition_params"`
	Severity        Severity          `json:"severity"`
	Channels        []string          `json:"channels"`
	Enabled         bool              `json:"enabled"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// AlertHistory is one firing of an AlertRule.
type AlertHistory struct {
	EventID            string     `json:"event_id"`
	RuleID             string     `json:"rule_id"`
	TenantID           string     `json:"tenant_id"`
	FiredAt            time.Time  `json:"fired_at"`
	TriggeringEventIDs []string   `json:"triggering_event_ids"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
}
