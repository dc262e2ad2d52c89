// Package ingest validates, enriches, and persists incoming event batches,
// then drives the ordered state side-effects spec'd for every accepted
// event: agent cache upsert, project linkage, status re-derivation,
// broadcast, and alert evaluation.
package ingest

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/alerting"
	"github.com/hiveboard/hiveboard/broadcast"
	"github.com/hiveboard/hiveboard/derive"
	"github.com/hiveboard/hiveboard/model"
	"github.com/hiveboard/hiveboard/observability"
	"github.com/hiveboard/hiveboard/pricing"
	"github.com/hiveboard/hiveboard/storage"
)

// Pipeline applies a batch end to end. It is synchronous per batch: the
// ordering of side effects (persist → upsert agent → link project →
// re-derive status → broadcast → evaluate alerts) must be preserved, which
// an async worker pool would only complicate for no throughput benefit at
// HiveBoard's scale.
type Pipeline struct {
	store          *storage.Store
	bus            broadcast.Bus
	pricing        *pricing.Catalog
	alerts         *alerting.Engine
	notifier       *alerting.Notifier
	stuckThreshold time.Duration
	logger         zerolog.Logger
	metrics        *observability.Metrics
}

// NewPipeline creates an ingestion pipeline. metrics may be nil in tests
// that don't care about Prometheus counters.
func NewPipeline(store *storage.Store, bus broadcast.Bus, catalog *pricing.Catalog, alerts *alerting.Engine, notifier *alerting.Notifier, stuckThreshold time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:          store,
		bus:            bus,
		pricing:        catalog,
		alerts:         alerts,
		notifier:       notifier,
		stuckThreshold: stuckThreshold,
		metrics:        metrics,
		logger:         logger.With().Str("component", "ingest").Logger(),
	}
}

// Result is the ingest response body (spec §4.1).
type Result struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// Apply validates and ingests a batch for (tenantID, keyType), returning
// the response body; callers choose between HTTP 200/207/400 from its
// Accepted, Rejected and Errors fields.
func (p *Pipeline) Apply(tenantID string, keyType model.KeyType, batch model.IngestBatch) Result {
	var result Result

	if len(batch.Events) == 0 {
		result.Errors = append(result.Errors, "batch must contain at least one event")
		return result
	}
	if len(batch.Events) > model.MaxBatchEvents {
		result.Errors = append(result.Errors, fmt.Sprintf("batch exceeds max size of %d events", model.MaxBatchEvents))
		return result
	}
	if batch.Envelope.AgentID == "" {
		result.Errors = append(result.Errors, "envelope.agent_id is required")
		return result
	}

	validated := make([]model.Event, 0, len(batch.Events))
	for _, raw := range batch.Events {
		event, warnings, err := p.validateAndEnrich(tenantID, keyType, batch.Envelope, raw)
		if err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", raw.EventID, err.Error()))
			continue
		}
		result.Warnings = append(result.Warnings, warnings...)
		validated = append(validated, event)
	}

	sort.SliceStable(validated, func(i, j int) bool { return validated[i].Timestamp.Before(validated[j].Timestamp) })

	inserted, err := p.store.InsertEvents(validated)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("storage error: %s", err.Error()))
		return result
	}
	result.Accepted = len(inserted)
	result.Rejected += len(validated) - len(inserted)

	if p.metrics != nil {
		if result.Accepted > 0 {
			p.metrics.IngestBatches.WithLabelValues(tenantID).Inc()
		}
		if result.Rejected > 0 {
			p.metrics.IngestRejected.WithLabelValues(tenantID).Add(float64(result.Rejected))
		}
		for _, e := range inserted {
			p.metrics.IngestEvents.WithLabelValues(tenantID, string(e.EventType)).Inc()
		}
	}

	if len(inserted) == 0 {
		return result
	}

	if err := p.store.EnsureDefaultProject(tenantID); err != nil {
		p.logger.Error().Err(err).Msg("ensure default project")
	}

	transitions := p.applyStateSideEffects(tenantID, keyType, inserted)

	p.broadcastAccepted(tenantID, inserted, transitions)
	go p.evaluateAlerts(tenantID, inserted, transitions)

	return result
}

// applyStateSideEffects upserts each event's agent cache row, links the
// agent to its project, and re-derives status, returning any status
// transitions observed so alerting and broadcast can react to them.
func (p *Pipeline) applyStateSideEffects(tenantID string, keyType model.KeyType, events []model.Event) []alerting.StatusTransition {
	var transitions []alerting.StatusTransition
	touchedAgents := make(map[string]bool)

	for _, e := range events {
		projectID := model.DefaultProjectID
		if e.ProjectID != nil && *e.ProjectID != "" {
			projectID = *e.ProjectID
		}

		p.store.UpsertAgentFromEvent(e)
		if err := p.store.LinkAgentToProject(tenantID, projectID, e.AgentID); err != nil {
			p.logger.Error().Err(err).Msg("link agent to project")
		}
		touchedAgents[e.AgentID] = true
	}

	now := time.Now().UTC()
	for agentID := range touchedAgents {
		agent, ok := p.store.GetAgent(tenantID, agentID)
		if !ok {
			continue
		}
		agentEvents := p.store.EventsForAgent(tenantID, agentID, keyType)
		newStatus := derive.AgentStatus(derive.AgentStatusInput{
			Events:         agentEvents,
			LastSeen:       agent.LastSeen,
			LastHeartbeat:  agent.LastHeartbeat,
			StuckThreshold: p.stuckThreshold,
			Now:            now,
		})

		previousStatus := p.store.SetAgentStatus(tenantID, agentID, newStatus)

		if newStatus == model.StatusStuck {
			if !agent.StuckFired {
				p.store.MarkStuckFired(tenantID, agentID, now)
				transitions = append(transitions, alerting.StatusTransition{
					TenantID: tenantID, AgentID: agentID, From: previousStatus, To: newStatus,
				})
				p.bus.BroadcastAgentStuck(tenantID, agentID, agent.LastHeartbeat, int(p.stuckThreshold.Seconds()))
			}
		} else {
			if agent.StuckFired {
				p.store.ClearStuckFired(tenantID, agentID)
				p.bus.ClearStuck(tenantID, agentID)
			}
			if previousStatus != newStatus {
				transitions = append(transitions, alerting.StatusTransition{
					TenantID: tenantID, AgentID: agentID, From: previousStatus, To: newStatus,
				})
			}
		}
	}

	if err := p.store.PersistAgents(); err != nil {
		p.logger.Error().Err(err).Msg("persist agents")
	}
	return transitions
}

func (p *Pipeline) broadcastAccepted(tenantID string, events []model.Event, transitions []alerting.StatusTransition) {
	for _, e := range events {
		p.bus.BroadcastEvent(tenantID, e)
	}
	for _, t := range transitions {
		p.bus.BroadcastAgentStatusChanged(tenantID, t.AgentID, string(t.From), string(t.To))
	}
}

func (p *Pipeline) evaluateAlerts(tenantID string, events []model.Event, transitions []alerting.StatusTransition) {
	rules := p.ruleSource(tenantID)
	if len(rules) == 0 {
		return
	}
	firings := p.alerts.Evaluate(rules, alerting.EvalContext{TenantID: tenantID, Events: events, Transitions: transitions})
	for _, f := range firings {
		if _, err := p.storeRecordFiring(tenantID, f); err != nil {
			p.logger.Error().Err(err).Msg("record alert firing")
			continue
		}
		if p.metrics != nil {
			p.metrics.AlertsFired.WithLabelValues(tenantID, string(f.Rule.Severity)).Inc()
		}
		p.notifier.Send(f.Rule.Channels, alerting.Notification{
			RuleID:             f.Rule.RuleID,
			RuleName:           f.Rule.Name,
			TenantID:           tenantID,
			Severity:           string(f.Rule.Severity),
			FiredAt:            time.Now().UTC(),
			TriggeringEventIDs: f.TriggeringEventIDs,
		})
	}
}

func (p *Pipeline) ruleSource(tenantID string) []model.AlertRule {
	return p.store.ListAlertRules(tenantID)
}

func (p *Pipeline) storeRecordFiring(tenantID string, f alerting.Firing) (model.AlertHistory, error) {
	return p.store.RecordAlertFiring(tenantID, f.Rule.RuleID, f.TriggeringEventIDs)
}

// newEventID generates a server-side event id for raw events omitting one.
func newEventID() string { return uuid.NewString() }
