package storage

import (
	"time"

	"github.com/hiveboard/hiveboard/derive"
	"github.com/hiveboard/hiveboard/model"
)

// AgentListRow is one row of ListAgentsDerived.
type AgentListRow struct {
	Agent         model.Agent
	DerivedStatus model.DerivedStatus
	Stats1h       derive.AgentStats1h
}

// ListAgentsDerived joins the agent table with its derived status and
// trailing-hour stats (spec's list_agents).
func (s *Store) ListAgentsDerived(tenantID string, keyType model.KeyType, stuckThreshold time.Duration, now time.Time) []AgentListRow {
	agents := s.ListAgentsByTenant(tenantID)
	rows := make([]AgentListRow, 0, len(agents))

	for _, a := range agents {
		events := s.EventsForAgent(tenantID, a.AgentID, keyType)
		status := derive.AgentStatus(derive.AgentStatusInput{
			Events:         events,
			LastSeen:       a.LastSeen,
			LastHeartbeat:  a.LastHeartbeat,
			StuckThreshold: stuckThreshold,
			Now:            now,
		})

		since := now.Add(-1 * time.Hour)
		recent := make([]model.Event, 0)
		for _, e := range events {
			if e.Timestamp.After(since) {
				recent = append(recent, e)
			}
		}

		rows = append(rows, AgentListRow{
			Agent:         a,
			DerivedStatus: status,
			Stats1h:       derive.ComputeAgentStats1h(recent),
		})
	}
	return rows
}

// EventsForAgent returns every event for (tenant_id, agent_id), ascending,
// heartbeats included (derivation needs them).
func (s *Store) EventsForAgent(tenantID, agentID string, keyType model.KeyType) []model.Event {
	events, _ := s.FilterEvents(EventFilter{
		TenantID:          tenantID,
		KeyType:           keyType,
		AgentID:           agentID,
		Ascending:         true,
		ExcludeHeartbeats: false,
		Limit:             1 << 20,
	})
	return events
}

// ListTasks groups a tenant's events (optionally scoped further by f) into
// per-task rows.
func (s *Store) ListTasks(f EventFilter) []derive.TaskRow {
	f.Ascending = true
	if f.Limit <= 0 {
		f.Limit = 1 << 20
	}
	events, _ := s.FilterEvents(f)
	return derive.GroupTasks(events)
}

// TaskTimeline is the full read-time view for a single task.
type TaskTimeline struct {
	Events      []model.Event          `json:"events"`
	ActionTree  []*derive.ActionNode    `json:"action_tree"`
	ErrorChains []derive.ErrorChain     `json:"error_chains"`
	Plan        *derive.Plan            `json:"plan"`
}

// GetTimeline returns the full timeline view for (tenant_id, agent_id, task_id).
func (s *Store) GetTimeline(tenantID, agentID, taskID string, keyType model.KeyType) TaskTimeline {
	events := s.EventsForTask(tenantID, agentID, taskID, keyType)
	return TaskTimeline{
		Events:      events,
		ActionTree:  derive.BuildActionTree(events),
		ErrorChains: derive.BuildErrorChains(events),
		Plan:        derive.BuildPlanOverlay(events),
	}
}

// GetPipeline returns the reconstructed pipeline view for an agent.
func (s *Store) GetPipeline(tenantID, agentID string, keyType model.KeyType) derive.PipelineView {
	events := s.EventsForAgent(tenantID, agentID, keyType)
	return derive.BuildPipelineView(events)
}

// CostBreakdown is one entry of a get_cost_summary breakdown — a key (agent_id
// or model name) with its call count and cost, rather than cost alone.
type CostBreakdown struct {
	Key           string  `json:"key"`
	CallCount     int     `json:"call_count"`
	Cost          float64 `json:"cost"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// CostSummary is the total-and-breakdown response for get_cost_summary.
type CostSummary struct {
	TotalCost      float64         `json:"total_cost"`
	EstimatedCost  float64         `json:"estimated_cost"`
	TotalTokensIn  int             `json:"total_tokens_in"`
	TotalTokensOut int             `json:"total_tokens_out"`
	TotalCalls     int             `json:"total_calls"`
	ByAgent        []CostBreakdown `json:"by_agent"`
	ByModel        []CostBreakdown `json:"by_model"`
}

// GetCostSummary aggregates llm_call events in a window.
func (s *Store) GetCostSummary(tenantID string, keyType model.KeyType, since, until time.Time) CostSummary {
	events, _ := s.FilterEvents(EventFilter{
		TenantID: tenantID,
		KeyType:  keyType,
		Since:    &since,
		Until:    &until,
		Limit:    1 << 20,
	})

	byAgent := make(map[string]*CostBreakdown)
	byModel := make(map[string]*CostBreakdown)
	var agentOrder, modelOrder []string

	var summary CostSummary
	for _, e := range events {
		if e.Payload.Kind != model.PayloadLLMCall {
			continue
		}
		cost := derive.CostOf(e)
		estimated := derive.CostEstimated(e)

		summary.TotalCost += cost
		summary.TotalCalls++
		if estimated {
			summary.EstimatedCost += cost
		}
		if in, ok := e.Payload.DataInt("tokens_in"); ok {
			summary.TotalTokensIn += in
		}
		if out, ok := e.Payload.DataInt("tokens_out"); ok {
			summary.TotalTokensOut += out
		}

		agent, ok := byAgent[e.AgentID]
		if !ok {
			agent = &CostBreakdown{Key: e.AgentID}
			byAgent[e.AgentID] = agent
			agentOrder = append(agentOrder, e.AgentID)
		}
		agent.CallCount++
		agent.Cost += cost
		if estimated {
			agent.EstimatedCost += cost
		}

		if modelName, ok := e.Payload.DataString("model"); ok {
			m, ok := byModel[modelName]
			if !ok {
				m = &CostBreakdown{Key: modelName}
				byModel[modelName] = m
				modelOrder = append(modelOrder, modelName)
			}
			m.CallCount++
			m.Cost += cost
			if estimated {
				m.EstimatedCost += cost
			}
		}
	}

	summary.ByAgent = make([]CostBreakdown, 0, len(agentOrder))
	for _, k := range agentOrder {
		summary.ByAgent = append(summary.ByAgent, *byAgent[k])
	}
	summary.ByModel = make([]CostBreakdown, 0, len(modelOrder))
	for _, k := range modelOrder {
		summary.ByModel = append(summary.ByModel, *byModel[k])
	}
	return summary
}

// CostCallRow is one row of get_cost_calls.
type CostCallRow struct {
	EventID         string  `json:"event_id"`
	AgentID         string  `json:"agent_id"`
	Name            string  `json:"name,omitempty"`
	Model           string  `json:"model,omitempty"`
	TokensIn        int     `json:"tokens_in"`
	TokensOut       int     `json:"tokens_out"`
	Cost            float64 `json:"cost"`
	Estimated       bool    `json:"estimated"`
	DurationMs      *int    `json:"duration_ms,omitempty"`
	PromptPreview   string  `json:"prompt_preview,omitempty"`
	ResponsePreview string  `json:"response_preview,omitempty"`
	Timestamp       string  `json:"timestamp"`
}

const previewLen = 200

// GetCostCalls returns individual llm_call events matching f.
func (s *Store) GetCostCalls(f EventFilter) ([]CostCallRow, string) {
	f.PayloadKind = model.PayloadLLMCall
	events, cursor := s.FilterEvents(f)

	rows := make([]CostCallRow, 0, len(events))
	for _, e := range events {
		row := CostCallRow{
			EventID:    e.EventID,
			AgentID:    e.AgentID,
			Cost:       derive.CostOf(e),
			Estimated:  derive.CostEstimated(e),
			DurationMs: e.DurationMs,
			Timestamp:  e.TimestampZ(),
		}
		row.Name, _ = e.Payload.DataString("name")
		row.Model, _ = e.Payload.DataString("model")
		row.TokensIn, _ = e.Payload.DataInt("tokens_in")
		row.TokensOut, _ = e.Payload.DataInt("tokens_out")
		if p, ok := e.Payload.DataString("prompt"); ok {
			row.PromptPreview = truncate(p, previewLen)
		}
		if r, ok := e.Payload.DataString("response"); ok {
			row.ResponsePreview = truncate(r, previewLen)
		}
		rows = append(rows, row)
	}
	return rows, cursor
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CostBucket is one bucket of get_cost_timeseries.
type CostBucket struct {
	Timestamp     string  `json:"timestamp"`
	Cost          float64 `json:"cost"`
	EstimatedCost float64 `json:"estimated_cost"`
	CallCount     int     `json:"call_count"`
	TokensIn      int     `json:"tokens_in"`
	TokensOut     int     `json:"tokens_out"`
	Model         string  `json:"model,omitempty"`
}

// GetCostTimeseries buckets llm_call events into fixed-width intervals.
func (s *Store) GetCostTimeseries(tenantID string, keyType model.KeyType, since, until time.Time, interval time.Duration, splitByModel bool) []CostBucket {
	events, _ := s.FilterEvents(EventFilter{
		TenantID:    tenantID,
		KeyType:     keyType,
		PayloadKind: model.PayloadLLMCall,
		Since:       &since,
		Until:       &until,
		Ascending:   true,
		Limit:       1 << 20,
	})

	type bucketKey struct {
		bucket time.Time
		model  string
	}
	buckets := make(map[bucketKey]*CostBucket)
	var order []bucketKey

	for _, e := range events {
		bucketStart := since.Add(e.Timestamp.Sub(since).Truncate(interval))
		modelName := ""
		if splitByModel {
			modelName, _ = e.Payload.DataString("model")
		}
		key := bucketKey{bucket: bucketStart, model: modelName}
		b, ok := buckets[key]
		if !ok {
			b = &CostBucket{Timestamp: bucketStart.UTC().Format(time.RFC3339), Model: modelName}
			buckets[key] = b
			order = append(order, key)
		}
		cost := derive.CostOf(e)
		b.Cost += cost
		if derive.CostEstimated(e) {
			b.EstimatedCost += cost
		}
		b.CallCount++
		if in, ok := e.Payload.DataInt("tokens_in"); ok {
			b.TokensIn += in
		}
		if out, ok := e.Payload.DataInt("tokens_out"); ok {
			b.TokensOut += out
		}
	}

	out := make([]CostBucket, 0, len(order))
	for _, key := range order {
		out = append(out, *buckets[key])
	}
	return out
}
