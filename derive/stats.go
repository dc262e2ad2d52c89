package derive

import (
	"github.com/hiveboard/hiveboard/model"
)

// AgentStats1h is the rolling hour of activity backing list_agents.
type AgentStats1h struct {
	TaskCompleted int     `json:"task_completed"`
	TaskFailed    int     `json:"task_failed"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	TotalCost     float64 `json:"total_cost"`
	Throughput    float64 `json:"throughput"` // tasks completed per hour
}

// CostOf reads an llm_call event's cost: the client-supplied value if the
// payload carried one, otherwise ingestion's pricing-table estimate. Both
// land in payload data under "cost_usd"; ingestion decides which to write.
func CostOf(e model.Event) float64 {
	if e.Payload.Kind != model.PayloadLLMCall {
		return 0
	}
	v, _ := e.Payload.DataFloat("cost_usd")
	return v
}

// CostEstimated reports whether an llm_call event's cost was estimated from
// the pricing table rather than supplied by the client.
func CostEstimated(e model.Event) bool {
	if e.Payload.Kind != model.PayloadLLMCall {
		return false
	}
	estimated, _ := e.Payload.Data["estimated"].(bool)
	return estimated
}

// ComputeAgentStats1h summarizes events already filtered to the trailing
// hour for one agent.
func ComputeAgentStats1h(eventsLastHour []model.Event) AgentStats1h {
	var stats AgentStats1h
	var durationSum float64
	var durationCount int

	for _, e := range eventsLastHour {
		switch e.EventType {
		case model.EventTaskCompleted:
			stats.TaskCompleted++
			if e.DurationMs != nil {
				durationSum += float64(*e.DurationMs)
				durationCount++
			}
		case model.EventTaskFailed:
			stats.TaskFailed++
		}
		stats.TotalCost += CostOf(e)
	}

	total := stats.TaskCompleted + stats.TaskFailed
	if total > 0 {
		stats.SuccessRate = float64(stats.TaskCompleted) / float64(total)
	}
	if durationCount > 0 {
		stats.AvgDurationMs = durationSum / float64(durationCount)
	}
	stats.Throughput = float64(stats.TaskCompleted)
	return stats
}

// TaskRow is one row of list_tasks: a (agent_id, task_id) group summary.
type TaskRow struct {
	TaskID        string              `json:"task_id"`
	AgentID       string              `json:"agent_id"`
	ProjectID     *string             `json:"project_id,omitempty"`
	StartedAt     string              `json:"started_at"`
	DerivedStatus string              `json:"derived_status"`
	DurationMs    *int                `json:"duration_ms,omitempty"`
	TotalCost     float64             `json:"total_cost"`
	LLMCallCount  int                 `json:"llm_call_count"`
	TotalTokensIn int                 `json:"total_tokens_in"`
	TotalTokensOut int                `json:"total_tokens_out"`
}

// GroupTasks groups already-filtered events by (agent_id, task_id) and
// summarizes each group into a TaskRow. events need not be sorted; each
// group is sorted internally.
func GroupTasks(events []model.Event) []TaskRow {
	type group struct {
		agentID   string
		taskID    string
		events    []model.Event
	}
	groups := make(map[string]*group)
	var order []string

	for _, e := range events {
		if e.TaskID == nil {
			continue
		}
		key := e.AgentID + "\x00" + *e.TaskID
		g, ok := groups[key]
		if !ok {
			g = &group{agentID: e.AgentID, taskID: *e.TaskID}
			groups[key] = g
			order = append(order, key)
		}
		g.events = append(g.events, e)
	}

	rows := make([]TaskRow, 0, len(order))
	for _, key := range order {
		g := groups[key]
		SortAscending(g.events)

		row := TaskRow{TaskID: g.taskID, AgentID: g.agentID}
		row.StartedAt = g.events[0].TimestampZ()
		row.ProjectID = g.events[0].ProjectID

		row.DerivedStatus = string(taskDerivedStatus(g.events))

		for _, e := range g.events {
			if (e.EventType == model.EventTaskCompleted || e.EventType == model.EventTaskFailed) && e.DurationMs != nil {
				row.DurationMs = e.DurationMs
			}
			if e.Payload.Kind == model.PayloadLLMCall {
				row.LLMCallCount++
				row.TotalCost += CostOf(e)
				if in, ok := e.Payload.DataInt("tokens_in"); ok {
					row.TotalTokensIn += in
				}
				if out, ok := e.Payload.DataInt("tokens_out"); ok {
					row.TotalTokensOut += out
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// taskDerivedStatus classifies a single task's own event slice (as opposed
// to an agent's), using the terminal event if one exists.
func taskDerivedStatus(events []model.Event) model.DerivedStatus {
	last := events[len(events)-1]
	switch last.EventType {
	case model.EventTaskCompleted:
		return model.StatusCompleted
	case model.EventTaskFailed:
		return model.StatusErrorState
	}
	if t, ok := lastMatchingType(events, func(e model.Event) bool {
		return e.EventType == model.EventApprovalRequested || e.EventType == model.EventApprovalReceived
	}); ok && t == model.EventApprovalRequested {
		return model.StatusWaitingApproval
	}
	return model.StatusProcessing
}
