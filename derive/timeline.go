package derive

import (
	"sort"

	"github.com/hiveboard/hiveboard/model"
)

// ActionNode is one node of a task's action tree.
type ActionNode struct {
	ActionID   string        `json:"action_id"`
	Name       string        `json:"name"`
	Status     string        `json:"status"` // completed | failed | running
	DurationMs *int          `json:"duration_ms,omitempty"`
	Events     []model.Event `json:"events"`
	Children   []*ActionNode `json:"children"`
}

// BuildActionTree constructs the action tree for a task's events (ascending).
// Nodes with a non-null parent_action_id are attached to their parent;
// only roots are returned.
func BuildActionTree(events []model.Event) []*ActionNode {
	nodes := make(map[string]*ActionNode)
	order := make([]string, 0)

	ensure := func(actionID string) *ActionNode {
		if n, ok := nodes[actionID]; ok {
			return n
		}
		n := &ActionNode{ActionID: actionID, Status: "running", Children: []*ActionNode{}}
		nodes[actionID] = n
		order = append(order, actionID)
		return n
	}

	parentOf := make(map[string]string)

	for _, e := range events {
		if e.ActionID == nil {
			continue
		}
		n := ensure(*e.ActionID)
		n.Events = append(n.Events, e)

		if e.ParentActionID != nil && *e.ParentActionID != "" {
			parentOf[*e.ActionID] = *e.ParentActionID
		}

		switch e.EventType {
		case model.EventActionStarted:
			if name, ok := e.Payload.DataString("action_name"); ok {
				n.Name = name
			} else if e.Payload.Summary != "" {
				n.Name = e.Payload.Summary
			}
		case model.EventActionCompleted:
			n.Status = "completed"
			n.DurationMs = e.DurationMs
		case model.EventActionFailed:
			n.Status = "failed"
			n.DurationMs = e.DurationMs
		}
	}

	roots := make([]*ActionNode, 0)
	for _, id := range order {
		n := nodes[id]
		if parentID, hasParent := parentOf[id]; hasParent {
			if parent, ok := nodes[parentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// ErrorChain groups every *_failed event sharing a task_id, consecutive or
// not.
type ErrorChain struct {
	TaskID string        `json:"task_id"`
	Events []model.Event `json:"events"`
}

// BuildErrorChains groups every *_failed event in a task's event list into
// a single chain keyed on task_id. Upstream causal linkage in the payload
// is not modeled; grouping by shared task_id is the coarser, always-
// available signal every failed event already carries.
func BuildErrorChains(events []model.Event) []ErrorChain {
	byTask := make(map[string][]model.Event)
	var taskOrder []string

	for _, e := range events {
		if e.TaskID == nil {
			continue
		}
		if e.EventType != model.EventTaskFailed && e.EventType != model.EventActionFailed {
			continue
		}
		if _, seen := byTask[*e.TaskID]; !seen {
			taskOrder = append(taskOrder, *e.TaskID)
		}
		byTask[*e.TaskID] = append(byTask[*e.TaskID], e)
	}

	chains := make([]ErrorChain, 0, len(taskOrder))
	for _, taskID := range taskOrder {
		chains = append(chains, ErrorChain{TaskID: taskID, Events: byTask[taskID]})
	}
	return chains
}

// PlanStep is one step of a plan overlay.
type PlanStep struct {
	Description string  `json:"description"`
	StartedAt   *string `json:"started_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
	Action      string  `json:"action,omitempty"`
}

// PlanProgress summarizes step completion.
type PlanProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Plan is the overlay emitted alongside a task's timeline.
type Plan struct {
	Goal     string       `json:"goal"`
	Steps    []PlanStep   `json:"steps"`
	Progress PlanProgress `json:"progress"`
}

// BuildPlanOverlay scans a task's events for plan_created (highest revision
// wins) and plan_step payloads, returning nil if no plan events exist.
func BuildPlanOverlay(events []model.Event) *Plan {
	var latestRevision = -1
	var goal string
	var totalSteps int
	haveCreated := false

	for _, e := range events {
		if e.Payload.Kind != model.PayloadPlanCreated {
			continue
		}
		rev := 0
		if r, ok := e.Payload.DataInt("revision"); ok {
			rev = r
		}
		if rev >= latestRevision {
			latestRevision = rev
			haveCreated = true
			if g, ok := e.Payload.DataString("goal"); ok {
				goal = g
			}
			if steps, ok := e.Payload.Data["steps"].([]any); ok {
				totalSteps = len(steps)
			}
		}
	}

	if !haveCreated {
		return nil
	}

	steps := make([]PlanStep, 0)
	completed := 0
	for _, e := range events {
		if e.Payload.Kind != model.PayloadPlanStep {
			continue
		}
		step := PlanStep{}
		if desc, ok := e.Payload.DataString("description"); ok {
			step.Description = desc
		} else {
			step.Description = e.Payload.Summary
		}
		if action, ok := e.Payload.DataString("action"); ok {
			step.Action = action
		}
		ts := e.TimestampZ()
		if step.Action == "completed" {
			step.CompletedAt = &ts
			completed++
		} else {
			step.StartedAt = &ts
		}
		steps = append(steps, step)
	}

	total := totalSteps
	if total == 0 {
		total = len(steps)
	}

	return &Plan{
		Goal:     goal,
		Steps:    steps,
		Progress: PlanProgress{Completed: completed, Total: total},
	}
}

// SortAscending sorts events by timestamp, stable so same-timestamp events
// keep their insertion order.
func SortAscending(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })
}
