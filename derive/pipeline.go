package derive

import "github.com/hiveboard/hiveboard/model"

// PipelineView reconstructs an agent's current queue/todo/issue/scheduled
// state from the newest event of each payload kind.
type PipelineView struct {
	Queue      *PipelineSection `json:"queue,omitempty"`
	Todos      *PipelineSection `json:"todos,omitempty"`
	Issues     *PipelineSection `json:"issues,omitempty"`
	Scheduled  *PipelineSection `json:"scheduled,omitempty"`
}

// PipelineSection is one of the four newest-snapshot sections.
type PipelineSection struct {
	SnapshotAt string         `json:"snapshot_at"`
	Data       map[string]any `json:"data"`
	Summary    string         `json:"summary,omitempty"`
}

// BuildPipelineView scans an agent's events (any order) for the newest
// event of each pipeline-relevant payload kind.
func BuildPipelineView(events []model.Event) PipelineView {
	var queue, todos, issues, scheduled *model.Event

	for i := range events {
		e := &events[i]
		switch e.Payload.Kind {
		case model.PayloadQueueSnapshot:
			queue = newerOf(queue, e)
		case model.PayloadTodo:
			todos = newerOf(todos, e)
		case model.PayloadIssue:
			issues = newerOf(issues, e)
		case model.PayloadScheduled:
			scheduled = newerOf(scheduled, e)
		}
	}

	return PipelineView{
		Queue:     sectionOf(queue),
		Todos:     sectionOf(todos),
		Issues:    sectionOf(issues),
		Scheduled: sectionOf(scheduled),
	}
}

func newerOf(current, candidate *model.Event) *model.Event {
	if current == nil || candidate.Timestamp.After(current.Timestamp) {
		return candidate
	}
	return current
}

func sectionOf(e *model.Event) *PipelineSection {
	if e == nil {
		return nil
	}
	return &PipelineSection{
		SnapshotAt: e.TimestampZ(),
		Data:       e.Payload.Data,
		Summary:    e.Payload.Summary,
	}
}
