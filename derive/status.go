// Package derive computes HiveBoard's read-time views — agent status,
// task timelines, action trees, plan overlays, and error chains — purely
// from an event slice. Nothing here touches storage: every function takes
// an event slice and returns a value (most expect it sorted ascending;
// BuildPipelineView and GroupTasks accept any order), so the storage layer
// can compose these over whatever slice it has already filtered.
package derive

import (
	"time"

	"github.com/hiveboard/hiveboard/model"
)

const offlineThreshold = 24 * time.Hour

// activeWorkEventTypes are the event types that imply an agent is mid-task,
// used by the stuck check (spec §4.3.2).
var activeWorkEventTypes = map[model.EventType]bool{
	model.EventTaskStarted:   true,
	model.EventActionStarted: true,
}

// AgentStatusInput carries the minimal context needed to derive a status,
// pulled from the agent accelerator row plus the agent's recent events.
type AgentStatusInput struct {
	Events         []model.Event // ascending, this agent only
	LastSeen       time.Time
	LastHeartbeat  time.Time
	StuckThreshold time.Duration
	Now            time.Time
}

// AgentStatus derives one of the six states in priority order: offline,
// stuck, waiting_approval, error, processing, idle.
func AgentStatus(in AgentStatusInput) model.DerivedStatus {
	if in.LastSeen.IsZero() || in.Now.Sub(in.LastSeen) > offlineThreshold {
		return model.StatusOffline
	}

	lastType, hasLast := lastEventType(in.Events)

	if hasLast {
		threshold := in.StuckThreshold
		if threshold <= 0 {
			threshold = 5 * time.Minute
		}
		if in.Now.Sub(in.LastHeartbeat) > threshold && activeWorkEventTypes[lastType] {
			return model.StatusStuck
		}
	}

	if t, ok := lastMatchingType(in.Events, func(e model.Event) bool {
		return e.EventType == model.EventApprovalRequested || e.EventType == model.EventApprovalReceived
	}); ok && t == model.EventApprovalRequested {
		return model.StatusWaitingApproval
	}

	if t, ok := lastMatchingType(in.Events, func(e model.Event) bool {
		return e.EventType == model.EventTaskStarted || e.EventType == model.EventTaskFailed
	}); ok && t == model.EventTaskFailed {
		return model.StatusErrorState
	}

	// Processing only holds while the most recent signal is itself active
	// work; once a heartbeat lands after that work, recovery is reported as
	// idle rather than a stale "still processing" guess.
	if hasLast && activeWorkEventTypes[lastType] && isProcessing(in.Events) {
		return model.StatusProcessing
	}

	return model.StatusIdle
}

func lastEventType(events []model.Event) (model.EventType, bool) {
	if len(events) == 0 {
		return "", false
	}
	return events[len(events)-1].EventType, true
}

func lastMatchingType(events []model.Event, match func(model.Event) bool) (model.EventType, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if match(events[i]) {
			return events[i].EventType, true
		}
	}
	return "", false
}

// isProcessing reports whether the most recent task_started event's task_id
// has no later task_completed/task_failed for the same task.
func isProcessing(events []model.Event) bool {
	var lastStartIdx = -1
	var lastStartTask string
	for i, e := range events {
		if e.EventType == model.EventTaskStarted && e.TaskID != nil {
			lastStartIdx = i
			lastStartTask = *e.TaskID
		}
	}
	if lastStartIdx == -1 {
		return false
	}
	for i := lastStartIdx + 1; i < len(events); i++ {
		e := events[i]
		if (e.EventType == model.EventTaskCompleted || e.EventType == model.EventTaskFailed) &&
			e.TaskID != nil && *e.TaskID == lastStartTask {
			return false
		}
	}
	return true
}
