package storage

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"time"

	"github.com/hiveboard/hiveboard/model"
)

// InsertEvents appends newEvents to the events table, skipping any whose
// (tenant_id, event_id) already exists. It returns only the events that
// were actually inserted, in the order given (callers sort before calling
// so the chronological ordering required by spec §4.1 is preserved).
func (s *Store) InsertEvents(newEvents []model.Event) ([]model.Event, error) {
	s.eventsMu.Lock()
	inserted := make([]model.Event, 0, len(newEvents))
	for _, e := range newEvents {
		key := eventKey(e.TenantID, e.EventID)
		if _, exists := s.eventIDs[key]; exists {
			continue
		}
		s.eventIDs[key] = struct{}{}
		s.events = append(s.events, e)
		inserted = append(inserted, e)
	}
	snapshot := make([]model.Event, len(s.events))
	copy(snapshot, s.events)
	s.eventsMu.Unlock()

	if len(inserted) == 0 {
		return inserted, nil
	}
	if err := persistJSON(s.dataDir, fileEvents, snapshot); err != nil {
		return inserted, err
	}
	return inserted, nil
}

// EventFilter is the query primitive every read endpoint composes (spec
// §4.2 `_filter_events`).
type EventFilter struct {
	TenantID         string
	KeyType          model.KeyType
	AgentID          string
	TaskID           string
	ProjectID        string
	EventType        model.EventType
	Severity         model.Severity
	PayloadKind      model.PayloadKind
	Environment      string
	Group            string
	Since            *time.Time
	Until            *time.Time
	ExcludeHeartbeats bool // default true; caller sets explicitly
	Ascending        bool
	Limit            int
	Cursor           string
}

// cursorState is the opaque pagination cursor's decoded shape: the
// timestamp/event_id of the last row returned, so the next page can
// resume without re-scanning from the start semantically (the scan itself
// is still linear at this scale; the cursor only hides the offset).
type cursorState struct {
	Timestamp time.Time `json:"ts"`
	EventID   string    `json:"id"`
}

func encodeCursor(e model.Event) string {
	data, _ := json.Marshal(cursorState{Timestamp: e.Timestamp, EventID: e.EventID})
	return base64.URLEncoding.EncodeToString(data)
}

func decodeCursor(cursor string) (*cursorState, bool) {
	if cursor == "" {
		return nil, false
	}
	data, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, false
	}
	var cs cursorState
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, false
	}
	return &cs, true
}

// FilterEvents returns events matching f, sorted by timestamp (descending
// by default, ascending when f.Ascending), along with an opaque cursor for
// the next page (empty when there is no more data).
func (s *Store) FilterEvents(f EventFilter) (matched []model.Event, nextCursor string) {
	s.eventsMu.RLock()
	snapshot := make([]model.Event, len(s.events))
	copy(snapshot, s.events)
	s.eventsMu.RUnlock()

	filtered := make([]model.Event, 0, len(snapshot))
	for _, e := range snapshot {
		if !matchesFilter(e, f) {
			continue
		}
		filtered = append(filtered, e)
	}

	if f.Ascending {
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].Timestamp.Before(filtered[j].Timestamp) })
	} else {
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].Timestamp.After(filtered[j].Timestamp) })
	}

	if cs, ok := decodeCursor(f.Cursor); ok {
		start := 0
		for i, e := range filtered {
			if e.Timestamp.Equal(cs.Timestamp) && e.EventID == cs.EventID {
				start = i + 1
				break
			}
		}
		filtered = filtered[start:]
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(filtered) > limit {
		matched = filtered[:limit]
		nextCursor = encodeCursor(matched[len(matched)-1])
		return matched, nextCursor
	}
	return filtered, ""
}

func matchesFilter(e model.Event, f EventFilter) bool {
	if f.TenantID != "" && e.TenantID != f.TenantID {
		return false
	}
	// test keys see all traffic; live keys never see test-tagged events.
	if f.KeyType == model.KeyTypeLive && e.KeyType == model.KeyTypeTest {
		return false
	}
	if f.AgentID != "" && e.AgentID != f.AgentID {
		return false
	}
	if f.TaskID != "" && (e.TaskID == nil || *e.TaskID != f.TaskID) {
		return false
	}
	if f.ProjectID != "" && (e.ProjectID == nil || *e.ProjectID != f.ProjectID) {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.PayloadKind != "" && e.Payload.Kind != f.PayloadKind {
		return false
	}
	if f.Environment != "" && e.Environment != f.Environment {
		return false
	}
	if f.Group != "" && e.Group != f.Group {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}
	if f.ExcludeHeartbeats && e.EventType == model.EventHeartbeat {
		return false
	}
	return true
}

// EventsForTask returns every event sharing (agent_id, task_id) for a
// tenant, ascending by timestamp (spec §4.3.3).
func (s *Store) EventsForTask(tenantID, agentID, taskID string, keyType model.KeyType) []model.Event {
	events, _ := s.FilterEvents(EventFilter{
		TenantID:  tenantID,
		KeyType:   keyType,
		AgentID:   agentID,
		TaskID:    taskID,
		Ascending: true,
		Limit:     1 << 20,
	})
	return events
}
