package storage

import (
	"time"

	"github.com/hiveboard/hiveboard/model"
)

// UpsertAgentFromEvent updates the (tenant_id, agent_id) accelerator row's
// descriptive fields from an incoming event (agent_type, last_seen, last
// task, etc). It does not touch the derived-status cache — call
// SetAgentStatus once per batch, after all of a batch's events have been
// applied, to record the transition. The per-agent KeyedMutex serializes
// concurrent upserts of the same agent; it is held for this one call, not
// for a whole batch.
func (s *Store) UpsertAgentFromEvent(e model.Event) model.Agent {
	key := agentKey(e.TenantID, e.AgentID)
	unlock := s.agentLocks.Lock(key)
	defer unlock()

	s.agentsMu.Lock()
	defer s.agentsMu.Unlock()

	a, ok := s.agents[key]
	if !ok {
		a = &model.Agent{
			TenantID:  e.TenantID,
			AgentID:   e.AgentID,
			FirstSeen: e.Timestamp,
		}
		s.agents[key] = a
	}

	if e.AgentType != "" {
		a.AgentType = e.AgentType
	}
	if e.AgentVersion != "" {
		a.AgentVersion = e.AgentVersion
	}
	if e.Framework != "" {
		a.Framework = e.Framework
	}
	if e.Environment != "" {
		a.Environment = e.Environment
	}
	if e.Group != "" {
		a.Group = e.Group
	}
	if e.Timestamp.After(a.LastSeen) {
		a.LastSeen = e.Timestamp
	}
	if e.EventType == model.EventHeartbeat && e.Timestamp.After(a.LastHeartbeat) {
		a.LastHeartbeat = e.Timestamp
	}
	a.LastEventType = e.EventType
	if e.TaskID != nil {
		a.LastTaskID = e.TaskID
	}
	if e.ProjectID != nil {
		a.LastProjectID = e.ProjectID
	}

	cp := *a
	return cp
}

// SetAgentStatus records newStatus as the agent's cached derived status,
// returning the status that was cached before this call so the caller can
// detect a transition.
func (s *Store) SetAgentStatus(tenantID, agentID string, newStatus model.DerivedStatus) (previous model.DerivedStatus) {
	unlock := s.agentLocks.Lock(agentKey(tenantID, agentID))
	defer unlock()

	s.agentsMu.Lock()
	defer s.agentsMu.Unlock()

	a, ok := s.agents[agentKey(tenantID, agentID)]
	if !ok {
		return ""
	}
	previous = a.PreviousStatus
	a.PreviousStatus = newStatus
	return previous
}

// MarkStuckFired records that the stuck alert has already fired for the
// agent's current contiguous stuck period, so the state machine does not
// re-fire on every subsequent heartbeat-free poll (spec §4.3.2).
func (s *Store) MarkStuckFired(tenantID, agentID string, since time.Time) {
	unlock := s.agentLocks.Lock(agentKey(tenantID, agentID))
	defer unlock()

	s.agentsMu.Lock()
	defer s.agentsMu.Unlock()
	if a, ok := s.agents[agentKey(tenantID, agentID)]; ok {
		a.StuckFired = true
		a.StuckSince = since
	}
}

// ClearStuckFired resets the stuck-alert latch, called when an agent leaves
// the stuck state (a heartbeat or new activity arrives).
func (s *Store) ClearStuckFired(tenantID, agentID string) {
	unlock := s.agentLocks.Lock(agentKey(tenantID, agentID))
	defer unlock()

	s.agentsMu.Lock()
	defer s.agentsMu.Unlock()
	if a, ok := s.agents[agentKey(tenantID, agentID)]; ok {
		a.StuckFired = false
	}
}

// GetAgent returns the accelerator row for (tenant_id, agent_id).
func (s *Store) GetAgent(tenantID, agentID string) (*model.Agent, bool) {
	s.agentsMu.RLock()
	defer s.agentsMu.RUnlock()
	a, ok := s.agents[agentKey(tenantID, agentID)]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// ListAgentsByTenant returns every agent row for tenantID.
func (s *Store) ListAgentsByTenant(tenantID string) []model.Agent {
	s.agentsMu.RLock()
	defer s.agentsMu.RUnlock()
	out := make([]model.Agent, 0)
	for _, a := range s.agents {
		if a.TenantID == tenantID {
			out = append(out, *a)
		}
	}
	return out
}

// PersistAgents flushes the current agent table to disk. Ingestion calls
// this once per batch rather than on every per-event upsert.
func (s *Store) PersistAgents() error {
	s.agentsMu.RLock()
	snapshot := make([]model.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		snapshot = append(snapshot, *a)
	}
	s.agentsMu.RUnlock()
	return persistJSON(s.dataDir, fileAgents, snapshot)
}

// TryDedupEvent reports whether (tenant_id, event_id) has not been seen as
// in-flight yet, marking it in-flight if so. Call CompleteDedup with the same key
// once the event has been durably inserted or rejected.
func (s *Store) TryDedupEvent(tenantID, eventID string) bool {
	return s.dedup.TryStart(eventKey(tenantID, eventID))
}

// CompleteDedup releases the in-flight marker set by TryDedupEvent.
func (s *Store) CompleteDedup(tenantID, eventID string) {
	s.dedup.Complete(eventKey(tenantID, eventID))
}
