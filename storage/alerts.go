package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/hiveboard/hiveboard/apierr"
	"github.com/hiveboard/hiveboard/model"
)

func (s *Store) snapshotAlertRulesLocked() []model.AlertRule {
	out := make([]model.AlertRule, 0, len(s.alertRules))
	for _, r := range s.alertRules {
		out = append(out, *r)
	}
	return out
}

// CreateAlertRule adds a new alert rule for tenantID.
func (s *Store) CreateAlertRule(tenantID, name, conditionType string, params map[string]any, severity model.Severity, channels []string) (*model.AlertRule, error) {
	now := time.Now().UTC()
	r := &model.AlertRule{
		RuleID:          uuid.NewString(),
		TenantID:        tenantID,
		Name:            name,
		ConditionType:   conditionType,
		ConditionParams: params,
		Severity:        severity,
		Channels:        channels,
		Enabled:         true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	s.alertRulesMu.Lock()
	s.alertRules[r.RuleID] = r
	snapshot := s.snapshotAlertRulesLocked()
	s.alertRulesMu.Unlock()

	if err := persistJSON(s.dataDir, fileAlertRules, snapshot); err != nil {
		return nil, err
	}
	return r, nil
}

// ListAlertRules returns every alert rule for tenantID.
func (s *Store) ListAlertRules(tenantID string) []model.AlertRule {
	s.alertRulesMu.RLock()
	defer s.alertRulesMu.RUnlock()
	out := make([]model.AlertRule, 0)
	for _, r := range s.alertRules {
		if r.TenantID == tenantID {
			out = append(out, *r)
		}
	}
	return out
}

// UpdateAlertRule applies a partial update to an existing rule.
func (s *Store) UpdateAlertRule(tenantID, ruleID string, enabled *bool, channels []string) (*model.AlertRule, *apierr.Error) {
	s.alertRulesMu.Lock()
	defer s.alertRulesMu.Unlock()

	r, ok := s.alertRules[ruleID]
	if !ok || r.TenantID != tenantID {
		return nil, apierr.NotFound("alert rule not found")
	}
	if enabled != nil {
		r.Enabled = *enabled
	}
	if channels != nil {
		r.Channels = channels
	}
	r.UpdatedAt = time.Now().UTC()
	snapshot := s.snapshotAlertRulesLocked()

	if err := persistJSON(s.dataDir, fileAlertRules, snapshot); err != nil {
		return nil, apierr.Internal(err.Error())
	}
	cp := *r
	return &cp, nil
}

// DeleteAlertRule removes a rule.
func (s *Store) DeleteAlertRule(tenantID, ruleID string) *apierr.Error {
	s.alertRulesMu.Lock()
	defer s.alertRulesMu.Unlock()

	r, ok := s.alertRules[ruleID]
	if !ok || r.TenantID != tenantID {
		return apierr.NotFound("alert rule not found")
	}
	delete(s.alertRules, ruleID)
	snapshot := s.snapshotAlertRulesLocked()

	if err := persistJSON(s.dataDir, fileAlertRules, snapshot); err != nil {
		return apierr.Internal(err.Error())
	}
	return nil
}

// RecordAlertFiring appends a firing to alert_history.
func (s *Store) RecordAlertFiring(tenantID, ruleID string, triggeringEventIDs []string) (model.AlertHistory, error) {
	h := model.AlertHistory{
		EventID:            uuid.NewString(),
		RuleID:             ruleID,
		TenantID:           tenantID,
		FiredAt:            time.Now().UTC(),
		TriggeringEventIDs: triggeringEventIDs,
	}

	s.alertHistoryMu.Lock()
	s.alertHistory = append(s.alertHistory, h)
	snapshot := make([]model.AlertHistory, len(s.alertHistory))
	copy(snapshot, s.alertHistory)
	s.alertHistoryMu.Unlock()

	if err := persistJSON(s.dataDir, fileAlertHistory, snapshot); err != nil {
		return h, err
	}
	return h, nil
}

// ListAlertHistory returns fired alerts for tenantID, most recent first.
func (s *Store) ListAlertHistory(tenantID string, limit int) []model.AlertHistory {
	s.alertHistoryMu.RLock()
	defer s.alertHistoryMu.RUnlock()

	out := make([]model.AlertHistory, 0)
	for i := len(s.alertHistory) - 1; i >= 0; i-- {
		h := s.alertHistory[i]
		if h.TenantID == tenantID {
			out = append(out, h)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}
