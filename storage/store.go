// Package storage holds HiveBoard's in-memory tables and their
// write-through JSON persistence, plus the derived query methods the
// query API and ingestion pipeline call against them.
//
// Each table is process-wide state guarded by its own lock: an obvious
// next step would move events to a WAL+index, but the in-memory shape is
// already SQL-like (explicit filter columns) so that migration would not
// change callers.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/concurrency"
	"github.com/hiveboard/hiveboard/model"
)

// Store owns every table and its persistence lifecycle.
type Store struct {
	dataDir string
	logger  zerolog.Logger

	eventsMu sync.RWMutex
	events   []model.Event
	eventIDs map[string]struct{} // "tenantID\x00eventID" → present

	tenantsMu sync.RWMutex
	tenants   map[string]*model.Tenant

	apiKeysMu sync.RWMutex
	apiKeys   map[string]*model.APIKey // keyed by sha256 hash

	projectsMu sync.RWMutex
	projects   map[string]*model.Project // keyed by projectKey(tenantID, projectID)

	agentsMu sync.RWMutex
	agents   map[string]*model.Agent // keyed by "tenantID\x00agentID"

	projectAgentsMu sync.RWMutex
	projectAgents   map[string]model.ProjectAgent // keyed by "tenantID\x00projectID\x00agentID"

	alertRulesMu sync.RWMutex
	alertRules   map[string]*model.AlertRule

	alertHistoryMu sync.RWMutex
	alertHistory   []model.AlertHistory

	agentLocks *concurrency.KeyedMutex
	dedup      *concurrency.Deduplicator
}

const (
	fileEvents        = "events.json"
	fileTenants       = "tenants.json"
	fileAPIKeys       = "api_keys.json"
	fileProjects      = "projects.json"
	fileAgents        = "agents.json"
	fileProjectAgents = "project_agents.json"
	fileAlertRules    = "alert_rules.json"
	fileAlertHistory  = "alert_history.json"
)

// New creates a Store rooted at dataDir, loading any existing table files.
func New(dataDir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	s := &Store{
		dataDir:       dataDir,
		logger:        logger.With().Str("component", "storage").Logger(),
		eventIDs:      make(map[string]struct{}),
		tenants:       make(map[string]*model.Tenant),
		apiKeys:       make(map[string]*model.APIKey),
		projects:      make(map[string]*model.Project),
		agents:        make(map[string]*model.Agent),
		projectAgents: make(map[string]model.ProjectAgent),
		alertRules:    make(map[string]*model.AlertRule),
		agentLocks:    concurrency.NewKeyedMutex(),
		dedup:         concurrency.NewDeduplicator(),
	}

	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadAll() error {
	if err := loadJSON(s.dataDir, fileEvents, &s.events); err != nil {
		return err
	}
	for _, e := range s.events {
		s.eventIDs[eventKey(e.TenantID, e.EventID)] = struct{}{}
	}

	var tenants []model.Tenant
	if err := loadJSON(s.dataDir, fileTenants, &tenants); err != nil {
		return err
	}
	for i := range tenants {
		s.tenants[tenants[i].TenantID] = &tenants[i]
	}

	var keys []model.APIKey
	if err := loadJSON(s.dataDir, fileAPIKeys, &keys); err != nil {
		return err
	}
	for i := range keys {
		s.apiKeys[keys[i].KeyHash] = &keys[i]
	}

	var projects []model.Project
	if err := loadJSON(s.dataDir, fileProjects, &projects); err != nil {
		return err
	}
	for i := range projects {
		s.projects[projectKey(projects[i].TenantID, projects[i].ProjectID)] = &projects[i]
	}

	var agents []model.Agent
	if err := loadJSON(s.dataDir, fileAgents, &agents); err != nil {
		return err
	}
	for i := range agents {
		s.agents[agentKey(agents[i].TenantID, agents[i].AgentID)] = &agents[i]
	}

	var pas []model.ProjectAgent
	if err := loadJSON(s.dataDir, fileProjectAgents, &pas); err != nil {
		return err
	}
	for _, pa := range pas {
		s.projectAgents[projectAgentKey(pa.TenantID, pa.ProjectID, pa.AgentID)] = pa
	}

	var rules []model.AlertRule
	if err := loadJSON(s.dataDir, fileAlertRules, &rules); err != nil {
		return err
	}
	for i := range rules {
		s.alertRules[rules[i].RuleID] = &rules[i]
	}

	return loadJSON(s.dataDir, fileAlertHistory, &s.alertHistory)
}

func eventKey(tenantID, eventID string) string        { return tenantID + "\x00" + eventID }
func agentKey(tenantID, agentID string) string         { return tenantID + "\x00" + agentID }
func projectAgentKey(tenantID, projectID, agentID string) string {
	return tenantID + "\x00" + projectID + "\x00" + agentID
}

// loadJSON reads name under dir into v if the file exists; a missing file
// leaves v untouched (zero value), matching a fresh data directory.
func loadJSON(dir, name string, v any) error {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("storage: read %s: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: parse %s: %w", name, err)
	}
	return nil
}

// persistJSON writes v to name under dir via a temp file + atomic rename,
// so a crash mid-write never leaves a truncated table on disk.
func persistJSON(dir, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp file for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write temp file for %s: %w", name, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: chmod temp file for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp file for %s: %w", name, err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("storage: rename into place for %s: %w", name, err)
	}
	return nil
}
