package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hiveboard/hiveboard/model"
)

func hashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// BootstrapDevTenant ensures a "dev" tenant with a live key of devKey exists.
// It is a no-op once the tenant has been created on a prior boot, so restarts
// never mint a second key for the same configured secret.
func (s *Store) BootstrapDevTenant(devKey string) error {
	if devKey == "" {
		return nil
	}

	s.tenantsMu.Lock()
	if _, exists := s.tenants["dev"]; exists {
		s.tenantsMu.Unlock()
		return nil
	}
	s.tenants["dev"] = &model.Tenant{
		TenantID:  "dev",
		Plan:      model.PlanFree,
		CreatedAt: time.Now().UTC(),
	}
	tenantsSnapshot := s.snapshotTenantsLocked()
	s.tenantsMu.Unlock()

	if err := persistJSON(s.dataDir, fileTenants, tenantsSnapshot); err != nil {
		return err
	}

	return s.CreateAPIKey("dev", model.KeyTypeLive, "bootstrap", devKey)
}

func (s *Store) snapshotTenantsLocked() []model.Tenant {
	out := make([]model.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, *t)
	}
	return out
}

// CreateTenant creates a tenant with the given id and plan, failing if the
// id is already taken.
func (s *Store) CreateTenant(tenantID string, plan model.Plan) (*model.Tenant, error) {
	t := &model.Tenant{TenantID: tenantID, Plan: plan, CreatedAt: time.Now().UTC()}

	s.tenantsMu.Lock()
	if _, exists := s.tenants[tenantID]; exists {
		s.tenantsMu.Unlock()
		return nil, fmt.Errorf("storage: tenant %q already exists", tenantID)
	}
	s.tenants[tenantID] = t
	snapshot := s.snapshotTenantsLocked()
	s.tenantsMu.Unlock()

	if err := persistJSON(s.dataDir, fileTenants, snapshot); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTenant looks up a tenant by id.
func (s *Store) GetTenant(tenantID string) (*model.Tenant, bool) {
	s.tenantsMu.RLock()
	defer s.tenantsMu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

// generateRawKey produces a random bearer token; CreateAPIKey uses this when
// rawKey is empty, otherwise it stores the caller-supplied value (used by
// BootstrapDevTenant to mint a stable, configured development key).
func generateRawKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("storage: generate key: %w", err)
	}
	return "hb_" + hex.EncodeToString(buf), nil
}

// CreateAPIKey stores a new key for tenantID under the hash of rawKey,
// generating a random raw key when rawKey is empty. Only the hash is
// persisted and the raw value is not returned, so a caller that needs it
// passes its own.
func (s *Store) CreateAPIKey(tenantID string, keyType model.KeyType, label, rawKey string) error {
	if rawKey == "" {
		generated, err := generateRawKey()
		if err != nil {
			return err
		}
		rawKey = generated
	}

	key := &model.APIKey{
		KeyID:     rawKey[:minInt(len(rawKey), 12)],
		TenantID:  tenantID,
		KeyType:   keyType,
		KeyHash:   hashKey(rawKey),
		Label:     label,
		CreatedAt: time.Now().UTC(),
	}

	s.apiKeysMu.Lock()
	s.apiKeys[key.KeyHash] = key
	snapshot := make([]model.APIKey, 0, len(s.apiKeys))
	for _, k := range s.apiKeys {
		snapshot = append(snapshot, *k)
	}
	s.apiKeysMu.Unlock()

	return persistJSON(s.dataDir, fileAPIKeys, snapshot)
}

// LookupAPIKey resolves a raw bearer token to its key record. A revoked key
// is reported as not found.
func (s *Store) LookupAPIKey(rawKey string) (*model.APIKey, bool) {
	hash := hashKey(rawKey)

	s.apiKeysMu.RLock()
	defer s.apiKeysMu.RUnlock()
	key, ok := s.apiKeys[hash]
	if !ok || key.RevokedAt != nil {
		return nil, false
	}
	cp := *key
	return &cp, true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
