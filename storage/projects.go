package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/hiveboard/hiveboard/model"

	"github.com/hiveboard/hiveboard/apierr"
)

// EnsureDefaultProject creates the tenant's implicit "default" project if it
// does not already exist.
func (s *Store) EnsureDefaultProject(tenantID string) error {
	s.projectsMu.Lock()
	if _, exists := s.projects[projectKey(tenantID, model.DefaultProjectID)]; exists {
		s.projectsMu.Unlock()
		return nil
	}
	now := time.Now().UTC()
	p := &model.Project{
		ProjectID: model.DefaultProjectID,
		TenantID:  tenantID,
		Name:      "Default",
		Slug:      "default",
		Status:    model.ProjectOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.projects[projectKey(tenantID, p.ProjectID)] = p
	snapshot := s.snapshotProjectsLocked()
	s.projectsMu.Unlock()

	return persistJSON(s.dataDir, fileProjects, snapshot)
}

// projectKey namespaces project ids by tenant since slugs/ids are only
// unique within a tenant, not globally.
func projectKey(tenantID, projectID string) string { return tenantID + "\x00" + projectID }

func (s *Store) snapshotProjectsLocked() []model.Project {
	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, *p)
	}
	return out
}

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

// CreateProject creates a project in tenantID, returning a conflict error if
// the derived slug collides with an existing project.
func (s *Store) CreateProject(tenantID, name string) (*model.Project, *apierr.Error) {
	slug := slugify(name)

	s.projectsMu.Lock()
	defer s.projectsMu.Unlock()

	for _, p := range s.projects {
		if p.TenantID == tenantID && p.Slug == slug {
			return nil, apierr.New(409, apierr.CodeConflict, fmt.Sprintf("project with slug %q already exists", slug))
		}
	}

	now := time.Now().UTC()
	p := &model.Project{
		ProjectID: slug,
		TenantID:  tenantID,
		Name:      name,
		Slug:      slug,
		Status:    model.ProjectOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.projects[projectKey(tenantID, p.ProjectID)] = p
	snapshot := s.snapshotProjectsLocked()

	if err := persistJSON(s.dataDir, fileProjects, snapshot); err != nil {
		return nil, apierr.Internal(err.Error())
	}
	return p, nil
}

// ListProjects returns every project for tenantID.
func (s *Store) ListProjects(tenantID string) []model.Project {
	s.projectsMu.RLock()
	defer s.projectsMu.RUnlock()
	out := make([]model.Project, 0)
	for _, p := range s.projects {
		if p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	return out
}

// GetProject looks up a single project.
func (s *Store) GetProject(tenantID, projectID string) (*model.Project, bool) {
	s.projectsMu.RLock()
	defer s.projectsMu.RUnlock()
	p, ok := s.projects[projectKey(tenantID, projectID)]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// ArchiveProject marks a project archived. The default project can never be
// archived or deleted.
func (s *Store) ArchiveProject(tenantID, projectID string) *apierr.Error {
	if projectID == model.DefaultProjectID {
		return apierr.New(400, apierr.CodeCannotDeleteDefault, "the default project cannot be archived")
	}

	s.projectsMu.Lock()
	defer s.projectsMu.Unlock()

	p, ok := s.projects[projectKey(tenantID, projectID)]
	if !ok {
		return apierr.NotFound("project not found")
	}
	p.Status = model.ProjectArchived
	p.UpdatedAt = time.Now().UTC()
	snapshot := s.snapshotProjectsLocked()

	if err := persistJSON(s.dataDir, fileProjects, snapshot); err != nil {
		return apierr.Internal(err.Error())
	}
	return nil
}

// UpdateProject applies a partial update (name and/or status) to a project.
// Renaming the default project is allowed; un-archiving or re-archiving it
// is not, since it must always stay open.
func (s *Store) UpdateProject(tenantID, projectID string, name *string, status *model.ProjectStatus) (*model.Project, *apierr.Error) {
	if status != nil && projectID == model.DefaultProjectID {
		return nil, apierr.New(400, apierr.CodeCannotDeleteDefault, "the default project's status cannot be changed")
	}

	s.projectsMu.Lock()
	defer s.projectsMu.Unlock()

	p, ok := s.projects[projectKey(tenantID, projectID)]
	if !ok {
		return nil, apierr.NotFound("project not found")
	}
	if name != nil && *name != "" {
		p.Name = *name
	}
	if status != nil {
		p.Status = *status
	}
	p.UpdatedAt = time.Now().UTC()
	snapshot := s.snapshotProjectsLocked()

	if err := persistJSON(s.dataDir, fileProjects, snapshot); err != nil {
		return nil, apierr.Internal(err.Error())
	}
	cp := *p
	return &cp, nil
}

// LinkAgentToProject records that agentID has been seen under projectID for
// tenantID, auto-populating the junction table during ingestion.
func (s *Store) LinkAgentToProject(tenantID, projectID, agentID string) error {
	key := projectAgentKey(tenantID, projectID, agentID)

	s.projectAgentsMu.Lock()
	if _, exists := s.projectAgents[key]; exists {
		s.projectAgentsMu.Unlock()
		return nil
	}
	s.projectAgents[key] = model.ProjectAgent{TenantID: tenantID, ProjectID: projectID, AgentID: agentID}
	snapshot := make([]model.ProjectAgent, 0, len(s.projectAgents))
	for _, pa := range s.projectAgents {
		snapshot = append(snapshot, pa)
	}
	s.projectAgentsMu.Unlock()

	return persistJSON(s.dataDir, fileProjectAgents, snapshot)
}

// AgentsForProject returns every agent_id linked to projectID.
func (s *Store) AgentsForProject(tenantID, projectID string) []string {
	s.projectAgentsMu.RLock()
	defer s.projectAgentsMu.RUnlock()
	out := make([]string, 0)
	for _, pa := range s.projectAgents {
		if pa.TenantID == tenantID && pa.ProjectID == projectID {
			out = append(out, pa.AgentID)
		}
	}
	return out
}
