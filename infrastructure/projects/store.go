// Package projects resolves project context for workflows. The project
// database itself belongs to another service; this store serves the slice of
// it that content generation needs, from static configuration.
package projects

import (
	"context"
	"encoding/json"
	"fmt"

	"contentforge/application/ports"
)

// StaticStore serves project context from configuration. Defaults apply to
// every project; per-project overrides are keyed "org/project".
type StaticStore struct {
	defaults  ports.Project
	overrides map[string]ports.Project
}

// NewStaticStore creates a store with the given defaults and optional
// per-project overrides encoded as a JSON object, for example:
//
//	{"acme/blog": {"location_name": "Berlin", "language_code": "de", "require_content_review": true}}
func NewStaticStore(defaults ports.Project, overridesJSON string) (*StaticStore, error) {
	store := &StaticStore{
		defaults:  defaults,
		overrides: make(map[string]ports.Project),
	}

	if overridesJSON != "" {
		var raw map[string]struct {
			LocationName         string `json:"location_name"`
			LanguageCode         string `json:"language_code"`
			RequireContentReview bool   `json:"require_content_review"`
		}
		if err := json.Unmarshal([]byte(overridesJSON), &raw); err != nil {
			return nil, fmt.Errorf("parse project overrides: %w", err)
		}
		for key, o := range raw {
			store.overrides[key] = ports.Project{
				LocationName:         o.LocationName,
				LanguageCode:         o.LanguageCode,
				RequireContentReview: o.RequireContentReview,
			}
		}
	}
	return store, nil
}

// GetProject returns the project context for the pair, falling back to the
// configured defaults when no override exists.
func (s *StaticStore) GetProject(ctx context.Context, organizationID, projectID string) (ports.Project, error) {
	project := s.defaults
	if o, ok := s.overrides[organizationID+"/"+projectID]; ok {
		project.LocationName = o.LocationName
		project.LanguageCode = o.LanguageCode
		project.RequireContentReview = o.RequireContentReview
	}
	project.OrganizationID = organizationID
	project.ProjectID = projectID
	return project, nil
}
