// SPDX-License-Identifier: Apache-2.0

// Package registry holds the static catalog of integrable applications.
// The catalog is read-only; lookups and filtering never mutate it.
package registry

import (
	"fmt"
	"strings"

	"github.com/kordes/flowstudio/internal/domain"
)

var apps = []domain.AppDescriptor{
	{ID: "gmail", Name: "Gmail", Category: "Email", Description: "Email automation", IconGlyph: "G"},
	{ID: "slack", Name: "Slack", Category: "Communication", Description: "Team messaging", IconGlyph: "S"},
	{ID: "googlecalendar", Name: "Google Calendar", Category: "Productivity", Description: "Calendar management", IconGlyph: "C"},
	{ID: "notion", Name: "Notion", Category: "Productivity", Description: "Database & notes", IconGlyph: "N"},
	{ID: "hubspot", Name: "HubSpot", Category: "CRM", Description: "Customer management", IconGlyph: "H"},
	{ID: "github", Name: "GitHub", Category: "Development", Description: "Code repository", IconGlyph: "G"},
}

type Registry struct {
	apps []domain.AppDescriptor
}

// New returns a registry with the built-in catalog.
func New() *Registry {
	return &Registry{apps: apps}
}

// List returns every app in stable insertion order.
func (r *Registry) List() []domain.AppDescriptor {
	out := make([]domain.AppDescriptor, len(r.apps))
	copy(out, r.apps)
	return out
}

// Find returns the app with the given id.
func (r *Registry) Find(id string) (domain.AppDescriptor, error) {
	for _, app := range r.apps {
		if app.ID == id {
			return app, nil
		}
	}
	return domain.AppDescriptor{}, fmt.Errorf("app %q: %w", id, domain.ErrNotFound)
}

// FindByName returns the app whose display name matches, ignoring case.
func (r *Registry) FindByName(name string) (domain.AppDescriptor, error) {
	for _, app := range r.apps {
		if strings.EqualFold(app.Name, name) {
			return app, nil
		}
	}
	return domain.AppDescriptor{}, fmt.Errorf("app named %q: %w", name, domain.ErrNotFound)
}

// Search filters by case-insensitive substring match on the display name and
// by category. category "all" (or empty) matches everything; otherwise an
// exact category match is required. Both predicates are ANDed.
func (r *Registry) Search(text, category string) []domain.AppDescriptor {
	needle := strings.ToLower(strings.TrimSpace(text))

	out := make([]domain.AppDescriptor, 0, len(r.apps))
	for _, app := range r.apps {
		if needle != "" && !strings.Contains(strings.ToLower(app.Name), needle) {
			continue
		}
		if category != "" && category != "all" && app.Category != category {
			continue
		}
		out = append(out, app)
	}
	return out
}

// Categories returns the distinct categories in catalog order, prefixed with
// the synthetic "all" entry the selector UI filters on.
func (r *Registry) Categories() []string {
	seen := make(map[string]bool, len(r.apps))
	out := []string{"all"}
	for _, app := range r.apps {
		if seen[app.Category] {
			continue
		}
		seen[app.Category] = true
		out = append(out, app.Category)
	}
	return out
}
