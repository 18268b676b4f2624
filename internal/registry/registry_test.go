// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"
	"testing"

	"github.com/kordes/flowstudio/internal/domain"
)

func TestListStableOrder(t *testing.T) {
	r := New()

	got := r.List()
	if len(got) == 0 {
		t.Fatal("expected a non-empty catalog")
	}
	if got[0].ID != "gmail" {
		t.Fatalf("expected gmail first, got %s", got[0].ID)
	}

	again := r.List()
	for i := range got {
		if got[i].ID != again[i].ID {
			t.Fatalf("expected stable order, position %d changed", i)
		}
	}
}

func TestFind(t *testing.T) {
	r := New()

	app, err := r.Find("slack")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.Name != "Slack" {
		t.Fatalf("expected Slack, got %s", app.Name)
	}

	if _, err := r.Find("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByName(t *testing.T) {
	r := New()

	app, err := r.FindByName("google calendar")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.ID != "googlecalendar" {
		t.Fatalf("expected googlecalendar, got %s", app.ID)
	}

	if _, err := r.FindByName("Jira"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	r := New()

	if got := r.Search("", "all"); len(got) != len(r.List()) {
		t.Fatalf("expected full catalog, got %d entries", len(got))
	}

	got := r.Search("git", "all")
	if len(got) != 1 || got[0].ID != "github" {
		t.Fatalf("expected github only, got %v", got)
	}

	got = r.Search("", "Productivity")
	if len(got) != 2 {
		t.Fatalf("expected 2 productivity apps, got %d", len(got))
	}

	// Both predicates are ANDed.
	if got := r.Search("notion", "Email"); len(got) != 0 {
		t.Fatalf("expected no match, got %v", got)
	}

	// Case-insensitive on name.
	got = r.Search("GMAIL", "Email")
	if len(got) != 1 || got[0].ID != "gmail" {
		t.Fatalf("expected gmail, got %v", got)
	}
}

func TestCategories(t *testing.T) {
	r := New()

	cats := r.Categories()
	if cats[0] != "all" {
		t.Fatalf("expected synthetic all entry first, got %s", cats[0])
	}

	seen := map[string]bool{}
	for _, c := range cats {
		if seen[c] {
			t.Fatalf("duplicate category %s", c)
		}
		seen[c] = true
	}
	if !seen["Productivity"] || !seen["CRM"] {
		t.Fatalf("expected catalog categories, got %v", cats)
	}
}
