// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"
	"log/slog"

	"github.com/kordes/flowstudio/internal/authoring"
	"github.com/kordes/flowstudio/internal/domain"
)

type WorkflowStore interface {
	Create(ctx context.Context, wf domain.Workflow) error
	Get(ctx context.Context, id string) (domain.Workflow, error)
	Update(ctx context.Context, id string, wf domain.Workflow) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter string) ([]domain.Workflow, error)
	ToggleStatus(ctx context.Context, id string) (domain.Workflow, error)
}

type ExecutionViewer interface {
	ListFor(ctx context.Context, workflowID string) ([]domain.ExecutionRecord, error)
	Recent(ctx context.Context, n int) ([]domain.ExecutionRecord, error)
}

type AppCatalog interface {
	List() []domain.AppDescriptor
	Find(id string) (domain.AppDescriptor, error)
	Search(text, category string) []domain.AppDescriptor
	Categories() []string
}

// SessionHost owns the single live authoring session.
type SessionHost interface {
	Open() (*authoring.Session, error)
	Current() (*authoring.Session, bool)
	Close()
}

type Deps struct {
	Workflows  WorkflowStore
	Executions ExecutionViewer
	Catalog    AppCatalog
	Sessions   SessionHost
	Logger     *slog.Logger
	Version    string
	Commit     string
	BuildDate  string
}
