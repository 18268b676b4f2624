// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kordes/flowstudio/internal/domain"
	"github.com/kordes/flowstudio/internal/metrics"
)

// Status filters accepted by List.
const (
	FilterAll    = "all"
	FilterActive = "active"
	FilterPaused = "paused"
	FilterDraft  = "draft"
)

// WorkflowRepository is the in-memory ordered collection of workflows.
// Every operation takes the lock for its whole read-modify-write.
type WorkflowRepository struct {
	mu     sync.Mutex
	logger *slog.Logger
	items  []domain.Workflow
	now    func() time.Time
}

func NewWorkflowRepository(logger *slog.Logger) *WorkflowRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowRepository{
		logger: logger,
		now:    time.Now,
	}
}

// Create appends the workflow to the end of the collection. A duplicate id
// is rejected with ErrAlreadyExists.
func (r *WorkflowRepository) Create(ctx context.Context, wf domain.Workflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.ID == wf.ID {
			return fmt.Errorf("workflow %s: %w", wf.ID, domain.ErrAlreadyExists)
		}
	}

	r.items = append(r.items, cloneWorkflow(wf))
	metrics.IncWorkflowStatus(string(wf.Status))

	r.logger.Info("workflow created", "workflow_id", wf.ID, "status", wf.Status)
	return nil
}

func (r *WorkflowRepository) Get(ctx context.Context, id string) (domain.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, wf := range r.items {
		if wf.ID == id {
			return cloneWorkflow(wf), nil
		}
	}
	return domain.Workflow{}, fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
}

// Update replaces the entry at the position it already holds. LastModified
// is refreshed unless the caller advanced it already.
func (r *WorkflowRepository) Update(ctx context.Context, id string, wf domain.Workflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.items {
		if existing.ID != id {
			continue
		}
		wf.ID = id
		if !wf.LastModified.After(existing.LastModified) {
			wf.LastModified = r.now()
		}
		r.items[i] = cloneWorkflow(wf)
		r.logger.Info("workflow updated", "workflow_id", id)
		return nil
	}
	return fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
}

// Delete removes the workflow. It is not idempotent: deleting an id twice
// fails with ErrNotFound on the second call. Historical execution records
// are untouched; they keep their denormalized workflow name.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.items {
		if existing.ID != id {
			continue
		}
		r.items = append(r.items[:i], r.items[i+1:]...)
		metrics.IncWorkflowDeleted()
		r.logger.Info("workflow deleted", "workflow_id", id)
		return nil
	}
	return fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
}

// List returns an order-preserving filtered copy of the collection.
func (r *WorkflowRepository) List(ctx context.Context, filter string) ([]domain.Workflow, error) {
	var want domain.WorkflowStatus
	switch filter {
	case FilterAll, "":
	case FilterActive:
		want = domain.StatusActive
	case FilterPaused:
		want = domain.StatusPaused
	case FilterDraft:
		want = domain.StatusDraft
	default:
		return nil, fmt.Errorf("unknown status filter %q", filter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Workflow, 0, len(r.items))
	for _, wf := range r.items {
		if want != "" && wf.Status != want {
			continue
		}
		out = append(out, cloneWorkflow(wf))
	}
	return out, nil
}

// ToggleStatus flips active to paused and back. Draft is not a toggle
// state: toggling a draft workflow is a no-op, not an error.
func (r *WorkflowRepository) ToggleStatus(ctx context.Context, id string) (domain.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.items {
		if existing.ID != id {
			continue
		}

		switch existing.Status {
		case domain.StatusActive:
			existing.Status = domain.StatusPaused
		case domain.StatusPaused:
			existing.Status = domain.StatusActive
		default:
			return cloneWorkflow(existing), nil
		}

		existing.LastModified = r.now()
		r.items[i] = existing
		metrics.IncWorkflowStatus(string(existing.Status))

		r.logger.Info("workflow status toggled",
			"workflow_id", id,
			"status", existing.Status,
		)
		return cloneWorkflow(existing), nil
	}
	return domain.Workflow{}, fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
}

func cloneWorkflow(wf domain.Workflow) domain.Workflow {
	steps := make([]domain.Step, len(wf.Steps))
	for i, s := range wf.Steps {
		steps[i] = cloneStep(s)
	}
	wf.Steps = steps
	return wf
}

func cloneStep(s domain.Step) domain.Step {
	s.Config = cloneStringMap(s.Config)
	s.DataMapping = cloneStringMap(s.DataMapping)
	return s
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
