// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type StepKind string

const (
	StepTrigger StepKind = "trigger"
	StepAction  StepKind = "action"
)

type WorkflowStatus string

const (
	StatusDraft  WorkflowStatus = "draft"
	StatusActive WorkflowStatus = "active"
	StatusPaused WorkflowStatus = "paused"
)

// Step is one node of a workflow. Steps are owned by exactly one workflow
// and never shared.
type Step struct {
	ID          string            `json:"id"`
	Kind        StepKind          `json:"type"`
	AppID       string            `json:"app_id"`
	AppName     string            `json:"app_name"`
	ActionName  string            `json:"action_name"`
	Config      map[string]string `json:"config"`
	DataMapping map[string]string `json:"data_mapping,omitempty"`
}

// Workflow is the root aggregate. The first step, when present, is the
// single trigger; every later step is an action.
type Workflow struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Steps        []Step         `json:"steps"`
	Status       WorkflowStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	LastModified time.Time      `json:"last_modified"`
}

// NewStep builds a step for app. The kind depends only on position: the
// first step of a workflow is the trigger, everything after is an action.
func NewStep(app AppDescriptor, kind StepKind) Step {
	return Step{
		ID:         "step-" + uuid.NewString(),
		Kind:       kind,
		AppID:      app.ID,
		AppName:    app.Name,
		ActionName: app.Name + " Action",
		Config:     map[string]string{},
	}
}

// Validate checks the persisted-workflow invariants: a non-empty name and
// the trigger-first step ordering.
func (w Workflow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidWorkflow)
	}
	for i, s := range w.Steps {
		if i == 0 {
			if s.Kind != StepTrigger {
				return fmt.Errorf("%w: first step must be the trigger", ErrInvalidWorkflow)
			}
			continue
		}
		if s.Kind != StepAction {
			return fmt.Errorf("%w: step %d must be an action", ErrInvalidWorkflow, i)
		}
	}
	switch w.Status {
	case StatusDraft, StatusActive, StatusPaused:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidWorkflow, w.Status)
	}
	return nil
}
