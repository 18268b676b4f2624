// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"fmt"
	"time"
)

type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
	ExecutionRunning ExecutionStatus = "running"
)

// ExecutionStepResult is the outcome of one step within a recorded run.
// Output is opaque and kept for display only; nothing in the core inspects
// its values.
type ExecutionStepResult struct {
	StepRef       string          `json:"step_ref"`
	AppName       string          `json:"app"`
	ActionName    string          `json:"action"`
	Status        ExecutionStatus `json:"status"`
	DurationLabel string          `json:"duration"`
	Output        map[string]any  `json:"output,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// ExecutionRecord is an immutable historical account of one run of a
// workflow. It references the workflow only by id plus a denormalized name
// snapshot, so deleting the workflow orphans but never invalidates it.
type ExecutionRecord struct {
	ID            string                `json:"id"`
	WorkflowID    string                `json:"workflow_id"`
	WorkflowName  string                `json:"workflow_name"`
	Timestamp     time.Time             `json:"timestamp"`
	DurationLabel string                `json:"duration"`
	Status        ExecutionStatus       `json:"status"`
	Steps         []ExecutionStepResult `json:"steps"`
	Error         string                `json:"error,omitempty"`
}

// Validate checks the failed-record invariant: a failed record carries an
// error message and at least one failed step result.
func (r ExecutionRecord) Validate() error {
	if r.Status != ExecutionFailed {
		return nil
	}
	if r.Error == "" {
		return fmt.Errorf("failed execution %s has no error message", r.ID)
	}
	for _, s := range r.Steps {
		if s.Status == ExecutionFailed {
			return nil
		}
	}
	return fmt.Errorf("failed execution %s has no failed step", r.ID)
}
