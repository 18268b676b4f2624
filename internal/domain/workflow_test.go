// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"errors"
	"testing"
)

func TestStepKindConstants(t *testing.T) {
	if StepTrigger != "trigger" {
		t.Fatalf("unexpected StepTrigger value: %s", StepTrigger)
	}
	if StepAction != "action" {
		t.Fatalf("unexpected StepAction value: %s", StepAction)
	}
}

func TestWorkflowStatusConstants(t *testing.T) {
	if StatusDraft != "draft" {
		t.Fatalf("unexpected StatusDraft value: %s", StatusDraft)
	}
	if StatusActive != "active" {
		t.Fatalf("unexpected StatusActive value: %s", StatusActive)
	}
	if StatusPaused != "paused" {
		t.Fatalf("unexpected StatusPaused value: %s", StatusPaused)
	}
}

func TestExecutionStatusConstants(t *testing.T) {
	if ExecutionSuccess != "success" {
		t.Fatalf("unexpected ExecutionSuccess value: %s", ExecutionSuccess)
	}
	if ExecutionFailed != "failed" {
		t.Fatalf("unexpected ExecutionFailed value: %s", ExecutionFailed)
	}
	if ExecutionRunning != "running" {
		t.Fatalf("unexpected ExecutionRunning value: %s", ExecutionRunning)
	}
}

func TestNewStep(t *testing.T) {
	app := AppDescriptor{ID: "gmail", Name: "Gmail", Category: "Email"}

	step := NewStep(app, StepTrigger)

	if step.ID == "" {
		t.Fatal("expected a generated step id")
	}
	if step.Kind != StepTrigger {
		t.Fatalf("expected trigger kind, got %s", step.Kind)
	}
	if step.AppID != "gmail" {
		t.Fatalf("expected app id gmail, got %s", step.AppID)
	}
	if step.AppName != "Gmail" {
		t.Fatalf("expected app name snapshot Gmail, got %s", step.AppName)
	}
	if step.ActionName != "Gmail Action" {
		t.Fatalf("expected default action name, got %s", step.ActionName)
	}
	if step.Config == nil {
		t.Fatal("expected config map to be initialized")
	}
}

func TestWorkflowValidate(t *testing.T) {
	trigger := Step{ID: "s1", Kind: StepTrigger, AppID: "gmail"}
	action := Step{ID: "s2", Kind: StepAction, AppID: "slack"}

	wf := Workflow{ID: "1", Name: "Invoice Alert", Status: StatusDraft, Steps: []Step{trigger, action}}
	if err := wf.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wf.Steps = nil
	if err := wf.Validate(); err != nil {
		t.Fatalf("empty step sequence must be valid, got %v", err)
	}
}

func TestWorkflowValidateRejectsEmptyName(t *testing.T) {
	wf := Workflow{ID: "1", Status: StatusDraft}
	if err := wf.Validate(); !errors.Is(err, ErrInvalidWorkflow) {
		t.Fatalf("expected ErrInvalidWorkflow, got %v", err)
	}
}

func TestWorkflowValidateRejectsActionFirst(t *testing.T) {
	wf := Workflow{
		ID:     "1",
		Name:   "Broken",
		Status: StatusDraft,
		Steps:  []Step{{ID: "s1", Kind: StepAction, AppID: "slack"}},
	}
	if err := wf.Validate(); !errors.Is(err, ErrInvalidWorkflow) {
		t.Fatalf("expected ErrInvalidWorkflow, got %v", err)
	}
}

func TestWorkflowValidateRejectsSecondTrigger(t *testing.T) {
	wf := Workflow{
		ID:     "1",
		Name:   "Broken",
		Status: StatusDraft,
		Steps: []Step{
			{ID: "s1", Kind: StepTrigger, AppID: "gmail"},
			{ID: "s2", Kind: StepTrigger, AppID: "slack"},
		},
	}
	if err := wf.Validate(); !errors.Is(err, ErrInvalidWorkflow) {
		t.Fatalf("expected ErrInvalidWorkflow, got %v", err)
	}
}

func TestExecutionRecordValidate(t *testing.T) {
	rec := ExecutionRecord{
		ID:     "log-1",
		Status: ExecutionFailed,
		Error:  "slack unreachable",
		Steps: []ExecutionStepResult{
			{StepRef: "s1", Status: ExecutionSuccess},
			{StepRef: "s2", Status: ExecutionFailed, Error: "slack unreachable"},
		},
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec.Error = ""
	if err := rec.Validate(); err == nil {
		t.Fatal("expected failed record without error message to be invalid")
	}

	rec.Error = "slack unreachable"
	rec.Steps[1].Status = ExecutionSuccess
	if err := rec.Validate(); err == nil {
		t.Fatal("expected failed record without failed step to be invalid")
	}

	ok := ExecutionRecord{ID: "log-2", Status: ExecutionSuccess}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error for success record: %v", err)
	}
}
