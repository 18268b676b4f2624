// SPDX-License-Identifier: Apache-2.0

package authoring

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kordes/flowstudio/internal/agent"
	"github.com/kordes/flowstudio/internal/domain"
	"github.com/kordes/flowstudio/internal/registry"
	"github.com/kordes/flowstudio/internal/repository"
	"github.com/kordes/flowstudio/internal/simulator"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeInterpreter struct {
	mu      sync.Mutex
	result  agent.Interpretation
	err     error
	block   chan struct{}
	calls   int
	lastCtx context.Context
}

func (f *fakeInterpreter) Interpret(ctx context.Context, message string) (agent.Interpretation, error) {
	f.mu.Lock()
	f.calls++
	f.lastCtx = ctx
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return agent.Interpretation{}, domain.ErrExternalCallFailed
		case <-block:
		}
	}
	return f.result, f.err
}

type testEnv struct {
	manager    *Manager
	workflows  *repository.WorkflowRepository
	executions *repository.ExecutionLogStore
}

func newEnv(interp Interpreter) testEnv {
	logger := discardLogger()
	reg := registry.New()
	workflows := repository.NewWorkflowRepository(logger)
	executions := repository.NewExecutionLogStore(logger)
	sim := simulator.New(simulator.Deps{Registry: reg, Logger: logger})

	manager := NewManager(Deps{
		Catalog:     reg,
		Interpreter: interp,
		Simulator:   sim,
		Workflows:   workflows,
		Executions:  executions,
		Logger:      logger,
	})
	return testEnv{manager: manager, workflows: workflows, executions: executions}
}

func TestEndToEndAuthoring(t *testing.T) {
	env := newEnv(nil)
	ctx := context.Background()

	session, err := env.manager.Open()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := session.SetName("Invoice Alert"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := session.SetTrigger("gmail"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := session.AddAction("slack"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := session.Advance(ctx); err != nil {
		t.Fatalf("describe->configure failed: %v", err)
	}
	if session.Stage() != StageConfigure {
		t.Fatalf("expected configure, got %s", session.Stage())
	}

	if err := session.Advance(ctx); err != nil {
		t.Fatalf("configure->test failed: %v", err)
	}
	if session.Stage() != StageTest {
		t.Fatalf("expected test, got %s", session.Stage())
	}

	snap := session.Snapshot()
	if snap.LastTestResult == nil {
		t.Fatal("expected a test result")
	}
	if len(snap.LastTestResult.Steps) != 2 {
		t.Fatalf("expected 2 simulated steps, got %d", len(snap.LastTestResult.Steps))
	}
	if snap.LastTestResult.Steps[0].AppName != "Gmail" {
		t.Fatalf("expected Gmail trigger step, got %s", snap.LastTestResult.Steps[0].AppName)
	}
	if snap.LastTestResult.Steps[1].AppName != "Slack" {
		t.Fatalf("expected Slack action step, got %s", snap.LastTestResult.Steps[1].AppName)
	}
	for i, s := range snap.LastTestResult.Steps {
		if s.Status != domain.ExecutionSuccess {
			t.Fatalf("step %d: expected success, got %s", i, s.Status)
		}
	}

	if err := session.Advance(ctx); err != nil {
		t.Fatalf("test->complete failed: %v", err)
	}
	if session.Stage() != StageComplete {
		t.Fatalf("expected complete, got %s", session.Stage())
	}

	all, err := env.workflows.List(ctx, repository.FilterAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 workflow, got %d", len(all))
	}
	wf := all[0]
	if wf.Name != "Invoice Alert" {
		t.Fatalf("expected Invoice Alert, got %s", wf.Name)
	}
	if wf.Status != domain.StatusActive {
		t.Fatalf("expected active, got %s", wf.Status)
	}
	if len(wf.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(wf.Steps))
	}
	if wf.Steps[0].Kind != domain.StepTrigger || wf.Steps[1].Kind != domain.StepAction {
		t.Fatalf("unexpected step kinds: %s %s", wf.Steps[0].Kind, wf.Steps[1].Kind)
	}

	// The dry run became the workflow's first history entry.
	history, err := env.executions.ListFor(ctx, wf.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 execution record, got %d", len(history))
	}
	if history[0].WorkflowName != "Invoice Alert" {
		t.Fatalf("unexpected workflow name snapshot: %s", history[0].WorkflowName)
	}
}

func TestDescribeRequiresTrigger(t *testing.T) {
	env := newEnv(nil)

	session, _ := env.manager.Open()

	err := session.Advance(context.Background())
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if session.Stage() != StageDescribe {
		t.Fatalf("expected stage to stay describe, got %s", session.Stage())
	}
}

func TestConfigureRequiresNameAndActions(t *testing.T) {
	env := newEnv(nil)
	ctx := context.Background()

	session, _ := env.manager.Open()
	_ = session.SetTrigger("gmail")
	if err := session.Advance(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Empty name.
	err := session.Advance(ctx)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for empty name, got %v", err)
	}
	if session.Stage() != StageConfigure {
		t.Fatalf("expected stage to stay configure, got %s", session.Stage())
	}

	// Name but no actions.
	_ = session.SetName("Invoice Alert")
	err = session.Advance(ctx)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for no actions, got %v", err)
	}
	if session.Stage() != StageConfigure {
		t.Fatalf("expected stage to stay configure, got %s", session.Stage())
	}
}

func TestBackTransitions(t *testing.T) {
	env := newEnv(nil)
	ctx := context.Background()

	session, _ := env.manager.Open()

	if err := session.Back(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected no backward transition from describe, got %v", err)
	}

	_ = session.SetTrigger("gmail")
	_ = session.Advance(ctx)

	if err := session.Back(); err != nil {
		t.Fatalf("configure->describe failed: %v", err)
	}
	if session.Stage() != StageDescribe {
		t.Fatalf("expected describe, got %s", session.Stage())
	}

	_ = session.Advance(ctx)
	_ = session.SetName("X")
	_ = session.AddAction("slack")
	_ = session.Advance(ctx)
	if session.Stage() != StageTest {
		t.Fatalf("expected test, got %s", session.Stage())
	}

	if err := session.Back(); err != nil {
		t.Fatalf("test->configure failed: %v", err)
	}
	if session.Stage() != StageConfigure {
		t.Fatalf("expected configure, got %s", session.Stage())
	}
}

func TestCompleteIsTerminal(t *testing.T) {
	env := newEnv(nil)
	ctx := context.Background()

	session, _ := env.manager.Open()
	_ = session.SetName("X")
	_ = session.SetTrigger("gmail")
	_ = session.AddAction("slack")
	_ = session.Advance(ctx)
	_ = session.Advance(ctx)
	if err := session.Advance(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := session.Advance(ctx); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected terminal complete, got %v", err)
	}
	if err := session.Back(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected no backward transition from complete, got %v", err)
	}
	if err := session.SetName("Y"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected read-only draft after complete, got %v", err)
	}
}

func TestInterpreterSuccessFillsDraft(t *testing.T) {
	interp := &fakeInterpreter{result: agent.Interpretation{
		Guidance:   "Gmail to Slack it is",
		TriggerApp: "Gmail",
		ActionApps: []string{"Slack", "Notion", "Slack"},
	}}
	env := newEnv(interp)

	session, _ := env.manager.Open()
	if err := session.SendMessage(context.Background(), "alert me about invoices"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := session.Snapshot()
	if snap.TriggerAppID != "gmail" {
		t.Fatalf("expected gmail trigger, got %s", snap.TriggerAppID)
	}
	if len(snap.ActionAppIDs) != 2 || snap.ActionAppIDs[0] != "slack" || snap.ActionAppIDs[1] != "notion" {
		t.Fatalf("expected deduplicated [slack notion], got %v", snap.ActionAppIDs)
	}
	if len(snap.Conversation) != 2 {
		t.Fatalf("expected user+assistant messages, got %d", len(snap.Conversation))
	}
	if snap.Conversation[0].Speaker != SpeakerUser {
		t.Fatalf("expected user message first, got %s", snap.Conversation[0].Speaker)
	}
	if snap.Conversation[1].Text != "Gmail to Slack it is" {
		t.Fatalf("expected guidance text, got %s", snap.Conversation[1].Text)
	}
}

func TestInterpreterFailureFallsBack(t *testing.T) {
	interp := &fakeInterpreter{err: domain.ErrExternalCallFailed}
	env := newEnv(interp)
	ctx := context.Background()

	session, _ := env.manager.Open()
	if err := session.SendMessage(ctx, "alert me about invoices"); err != nil {
		t.Fatalf("expected graceful fallback, got %v", err)
	}

	snap := session.Snapshot()
	if snap.Stage != StageDescribe {
		t.Fatalf("expected to remain in describe, got %s", snap.Stage)
	}
	if len(snap.Conversation) != 2 {
		t.Fatalf("expected user+fallback messages, got %d", len(snap.Conversation))
	}
	if snap.Conversation[0].Text != "alert me about invoices" {
		t.Fatalf("expected user message recorded, got %s", snap.Conversation[0].Text)
	}
	if snap.Conversation[1].Speaker != SpeakerAssistant {
		t.Fatalf("expected fallback assistant message, got %s", snap.Conversation[1].Speaker)
	}

	// Advancing still requires a manual trigger selection.
	if err := session.Advance(ctx); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := session.SetTrigger("gmail"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := session.Advance(ctx); err != nil {
		t.Fatalf("unexpected error after manual trigger: %v", err)
	}
}

func TestSecondSessionRejected(t *testing.T) {
	env := newEnv(nil)

	if _, err := env.manager.Open(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.manager.Open(); !errors.Is(err, domain.ErrSessionOpen) {
		t.Fatalf("expected ErrSessionOpen, got %v", err)
	}

	env.manager.Close()
	if _, err := env.manager.Open(); err != nil {
		t.Fatalf("expected open after close, got %v", err)
	}
}

func TestCloseCancelsOutstandingInterpreterCall(t *testing.T) {
	interp := &fakeInterpreter{block: make(chan struct{})}
	env := newEnv(interp)

	session, _ := env.manager.Open()

	done := make(chan error, 1)
	go func() {
		done <- session.SendMessage(context.Background(), "hello")
	}()

	// Wait for the call to be in flight.
	deadline := time.After(5 * time.Second)
	for {
		interp.mu.Lock()
		calls := interp.calls
		interp.mu.Unlock()
		if calls > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("interpreter call never started")
		case <-time.After(time.Millisecond):
		}
	}

	env.manager.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected close to cancel the interpreter call")
	}

	// The user message is preserved; the log is not corrupted.
	snap := session.Snapshot()
	if len(snap.Conversation) != 1 || snap.Conversation[0].Speaker != SpeakerUser {
		t.Fatalf("expected only the user message, got %v", snap.Conversation)
	}
}

func TestSendMessageOutsideDescribe(t *testing.T) {
	env := newEnv(nil)
	ctx := context.Background()

	session, _ := env.manager.Open()
	_ = session.SetTrigger("gmail")
	_ = session.Advance(ctx)

	err := session.SendMessage(ctx, "too late")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSetTriggerUnknownApp(t *testing.T) {
	env := newEnv(nil)

	session, _ := env.manager.Open()
	if err := session.SetTrigger("jira"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
