// SPDX-License-Identifier: Apache-2.0

// Package authoring drives one workflow draft through the
// describe/configure/test/complete stages. The session is the only path by
// which a draft becomes a persisted, active workflow.
package authoring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kordes/flowstudio/internal/agent"
	"github.com/kordes/flowstudio/internal/domain"
	"github.com/kordes/flowstudio/internal/metrics"
)

type Stage string

const (
	StageDescribe  Stage = "describe"
	StageConfigure Stage = "configure"
	StageTest      Stage = "test"
	StageComplete  Stage = "complete"
)

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

type Message struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

const fallbackAssistantText = "I couldn't reach the assistant right now. " +
	"Pick a trigger app and action apps manually, then continue to configuration."

// Interpreter is the external intent interpreter. It may be nil, in which
// case the assistant is treated as unavailable.
type Interpreter interface {
	Interpret(ctx context.Context, message string) (agent.Interpretation, error)
}

// AppCatalog is the slice of the registry the session needs.
type AppCatalog interface {
	Find(id string) (domain.AppDescriptor, error)
	FindByName(name string) (domain.AppDescriptor, error)
}

// Runner produces the dry-run record for the test stage.
type Runner interface {
	Simulate(ctx context.Context, triggerAppID string, actionAppIDs []string, workflowLabel string) domain.ExecutionRecord
}

// WorkflowCreator receives the finished workflow on completion.
type WorkflowCreator interface {
	Create(ctx context.Context, wf domain.Workflow) error
}

// Recorder receives the test record once the workflow exists.
type Recorder interface {
	Record(ctx context.Context, rec domain.ExecutionRecord) error
}

type Deps struct {
	Catalog     AppCatalog
	Interpreter Interpreter
	Simulator   Runner
	Workflows   WorkflowCreator
	Executions  Recorder
	Logger      *slog.Logger
}

// Session is one authoring pass. It is not reusable: complete is terminal
// and a closed session rejects every mutation.
type Session struct {
	mu sync.Mutex

	catalog     AppCatalog
	interpreter Interpreter
	simulator   Runner
	workflows   WorkflowCreator
	executions  Recorder
	logger      *slog.Logger

	stage           Stage
	draftName       string
	triggerAppID    string
	actionAppIDs    []string
	conversation    []Message
	lastTestResult  *domain.ExecutionRecord
	workflowID      string
	closed          bool
	cancelInterpret context.CancelFunc
	now             func() time.Time
}

func newSession(deps Deps) *Session {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}
	metrics.IncStageTransition(string(StageDescribe))
	return &Session{
		catalog:     deps.Catalog,
		interpreter: deps.Interpreter,
		simulator:   deps.Simulator,
		workflows:   deps.Workflows,
		executions:  deps.Executions,
		logger:      l,
		stage:       StageDescribe,
		now:         time.Now,
	}
}

func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Snapshot is a read-only view of the session for the presentation layer.
type Snapshot struct {
	Stage          Stage                   `json:"stage"`
	DraftName      string                  `json:"draft_name"`
	TriggerAppID   string                  `json:"trigger_app_id,omitempty"`
	ActionAppIDs   []string                `json:"action_app_ids"`
	Conversation   []Message               `json:"conversation"`
	LastTestResult *domain.ExecutionRecord `json:"last_test_result,omitempty"`
	WorkflowID     string                  `json:"workflow_id,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions := make([]string, len(s.actionAppIDs))
	copy(actions, s.actionAppIDs)
	conversation := make([]Message, len(s.conversation))
	copy(conversation, s.conversation)

	var result *domain.ExecutionRecord
	if s.lastTestResult != nil {
		rec := *s.lastTestResult
		result = &rec
	}

	return Snapshot{
		Stage:          s.stage,
		DraftName:      s.draftName,
		TriggerAppID:   s.triggerAppID,
		ActionAppIDs:   actions,
		Conversation:   conversation,
		LastTestResult: result,
		WorkflowID:     s.workflowID,
	}
}

// SetName names the draft. Allowed while describing or configuring.
func (s *Session) SetName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}
	s.draftName = name
	return nil
}

// SetTrigger selects the trigger app. Manual selection is allowed already
// in the describe stage, so skipping the assistant never strands the user.
func (s *Session) SetTrigger(appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}
	if _, err := s.catalog.Find(appID); err != nil {
		return err
	}
	s.triggerAppID = appID
	return nil
}

// AddAction appends the app to the action set. Adding an app that is
// already present is a no-op; membership is what matters.
func (s *Session) AddAction(appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}
	if _, err := s.catalog.Find(appID); err != nil {
		return err
	}
	for _, existing := range s.actionAppIDs {
		if existing == appID {
			return nil
		}
	}
	s.actionAppIDs = append(s.actionAppIDs, appID)
	return nil
}

func (s *Session) RemoveAction(appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}
	for i, existing := range s.actionAppIDs {
		if existing == appID {
			s.actionAppIDs = append(s.actionAppIDs[:i], s.actionAppIDs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("action app %s: %w", appID, domain.ErrNotFound)
}

func (s *Session) editable() error {
	if s.closed {
		return fmt.Errorf("%w: session is closed", domain.ErrInvalidTransition)
	}
	switch s.stage {
	case StageDescribe, StageConfigure:
		return nil
	default:
		return fmt.Errorf("%w: draft is read-only in stage %s", domain.ErrInvalidTransition, s.stage)
	}
}

// SendMessage records the user's message and consults the intent
// interpreter. Interpreter failure is expected: the session falls back to a
// canned assistant reply and manual configuration, and never returns
// ErrExternalCallFailed to the caller.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: session is closed", domain.ErrInvalidTransition)
	}
	if s.stage != StageDescribe {
		s.mu.Unlock()
		return fmt.Errorf("%w: the assistant is only available while describing", domain.ErrInvalidTransition)
	}

	s.conversation = append(s.conversation, Message{Speaker: SpeakerUser, Text: text})

	if s.interpreter == nil {
		s.conversation = append(s.conversation, Message{Speaker: SpeakerAssistant, Text: fallbackAssistantText})
		s.mu.Unlock()
		return nil
	}

	callCtx, cancel := context.WithCancel(ctx)
	s.cancelInterpret = cancel
	s.mu.Unlock()

	// The network call runs without the lock so Close can cancel it.
	interp, err := s.interpreter.Interpret(callCtx, text)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelInterpret = nil

	if s.closed {
		// Session was torn down mid-call; the user message stays recorded.
		return nil
	}

	if err != nil {
		s.logger.Warn("intent interpretation failed, falling back to manual flow", "error", err)
		s.conversation = append(s.conversation, Message{Speaker: SpeakerAssistant, Text: fallbackAssistantText})
		return nil
	}

	s.applyInterpretation(interp)
	return nil
}

func (s *Session) applyInterpretation(interp agent.Interpretation) {
	if interp.TriggerApp != "" {
		if app, err := s.catalog.FindByName(interp.TriggerApp); err == nil {
			s.triggerAppID = app.ID
		} else {
			s.logger.Warn("interpreter suggested unknown trigger app", "app", interp.TriggerApp)
		}
	}

	for _, name := range interp.ActionApps {
		app, err := s.catalog.FindByName(name)
		if err != nil {
			s.logger.Warn("interpreter suggested unknown action app", "app", name)
			continue
		}
		dup := false
		for _, existing := range s.actionAppIDs {
			if existing == app.ID {
				dup = true
				break
			}
		}
		if !dup {
			s.actionAppIDs = append(s.actionAppIDs, app.ID)
		}
	}

	guidance := interp.Guidance
	if guidance == "" {
		guidance = "I've sketched a draft from your description. Review the trigger and actions, then continue."
	}
	s.conversation = append(s.conversation, Message{Speaker: SpeakerAssistant, Text: guidance})
}

// Advance moves one stage forward. Guards are re-surfaced as
// ErrInvalidTransition and the stage never changes on failure.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: session is closed", domain.ErrInvalidTransition)
	}

	switch s.stage {
	case StageDescribe:
		if s.triggerAppID == "" {
			return fmt.Errorf("%w: a trigger app must be selected before configuring", domain.ErrInvalidTransition)
		}
		s.setStage(StageConfigure)
		return nil

	case StageConfigure:
		if s.draftName == "" {
			return fmt.Errorf("%w: the workflow needs a name before testing", domain.ErrInvalidTransition)
		}
		if s.triggerAppID == "" {
			return fmt.Errorf("%w: a trigger app must be selected before testing", domain.ErrInvalidTransition)
		}
		if len(s.actionAppIDs) == 0 {
			return fmt.Errorf("%w: at least one action app is required before testing", domain.ErrInvalidTransition)
		}

		rec := s.simulator.Simulate(ctx, s.triggerAppID, s.actionAppIDs, s.draftName)
		s.lastTestResult = &rec
		s.setStage(StageTest)
		return nil

	case StageTest:
		if s.lastTestResult == nil {
			return fmt.Errorf("%w: no test run available", domain.ErrInvalidTransition)
		}
		if s.lastTestResult.Status != domain.ExecutionSuccess {
			return fmt.Errorf("%w: the test run did not succeed", domain.ErrInvalidTransition)
		}
		if err := s.activate(ctx); err != nil {
			return err
		}
		s.setStage(StageComplete)
		return nil

	default:
		return fmt.Errorf("%w: %s is terminal", domain.ErrInvalidTransition, s.stage)
	}
}

// Back steps one stage backward. Only configure->describe and
// test->configure exist; everything else is rejected.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: session is closed", domain.ErrInvalidTransition)
	}

	switch s.stage {
	case StageConfigure:
		s.stage = StageDescribe
		return nil
	case StageTest:
		s.stage = StageConfigure
		return nil
	default:
		return fmt.Errorf("%w: cannot go back from %s", domain.ErrInvalidTransition, s.stage)
	}
}

// activate builds the workflow and hands it to the repository. Called with
// the lock held from the test stage only.
func (s *Session) activate(ctx context.Context) error {
	now := s.now()

	steps := make([]domain.Step, 0, len(s.actionAppIDs)+1)
	steps = append(steps, domain.NewStep(s.lookup(s.triggerAppID), domain.StepTrigger))
	for _, appID := range s.actionAppIDs {
		steps = append(steps, domain.NewStep(s.lookup(appID), domain.StepAction))
	}

	wf := domain.Workflow{
		ID:           uuid.NewString(),
		Name:         s.draftName,
		Steps:        steps,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		LastModified: now,
	}

	if err := s.workflows.Create(ctx, wf); err != nil {
		return err
	}
	s.workflowID = wf.ID

	// The dry run becomes the workflow's first history entry.
	if s.executions != nil && s.lastTestResult != nil {
		rec := *s.lastTestResult
		rec.WorkflowID = wf.ID
		rec.WorkflowName = wf.Name
		s.lastTestResult = &rec
		if err := s.executions.Record(ctx, rec); err != nil {
			s.logger.Warn("recording test run failed", "workflow_id", wf.ID, "error", err)
		}
	}

	s.logger.Info("workflow activated",
		"workflow_id", wf.ID,
		"name", wf.Name,
		"steps", len(wf.Steps),
	)
	return nil
}

func (s *Session) lookup(appID string) domain.AppDescriptor {
	if app, err := s.catalog.Find(appID); err == nil {
		return app
	}
	return domain.AppDescriptor{ID: appID, Name: appID}
}

func (s *Session) setStage(stage Stage) {
	s.stage = stage
	metrics.IncStageTransition(string(stage))
	s.logger.Info("authoring stage entered", "stage", stage)
}

// close tears the session down and cancels an in-flight interpreter call.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.cancelInterpret != nil {
		s.cancelInterpret()
		s.cancelInterpret = nil
	}
}
