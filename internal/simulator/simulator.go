// SPDX-License-Identifier: Apache-2.0

// Package simulator produces synthetic execution records for the test-run
// stage. It is a generator: no real dispatch happens and a simulation never
// fails. Failed records are reserved for real execution backends.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kordes/flowstudio/internal/domain"
	"github.com/kordes/flowstudio/internal/metrics"
)

// AppResolver is the slice of the registry the simulator needs.
type AppResolver interface {
	Find(id string) (domain.AppDescriptor, error)
}

type Deps struct {
	Registry  AppResolver
	Logger    *slog.Logger
	StepDelay time.Duration
}

type Simulator struct {
	registry  AppResolver
	logger    *slog.Logger
	stepDelay time.Duration
	now       func() time.Time
}

func New(deps Deps) *Simulator {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Simulator{
		registry:  deps.Registry,
		logger:    l,
		stepDelay: deps.StepDelay,
		now:       time.Now,
	}
}

// Canned action names per app, mirroring what a real run would invoke.
type appActions struct {
	trigger string
	action  string
}

var actionNames = map[string]appActions{
	"gmail":          {trigger: "Fetch Email", action: "Send Email"},
	"slack":          {trigger: "New Message", action: "Send Message"},
	"googlecalendar": {trigger: "Event Started", action: "Create Event"},
	"notion":         {trigger: "Page Updated", action: "Create Page"},
	"hubspot":        {trigger: "Fetch Contact", action: "Update Contact"},
	"github":         {trigger: "New Issue", action: "Create Issue"},
}

// Simulate produces one execution record for the draft: a trigger result
// followed by one result per action app in the given order, every step
// successful. The artificial per-step pause is the only passage of time; it
// ends early when ctx is canceled but the record is produced regardless.
func (s *Simulator) Simulate(ctx context.Context, triggerAppID string, actionAppIDs []string, workflowLabel string) domain.ExecutionRecord {
	started := s.now()

	appIDs := make([]string, 0, len(actionAppIDs)+1)
	appIDs = append(appIDs, triggerAppID)
	appIDs = append(appIDs, actionAppIDs...)

	steps := make([]domain.ExecutionStepResult, 0, len(appIDs))
	var totalMillis int64

	for i, appID := range appIDs {
		s.pause(ctx)

		kind := domain.StepAction
		if i == 0 {
			kind = domain.StepTrigger
		}

		stepMillis := int64(300 + 100*i)
		totalMillis += stepMillis

		steps = append(steps, s.stepResult(appID, i, kind, stepMillis))
	}

	rec := domain.ExecutionRecord{
		ID:            "log-" + uuid.NewString(),
		WorkflowName:  workflowLabel,
		Timestamp:     started,
		DurationLabel: durationLabel(totalMillis),
		Status:        domain.ExecutionSuccess,
		Steps:         steps,
	}

	metrics.ObserveSimulationDuration(s.now().Sub(started))

	s.logger.Info("simulation complete",
		"workflow", workflowLabel,
		"steps", len(steps),
		"duration", rec.DurationLabel,
	)
	return rec
}

func (s *Simulator) stepResult(appID string, index int, kind domain.StepKind, millis int64) domain.ExecutionStepResult {
	appName := appID
	if app, err := s.registry.Find(appID); err == nil {
		appName = app.Name
	}

	names := actionNames[appID]
	actionName := names.action
	if kind == domain.StepTrigger {
		actionName = names.trigger
	}
	if actionName == "" {
		actionName = appName + " Action"
	}

	return domain.ExecutionStepResult{
		StepRef:       fmt.Sprintf("step-%d", index+1),
		AppName:       appName,
		ActionName:    actionName,
		Status:        domain.ExecutionSuccess,
		DurationLabel: durationLabel(millis),
		Output: map[string]any{
			"app":       appID,
			"action":    actionName,
			"record_id": fmt.Sprintf("%s-%04d", appID, index+1),
			"status":    "ok",
		},
	}
}

func (s *Simulator) pause(ctx context.Context) {
	if s.stepDelay <= 0 {
		return
	}
	timer := time.NewTimer(s.stepDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func durationLabel(millis int64) string {
	return fmt.Sprintf("%.1fs", float64(millis)/1000)
}
