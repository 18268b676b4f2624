// SPDX-License-Identifier: Apache-2.0

// Package seed loads a small demo dataset so a fresh instance has
// something to show. Intended for development and demos only.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kordes/flowstudio/internal/domain"
)

type WorkflowCreator interface {
	Create(ctx context.Context, wf domain.Workflow) error
}

type ExecutionRecorder interface {
	Record(ctx context.Context, rec domain.ExecutionRecord) error
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func demoWorkflows() []domain.Workflow {
	return []domain.Workflow{
		{
			ID:   "1",
			Name: "Gmail to Slack to Google Drive",
			Steps: []domain.Step{
				{
					ID:         "step-1",
					Kind:       domain.StepTrigger,
					AppID:      "gmail",
					AppName:    "Gmail",
					ActionName: "New Email",
					Config:     map[string]string{"from": "invoices@company.com"},
				},
				{
					ID:         "step-2",
					Kind:       domain.StepAction,
					AppID:      "slack",
					AppName:    "Slack",
					ActionName: "Send Message",
					Config:     map[string]string{"channel": "#finance"},
				},
				{
					ID:         "step-3",
					Kind:       domain.StepAction,
					AppID:      "googlecalendar",
					AppName:    "Google Calendar",
					ActionName: "Create Event",
					Config:     map[string]string{},
				},
			},
			Status:       domain.StatusActive,
			CreatedAt:    date(2024, time.January, 10),
			LastModified: date(2024, time.January, 15),
		},
		{
			ID:   "2",
			Name: "HubSpot to Notion Database",
			Steps: []domain.Step{
				{
					ID:         "step-1",
					Kind:       domain.StepTrigger,
					AppID:      "hubspot",
					AppName:    "HubSpot",
					ActionName: "New Contact",
					Config:     map[string]string{},
				},
				{
					ID:         "step-2",
					Kind:       domain.StepAction,
					AppID:      "notion",
					AppName:    "Notion",
					ActionName: "Create Page",
					Config:     map[string]string{"database": "Contacts"},
				},
			},
			Status:       domain.StatusActive,
			CreatedAt:    date(2024, time.January, 8),
			LastModified: date(2024, time.January, 12),
		},
	}
}

func demoExecutions() []domain.ExecutionRecord {
	return []domain.ExecutionRecord{
		{
			ID:            "log-1",
			WorkflowID:    "1",
			WorkflowName:  "Gmail to Slack to Google Drive",
			Timestamp:     time.Date(2024, time.January, 15, 14, 32, 0, 0, time.UTC),
			DurationLabel: "2.5s",
			Status:        domain.ExecutionSuccess,
			Steps: []domain.ExecutionStepResult{
				{StepRef: "step-1", AppName: "Gmail", ActionName: "Fetch Email", Status: domain.ExecutionSuccess},
				{StepRef: "step-2", AppName: "Slack", ActionName: "Send Message", Status: domain.ExecutionSuccess},
				{StepRef: "step-3", AppName: "Google Calendar", ActionName: "Create Event", Status: domain.ExecutionSuccess},
			},
		},
		{
			ID:            "log-2",
			WorkflowID:    "2",
			WorkflowName:  "HubSpot to Notion Database",
			Timestamp:     time.Date(2024, time.January, 15, 14, 15, 0, 0, time.UTC),
			DurationLabel: "1.8s",
			Status:        domain.ExecutionSuccess,
			Steps: []domain.ExecutionStepResult{
				{StepRef: "step-1", AppName: "HubSpot", ActionName: "Fetch Contact", Status: domain.ExecutionSuccess},
				{StepRef: "step-2", AppName: "Notion", ActionName: "Create Page", Status: domain.ExecutionSuccess},
			},
		},
	}
}

// Load inserts the demo workflows and their execution history. Workflows
// that already exist are skipped, so Load is safe to run on every start.
func Load(ctx context.Context, workflows WorkflowCreator, executions ExecutionRecorder, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	loaded := 0
	for _, wf := range demoWorkflows() {
		if err := workflows.Create(ctx, wf); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				continue
			}
			return fmt.Errorf("seed workflow %s: %w", wf.ID, err)
		}
		loaded++
	}

	if loaded > 0 {
		for _, rec := range demoExecutions() {
			if err := executions.Record(ctx, rec); err != nil {
				return fmt.Errorf("seed execution %s: %w", rec.ID, err)
			}
		}
	}

	logger.Info("demo data seeded", "workflows", loaded)
	return nil
}
