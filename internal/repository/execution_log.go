// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kordes/flowstudio/internal/domain"
	"github.com/kordes/flowstudio/internal/metrics"
)

// ExecutionLogStore is the append-only in-memory execution history. Records
// are immutable once appended; there is no update or delete.
type ExecutionLogStore struct {
	mu      sync.Mutex
	logger  *slog.Logger
	records []domain.ExecutionRecord
}

func NewExecutionLogStore(logger *slog.Logger) *ExecutionLogStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionLogStore{logger: logger}
}

// Record appends. It never fails for the in-memory store; the error return
// exists for the durable backend sharing the interface.
func (s *ExecutionLogStore) Record(ctx context.Context, rec domain.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, cloneRecord(rec))
	metrics.IncExecutionRecorded(string(rec.Status))

	s.logger.Info("execution recorded",
		"execution_id", rec.ID,
		"workflow_id", rec.WorkflowID,
		"status", rec.Status,
	)
	return nil
}

// ListFor returns every record for the workflow, most recent first.
func (s *ExecutionLogStore) ListFor(ctx context.Context, workflowID string) ([]domain.ExecutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ExecutionRecord, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].WorkflowID == workflowID {
			out = append(out, cloneRecord(s.records[i]))
		}
	}
	return out, nil
}

// Recent returns the n most recently appended records across all
// workflows, most recent first.
func (s *ExecutionLogStore) Recent(ctx context.Context, n int) ([]domain.ExecutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 0 {
		n = 0
	}
	if n > len(s.records) {
		n = len(s.records)
	}

	out := make([]domain.ExecutionRecord, 0, n)
	for i := len(s.records) - 1; i >= len(s.records)-n; i-- {
		out = append(out, cloneRecord(s.records[i]))
	}
	return out, nil
}

func cloneRecord(rec domain.ExecutionRecord) domain.ExecutionRecord {
	steps := make([]domain.ExecutionStepResult, len(rec.Steps))
	for i, s := range rec.Steps {
		if s.Output != nil {
			output := make(map[string]any, len(s.Output))
			for k, v := range s.Output {
				output[k] = v
			}
			s.Output = output
		}
		steps[i] = s
	}
	rec.Steps = steps
	return rec
}
