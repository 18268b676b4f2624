// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kordes/flowstudio/internal/domain"
	"github.com/kordes/flowstudio/internal/metrics"
)

type ExecutionStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewExecutionStore(pool *pgxpool.Pool, logger *slog.Logger) *ExecutionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionStore{pool: pool, logger: logger}
}

func (s *ExecutionStore) Record(ctx context.Context, rec domain.ExecutionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		s.logger.Error("begin tx failed", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO execution_records
		 (id, workflow_id, workflow_name, started_at, duration_label, status, error)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`,
		rec.ID, rec.WorkflowID, rec.WorkflowName, rec.Timestamp, rec.DurationLabel, rec.Status, rec.Error,
	)
	if err != nil {
		s.logger.Error("insert execution record failed", "record_id", rec.ID, "error", err)
		return err
	}

	for i, step := range rec.Steps {
		if _, err := tx.Exec(ctx,
			`INSERT INTO execution_step_results
			 (record_id, position, step_ref, app_name, action_name, status, duration_label, output, error)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))`,
			rec.ID, i, step.StepRef, step.AppName, step.ActionName, step.Status,
			step.DurationLabel, step.Output, step.Error,
		); err != nil {
			s.logger.Error("insert step result failed", "record_id", rec.ID, "error", err)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error("commit failed", "record_id", rec.ID, "error", err)
		return err
	}

	metrics.IncExecutionRecorded(string(rec.Status))
	s.logger.Info("execution recorded",
		"record_id", rec.ID,
		"workflow_id", rec.WorkflowID,
		"status", rec.Status,
	)
	return nil
}

// ListFor returns the history of one workflow, most recent first.
func (s *ExecutionStore) ListFor(ctx context.Context, workflowID string) ([]domain.ExecutionRecord, error) {
	return s.query(ctx,
		`SELECT id, workflow_id, workflow_name, started_at, duration_label, status, COALESCE(error, '')
		 FROM execution_records
		 WHERE workflow_id = $1
		 ORDER BY seq DESC`,
		workflowID,
	)
}

// Recent returns the n most recent records across all workflows.
func (s *ExecutionStore) Recent(ctx context.Context, n int) ([]domain.ExecutionRecord, error) {
	if n <= 0 {
		return []domain.ExecutionRecord{}, nil
	}
	return s.query(ctx,
		`SELECT id, workflow_id, workflow_name, started_at, duration_label, status, COALESCE(error, '')
		 FROM execution_records
		 ORDER BY seq DESC
		 LIMIT $1`,
		n,
	)
}

func (s *ExecutionStore) query(ctx context.Context, sql string, args ...any) ([]domain.ExecutionRecord, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		s.logger.Error("list execution records failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	records := []domain.ExecutionRecord{}
	for rows.Next() {
		var rec domain.ExecutionRecord
		if err := rows.Scan(
			&rec.ID, &rec.WorkflowID, &rec.WorkflowName, &rec.Timestamp,
			&rec.DurationLabel, &rec.Status, &rec.Error,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		steps, err := s.loadStepResults(ctx, records[i].ID)
		if err != nil {
			s.logger.Error("load step results failed", "record_id", records[i].ID, "error", err)
			return nil, err
		}
		records[i].Steps = steps
	}
	return records, nil
}

func (s *ExecutionStore) loadStepResults(ctx context.Context, recordID string) ([]domain.ExecutionStepResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT step_ref, app_name, action_name, status, duration_label, output, COALESCE(error, '')
		 FROM execution_step_results
		 WHERE record_id = $1
		 ORDER BY position`,
		recordID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []domain.ExecutionStepResult{}
	for rows.Next() {
		var step domain.ExecutionStepResult
		if err := rows.Scan(
			&step.StepRef, &step.AppName, &step.ActionName, &step.Status,
			&step.DurationLabel, &step.Output, &step.Error,
		); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
