// SPDX-License-Identifier: Apache-2.0

// Package postgres persists workflows and execution history in PostgreSQL.
// It implements the same contracts as the in-memory repositories, so the
// two backends are interchangeable behind the transport interfaces.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kordes/flowstudio/internal/domain"
	"github.com/kordes/flowstudio/internal/metrics"
	"github.com/kordes/flowstudio/internal/repository"
)

type WorkflowStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

func NewWorkflowStore(pool *pgxpool.Pool, logger *slog.Logger) *WorkflowStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowStore{
		pool:   pool,
		logger: logger,
		now:    time.Now,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *WorkflowStore) Create(ctx context.Context, wf domain.Workflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		s.logger.Error("begin tx failed", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO workflows (id, name, status, created_at, last_modified)
		 VALUES ($1, $2, $3, $4, $5)`,
		wf.ID, wf.Name, wf.Status, wf.CreatedAt, wf.LastModified,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("workflow %s: %w", wf.ID, domain.ErrAlreadyExists)
		}
		s.logger.Error("insert workflow failed", "workflow_id", wf.ID, "error", err)
		return err
	}

	if err := insertSteps(ctx, tx, wf.ID, wf.Steps); err != nil {
		s.logger.Error("insert steps failed", "workflow_id", wf.ID, "error", err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error("commit failed", "workflow_id", wf.ID, "error", err)
		return err
	}

	metrics.IncWorkflowStatus(string(wf.Status))
	s.logger.Info("workflow created", "workflow_id", wf.ID, "name", wf.Name)
	return nil
}

func insertSteps(ctx context.Context, tx pgx.Tx, workflowID string, steps []domain.Step) error {
	for i, step := range steps {
		config := step.Config
		if config == nil {
			config = map[string]string{}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO workflow_steps
			 (workflow_id, id, position, kind, app_id, app_name, action_name, config, data_mapping)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			workflowID, step.ID, i, step.Kind, step.AppID, step.AppName, step.ActionName,
			config, step.DataMapping,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *WorkflowStore) Get(ctx context.Context, id string) (domain.Workflow, error) {
	var wf domain.Workflow
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, status, created_at, last_modified
		 FROM workflows WHERE id = $1`,
		id,
	).Scan(&wf.ID, &wf.Name, &wf.Status, &wf.CreatedAt, &wf.LastModified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Workflow{}, fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
		}
		s.logger.Error("get workflow failed", "workflow_id", id, "error", err)
		return domain.Workflow{}, err
	}

	wf.Steps, err = s.loadSteps(ctx, id)
	if err != nil {
		s.logger.Error("load steps failed", "workflow_id", id, "error", err)
		return domain.Workflow{}, err
	}
	return wf, nil
}

func (s *WorkflowStore) loadSteps(ctx context.Context, workflowID string) ([]domain.Step, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, app_id, app_name, action_name, config, data_mapping
		 FROM workflow_steps
		 WHERE workflow_id = $1
		 ORDER BY position`,
		workflowID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []domain.Step{}
	for rows.Next() {
		var step domain.Step
		if err := rows.Scan(
			&step.ID, &step.Kind, &step.AppID, &step.AppName, &step.ActionName,
			&step.Config, &step.DataMapping,
		); err != nil {
			return nil, err
		}
		if step.Config == nil {
			step.Config = map[string]string{}
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// Update replaces the stored workflow wholesale. The id never changes and
// last_modified is advanced unless the caller already moved it forward.
func (s *WorkflowStore) Update(ctx context.Context, id string, wf domain.Workflow) error {
	wf.ID = id
	if err := wf.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		s.logger.Error("begin tx failed", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	var lastModified time.Time
	if err := tx.QueryRow(ctx,
		`SELECT last_modified FROM workflows WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&lastModified); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
		}
		s.logger.Error("lock workflow failed", "workflow_id", id, "error", err)
		return err
	}

	if !wf.LastModified.After(lastModified) {
		wf.LastModified = s.now()
	}

	if _, err := tx.Exec(ctx,
		`UPDATE workflows SET name = $2, status = $3, last_modified = $4 WHERE id = $1`,
		id, wf.Name, wf.Status, wf.LastModified,
	); err != nil {
		s.logger.Error("update workflow failed", "workflow_id", id, "error", err)
		return err
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM workflow_steps WHERE workflow_id = $1`,
		id,
	); err != nil {
		s.logger.Error("delete old steps failed", "workflow_id", id, "error", err)
		return err
	}
	if err := insertSteps(ctx, tx, id, wf.Steps); err != nil {
		s.logger.Error("insert steps failed", "workflow_id", id, "error", err)
		return err
	}

	return tx.Commit(ctx)
}

// Delete is not idempotent: deleting an unknown id reports ErrNotFound.
func (s *WorkflowStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		s.logger.Error("delete workflow failed", "workflow_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
	}

	metrics.IncWorkflowDeleted()
	s.logger.Info("workflow deleted", "workflow_id", id)
	return nil
}

// List returns workflows in creation order, optionally narrowed by status.
func (s *WorkflowStore) List(ctx context.Context, filter string) ([]domain.Workflow, error) {
	query := `SELECT id, name, status, created_at, last_modified FROM workflows`
	args := []any{}

	switch filter {
	case repository.FilterAll:
	case repository.FilterActive, repository.FilterPaused, repository.FilterDraft:
		query += ` WHERE status = $1`
		args = append(args, filter)
	default:
		return nil, fmt.Errorf("unknown workflow filter %q", filter)
	}
	query += ` ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		s.logger.Error("list workflows failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	workflows := []domain.Workflow{}
	for rows.Next() {
		var wf domain.Workflow
		if err := rows.Scan(&wf.ID, &wf.Name, &wf.Status, &wf.CreatedAt, &wf.LastModified); err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range workflows {
		steps, err := s.loadSteps(ctx, workflows[i].ID)
		if err != nil {
			s.logger.Error("load steps failed", "workflow_id", workflows[i].ID, "error", err)
			return nil, err
		}
		workflows[i].Steps = steps
	}
	return workflows, nil
}

// ToggleStatus flips active and paused. Drafts are left untouched.
func (s *WorkflowStore) ToggleStatus(ctx context.Context, id string) (domain.Workflow, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		s.logger.Error("begin tx failed", "error", err)
		return domain.Workflow{}, err
	}
	defer tx.Rollback(ctx)

	var status domain.WorkflowStatus
	if err := tx.QueryRow(ctx,
		`SELECT status FROM workflows WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Workflow{}, fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
		}
		s.logger.Error("read workflow status failed", "workflow_id", id, "error", err)
		return domain.Workflow{}, err
	}

	var next domain.WorkflowStatus
	switch status {
	case domain.StatusActive:
		next = domain.StatusPaused
	case domain.StatusPaused:
		next = domain.StatusActive
	default:
		// drafts cannot be toggled
		if err := tx.Commit(ctx); err != nil {
			return domain.Workflow{}, err
		}
		return s.Get(ctx, id)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE workflows SET status = $2, last_modified = $3 WHERE id = $1`,
		id, next, s.now(),
	); err != nil {
		s.logger.Error("toggle workflow failed", "workflow_id", id, "error", err)
		return domain.Workflow{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Workflow{}, err
	}

	metrics.IncWorkflowStatus(string(next))
	s.logger.Info("workflow status toggled", "workflow_id", id, "status", next)
	return s.Get(ctx, id)
}
