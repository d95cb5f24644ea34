package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Runs
// -----------------------------------------------------------------------------

// CreateRun records the start of a pipeline run
func (db *DB) CreateRun(ctx context.Context, runID, planID uuid.UUID, opportunityName string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, plan_id, opportunity_name, status)
		 VALUES ($1, $2, $3, $4)`,
		runID, planID, opportunityName, RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun marks a pipeline run as finished
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status, buildMode string, errorMsg *string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE pipeline_runs
		 SET status = $1, build_mode = NULLIF($2, ''), error_message = $3, completed_at = NOW()
		 WHERE id = $4`,
		status, buildMode, errorMsg, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

const runColumns = `id, plan_id, opportunity_name, COALESCE(build_mode, ''), status, error_message, created_at, completed_at`

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.PlanID, &run.OpportunityName, &run.BuildMode, &run.Status,
		&run.ErrorMessage, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun retrieves a pipeline run by ID
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	run, err := scanRun(db.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE id = $1`, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs with optional filters
func (db *DB) ListRuns(ctx context.Context, filters RunFilters) ([]Run, error) {
	if filters.Limit == 0 {
		filters.Limit = 50
	}

	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.PlanID != uuid.Nil {
		query += fmt.Sprintf(" AND plan_id = $%d", argNum)
		args = append(args, filters.PlanID)
		argNum++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a pipeline run and its steps (via cascade)
func (db *DB) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM pipeline_runs WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Run Steps
// -----------------------------------------------------------------------------

// RecordStep upserts the outcome of one stage of a run.
// The duration is measured from startedAt to now for terminal statuses.
func (db *DB) RecordStep(ctx context.Context, runID uuid.UUID, step, category, status string, attempts int, startedAt time.Time, errorMsg *string) error {
	var (
		completedAt *time.Time
		durationMs  *int
	)
	if status == StepStatusCompleted || status == StepStatusFailed || status == StepStatusSkipped {
		now := time.Now()
		completedAt = &now
		dur := int(now.Sub(startedAt).Milliseconds())
		durationMs = &dur
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO run_steps (run_id, step, category, status, attempts, started_at, completed_at, duration_ms, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (run_id, step) DO UPDATE
		 SET status = EXCLUDED.status, attempts = EXCLUDED.attempts,
		     started_at = COALESCE(run_steps.started_at, EXCLUDED.started_at),
		     completed_at = EXCLUDED.completed_at, duration_ms = EXCLUDED.duration_ms,
		     error_message = EXCLUDED.error_message, updated_at = NOW()`,
		runID, step, category, status, attempts, startedAt, completedAt, durationMs, errorMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to record run step %s: %w", step, err)
	}
	return nil
}

const stepColumns = `id, run_id, step, category, status, attempts, started_at, completed_at,
	duration_ms, error_message, created_at, updated_at`

func scanStep(row pgx.Row) (*RunStep, error) {
	var step RunStep
	err := row.Scan(&step.ID, &step.RunID, &step.Step, &step.Category, &step.Status, &step.Attempts,
		&step.StartedAt, &step.CompletedAt, &step.DurationMs, &step.ErrorMessage, &step.CreatedAt, &step.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &step, nil
}

// GetRunStep retrieves a run step by run_id and step name
func (db *DB) GetRunStep(ctx context.Context, runID uuid.UUID, stepName string) (*RunStep, error) {
	step, err := scanStep(db.pool.QueryRow(ctx,
		`SELECT `+stepColumns+` FROM run_steps WHERE run_id = $1 AND step = $2`,
		runID, stepName,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run step: %w", err)
	}
	return step, nil
}

// ListRunSteps retrieves all steps for a run, optionally filtered by status
func (db *DB) ListRunSteps(ctx context.Context, runID uuid.UUID, status *string) ([]RunStep, error) {
	query := `SELECT ` + stepColumns + ` FROM run_steps WHERE run_id = $1`
	args := []any{runID}

	if status != nil {
		query += " AND status = $2"
		args = append(args, *status)
	}
	query += " ORDER BY created_at"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list run steps: %w", err)
	}
	defer rows.Close()

	var steps []RunStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run step: %w", err)
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}
