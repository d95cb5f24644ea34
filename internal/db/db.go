// Package db provides PostgreSQL storage for plans, discoveries, users and run history.
package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/venture-planner/internal/store"
	"github.com/jonathan/venture-planner/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

var (
	_ store.PlanStore = (*DB)(nil)
	_ store.UserStore = (*DB)(nil)
)

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// EnsureSchema creates the tables when they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// GetPlan retrieves a plan record, or nil when absent
func (db *DB) GetPlan(ctx context.Context, id uuid.UUID) (*types.PlanRecord, error) {
	var (
		rec      types.PlanRecord
		status   string
		planJSON []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT id, status, version, plan, created_at, updated_at FROM plans WHERE id = $1`,
		id,
	).Scan(&rec.ID, &status, &rec.Version, &planJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if err := json.Unmarshal(planJSON, &rec.Plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan %s: %w", id, err)
	}
	rec.Status = types.PlanStatus(status)
	return &rec, nil
}

// PutPlan writes a plan record guarded by its version.
// expectedVersion 0 inserts; any other value updates only the row still at that version.
func (db *DB) PutPlan(ctx context.Context, rec *types.PlanRecord, expectedVersion int) (int, error) {
	planJSON, err := json.Marshal(rec.Plan)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal plan: %w", err)
	}
	summary := rec.Summarize()

	var row pgx.Row
	if expectedVersion == 0 {
		row = db.pool.QueryRow(ctx,
			`INSERT INTO plans (id, status, version, opportunity_name, build_mode, progress, plan)
			 VALUES ($1, $2, 1, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING
			 RETURNING version, created_at, updated_at`,
			rec.ID, string(rec.Status), summary.OpportunityName, string(summary.BuildMode), summary.Progress, planJSON,
		)
	} else {
		row = db.pool.QueryRow(ctx,
			`UPDATE plans
			 SET status = $3, version = version + 1, opportunity_name = $4, build_mode = $5,
			     progress = $6, plan = $7, updated_at = NOW()
			 WHERE id = $1 AND version = $2
			 RETURNING version, created_at, updated_at`,
			rec.ID, expectedVersion, string(rec.Status), summary.OpportunityName, string(summary.BuildMode), summary.Progress, planJSON,
		)
	}

	if err := row.Scan(&rec.Version, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("plan %s: expected version %d: %w", rec.ID, expectedVersion, store.ErrVersionConflict)
		}
		return 0, fmt.Errorf("failed to write plan: %w", err)
	}
	return rec.Version, nil
}

// DeletePlan deletes a plan record
func (db *DB) DeletePlan(ctx context.Context, id uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("plan %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListPlans retrieves recent plan summaries
func (db *DB) ListPlans(ctx context.Context, limit int) ([]types.PlanSummary, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, opportunity_name, status, COALESCE(build_mode, ''), progress, updated_at
		 FROM plans ORDER BY updated_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []types.PlanSummary
	for rows.Next() {
		var p types.PlanSummary
		var status, mode string
		if err := rows.Scan(&p.ID, &p.OpportunityName, &status, &mode, &p.Progress, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		p.Status = types.PlanStatus(status)
		p.BuildMode = types.BuildMode(mode)
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// SaveDiscovery stores a discovery result
func (db *DB) SaveDiscovery(ctx context.Context, d *types.Discovery) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal discovery: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO discoveries (id, content, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET content = $2`,
		d.ID, data, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save discovery %s: %w", d.ID, err)
	}
	return nil
}

// GetDiscovery retrieves a discovery, or nil when absent
func (db *DB) GetDiscovery(ctx context.Context, id uuid.UUID) (*types.Discovery, error) {
	var data []byte
	err := db.pool.QueryRow(ctx, `SELECT content FROM discoveries WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get discovery: %w", err)
	}
	var d types.Discovery
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode discovery %s: %w", id, err)
	}
	return &d, nil
}

// ListDiscoveries retrieves recent discoveries
func (db *DB) ListDiscoveries(ctx context.Context, limit int) ([]types.Discovery, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	rows, err := db.pool.Query(ctx,
		`SELECT content FROM discoveries ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list discoveries: %w", err)
	}
	defer rows.Close()

	var out []types.Discovery
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan discovery: %w", err)
		}
		var d types.Discovery
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode discovery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
