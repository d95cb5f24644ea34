package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jonathan/venture-planner/internal/types"
)

// SQLite is a PlanStore and UserStore backed by a single SQLite file.
type SQLite struct {
	DBPath string
	db     *sql.DB
}

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLite, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection serializes writers; the version check runs inside a transaction on it
	db.SetMaxOpenConns(1)

	s := &SQLite{DBPath: absPath, db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLite) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS plans (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	version INTEGER NOT NULL,
	opportunity_name TEXT NOT NULL,
	build_mode TEXT,
	progress INTEGER NOT NULL DEFAULT 0,
	plan_json TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_plans_updated ON plans(updated_at);

CREATE TABLE IF NOT EXISTS discoveries (
	id TEXT PRIMARY KEY,
	discovery_json TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	phone TEXT,
	password_hash TEXT,
	password_set INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create sqlite schema: %w", err)
	}
	return nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *SQLite) GetPlan(ctx context.Context, id uuid.UUID) (*types.PlanRecord, error) {
	return getPlan(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getPlan(ctx context.Context, q queryRower, id uuid.UUID) (*types.PlanRecord, error) {
	var (
		rec                  types.PlanRecord
		status, planJSON     string
		createdAt, updatedAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT status, version, plan_json, created_at, updated_at FROM plans WHERE id = ?`,
		id.String(),
	).Scan(&status, &rec.Version, &planJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(planJSON), &rec.Plan); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", id, err)
	}
	rec.ID = id
	rec.Status = types.PlanStatus(status)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

func (s *SQLite) PutPlan(ctx context.Context, rec *types.PlanRecord, expectedVersion int) (int, error) {
	planJSON, err := json.Marshal(rec.Plan)
	if err != nil {
		return 0, fmt.Errorf("marshal plan %s: %w", rec.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	prev, err := getPlan(ctx, tx, rec.ID)
	if err != nil {
		return 0, err
	}
	stored := 0
	if prev != nil {
		stored = prev.Version
	}
	if err := checkVersion(rec.ID, stored, expectedVersion); err != nil {
		return 0, err
	}

	cp := *rec
	stamp(&cp, prev, time.Now().UTC())
	summary := cp.Summarize()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans (id, status, version, opportunity_name, build_mode, progress, plan_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			version = excluded.version,
			opportunity_name = excluded.opportunity_name,
			build_mode = excluded.build_mode,
			progress = excluded.progress,
			plan_json = excluded.plan_json,
			updated_at = excluded.updated_at
	`, cp.ID.String(), string(cp.Status), cp.Version, summary.OpportunityName, string(summary.BuildMode),
		summary.Progress, string(planJSON), formatTime(cp.CreatedAt), formatTime(cp.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("write plan %s: %w", rec.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	rec.Version, rec.CreatedAt, rec.UpdatedAt = cp.Version, cp.CreatedAt, cp.UpdatedAt
	return cp.Version, nil
}

func (s *SQLite) DeletePlan(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete plan %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLite) ListPlans(ctx context.Context, limit int) ([]types.PlanSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, opportunity_name, status, build_mode, progress, updated_at
		FROM plans ORDER BY updated_at DESC LIMIT ?
	`, limitOr(limit))
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []types.PlanSummary
	for rows.Next() {
		var (
			sum                   types.PlanSummary
			id, status, updatedAt string
			buildMode             sql.NullString
		)
		if err := rows.Scan(&id, &sum.OpportunityName, &status, &buildMode, &sum.Progress, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		sum.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		sum.Status = types.PlanStatus(status)
		sum.BuildMode = types.BuildMode(buildMode.String)
		sum.UpdatedAt = parseTime(updatedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveDiscovery(ctx context.Context, d *types.Discovery) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal discovery %s: %w", d.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO discoveries (id, discovery_json, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET discovery_json = excluded.discovery_json
	`, d.ID.String(), string(data), formatTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("save discovery %s: %w", d.ID, err)
	}
	return nil
}

func (s *SQLite) GetDiscovery(ctx context.Context, id uuid.UUID) (*types.Discovery, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT discovery_json FROM discoveries WHERE id = ?`, id.String()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get discovery %s: %w", id, err)
	}
	var d types.Discovery
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("decode discovery %s: %w", id, err)
	}
	return &d, nil
}

func (s *SQLite) ListDiscoveries(ctx context.Context, limit int) ([]types.Discovery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT discovery_json FROM discoveries ORDER BY created_at DESC LIMIT ?`, limitOr(limit))
	if err != nil {
		return nil, fmt.Errorf("list discoveries: %w", err)
	}
	defer rows.Close()

	var out []types.Discovery
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan discovery: %w", err)
		}
		var d types.Discovery
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, fmt.Errorf("decode discovery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateUser(ctx context.Context, name, email, phone string) (uuid.UUID, error) {
	id := uuid.New()
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, phone, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
	`, id.String(), name, normalizeEmail(email), phone, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return uuid.Nil, ErrEmailTaken
		}
		return uuid.Nil, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func (s *SQLite) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE id = ?`, id.String()))
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE email = ?`, normalizeEmail(email)))
}

const userSelect = `SELECT id, name, email, phone, password_hash, password_set, created_at, updated_at FROM users`

func (s *SQLite) scanUser(row *sql.Row) (*User, error) {
	var (
		u                    User
		id                   string
		phone, hash          sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &u.Name, &u.Email, &phone, &hash, &u.PasswordSet, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Phone = phone.String
	u.PasswordHash = hash.String
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

func (s *SQLite) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, normalizeEmail(email)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return n > 0, nil
}

func (s *SQLite) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, password_set = 1, updated_at = ? WHERE id = ?`,
		passwordHash, formatTime(time.Now()), id.String())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}
