// Package store persists plan records, discoveries and users.
//
// Every backend enforces single-writer semantics per plan with an optimistic
// version check: PutPlan succeeds only when the caller's expected version
// matches the stored one (0 for a record that does not exist yet).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/venture-planner/internal/types"
)

var (
	// ErrNotFound is returned when deleting or updating a record that does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned by PutPlan when the stored version differs from the expected one.
	ErrVersionConflict = errors.New("plan version conflict")
	// ErrEmailTaken is returned when creating a user with an email that is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// DefaultListLimit caps list operations when the caller passes a non-positive limit.
const DefaultListLimit = 50

// PlanStore is the plan state store shared by the orchestrator, the server and the CLI.
// Implementations are safe for concurrent use.
type PlanStore interface {
	// GetPlan returns the record for id, or nil, nil when absent.
	GetPlan(ctx context.Context, id uuid.UUID) (*types.PlanRecord, error)
	// PutPlan writes rec if the stored version equals expectedVersion and returns the new version.
	PutPlan(ctx context.Context, rec *types.PlanRecord, expectedVersion int) (int, error)
	DeletePlan(ctx context.Context, id uuid.UUID) error
	ListPlans(ctx context.Context, limit int) ([]types.PlanSummary, error)

	SaveDiscovery(ctx context.Context, d *types.Discovery) error
	// GetDiscovery returns the discovery for id, or nil, nil when absent.
	GetDiscovery(ctx context.Context, id uuid.UUID) (*types.Discovery, error)
	ListDiscoveries(ctx context.Context, limit int) ([]types.Discovery, error)

	Close() error
}

// User is a stored user account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	PasswordSet  bool      `json:"password_set"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Public strips the password hash for API responses.
func (u *User) Public() *types.User {
	if u == nil {
		return nil
	}
	return &types.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt,
	}
}

// UserStore holds user accounts for API authentication.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, phone string) (uuid.UUID, error)
	// GetUser returns the user, or nil, nil when absent.
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	// GetUserByEmail returns the user, or nil, nil when absent. Emails compare case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CheckEmailExists(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// SetTaskCompleted toggles one task of a stored plan and writes the plan back.
// It returns the updated record.
func SetTaskCompleted(ctx context.Context, s PlanStore, planID uuid.UUID, taskID string, done bool) (*types.PlanRecord, error) {
	rec, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("plan %s: %w", planID, ErrNotFound)
	}
	if rec.Plan.ActionPlan == nil {
		return nil, fmt.Errorf("plan %s has no action plan: %w", planID, ErrNotFound)
	}
	task := rec.Plan.ActionPlan.FindTask(taskID)
	if task == nil {
		return nil, fmt.Errorf("task %s in plan %s: %w", taskID, planID, ErrNotFound)
	}
	task.Completed = done

	version, err := s.PutPlan(ctx, rec, rec.Version)
	if err != nil {
		return nil, err
	}
	rec.Version = version
	return rec, nil
}

// Progress returns the completion percentage of a plan's tasks.
func Progress(p *types.Plan) int {
	if p == nil || p.ActionPlan == nil {
		return 0
	}
	return p.ActionPlan.Progress()
}

// stamp prepares rec for a write that replaces prev (nil when absent).
func stamp(rec *types.PlanRecord, prev *types.PlanRecord, now time.Time) {
	rec.UpdatedAt = now
	if prev != nil {
		rec.CreatedAt = prev.CreatedAt
		rec.Version = prev.Version + 1
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.Version = 1
}

func checkVersion(id uuid.UUID, stored, expected int) error {
	if stored != expected {
		return fmt.Errorf("plan %s: stored version %d, expected %d: %w", id, stored, expected, ErrVersionConflict)
	}
	return nil
}

func limitOr(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// clone deep-copies a value through its JSON form, so stored records never alias caller memory.
func clone[T any](v *T) (*T, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
