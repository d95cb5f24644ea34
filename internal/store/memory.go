package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/venture-planner/internal/types"
)

// Memory is an in-process PlanStore and UserStore. Contents are lost on exit.
type Memory struct {
	mu          sync.RWMutex
	plans       map[uuid.UUID]*types.PlanRecord
	discoveries map[uuid.UUID]*types.Discovery
	users       map[uuid.UUID]*User
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		plans:       make(map[uuid.UUID]*types.PlanRecord),
		discoveries: make(map[uuid.UUID]*types.Discovery),
		users:       make(map[uuid.UUID]*User),
	}
}

func (m *Memory) GetPlan(_ context.Context, id uuid.UUID) (*types.PlanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.plans[id]
	if !ok {
		return nil, nil
	}
	return clone(rec)
}

func (m *Memory) PutPlan(_ context.Context, rec *types.PlanRecord, expectedVersion int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.plans[rec.ID]
	stored := 0
	if prev != nil {
		stored = prev.Version
	}
	if err := checkVersion(rec.ID, stored, expectedVersion); err != nil {
		return 0, err
	}

	cp, err := clone(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to copy plan %s: %w", rec.ID, err)
	}
	stamp(cp, prev, time.Now().UTC())
	m.plans[rec.ID] = cp
	rec.Version, rec.CreatedAt, rec.UpdatedAt = cp.Version, cp.CreatedAt, cp.UpdatedAt
	return cp.Version, nil
}

func (m *Memory) DeletePlan(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[id]; !ok {
		return fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	delete(m.plans, id)
	return nil
}

func (m *Memory) ListPlans(_ context.Context, limit int) ([]types.PlanSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.PlanSummary, 0, len(m.plans))
	for _, rec := range m.plans {
		out = append(out, rec.Summarize())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if n := limitOr(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *Memory) SaveDiscovery(_ context.Context, d *types.Discovery) error {
	cp, err := clone(d)
	if err != nil {
		return fmt.Errorf("failed to copy discovery %s: %w", d.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discoveries[d.ID] = cp
	return nil
}

func (m *Memory) GetDiscovery(_ context.Context, id uuid.UUID) (*types.Discovery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.discoveries[id]
	if !ok {
		return nil, nil
	}
	return clone(d)
}

func (m *Memory) ListDiscoveries(_ context.Context, limit int) ([]types.Discovery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Discovery, 0, len(m.discoveries))
	for _, d := range m.discoveries {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if n := limitOr(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *Memory) CreateUser(_ context.Context, name, email, phone string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == normalizeEmail(email) {
			return uuid.Nil, ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	u := &User{ID: uuid.New(), Name: name, Email: normalizeEmail(email), Phone: phone, CreatedAt: now, UpdatedAt: now}
	m.users[u.ID] = u
	return u.ID, nil
}

func (m *Memory) GetUser(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == normalizeEmail(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	u, err := m.GetUserByEmail(ctx, email)
	return u != nil, err
}

func (m *Memory) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	u.PasswordHash = passwordHash
	u.PasswordSet = true
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) Close() error { return nil }
