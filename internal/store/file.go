package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/venture-planner/internal/types"
)

const (
	plansDir       = "plans"
	discoveriesDir = "discoveries"
	usersDir       = "users"
)

// File stores one JSON document per record under a base directory:
//
//	<base>/plans/<id>.json
//	<base>/discoveries/<id>.json
//	<base>/users/<id>.json
//
// Writes go through a temp file and a rename, so readers never see a partial document.
// The version check is serialized within the process only.
type File struct {
	basePath string
	mu       sync.RWMutex
}

// NewFile opens (and creates when needed) a file store rooted at basePath.
func NewFile(basePath string) (*File, error) {
	for _, dir := range []string{plansDir, discoveriesDir, usersDir} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to initialize file store: %w", err)
		}
	}
	return &File{basePath: basePath}, nil
}

func (f *File) path(dir string, id uuid.UUID) string {
	return filepath.Join(f.basePath, dir, id.String()+".json")
}

func (f *File) GetPlan(_ context.Context, id uuid.UUID) (*types.PlanRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loadPlan(id)
}

func (f *File) loadPlan(id uuid.UUID) (*types.PlanRecord, error) {
	var rec types.PlanRecord
	if err := loadJSON(f.path(plansDir, id), &rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read plan %s: %w", id, err)
	}
	return &rec, nil
}

func (f *File) PutPlan(_ context.Context, rec *types.PlanRecord, expectedVersion int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, err := f.loadPlan(rec.ID)
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
	if err := saveJSON(f.path(plansDir, rec.ID), &cp); err != nil {
		return 0, fmt.Errorf("failed to write plan %s: %w", rec.ID, err)
	}
	rec.Version, rec.CreatedAt, rec.UpdatedAt = cp.Version, cp.CreatedAt, cp.UpdatedAt
	return cp.Version, nil
}

func (f *File) DeletePlan(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(plansDir, id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("plan %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to delete plan %s: %w", id, err)
	}
	return nil
}

func (f *File) ListPlans(_ context.Context, limit int) ([]types.PlanSummary, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []types.PlanSummary
	err := f.each(plansDir, func(path string) error {
		var rec types.PlanRecord
		if err := loadJSON(path, &rec); err != nil {
			return err
		}
		out = append(out, rec.Summarize())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if n := limitOr(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *File) SaveDiscovery(_ context.Context, d *types.Discovery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := saveJSON(f.path(discoveriesDir, d.ID), d); err != nil {
		return fmt.Errorf("failed to write discovery %s: %w", d.ID, err)
	}
	return nil
}

func (f *File) GetDiscovery(_ context.Context, id uuid.UUID) (*types.Discovery, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var d types.Discovery
	if err := loadJSON(f.path(discoveriesDir, id), &d); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read discovery %s: %w", id, err)
	}
	return &d, nil
}

func (f *File) ListDiscoveries(_ context.Context, limit int) ([]types.Discovery, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []types.Discovery
	err := f.each(discoveriesDir, func(path string) error {
		var d types.Discovery
		if err := loadJSON(path, &d); err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list discoveries: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if n := limitOr(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *File) CreateUser(_ context.Context, name, email, phone string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.findUser(email)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return uuid.Nil, ErrEmailTaken
	}
	now := time.Now().UTC()
	u := &User{ID: uuid.New(), Name: name, Email: normalizeEmail(email), Phone: phone, CreatedAt: now, UpdatedAt: now}
	if err := saveJSON(f.path(usersDir, u.ID), u); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u.ID, nil
}

func (f *File) GetUser(_ context.Context, id uuid.UUID) (*User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loadUser(id)
}

func (f *File) loadUser(id uuid.UUID) (*User, error) {
	var u User
	if err := loadJSON(f.path(usersDir, id), &u); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read user %s: %w", id, err)
	}
	return &u, nil
}

func (f *File) GetUserByEmail(_ context.Context, email string) (*User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.findUser(email)
}

func (f *File) findUser(email string) (*User, error) {
	email = normalizeEmail(email)
	var found *User
	err := f.each(usersDir, func(path string) error {
		var u User
		if err := loadJSON(path, &u); err != nil {
			return err
		}
		if u.Email == email {
			found = &u
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return found, nil
}

func (f *File) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	u, err := f.GetUserByEmail(ctx, email)
	return u != nil, err
}

func (f *File) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.loadUser(id)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	u.PasswordHash = passwordHash
	u.PasswordSet = true
	u.UpdatedAt = time.Now().UTC()
	if err := saveJSON(f.path(usersDir, id), u); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (f *File) Close() error { return nil }

// each calls fn for every JSON document in dir. Leftover temp files are skipped.
func (f *File) each(dir string, fn func(path string) error) error {
	entries, err := os.ReadDir(filepath.Join(f.basePath, dir))
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := fn(filepath.Join(f.basePath, dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func loadJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
