package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/venture-planner/internal/config"
	"github.com/jonathan/venture-planner/internal/pipeline"
	"github.com/jonathan/venture-planner/internal/stages/stagestest"
	"github.com/jonathan/venture-planner/internal/store"
	"github.com/jonathan/venture-planner/internal/types"
)

func wallArt() types.Opportunity {
	return types.Opportunity{
		ID:          uuid.New(),
		Name:        "Digital Wall Art Shop",
		Description: "Sell AI-assisted printable wall art on Etsy and Shopify to home decor buyers.",
		Potential:   "High",
		Risk:        "Medium",
		QuickReturn: "Short",
		Priority:    "8",
	}
}

func executePlan(t *testing.T, orch *pipeline.Orchestrator, s store.PlanStore) *types.PlanRecord {
	t.Helper()
	rec, err := orch.Execute(context.Background(), pipeline.ExecuteRequest{
		Opportunity: wallArt(),
		BuildMode:   types.BuildModeOutSourced,
	})
	require.NoError(t, err)
	stored, err := s.GetPlan(context.Background(), rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	return rec
}

func storedPlan(t *testing.T) (*store.Memory, *types.PlanRecord) {
	t.Helper()
	mem := store.NewMemory()
	orch := buildOrchestrator(config.Config{}, stagestest.Client(nil), mem, nil)
	return mem, executePlan(t, orch, mem)
}

func TestListPlans(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listPlans(context.Background(), store.NewMemory(), &out, 0))
	assert.Equal(t, "No plans stored.\n", out.String())

	mem, rec := storedPlan(t)
	out.Reset()
	require.NoError(t, listPlans(context.Background(), mem, &out, 0))
	assert.Contains(t, out.String(), rec.ID.String())
	assert.Contains(t, out.String(), "Digital Wall Art Shop")
	assert.Contains(t, out.String(), "out-sourced")
}

func TestShowPlan(t *testing.T) {
	mem, rec := storedPlan(t)

	var out bytes.Buffer
	require.NoError(t, showPlan(context.Background(), mem, &out, rec.ID, false))
	assert.Contains(t, out.String(), "VENTURE PLAN")
	assert.Contains(t, out.String(), "EXECUTIVE BRIEF")

	out.Reset()
	require.NoError(t, showPlan(context.Background(), mem, &out, rec.ID, true))
	var decoded types.PlanRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, rec.ID, decoded.ID)

	err := showPlan(context.Background(), mem, &out, uuid.New(), false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateTasks(t *testing.T) {
	mem, rec := storedPlan(t)

	var out bytes.Buffer
	require.NoError(t, updateTasks(context.Background(), mem, &out, rec.ID, []string{"OPS-01", "OPS-02"}, nil))
	assert.Contains(t, out.String(), "[x] OPS-01")
	assert.Contains(t, out.String(), "[x] OPS-02")

	out.Reset()
	require.NoError(t, updateTasks(context.Background(), mem, &out, rec.ID, nil, []string{"OPS-02"}))
	assert.Contains(t, out.String(), "[ ] OPS-02")

	stored, err := mem.GetPlan(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Version)
	assert.True(t, stored.Plan.ActionPlan.FindTask("OPS-01").Completed)

	err = updateTasks(context.Background(), mem, &out, rec.ID, []string{"NOPE-01"}, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPickOpportunity(t *testing.T) {
	first, second := wallArt(), wallArt()
	second.Name = "Local SEO Audit Service"
	d := &types.Discovery{ID: uuid.New(), Opportunities: []types.RankedOpportunity{
		{Opportunity: second, Rank: 2},
		{Opportunity: first, Rank: 1},
	}}

	opp, err := pickOpportunity(d, 1, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, opp.ID)

	opp, err = pickOpportunity(d, 0, second.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Local SEO Audit Service", opp.Name)

	_, err = pickOpportunity(d, 3, "")
	assert.Error(t, err)

	_, err = pickOpportunity(d, 0, uuid.NewString())
	assert.ErrorIs(t, err, pipeline.ErrUnknownOpportunity)
}

func TestReadOpportunity(t *testing.T) {
	dir := t.TempDir()
	opp := wallArt()
	opp.ID = uuid.Nil
	data, err := json.Marshal(opp)
	require.NoError(t, err)
	path := filepath.Join(dir, "opp.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	got, err := readOpportunity(path)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID, "a missing ID is assigned")
	assert.Equal(t, opp.Name, got.Name)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"opportunityName": "x"}`), 0644))
	_, err = readOpportunity(bad)
	assert.Error(t, err)
}

func TestPromptBuildMode(t *testing.T) {
	var out bytes.Buffer
	ask := promptBuildMode(strings.NewReader("hybrid\nOutsourced\n"), &out)

	mode, err := ask(context.Background(), pipeline.Status{})
	require.NoError(t, err)
	assert.Equal(t, types.BuildModeOutSourced, mode)
	assert.Contains(t, out.String(), "invalid build mode")

	ask = promptBuildMode(strings.NewReader(""), &out)
	_, err = ask(context.Background(), pipeline.Status{})
	assert.Error(t, err)
}

func TestPromptBuildMode_CancelledWhileWaiting(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()
	ask := promptBuildMode(in, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := ask(ctx, pipeline.Status{})
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("prompt ignored the cancelled context")
	}
}

func TestDiscoveryRequest(t *testing.T) {
	t.Cleanup(func() {
		discoverInterests, discoverInputFile, discoverFocus = "", "", ""
		discoverURLs = nil
	})

	_, err := discoveryRequest("")
	assert.Error(t, err, "no input at all")

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Handmade goods are trending on marketplaces.\n"), 0644))
	discoverInterests = "illustration"
	discoverInputFile = path
	req, err := discoveryRequest("fastest cash")
	require.NoError(t, err)
	assert.Equal(t, "illustration", req.Input.UserInterests)
	assert.Contains(t, req.Input.Context, "Handmade goods")
	assert.Equal(t, "fastest cash", req.Focus)

	discoverFocus = "lowest risk"
	req, err = discoveryRequest("fastest cash")
	require.NoError(t, err)
	assert.Equal(t, "lowest risk", req.Focus)
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "brief.json")
	require.NoError(t, os.WriteFile(good, []byte(stagestest.Brief), 0644))
	bad := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{}`), 0644))

	var out bytes.Buffer
	require.NoError(t, validateFile(&out, good, "", "executive-brief", 0))
	assert.Contains(t, out.String(), "Validation passed")

	out.Reset()
	err := validateFile(&out, bad, "", "executive-brief", 0)
	require.Error(t, err)
	assert.Contains(t, out.String(), "Validation failed")

	assert.Error(t, validateFile(&out, good, "", "executive-brief", 42))
	assert.Error(t, validateFile(&out, good, "", "", 0))
}

func TestListContracts(t *testing.T) {
	var out bytes.Buffer
	listContracts(&out)
	assert.Contains(t, out.String(), "extract-tasks")
	assert.Contains(t, out.String(), "[1 2 3 4 5]")
}
