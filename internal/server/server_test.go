package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/venture-planner/internal/config"
	"github.com/jonathan/venture-planner/internal/generation"
	"github.com/jonathan/venture-planner/internal/llm"
	"github.com/jonathan/venture-planner/internal/llm/llmtest"
	"github.com/jonathan/venture-planner/internal/pipeline"
	"github.com/jonathan/venture-planner/internal/server/ratelimit"
	"github.com/jonathan/venture-planner/internal/stages"
	"github.com/jonathan/venture-planner/internal/stages/stagestest"
	"github.com/jonathan/venture-planner/internal/store"
	"github.com/jonathan/venture-planner/internal/types"
)

type testEnv struct {
	srv   *Server
	h     http.Handler
	store *store.Memory
	mock  *llmtest.MockClient
	token string
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	mock := stagestest.Client(nil)
	mem := store.NewMemory()
	orch := pipeline.New(stages.NewRunner(generation.New(mock)), mem)
	orch.Logger = log.New(io.Discard, "", 0)
	orch.Retry = pipeline.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 2}

	cfg := Config{Orchestrator: orch, RateLimit: &ratelimit.Config{Enabled: false}}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, h: srv.Handler(), store: mem, mock: mock}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			r = strings.NewReader(s)
		} else {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			r = bytes.NewReader(b)
		}
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func wallArt() types.Opportunity {
	return types.Opportunity{
		Name:        "Digital Wall Art Shop",
		Description: "Sell AI-assisted printable wall art on Etsy and Shopify to home decor buyers.",
		Potential:   "High",
		Risk:        "Medium",
		QuickReturn: "Short",
		Priority:    "8",
	}
}

func (e *testEnv) waitState(t *testing.T, runID string, want pipeline.State) pipeline.Status {
	t.Helper()
	var st pipeline.Status
	require.Eventually(t, func() bool {
		w := e.do(t, http.MethodGet, "/runs/"+runID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		st = decode[pipeline.Status](t, w)
		return st.State == want
	}, 5*time.Second, 5*time.Millisecond, "run never reached %s", want)
	return st
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestDiscoverAndFetch(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/discover", map[string]any{
		"input": map[string]string{"userInterests": "design, automation"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	d := decode[types.Discovery](t, w)
	require.Len(t, d.Opportunities, 3)
	assert.Equal(t, types.DefaultRankingFocus, d.Focus)

	w = env.do(t, http.MethodGet, "/discoveries/"+d.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, d.ID, decode[types.Discovery](t, w).ID)

	w = env.do(t, http.MethodGet, "/discoveries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.Discovery](t, w), 1)

	w = env.do(t, http.MethodGet, "/discoveries/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/discoveries/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiscover_RejectsEmptyInput(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/discover", map[string]any{"input": map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/discover", `{"input": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.mock.CallCount(""))
}

func TestDiscover_ProviderFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.GenerateStructuredFunc = func(_ context.Context, _ llm.Request) (string, error) {
		return "", errors.New("upstream unavailable")
	}

	w := env.do(t, http.MethodPost, "/discover", map[string]any{
		"input": map[string]string{"marketTrends": "remote work"},
	})
	assert.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
}

func TestPrioritize(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/ventures/prioritize", types.VentureInput{
		MarketData: "print on demand is growing", UserSkills: "illustration", RiskTolerance: "low",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode[types.VenturePriorities](t, w).PrioritizedVentures, "Printable wall art")

	w = env.do(t, http.MethodPost, "/ventures/prioritize", types.VentureInput{MarketData: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/runs", map[string]any{"opportunity": wallArt()})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	runID := decode[map[string]string](t, w)["run_id"]
	require.NotEmpty(t, runID)
	assert.Equal(t, "/runs/"+runID, w.Header().Get("Location"))

	st := env.waitState(t, runID, pipeline.StateAwaitingBuildMode)
	require.NotNil(t, st.Advice)

	w = env.do(t, http.MethodPost, "/runs/"+runID+"/build-mode", map[string]string{"build_mode": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/runs/"+runID+"/build-mode", map[string]string{"build_mode": "out-sourced"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/runs/"+runID+"/build-mode", map[string]string{"build_mode": "in-house"})
	assert.Equal(t, http.StatusConflict, w.Code)

	st = env.waitState(t, runID, pipeline.StateDone)
	require.NotNil(t, st.Plan)
	planID := st.Plan.ID.String()

	w = env.do(t, http.MethodGet, "/plans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	plans := decode[[]types.PlanSummary](t, w)
	require.Len(t, plans, 1)
	assert.Equal(t, "Digital Wall Art Shop", plans[0].OpportunityName)

	w = env.do(t, http.MethodGet, "/plans/"+planID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[types.PlanRecord](t, w)
	assert.Equal(t, types.BuildModeOutSourced, rec.Plan.BuildMode)

	// finished runs are forgotten, not cancelled
	w = env.do(t, http.MethodDelete, "/runs/"+runID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, "/runs/"+runID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartRun_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/runs", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/runs", map[string]any{"opportunity": wallArt(), "build_mode": "hybrid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	opp := wallArt()
	opp.Name = ""
	w = env.do(t, http.MethodPost, "/runs", map[string]any{"opportunity": opp})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/runs", map[string]any{"discovery_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/runs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunFromDiscovery_SelectOpportunity(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/discover", map[string]any{
		"input": map[string]string{"userInterests": "design"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	d := decode[types.Discovery](t, w)

	w = env.do(t, http.MethodPost, "/runs", map[string]any{"discovery_id": d.ID, "build_mode": "in-house"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	runID := decode[map[string]string](t, w)["run_id"]

	require.Eventually(t, func() bool {
		w := env.do(t, http.MethodPost, "/runs/"+runID+"/opportunity", map[string]string{"opportunity_id": uuid.NewString()})
		return w.Code == http.StatusBadRequest
	}, 5*time.Second, 5*time.Millisecond, "run never accepted a selection")

	w = env.do(t, http.MethodPost, "/runs/"+runID+"/opportunity", map[string]string{"opportunity_id": d.Opportunities[0].ID.String()})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	st := env.waitState(t, runID, pipeline.StateDone)
	assert.Equal(t, types.BuildModeInHouse, st.Plan.Plan.BuildMode)
	assert.Equal(t, d.Opportunities[0].Name, st.Plan.Plan.Opportunity.Name)
}

func TestCancelRun(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/runs", map[string]any{"opportunity": wallArt()})
	require.Equal(t, http.StatusAccepted, w.Code)
	runID := decode[map[string]string](t, w)["run_id"]
	env.waitState(t, runID, pipeline.StateAwaitingBuildMode)

	w = env.do(t, http.MethodDelete, "/runs/"+runID, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	st := env.waitState(t, runID, pipeline.StateError)
	assert.Equal(t, string(pipeline.KindCancelled), st.ErrorKind)
	require.NotNil(t, st.Rollback)
	assert.Equal(t, "Digital Wall Art Shop", st.Rollback.Opportunity.Name)
}

func (e *testEnv) completedPlan(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/runs", map[string]any{"opportunity": wallArt(), "build_mode": "out-sourced"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	st := e.waitState(t, decode[map[string]string](t, w)["run_id"], pipeline.StateDone)
	return st.Plan.ID.String()
}

func TestPlanTasks(t *testing.T) {
	env := newTestEnv(t, nil)
	planID := env.completedPlan(t)

	w := env.do(t, http.MethodPut, "/plans/"+planID+"/tasks/OPS-01", map[string]bool{"completed": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := decode[types.PlanRecord](t, w)
	assert.Equal(t, 2, rec.Version)
	assert.True(t, rec.Plan.ActionPlan.FindTask("OPS-01").Completed)

	w = env.do(t, http.MethodPut, "/plans/"+planID+"/tasks/NOPE-99", map[string]bool{"completed": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPut, "/plans/"+planID+"/tasks/OPS-01", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefinalizeAndDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	planID := env.completedPlan(t)

	w := env.do(t, http.MethodPost, "/plans/"+planID+"/refinalize", map[string]string{"build_mode": "in-house"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[pipeline.RefinalizeResult](t, w)
	assert.Equal(t, types.BuildModeInHouse, res.Record.Plan.BuildMode)
	assert.Contains(t, res.Diff, "in-house")

	w = env.do(t, http.MethodPost, "/plans/"+planID+"/refinalize", map[string]string{"build_mode": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/plans/"+planID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, "/plans/"+planID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodDelete, "/plans/"+planID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamRun(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.h)
	defer ts.Close()

	body, err := json.Marshal(map[string]any{"opportunity": wallArt(), "build_mode": "out-sourced"})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/runs/stream", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	stream := string(raw)
	assert.Contains(t, stream, "event: progress")
	assert.Contains(t, stream, "event: complete")
	assert.NotContains(t, stream, "event: error")
	assert.Contains(t, stream, fmt.Sprintf(`"state":%q`, pipeline.StateFinalizing))
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Auth = &config.AuthConfig{
			JWT:      config.JWTConfig{Secret: "test-secret-test-secret-test-secret", Expiration: time.Hour},
			Password: config.PasswordConfig{BcryptCost: 4},
		}
	})

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil).Code)

	w := env.do(t, http.MethodGet, "/plans", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	reg := map[string]string{"name": "Ada Byron", "email": "ada@example.com", "password": "correct-horse"}
	w = env.do(t, http.MethodPost, "/auth/register", reg)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[types.TokenResponse](t, w).Token)

	w = env.do(t, http.MethodPost, "/auth/register", reg)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "ada@example.com", "password": "wrong-horse"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "ada@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[types.TokenResponse](t, w)
	assert.Equal(t, "Ada Byron", login.User.Name)

	env.token = login.Token
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/plans", nil).Code)

	env.token = "garbage"
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/plans", nil).Code)
}

func TestAuth_RoutesAbsentWhenDisabled(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "a@b.co", "password": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.RateLimit = &ratelimit.Config{
			Enabled:       true,
			DefaultLimit:  1000,
			DefaultWindow: time.Minute,
			EndpointConfigs: []ratelimit.EndpointConfig{
				{Path: "/ventures/prioritize", Method: http.MethodPost, Limit: 1, Window: time.Hour},
			},
		}
	})
	in := types.VentureInput{MarketData: "m", UserSkills: "s", RiskTolerance: "r"}

	w := env.do(t, http.MethodPost, "/ventures/prioritize", in)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = env.do(t, http.MethodPost, "/ventures/prioritize", in)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decode[map[string]any](t, w)["error"])

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodOptions, "/runs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestNew_AuthNeedsUserStore(t *testing.T) {
	orch := pipeline.New(stages.NewRunner(generation.New(stagestest.Client(nil))), plansOnly{store.NewMemory()})
	_, err := New(Config{Orchestrator: orch, Auth: &config.AuthConfig{JWT: config.JWTConfig{Secret: "s"}}})
	require.Error(t, err)

	_, err = New(Config{})
	require.Error(t, err)
}

// plansOnly hides the user methods of a store.
type plansOnly struct{ store.PlanStore }
