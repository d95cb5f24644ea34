// Package server provides the HTTP API of the venture planner.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/venture-planner/internal/config"
	"github.com/jonathan/venture-planner/internal/pipeline"
	"github.com/jonathan/venture-planner/internal/server/middleware"
	"github.com/jonathan/venture-planner/internal/server/ratelimit"
	"github.com/jonathan/venture-planner/internal/store"
)

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	orch        *pipeline.Orchestrator
	store       store.PlanStore
	rateLimiter *ratelimit.Limiter
	authHandler *AuthHandler
	jwtService  *JWTService

	// runs started over HTTP outlive their request and end with the server
	runCtx   context.Context
	stopRuns context.CancelFunc
}

// Config holds server configuration
type Config struct {
	Addr         string
	Orchestrator *pipeline.Orchestrator
	// Auth enables bearer-token authentication. The plan store must also implement store.UserStore.
	Auth *config.AuthConfig
	// RateLimit defaults to the RATE_LIMIT_* environment variables.
	RateLimit *ratelimit.Config
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Orchestrator == nil || cfg.Orchestrator.Store == nil {
		return nil, errors.New("server requires an orchestrator with a plan store")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = ratelimit.LoadConfig()
	}

	s := &Server{
		orch:        cfg.Orchestrator,
		store:       cfg.Orchestrator.Store,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
	}
	s.runCtx, s.stopRuns = context.WithCancel(context.Background())

	if cfg.Auth != nil {
		users, ok := s.store.(store.UserStore)
		if !ok {
			return nil, fmt.Errorf("authentication needs user accounts, which the %T store does not keep", s.store)
		}
		s.jwtService = NewJWTService(cfg.Auth.JWT)
		s.authHandler = NewAuthHandler(NewUserService(users, cfg.Auth.Password), s.jwtService)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.authHandler != nil {
		mux.HandleFunc("POST /auth/register", s.authHandler.Register)
		mux.HandleFunc("POST /auth/login", s.authHandler.Login)
	}

	// Discovery
	mux.HandleFunc("POST /discover", s.handleDiscover)
	mux.HandleFunc("GET /discoveries", s.handleListDiscoveries)
	mux.HandleFunc("GET /discoveries/{id}", s.handleGetDiscovery)
	mux.HandleFunc("POST /ventures/prioritize", s.handlePrioritize)

	// Runs
	mux.HandleFunc("POST /runs", s.handleStartRun)
	mux.HandleFunc("POST /runs/stream", s.handleStartRunStream)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/events", s.handleRunEvents)
	mux.HandleFunc("POST /runs/{id}/opportunity", s.handleSelectOpportunity)
	mux.HandleFunc("POST /runs/{id}/build-mode", s.handleSelectBuildMode)
	mux.HandleFunc("DELETE /runs/{id}", s.handleCancelRun)

	// Plans
	mux.HandleFunc("GET /plans", s.handleListPlans)
	mux.HandleFunc("GET /plans/{id}", s.handleGetPlan)
	mux.HandleFunc("DELETE /plans/{id}", s.handleDeletePlan)
	mux.HandleFunc("PUT /plans/{id}/tasks/{task_id}", s.handleSetTask)
	mux.HandleFunc("POST /plans/{id}/refinalize", s.handleRefinalize)

	var handler http.Handler = mux
	if s.jwtService != nil {
		handler = middleware.Authenticate(s.jwtService.AsTokenValidator(), isPublic)(handler)
	}

	s.httpServer = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.withRateLimit(s.withLogging(s.withCORS(handler))),
		ReadTimeout: 30 * time.Second,
		// no WriteTimeout: event streams stay open while a run waits for a build mode
		IdleTimeout: 60 * time.Second,
	}

	return s, nil
}

// isPublic reports whether a request is served without a token.
func isPublic(r *http.Request) bool {
	return r.URL.Path == "/health" || strings.HasPrefix(r.URL.Path, "/auth/") || r.Method == http.MethodOptions
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.Close()
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.stopRuns()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.Close()
	log.Println("Server stopped")
	return nil
}

// Close cancels active runs and stops background work. The plan store is left open.
func (s *Server) Close() {
	s.stopRuns()
	s.rateLimiter.Stop()
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients over their budget with 429.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps err to a status with HTTPStatus and logs server-side failures.
func writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[error] %v", err)
	}
	errorResponse(w, status, err.Error())
}

// decodeJSON decodes the request body into v and answers 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		errorResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// pathID parses the UUID path value name and answers 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: %q", name, r.PathValue(name)))
		return uuid.Nil, false
	}
	return id, true
}

// queryLimit reads ?limit=, where zero means the store default.
func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// clientID identifies the caller for rate limiting by remote IP.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d", info.Limit, info.Remaining)
	jsonResponse(w, http.StatusTooManyRequests, response)
}
