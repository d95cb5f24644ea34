package server

import (
	"fmt"
	"net/http"

	"github.com/jonathan/venture-planner/internal/store"
	"github.com/jonathan/venture-planner/internal/types"
)

type setTaskRequest struct {
	Completed *bool `json:"completed"`
}

type refinalizeRequest struct {
	BuildMode types.BuildMode `json:"build_mode"`
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListPlans(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []types.PlanSummary{}
	}
	jsonResponse(w, http.StatusOK, list)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rec, err := s.store.GetPlan(r.Context(), id)
	if err == nil && rec == nil {
		err = fmt.Errorf("plan %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.store.DeletePlan(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetTask marks one task of a plan completed or open.
func (s *Server) handleSetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req setTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Completed == nil {
		errorResponse(w, http.StatusBadRequest, "completed is required")
		return
	}
	rec, err := store.SetTaskCompleted(r.Context(), s.store, id, r.PathValue("task_id"), *req.Completed)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

// handleRefinalize re-runs finalizing under another build mode and returns the new record with a diff.
func (s *Server) handleRefinalize(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req refinalizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.orch.Refinalize(r.Context(), id, req.BuildMode)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}
