package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/venture-planner/internal/pipeline"
	"github.com/jonathan/venture-planner/internal/types"
)

type startRunRequest struct {
	Opportunity   *types.Opportunity         `json:"opportunity,omitempty"`
	DiscoveryID   uuid.UUID                  `json:"discovery_id,omitempty"`
	OpportunityID uuid.UUID                  `json:"opportunity_id,omitempty"`
	Discovery     *pipeline.DiscoveryRequest `json:"discovery,omitempty"`
	BuildMode     types.BuildMode            `json:"build_mode,omitempty"`
}

type selectOpportunityRequest struct {
	OpportunityID uuid.UUID `json:"opportunity_id"`
}

type selectBuildModeRequest struct {
	BuildMode types.BuildMode `json:"build_mode"`
}

// startRun starts a pipeline run bound to the server lifetime rather than the request.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) (*pipeline.Run, bool) {
	var req startRunRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	run, err := s.orch.Start(s.runCtx, pipeline.StartRequest{
		Opportunity:   req.Opportunity,
		DiscoveryID:   req.DiscoveryID,
		OpportunityID: req.OpportunityID,
		Discovery:     req.Discovery,
		BuildMode:     req.BuildMode,
	})
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return run, true
}

// handleStartRun starts a run and answers 202 with its ID.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.startRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Location", "/runs/"+run.ID.String())
	jsonResponse(w, http.StatusAccepted, map[string]string{"run_id": run.ID.String()})
}

// handleStartRunStream starts a run and streams its progress on the same connection.
func (s *Server) handleStartRunStream(w http.ResponseWriter, r *http.Request) {
	run, ok := s.startRun(w, r)
	if !ok {
		return
	}
	streamRun(w, r, run)
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*pipeline.Run, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	run, err := s.orch.Get(id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return run, true
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, run.Status())
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	streamRun(w, r, run)
}

func (s *Server) handleSelectOpportunity(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	var req selectOpportunityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OpportunityID == uuid.Nil {
		errorResponse(w, http.StatusBadRequest, "opportunity_id is required")
		return
	}
	if err := run.SelectOpportunity(req.OpportunityID); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusAccepted, run.Status())
}

func (s *Server) handleSelectBuildMode(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	var req selectBuildModeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := run.SelectBuildMode(req.BuildMode); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusAccepted, run.Status())
}

// handleCancelRun cancels an active run, or forgets a finished one.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	if run.Status().State.Terminal() {
		s.orch.Forget(run.ID)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	run.Cancel()
	jsonResponse(w, http.StatusAccepted, map[string]string{"run_id": run.ID.String(), "status": "cancelling"})
}
