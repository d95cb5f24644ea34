package server

import (
	"fmt"
	"net/http"

	"github.com/jonathan/venture-planner/internal/pipeline"
	"github.com/jonathan/venture-planner/internal/store"
	"github.com/jonathan/venture-planner/internal/types"
)

// handleDiscover frames and ranks opportunities and returns the stored discovery.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req pipeline.DiscoveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.URLs) == 0 {
		if err := types.Validate(&req.Input); err != nil {
			writeError(w, err)
			return
		}
	}

	d, err := s.orch.Discover(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, d)
}

func (s *Server) handleListDiscoveries(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListDiscoveries(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []types.Discovery{}
	}
	jsonResponse(w, http.StatusOK, list)
}

func (s *Server) handleGetDiscovery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	d, err := s.store.GetDiscovery(r.Context(), id)
	if err == nil && d == nil {
		err = fmt.Errorf("discovery %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, d)
}

// handlePrioritize runs the standalone venture prioritization flow.
func (s *Server) handlePrioritize(w http.ResponseWriter, r *http.Request) {
	var in types.VentureInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := types.Validate(&in); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.orch.Runner.PrioritizeVentures(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, out)
}
