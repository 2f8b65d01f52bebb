package api

import (
	"errors"
	"net/http"

	"github.com/rmax-ai/platformsim/pkg/scenario"
)

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Scenarios())
}

// handleScenarioLoad serves POST /v1/scenarios/{id}/load, which resets the
// simulation to the scenario's starting components.
func (s *Server) handleScenarioLoad(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/scenarios/")
	if len(parts) != 2 || parts[1] != "load" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	sc, err := s.session.LoadScenario(origin(r), parts[0])
	if err != nil {
		if errors.Is(err, scenario.ErrNotFound) {
			http.Error(w, `{"error":"scenario_not_found"}`, http.StatusNotFound)
			return
		}
		s.logger.Error("scenario_load_failed", "trace_id", getTraceID(r.Context()), "error", err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// handleCurrentScenario returns (GET) or clears (DELETE) the loaded scenario.
func (s *Server) handleCurrentScenario(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sc, ok := s.session.CurrentScenario()
		if !ok {
			http.Error(w, `{"error":"no_scenario"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, sc)
	case http.MethodDelete:
		s.session.ClearScenario(origin(r))
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.session.Progress()
	if !ok {
		http.Error(w, `{"error":"no_scenario"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
