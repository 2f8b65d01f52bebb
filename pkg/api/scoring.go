package api

import (
	"errors"
	"net/http"

	"github.com/rmax-ai/platformsim/pkg/scoring"
)

// handleSimulation returns the full simulation snapshot (GET) or changes
// the run controls (PATCH).
func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.session.Simulation())
	case http.MethodPatch:
		var req SimulationControl
		if err := decodeBody(r, &req); err != nil {
			writeBodyError(w, err)
			return
		}
		if req.Speed != nil {
			if err := s.session.SetSpeed(*req.Speed); err != nil {
				http.Error(w, `{"error":"invalid_speed"}`, http.StatusBadRequest)
				return
			}
		}
		if req.Running != nil {
			s.session.SetRunning(*req.Running)
		}
		writeJSON(w, http.StatusOK, s.session.Simulation())
	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.session.Simulation().Components)
	case http.MethodPost:
		s.addComponent(w, r)
	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) addComponent(w http.ResponseWriter, r *http.Request) {
	var req ComponentRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	c, err := scoring.NewComponent(req.Type)
	if err != nil {
		http.Error(w, `{"error":"unknown_component_type"}`, http.StatusBadRequest)
		return
	}
	if req.ID != "" {
		c.ID = req.ID
	}
	if req.Name != "" {
		c.Name = req.Name
	}
	if req.Config != nil {
		c.Config = *req.Config
	}
	if req.Connections != nil {
		c.Connections = req.Connections
	}
	c.Position = req.Position

	added, err := s.session.AddComponent(origin(r), c)
	if err != nil {
		if errors.Is(err, scoring.ErrDuplicateComponent) {
			http.Error(w, `{"error":"component_exists"}`, http.StatusConflict)
			return
		}
		http.Error(w, `{"error":"invalid_component"}`, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// handleComponent serves /v1/components/{id} and /v1/components/{id}/events.
func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/components/")
	if len(parts) == 2 && parts[1] == "events" {
		s.writeEntityEvents(w, r, parts[0])
		return
	}
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodGet:
		c, ok := s.session.Scoring().Component(id)
		if !ok {
			http.Error(w, `{"error":"component_not_found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, c)
	case http.MethodPatch:
		var u scoring.ComponentUpdate
		if err := decodeBody(r, &u); err != nil {
			writeBodyError(w, err)
			return
		}
		if !s.session.UpdateComponent(origin(r), id, u) {
			http.Error(w, `{"error":"component_not_found"}`, http.StatusNotFound)
			return
		}
		c, _ := s.session.Scoring().Component(id)
		writeJSON(w, http.StatusOK, c)
	case http.MethodDelete:
		if !s.session.RemoveComponent(origin(r), id) {
			http.Error(w, `{"error":"component_not_found"}`, http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	issues := s.session.Simulation().Issues
	if sev := scoring.Severity(r.URL.Query().Get("severity")); sev != "" {
		filtered := make([]scoring.Issue, 0, len(issues))
		for _, is := range issues {
			if is.Severity == sev {
				filtered = append(filtered, is)
			}
		}
		issues = filtered
	}
	writeJSON(w, http.StatusOK, issues)
}

// handleIssue serves POST /v1/issues/{id}/resolve. With wait=false the fix
// is scheduled and lands after the resolve delay.
func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/issues/")
	if len(parts) != 2 || parts[1] != "resolve" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	id := parts[0]

	if r.URL.Query().Get("wait") == "false" {
		if !s.session.ScheduleResolve(origin(r), id) {
			http.Error(w, `{"error":"issue_not_found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusAccepted, ResolveResponse{IssueID: id, Scheduled: true})
		return
	}
	if !s.session.ResolveIssue(origin(r), id) {
		http.Error(w, `{"error":"issue_not_found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{IssueID: id})
}

// handleCheckpoints lists checkpoints (GET) or runs the pipeline over every
// component (POST).
func (s *Server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.session.Scoring().Checkpoints())
	case http.MethodPost:
		writeJSON(w, http.StatusOK, s.session.EvaluatePipeline(origin(r)))
	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

// handleCheckpoint serves POST /v1/checkpoints/evaluate and
// POST /v1/checkpoints/{id}/rerun.
func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r.URL.Path, "/v1/checkpoints/")
	switch {
	case len(parts) == 1 && parts[0] == "evaluate":
		s.evaluateCheckpoint(w, r)
	case len(parts) == 2 && parts[1] == "rerun":
		if !s.session.RerunCheckpoint(origin(r), parts[0]) {
			http.Error(w, `{"error":"checkpoint_not_found"}`, http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) evaluateCheckpoint(w http.ResponseWriter, r *http.Request) {
	var req CheckpointRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if !req.Type.Valid() {
		http.Error(w, `{"error":"unknown_checkpoint_type"}`, http.StatusBadRequest)
		return
	}
	cp, err := s.session.CheckComponent(origin(r), req.Type, req.ComponentID)
	if err != nil {
		if errors.Is(err, scoring.ErrComponentNotFound) {
			http.Error(w, `{"error":"component_not_found"}`, http.StatusNotFound)
			return
		}
		s.logger.Error("checkpoint_failed", "trace_id", getTraceID(r.Context()), "error", err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cp)
}
