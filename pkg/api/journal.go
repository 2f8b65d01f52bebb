package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rmax-ai/platformsim/pkg/reports"
	"github.com/rmax-ai/platformsim/pkg/session"
	"github.com/rmax-ai/platformsim/pkg/store"
)

// handleEvents returns the newest journal events, or the history of one
// entity with ?entity_id=.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if id := r.URL.Query().Get("entity_id"); id != "" {
		s.writeEntityEvents(w, r, id)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}
	events, err := s.session.Events(r.Context(), limit)
	s.writeEvents(w, r, events, err)
}

func (s *Server) writeEntityEvents(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	events, err := s.session.EntityEvents(r.Context(), id)
	s.writeEvents(w, r, events, err)
}

func (s *Server) writeEvents(w http.ResponseWriter, r *http.Request, events []*store.Event, err error) {
	if err != nil {
		if errors.Is(err, session.ErrNoJournal) {
			http.Error(w, `{"error":"journal_disabled"}`, http.StatusServiceUnavailable)
			return
		}
		s.logger.Error("failed_to_read_events", "trace_id", getTraceID(r.Context()), "error", err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*store.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

var reportFilters = []string{"severity", "component_id", "layer", "engine", "entity_id", "event_type"}

// handleReports streams a CSV report. from and to are RFC3339 and only
// apply to the events report; the default window is the last 24h.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	reportType := reports.ReportType(q.Get("type"))
	if reportType == "" {
		http.Error(w, `{"error":"missing_type"}`, http.StatusBadRequest)
		return
	}

	to := time.Now()
	if toStr := q.Get("to"); toStr != "" {
		var err error
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			http.Error(w, `{"error":"invalid_to","format":"RFC3339"}`, http.StatusBadRequest)
			return
		}
	}
	from := to.Add(-24 * time.Hour)
	if fromStr := q.Get("from"); fromStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			http.Error(w, `{"error":"invalid_from","format":"RFC3339"}`, http.StatusBadRequest)
			return
		}
	}

	params := reports.ReportParams{Start: from, End: to, Filters: make(map[string]string)}
	for _, key := range reportFilters {
		if v := q.Get(key); v != "" {
			params.Filters[key] = v
		}
	}

	gen, err := reports.NewReportGenerator(reportType, s.session)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"invalid_report_type","details":%q}`, err.Error()), http.StatusBadRequest)
		return
	}
	reader, err := gen.Generate(r.Context(), params)
	if err != nil {
		if errors.Is(err, session.ErrNoJournal) {
			http.Error(w, `{"error":"journal_disabled"}`, http.StatusServiceUnavailable)
			return
		}
		s.logger.Error("failed_to_generate_report", "trace_id", getTraceID(r.Context()), "error", err)
		http.Error(w, `{"error":"report_generation_failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	filename := fmt.Sprintf("report_%s_%d.csv", reportType, time.Now().Unix())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("failed_to_stream_report", "trace_id", getTraceID(r.Context()), "error", err)
	}
}
