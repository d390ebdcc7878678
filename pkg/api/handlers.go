package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ethpandaops/buildmatrixoor/pkg/jobtree"
	"github.com/ethpandaops/buildmatrixoor/pkg/report"
	"github.com/ethpandaops/buildmatrixoor/pkg/runner"
)

const defaultHistoryLimit = 50

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

type healthResponse struct {
	Status      string     `json:"status"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// handleHealth returns server health and the age of the report.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}

	if snap := s.refresher.Latest(); snap != nil {
		generatedAt := snap.Matrix.GeneratedAt.UTC()
		resp.GeneratedAt = &generatedAt
	} else {
		resp.Status = "pending"
	}

	if err := s.refresher.LastError(); err != nil {
		resp.LastError = err.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

// latest returns the current snapshot or writes a 503.
func (s *server) latest(w http.ResponseWriter) *runner.Snapshot {
	snap := s.refresher.Latest()
	if snap == nil {
		w.Header().Set("Retry-After", "10")
		writeJSON(w, http.StatusServiceUnavailable,
			errorResponse{"report not generated yet"})
	}

	return snap
}

func (s *server) writeRendered(w http.ResponseWriter, format string) {
	snap := s.latest(w)
	if snap == nil {
		return
	}

	data, writer, err := report.Render(snap.Matrix, format)
	if err != nil {
		s.log.WithError(err).WithField("format", format).
			Error("Failed to render report")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"rendering report"})

		return
	}

	w.Header().Set("Content-Type", writer.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *server) handleReportHTML(w http.ResponseWriter, _ *http.Request) {
	s.writeRendered(w, report.FormatHTML)
}

func (s *server) handleReportText(w http.ResponseWriter, _ *http.Request) {
	s.writeRendered(w, report.FormatText)
}

func (s *server) handleReportJSON(w http.ResponseWriter, _ *http.Request) {
	s.writeRendered(w, report.FormatJSON)
}

type axesResponse struct {
	Discovered jobtree.View `json:"discovered"`
	Pruned     jobtree.View `json:"pruned"`
}

// handleAxes returns the axes of the latest snapshot before and after
// pruning.
func (s *server) handleAxes(w http.ResponseWriter, _ *http.Request) {
	snap := s.latest(w)
	if snap == nil {
		return
	}

	writeJSON(w, http.StatusOK, axesResponse{
		Discovered: snap.Discovered.View(),
		Pruned:     snap.Axes.View(),
	})
}

// handleRefresh runs a synchronous regeneration.
func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.refresher.Refresh(r.Context()); err != nil {
		s.log.WithError(err).Warn("Manual refresh failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{err.Error()})

		return
	}

	s.handleHealth(w, r)
}

// handleHistory lists exported snapshots, newest first.
func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	snaps, err := s.store.ListSnapshots(r.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("Failed to list snapshots")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing snapshots"})

		return
	}

	writeJSON(w, http.StatusOK, snaps)
}

// handleProjectHistory lists the exported cells of one project.
func (s *server) handleProjectHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	project := chi.URLParam(r, "project")

	cells, err := s.store.ListResults(r.Context(), project, limit)
	if err != nil {
		s.log.WithError(err).WithField("project", project).
			Error("Failed to list results")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing results"})

		return
	}

	writeJSON(w, http.StatusOK, cells)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"limit must be a positive integer"})

		return 0, false
	}

	return limit, true
}
