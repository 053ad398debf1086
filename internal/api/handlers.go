package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mdvrp/internal/model"
	"mdvrp/internal/runner"
)

// RunsHandler handles POST/GET /v1/runs
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		req, err := s.decodeRunRequest(r)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid run request", err.Error(), r.URL.Path)
			return
		}
		p, err := runner.ProblemFor(req, s.Config.InstanceDir, s.Runner.Limits.MaxNodes)
		if err != nil {
			writeError(w, r, "Load instance failed", err)
			return
		}
		run, err := s.Runner.Submit(r.Context(), req, p)
		if err != nil {
			writeError(w, r, "Create run failed", err)
			return
		}
		w.Header().Set("Location", "/v1/runs/"+run.ID)
		writeJSON(w, http.StatusAccepted, run)
	case http.MethodGet:
		q := r.URL.Query()
		limit := 0
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be a non-negative integer", r.URL.Path)
				return
			}
			limit = n
		}
		items, next, err := s.Store.ListRuns(r.Context(), q.Get("status"), q.Get("cursor"), limit)
		if err != nil {
			writeError(w, r, "List runs failed", err)
			return
		}
		if items == nil {
			items = []model.Run{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// RunByIDHandler handles GET /v1/runs/{id}, /v1/runs/{id}/snapshots and
// the /v1/runs/{id}/events WebSocket.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/runs/"), "/"), "/")
	id := parts[0]
	if id == "" || len(parts) > 2 {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, r, "Get run failed", err)
		return
	}

	switch sub {
	case "":
		writeJSON(w, http.StatusOK, run)
	case "snapshots":
		snaps, err := s.Store.ListSnapshots(r.Context(), id)
		if err != nil {
			writeError(w, r, "List snapshots failed", err)
			return
		}
		if snaps == nil {
			snaps = []model.Snapshot{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": snaps})
	case "events":
		s.RunEventsHandler(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

// DefaultParamsHandler handles GET /v1/params/defaults
func (s *Server) DefaultParamsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"generations": s.Config.Generations,
		"reportEvery": s.Config.DrawRate,
		"params":      s.Config.Params(),
	})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
