package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hochfrequenz/regression-orchestrator/internal/domain"
	"github.com/hochfrequenz/regression-orchestrator/internal/runstore"
)

// RunResponse is the API response for a run
type RunResponse struct {
	ID         string         `json:"id"`
	RunDir     string         `json:"run_dir,omitempty"`
	Project    string         `json:"project"`
	Kind       string         `json:"kind"`
	Seed       int64          `json:"seed"`
	DryRun     bool           `json:"dry_run"`
	Verdict    string         `json:"verdict,omitempty"`
	Status     string         `json:"status"`
	ExitCode   int            `json:"exit_code"`
	Error      string         `json:"error,omitempty"`
	StartedAt  string         `json:"started_at"`
	FinishedAt *string        `json:"finished_at,omitempty"`
	Duration   string         `json:"duration"`
	Steps      []StepResponse `json:"steps,omitempty"`
}

// StepResponse is the API response for one step of a run
type StepResponse struct {
	Step     string `json:"step"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// StatusResponse counts runs by final status token
type StatusResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

func runToResponse(r *domain.Run) RunResponse {
	resp := RunResponse{
		ID:        r.ID,
		RunDir:    r.RunDir,
		Project:   r.Project,
		Kind:      string(r.Kind),
		Seed:      r.Seed,
		DryRun:    r.DryRun,
		Verdict:   string(r.Verdict),
		Status:    string(r.Status),
		ExitCode:  r.ExitCode,
		Error:     r.Error,
		StartedAt: r.StartedAt.Format(time.RFC3339),
		Duration:  r.Duration().Round(time.Second).String(),
	}
	if r.FinishedAt != nil {
		t := r.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &t
	}
	for _, st := range r.Steps {
		resp.Steps = append(resp.Steps, StepResponse{
			Step:     string(st.Step),
			ExitCode: st.ExitCode,
			Error:    st.Error,
			Duration: st.Duration.Round(time.Second).String(),
		})
	}
	return resp
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		counts, err := s.store.CountByStatus()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		status := StatusResponse{ByStatus: make(map[string]int, len(counts))}
		for st, n := range counts {
			status.ByStatus[string(st)] = n
			status.Total += n
		}

		writeJSON(w, status)
	}
}

func (s *Server) listRunsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		opts := runstore.ListOptions{
			Project: r.URL.Query().Get("project"),
			Status:  domain.Status(r.URL.Query().Get("status")),
		}
		if limit := r.URL.Query().Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			opts.Limit = n
		}

		runs, err := s.store.ListRuns(opts)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]RunResponse, len(runs))
		for i, run := range runs {
			responses[i] = runToResponse(run)
		}

		writeJSON(w, responses)
	}
}

func (s *Server) getRunHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		// Path: /api/runs/{run_dir or id}
		ref := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		if ref == "" {
			writeError(w, http.StatusBadRequest, "run reference required")
			return
		}

		run, err := s.store.GetRun(ref)
		if errors.Is(err, runstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, runToResponse(run))
	}
}
