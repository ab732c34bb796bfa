package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/steveyegge/beads-ui/internal/bdclient"
	"github.com/steveyegge/beads-ui/internal/supervisor"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.sup.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": s.version,
		"breaker": st.BreakerState,
	})
}

// handleReadiness reports not-ready while the breaker is open: bd is
// degraded and the dashboard cannot serve fresh data.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	st := s.sup.Stats()
	if st.BreakerState == "open" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"reason": "circuit breaker open",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests":   s.metrics.Snapshot(),
		"supervisor": s.sup.Stats(),
	})
}

func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := bdclient.ListFilter{
		Status:   q.Get("status"),
		Assignee: q.Get("assignee"),
		Label:    q.Get("label"),
		Priority: q.Get("priority"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("invalid limit %q", limit), http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}

	issues, err := s.bd.List(r.Context(), filter)
	if err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.bd.Show(r.Context(), r.PathValue("id"))
	if err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	issues, err := s.bd.Ready(r.Context())
	if err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) handleBlocked(w http.ResponseWriter, r *http.Request) {
	issues, err := s.bd.Blocked(r.Context())
	if err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.bd.Stats(r.Context())
	if err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.gt.Agents(r.Context())
	if err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.gt.Sessions(r.Context())
	if err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleTown(w http.ResponseWriter, r *http.Request) {
	status, err := s.gt.Status(r.Context())
	if err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleStatus reports supervisor state plus the workspace change
// generation, so dashboard clients can cheap-poll for invalidation.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"supervisor": s.sup.Stats(),
	}
	if s.watcher != nil {
		payload["workspace_generation"] = s.watcher.Generation()
		if last := s.watcher.LastChange(); !last.IsZero() {
			payload["workspace_changed_at"] = last.UTC().Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

// execRequest is the body of POST /api/exec. Only the whitelisted bd
// mutations are reachable; arbitrary commands are not.
type execRequest struct {
	Op string `json:"op"`

	// create
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	IssueType   string   `json:"issue_type,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
	Labels      []string `json:"labels,omitempty"`

	// update / close
	ID       string `json:"id,omitempty"`
	Status   string `json:"status,omitempty"`
	Assignee string `json:"assignee,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	var req execRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	switch req.Op {
	case "create":
		id, err := s.bd.Create(r.Context(), bdclient.CreateRequest{
			Title:       req.Title,
			Description: req.Description,
			IssueType:   req.IssueType,
			Priority:    priorityArg(req.Priority),
			Assignee:    req.Assignee,
			Labels:      req.Labels,
		})
		if err != nil {
			writeExecError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": id})

	case "update":
		err := s.bd.Update(r.Context(), req.ID, bdclient.UpdateRequest{
			Status:   req.Status,
			Priority: priorityArg(req.Priority),
			Assignee: req.Assignee,
		})
		if err != nil {
			writeExecError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": req.ID})

	case "close":
		if err := s.bd.Close(r.Context(), req.ID, req.Reason); err != nil {
			writeExecError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": req.ID})

	default:
		writeError(w, fmt.Errorf("unknown op %q (want create, update or close)", req.Op), http.StatusBadRequest)
	}
}

// priorityArg renders an optional priority. Absent means "not provided" —
// bd applies its own default on create and leaves the field alone on
// update — while an explicit 0 still reads as P0.
func priorityArg(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// writeExecError maps client-side validation failures to 400 and
// supervisor failures per writeSupervisorError.
func writeExecError(w http.ResponseWriter, err error) {
	if supervisorKind(err) == "" {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	writeSupervisorError(w, err)
}

// writeSupervisorError maps supervisor failure kinds to status codes:
// circuit open -> 503 (temporarily unavailable, with Retry-After),
// timeout -> 504, non-zero exit -> 502 (bd's own stderr forwarded),
// spawn -> 500 (installation problem).
func writeSupervisorError(w http.ResponseWriter, err error) {
	var (
		openErr    *supervisor.CircuitOpenError
		timeoutErr *supervisor.TimeoutError
		exitErr    *supervisor.ExitError
		spawnErr   *supervisor.SpawnError
	)
	switch {
	case errors.As(err, &openErr):
		w.Header().Set("Retry-After", strconv.Itoa(int(openErr.RetryAfter.Seconds())+1))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Kind:    "CircuitOpenError",
			Message: "temporarily unavailable: " + err.Error(),
		})
	case errors.As(err, &timeoutErr):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{
			Kind:    "TimeoutError",
			Message: "operation timed out: " + err.Error(),
			Stdout:  timeoutErr.Stdout,
			Stderr:  timeoutErr.Stderr,
		})
	case errors.As(err, &exitErr):
		code := exitErr.ExitCode
		writeJSON(w, http.StatusBadGateway, errorBody{
			Kind:     "NonZeroExitError",
			Message:  err.Error(),
			ExitCode: &code,
			Stdout:   exitErr.Stdout,
			Stderr:   exitErr.Stderr,
		})
	case errors.As(err, &spawnErr):
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Kind:    "SpawnError",
			Message: "setup problem: " + err.Error(),
		})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Kind:    "Canceled",
			Message: err.Error(),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Kind:    "InternalError",
			Message: err.Error(),
		})
	}
}

// supervisorKind returns the error's supervisor classification, or ""
// for errors that did not come from the supervisor.
func supervisorKind(err error) string {
	var (
		openErr    *supervisor.CircuitOpenError
		timeoutErr *supervisor.TimeoutError
		exitErr    *supervisor.ExitError
		spawnErr   *supervisor.SpawnError
	)
	switch {
	case errors.As(err, &openErr):
		return "CircuitOpenError"
	case errors.As(err, &timeoutErr):
		return "TimeoutError"
	case errors.As(err, &exitErr):
		return "NonZeroExitError"
	case errors.As(err, &spawnErr):
		return "SpawnError"
	default:
		return ""
	}
}

func writeError(w http.ResponseWriter, err error, status int) {
	writeJSON(w, status, errorBody{Kind: "BadRequest", Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
