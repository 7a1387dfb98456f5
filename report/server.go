// Package report provides the HTTP reporting surface for a harness
// run: live verdict, violation details, run history and metrics.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	skew "skew"
	"skew/monitor"
	"skew/store"
)

// Run is the view of a harness run the server reports on.
type Run interface {
	RunID() string
	Verdict() *skew.Verdict
	Clients() []*skew.VirtualClient
	Clean() bool
}

// ReportServer serves the run report over HTTP.
type ReportServer struct {
	addr     string
	run      Run
	history  store.Store
	monitor  *monitor.Monitor
	registry prometheus.Gatherer
	mux      *http.ServeMux
	server   *http.Server

	// State
	mu      sync.Mutex
	running bool
}

// Option configures a ReportServer.
type Option func(*ReportServer)

// WithAddr sets the server address.
func WithAddr(addr string) Option {
	return func(s *ReportServer) {
		s.addr = addr
	}
}

// WithRun sets the run to report on.
func WithRun(run Run) Option {
	return func(s *ReportServer) {
		s.run = run
	}
}

// WithHistory sets the run-history store.
func WithHistory(h store.Store) Option {
	return func(s *ReportServer) {
		s.history = h
	}
}

// WithMonitor sets the run monitor whose stats are exposed.
func WithMonitor(m *monitor.Monitor) Option {
	return func(s *ReportServer) {
		s.monitor = m
	}
}

// WithRegistry sets the Prometheus registry served at /metrics.
func WithRegistry(g prometheus.Gatherer) Option {
	return func(s *ReportServer) {
		s.registry = g
	}
}

// NewReportServer creates a report server with the given options.
func NewReportServer(opts ...Option) *ReportServer {
	s := &ReportServer{
		addr:     ":9090",
		registry: prometheus.DefaultGatherer,
		mux:      http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()

	return s
}

// setupRoutes configures all HTTP routes.
func (s *ReportServer) setupRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /api/verdict", s.handleVerdict)
	s.mux.HandleFunc("GET /api/violations", s.handleViolations)
	s.mux.HandleFunc("GET /api/clients", s.handleClients)
	s.mux.HandleFunc("GET /api/monitor/stats", s.handleMonitorStats)
	s.mux.HandleFunc("GET /api/runs", s.handleListRuns)
	s.mux.HandleFunc("GET /api/runs/{runID}", s.handleGetRun)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

// Start starts the server. Blocks until the server exits.
func (s *ReportServer) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.mux,
	}
	s.mu.Unlock()

	return s.server.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *ReportServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	server := s.server
	s.mu.Unlock()

	if server != nil {
		return server.Shutdown(ctx)
	}
	return nil
}

// Handler returns the HTTP handler for testing.
func (s *ReportServer) Handler() http.Handler {
	return s.mux
}

// APIResponse is the uniform API response envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError carries the error detail of a failed API call.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeRunNotFound    = "RUN_NOT_FOUND"
	ErrCodeNotConfigured  = "NOT_CONFIGURED"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response.
func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}

// handleHealthz GET /healthz
func (s *ReportServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VerdictResponse is the live verdict of the current run.
type VerdictResponse struct {
	RunID             string  `json:"run_id"`
	TotalProbes       int64   `json:"total_probes"`
	BlockedCount      int64   `json:"blocked_count"`
	ViolatedCount     int64   `json:"violated_count"`
	AmbiguousCount    int64   `json:"ambiguous_count"`
	AmbiguousFraction float64 `json:"ambiguous_fraction"`
	Clean             bool    `json:"clean"`
}

// handleVerdict GET /api/verdict
func (s *ReportServer) handleVerdict(w http.ResponseWriter, r *http.Request) {
	if s.run == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "no run attached")
		return
	}

	snapshot := s.run.Verdict().Snapshot()
	resp := VerdictResponse{
		RunID:          s.run.RunID(),
		TotalProbes:    snapshot.TotalProbes,
		BlockedCount:   snapshot.BlockedCount,
		ViolatedCount:  snapshot.ViolatedCount,
		AmbiguousCount: snapshot.AmbiguousCount,
		Clean:          s.run.Clean(),
	}
	if snapshot.TotalProbes > 0 {
		resp.AmbiguousFraction = float64(snapshot.AmbiguousCount) / float64(snapshot.TotalProbes)
	}

	writeSuccess(w, resp)
}

// handleViolations GET /api/violations
func (s *ReportServer) handleViolations(w http.ResponseWriter, r *http.Request) {
	if s.run == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "no run attached")
		return
	}

	violations := s.run.Verdict().Violations()
	writeSuccess(w, map[string]interface{}{
		"run_id":     s.run.RunID(),
		"count":      len(violations),
		"violations": violations,
	})
}

// ClientSummary is the per-client view of the current run.
type ClientSummary struct {
	ClientID string `json:"client_id"`
	Eligible bool   `json:"eligible"`
	MemberID string `json:"member_id,omitempty"`
}

// handleClients GET /api/clients
func (s *ReportServer) handleClients(w http.ResponseWriter, r *http.Request) {
	if s.run == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "no run attached")
		return
	}

	clients := s.run.Clients()
	summaries := make([]ClientSummary, 0, len(clients))
	eligible := 0
	for _, c := range clients {
		if c.Eligible() {
			eligible++
		}
		summaries = append(summaries, ClientSummary{
			ClientID: c.ID(),
			Eligible: c.Eligible(),
			MemberID: c.MemberID(),
		})
	}

	writeSuccess(w, map[string]interface{}{
		"total":    len(clients),
		"eligible": eligible,
		"clients":  summaries,
	})
}

// handleMonitorStats GET /api/monitor/stats
func (s *ReportServer) handleMonitorStats(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "no monitor attached")
		return
	}

	writeSuccess(w, s.monitor.Stats())
}

// handleListRuns GET /api/runs
func (s *ReportServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "no run history configured")
		return
	}

	filter := parseRunFilter(r)
	runs, total, err := s.history.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeSuccess(w, map[string]interface{}{
		"runs":  runs,
		"total": total,
	})
}

// parseRunFilter parses query parameters into a RunFilter.
func parseRunFilter(r *http.Request) *store.RunFilter {
	filter := store.NewRunFilter().WithPagination(20, 0)

	if statuses := r.URL.Query()["status"]; len(statuses) > 0 {
		for _, st := range statuses {
			filter.Status = append(filter.Status, store.RunStatus(st))
		}
	}

	if r.URL.Query().Get("unclean") == "true" {
		filter.UncleanOnly = true
	}

	if startTime := r.URL.Query().Get("start_time"); startTime != "" {
		if t, err := time.Parse(time.RFC3339, startTime); err == nil {
			filter.StartTime = t
		}
	}
	if endTime := r.URL.Query().Get("end_time"); endTime != "" {
		if t, err := time.Parse(time.RFC3339, endTime); err == nil {
			filter.EndTime = t
		}
	}

	if pageSize := r.URL.Query().Get("page_size"); pageSize != "" {
		var ps int
		fmt.Sscanf(pageSize, "%d", &ps)
		if ps > 0 && ps <= 100 {
			filter.Limit = ps
		}
	}
	if page := r.URL.Query().Get("page"); page != "" {
		var p int
		fmt.Sscanf(page, "%d", &p)
		if p > 0 {
			filter.Offset = (p - 1) * filter.Limit
		}
	}

	return filter
}

// handleGetRun GET /api/runs/{runID}
func (s *ReportServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "no run history configured")
		return
	}

	runID := r.PathValue("runID")
	if runID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "run ID is required")
		return
	}

	run, err := s.history.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, skew.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeRunNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	violations, err := s.history.GetViolations(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeSuccess(w, map[string]interface{}{
		"run":        run,
		"violations": violations,
	})
}
