// Package api exposes the HTTP surface: job management, on-demand
// analysis, and websocket job progress.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dex-wallet-tracker/internal/correlation"
	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/idhash"
	"dex-wallet-tracker/internal/storage"
)

// JobRunner executes a stored collection job. Implemented by
// orchestrator.Orchestrator.
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
}

// Analyzer computes trading metrics and event correlations.
// Implemented by correlation.Engine.
type Analyzer interface {
	Analyze(ctx context.Context, walletAddress string, startMs, endMs int64) (*domain.CorrelationMetrics, error)
	Correlate(ctx context.Context, m *domain.CorrelationMetrics) ([]domain.CorrelatedEvent, error)
}

// Server wires all HTTP routes.
type Server struct {
	jobs        storage.JobStore
	runner      JobRunner
	analyzer    Analyzer
	broadcaster *Broadcaster
	logger      logrus.FieldLogger
	mux         *http.ServeMux
	server      *http.Server

	now func() time.Time
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, jobs storage.JobStore, runner JobRunner, analyzer Analyzer, broadcaster *Broadcaster, logger logrus.FieldLogger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		jobs:        jobs,
		runner:      runner,
		analyzer:    analyzer,
		broadcaster: broadcaster,
		logger:      logger,
		mux:         mux,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		now: time.Now,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/collection/jobs", s.handleCreateJob)
	s.mux.HandleFunc("GET /api/collection/jobs/{jobID}", s.handleGetJob)
	s.mux.HandleFunc("GET /api/collection/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /api/analysis/{address}", s.handleAnalysis)
	s.mux.HandleFunc("GET /ws/jobs", s.broadcaster.Handler())
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins serving. Blocks until shutdown or a listener error.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// createJobRequest is the POST body for a new collection job.
type createJobRequest struct {
	Address   string `json:"address"`
	StartDate string `json:"startDate"` // ISO-8601
	EndDate   string `json:"endDate"`
}

// handleCreateJob validates the request, stores a queued job and runs
// it in the background.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}

	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "address is required")
		return
	}

	startMs, err := parseISO(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "startDate must be ISO-8601")
		return
	}
	endMs, err := parseISO(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "endDate must be ISO-8601")
		return
	}
	if endMs <= startMs {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "endDate must be after startDate")
		return
	}

	nowMs := s.now().UnixMilli()
	job := &domain.CollectionJob{
		ID:        idhash.ComputeJobID(req.Address, startMs, endMs, nowMs),
		Address:   strings.ToLower(req.Address),
		StartDate: startMs,
		EndDate:   endMs,
		Status:    domain.JobStatusQueued,
		CreatedAt: nowMs,
		UpdatedAt: nowMs,
	}

	if err := s.jobs.Insert(r.Context(), job); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			writeError(w, http.StatusConflict, "DUPLICATE_JOB", "job already exists")
			return
		}
		s.logger.WithError(err).Error("insert job")
		writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to store job")
		return
	}

	go func() {
		if err := s.runner.Run(context.Background(), job.ID); err != nil {
			s.logger.WithField("job_id", job.ID).WithError(err).Error("job run failed")
		}
	}()

	writeData(w, http.StatusAccepted, jobToJSON(job))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetByID(r.Context(), r.PathValue("jobID"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
			return
		}
		s.logger.WithError(err).Error("get job")
		writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to load job")
		return
	}

	writeData(w, http.StatusOK, jobToJSON(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "address query parameter is required")
		return
	}

	jobs, err := s.jobs.GetByAddress(r.Context(), address)
	if err != nil {
		s.logger.WithError(err).Error("list jobs")
		writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to list jobs")
		return
	}

	out := make([]*jobJSON, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, jobToJSON(job))
	}
	writeData(w, http.StatusOK, out)
}

// analysisResponse bundles metrics with correlated events.
type analysisResponse struct {
	Metrics          *metricsJSON          `json:"metrics"`
	CorrelatedEvents []correlatedEventJSON `json:"correlatedEvents"`
}

type correlatedEventJSON struct {
	EventID    int64   `json:"eventId"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// handleAnalysis computes metrics and correlations on demand. Optional
// start/end query parameters (ISO-8601) bound the trade range.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	var startMs, endMs int64
	if raw := r.URL.Query().Get("start"); raw != "" {
		ms, err := parseISO(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "start must be ISO-8601")
			return
		}
		startMs = ms
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		ms, err := parseISO(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "end must be ISO-8601")
			return
		}
		endMs = ms
	}

	metrics, err := s.analyzer.Analyze(r.Context(), address, startMs, endMs)
	if err != nil {
		if errors.Is(err, correlation.ErrNoTrades) {
			writeError(w, http.StatusNotFound, "NO_TRADES", "no enriched trades for address in range")
			return
		}
		s.logger.WithError(err).Error("analyze")
		writeError(w, http.StatusInternalServerError, "ANALYSIS_ERROR", "analysis failed")
		return
	}

	correlated, err := s.analyzer.Correlate(r.Context(), metrics)
	if err != nil {
		s.logger.WithError(err).Error("correlate")
		writeError(w, http.StatusInternalServerError, "ANALYSIS_ERROR", "correlation failed")
		return
	}

	events := make([]correlatedEventJSON, 0, len(correlated))
	for _, ce := range correlated {
		events = append(events, correlatedEventJSON{
			EventID:    ce.EventID,
			Confidence: ce.Confidence,
			Reason:     ce.Reason,
		})
	}

	writeData(w, http.StatusOK, analysisResponse{
		Metrics:          metricsToJSON(metrics),
		CorrelatedEvents: events,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// envelope is the uniform response wrapper.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: &apiError{Code: code, Message: message}})
}

// jobJSON is the wire form of a collection job, dates in ISO-8601.
type jobJSON struct {
	ID        string             `json:"id"`
	Address   string             `json:"address"`
	StartDate string             `json:"startDate"`
	EndDate   string             `json:"endDate"`
	Status    domain.JobStatus   `json:"status"`
	Progress  domain.JobProgress `json:"progress"`
	Error     string             `json:"error,omitempty"`
	CreatedAt string             `json:"createdAt"`
	UpdatedAt string             `json:"updatedAt"`
}

func jobToJSON(job *domain.CollectionJob) *jobJSON {
	return &jobJSON{
		ID:        job.ID,
		Address:   job.Address,
		StartDate: formatISO(job.StartDate),
		EndDate:   formatISO(job.EndDate),
		Status:    job.Status,
		Progress:  job.Progress,
		Error:     job.Error,
		CreatedAt: formatISO(job.CreatedAt),
		UpdatedAt: formatISO(job.UpdatedAt),
	}
}

// metricsJSON is the wire form of correlation metrics.
type metricsJSON struct {
	WalletAddress     string         `json:"walletAddress"`
	TotalValueUSD     float64        `json:"totalValueUsd"`
	TradeCount        int            `json:"tradeCount"`
	AverageTradeValue float64        `json:"averageTradeValue"`
	LargestTradeUSD   float64        `json:"largestTradeUsd"`
	TokenPairs        map[string]int `json:"tokenPairs"`
	StartTime         string         `json:"startTime"`
	EndTime           string         `json:"endTime"`
	AvgTradeGapMs     float64        `json:"avgTradeGapMs"`
}

func metricsToJSON(m *domain.CorrelationMetrics) *metricsJSON {
	return &metricsJSON{
		WalletAddress:     m.WalletAddress,
		TotalValueUSD:     m.TotalValueUSD,
		TradeCount:        m.TradeCount,
		AverageTradeValue: m.AverageTradeValue,
		LargestTradeUSD:   m.LargestTradeUSD,
		TokenPairs:        m.TokenPairs,
		StartTime:         formatISO(m.StartTime),
		EndTime:           formatISO(m.EndTime),
		AvgTradeGapMs:     m.AvgTradeGapMs,
	}
}

func parseISO(raw string) (int64, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

func formatISO(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
