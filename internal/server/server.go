// Package server exposes the analysis orchestrator over a thin HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sandia-project/sandia-go/internal/analysis"
	"github.com/sandia-project/sandia-go/internal/config"
	"github.com/sandia-project/sandia-go/internal/consensus"
	"github.com/sandia-project/sandia-go/internal/engine"
	"github.com/sandia-project/sandia-go/internal/metrics"
)

// watchInterval is how often the websocket pushes job-state snapshots.
const watchInterval = time.Second

// watchMaxDuration bounds a watch session so abandoned sockets drain.
const watchMaxDuration = 10 * time.Minute

// Server wraps the orchestrator with HTTP handlers and lifecycle management.
type Server struct {
	orchestrator *analysis.Orchestrator
	collector    *metrics.Collector
	cfg          config.Config
	logger       *slog.Logger
	upgrader     websocket.Upgrader
}

// New creates the HTTP server wrapper.
func New(orchestrator *analysis.Orchestrator, collector *metrics.Collector, cfg config.Config, logger *slog.Logger) *Server {
	return &Server{
		orchestrator: orchestrator,
		collector:    collector,
		cfg:          cfg,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler builds the route table with logging middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/status/{artifactID}", s.handleStatus)
	mux.HandleFunc("GET /api/watch/{artifactID}", s.handleWatch)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	return LoggingMiddleware(s.logger)(mux)
}

// Run serves until ctx is cancelled, then drains with a short grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.cfg.ServerPort,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.ServerPort)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// analyzeRequest is the POST /api/analyze payload.
type analyzeRequest struct {
	ArtifactID string   `json:"artifactId"`
	S3Key      string   `json:"s3Key"`
	FileName   string   `json:"fileName"`
	Engines    []string `json:"engines,omitempty"`
	Timeout    string   `json:"timeout,omitempty"`
}

// analyzeResponse pairs the consensus with per-job diagnostics.
type analyzeResponse struct {
	ArtifactID string                            `json:"artifactId"`
	Consensus  *consensus.Result                 `json:"consensus"`
	JobStates  map[engine.Kind]analysis.JobState `json:"jobStates"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.ArtifactID == "" {
		writeError(w, http.StatusBadRequest, errors.New("artifactId is required"))
		return
	}

	key := req.S3Key
	if key == "" {
		key = "uploads/" + req.ArtifactID + "/" + req.FileName
	}

	opts := analysis.Options{}
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("parse timeout: %w", err))
			return
		}
		opts.Deadline = d
	}
	for _, name := range req.Engines {
		kind, err := engine.ParseKind(strings.TrimSpace(name))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		opts.Engines = append(opts.Engines, kind)
	}

	artifact := engine.ArtifactRef{
		ID:     req.ArtifactID,
		Bucket: s.cfg.ArtifactBucket,
		Key:    key,
		Name:   req.FileName,
	}

	result, err := s.orchestrator.Analyze(r.Context(), artifact, opts)
	if err != nil {
		if errors.Is(err, analysis.ErrNoEnginesTriggered) {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		ArtifactID: req.ArtifactID,
		Consensus:  result,
		JobStates:  s.orchestrator.GetJobStates(req.ArtifactID),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	artifactID := r.PathValue("artifactID")
	states := s.orchestrator.GetJobStates(artifactID)
	if len(states) == 0 {
		writeError(w, http.StatusNotFound, fmt.Errorf("no jobs for artifact %s", artifactID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artifactId": artifactID,
		"jobStates":  states,
	})
}

// handleWatch upgrades to a websocket and streams job-state snapshots until
// every job is terminal or the client goes away.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	artifactID := r.PathValue("artifactID")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(watchMaxDuration)
	defer deadline.Stop()

	for {
		states := s.orchestrator.GetJobStates(artifactID)
		payload := map[string]any{
			"artifactId": artifactID,
			"jobStates":  states,
		}
		if err := conn.WriteJSON(payload); err != nil {
			return
		}

		if len(states) > 0 && allTerminal(states) {
			return
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func allTerminal(states map[engine.Kind]analysis.JobState) bool {
	for _, st := range states {
		if !st.Terminal() {
			return false
		}
	}
	return true
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "sandia-orchestrator",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
