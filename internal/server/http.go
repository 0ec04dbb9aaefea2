package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/voxsql/internal/config"
	"github.com/skypro1111/voxsql/internal/dispatch"
	"github.com/skypro1111/voxsql/internal/metrics"
	"github.com/skypro1111/voxsql/internal/pipeline"
	"github.com/skypro1111/voxsql/internal/query"
	"github.com/skypro1111/voxsql/internal/source"
	"github.com/skypro1111/voxsql/internal/transcription"
	"github.com/skypro1111/voxsql/internal/vad"
)

const maxQueryBodyBytes = 64 << 10

// Gate runs statements and keeps the dispatch history
type Gate interface {
	Execute(ctx context.Context, stmt string) (*query.Result, error)
	History() *dispatch.History
}

// Deps are the components the API reports on. Only Gate is required.
type Deps struct {
	Pipeline      interface{ Stats() pipeline.Stats }
	Gate          Gate
	Transcription interface{ GetStats() transcription.ClientStats }
	VAD           interface{ GetStats() vad.DetectorStats }
	UDP           interface{ GetStats() source.UDPStats }
	Audio         http.Handler // websocket ingress, nil when not selected
	Gatherer      prometheus.Gatherer
}

// HTTPServer provides HTTP API endpoints for monitoring and queries
type HTTPServer struct {
	server  *http.Server
	logger  *slog.Logger
	config  *config.Config
	deps    Deps
	metrics *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg *config.Config, deps Deps, logger *slog.Logger, m *metrics.Metrics) (*HTTPServer, error) {
	if deps.Gate == nil {
		return nil, fmt.Errorf("query gate is required")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	h := &HTTPServer{
		logger:    logger,
		config:    cfg,
		deps:      deps,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return h, nil
}

// Handler returns the route multiplexer
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/utterances", h.withMetrics("/utterances", h.handleUtterances))
	mux.HandleFunc("/query", h.withMetrics("/query", h.handleQuery))

	// The websocket handler hijacks the connection, so no status wrapper
	if h.deps.Audio != nil {
		mux.Handle("/audio", h.deps.Audio)
	}

	mux.Handle("/metrics", promhttp.HandlerFor(h.deps.Gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start listens and serves in the background
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}

	h.logger.Info("Starting HTTP API server",
		slog.String("address", ln.Addr().String()),
	)

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	components := map[string]any{
		"query_gate": map[string]any{
			"status":  "running",
			"queries": h.deps.Gate.History().Total(),
		},
	}

	if h.deps.Pipeline != nil {
		stats := h.deps.Pipeline.Stats()
		components["pipeline"] = map[string]any{
			"status":           "running",
			"state":            stats.State,
			"blocks_processed": stats.BlocksProcessed,
			"queue_length":     stats.Queue.Length,
			"blocks_dropped":   stats.Queue.Dropped,
		}
	}

	if h.deps.Transcription != nil {
		stats := h.deps.Transcription.GetStats()
		components["transcription"] = map[string]any{
			"status":         "running",
			"total_requests": stats.TotalRequests,
			"success_rate":   stats.SuccessRate,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]any{
			"name":    "voxsql",
			"version": "1.0.0",
		},
		"components": components,
	})
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]any{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"queries":   h.deps.Gate.History().Total(),
	}
	if h.deps.Pipeline != nil {
		stats["pipeline"] = h.deps.Pipeline.Stats()
	}
	if h.deps.VAD != nil {
		stats["vad"] = h.deps.VAD.GetStats()
	}
	if h.deps.Transcription != nil {
		stats["transcription"] = h.deps.Transcription.GetStats()
	}
	if h.deps.UDP != nil {
		stats["udp"] = h.deps.UDP.GetStats()
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c := h.config

	// Credentials (transcription API key, database DSN) are omitted
	writeJSON(w, http.StatusOK, map[string]any{
		"audio": map[string]any{
			"sample_rate":    c.Audio.SampleRate,
			"block_duration": c.Audio.BlockDuration,
			"queue_size":     c.Audio.QueueSize,
		},
		"source": map[string]any{
			"type":         c.Source.Type,
			"realtime":     c.Source.Realtime,
			"bind_address": c.Source.BindAddress,
			"udp_port":     c.Source.UDPPort,
		},
		"enhance": map[string]any{
			"type": c.Enhance.Type,
		},
		"vad": map[string]any{
			"threshold":            c.VAD.Threshold,
			"window_duration":      c.VAD.WindowDuration,
			"frame_size":           c.VAD.FrameSize,
			"min_speech_duration":  c.VAD.MinSpeechDuration,
			"min_silence_duration": c.VAD.MinSilenceDuration,
		},
		"segmentation": map[string]any{
			"silence_end": c.Segmentation.SilenceEnd,
			"min_speech":  c.Segmentation.MinSpeech,
			"max_speech":  c.Segmentation.MaxSpeech,
		},
		"transcription": map[string]any{
			"endpoint":            c.Transcription.Endpoint,
			"model":               c.Transcription.Model,
			"language":            c.Transcription.Language,
			"timeout":             c.Transcription.Timeout,
			"max_retries":         c.Transcription.MaxRetries,
			"beam_size":           c.Transcription.BeamSize,
			"temperature":         c.Transcription.Temperature,
			"no_speech_threshold": c.Transcription.NoSpeechThreshold,
			"min_avg_logprob":     c.Transcription.MinAvgLogprob,
			"max_no_speech_prob":  c.Transcription.MaxNoSpeechProb,
		},
		"nlsql": map[string]any{
			"endpoint": c.NLSQL.Endpoint,
			"role":     c.NLSQL.Role,
			"timeout":  c.NLSQL.Timeout,
		},
		"database": map[string]any{
			"driver":     c.Database.Driver,
			"max_rows":   c.Database.MaxRows,
			"guard_mode": c.Database.GuardMode,
		},
		"logging": map[string]any{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
			"output": c.Logging.Output,
		},
	})
}

// handleUtterances implements the /utterances endpoint
func (h *HTTPServer) handleUtterances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	history := h.deps.Gate.History()
	recent := history.Recent()

	writeJSON(w, http.StatusOK, map[string]any{
		"total":      history.Total(),
		"count":      len(recent),
		"timestamp":  time.Now().UTC(),
		"utterances": recent,
	})
}

// QueryRequest is the body of POST /query
type QueryRequest struct {
	SQL string `json:"sql"`
}

// QueryResponse is the result of POST /query
type QueryResponse struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated"`
	Elapsed   string           `json:"elapsed"`
}

// handleQuery implements the /query endpoint
func (h *HTTPServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body: " + err.Error()})
		return
	}
	if req.SQL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "sql is required"})
		return
	}

	result, err := h.deps.Gate.Execute(r.Context(), req.SQL)
	if err != nil {
		var forbidden *query.ForbiddenError
		if errors.As(err, &forbidden) {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"error":   err.Error(),
				"keyword": forbidden.Keyword,
			})
			return
		}

		h.logger.Warn("Query failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Columns:   result.Columns,
		Rows:      result.Rows,
		Truncated: result.Truncated,
		Elapsed:   result.Elapsed.String(),
	})
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	endpoints := map[string]any{
		"GET /":           "API documentation",
		"GET /health":     "Service health check",
		"GET /stats":      "Pipeline and component statistics",
		"GET /config":     "Effective configuration (secrets omitted)",
		"GET /utterances": "Recent dispatch outcomes",
		"POST /query":     "Run a read-only statement: {\"sql\": \"...\"}",
		"GET /metrics":    "Prometheus metrics",
	}
	if h.deps.Audio != nil {
		endpoints["GET /audio"] = "WebSocket audio ingress (binary PCM16LE)"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "voxsql",
		"version":   "1.0.0",
		"endpoints": endpoints,
		"timestamp": time.Now().UTC(),
	})
}
