package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/izahai/SceneFit/internal/config"
	"github.com/izahai/SceneFit/internal/metrics"
	"github.com/izahai/SceneFit/internal/session"
	"github.com/izahai/SceneFit/internal/transcription"
)

const (
	serviceName    = "voice-transcriber"
	serviceVersion = "1.0.0"
)

// Controller is the recording surface exposed over HTTP
type Controller interface {
	StartRecording() error
	StopAndTranscribeContext(ctx context.Context) <-chan session.Result
	IsRecording() bool
	Stats() session.Stats
}

// StatsSource reports transcription client statistics
type StatsSource interface {
	GetStats() transcription.ClientStats
}

// HTTPServer provides HTTP API endpoints for control and monitoring
type HTTPServer struct {
	server     *http.Server
	handler    http.Handler
	logger     *slog.Logger
	config     *config.Config
	controller Controller
	stats      StatsSource
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer

	// Server state
	startTime time.Time
	listener  net.Listener
	mu        sync.RWMutex
}

// HTTPServerConfig contains HTTP server configuration
type HTTPServerConfig struct {
	Port    int
	Address string

	// WriteTimeout must cover a blocking /record/stop?wait=true
	WriteTimeout time.Duration

	// Gatherer backs /metrics; nil uses the default registry
	Gatherer prometheus.Gatherer
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg HTTPServerConfig, logger *slog.Logger,
	appConfig *config.Config, controller Controller, stats StatsSource, m *metrics.Metrics) *HTTPServer {

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = transcription.DefaultTimeout + 10*time.Second
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	h := &HTTPServer{
		logger:     logger,
		config:     appConfig,
		controller: controller,
		stats:      stats,
		metrics:    m,
		gatherer:   cfg.Gatherer,
		startTime:  time.Now(),
	}

	// Create HTTP server with routes
	mux := http.NewServeMux()
	h.setupRoutes(mux)
	h.handler = mux

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/status", h.withMetrics("/status", h.handleStatus))

	// Recording control
	mux.HandleFunc("/record/start", h.withMetrics("/record/start", h.handleRecordStart))
	mux.HandleFunc("/record/stop", h.withMetrics("/record/stop", h.handleRecordStop))

	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats/transcription", h.withMetrics("/stats/transcription", h.handleTranscriptionStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// Handler returns the routed handler
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

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

// Start binds the listener and serves in the background
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}

	h.mu.Lock()
	h.listener = ln
	h.mu.Unlock()

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

// Addr returns the bound address once started
func (h *HTTPServer) Addr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.listener == nil {
		return h.server.Addr
	}
	return h.listener.Addr().String()
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorBody(err error) map[string]interface{} {
	body := map[string]interface{}{"error": err.Error()}
	if kind := transcription.KindOf(err); kind != "" {
		body["kind"] = kind
	}
	return body
}

// statusForError maps a cycle failure to an HTTP status
func statusForError(err error) int {
	switch transcription.KindOf(err) {
	case transcription.KindTransport:
		return http.StatusBadGateway
	case transcription.KindEmptyTranscript:
		return http.StatusUnprocessableEntity
	case transcription.KindCapture:
		return http.StatusInternalServerError
	}
	if errors.Is(err, session.ErrClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	clientStats := h.controller.Stats()
	transcriptionStats := h.stats.GetStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": map[string]interface{}{
			"capture": map[string]interface{}{
				"status":    "running",
				"recording": clientStats.Recording,
				"device":    h.config.Capture.Device,
			},
			"transcription": map[string]interface{}{
				"status":          "running",
				"total_requests":  transcriptionStats.TotalRequests,
				"success_rate":    transcriptionStats.SuccessRate,
				"active_requests": transcriptionStats.ActiveRequests,
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleStatus implements the /status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.controller.Stats()
	state := "idle"
	if stats.Recording {
		state = "recording"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":     state,
		"session":   stats,
		"timestamp": time.Now().UTC(),
	})
}

// handleRecordStart implements POST /record/start
func (h *HTTPServer) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	alreadyRecording := h.controller.IsRecording()
	if err := h.controller.StartRecording(); err != nil {
		h.logger.Warn("Start requested over HTTP failed", slog.String("error", err.Error()))
		writeJSON(w, statusForError(err), errorBody(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recording":         true,
		"already_recording": alreadyRecording,
	})
}

// handleRecordStop implements POST /record/stop[?wait=true]
func (h *HTTPServer) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	wait := r.URL.Query().Get("wait") == "true"

	ctx := context.Background()
	if wait {
		// a disconnecting caller cancels its own submission
		ctx = r.Context()
	}

	results := h.controller.StopAndTranscribeContext(ctx)
	if results == nil {
		writeJSON(w, http.StatusConflict, map[string]interface{}{"error": "not recording"})
		return
	}

	if !wait {
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"submitted": true})
		return
	}

	select {
	case res := <-results:
		if res.Err != nil {
			writeJSON(w, statusForError(res.Err), errorBody(res.Err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"transcript": res.Text})
	case <-r.Context().Done():
		h.logger.Warn("Caller left before the transcript arrived")
	}
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c := h.config.Sanitized()
	sanitizedConfig := map[string]interface{}{
		"capture": map[string]interface{}{
			"device":              c.Capture.Device,
			"sample_rate":         c.Capture.SampleRate,
			"max_record_seconds":  c.Capture.MaxRecordSeconds,
			"channels":            c.Capture.Channels,
			"frames_per_buffer":   c.Capture.FramesPerBuffer,
			"keep_recordings_dir": c.Capture.KeepRecordingsDir,
		},
		"transcription": map[string]interface{}{
			"url":          c.Transcription.URL,
			"timeout":      c.Transcription.Timeout,
			"log_requests": c.Transcription.LogRequests,
		},
		"console": map[string]interface{}{
			"enabled":           c.Console.Enabled,
			"copy_to_clipboard": c.Console.CopyToClipboard,
		},
		"logging": map[string]interface{}{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
			"output": c.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitizedConfig)
}

// handleTranscriptionStats implements the /stats/transcription endpoint
func (h *HTTPServer) handleTranscriptionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.stats.GetStats())
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

	apiDoc := map[string]interface{}{
		"service": "Voice Transcriber",
		"version": serviceVersion,
		"endpoints": map[string]interface{}{
			"GET /":                       "API documentation",
			"GET /health":                 "Service health check",
			"GET /status":                 "Recording state and last result",
			"POST /record/start":          "Start recording",
			"POST /record/stop":           "Stop recording and submit",
			"POST /record/stop?wait=true": "Stop, submit and wait for the transcript",
			"GET /config":                 "Get service configuration",
			"GET /stats/transcription":    "Get transcription statistics",
			"GET /metrics":                "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}
