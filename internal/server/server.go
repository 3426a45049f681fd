package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zgpcy/worldclock/internal/collector"
	"github.com/zgpcy/worldclock/internal/config"
	"github.com/zgpcy/worldclock/internal/devices"
	"github.com/zgpcy/worldclock/internal/display"
	"github.com/zgpcy/worldclock/internal/logger"
	"github.com/zgpcy/worldclock/internal/timeapi"
)

//go:embed templates/index.html
var indexTemplate string

var indexTmpl = template.Must(template.New("index").Parse(indexTemplate))

// HTTP server timeout constants
const (
	DefaultReadTimeout  = 15 * time.Second // Maximum duration for reading the entire request
	DefaultWriteTimeout = 15 * time.Second // Maximum duration before timing out writes of the response
	DefaultIdleTimeout  = 60 * time.Second // Maximum amount of time to wait for the next request

	// RequestIDHeader carries the per-request correlation ID
	RequestIDHeader = "X-Request-ID"

	maxRequestBody = 4 << 10
)

// TimeLooker performs one-off lookups for the /api/time endpoint
type TimeLooker interface {
	FetchTime(ctx context.Context, zone timeapi.Zone) (timeapi.Result, error)
}

// indexPageData holds template data for the index page
type indexPageData struct {
	StatusClass     string
	StatusText      string
	LastRefresh     string
	RefreshInterval int
	Clocks          []display.Snapshot
	Available       []devices.Name
	Connected       []devices.Name
}

// Server represents the HTTP server
type Server struct {
	server    *http.Server
	collector *collector.ClockCollector
	looker    TimeLooker
	registry  devices.Registry
	cfg       *config.Config
	logger    *logger.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, collector *collector.ClockCollector, looker TimeLooker, registry devices.Registry, log *logger.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
		},
		collector: collector,
		looker:    looker,
		registry:  registry,
		cfg:       cfg,
		logger:    log,
	}

	// Register handlers
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/zones", s.handleZones)
	mux.HandleFunc("GET /api/time", s.handleTime)
	mux.HandleFunc("GET /api/clocks", s.handleClocks)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/devices", s.handleDevices)
	mux.HandleFunc("POST /api/devices/connect", s.handleConnect)
	mux.HandleFunc("POST /api/devices/disconnect", s.handleDisconnect)

	s.server.Handler = s.withRequestID(mux)
	return s
}

// Handler returns the root handler, including middleware
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestID tags every request with an ID, echoes it in the response and
// logs the request at debug level
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug("HTTP request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_seconds", time.Since(start).Seconds())
	})
}

// writeJSON encodes v with the given status
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write JSON response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// handleIndex serves the clock status page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ready := s.collector.IsReady()
	statusClass := "not-ready"
	statusText := "Not Ready"
	if ready {
		statusClass = "ready"
		statusText = "Ready"
	}

	lastRefresh := s.collector.LastRefreshTime()
	lastRefreshText := "Never"
	if !lastRefresh.IsZero() {
		lastRefreshText = lastRefresh.Format("2006-01-02 15:04:05 MST")
	}

	data := indexPageData{
		StatusClass:     statusClass,
		StatusText:      statusText,
		LastRefresh:     lastRefreshText,
		RefreshInterval: s.cfg.RefreshInterval,
		Clocks:          s.collector.Snapshots(),
		Available:       s.registry.ListAvailable(),
		Connected:       s.registry.ListConnected(),
	}

	w.Header().Set("Content-Type", "text/html")
	if err := indexTmpl.Execute(w, data); err != nil {
		s.logger.Error("Failed to execute index template", "error", err)
	}
}

// handleHealth handles health check requests (always returns 200 for liveness)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"healthy"}`)); err != nil {
		s.logger.Error("Failed to write health response", "error", err)
	}
}

// handleReady returns 200 only after a successful lookup and an error-free last refresh
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.collector.IsReady() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not ready",
			"message": "waiting for initial time lookup",
		})
		return
	}

	if err := s.collector.LastError(); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ready"}`)); err != nil {
		s.logger.Error("Failed to write ready response", "error", err)
	}
}

// handleZones lists the zones accepted by /api/time
func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"zones": timeapi.SortedZones(),
	})
}

// handleTime performs a single lookup. ?zone= selects the zone; empty or "ip"
// uses IP geolocation.
func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	zone, ok := timeapi.ParseZone(r.URL.Query().Get("zone"))
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("unknown time zone %q", string(zone)),
			Kind:  timeapi.KindFormat.String(),
		})
		return
	}

	res, err := s.looker.FetchTime(r.Context(), zone)
	if err != nil {
		kind, _ := timeapi.KindOf(err)
		s.logger.Warn("Time lookup failed",
			"zone", zone.String(),
			"kind", kind.String(),
			"request_id", w.Header().Get(RequestIDHeader),
			"error", err)
		s.writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: display.Message(err),
			Kind:  kind.String(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, res)
}

// handleClocks returns every configured zone's display state
func (s *Server) handleClocks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"clocks": s.collector.Snapshots(),
	})
}

// handleRefresh triggers an immediate refresh of all zones
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.collector.TriggerRefresh() {
		s.writeJSON(w, http.StatusConflict, map[string]string{"status": "refresh already running"})
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh started"})
}

type devicesResponse struct {
	Available []devices.Name `json:"available"`
	Connected []devices.Name `json:"connected"`
}

func (s *Server) devicesState() devicesResponse {
	return devicesResponse{
		Available: s.registry.ListAvailable(),
		Connected: s.registry.ListConnected(),
	}
}

// handleDevices lists mock devices
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.devicesState())
}

type deviceRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.handleDeviceChange(w, r, s.registry.Connect)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.handleDeviceChange(w, r, s.registry.Disconnect)
}

func (s *Server) handleDeviceChange(w http.ResponseWriter, r *http.Request, change func(devices.Name) error) {
	var req deviceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil || req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: `body must be {"name": "<device>"}`})
		return
	}

	if err := change(devices.Name(req.Name)); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, devices.ErrUnknownDevice) {
			status = http.StatusNotFound
		}
		s.writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("Device state changed",
		"device", req.Name,
		"path", r.URL.Path,
		"request_id", w.Header().Get(RequestIDHeader))
	s.writeJSON(w, http.StatusOK, s.devicesState())
}
