package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIServer handles HTTP requests for route normalization and offline estimates
type APIServer struct {
	service *RouteService
	metrics *Metrics
	config  *Config
	router  *mux.Router
	server  *http.Server
}

// NewAPIServer creates a new API server
func NewAPIServer(service *RouteService, metrics *Metrics, config *Config) *APIServer {
	s := &APIServer{
		service: service,
		metrics: metrics,
		config:  config,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *APIServer) routes() {
	r := s.router
	r.Use(s.requestLogger)

	r.HandleFunc("/api/directions/normalize", s.handleNormalizeDirections).Methods(http.MethodPost)
	r.HandleFunc("/api/isochrone/normalize", s.handleNormalizeIsochrone).Methods(http.MethodPost)
	r.HandleFunc("/api/offline/estimate", s.handleEstimate).Methods(http.MethodPost)
	r.HandleFunc("/api/offline/tiles", s.handleListTiles).Methods(http.MethodPost)
	r.HandleFunc("/api/cache", s.handlePurgeCache).Methods(http.MethodDelete)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if g := s.metrics.Gatherer(); g != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// Handler returns the routed handler, for tests and embedding
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start starts the API server and blocks until it stops
func (s *APIServer) Start(port int) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	slog.Info("starting API server", "port", port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *APIServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleNormalizeDirections handles POST /api/directions/normalize
func (s *APIServer) handleNormalizeDirections(w http.ResponseWriter, r *http.Request) {
	var req DirectionsRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, hit, err := s.service.NormalizeDirections(&req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, r, out)
}

// handleNormalizeIsochrone handles POST /api/isochrone/normalize
func (s *APIServer) handleNormalizeIsochrone(w http.ResponseWriter, r *http.Request) {
	var req IsochroneRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.service.NormalizeIsochrone(&req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, out)
}

// handleEstimate handles POST /api/offline/estimate
func (s *APIServer) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if !s.decode(w, r, &req) {
		return
	}

	est, err := s.service.EstimateRegion(&req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, est)
}

// handleListTiles handles POST /api/offline/tiles
func (s *APIServer) handleListTiles(w http.ResponseWriter, r *http.Request) {
	var req TilesRequest
	if !s.decode(w, r, &req) {
		return
	}

	tiles, err := s.service.ListTiles(&req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, tiles)
}

// handlePurgeCache handles DELETE /api/cache
func (s *APIServer) handlePurgeCache(w http.ResponseWriter, r *http.Request) {
	n := s.service.PurgeCache()
	writeJSON(w, r, map[string]int{"purged": n})
}

// handleHealth handles GET /health
func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, HealthResponse{
		Status:       "ok",
		Time:         time.Now().Format(time.RFC3339),
		CacheEntries: s.service.CacheEntries(),
		CacheHitRate: s.service.CacheHitRate(),
	})
}

// decode reads a JSON body into v, answering 400 on failure
func (s *APIServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		loggerFor(r).Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, ErrProviderResponseRequired), errors.Is(err, ErrTooManyTiles):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		loggerFor(r).Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

type ctxKey struct{}

// statusRecorder captures the response status for the request log
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// requestLogger tags each request with an ID and logs its outcome
func (s *APIServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		logger := slog.With("request_id", requestID, "method", r.Method, "path", r.URL.Path)
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, logger))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		logger.Info("request handled", "status", rec.status, "duration_ms", time.Since(start).Milliseconds())
	})
}

func loggerFor(r *http.Request) *slog.Logger {
	if logger, ok := r.Context().Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
