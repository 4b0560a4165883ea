package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/reports"
	"github.com/rmax-ai/pganomaly/pkg/store"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

const (
	DefaultAddr       = ":8090"
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

// Server encapsulates the HTTP API server
type Server struct {
	store  StoreInterface
	status StatusSource
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a new API server instance. Either dependency may be nil;
// the matching endpoints then answer 503.
func NewServer(st StoreInterface, status StatusSource, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr == "" {
		addr = DefaultAddr
	}

	s := &Server{
		store:  st,
		status: status,
		logger: logger,
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/runs", s.handleRuns)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/reports", s.handleReports)
	mux.HandleFunc("/v1/admin/prune", s.handlePrune)

	// Middleware: Logging, Panic Recovery, Security Headers
	return s.withLogging(s.withRecovery(withSecureHeaders(mux)))
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	s.logger.Info("server_starting", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve runs the server on an existing listener (blocking).
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("server_starting", zap.String("addr", l.Addr().String()))
	if err := s.server.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server_stopping")
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed_to_encode_response", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
	}
}

// handleEvents returns recent history events, newest first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, `{"error":"history_not_available"}`, http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	limit := defaultEventLimit
	if l := q.Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = min(val, maxEventLimit)
		}
	}

	filter := store.EventFilter{
		RunID:  q.Get("run_id"),
		Target: q.Get("target"),
		Limit:  limit,
	}
	if t := q.Get("type"); t != "" {
		filter.EventTypes = []store.EventType{store.EventType(t)}
	}

	events, err := s.store.QueryEvents(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed_to_read_events", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*store.Event{}
	}
	s.writeJSON(w, r, events)
}

// handleRuns lists recorded demo runs.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, `{"error":"history_not_available"}`, http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed_to_list_runs", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.RunInfo{}
	}
	s.writeJSON(w, r, runs)
}

// handleStatus returns live progress for every target.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.status == nil {
		http.Error(w, `{"error":"status_not_available"}`, http.StatusServiceUnavailable)
		return
	}

	statuses, err := s.status.List(r.Context())
	if err != nil {
		s.logger.Error("failed_to_list_status", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}

	resp := StatusResponse{Targets: statuses}
	if target := r.URL.Query().Get("target"); target != "" {
		resp.Targets = resp.Targets[:0:0]
		for _, st := range statuses {
			if st.Target == target {
				resp.Targets = append(resp.Targets, st)
			}
		}
	}
	s.writeJSON(w, r, resp)
}

// handlePrune allows admin to delete old events.
func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, `{"error":"history_not_available"}`, http.StatusServiceUnavailable)
		return
	}

	var req PruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}

	retention, err := time.ParseDuration(req.Retention)
	if err != nil || retention <= 0 {
		http.Error(w, `{"error":"invalid_retention_format","example":"720h"}`, http.StatusBadRequest)
		return
	}

	count, err := s.store.PruneEvents(r.Context(), retention)
	if err != nil {
		s.logger.Error("failed_to_prune_events", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
		http.Error(w, `{"error":"prune_failed"}`, http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, r, PruneResponse{
		Status:        "success",
		PrunedCount:   count,
		RetentionUsed: retention.String(),
	})
}

// handleReports generates and streams CSV reports.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, `{"error":"history_not_available"}`, http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	reportType := reports.ReportType(q.Get("type"))
	if reportType == "" {
		http.Error(w, `{"error":"missing_type"}`, http.StatusBadRequest)
		return
	}

	params := reports.ReportParams{
		RunID:  q.Get("run_id"),
		Target: q.Get("target"),
	}
	if v := q.Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, `{"error":"invalid_from","format":"RFC3339"}`, http.StatusBadRequest)
			return
		}
		params.Start = from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, `{"error":"invalid_to","format":"RFC3339"}`, http.StatusBadRequest)
			return
		}
		params.End = to
	}
	if !params.Start.IsZero() && !params.End.IsZero() && params.End.Before(params.Start) {
		http.Error(w, `{"error":"to_before_from"}`, http.StatusBadRequest)
		return
	}

	gen, err := reports.NewReportGenerator(reportType, s.store)
	if err != nil {
		http.Error(w, `{"error":"invalid_report_type"}`, http.StatusBadRequest)
		return
	}

	reader, err := gen.Generate(r.Context(), params)
	if err != nil {
		s.logger.Error("failed_to_generate_report", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
		http.Error(w, `{"error":"report_generation_failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	filename := fmt.Sprintf("report_%s_%d.csv", reportType, time.Now().Unix())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("failed_to_stream_report", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
	}
}

// handleHealth returns simple status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Middleware: Panic Recovery
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic_recovered", zap.Any("error", err), zap.String("path", r.URL.Path))
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = generateTraceID()
		}
		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		s.logger.Info("http_request",
			zap.String("trace_id", traceID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func generateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// statusWriter captures HTTP status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware: Secure Headers
func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}
