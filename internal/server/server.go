// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"mcp-chew-check/internal/chewcheck"
)

// Base64 photos from phones run to several megabytes.
const maxRequestBytes = 20 << 20

type Config struct {
	Host         string
	Port         int
	Version      string
	RateLimitRPS float64
	RateBurst    int
}

// StatsSource reports counter totals for the /stats endpoint.
type StatsSource interface {
	Snapshot(ctx context.Context) (map[string]int64, error)
}

type ChewCheckServer struct {
	info       protocol.Implementation
	service    *chewcheck.Service
	stats      StatsSource
	limiter    *ipRateLimiter
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger
	config     *Config
}

func NewChewCheckServer(cfg *Config, service *chewcheck.Service, stats StatsSource, logger *slog.Logger) *ChewCheckServer {
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &ChewCheckServer{
		info:    protocol.Implementation{Name: "chew-check", Version: version},
		service: service,
		stats:   stats,
		logger:  logger,
		config:  cfg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHTTP)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)

	var handler http.Handler = mux
	if cfg.RateLimitRPS > 0 {
		s.limiter = newIPRateLimiter(cfg.RateLimitRPS, cfg.RateBurst)
		handler = s.limiter.middleware(mux)
	}
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, rate limiting included.
func (s *ChewCheckServer) Handler() http.Handler {
	return s.handler
}

func (s *ChewCheckServer) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	handler, ok := s.tools()[request.Name]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown tool: %s", request.Name), http.StatusNotFound)
		return
	}

	result, err := handler(r.Context(), &request)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("tool call failed", slog.String("tool", request.Name), slog.Any("error", err))
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Warn("failed to encode response", slog.Any("error", err))
	}
}

func (s *ChewCheckServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"server": s.info,
		"tools":  toolNames,
	})
}

func (s *ChewCheckServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.Error(w, "Stats not enabled", http.StatusNotFound)
		return
	}
	snapshot, err := s.stats.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}

// Start serves until the listener fails or Stop is called.
func (s *ChewCheckServer) Start(ctx context.Context) error {
	if s.limiter != nil {
		go s.limiter.run(ctx)
	}
	s.logger.Info("starting chew check server", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *ChewCheckServer) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...interface{}) error {
	return &requestError{status: http.StatusBadRequest, err: fmt.Errorf(format, args...)}
}

func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.Is(err, chewcheck.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// Client went away; nginx's non-standard code.
		return 499
	}
	return http.StatusInternalServerError
}

func (s *ChewCheckServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
