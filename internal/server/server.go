// Package server provides the HTTP API for trait scoring.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonathan/trait-scorer/internal/analysis"
	"github.com/jonathan/trait-scorer/internal/db"
	"github.com/jonathan/trait-scorer/internal/imaging"
	"github.com/jonathan/trait-scorer/internal/server/ratelimit"
	"go.uber.org/zap"
)

// AnalysisStore reads recorded analyses back.
type AnalysisStore interface {
	GetAnalysis(ctx context.Context, id uuid.UUID) (*db.Analysis, error)
	ListAnalyses(ctx context.Context, opts db.ListAnalysesOptions) ([]db.Analysis, int, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	service     *analysis.Service
	store       AnalysisStore
	images      imaging.Policy
	validator   *validator.Validate
	rateLimiter *ratelimit.Limiter
	logger      *zap.Logger
}

// Config holds server configuration
type Config struct {
	Port    int
	Service *analysis.Service
	// Store serves the history endpoints. Leave nil to run without a database.
	Store     AnalysisStore
	Images    imaging.Policy
	RateLimit *ratelimit.Config
	Logger    *zap.Logger
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("server requires an analysis service")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = ratelimit.LoadConfig()
	}

	s := &Server{
		service:     cfg.Service,
		store:       cfg.Store,
		images:      cfg.Images,
		validator:   validator.New(),
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		logger:      cfg.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Model-backed endpoints
	mux.HandleFunc("POST /score/{profile}", s.handleScore)
	mux.HandleFunc("POST /classify", s.handleClassify)

	// Local validation of a reply obtained elsewhere
	mux.HandleFunc("POST /validate/{profile}", s.handleValidate)

	// Reference data
	mux.HandleFunc("GET /traits", s.handleTraits)
	mux.HandleFunc("GET /profiles", s.handleListProfiles)
	mux.HandleFunc("GET /profiles/{name}", s.handleGetProfile)

	// History
	mux.HandleFunc("GET /analyses", s.handleListAnalyses)
	mux.HandleFunc("GET /analyses/{id}", s.handleGetAnalysis)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // scoring may retry a slow model call
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop rate limiter cleanup goroutine
	s.rateLimiter.Stop()

	s.logger.Info("server stopped")
	return nil
}

// Close releases background resources without serving.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, clientID, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging logs each request under a request ID, reusing the caller's X-Request-ID.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client", s.extractClientID(r)),
		)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// failure is the body of a failed analysis: the error plus whatever the outcome holds.
type failure struct {
	Error string `json:"error"`
	*analysis.Outcome
}

// writeError maps err to a status and writes it, attaching out when present.
func (s *Server) writeError(w http.ResponseWriter, err error, out *analysis.Outcome) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.jsonResponse(w, status, failure{Error: errorMessage(err), Outcome: out})
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, clientID string, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds())
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", clientID),
		zap.Int("limit", info.Limit),
		zap.Duration("retry_after", info.RetryAfter),
	)

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
