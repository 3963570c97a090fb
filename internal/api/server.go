package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"airouter/internal/llm"
)

const pingTimeout = 15 * time.Second

// Server is the REST API server
type Server struct {
	llmRouter   *llm.Router // nil when no provider is configured
	gatherer    prometheus.Gatherer
	metricsPath string
	limiter     *rate.Limiter // nil disables throttling
	port        int
	log         logr.Logger
}

// NewServer creates a new API server
func NewServer(llmRouter *llm.Router, port int, log logr.Logger) *Server {
	return &Server{
		llmRouter:   llmRouter,
		metricsPath: "/metrics",
		port:        port,
		log:         log,
	}
}

// WithMetrics exposes g on path.
func (s *Server) WithMetrics(g prometheus.Gatherer, path string) *Server {
	s.gatherer = g
	if path != "" {
		s.metricsPath = path
	}
	return s
}

// WithRateLimit throttles /api/v1 to rps requests per second with the given burst.
// rps <= 0 disables throttling.
func (s *Server) WithRateLimit(rps float64, burst int) *Server {
	if rps <= 0 {
		s.limiter = nil
		return s
	}
	if burst < 1 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(s.log))

	// API Routes
	v1 := r.PathPrefix("/api/v1").Subrouter()
	if s.limiter != nil {
		v1.Use(rateLimitMiddleware(s.limiter))
	}

	v1.HandleFunc("/generate", s.generate).Methods("POST")
	v1.HandleFunc("/providers", s.listProviders).Methods("GET")

	// LLM connectivity test
	v1.HandleFunc("/llm/ping", s.pingLLM).Methods("POST")

	if s.gatherer != nil {
		r.Handle(s.metricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	// Health check
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Start starts the API server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.log.Info("listening", "address", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// --- Handlers ---

type generateRequest struct {
	Prompt        string   `json:"prompt"`
	SystemPrompt  string   `json:"systemPrompt,omitempty"`
	MaxTokens     int      `json:"maxTokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	PreferSpeed   bool     `json:"preferSpeed,omitempty"`
	PreferQuality *bool    `json:"preferQuality,omitempty"`
	MaxRetries    int      `json:"maxRetries,omitempty"`
	TimeoutMs     int64    `json:"timeoutMs,omitempty"`
}

func (g generateRequest) options(now time.Time) llm.Options {
	opts := llm.DefaultOptions()
	if g.SystemPrompt != "" {
		opts.SystemPrompt = g.SystemPrompt
	}
	if g.MaxTokens > 0 {
		opts.MaxTokens = g.MaxTokens
	}
	if g.Temperature != nil {
		opts.Temperature = *g.Temperature
	}
	opts.PreferSpeed = g.PreferSpeed
	if g.PreferQuality != nil {
		opts.PreferQuality = *g.PreferQuality
	}
	if g.MaxRetries > 0 {
		opts.MaxRetries = g.MaxRetries
	}
	if g.TimeoutMs > 0 {
		opts.Deadline = now.Add(time.Duration(g.TimeoutMs) * time.Millisecond)
	}
	return opts
}

type errorResponse struct {
	Error    string   `json:"error"`
	Attempts []string `json:"attempts,omitempty"`
}

// Generate text
//
// POST /api/v1/generate
//
//	{"prompt":"...","preferSpeed":true,"maxRetries":2}
func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	if s.llmRouter == nil {
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no LLM provider configured"})
		return
	}

	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(body.Prompt) == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "prompt is required"})
		return
	}

	res, err := s.llmRouter.Generate(r.Context(), body.Prompt, body.options(time.Now()))
	if err != nil {
		status, payload := generateError(err)
		respondJSON(w, status, payload)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// generateError maps a Generate failure to a status code. AllProvidersFailed is
// checked first: it can wrap a NoProviderError when the pool ran dry mid-call.
func generateError(err error) (int, errorResponse) {
	var failed *llm.AllProvidersFailedError
	switch {
	case errors.As(err, &failed):
		resp := errorResponse{Error: err.Error()}
		for _, f := range failed.Failures {
			resp.Attempts = append(resp.Attempts, f.Error())
		}
		return http.StatusBadGateway, resp
	case errors.Is(err, llm.ErrNoProviderAvailable):
		return http.StatusServiceUnavailable, errorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: err.Error()}
	}
}

// List providers with their current availability
func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	if s.llmRouter == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"providers": map[string]llm.ProviderStatus{}})
		return
	}
	status, err := s.llmRouter.ProviderStatus(r.Context())
	if err != nil {
		s.log.Error(err, "provider status incomplete")
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"providers": status})
}

// pingLLM routes a minimal prompt through the failover engine.
//
// POST /api/v1/llm/ping
//
// Response:
//
//	{"provider":"openai","model":"gpt-4o","status":"ok","attempts":1,"latency_ms":342}
//	{"status":"error","error":"all providers failed: ...","latency_ms":15000}
func (s *Server) pingLLM(w http.ResponseWriter, r *http.Request) {
	if s.llmRouter == nil {
		http.Error(w, "LLM provider not configured", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.llmRouter.Generate(ctx, "Reply with 'pong' only.", llm.DefaultOptions())
	latencyMs := time.Since(start).Milliseconds()

	type pingResponse struct {
		Provider  string `json:"provider,omitempty"`
		Model     string `json:"model,omitempty"`
		Status    string `json:"status"`
		Attempts  int    `json:"attempts,omitempty"`
		LatencyMs int64  `json:"latency_ms"`
		Error     string `json:"error,omitempty"`
	}

	resp := pingResponse{LatencyMs: latencyMs}
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		respondJSON(w, http.StatusOK, resp) // return 200 with error body, not 5xx
		return
	}

	resp.Status = "ok"
	resp.Provider = res.Provider
	resp.Model = res.Model
	resp.Attempts = res.Attempts
	respondJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func loggingMiddleware(log logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info("request",
				"method", r.Method,
				"uri", r.RequestURI,
				"duration", time.Since(start),
			)
		})
	}
}

func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				respondJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
