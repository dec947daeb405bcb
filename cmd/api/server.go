package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	rankingsvc "github.com/bryanwahyu/clickrank/src/app/ranking"
)

type ServerConfig struct {
	Logger         *zap.Logger
	RankingService *rankingsvc.Service
	RateLimiter    *rateLimiter
	AllowedOrigins []string
	// Registry receives the server's collectors and backs /metrics. When nil a
	// private registry is created.
	Registry       *prometheus.Registry
	MetricsEnabled bool
}

// Server wires HTTP endpoints to the ranking service with observability instrumentation.
type Server struct {
	cfg               ServerConfig
	router            *mux.Router
	httpMetrics       *prometheus.HistogramVec
	requestCounter    *prometheus.CounterVec
	submissionCounter *prometheus.CounterVec
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	srv := &Server{cfg: cfg}
	srv.initMetrics()
	srv.buildRouter()
	return srv
}

// Handler returns the router wrapped with CORS for the browser game.
func (s *Server) Handler() http.Handler {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-Id"}),
		handlers.ExposedHeaders([]string{"X-Request-Id"}),
	)
	return cors(s.router)
}

func (s *Server) initMetrics() {
	s.httpMetrics = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clickrank",
		Subsystem: "http",
		Name:      "request_latency_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
	s.requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clickrank",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route",
	}, []string{"route", "method", "code"})
	s.submissionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clickrank",
		Subsystem: "ranking",
		Name:      "submissions_total",
		Help:      "Score submissions by outcome",
	}, []string{"outcome"})
	s.cfg.Registry.MustRegister(s.httpMetrics, s.requestCounter, s.submissionCounter)

	if s.cfg.RateLimiter != nil {
		limiter := s.cfg.RateLimiter
		s.cfg.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "clickrank",
			Subsystem: "http",
			Name:      "rate_limited_visitors",
			Help:      "Client addresses currently tracked by the rate limiter",
		}, func() float64 { return float64(limiter.Visitors()) }))
	}
}

func (s *Server) buildRouter() {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)

	var submit http.Handler = http.HandlerFunc(s.handleSubmitScore)
	if s.cfg.RateLimiter != nil {
		submit = s.cfg.RateLimiter.Middleware(submit)
	}

	r.Handle("/rankings", otelhttp.NewHandler(http.HandlerFunc(s.handleListRankings), "ListRankings")).Methods(http.MethodGet)
	r.Handle("/rankings", otelhttp.NewHandler(submit, "SubmitScore")).Methods(http.MethodPost)
	r.Handle("/rankings/{nickname}", otelhttp.NewHandler(http.HandlerFunc(s.handleGetRank), "GetRank")).Methods(http.MethodGet)
	r.Handle("/stats", otelhttp.NewHandler(http.HandlerFunc(s.handleStats), "RankingStats")).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.router = r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.cfg.Logger.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestIDFrom(r.Context())),
		)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		route := mux.CurrentRoute(r)
		routeName := "unknown"
		if route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				routeName = tmpl
			}
		}
		codeLabel := strconv.Itoa(rw.status)
		labels := prometheus.Labels{"route": routeName, "method": r.Method, "code": codeLabel}
		s.httpMetrics.With(labels).Observe(time.Since(start).Seconds())
		s.requestCounter.With(labels).Inc()
	})
}

// responseWriter captures HTTP status codes for logging/metrics.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
