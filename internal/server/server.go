// Package server exposes the diagnosis engine over HTTP.
//
// An upload opens a session holding the cleaned batch; the discrete
// analysis calls (anomalies, classification, root cause, statistics) then
// run against that session. POST /api/analyze runs the whole pipeline on an
// upload in one request.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/crimson-sun/apsdiag/internal/engine"
	"github.com/crimson-sun/apsdiag/internal/metrics"
	"github.com/crimson-sun/apsdiag/internal/output"
	"github.com/crimson-sun/apsdiag/internal/store"
)

// Config holds the HTTP surface settings.
type Config struct {
	Addr            string
	ServiceName     string
	MaxUploadBytes  int64
	RateLimit       float64 // requests per second; 0 disables limiting
	RateBurst       int
	SessionTTL      time.Duration // 0 keeps sessions until evicted or deleted
	MaxSessions     int
	ShutdownTimeout time.Duration
	Verbosity       output.Verbosity // default when a request does not ask
}

// DefaultConfig mirrors the config package defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ServiceName:     "apsdiag",
		MaxUploadBytes:  64 << 20,
		RateLimit:       10,
		RateBurst:       20,
		SessionTTL:      time.Hour,
		MaxSessions:     100,
		ShutdownTimeout: 10 * time.Second,
		Verbosity:       output.Standard,
	}
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithStore enables the model endpoints.
func WithStore(s *store.ModelStore) Option { return func(srv *Server) { srv.store = s } }

// WithMetrics counts requests and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(srv *Server) { srv.metrics = m } }

// WithSink forwards every one-shot analysis report to out.
func WithSink(out output.Output) Option { return func(srv *Server) { srv.sink = out } }

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option { return func(srv *Server) { srv.logger = l } }

// Server is the gin API over one Engine.
type Server struct {
	cfg      Config
	engine   *engine.Engine
	store    *store.ModelStore
	metrics  *metrics.Metrics
	sink     output.Output
	logger   *slog.Logger
	sessions *registry
	router   *gin.Engine
}

// New builds the server and its routes.
func New(eng *engine.Engine, cfg Config, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.ServiceName == "" {
		cfg.ServiceName = def.ServiceName
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = def.MaxSessions
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	s := &Server{cfg: cfg, engine: eng, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.sessions = newRegistry(cfg.SessionTTL, cfg.MaxSessions, s.onSessionCount)
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(s.cfg.ServiceName))
	r.Use(s.requestLog(), s.countRequests())

	r.GET("/api/health", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api", rateLimit(s.cfg.RateLimit, s.cfg.RateBurst))
	{
		api.POST("/upload", s.upload)
		api.POST("/analyze", s.analyze)
		api.POST("/detect-anomalies", s.detectAnomalies)
		api.POST("/classify-faults", s.classifyFaults)
		api.POST("/root-cause", s.rootCause)
		api.GET("/visualization-data", s.visualizationData)
		api.DELETE("/sessions/:id", s.deleteSession)

		models := api.Group("/models")
		{
			models.GET("", s.listModels)
			models.POST("/:name", s.saveModel)
			models.DELETE("/:name", s.deleteModel)
		}
	}
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) onSessionCount(n int) { s.metrics.SessionsActive(n) }
