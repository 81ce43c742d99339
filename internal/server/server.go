// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/fraudsight/internal/analysis"
	"github.com/mbd888/fraudsight/internal/config"
	"github.com/mbd888/fraudsight/internal/health"
	"github.com/mbd888/fraudsight/internal/ingest"
	"github.com/mbd888/fraudsight/internal/insights"
	"github.com/mbd888/fraudsight/internal/logging"
	"github.com/mbd888/fraudsight/internal/metrics"
	"github.com/mbd888/fraudsight/internal/profiles"
	"github.com/mbd888/fraudsight/internal/ratelimit"
	"github.com/mbd888/fraudsight/internal/realtime"
	"github.com/mbd888/fraudsight/internal/scoring"
	"github.com/mbd888/fraudsight/internal/security"
	"github.com/mbd888/fraudsight/internal/storage"
	"github.com/mbd888/fraudsight/internal/traces"
	"github.com/mbd888/fraudsight/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	store       storage.Store
	db          *sql.DB // nil when using in-memory storage
	engine      *scoring.Engine
	dispatcher  *analysis.Dispatcher
	pipeline    *ingest.Pipeline
	profileSvc  *profiles.Service
	insightGen  *insights.Generator
	realtimeHub *realtime.Hub
	checks      *health.Registry
	rateLimiter *ratelimit.Limiter
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger

	shutdownTraces func(context.Context) error
	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStore sets a custom storage backend (for testing)
func WithStore(store storage.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set store/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var insightStore insights.Store
	if s.store == nil {
		if cfg.DatabaseURL != "" {
			pg, err := storage.OpenPostgres(cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("failed to open database: %w", err)
			}
			s.store = pg
			s.db = pg.DB()
			insightStore = insights.NewPostgresStore(pg.DB())
			s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
		} else {
			s.store = storage.NewMemory()
			insightStore = insights.NewMemoryStore()
			s.logger.Info("using in-memory storage (data will not persist)")
		}
	}
	if insightStore == nil {
		insightStore = insights.NewMemoryStore()
	}

	// Scoring engine with the rule fallback predictor
	s.engine = scoring.NewEngine(scoring.NewRulePredictor(cfg.FraudAmountThreshold))

	// Explanation dispatcher: Gemini when a key is configured, heuristic otherwise
	var primary analysis.Reasoner
	if cfg.GeminiAPIKey != "" {
		reasoner, err := analysis.NewGeminiReasoner(ctx, cfg.GeminiAPIKey, cfg.ReasonerModel)
		if err != nil {
			s.logger.Warn("failed to initialize model reasoner, using heuristics", "error", err)
		} else {
			primary = reasoner
			s.logger.Info("model explanations enabled", "model", cfg.ReasonerModel)
		}
	} else {
		s.logger.Info("no GEMINI_API_KEY set, heuristic explanations only")
	}
	s.dispatcher = analysis.NewDispatcher(primary, cfg.ReasonerMaxChars)

	// Realtime hub broadcasts fraud alerts to websocket subscribers
	s.realtimeHub = realtime.NewHub(s.logger)

	// Ingestion pipeline
	s.pipeline = ingest.New(s.store, s.engine, s.dispatcher, s.realtimeHub, ingest.Options{
		ProgressInterval: cfg.ProgressInterval,
		ProgressDelay:    time.Duration(cfg.ProgressDelayMS) * time.Millisecond,
		MaxReportErrors:  cfg.MaxReportErrors,
	})

	s.profileSvc = profiles.NewService(s.store.Profiles(), s.store.Transactions())
	s.insightGen = insights.NewGenerator(s.store.Transactions(), s.store.Profiles(), insightStore)

	// Health checks
	s.checks = health.NewRegistry()
	s.checks.Register("storage", health.Ping("storage", s.store.Ping))
	s.checks.Register("reasoner", health.Static("reasoner", true, s.dispatcher.Backend()))

	// Tracing (no-op without OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.shutdownTraces = shutdown
	}

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (dashboard origin is same-host in production; open for development)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Rate limiting
	s.rateLimiter = ratelimit.New(ratelimit.DefaultConfig())
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket for real-time fraud alerts
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")
	// Validate identifier URL params on all v1 routes (no-op when param absent)
	v1.Use(validation.IDParamMiddleware("id", "partyId", "code"))

	// Ingestion: multipart CSV upload with a server-sent-event progress stream
	v1.POST("/ingest", s.ingestHandler)
	v1.GET("/sessions", s.listSessionsHandler)
	v1.GET("/sessions/:id", s.getSessionHandler)

	// Transactions
	v1.GET("/transactions", s.listTransactionsHandler)
	v1.GET("/transactions/:id", s.getTransactionHandler)
	v1.POST("/transactions/:id/explain", s.explainTransactionHandler)
	v1.GET("/transactions/:id/notes", s.listTransactionNotesHandler)
	v1.POST("/transactions/:id/notes", s.addTransactionNoteHandler)

	// Client profiles
	v1.GET("/clients", s.listClientsHandler)
	v1.GET("/clients/:partyId", s.getClientHandler)
	v1.GET("/clients/:partyId/velocity", s.clientVelocityHandler)
	v1.POST("/clients/:partyId/assess", s.assessClientHandler)

	// Bank profiles
	v1.GET("/banks", s.listBanksHandler)
	v1.GET("/banks/:code", s.getBankHandler)
	v1.POST("/profiles/refresh", s.refreshProfilesHandler)

	// Analytics
	v1.GET("/stats", s.statsHandler)
	v1.GET("/analytics/summary", s.analyticsSummaryHandler)
	v1.GET("/insights", s.listInsightsHandler)
	v1.GET("/insights/:date", s.getInsightHandler)
	v1.POST("/insights/generate", s.generateInsightHandler)

	// Scoring introspection
	v1.GET("/predictor/status", s.predictorStatusHandler)
}

// -----------------------------------------------------------------------------
// Info & health handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "FraudSight",
		"description": "Interbank transaction fraud detection service",
		"version":     "0.1.0",
		"currency":    "MRU",
		"reasoner":    s.dispatcher.Backend(),
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Minute, // large CSV uploads stream slowly
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      0, // SSE progress streams stay open for the whole run
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"reasoner", s.dispatcher.Backend(),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Sample DB pool stats when running on Postgres
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, collectors)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
		}
	}

	// Close storage
	if err := s.store.Close(); err != nil {
		s.logger.Error("storage close error", "error", err)
	} else {
		s.logger.Info("storage closed")
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
