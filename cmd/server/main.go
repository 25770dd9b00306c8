package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	interviewapp "github.com/genintake/backend/internal/application/interview"
	knowledgeapp "github.com/genintake/backend/internal/application/knowledge"
	"github.com/genintake/backend/internal/infrastructure/cache"
	"github.com/genintake/backend/internal/infrastructure/config"
	"github.com/genintake/backend/internal/infrastructure/event"
	"github.com/genintake/backend/internal/infrastructure/llm"
	"github.com/genintake/backend/internal/infrastructure/logger"
	"github.com/genintake/backend/internal/infrastructure/persistence"
	"github.com/genintake/backend/internal/infrastructure/protocol"
	"github.com/genintake/backend/internal/infrastructure/scheduler"
	"github.com/genintake/backend/internal/infrastructure/telemetry"
	"github.com/genintake/backend/internal/interfaces/http/handler"
	"github.com/genintake/backend/internal/interfaces/http/middleware"
	"github.com/genintake/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting GenIntake Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize OpenTelemetry tracing, metrics and log export
	ctx := context.Background()
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	if logsProvider.IsEnabled() {
		// Rebind before anything downstream captures the logger.
		log = telemetry.NewBridgedLogger(log, logsProvider.ZapCore(logger.ParseLevel(cfg.Log.Level)))
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Register database query tracing (if enabled)
	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			LogFullSQL:       cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:         "postgresql",
			WithoutVariables: !cfg.Telemetry.DBLogFullSQL,
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Query counters and pool gauges ride the same meter provider
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DBMetricsConfig{
		Enabled:            cfg.Telemetry.Enabled,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.ObservePool(ctx)
	}

	// Start continuous profiling (no-op when disabled)
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:              cfg.Profiling.Enabled,
		ServerAddress:        cfg.Profiling.ServerAddress,
		ApplicationName:      cfg.App.Name,
		ProfileCPU:           true,
		ProfileAllocObjects:  true,
		ProfileAllocSpace:    true,
		ProfileInuseObjects:  true,
		ProfileInuseSpace:    true,
		ProfileGoroutines:    true,
		MutexProfileFraction: 5,
		BlockProfileRate:     5,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}

	// Span profiles need the profiler running first.
	if profiler.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	// Initialize repositories
	sessionRepo := persistence.NewGormSessionRepository(db.DB)
	recordRepo := persistence.NewGormAssessmentRecordRepository(db.DB)
	chunkRepo := persistence.NewGormChunkRepository(db.DB)

	// Redis-backed coordination stores. Each falls back to an in-process
	// implementation when redis is unreachable, so a redis outage degrades
	// cross-instance guarantees instead of taking the service down.
	stores := cache.NewStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	)
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing coordination stores", zap.Error(err))
		}
	}()
	turnLock, err := stores.CreateTurnLock()
	if err != nil {
		log.Fatal("Failed to create turn lock", zap.Error(err))
	}
	verdictCache, err := stores.CreateVerdictCache(cfg.Interview.VerdictCacheTTL)
	if err != nil {
		log.Fatal("Failed to create verdict cache", zap.Error(err))
	}
	idempotencyStore, err := stores.CreateIdempotencyStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Model gateway with circuit breaker
	modelClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:        cfg.Model.BaseURL,
		APIKey:         cfg.Model.APIKey,
		ChatModel:      cfg.Model.ChatModel,
		EmbeddingModel: cfg.Model.EmbeddingModel,
		RequestTimeout: cfg.Model.RequestTimeout,
		Temperature:    cfg.Model.Temperature,
	})
	if err != nil {
		log.Fatal("Failed to create model client", zap.Error(err))
	}
	breaker := llm.NewConsecutiveBreaker(llm.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
	})
	gateway := llm.NewGateway(modelClient, breaker, cfg.Model.RequestTimeout, log)

	// Knowledge retrieval shares the gateway so embedding calls ride the
	// same breaker as chat completions
	retriever := knowledgeapp.NewRetrieverService(chunkRepo, gateway, log)

	// Clinical fact extractor selected by configuration
	extractor, err := llm.NewExtractor(cfg.Interview.Extractor, gateway, log)
	if err != nil {
		log.Fatal("Failed to create extractor", zap.Error(err))
	}
	log.Info("Fact extractor configured", zap.String("extractor", extractor.Name()))

	// Interview protocols
	protocols, err := protocol.NewDefaultProvider()
	if err != nil {
		log.Fatal("Failed to load interview protocols", zap.Error(err))
	}

	// Interview metrics instruments
	interviewMetrics, err := telemetry.NewInterviewMetrics(telemetry.InterviewMetricsConfig{
		Meter:              meterProvider.Meter(cfg.Telemetry.ServiceName),
		Logger:             log,
		AssessmentProvider: telemetry.NewGormAssessmentMetricsProvider(db.DB),
		CorpusProvider:     telemetry.NewGormCorpusMetricsProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to create interview metrics", zap.Error(err))
	}

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	// Session lifecycle -> metrics projection, deduplicated so redelivered
	// events do not double-count
	sessionMetricsHandler := interviewapp.NewSessionMetricsHandler(interviewMetrics, log)
	eventBus.Subscribe(event.NewIdempotentHandler(sessionMetricsHandler, idempotencyStore, log))

	log.Info("Event handlers registered",
		zap.Strings("session_metrics_events", sessionMetricsHandler.EventTypes()),
	)

	// Start event bus
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Periodic gauge collection (assessment counts, corpus size)
	interviewMetrics.StartPeriodicCollection(ctx, 5*time.Minute)
	defer interviewMetrics.Stop()

	// Interview application service
	coordinator := interviewapp.NewCoordinator(sessionRepo, recordRepo, verdictCache, eventBus, log)
	interviewService := interviewapp.NewService(interviewapp.ServiceConfig{
		Sessions:        sessionRepo,
		Protocols:       protocols,
		Coordinator:     coordinator,
		Retriever:       retriever,
		Gateway:         gateway,
		Extractor:       extractor,
		TurnLock:        turnLock,
		Logger:          log,
		HistoryLimit:    cfg.Interview.HistoryLimit,
		LockTTL:         cfg.Interview.LockTTL,
		AnalysisTimeout: cfg.Interview.AnalysisTimeout,
	})
	interviewService.SetInterviewMetrics(interviewMetrics)

	// Close sessions whose subject walked away mid-interview
	sweeper := scheduler.NewIdleSessionSweeper(interviewService, log, scheduler.IdleSweeperConfig{
		Enabled:      cfg.Interview.SweepEnabled,
		Interval:     cfg.Interview.SweepInterval,
		BatchSize:    cfg.Interview.SweepBatchSize,
		SweepTimeout: 30 * time.Second,
	})
	if err := sweeper.Start(context.Background()); err != nil {
		log.Fatal("Failed to start idle session sweeper", zap.Error(err))
	}
	defer func() {
		if err := sweeper.Stop(context.Background()); err != nil {
			log.Error("Error stopping idle session sweeper", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	sessionHandler := handler.NewSessionHandler(interviewService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order: request id ahead of everything that logs,
	// recovery ahead of the request logger, security headers and CORS
	// ahead of body handling, body limit and rate limit ahead of the
	// handlers, tracing/metrics/profiling labels last.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Tracing, metrics and profiling labels
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.TracingAttributeInjector())
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       meterProvider.IsEnabled(),
	}))
	engine.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{
		Enabled:   profiler.IsEnabled(),
		SkipPaths: []string{"/healthz"},
	}))

	// Health check endpoint (outside API versioning)
	engine.GET("/healthz", healthHandler(log, db, gateway))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Interview domain (sessions, turns, assessments)
	interviewRoutes := router.NewDomainGroup("interview", "/sessions")
	interviewRoutes.POST("", sessionHandler.Start)
	interviewRoutes.POST("/:id/turns", sessionHandler.SubmitTurn)
	interviewRoutes.GET("/:id/assessment", sessionHandler.GetAssessment)
	r.Register(interviewRoutes)

	// Setup routes
	r.Setup()

	// Plain ping under the API prefix for quick reachability checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Flush telemetry before the process exits
	if dbMetrics != nil {
		dbMetrics.Stop()
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	// Log export goes down last so the shutdown messages above still flush.
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports process liveness plus the state of the two
// dependencies a turn cannot proceed without: the database and the model
// gateway. An open breaker still reports 200 because scripted fallbacks
// keep interviews running while the model is away.
func healthHandler(log *zap.Logger, db *persistence.Database, gateway *llm.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.RequestLogger(c, log)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":        "unhealthy",
				"time":          time.Now().Format(time.RFC3339),
				"database":      "error",
				"model_gateway": string(gateway.State()),
			})
			return
		}
		resp := gin.H{
			"status":        "healthy",
			"time":          time.Now().Format(time.RFC3339),
			"database":      "ok",
			"model_gateway": string(gateway.State()),
		}
		if pool, err := db.Stats(); err == nil {
			resp["db_pool"] = gin.H{
				"in_use":   pool.InUse,
				"idle":     pool.Idle,
				"max_open": pool.MaxOpenConnections,
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
