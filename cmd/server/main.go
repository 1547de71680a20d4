package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	countingapp "github.com/tally/backend/internal/application/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/infrastructure/auth"
	"github.com/tally/backend/internal/infrastructure/cache"
	"github.com/tally/backend/internal/infrastructure/config"
	"github.com/tally/backend/internal/infrastructure/event"
	"github.com/tally/backend/internal/infrastructure/logger"
	"github.com/tally/backend/internal/infrastructure/persistence"
	"github.com/tally/backend/internal/infrastructure/telemetry"
	"github.com/tally/backend/internal/interfaces/http/handler"
	"github.com/tally/backend/internal/interfaces/http/middleware"
	"github.com/tally/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
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

	log.Info("Starting Tally Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize OpenTelemetry providers. Each returns a no-op implementation
	// when telemetry is disabled, so the wiring below is unconditional.
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	loggerProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	// Continuous profiling via Pyroscope. No-op when disabled.
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Telemetry.ProfilingEnabled,
		ServerAddress:       cfg.Telemetry.ProfilingAddr,
		ApplicationName:     cfg.Telemetry.ServiceName,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Database query tracing
	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:         "postgresql",
			WithoutVariables: cfg.App.Env == "production",
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Database metrics (query durations, connection pool stats)
	meter := meterProvider.Meter("tally-backend")
	dbMetrics, err := telemetry.NewDBMetrics(meter, telemetry.DBMetricsConfig{
		Enabled:            cfg.Telemetry.Enabled,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		PoolStatsInterval:  15 * time.Second,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize database metrics", zap.Error(err))
	}
	defer dbMetrics.Stop()
	if sqlDB, err := db.DB.DB(); err == nil {
		dbMetrics.SetSQLDB(sqlDB)
		if cfg.Telemetry.Enabled {
			dbMetrics.StartPoolStatsCollection(context.Background())
		}
	}
	if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
		log.Warn("Failed to register database metrics plugin", zap.Error(err))
	}

	// Initialize repositories
	inventoryRepo := persistence.NewGormInventoryRepository(db.DB)
	sectorRepo := persistence.NewGormSectorRepository(db.DB)
	countRepo := persistence.NewGormCountEntryRepository(db.DB)
	balanceRepo := persistence.NewGormProductBalanceRepository(db.DB)
	auditRepo := persistence.NewGormAuditEntryRepository(db.DB)

	// Initialize event bus
	eventBus := event.NewInMemoryEventBus(log)

	// The audit recorder subscribes to every counting lifecycle event.
	// Recording is best effort: a failed append is logged by the bus and
	// never fails the command that produced the event.
	auditRecorder := countingapp.NewAuditRecorder(auditRepo, log)
	eventBus.Subscribe(auditRecorder)
	log.Info("Event handlers registered",
		zap.Strings("audit_events", auditRecorder.EventTypes()),
	)

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Idempotency store for duplicate count submissions
	var idempotencyStore shared.IdempotencyStore
	switch cfg.Idempotency.Backend {
	case "memory":
		idempotencyStore = cache.NewInMemoryIdempotencyStore()
		log.Info("Using in-memory idempotency store")
	default:
		redisStore, err := cache.NewRedisIdempotencyStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		idempotencyStore = redisStore
		log.Info("Using Redis idempotency store",
			zap.String("host", cfg.Redis.Host),
			zap.Int("port", cfg.Redis.Port),
		)
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()
	idemConfig := shared.IdempotencyConfig{
		TTL:     cfg.Idempotency.TTL,
		Enabled: cfg.Idempotency.Enabled,
	}

	// Auth services
	jwtService := auth.NewJWTService(cfg.JWT)
	capabilities := auth.NewClaimsCapabilityChecker()

	// Divergence aggregation. The grouped storage query is the default
	// primary strategy; the paged in-memory fold serves deployments where
	// grouped aggregation is turned off and doubles as the runtime fallback.
	storageAgg := countingapp.NewStorageAggregationStrategy(countRepo)
	pagedAgg := countingapp.NewPagedAggregationStrategy(countRepo, cfg.Counting.AggregationPageSize)
	var primaryAgg countingapp.AggregationStrategy = storageAgg
	if !cfg.Counting.StorageAggregation {
		primaryAgg = pagedAgg
	}

	// Initialize application services
	inventoryService := countingapp.NewInventoryService(inventoryRepo, sectorRepo, balanceRepo, countRepo, eventBus)
	sectorService := countingapp.NewSectorService(sectorRepo, inventoryRepo, capabilities, eventBus)
	countService := countingapp.NewCountService(countRepo, sectorRepo, inventoryRepo, capabilities, eventBus, idempotencyStore, idemConfig)
	divergenceService := countingapp.NewDivergenceService(balanceRepo, primaryAgg, pagedAgg, log)
	closingService := countingapp.NewClosingService(inventoryRepo, sectorRepo, divergenceService, capabilities, eventBus)
	auditService := countingapp.NewAuditService(auditRepo)

	// Business metrics (sector claims, counts, closings)
	countingMetrics, err := telemetry.NewCountingMetrics(telemetry.CountingMetricsConfig{
		Meter:          meter,
		Logger:         log,
		SectorProvider: telemetry.NewGormSectorMetricsProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to initialize counting metrics", zap.Error(err))
	}
	if cfg.Telemetry.Enabled {
		countingMetrics.StartPeriodicCollection(context.Background(), telemetry.NewGormTenantProvider(db.DB), 5*time.Minute)
	}
	defer countingMetrics.Stop()

	metricsSink := &countingMetricsSink{metrics: countingMetrics}
	sectorService.SetMetrics(metricsSink)
	countService.SetMetrics(metricsSink)
	closingService.SetMetrics(metricsSink)

	// Initialize HTTP handlers
	inventoryHandler := handler.NewInventoryHandler(inventoryService)
	sectorHandler := handler.NewSectorHandler(sectorService)
	countHandler := handler.NewCountHandler(countService)
	divergenceHandler := handler.NewDivergenceHandler(divergenceService)
	closingHandler := handler.NewClosingHandler(closingService)
	auditHandler := handler.NewAuditHandler(auditService)
	systemHandler := handler.NewSystemHandler()

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

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing/Metrics/Profiling - Observability (when enabled)
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.HTTPMetricsWithMeter(meter, true))
	}
	if cfg.Telemetry.ProfilingEnabled {
		engine.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{
			Enabled: true,
		}))
	}
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

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes
	// Configure skip paths for public endpoints
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Resolve tenant context from JWT claims (header fallback for tooling)
	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.SkipPaths = append(tenantConfig.SkipPaths, "/api/v1/system")
	tenantConfig.Logger = log
	r.Use(middleware.TenantMiddlewareWithConfig(tenantConfig))

	// Counting domain (campaigns, sectors, counts, divergences, closing)
	countingRoutes := router.NewDomainGroup("counting", "/counting")

	// Inventory campaign routes
	countingRoutes.POST("/inventories", inventoryHandler.Create)
	countingRoutes.GET("/inventories", inventoryHandler.List)
	countingRoutes.GET("/inventories/:id", inventoryHandler.GetByID)
	countingRoutes.DELETE("/inventories/:id", inventoryHandler.Delete)
	countingRoutes.POST("/inventories/:id/sectors", inventoryHandler.AddSectors)
	countingRoutes.GET("/inventories/:id/sectors", inventoryHandler.ListSectors)
	countingRoutes.POST("/inventories/:id/balances", inventoryHandler.LoadBalances)

	// Sector state machine routes
	countingRoutes.POST("/inventories/:id/sectors/:sectorId/open", sectorHandler.Open)
	countingRoutes.GET("/sectors/:id", sectorHandler.GetByID)
	countingRoutes.POST("/sectors/:id/finalize", sectorHandler.Finalize)
	countingRoutes.POST("/sectors/:id/reopen", sectorHandler.Reopen)
	countingRoutes.POST("/sectors/:id/release", sectorHandler.Release)

	// Count entry routes
	countingRoutes.POST("/sectors/:id/counts", countHandler.Submit)
	countingRoutes.GET("/sectors/:id/counts", countHandler.ListBySector)
	countingRoutes.POST("/sectors/:id/products/:productId/reconcile", countHandler.Reconcile)

	// Divergence and closing workflow routes
	countingRoutes.GET("/inventories/:id/divergences", divergenceHandler.List)
	countingRoutes.GET("/inventories/:id/closing-status", closingHandler.GetClosingStatus)
	countingRoutes.POST("/inventories/:id/finalize", closingHandler.Finalize)
	countingRoutes.POST("/inventories/:id/reopen", closingHandler.Reopen)
	countingRoutes.POST("/inventories/:id/close", closingHandler.Close)

	// Audit trail routes
	countingRoutes.GET("/inventories/:id/audit", auditHandler.ListByInventory)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	// Register all domain groups
	r.Register(countingRoutes).Register(systemRoutes)

	// Setup routes
	r.Setup()

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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// countingMetricsSink bridges the application-layer metrics interface to the
// OpenTelemetry instruments. The application layer reports a boolean claim
// outcome; the telemetry layer turns it into an attribute label.
type countingMetricsSink struct {
	metrics *telemetry.CountingMetrics
}

func (s *countingMetricsSink) RecordSectorClaim(ctx context.Context, tenantID uuid.UUID, granted bool) {
	outcome := telemetry.ClaimOutcomeConflict
	if granted {
		outcome = telemetry.ClaimOutcomeGranted
	}
	s.metrics.RecordSectorClaim(ctx, tenantID, outcome)
}

func (s *countingMetricsSink) RecordSectorFinalized(ctx context.Context, tenantID uuid.UUID) {
	s.metrics.RecordSectorFinalized(ctx, tenantID)
}

func (s *countingMetricsSink) RecordCountsSubmitted(ctx context.Context, tenantID uuid.UUID, entries int64) {
	s.metrics.RecordCountsSubmitted(ctx, tenantID, entries)
}

func (s *countingMetricsSink) RecordInventoryClosed(ctx context.Context, tenantID uuid.UUID, forced bool) {
	s.metrics.RecordInventoryClosed(ctx, tenantID, forced)
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
