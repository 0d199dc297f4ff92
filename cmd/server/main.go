package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/featureflags"
	"github.com/yourorg/timetrack/internal/handler"
	"github.com/yourorg/timetrack/internal/infrastructure/logger"
	"github.com/yourorg/timetrack/internal/infrastructure/redis"
	"github.com/yourorg/timetrack/internal/observability/metrics"
	"github.com/yourorg/timetrack/internal/observability/tracing"
	"github.com/yourorg/timetrack/internal/provenance"
	"github.com/yourorg/timetrack/internal/query"
	"github.com/yourorg/timetrack/internal/repository"
	"github.com/yourorg/timetrack/internal/security"
	"github.com/yourorg/timetrack/internal/security/audit"
	"github.com/yourorg/timetrack/internal/security/auth"
	"github.com/yourorg/timetrack/internal/security/middleware"
	"github.com/yourorg/timetrack/internal/security/ratelimit"
	"github.com/yourorg/timetrack/internal/service"
	"github.com/yourorg/timetrack/internal/store/memory"
	"github.com/yourorg/timetrack/internal/store/pgstore"
	"github.com/yourorg/timetrack/internal/store/redisstore"
	"github.com/yourorg/timetrack/internal/validation"
	"github.com/yourorg/timetrack/internal/worker"
	"github.com/yourorg/timetrack/internal/workflow"
	"github.com/yourorg/timetrack/pkg/config"
	"github.com/yourorg/timetrack/pkg/database"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting TimeTrack server",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.StoreBackend),
	)

	// Companies without an explicit week configuration fall back to the
	// deployment-wide defaults.
	domain.SetDefaultWeekConfig(cfg.WeekStartDay, cfg.HoursPerDay)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing (no-op unless an OTLP endpoint is configured)
	shutdownTracing, err := tracing.Init(ctx, log, "timetrack", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Select the document store backend
	var store domain.DocumentStore
	var ping func(context.Context) error

	switch cfg.StoreBackend {
	case "redis":
		redisClient, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		store = redisstore.New(redisClient, log)
		ping = redisClient.Ping

	case "postgres":
		dbCfg := &database.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Database: cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		}
		pool, err := database.NewConnectionPool(ctx, dbCfg, log)
		if err != nil {
			log.Error("failed to connect to Postgres", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()
		pg := pgstore.New(pool, dbCfg, log)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("failed to ensure schema", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = pg
		ping = pool.Health

	default:
		store = memory.New()
		log.Warn("using in-memory store: data will not survive restarts")
	}

	// 5. Initialize the query orchestrator and start the cache janitor
	clock := domain.SystemClock{}
	orchestrator := query.NewOrchestrator(query.Options{
		StaleTime:       cfg.StaleTime,
		CacheIdleTime:   cfg.CacheIdleTime,
		ReadRetries:     cfg.ReadRetries,
		MutationRetries: cfg.MutationRetries,
		SweepInterval:   cfg.SweepInterval,
	}, clock, log)
	go orchestrator.StartJanitor(ctx)

	// 6. Initialize repositories
	userRepo := repository.NewUserRepository(store, log)
	companyRepo := repository.NewCompanyRepository(store, log)
	statsRepo := repository.NewStatsRepository(store, log)

	// 7. Initialize the engine: validator, stamper, workflow machine
	validator := validation.New()
	stamper := provenance.NewStamper(clock)
	machine := workflow.NewMachine(validator, clock, log)
	auditLogger := audit.NewLogger(log)
	authz := security.NewAuthorizationService(log)

	entryService := service.NewEntryService(
		store, orchestrator, validator, stamper, machine,
		clock, log, auditLogger, cfg.MutationRetries,
	)
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenIssuer)
	authService := service.NewAuthService(userRepo, tokenManager, authz, log)
	statsService := service.NewStatsService(
		store, statsRepo, userRepo, companyRepo,
		service.Allowances{PTOHours: cfg.PTOAllowanceHours, SickHours: cfg.SickAllowanceHours},
		clock, log,
	)

	// 8. Initialize handlers
	authHandler := handler.NewAuthHandler(authService, log)
	entryHandler := handler.NewEntryHandler(entryService, log)
	statsHandler := handler.NewStatsHandler(statsService, userRepo, authz, log)
	companyHandler := handler.NewCompanyHandler(companyRepo, orchestrator, authz, log)
	feedHandler := handler.NewFeedHandler(store, log, cfg.CORSAllowedOrigins)
	healthHandler := handler.NewHealthHandler(ping)

	rateLimiter := ratelimit.NewLimiter(100, time.Minute) // 100 requests per minute per company

	// 9. Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/change-password", authHandler.ChangePassword)
	mux.HandleFunc("POST /api/entries", entryHandler.Create)
	mux.HandleFunc("GET /api/entries", entryHandler.List)
	mux.HandleFunc("GET /api/entries/{id}", entryHandler.Get)
	mux.HandleFunc("PUT /api/entries/{id}", entryHandler.Update)
	mux.HandleFunc("DELETE /api/entries/{id}", entryHandler.Delete)
	mux.HandleFunc("POST /api/entries/{id}/submit", entryHandler.Submit)
	mux.HandleFunc("POST /api/entries/{id}/approve", entryHandler.Approve)
	mux.HandleFunc("POST /api/entries/{id}/reject", entryHandler.Reject)
	mux.HandleFunc("POST /api/entries/{id}/reopen", entryHandler.Reopen)
	mux.HandleFunc("POST /api/companies", companyHandler.Create)
	mux.HandleFunc("GET /api/companies/{id}", companyHandler.Get)
	mux.HandleFunc("PUT /api/companies/{id}", companyHandler.Update)
	mux.HandleFunc("GET /api/users/{id}/stats", statsHandler.Get)
	mux.HandleFunc("POST /api/users/{id}/stats/recompute", statsHandler.Recompute)
	if featureflags.EnabledDefault("ENTRY_FEED", true) {
		mux.Handle("GET /ws/entries", feedHandler)
	}
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthHandler.Healthz)
	mux.HandleFunc("/readyz", healthHandler.Readyz)

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> metrics -> JWT -> rate limit -> audit -> CORS.
	// JWT runs first so the rate limiter can key on companyId and the
	// audit log can attribute the request.
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.JWTMiddleware(tokenManager, log)(
				middleware.RateLimitMiddleware(rateLimiter, log)(
					middleware.AuditMiddleware(auditLogger)(handlerWithCORS),
				),
			),
		),
		log,
	)
	if featureflags.Enabled("TRACING") {
		rootHandler = otelhttp.NewHandler(rootHandler, "timetrack")
	}

	// 10. Start stats recompute worker in background
	if featureflags.EnabledDefault("STATS_WORKER", true) {
		statsWorker := worker.NewStatsWorker(
			statsService,
			entryService,
			log,
			time.Duration(cfg.StatsIntervalMinutes)*time.Minute,
		)
		go statsWorker.Start(ctx)
	} else {
		log.Info("stats worker disabled by flag")
	}

	// 11. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit", 100),
		slog.String("rate_limit_window", "1m"),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop workers and the cache janitor
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
