package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/compliq/internal"
	"github.com/DukeRupert/compliq/internal/ai"
	"github.com/DukeRupert/compliq/internal/ai/anthropic"
	aimock "github.com/DukeRupert/compliq/internal/ai/mock"
	"github.com/DukeRupert/compliq/internal/ai/openai"
	"github.com/DukeRupert/compliq/internal/billing"
	"github.com/DukeRupert/compliq/internal/handler"
	"github.com/DukeRupert/compliq/internal/jobs"
	"github.com/DukeRupert/compliq/internal/metrics"
	"github.com/DukeRupert/compliq/internal/middleware"
	"github.com/DukeRupert/compliq/internal/repository"
	"github.com/DukeRupert/compliq/internal/service"
	"github.com/DukeRupert/compliq/internal/storage"
	"github.com/DukeRupert/compliq/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if cfg.MigrateOnStart {
		if err := internal.RunMigrations(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	logger.Info("Database ready", "migrated", cfg.MigrateOnStart)

	// Initialize repository
	repo := repository.New(db)

	// Tier catalog: an invalid catalog refuses to start rather than guess limits.
	tiers := service.NewTierAdmin(repo, logger)
	cat, err := tiers.Load(ctx)
	if err != nil {
		return fmt.Errorf("tier catalog load failed: %w", err)
	}

	// ==========================================================================
	// External collaborators
	// ==========================================================================

	var billingService billing.Service
	if cfg.BillingEnabled() {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.Prices())
		logger.Info("Billing enabled", "provider", "stripe")
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, billing endpoints and the subscription sweep are disabled")
	}

	archive, err := storage.New(cfg.Storage(), logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	generator, err := newReportGenerator(cfg, logger)
	if err != nil {
		return fmt.Errorf("report generator initialization failed: %w", err)
	}
	logger.Info("Report generator ready", "provider", generator.Name())

	// ==========================================================================
	// Services
	// ==========================================================================

	resolver := service.NewEntitlementResolver(repo, cat, logger)
	ledger := service.NewUsageLedger(repo, resolver, logger)
	trial := service.NewFreeTrialGate(repo, logger)
	gate := service.NewQuotaGate(resolver, ledger, trial, cat, logger)
	sync := service.NewSubscriptionSync(repo, billingService, resolver, ledger, logger)
	reports := service.NewReportService(repo, gate, trial, generator, archive, logger)

	// ==========================================================================
	// Middleware
	// ==========================================================================

	isSecure := !cfg.IsDevelopment()
	authMw := middleware.NewAuthMiddleware(cfg.JWTSecret, logger)
	processLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitProcessPerMinute, time.Minute)
	processLimitMw := middleware.NewRateLimitMiddleware(processLimiter, middleware.ByUser, logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)
	if !metricsAuthMw.Enabled() {
		logger.Warn("METRICS_USERNAME not set, /metrics is unprotected")
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	validate := handler.NewValidator()
	mux := http.NewServeMux()

	handler.NewHealthHandler(db, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	requireUser := authMw.RequireUser
	handler.NewQuotaHandler(gate, trial, validate, logger).RegisterRoutes(mux, requireUser)
	handler.NewDocumentHandler(reports, validate, cfg.MaxDocumentMB, logger).RegisterRoutes(mux, requireUser, processLimitMw.Limit)
	handler.NewBillingHandler(billingService, sync, cfg.BaseURL, validate, logger).RegisterRoutes(mux, requireUser)
	handler.NewWebhookHandler(billingService, sync, logger).RegisterRoutes(mux)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	corsMw := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	h := middleware.Stack(
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		middleware.NewSecurityHeadersMiddleware(isSecure).Handler,
		corsMw.Handler,
		metrics.Middleware,
	)(mux)

	// ==========================================================================
	// Background jobs
	// ==========================================================================

	w, err := worker.New(worker.DefaultConfig(), logger)
	if err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}
	if billingService != nil {
		sweep := jobs.NewSweepSubscriptionsHandler(sync, cfg.SubscriptionSweepBatch, logger)
		if err := w.Register(cfg.SubscriptionSweepSchedule, sweep); err != nil {
			return fmt.Errorf("sweep job registration failed: %w", err)
		}
	}
	w.Start(ctx)
	defer w.Stop()

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.AIRequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "tiers", cat.Len())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newReportGenerator builds the provider named by AI_PROVIDER.
func newReportGenerator(cfg *internal.Config, logger *slog.Logger) (ai.ReportGenerator, error) {
	switch cfg.AIProvider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			Model:          cfg.OpenAIModel,
			ProviderConfig: cfg.AI(),
		}, logger)
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:         cfg.AnthropicAPIKey,
			Model:          cfg.AnthropicModel,
			ProviderConfig: cfg.AI(),
		}, logger)
	case "mock":
		if !cfg.IsDevelopment() && cfg.Env != "test" {
			return nil, fmt.Errorf("AI_PROVIDER=mock is only allowed in development")
		}
		return aimock.New(logger), nil
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", cfg.AIProvider)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
