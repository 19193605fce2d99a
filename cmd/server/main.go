package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mirthlabs/triumphs/internal"
	"github.com/mirthlabs/triumphs/internal/ai/openai"
	"github.com/mirthlabs/triumphs/internal/billing"
	"github.com/mirthlabs/triumphs/internal/handler"
	"github.com/mirthlabs/triumphs/internal/middleware"
	"github.com/mirthlabs/triumphs/internal/quota"
	"github.com/mirthlabs/triumphs/internal/session"
)

func run() error {
	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize template renderer
	renderer, err := handler.NewRenderer(handler.RendererConfig{
		TemplatesDir: cfg.TemplatesDir,
		Logger:       logger,
		IsDev:        cfg.Env == "development",
	})
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}
	logger.Info("Templates loaded", "count", len(renderer.ListTemplates()))

	// Initialize the completion provider
	generator, err := openai.New(openai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		Model:          cfg.OpenAIModel,
		RequestTimeout: cfg.AIRequestTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("provider initialization failed: %w", err)
	}

	// Initialize billing. Checkout stays disabled without full Stripe
	// configuration; the upgrade page then shows the static link, if any.
	var billingSvc billing.Service
	if cfg.StripeSecretKey != "" && cfg.StripePriceID != "" {
		billingSvc = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripePriceID, logger)
		logger.Info("Stripe checkout enabled", "price_id", cfg.StripePriceID)
	} else {
		logger.Warn("Stripe not configured, checkout disabled")
	}
	stripeEnabled := cfg.UpgradeAvailable()

	// Initialize session and quota state
	isSecure := cfg.Env != "development"
	sessions := session.NewManager(cfg.SessionSecret, isSecure, logger)
	tracker := quota.NewTracker(cfg.DailyFreeLimit)

	// Initialize handlers
	cardHandler := handler.NewCardHandler(generator, tracker, sessions, renderer, logger, stripeEnabled)
	billingHandler := handler.NewBillingHandler(billingSvc, tracker, sessions, renderer, logger,
		cfg.BaseURL, cfg.StripeLink, cfg.AdminProCode)
	authHandler := handler.NewAuthHandler(billingSvc, sessions, renderer, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files
	staticFS := http.FileServer(http.Dir("web/static"))
	mux.Handle("GET /static/", http.StripPrefix("/static/", staticFS))

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics (basic auth)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Application routes
	cardHandler.RegisterRoutes(mux)
	billingHandler.RegisterRoutes(mux)
	authHandler.RegisterRoutes(mux)

	// Global middleware
	stack := middleware.Stack(
		middleware.NewSecurityHeadersMiddleware(isSecure).Handler,
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		middleware.NewMetricsMiddleware().Handler,
	)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: stack(mux),
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
