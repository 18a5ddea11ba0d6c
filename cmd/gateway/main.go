package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/vineeth-0509/open-llm/internal/gateway/billing"
	"github.com/vineeth-0509/open-llm/internal/gateway/cache"
	"github.com/vineeth-0509/open-llm/internal/gateway/handlers"
	"github.com/vineeth-0509/open-llm/internal/gateway/orchestrator"
	"github.com/vineeth-0509/open-llm/internal/gateway/providers"
	"github.com/vineeth-0509/open-llm/internal/gateway/resolver"
	"github.com/vineeth-0509/open-llm/internal/shared/config"
	"github.com/vineeth-0509/open-llm/internal/shared/database"
	"github.com/vineeth-0509/open-llm/internal/shared/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting LLM gateway on port %s (env: %s)", cfg.Port, cfg.Env)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("✓ Connected to PostgreSQL")

	// Initialize Redis
	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Connected to Redis")

	// Register one adapter per configured vendor
	registry := providers.NewRegistry()
	if cfg.OpenAIAPIKey != "" {
		registry.Register("openai", providers.NewOpenAIAdapter(cfg.OpenAIAPIKey))
	}
	if cfg.AnthropicAPIKey != "" {
		registry.Register("anthropic", providers.NewAnthropicAdapter(cfg.AnthropicAPIKey))
	}
	if cfg.GeminiAPIKey != "" {
		gemini := providers.NewGeminiAdapter(cfg.GeminiAPIKey)
		registry.Register("google", gemini)
		// Vertex offerings dispatch through the same Gemini API.
		registry.Register("google-vertex", gemini)
	}
	log.Printf("✓ Registered providers: %v", registry.Providers())

	// Initialize offering cache and resolver
	offeringCache := cache.New(redisClient, time.Duration(cfg.OfferingCacheTTLSeconds)*time.Second)
	modelResolver := resolver.New(db, offeringCache)

	// Initialize billing and the orchestrator
	ledger := billing.New(db)
	orch := orchestrator.New(db, modelResolver, registry, ledger, logger)

	// Initialize handlers
	chatHandler := handlers.NewChatHandler(orch)
	adminHandler := handlers.NewAdminHandler(db, ledger, cfg.TopUpAmount)
	middleware := handlers.NewMiddleware(redisClient, cfg.DefaultRateLimit)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(120 * time.Second))
	r.Use(handlers.CORSMiddleware)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// API routes (with auth and rate limiting)
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.RateLimitMiddleware)

		r.Post("/chat/completions", chatHandler.HandleChatCompletion)
	})

	// Management routes; only mounted when an admin token is configured
	if cfg.AdminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(handlers.AdminAuthMiddleware(cfg.AdminToken))

			r.Post("/keys", adminHandler.HandleCreateKey)
			r.Patch("/keys/{id}", adminHandler.HandleUpdateKey)
			r.Delete("/keys/{id}", adminHandler.HandleDeleteKey)
			r.Get("/accounts/{id}", adminHandler.HandleGetAccount)
			r.Get("/accounts/{id}/keys", adminHandler.HandleListKeys)
			r.Post("/accounts/{id}/topup", adminHandler.HandleTopUp)
			r.Get("/models", adminHandler.HandleListModels)
			r.Get("/models/{company}/{name}/offerings", adminHandler.HandleListOfferings)
		})
	} else {
		log.Println("⚠ ADMIN_TOKEN not set, management routes disabled")
	}

	// HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("🚀 Server listening on http://localhost:%s", cfg.Port)
		log.Println("   POST /v1/chat/completions - Chat completions")
		log.Println("   GET  /health              - Health check")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
