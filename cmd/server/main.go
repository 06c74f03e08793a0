// HealthGuard - medical claim verification chat server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/healthguard/internal/agent"
	"github.com/ashureev/healthguard/internal/api"
	"github.com/ashureev/healthguard/internal/chat"
	"github.com/ashureev/healthguard/internal/config"
	"github.com/ashureev/healthguard/internal/identity"
	"github.com/ashureev/healthguard/internal/metrics"
	"github.com/ashureev/healthguard/internal/middleware"
	"github.com/ashureev/healthguard/internal/store"
	"github.com/ashureev/healthguard/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "container", config.IsContainer(), "agent", cfg.Agent.BaseURL)

	// Initialize dependencies.
	repo, err := openRepository(cfg)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}

	client, err := agent.NewHTTPClient(agent.HTTPClientConfig{
		BaseURL: cfg.Agent.BaseURL,
		Timeout: cfg.Agent.Timeout,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize agent client", "error", err)
		os.Exit(1)
	}
	if err := client.Ping(context.Background()); err != nil {
		// Pages still load; queries render the connection-error bubble until the agent is up.
		slog.Warn("Agent service not reachable at startup", "base_url", client.BaseURL(), "error", err)
	}

	// Initialize services.
	hub := chat.NewHub(agent.NewServiceWithQuerier(client), repo, logger)

	// Initialize handlers.
	baseHandler := api.NewHandler(hub, repo)
	chatHandler := api.NewChatHandler(baseHandler, cfg.MaxRequestBody, web.DefaultSuggestions)
	healthHandler := api.NewHealthHandler(baseHandler, client)
	wsHandler := chat.NewWebSocketHandler(hub, cfg.FrontendURL, cfg.IsDevelopment(), cfg.WebSocket.SendQueue, cfg.MaxRequestBody)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(middleware.AllowedOrigins(cfg.FrontendURL), identity.SessionHeaderName))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", metrics.Handler())
	r.Handle("/static/*", web.StaticHandler())

	// Page and chat API.
	chatHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.With(identity.Middleware(hub)).Get("/ws/chat", wsHandler.ServeHTTP)

	// Websocket connections are long lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return chat.RunSweeper(gctx, hub, repo, cfg.SweepInterval, cfg.SessionTTL)
	})

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func openRepository(cfg *config.Config) (store.Repository, error) {
	if !cfg.ExchangeLog.Enabled {
		slog.Info("Exchange log disabled")
		return store.Nop{}, nil
	}
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("Database connected", "path", cfg.DBPath)
	return repo, nil
}
