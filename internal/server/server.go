// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/go-auth-api/internal/config"
	"codeberg.org/oliverandrich/go-auth-api/internal/database"
	"codeberg.org/oliverandrich/go-auth-api/internal/handlers"
	"codeberg.org/oliverandrich/go-auth-api/internal/i18n"
	"codeberg.org/oliverandrich/go-auth-api/internal/metrics"
	"codeberg.org/oliverandrich/go-auth-api/internal/middleware"
	"codeberg.org/oliverandrich/go-auth-api/internal/mongodb"
	"codeberg.org/oliverandrich/go-auth-api/internal/repository"
	authsvc "codeberg.org/oliverandrich/go-auth-api/internal/services/auth"
	"codeberg.org/oliverandrich/go-auth-api/internal/services/email"
	"codeberg.org/oliverandrich/go-auth-api/internal/services/token"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// Store is the persistence backend the server runs on.
type Store interface {
	authsvc.Store
	Ping(ctx context.Context) error
	Close() error
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)
	for _, warning := range cfg.Warnings() {
		slog.Warn(warning)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"store", storeKind(cfg.Database),
	)

	// i18n
	if err := i18n.Init(); err != nil {
		return fmt.Errorf("failed to init i18n: %w", err)
	}

	// Store
	store, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("failed to close store", "error", closeErr)
		}
	}()

	// Email
	mailer, err := email.NewService(&cfg.SMTP, cfg.Auth.ResetPasswordExpire)
	if err != nil {
		return fmt.Errorf("failed to init email service: %w", err)
	}

	e, err := New(cfg, store, mailer, metrics.New())
	if err != nil {
		return err
	}

	return startWithGracefulShutdown(ctx, e, cfg)
}

// OpenStore opens the MongoDB store for mongodb:// DSNs and SQLite otherwise.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	if cfg.IsMongo() {
		store, err := mongodb.Open(ctx, cfg.DSN, cfg.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to open mongodb: %w", err)
		}
		return store, nil
	}

	db, err := database.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return repository.New(db), nil
}

func storeKind(cfg config.DatabaseConfig) string {
	if cfg.IsMongo() {
		return "mongodb"
	}
	return "sqlite"
}

// New wires the services and returns the configured echo instance.
func New(cfg *config.Config, store Store, notifier authsvc.Notifier, m *metrics.Metrics) (*echo.Echo, error) {
	tokens, err := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionExpire, cfg.Auth.ResetPasswordExpire)
	if err != nil {
		return nil, fmt.Errorf("failed to init token issuer: %w", err)
	}

	svc, err := authsvc.NewService(store, tokens, notifier, cfg.Auth.ResetURL, authsvc.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("failed to init auth service: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.HTTPErrorHandler

	// Middleware
	setupMiddleware(e, cfg)

	// Routes
	setupRoutes(e, store, svc, m)

	return e, nil
}

func setupRoutes(e *echo.Echo, store Store, svc *authsvc.Service, m *metrics.Metrics) {
	h := handlers.New(store)
	authHandlers := handlers.NewAuth(svc)
	requireAuth := middleware.RequireAuth(svc)

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandlers.Register)
	authGroup.POST("/login", authHandlers.Login)
	authGroup.POST("/forgot-password", authHandlers.ForgotPassword)
	authGroup.POST("/reset-password/:token", authHandlers.ResetPassword)
	authGroup.GET("/user", authHandlers.Profile, requireAuth)

	api.GET("/dashboard", h.Dashboard, requireAuth)
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	go func() {
		slog.Info("Server running", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
