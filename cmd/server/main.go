package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/sumire/projects/internal/config"
	"github.com/sumire/projects/internal/handler"
	"github.com/sumire/projects/internal/repository"
	"github.com/sumire/projects/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.SetDefault(newLogger(os.Stdout, cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		projectStore service.ProjectStore
		userStore    service.UserStore
		ping         func(context.Context) error
	)

	switch cfg.StorageDriver {
	case config.StorageMemory:
		projectStore = repository.NewMemoryProjectRepository()
		userStore = repository.NewMemoryUserRepository()
		slog.Warn("using in-memory storage, data is lost on restart")
	default:
		db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
		db.SetConnMaxLifetime(cfg.DBConnMaxLife)

		slog.Info("database connected")

		if cfg.MigrateOnStart {
			if err := repository.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
		}

		projectStore = repository.NewProjectRepository(db)
		userStore = repository.NewUserRepository(db)
		ping = db.PingContext
	}

	projectSvc := service.NewProjectService(projectStore)
	authSvc := service.NewAuthService(userStore, service.AuthConfig{
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		GitHubClientID:     cfg.GitHubClientID,
		GitHubClientSecret: cfg.GitHubClientSecret,
		JWTSecret:          cfg.JWTSecret,
		JWTIssuer:          cfg.JWTIssuer,
		AccessTokenTTL:     cfg.AccessTokenTTL,
		RefreshTokenTTL:    cfg.RefreshTokenTTL,
		FrontendURL:        cfg.FrontendURL,
		DefaultRole:        cfg.Role(),
		DevTokensEnabled:   cfg.DevTokensEnabled,
	})

	if cfg.SeedDemoData {
		if _, err := projectSvc.SeedDemoData(ctx); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}
	if cfg.DevTokensEnabled {
		slog.Warn("dev token issuance enabled", "path", "/token/generate")
	}

	e := handler.NewRouter(handler.Deps{
		Projects:       projectSvc,
		Auth:           authSvc,
		AllowedOrigins: cfg.AllowedOrigins(),
		Ping:           ping,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "storage", cfg.StorageDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
