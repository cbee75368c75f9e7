// Package main runs a local sandbox of the database administration API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dbadmin/internal/config"
	internaldb "dbadmin/internal/db"
	"dbadmin/internal/middleware"
	"dbadmin/internal/sandbox"
	"dbadmin/internal/telemetry"
)

// version is overridden at build time with -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatalf("sandbox: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	writeDB, readDB, err := internaldb.Open(cfg.Sandbox.DBPath)
	if err != nil {
		return fmt.Errorf("open sandbox database: %w", err)
	}
	defer func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	}()
	if v, err := internaldb.SchemaVersion(writeDB); err == nil {
		logger.Info("sandbox database ready", "path", cfg.Sandbox.DBPath, "schema_version", v)
	}

	srv, err := sandbox.New(sandbox.NewStore(writeDB, readDB), sandbox.Options{
		Logger:             logger,
		CORSAllowedOrigins: cfg.Sandbox.CORSAllowedOrigins,
		Credentials:        middleware.Credentials{Username: cfg.Sandbox.Username, Password: cfg.Sandbox.Password},
		JWTSecret:          cfg.Sandbox.JWTSecret,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.Sandbox.RateLimitRPS,
			Burst:             cfg.Sandbox.RateLimitBurst,
		},
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("create sandbox server: %w", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Sandbox.ListenAddr,
		Handler:           srv.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sandbox listening",
			"addr", cfg.Sandbox.ListenAddr,
			"auth", cfg.Sandbox.AuthEnabled(),
			"methods", len(srv.Dispatcher().Methods()))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
